// Package signurl issues and verifies signed playback URLs for the
// external streaming host. The signature is an HMAC-SHA256 digest over
// the QR code, the user id and an expiry timestamp, so a URL cannot be
// retargeted to another book, another user or a later time.
package signurl

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var (
	ErrExpired          = errors.New("signed url expired")
	ErrInvalidSignature = errors.New("invalid signature")
)

type Options struct {
	// Host is the streaming host base address. A scheme-less value
	// defaults to http.
	Host string
	// Secret is the HMAC key.
	Secret string
	// TTL is the validity window of issued URLs.
	TTL time.Duration
}

// Signer issues and verifies signed playback URLs. Construct once at
// startup and pass by reference; there is no ambient configuration.
type Signer struct {
	host   string
	secret []byte
	ttl    time.Duration
}

// SignedURL is one issued playback authorization.
type SignedURL struct {
	// URL is the direct stream URL with uid, exp and sig query parameters.
	URL string
	// RedirectURL points at the host player page, signature in the fragment.
	RedirectURL string
	// ExpiresAt is the signed expiry timestamp.
	ExpiresAt time.Time
}

func New(o *Options) *Signer {
	host := o.Host
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return &Signer{
		host:   strings.TrimSuffix(host, "/"),
		secret: []byte(o.Secret),
		ttl:    o.TTL,
	}
}

// TTL returns the configured validity window.
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Issue creates a signed stream URL for qr and userID, valid for the
// configured TTL from now.
func (s *Signer) Issue(qr, userID string, now time.Time) SignedURL {
	expiresAt := now.Add(s.ttl)
	sig := s.sign(qr, userID, expiresAt.Unix())

	params := url.Values{}
	params.Set("uid", userID)
	params.Set("exp", fmt.Sprintf("%d", expiresAt.Unix()))
	params.Set("sig", sig)

	return SignedURL{
		URL:         fmt.Sprintf("%s/stream/%s?%s", s.host, url.PathEscape(qr), params.Encode()),
		RedirectURL: fmt.Sprintf("%s/player/%s#sig=%s", s.host, url.PathEscape(qr), sig),
		ExpiresAt:   expiresAt,
	}
}

// Verify recomputes the signature over (qr, userID, exp) and compares it
// in constant time, then checks the expiry against now.
func (s *Signer) Verify(qr, userID string, exp int64, sig string, now time.Time) error {
	expected := s.sign(qr, userID, exp)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return ErrInvalidSignature
	}
	if now.Unix() > exp {
		return ErrExpired
	}
	return nil
}

// sign computes the URL-safe unpadded base64 HMAC-SHA256 digest of
// "qr:uid:exp".
func (s *Signer) sign(qr, userID string, exp int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s:%s:%d", qr, userID, exp)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
