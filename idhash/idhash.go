package idhash

import (
	"crypto/rand"
	"crypto/sha256"

	"github.com/jxskiss/base62"
)

// IdHash returns a deterministic base62-encoded id, based upon the
// sha256 of the input. Used to derive user ids from email addresses.
func IdHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base62.StdEncoding.EncodeToString(sum[:16])
}

// NewRandomID generates a random base62-encoded id.
func NewRandomID() string {
	var r [16]byte
	if _, err := rand.Read(r[:]); err != nil {
		panic(err)
	}
	return base62.StdEncoding.EncodeToString(r[:])
}
