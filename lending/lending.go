// Package lending implements the card lifecycle: claiming a physical
// card, lending it between users, and authorizing playback against the
// streaming host.
//
// A card starts Unclaimed, is claimed exactly once, and then cycles
// between Claimed and Lent. Lent only ever returns to Claimed; there is
// no path back to Unclaimed. Only the owner can start or stop a loan —
// a borrower has no unilateral return action.
package lending

import (
	"context"
	"time"

	"github.com/audiovook/audiovook-server/database"
	"github.com/audiovook/audiovook-server/database/model"
	"github.com/audiovook/audiovook-server/signurl"
)

type Options struct {
	Repo   *database.Repository
	Signer *signurl.Signer
}

// Service is the card state machine plus the play authorization service.
type Service struct {
	repo   *database.Repository
	signer *signurl.Signer
}

func New(o *Options) *Service {
	return &Service{
		repo:   o.Repo,
		signer: o.Signer,
	}
}

// Claim binds an unclaimed card to the requester. Not idempotent: a
// second claim fails with ErrAlreadyClaimed regardless of requester.
func (s *Service) Claim(ctx context.Context, qr, requesterID string) (*model.Card, error) {
	card, err := s.repo.GetCard(ctx, qr)
	if err != nil {
		return nil, err
	}
	if card.UserState != model.StateUnclaimed {
		return nil, model.ErrAlreadyClaimed
	}
	if err := s.repo.ClaimCard(ctx, qr, requesterID, time.Now().UTC()); err != nil {
		return nil, err
	}
	return s.repo.GetCard(ctx, qr)
}

// Lend transfers play rights on a claimed card to the borrower resolved
// from borrowerEmail. Owner only.
func (s *Service) Lend(ctx context.Context, qr, requesterID, borrowerEmail string) (*model.Card, error) {
	card, err := s.repo.GetCard(ctx, qr)
	if err != nil {
		return nil, err
	}
	// An unclaimed card has no owner to be forbidden against.
	if card.UserState == model.StateUnclaimed {
		return nil, model.ErrInvalidState
	}
	if card.OwnerUserID != requesterID {
		return nil, model.ErrForbidden
	}
	if card.UserState != model.StateClaimed {
		return nil, model.ErrInvalidState
	}

	borrower, err := s.repo.GetUser(ctx, borrowerEmail)
	if err != nil {
		return nil, model.ErrInvalidBorrower
	}
	if borrower.ID == requesterID {
		return nil, model.ErrInvalidBorrower
	}

	if err := s.repo.LendCard(ctx, qr, borrower.ID, time.Now().UTC()); err != nil {
		return nil, err
	}
	return s.repo.GetCard(ctx, qr)
}

// StopLend terminates an active loan and returns the card to Claimed.
// Owner only; the borrower cannot end the loan.
func (s *Service) StopLend(ctx context.Context, qr, requesterID string) (*model.Card, error) {
	card, err := s.repo.GetCard(ctx, qr)
	if err != nil {
		return nil, err
	}
	if card.UserState == model.StateUnclaimed {
		return nil, model.ErrInvalidState
	}
	if card.OwnerUserID != requesterID {
		return nil, model.ErrForbidden
	}
	if card.UserState != model.StateLent {
		return nil, model.ErrInvalidState
	}

	if err := s.repo.ReturnCard(ctx, qr, time.Now().UTC()); err != nil {
		return nil, err
	}
	return s.repo.GetCard(ctx, qr)
}

// Status is the per-requester view of a card.
type Status struct {
	Card        *model.Card
	StatusLabel string
	OwnerEmail  string
	// BorrowerEmail is set while the card is lent out.
	BorrowerEmail string
	CanClaim      bool
	CanLend       bool
	CanStopLend   bool
	CanPlay       bool
}

// Status returns the card state, human-readable label, resolved owner and
// borrower emails, and what the requester may do with the card.
func (s *Service) Status(ctx context.Context, qr, requesterID string) (*Status, error) {
	card, err := s.repo.GetCard(ctx, qr)
	if err != nil {
		return nil, err
	}

	status := &Status{
		Card:        card,
		StatusLabel: card.UserState.Label(),
		CanClaim:    card.UserState == model.StateUnclaimed,
		CanLend:     card.UserState == model.StateClaimed && card.OwnerUserID == requesterID,
		CanStopLend: card.UserState == model.StateLent && card.OwnerUserID == requesterID,
	}
	status.CanPlay = card.OwnerUserID == requesterID ||
		(card.UserState == model.StateLent && card.BorrowerUserID == requesterID)

	if card.OwnerUserID != "" {
		if owner, err := s.repo.GetUserByID(ctx, card.OwnerUserID); err == nil {
			status.OwnerEmail = owner.Email
		}
	}
	if card.BorrowerUserID != "" {
		if borrower, err := s.repo.GetUserByID(ctx, card.BorrowerUserID); err == nil {
			status.BorrowerEmail = borrower.Email
		}
	}
	return status, nil
}

// PlayAuth is a granted playback authorization.
type PlayAuth struct {
	// Reason is "owner" or "borrower", whichever relation matched.
	Reason string
	// StartPosition is the stored listening position in seconds, 0 if none.
	StartPosition float64
	SignedURL     string
	RedirectURL   string
	// ExpiresIn is the validity window in seconds.
	ExpiresIn int64
}

// Authorize decides whether the requester may start playback and, if so,
// issues a signed URL and records the session. Each successful call
// records a fresh session; there is no deduplication beyond the
// conflict check.
func (s *Service) Authorize(ctx context.Context, qr, requesterID string) (*PlayAuth, error) {
	card, err := s.repo.GetCard(ctx, qr)
	if err != nil {
		return nil, err
	}

	var reason string
	switch {
	case card.OwnerUserID != "" && card.OwnerUserID == requesterID:
		reason = "owner"
	case card.UserState == model.StateLent && card.BorrowerUserID == requesterID:
		reason = "borrower"
	default:
		return nil, model.ErrForbidden
	}

	// Best-effort single-listener check: a plain equality test on the
	// device id of the newest unexpired session, not a lock.
	now := time.Now().UTC()
	if session, err := s.repo.ActivePlaySession(ctx, qr, now); err == nil {
		if session.DeviceID != requesterID {
			return nil, model.ErrSessionConflict
		}
	}

	startPosition := 0.0
	if progress, err := s.repo.GetProgress(ctx, requesterID, qr); err == nil {
		startPosition = progress.Position
	}

	signed := s.signer.Issue(qr, requesterID, now)

	session := &model.PlaySession{
		QR:        qr,
		DeviceID:  requesterID,
		IssuedAt:  now,
		ExpiresAt: signed.ExpiresAt,
	}
	if _, err := s.repo.CreatePlaySession(ctx, session); err != nil {
		return nil, err
	}

	return &PlayAuth{
		Reason:        reason,
		StartPosition: startPosition,
		SignedURL:     signed.URL,
		RedirectURL:   signed.RedirectURL,
		ExpiresIn:     int64(signed.ExpiresAt.Sub(now).Seconds()),
	}, nil
}

// SaveProgress upserts the listening position for (user, qr). Last write
// wins; the position is stored as reported.
func (s *Service) SaveProgress(ctx context.Context, qr, userID string, position float64) error {
	return s.repo.UpsertProgress(ctx, &model.ListeningProgress{
		UserID:    userID,
		QR:        qr,
		Position:  position,
		UpdatedAt: time.Now().UTC(),
	})
}
