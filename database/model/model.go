package model

import (
	"errors"
	"time"
)

var (
	ErrNoConfiguration = errors.New("database filename not set")
	ErrNoDbHandle      = errors.New("db connection not available")

	// ErrNotFound is returned for unknown cards, users, titles and stores.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when registering an email twice.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidPassword is returned on a credential mismatch.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrAlreadyClaimed is returned when claiming a card that left Unclaimed.
	ErrAlreadyClaimed = errors.New("card already claimed")
	// ErrInvalidState is returned when a lend/stop-lend precondition fails.
	ErrInvalidState = errors.New("card not in required state")
	// ErrForbidden is returned when the requester is not the card owner.
	ErrForbidden = errors.New("requester is not the owner")
	// ErrInvalidBorrower is returned when the borrower cannot be resolved,
	// or the owner tries to lend a card to themselves.
	ErrInvalidBorrower = errors.New("invalid borrower")
	// ErrSessionConflict is returned when another device holds an
	// unexpired play session for the card.
	ErrSessionConflict = errors.New("active session exists")
)

// CardState is the ownership/lending state of a card. A card starts
// Unclaimed, is claimed exactly once, and then cycles Claimed <-> Lent.
type CardState int

const (
	StateUnclaimed CardState = 0
	StateClaimed   CardState = 1
	StateLent      CardState = 2
)

// Label returns the human-readable status label. Values 3 and 4 are
// reserved for future loan states and currently unreachable.
func (s CardState) Label() string {
	switch s {
	case StateUnclaimed:
		return "No reclamat"
	case StateClaimed:
		return "Reclamat"
	case StateLent:
		return "En préstec"
	case 3:
		return "Préstec actiu"
	case 4:
		return "Préstec desactivat"
	default:
		return "Desconegut"
	}
}

// User represents a registered end user.
type User struct {
	// ID is the unique identifier for the user, derived from the email.
	ID string
	// Email is the unique login email.
	Email string
	// Password is the bcrypt hash of the user's password.
	Password string
	// Name is an optional display name.
	Name string
	// Location is an optional free-form location.
	Location string
	// IsAdmin grants access to the admin surface.
	IsAdmin bool
	// Created is the time the user registered.
	Created time.Time
}

// Title represents an audiobook title cards can be bound to.
type Title struct {
	ID          int64
	Title       string
	Author      string
	Language    string
	DurationSec int64
	// CoverURL is an optional external cover image location.
	CoverURL string
	// AbsShareCode is the share code on the streaming host.
	AbsShareCode string
	PriceRetail  float64
	Currency     string
	Active       bool
}

// Card represents a physical QR-coded card.
//
// Invariants: OwnerUserID is set iff UserState is Claimed or Lent,
// BorrowerUserID is set iff UserState is Lent. Both move only through
// the state machine transitions, never through admin patches.
type Card struct {
	// QR is the unique code printed on the card.
	QR string
	// TitleID references the audiobook this card redeems.
	TitleID int64
	// UserState is the claim/lend lifecycle state.
	UserState CardState
	// OwnerUserID is the user who claimed the card.
	OwnerUserID string
	// BorrowerUserID is the user currently borrowing the card.
	BorrowerUserID string
	// RetailState is the independent supply-chain status ("warehouse",
	// "in_store", "sold", ...). Not part of the lending lifecycle.
	RetailState string
	// StoreID references the retail store holding the card, if any.
	StoreID int64
	// BatchID references the print batch the card came from, if any.
	BatchID   int64
	ClaimedAt time.Time
	LentAt    time.Time
	UpdatedAt time.Time
	Notes     string
}

// CardPatch enumerates the card fields the admin surface may update.
// Lifecycle fields (user_state, owner, borrower, timestamps) are
// deliberately absent: those move only through the state machine.
type CardPatch struct {
	RetailState *string
	StoreID     *int64
	Notes       *string
}

// CardFilter narrows admin card listings.
type CardFilter struct {
	TitleID     int64
	StoreID     int64
	BatchID     int64
	UserState   *CardState
	RetailState string
	// QR matches cards whose code contains this substring.
	QR string
}

// Store represents a retail outlet selling cards.
type Store struct {
	ID           int64
	Name         string
	ChannelType  string
	City         string
	Country      string
	ContactEmail string
	ExternalRef  string
}

// Batch represents one print run of cards for a title.
type Batch struct {
	ID            int64
	TitleID       int64
	Qty           int64
	PrintedOn     time.Time
	PrinterVendor string
	Notes         string
}

// PlaySession is a time-bounded playback authorization for a card on a
// device. Rows are never updated; expiry is evaluated against ExpiresAt.
type PlaySession struct {
	ID       int64
	QR       string
	DeviceID string
	IssuedAt time.Time
	// ExpiresAt is advisory: checked at authorization time, reaped in
	// the background, not enforced by a timer.
	ExpiresAt time.Time
}

// ListeningProgress is the last reported playback position for a user
// and card. One row per (user, qr), overwritten on every report.
type ListeningProgress struct {
	UserID    string
	QR        string
	Position  float64
	UpdatedAt time.Time
}
