package database

import (
	"context"
	"time"

	"github.com/audiovook/audiovook-server/database/model"
	"github.com/audiovook/audiovook-server/database/sqlite"
)

type (
	Options struct {
		// Filename of the sqlite database.
		Filename string
	}

	// Repository bundles the per-entity repositories. All of them are
	// currently served by the same sqlite store.
	Repository struct {
		UserRepo
		TitleRepo
		CardRepo
		StoreRepo
		BatchRepo
		PlaySessionRepo
		ProgressRepo

		backgroundJobs func(ctx context.Context)
	}

	// UserRepo defines user database operations.
	UserRepo interface {
		// GetUser retrieves a user by email.
		GetUser(ctx context.Context, email string) (*model.User, error)
		// GetUserByID retrieves a user by id.
		GetUserByID(ctx context.Context, userID string) (*model.User, error)
		// CreateUser registers a new user, hashing the password.
		CreateUser(ctx context.Context, email, password string) (*model.User, error)
		// ValidateUser checks if the user exists and the password is correct.
		ValidateUser(ctx context.Context, email, password string) (*model.User, error)
		// ListUsers returns all users.
		ListUsers(ctx context.Context) ([]model.User, error)
		// SetUserAdmin grants admin rights to a user.
		SetUserAdmin(ctx context.Context, userID string) error
	}

	// TitleRepo defines audiobook title operations.
	TitleRepo interface {
		CreateTitle(ctx context.Context, title *model.Title) (int64, error)
		GetTitle(ctx context.Context, titleID int64) (*model.Title, error)
		UpdateTitle(ctx context.Context, title *model.Title) error
		// ListTitles returns all titles, or only the active ones.
		ListTitles(ctx context.Context, activeOnly bool) ([]model.Title, error)
	}

	// CardRepo defines card operations. The three state transitions are
	// compare-and-swap updates: they only commit if the card is still in
	// the expected state, so two racing transitions cannot both win.
	CardRepo interface {
		GetCard(ctx context.Context, qr string) (*model.Card, error)
		// InsertCards inserts a batch of freshly provisioned cards.
		InsertCards(ctx context.Context, cards []model.Card) error
		ListCards(ctx context.Context, filter model.CardFilter) ([]model.Card, error)
		// ClaimCard moves qr from Unclaimed to Claimed, owned by ownerID.
		ClaimCard(ctx context.Context, qr, ownerID string, now time.Time) error
		// LendCard moves qr from Claimed to Lent with the given borrower.
		LendCard(ctx context.Context, qr, borrowerID string, now time.Time) error
		// ReturnCard moves qr from Lent back to Claimed, clearing the borrower.
		ReturnCard(ctx context.Context, qr string, now time.Time) error
		// PatchCard applies the admin-updatable fields only.
		PatchCard(ctx context.Context, qr string, patch model.CardPatch) error
	}

	// StoreRepo defines retail store operations.
	StoreRepo interface {
		CreateStore(ctx context.Context, store *model.Store) (int64, error)
		GetStore(ctx context.Context, storeID int64) (*model.Store, error)
		UpdateStore(ctx context.Context, store *model.Store) error
		DeleteStore(ctx context.Context, storeID int64) error
		ListStores(ctx context.Context) ([]model.Store, error)
	}

	// BatchRepo defines card print batch operations.
	BatchRepo interface {
		CreateBatch(ctx context.Context, batch *model.Batch) (int64, error)
		ListBatches(ctx context.Context) ([]model.Batch, error)
	}

	// PlaySessionRepo defines playback session operations.
	PlaySessionRepo interface {
		// CreatePlaySession records a new authorization window.
		CreatePlaySession(ctx context.Context, session *model.PlaySession) (int64, error)
		// ActivePlaySession returns the most recent session for qr that
		// has not expired at the given time, or ErrNotFound.
		ActivePlaySession(ctx context.Context, qr string, now time.Time) (*model.PlaySession, error)
		// DeleteExpiredPlaySessions reaps sessions that expired before now.
		DeleteExpiredPlaySessions(ctx context.Context, now time.Time) (int64, error)
	}

	// ProgressRepo defines listening progress operations.
	ProgressRepo interface {
		// GetProgress returns the stored position or ErrNotFound.
		GetProgress(ctx context.Context, userID, qr string) (*model.ListeningProgress, error)
		// UpsertProgress stores the position, last write wins.
		UpsertProgress(ctx context.Context, progress *model.ListeningProgress) error
	}
)

// New opens the sqlite-backed repository.
func New(o *Options) (*Repository, error) {
	repo, err := sqlite.New(&sqlite.Options{
		Filename: o.Filename,
	})
	if err != nil {
		return nil, err
	}
	return &Repository{
		UserRepo:        repo,
		TitleRepo:       repo,
		CardRepo:        repo,
		StoreRepo:       repo,
		BatchRepo:       repo,
		PlaySessionRepo: repo,
		ProgressRepo:    repo,
		backgroundJobs:  repo.StartBackgroundJobs,
	}, nil
}

// StartBackgroundJobs starts periodic maintenance such as reaping
// expired play sessions. It returns immediately.
func (r *Repository) StartBackgroundJobs(ctx context.Context) {
	r.backgroundJobs(ctx)
}
