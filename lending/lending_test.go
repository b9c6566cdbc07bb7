package lending

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/audiovook/audiovook-server/database"
	"github.com/audiovook/audiovook-server/database/model"
	"github.com/audiovook/audiovook-server/signurl"
)

type testEnv struct {
	repo    *database.Repository
	service *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo, err := database.New(&database.Options{
		Filename: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("database.New: %s", err)
	}

	signer := signurl.New(&signurl.Options{
		Host:   "abs.example.org",
		Secret: "test-secret",
		TTL:    4 * time.Hour,
	})
	return &testEnv{
		repo: repo,
		service: New(&Options{
			Repo:   repo,
			Signer: signer,
		}),
	}
}

// registerUser creates a user and returns its id.
func (e *testEnv) registerUser(t *testing.T, email string) string {
	t.Helper()
	user, err := e.repo.CreateUser(context.Background(), email, "secret123")
	if err != nil {
		t.Fatalf("CreateUser(%s): %s", email, err)
	}
	return user.ID
}

func (e *testEnv) insertCard(t *testing.T, qr string) {
	t.Helper()
	err := e.repo.InsertCards(context.Background(), []model.Card{{QR: qr, TitleID: 1}})
	if err != nil {
		t.Fatalf("InsertCards: %s", err)
	}
}

func TestClaim(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.registerUser(t, "owner@example.org")
	e.insertCard(t, "QR-1")

	card, err := e.service.Claim(ctx, "QR-1", owner)
	if err != nil {
		t.Fatalf("Claim: %s", err)
	}
	if card.UserState != model.StateClaimed || card.OwnerUserID != owner {
		t.Errorf("unexpected card after claim: %+v", card)
	}

	// the claim is permanent, even for the same user
	if _, err := e.service.Claim(ctx, "QR-1", owner); !errors.Is(err, model.ErrAlreadyClaimed) {
		t.Errorf("expected ErrAlreadyClaimed, got %v", err)
	}
	other := e.registerUser(t, "other@example.org")
	if _, err := e.service.Claim(ctx, "QR-1", other); !errors.Is(err, model.ErrAlreadyClaimed) {
		t.Errorf("expected ErrAlreadyClaimed, got %v", err)
	}

	if _, err := e.service.Claim(ctx, "QR-missing", owner); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLendStopLendRoundtrip(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.registerUser(t, "owner@example.org")
	borrower := e.registerUser(t, "borrower@example.org")
	e.insertCard(t, "QR-1")

	if _, err := e.service.Claim(ctx, "QR-1", owner); err != nil {
		t.Fatalf("Claim: %s", err)
	}

	card, err := e.service.Lend(ctx, "QR-1", owner, "borrower@example.org")
	if err != nil {
		t.Fatalf("Lend: %s", err)
	}
	if card.UserState != model.StateLent || card.BorrowerUserID != borrower {
		t.Errorf("unexpected card after lend: %+v", card)
	}

	card, err = e.service.StopLend(ctx, "QR-1", owner)
	if err != nil {
		t.Fatalf("StopLend: %s", err)
	}
	if card.UserState != model.StateClaimed {
		t.Errorf("expected claimed after stop-lend, got %d", card.UserState)
	}
	if card.BorrowerUserID != "" {
		t.Errorf("expected borrower cleared, got %q", card.BorrowerUserID)
	}
	if card.OwnerUserID != owner {
		t.Errorf("owner must survive the roundtrip")
	}

	// the card can be lent again, to someone else
	e.registerUser(t, "third@example.org")
	if _, err := e.service.Lend(ctx, "QR-1", owner, "third@example.org"); err != nil {
		t.Errorf("relend failed: %s", err)
	}
}

func TestLendGuards(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.registerUser(t, "owner@example.org")
	stranger := e.registerUser(t, "stranger@example.org")
	e.registerUser(t, "borrower@example.org")
	e.insertCard(t, "QR-1")

	// unclaimed card: invalid state, not forbidden
	if _, err := e.service.Lend(ctx, "QR-1", owner, "borrower@example.org"); !errors.Is(err, model.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}

	if _, err := e.service.Claim(ctx, "QR-1", owner); err != nil {
		t.Fatalf("Claim: %s", err)
	}

	// only the owner can lend
	if _, err := e.service.Lend(ctx, "QR-1", stranger, "borrower@example.org"); !errors.Is(err, model.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	// unknown borrower
	if _, err := e.service.Lend(ctx, "QR-1", owner, "nobody@example.org"); !errors.Is(err, model.ErrInvalidBorrower) {
		t.Errorf("expected ErrInvalidBorrower, got %v", err)
	}
	// lending to yourself
	if _, err := e.service.Lend(ctx, "QR-1", owner, "owner@example.org"); !errors.Is(err, model.ErrInvalidBorrower) {
		t.Errorf("expected ErrInvalidBorrower, got %v", err)
	}

	if _, err := e.service.Lend(ctx, "QR-1", owner, "borrower@example.org"); err != nil {
		t.Fatalf("Lend: %s", err)
	}

	// already lent
	if _, err := e.service.Lend(ctx, "QR-1", owner, "borrower@example.org"); !errors.Is(err, model.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
	// the borrower cannot end the loan
	borrower, _ := e.repo.GetUser(ctx, "borrower@example.org")
	if _, err := e.service.StopLend(ctx, "QR-1", borrower.ID); !errors.Is(err, model.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestStatus(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.registerUser(t, "owner@example.org")
	borrower := e.registerUser(t, "borrower@example.org")
	e.insertCard(t, "QR-1")

	status, err := e.service.Status(ctx, "QR-1", owner)
	if err != nil {
		t.Fatalf("Status: %s", err)
	}
	if !status.CanClaim || status.CanLend || status.CanPlay {
		t.Errorf("unexpected unclaimed status: %+v", status)
	}
	if status.StatusLabel != "No reclamat" {
		t.Errorf("unexpected label: %s", status.StatusLabel)
	}

	e.service.Claim(ctx, "QR-1", owner)
	e.service.Lend(ctx, "QR-1", owner, "borrower@example.org")

	status, _ = e.service.Status(ctx, "QR-1", owner)
	if status.StatusLabel != "En préstec" {
		t.Errorf("unexpected label: %s", status.StatusLabel)
	}
	if status.OwnerEmail != "owner@example.org" || status.BorrowerEmail != "borrower@example.org" {
		t.Errorf("emails not resolved: %+v", status)
	}
	if !status.CanStopLend || status.CanLend {
		t.Errorf("owner abilities wrong while lent: %+v", status)
	}
	// both sides may play while lent
	if !status.CanPlay {
		t.Errorf("owner should keep play rights")
	}
	status, _ = e.service.Status(ctx, "QR-1", borrower)
	if !status.CanPlay || status.CanStopLend {
		t.Errorf("borrower abilities wrong: %+v", status)
	}
}

func TestAuthorize(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.registerUser(t, "owner@example.org")
	borrower := e.registerUser(t, "borrower@example.org")
	stranger := e.registerUser(t, "stranger@example.org")
	e.insertCard(t, "QR-1")
	e.service.Claim(ctx, "QR-1", owner)

	auth, err := e.service.Authorize(ctx, "QR-1", owner)
	if err != nil {
		t.Fatalf("Authorize: %s", err)
	}
	if auth.Reason != "owner" {
		t.Errorf("expected owner reason, got %q", auth.Reason)
	}
	if auth.StartPosition != 0 {
		t.Errorf("expected zero start position, got %f", auth.StartPosition)
	}
	if !strings.Contains(auth.SignedURL, "/stream/QR-1?") {
		t.Errorf("unexpected signed url: %s", auth.SignedURL)
	}
	if auth.ExpiresIn != int64((4 * time.Hour).Seconds()) {
		t.Errorf("unexpected expires_in: %d", auth.ExpiresIn)
	}

	// borrower has no rights before the lend
	if _, err := e.service.Authorize(ctx, "QR-1", borrower); !errors.Is(err, model.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}

	e.service.Lend(ctx, "QR-1", owner, "borrower@example.org")

	// another device now holds the active session
	if _, err := e.service.Authorize(ctx, "QR-1", borrower); !errors.Is(err, model.ErrSessionConflict) {
		t.Errorf("expected ErrSessionConflict, got %v", err)
	}
	// same device may re-authorize
	if _, err := e.service.Authorize(ctx, "QR-1", owner); err != nil {
		t.Errorf("re-authorize failed: %s", err)
	}
	// strangers stay out regardless
	if _, err := e.service.Authorize(ctx, "QR-1", stranger); !errors.Is(err, model.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestAuthorizeResumesProgress(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.registerUser(t, "owner@example.org")
	e.insertCard(t, "QR-1")
	e.service.Claim(ctx, "QR-1", owner)

	if err := e.service.SaveProgress(ctx, "QR-1", owner, 100); err != nil {
		t.Fatalf("SaveProgress: %s", err)
	}
	if err := e.service.SaveProgress(ctx, "QR-1", owner, 200); err != nil {
		t.Fatalf("SaveProgress: %s", err)
	}

	auth, err := e.service.Authorize(ctx, "QR-1", owner)
	if err != nil {
		t.Fatalf("Authorize: %s", err)
	}
	if auth.StartPosition != 200 {
		t.Errorf("expected position 200, got %f", auth.StartPosition)
	}
}
