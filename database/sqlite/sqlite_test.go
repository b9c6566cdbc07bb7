package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/audiovook/audiovook-server/database/model"
)

// newTestRepo opens a fresh database in a per-test temp directory.
func newTestRepo(t *testing.T) *SqliteRepo {
	t.Helper()
	repo, err := New(&Options{
		Filename: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	return repo
}

func insertTestCard(t *testing.T, repo *SqliteRepo, qr string) {
	t.Helper()
	err := repo.InsertCards(context.Background(), []model.Card{
		{QR: qr, TitleID: 1},
	})
	if err != nil {
		t.Fatalf("InsertCards: %s", err)
	}
}

func TestNewRequiresFilename(t *testing.T) {
	if _, err := New(nil); err != model.ErrNoConfiguration {
		t.Errorf("expected ErrNoConfiguration, got %v", err)
	}
	if _, err := New(&Options{}); err != model.ErrNoConfiguration {
		t.Errorf("expected ErrNoConfiguration, got %v", err)
	}
}

func TestInsertAndGetCard(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	insertTestCard(t, repo, "QR-1")

	card, err := repo.GetCard(ctx, "QR-1")
	if err != nil {
		t.Fatalf("GetCard: %s", err)
	}
	if card.UserState != model.StateUnclaimed {
		t.Errorf("expected unclaimed, got %d", card.UserState)
	}
	if card.RetailState != "warehouse" {
		t.Errorf("expected warehouse default, got %q", card.RetailState)
	}

	if _, err := repo.GetCard(ctx, "QR-unknown"); err != model.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClaimCardOnce(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	insertTestCard(t, repo, "QR-1")
	now := time.Now().UTC()

	if err := repo.ClaimCard(ctx, "QR-1", "owner1", now); err != nil {
		t.Fatalf("ClaimCard: %s", err)
	}

	card, err := repo.GetCard(ctx, "QR-1")
	if err != nil {
		t.Fatalf("GetCard: %s", err)
	}
	if card.UserState != model.StateClaimed {
		t.Errorf("expected claimed, got %d", card.UserState)
	}
	if card.OwnerUserID != "owner1" {
		t.Errorf("unexpected owner: %q", card.OwnerUserID)
	}
	if card.ClaimedAt.IsZero() {
		t.Errorf("expected claimedat to be set")
	}

	// a second claim must lose, whoever sends it
	if err := repo.ClaimCard(ctx, "QR-1", "owner2", now); err != model.ErrAlreadyClaimed {
		t.Errorf("expected ErrAlreadyClaimed, got %v", err)
	}
	if err := repo.ClaimCard(ctx, "QR-missing", "owner1", now); err != model.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLendAndReturnCard(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	insertTestCard(t, repo, "QR-1")
	now := time.Now().UTC()

	// lend before claim fails the state guard
	if err := repo.LendCard(ctx, "QR-1", "borrower1", now); err != model.ErrInvalidState {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}

	if err := repo.ClaimCard(ctx, "QR-1", "owner1", now); err != nil {
		t.Fatalf("ClaimCard: %s", err)
	}
	if err := repo.LendCard(ctx, "QR-1", "borrower1", now); err != nil {
		t.Fatalf("LendCard: %s", err)
	}

	card, _ := repo.GetCard(ctx, "QR-1")
	if card.UserState != model.StateLent || card.BorrowerUserID != "borrower1" {
		t.Errorf("unexpected card after lend: %+v", card)
	}
	if card.LentAt.IsZero() {
		t.Errorf("expected lentat to be set")
	}

	// double lend fails
	if err := repo.LendCard(ctx, "QR-1", "borrower2", now); err != model.ErrInvalidState {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}

	if err := repo.ReturnCard(ctx, "QR-1", now); err != nil {
		t.Fatalf("ReturnCard: %s", err)
	}
	card, _ = repo.GetCard(ctx, "QR-1")
	if card.UserState != model.StateClaimed {
		t.Errorf("expected claimed after return, got %d", card.UserState)
	}
	if card.BorrowerUserID != "" {
		t.Errorf("expected borrower cleared, got %q", card.BorrowerUserID)
	}
	if !card.LentAt.IsZero() {
		t.Errorf("expected lentat cleared")
	}
	if card.OwnerUserID != "owner1" {
		t.Errorf("owner must survive the roundtrip, got %q", card.OwnerUserID)
	}

	// return when not lent fails
	if err := repo.ReturnCard(ctx, "QR-1", now); err != model.ErrInvalidState {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
}

func TestListCardsFilter(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	err := repo.InsertCards(ctx, []model.Card{
		{QR: "QR-a", TitleID: 1, BatchID: 10},
		{QR: "QR-b", TitleID: 1, BatchID: 11},
		{QR: "QR-c", TitleID: 2, BatchID: 10},
	})
	if err != nil {
		t.Fatalf("InsertCards: %s", err)
	}

	cards, err := repo.ListCards(ctx, model.CardFilter{TitleID: 1})
	if err != nil {
		t.Fatalf("ListCards: %s", err)
	}
	if len(cards) != 2 {
		t.Errorf("expected 2 cards for title 1, got %d", len(cards))
	}

	cards, _ = repo.ListCards(ctx, model.CardFilter{BatchID: 10})
	if len(cards) != 2 {
		t.Errorf("expected 2 cards for batch 10, got %d", len(cards))
	}

	state := model.StateUnclaimed
	cards, _ = repo.ListCards(ctx, model.CardFilter{TitleID: 2, UserState: &state})
	if len(cards) != 1 || cards[0].QR != "QR-c" {
		t.Errorf("unexpected filter result: %+v", cards)
	}

	cards, _ = repo.ListCards(ctx, model.CardFilter{QR: "R-b"})
	if len(cards) != 1 || cards[0].QR != "QR-b" {
		t.Errorf("unexpected substring match: %+v", cards)
	}
}

func TestPatchCard(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	insertTestCard(t, repo, "QR-1")

	retailState := "in_store"
	storeID := int64(7)
	err := repo.PatchCard(ctx, "QR-1", model.CardPatch{
		RetailState: &retailState,
		StoreID:     &storeID,
	})
	if err != nil {
		t.Fatalf("PatchCard: %s", err)
	}

	card, _ := repo.GetCard(ctx, "QR-1")
	if card.RetailState != "in_store" || card.StoreID != 7 {
		t.Errorf("patch not applied: %+v", card)
	}
	if card.UserState != model.StateUnclaimed {
		t.Errorf("patch must not touch the lifecycle state")
	}

	// empty patch still reports unknown cards
	if err := repo.PatchCard(ctx, "QR-unknown", model.CardPatch{}); err != model.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := repo.PatchCard(ctx, "QR-unknown", model.CardPatch{Notes: &retailState}); err != model.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPlaySessions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := repo.ActivePlaySession(ctx, "QR-1", now); err != model.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	_, err := repo.CreatePlaySession(ctx, &model.PlaySession{
		QR:        "QR-1",
		DeviceID:  "dev1",
		IssuedAt:  now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(2 * time.Hour),
	})
	if err != nil {
		t.Fatalf("CreatePlaySession: %s", err)
	}
	_, err = repo.CreatePlaySession(ctx, &model.PlaySession{
		QR:        "QR-1",
		DeviceID:  "dev2",
		IssuedAt:  now.Add(-1 * time.Hour),
		ExpiresAt: now.Add(3 * time.Hour),
	})
	if err != nil {
		t.Fatalf("CreatePlaySession: %s", err)
	}

	// newest unexpired session wins
	session, err := repo.ActivePlaySession(ctx, "QR-1", now)
	if err != nil {
		t.Fatalf("ActivePlaySession: %s", err)
	}
	if session.DeviceID != "dev2" {
		t.Errorf("expected newest session, got device %q", session.DeviceID)
	}

	// past the expiry nothing is active
	if _, err := repo.ActivePlaySession(ctx, "QR-1", now.Add(4*time.Hour)); err != model.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	n, err := repo.DeleteExpiredPlaySessions(ctx, now.Add(4*time.Hour))
	if err != nil {
		t.Fatalf("DeleteExpiredPlaySessions: %s", err)
	}
	if n != 2 {
		t.Errorf("expected 2 reaped sessions, got %d", n)
	}
}

func TestProgressUpsert(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := repo.GetProgress(ctx, "user1", "QR-1"); err != model.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	err := repo.UpsertProgress(ctx, &model.ListeningProgress{
		UserID: "user1", QR: "QR-1", Position: 100, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("UpsertProgress: %s", err)
	}
	// last write wins, even when rewinding
	err = repo.UpsertProgress(ctx, &model.ListeningProgress{
		UserID: "user1", QR: "QR-1", Position: 42.5, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("UpsertProgress: %s", err)
	}

	progress, err := repo.GetProgress(ctx, "user1", "QR-1")
	if err != nil {
		t.Fatalf("GetProgress: %s", err)
	}
	if progress.Position != 42.5 {
		t.Errorf("expected 42.5, got %f", progress.Position)
	}

	// progress is per user
	err = repo.UpsertProgress(ctx, &model.ListeningProgress{
		UserID: "user2", QR: "QR-1", Position: 7, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("UpsertProgress: %s", err)
	}
	progress, _ = repo.GetProgress(ctx, "user1", "QR-1")
	if progress.Position != 42.5 {
		t.Errorf("user1 progress overwritten by user2")
	}
}

func TestUserLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	user, err := repo.CreateUser(ctx, "a@b.com", "secret123")
	if err != nil {
		t.Fatalf("CreateUser: %s", err)
	}
	if user.ID == "" {
		t.Errorf("expected a user id")
	}

	if _, err := repo.CreateUser(ctx, "a@b.com", "other"); err != model.ErrAlreadyExists {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}

	if _, err := repo.ValidateUser(ctx, "a@b.com", "secret123"); err != nil {
		t.Errorf("ValidateUser: %s", err)
	}
	if _, err := repo.ValidateUser(ctx, "a@b.com", "wrong"); err != model.ErrInvalidPassword {
		t.Errorf("expected ErrInvalidPassword, got %v", err)
	}
	if _, err := repo.ValidateUser(ctx, "nobody@b.com", "x"); err != model.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	byID, err := repo.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %s", err)
	}
	if byID.Email != "a@b.com" {
		t.Errorf("unexpected email: %s", byID.Email)
	}
	if byID.IsAdmin {
		t.Errorf("new users must not be admin")
	}

	if err := repo.SetUserAdmin(ctx, user.ID); err != nil {
		t.Fatalf("SetUserAdmin: %s", err)
	}
	byID, _ = repo.GetUserByID(ctx, user.ID)
	if !byID.IsAdmin {
		t.Errorf("expected admin after SetUserAdmin")
	}

	if err := repo.SetUserAdmin(ctx, "no-such-id"); err != model.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	users, err := repo.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %s", err)
	}
	if len(users) != 1 {
		t.Errorf("expected 1 user, got %d", len(users))
	}
	if users[0].Password != "" {
		t.Errorf("ListUsers must not expose password hashes")
	}
}

func TestTitleLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.CreateTitle(ctx, &model.Title{
		Title:  "El Petit Príncep",
		Author: "Antoine de Saint-Exupéry",
		Active: true,
	})
	if err != nil {
		t.Fatalf("CreateTitle: %s", err)
	}

	title, err := repo.GetTitle(ctx, id)
	if err != nil {
		t.Fatalf("GetTitle: %s", err)
	}
	if title.Title != "El Petit Príncep" {
		t.Errorf("unexpected title: %s", title.Title)
	}

	title.Active = false
	if err := repo.UpdateTitle(ctx, title); err != nil {
		t.Fatalf("UpdateTitle: %s", err)
	}

	active, _ := repo.ListTitles(ctx, true)
	if len(active) != 0 {
		t.Errorf("expected no active titles, got %d", len(active))
	}
	all, _ := repo.ListTitles(ctx, false)
	if len(all) != 1 {
		t.Errorf("expected 1 title, got %d", len(all))
	}

	if _, err := repo.GetTitle(ctx, 9999); err != model.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
