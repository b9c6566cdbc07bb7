package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/audiovook/audiovook-server/database/model"
)

const cardColumns = `qr,
	titleid,
	userstate,
	owneruserid,
	borroweruserid,
	retailstate,
	storeid,
	batchid,
	claimedat,
	lentat,
	updatedat,
	notes`

// GetCard retrieves a card by its QR code.
func (s *SqliteRepo) GetCard(ctx context.Context, qr string) (*model.Card, error) {
	const query = `SELECT ` + cardColumns + ` FROM cards WHERE qr=? LIMIT 1`
	return sqlScanCard(s.dbReadHandle.QueryRowxContext(ctx, query, qr))
}

// InsertCards inserts a batch of freshly provisioned cards in one transaction.
func (s *SqliteRepo) InsertCards(ctx context.Context, cards []model.Card) error {
	tx, err := s.dbWriteHandle.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const query = `INSERT INTO cards (qr, titleid, userstate, retailstate,
		storeid, batchid, updatedat, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	for i := range cards {
		card := &cards[i]
		if card.RetailState == "" {
			card.RetailState = "warehouse"
		}
		if card.UpdatedAt.IsZero() {
			card.UpdatedAt = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx, query,
			card.QR,
			card.TitleID,
			card.UserState,
			card.RetailState,
			card.StoreID,
			card.BatchID,
			card.UpdatedAt,
			card.Notes); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListCards returns cards matching the filter.
func (s *SqliteRepo) ListCards(ctx context.Context, filter model.CardFilter) ([]model.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards`
	var conds []string
	var args []any
	if filter.TitleID != 0 {
		conds = append(conds, "titleid=?")
		args = append(args, filter.TitleID)
	}
	if filter.StoreID != 0 {
		conds = append(conds, "storeid=?")
		args = append(args, filter.StoreID)
	}
	if filter.BatchID != 0 {
		conds = append(conds, "batchid=?")
		args = append(args, filter.BatchID)
	}
	if filter.UserState != nil {
		conds = append(conds, "userstate=?")
		args = append(args, *filter.UserState)
	}
	if filter.RetailState != "" {
		conds = append(conds, "retailstate=?")
		args = append(args, filter.RetailState)
	}
	if filter.QR != "" {
		conds = append(conds, "qr LIKE ?")
		args = append(args, "%"+filter.QR+"%")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY qr"

	rows, err := s.dbReadHandle.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []model.Card
	for rows.Next() {
		card, err := sqlScanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *card)
	}
	return cards, rows.Err()
}

// ClaimCard moves qr from Unclaimed to Claimed. The state check is part
// of the UPDATE itself so two racing claims cannot both commit.
func (s *SqliteRepo) ClaimCard(ctx context.Context, qr, ownerID string, now time.Time) error {
	const query = `UPDATE cards SET userstate=?, owneruserid=?, claimedat=?, updatedat=?
		WHERE qr=? AND userstate=?`
	return s.casUpdate(ctx, qr, model.ErrAlreadyClaimed, query,
		model.StateClaimed, ownerID, now, now, qr, model.StateUnclaimed)
}

// LendCard moves qr from Claimed to Lent with the given borrower.
func (s *SqliteRepo) LendCard(ctx context.Context, qr, borrowerID string, now time.Time) error {
	const query = `UPDATE cards SET userstate=?, borroweruserid=?, lentat=?, updatedat=?
		WHERE qr=? AND userstate=?`
	return s.casUpdate(ctx, qr, model.ErrInvalidState, query,
		model.StateLent, borrowerID, now, now, qr, model.StateClaimed)
}

// ReturnCard moves qr from Lent back to Claimed, clearing the borrower.
func (s *SqliteRepo) ReturnCard(ctx context.Context, qr string, now time.Time) error {
	const query = `UPDATE cards SET userstate=?, borroweruserid='', lentat=NULL, updatedat=?
		WHERE qr=? AND userstate=?`
	return s.casUpdate(ctx, qr, model.ErrInvalidState, query,
		model.StateClaimed, now, qr, model.StateLent)
}

// casUpdate runs a guarded state transition. A zero row count means the
// card either does not exist or was no longer in the expected state; the
// follow-up read distinguishes the two.
func (s *SqliteRepo) casUpdate(ctx context.Context, qr string, stateErr error, query string, args ...any) error {
	tx, err := s.dbWriteHandle.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		tx.Rollback()
		if _, err := s.GetCard(ctx, qr); err != nil {
			return model.ErrNotFound
		}
		return stateErr
	}
	return tx.Commit()
}

// PatchCard applies the admin-updatable fields only. Lifecycle columns
// are not reachable from here.
func (s *SqliteRepo) PatchCard(ctx context.Context, qr string, patch model.CardPatch) error {
	var sets []string
	var args []any
	if patch.RetailState != nil {
		sets = append(sets, "retailstate=?")
		args = append(args, *patch.RetailState)
	}
	if patch.StoreID != nil {
		sets = append(sets, "storeid=?")
		args = append(args, *patch.StoreID)
	}
	if patch.Notes != nil {
		sets = append(sets, "notes=?")
		args = append(args, *patch.Notes)
	}
	if len(sets) == 0 {
		// nothing to do, but still report unknown cards
		_, err := s.GetCard(ctx, qr)
		return err
	}
	sets = append(sets, "updatedat=?")
	args = append(args, time.Now().UTC(), qr)

	tx, err := s.dbWriteHandle.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE cards SET `+strings.Join(sets, ", ")+` WHERE qr=?`, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return tx.Commit()
}

func sqlScanCard(row rowScanner) (*model.Card, error) {
	var card model.Card
	var claimedAt, lentAt sql.NullTime
	if err := row.Scan(
		&card.QR,
		&card.TitleID,
		&card.UserState,
		&card.OwnerUserID,
		&card.BorrowerUserID,
		&card.RetailState,
		&card.StoreID,
		&card.BatchID,
		&claimedAt,
		&lentAt,
		&card.UpdatedAt,
		&card.Notes); err != nil {
		return nil, model.ErrNotFound
	}
	card.ClaimedAt = claimedAt.Time
	card.LentAt = lentAt.Time
	return &card, nil
}
