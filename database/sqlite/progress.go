package sqlite

import (
	"context"
	"time"

	"github.com/audiovook/audiovook-server/database/model"
)

// GetProgress returns the stored position for (user, qr) or ErrNotFound.
func (s *SqliteRepo) GetProgress(ctx context.Context, userID, qr string) (*model.ListeningProgress, error) {
	const query = `SELECT userid, qr, position, updatedat
		FROM progress WHERE userid=? AND qr=? LIMIT 1`
	var progress model.ListeningProgress
	if err := s.dbReadHandle.QueryRowxContext(ctx, query, userID, qr).Scan(
		&progress.UserID,
		&progress.QR,
		&progress.Position,
		&progress.UpdatedAt); err != nil {
		return nil, model.ErrNotFound
	}
	return &progress, nil
}

// UpsertProgress stores the position for (user, qr), last write wins.
// Positions are stored as reported; out-of-range values are the
// client's problem.
func (s *SqliteRepo) UpsertProgress(ctx context.Context, progress *model.ListeningProgress) error {
	if progress.UpdatedAt.IsZero() {
		progress.UpdatedAt = time.Now().UTC()
	}

	tx, err := s.dbWriteHandle.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const query = `INSERT INTO progress (userid, qr, position, updatedat)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (userid, qr) DO UPDATE SET position=excluded.position,
		updatedat=excluded.updatedat`
	if _, err := tx.ExecContext(ctx, query,
		progress.UserID,
		progress.QR,
		progress.Position,
		progress.UpdatedAt); err != nil {
		return err
	}
	return tx.Commit()
}
