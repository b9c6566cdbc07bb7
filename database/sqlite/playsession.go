package sqlite

import (
	"context"
	"log"
	"time"

	"github.com/audiovook/audiovook-server/database/model"
)

// CreatePlaySession records a new authorization window and returns its id.
func (s *SqliteRepo) CreatePlaySession(ctx context.Context, session *model.PlaySession) (int64, error) {
	tx, err := s.dbWriteHandle.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	const query = `INSERT INTO playsessions (qr, deviceid, issuedat, expiresat)
		VALUES (?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, query,
		session.QR,
		session.DeviceID,
		session.IssuedAt,
		session.ExpiresAt)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	session.ID = id
	return id, nil
}

// ActivePlaySession returns the most recent session for qr that has not
// expired at the given time, or ErrNotFound.
func (s *SqliteRepo) ActivePlaySession(ctx context.Context, qr string, now time.Time) (*model.PlaySession, error) {
	const query = `SELECT id, qr, deviceid, issuedat, expiresat
		FROM playsessions WHERE qr=? AND expiresat>?
		ORDER BY issuedat DESC LIMIT 1`
	var session model.PlaySession
	if err := s.dbReadHandle.QueryRowxContext(ctx, query, qr, now).Scan(
		&session.ID,
		&session.QR,
		&session.DeviceID,
		&session.IssuedAt,
		&session.ExpiresAt); err != nil {
		return nil, model.ErrNotFound
	}
	return &session, nil
}

// DeleteExpiredPlaySessions reaps sessions that expired before now.
func (s *SqliteRepo) DeleteExpiredPlaySessions(ctx context.Context, now time.Time) (int64, error) {
	tx, err := s.dbWriteHandle.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM playsessions WHERE expiresat<=?`, now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// playSessionReaper deletes expired sessions on an interval until ctx is done.
func (s *SqliteRepo) playSessionReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.DeleteExpiredPlaySessions(ctx, time.Now().UTC()); err != nil {
				log.Printf("Error reaping play sessions: %s\n", err)
			} else if n > 0 {
				log.Printf("Reaped %d expired play sessions\n", n)
			}
		}
	}
}
