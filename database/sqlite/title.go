package sqlite

import (
	"context"

	"github.com/audiovook/audiovook-server/database/model"
)

const titleColumns = `id,
	title,
	author,
	language,
	durationsec,
	coverurl,
	abssharecode,
	priceretail,
	currency,
	active`

// CreateTitle inserts a new audiobook title and returns its id.
func (s *SqliteRepo) CreateTitle(ctx context.Context, title *model.Title) (int64, error) {
	tx, err := s.dbWriteHandle.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	const query = `INSERT INTO titles (title, author, language, durationsec,
		coverurl, abssharecode, priceretail, currency, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, query,
		title.Title,
		title.Author,
		title.Language,
		title.DurationSec,
		title.CoverURL,
		title.AbsShareCode,
		title.PriceRetail,
		title.Currency,
		title.Active)
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
	title.ID = id
	return id, nil
}

// GetTitle retrieves a title by id.
func (s *SqliteRepo) GetTitle(ctx context.Context, titleID int64) (*model.Title, error) {
	const query = `SELECT ` + titleColumns + ` FROM titles WHERE id=? LIMIT 1`
	return sqlScanTitle(s.dbReadHandle.QueryRowxContext(ctx, query, titleID))
}

// UpdateTitle overwrites all updatable title fields.
func (s *SqliteRepo) UpdateTitle(ctx context.Context, title *model.Title) error {
	tx, err := s.dbWriteHandle.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const query = `UPDATE titles SET title=?, author=?, language=?, durationsec=?,
		coverurl=?, abssharecode=?, priceretail=?, currency=?, active=?
		WHERE id=?`
	res, err := tx.ExecContext(ctx, query,
		title.Title,
		title.Author,
		title.Language,
		title.DurationSec,
		title.CoverURL,
		title.AbsShareCode,
		title.PriceRetail,
		title.Currency,
		title.Active,
		title.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return tx.Commit()
}

// ListTitles returns all titles, or only the active ones.
func (s *SqliteRepo) ListTitles(ctx context.Context, activeOnly bool) ([]model.Title, error) {
	query := `SELECT ` + titleColumns + ` FROM titles`
	if activeOnly {
		query += ` WHERE active=1`
	}
	query += ` ORDER BY id`
	rows, err := s.dbReadHandle.QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var titles []model.Title
	for rows.Next() {
		title, err := sqlScanTitle(rows)
		if err != nil {
			return nil, err
		}
		titles = append(titles, *title)
	}
	return titles, rows.Err()
}

func sqlScanTitle(row rowScanner) (*model.Title, error) {
	var title model.Title
	if err := row.Scan(
		&title.ID,
		&title.Title,
		&title.Author,
		&title.Language,
		&title.DurationSec,
		&title.CoverURL,
		&title.AbsShareCode,
		&title.PriceRetail,
		&title.Currency,
		&title.Active); err != nil {
		return nil, model.ErrNotFound
	}
	return &title, nil
}
