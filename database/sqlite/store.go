package sqlite

import (
	"context"
	"database/sql"

	"github.com/audiovook/audiovook-server/database/model"
)

// CreateStore inserts a new retail store and returns its id.
func (s *SqliteRepo) CreateStore(ctx context.Context, store *model.Store) (int64, error) {
	tx, err := s.dbWriteHandle.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	const query = `INSERT INTO stores (name, channeltype, city, country, contactemail, externalref)
		VALUES (?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, query,
		store.Name,
		store.ChannelType,
		store.City,
		store.Country,
		store.ContactEmail,
		store.ExternalRef)
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
	store.ID = id
	return id, nil
}

// GetStore retrieves a store by id.
func (s *SqliteRepo) GetStore(ctx context.Context, storeID int64) (*model.Store, error) {
	const query = `SELECT id, name, channeltype, city, country, contactemail, externalref
		FROM stores WHERE id=? LIMIT 1`
	var store model.Store
	if err := s.dbReadHandle.QueryRowxContext(ctx, query, storeID).Scan(
		&store.ID,
		&store.Name,
		&store.ChannelType,
		&store.City,
		&store.Country,
		&store.ContactEmail,
		&store.ExternalRef); err != nil {
		return nil, model.ErrNotFound
	}
	return &store, nil
}

// UpdateStore overwrites all store fields.
func (s *SqliteRepo) UpdateStore(ctx context.Context, store *model.Store) error {
	tx, err := s.dbWriteHandle.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const query = `UPDATE stores SET name=?, channeltype=?, city=?, country=?,
		contactemail=?, externalref=? WHERE id=?`
	res, err := tx.ExecContext(ctx, query,
		store.Name,
		store.ChannelType,
		store.City,
		store.Country,
		store.ContactEmail,
		store.ExternalRef,
		store.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return tx.Commit()
}

// DeleteStore removes a store.
func (s *SqliteRepo) DeleteStore(ctx context.Context, storeID int64) error {
	tx, err := s.dbWriteHandle.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM stores WHERE id=?`, storeID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return tx.Commit()
}

// ListStores returns all stores.
func (s *SqliteRepo) ListStores(ctx context.Context) ([]model.Store, error) {
	const query = `SELECT id, name, channeltype, city, country, contactemail, externalref
		FROM stores ORDER BY id`
	rows, err := s.dbReadHandle.QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stores []model.Store
	for rows.Next() {
		var store model.Store
		if err := rows.Scan(
			&store.ID,
			&store.Name,
			&store.ChannelType,
			&store.City,
			&store.Country,
			&store.ContactEmail,
			&store.ExternalRef); err != nil {
			return nil, err
		}
		stores = append(stores, store)
	}
	return stores, rows.Err()
}

// CreateBatch inserts a card print batch and returns its id.
func (s *SqliteRepo) CreateBatch(ctx context.Context, batch *model.Batch) (int64, error) {
	tx, err := s.dbWriteHandle.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	const query = `INSERT INTO batches (titleid, qty, printedon, printervendor, notes)
		VALUES (?, ?, ?, ?, ?)`
	var printedOn any
	if !batch.PrintedOn.IsZero() {
		printedOn = batch.PrintedOn
	}
	res, err := tx.ExecContext(ctx, query,
		batch.TitleID,
		batch.Qty,
		printedOn,
		batch.PrinterVendor,
		batch.Notes)
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
	batch.ID = id
	return id, nil
}

// ListBatches returns all card print batches.
func (s *SqliteRepo) ListBatches(ctx context.Context) ([]model.Batch, error) {
	const query = `SELECT id, titleid, qty, printedon, printervendor, notes
		FROM batches ORDER BY id`
	rows, err := s.dbReadHandle.QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []model.Batch
	for rows.Next() {
		var batch model.Batch
		var printedOn sql.NullTime
		if err := rows.Scan(
			&batch.ID,
			&batch.TitleID,
			&batch.Qty,
			&printedOn,
			&batch.PrinterVendor,
			&batch.Notes); err != nil {
			return nil, err
		}
		batch.PrintedOn = printedOn.Time
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}
