package sqlite

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/audiovook/audiovook-server/database/model"
	"github.com/audiovook/audiovook-server/idhash"
)

// GetUser retrieves a user by email.
func (s *SqliteRepo) GetUser(ctx context.Context, email string) (*model.User, error) {
	const query = `SELECT id,
		email,
		password,
		name,
		location,
		isadmin,
		created FROM users WHERE email=? LIMIT 1`
	return sqlScanUser(s.dbReadHandle.QueryRowxContext(ctx, query, email))
}

// GetUserByID retrieves a user from the database by their ID.
func (s *SqliteRepo) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	const query = `SELECT id,
		email,
		password,
		name,
		location,
		isadmin,
		created FROM users WHERE id=? LIMIT 1`
	return sqlScanUser(s.dbReadHandle.QueryRowxContext(ctx, query, userID))
}

// CreateUser registers a new user. The id is derived from the email so
// re-registration attempts collide on the primary key as well.
func (s *SqliteRepo) CreateUser(ctx context.Context, email, password string) (*model.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:       idhash.IdHash(email),
		Email:    email,
		Password: string(hashedPassword),
		Created:  time.Now().UTC(),
	}

	if existing, err := s.GetUser(ctx, email); err == nil && existing != nil {
		return nil, model.ErrAlreadyExists
	}

	tx, err := s.dbWriteHandle.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	const query = `INSERT INTO users (id, email, password, name, location, isadmin, created)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Password,
		user.Name,
		user.Location,
		user.IsAdmin,
		user.Created); err != nil {
		return nil, model.ErrAlreadyExists
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return user, nil
}

// ValidateUser checks if the user exists and the password is correct.
func (s *SqliteRepo) ValidateUser(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.GetUser(ctx, email)
	if err != nil {
		return nil, model.ErrNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, model.ErrInvalidPassword
	}
	return user, nil
}

// ListUsers returns all users.
func (s *SqliteRepo) ListUsers(ctx context.Context) ([]model.User, error) {
	const query = `SELECT id,
		email,
		password,
		name,
		location,
		isadmin,
		created FROM users ORDER BY created`
	rows, err := s.dbReadHandle.QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var user model.User
		if err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.Password,
			&user.Name,
			&user.Location,
			&user.IsAdmin,
			&user.Created); err != nil {
			return nil, err
		}
		// No need to return hashed pw
		user.Password = ""
		users = append(users, user)
	}
	return users, rows.Err()
}

// SetUserAdmin grants admin rights to a user.
func (s *SqliteRepo) SetUserAdmin(ctx context.Context, userID string) error {
	tx, err := s.dbWriteHandle.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE users SET isadmin=1 WHERE id=?`, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func sqlScanUser(row rowScanner) (*model.User, error) {
	var user model.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Password,
		&user.Name,
		&user.Location,
		&user.IsAdmin,
		&user.Created); err != nil {
		return nil, model.ErrNotFound
	}
	return &user, nil
}
