package provider

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tunesync/internal/core"
)

const userSchema = `
CREATE TABLE IF NOT EXISTS users (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE
);
`

// UserStore resolves the minimal user identity the task runtime needs.
// Accounts, password hashing and session issuance are out of scope.
type UserStore struct {
	db *sql.DB
}

var _ core.UserStore = (*UserStore)(nil)

func NewUserStore(db *sql.DB) (*UserStore, error) {
	if _, err := db.Exec(userSchema); err != nil {
		return nil, fmt.Errorf("create user schema: %w", err)
	}
	return &UserStore{db: db}, nil
}

// Get resolves a user by id; a missing user yields (nil, nil).
func (s *UserStore) Get(ctx context.Context, id int64) (*core.User, error) {
	user := core.User{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT username FROM users WHERE id = ?`, id).Scan(&user.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", id, err)
	}
	return &user, nil
}

// Create inserts a user, returning its id.
func (s *UserStore) Create(ctx context.Context, username string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username) VALUES (?)`, username)
	if err != nil {
		return 0, fmt.Errorf("create user %q: %w", username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create user %q: %w", username, err)
	}
	return id, nil
}
