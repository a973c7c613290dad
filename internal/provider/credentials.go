// Package provider implements the provider port for each supported streaming
// service, plus the sqlite-backed user and credential stores and the factory
// that assembles authenticated, cache-wrapped drivers per user.
package provider

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tunesync/internal/core"
)

const credentialSchema = `
CREATE TABLE IF NOT EXISTS credentials (
	user_id    INTEGER NOT NULL,
	service    TEXT NOT NULL,
	data       TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (user_id, service)
);
`

// CredentialStore keeps per-user, per-provider credential blobs in sqlite.
// Values are an opaque JSON map; encryption and the link/unlink web flows
// live outside this process.
type CredentialStore struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ core.CredentialStore = (*CredentialStore)(nil)

func NewCredentialStore(db *sql.DB, logger *zap.Logger) (*CredentialStore, error) {
	if _, err := db.Exec(credentialSchema); err != nil {
		return nil, fmt.Errorf("create credential schema: %w", err)
	}
	return &CredentialStore{db: db, logger: logger}, nil
}

// Get fetches the user's credential blob for service. Missing credentials
// surface as ErrAuth so drivers fail construction cleanly.
func (s *CredentialStore) Get(ctx context.Context, userID int64, service core.ServiceName) (*core.Credentials, error) {
	var raw string
	var updatedAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT data, updated_at FROM credentials
		WHERE user_id = ? AND service = ?`,
		userID, string(service)).Scan(&raw, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %d has no %s credentials", core.ErrAuth, userID, service)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s credentials for user %d: %w", service, userID, err)
	}

	creds := core.Credentials{
		UserID:    userID,
		Service:   service,
		UpdatedAt: time.Unix(updatedAt, 0),
	}
	if err := json.Unmarshal([]byte(raw), &creds.Values); err != nil {
		return nil, fmt.Errorf("decode %s credentials for user %d: %w", service, userID, err)
	}
	return &creds, nil
}

// Set upserts the credential blob, stamping UpdatedAt.
func (s *CredentialStore) Set(ctx context.Context, creds *core.Credentials) error {
	raw, err := json.Marshal(creds.Values)
	if err != nil {
		return fmt.Errorf("encode %s credentials for user %d: %w", creds.Service, creds.UserID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credentials (user_id, service, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, service) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		creds.UserID, string(creds.Service), string(raw), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("store %s credentials for user %d: %w", creds.Service, creds.UserID, err)
	}
	return nil
}

// Delete removes the credential blob. Called when an OAuth refresh fails so
// the user is forced to re-link.
func (s *CredentialStore) Delete(ctx context.Context, userID int64, service core.ServiceName) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE user_id = ? AND service = ?`,
		userID, string(service))
	if err != nil {
		return fmt.Errorf("delete %s credentials for user %d: %w", service, userID, err)
	}

	s.logger.Info("Credentials deleted",
		zap.Int64("user_id", userID),
		zap.String("service", string(service)))
	return nil
}
