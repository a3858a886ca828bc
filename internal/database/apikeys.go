package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateAPIKey stores a pre-hashed API key for an account. Key issuance
// and hashing happen elsewhere; the store only ever sees the hash.
func (db *DB) CreateAPIKey(ctx context.Context, accountID, keyHash, name string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO api_keys (id, user_id, key_hash, name, is_active, created_at)
		VALUES (?, ?, ?, ?, 1, ?)`,
		uuid.NewString(), accountID, keyHash, name, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

// GetAccountIDByKeyHash resolves an active API key hash to its owning
// account id. ErrNotFound on unknown or deactivated keys.
func (db *DB) GetAccountIDByKeyHash(ctx context.Context, keyHash string) (string, error) {
	var accountID string
	err := db.QueryRowContext(ctx, `
		SELECT user_id FROM api_keys
		WHERE key_hash = ? AND is_active = 1`,
		keyHash,
	).Scan(&accountID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return accountID, nil
}

// TouchAPIKey bumps the key's last-used timestamp.
func (db *DB) TouchAPIKey(ctx context.Context, keyHash string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE api_keys SET last_used_at = ? WHERE key_hash = ?`,
		time.Now(), keyHash,
	)
	return err
}
