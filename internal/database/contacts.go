package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"zenbook/internal/models"
)

// RecordContactVisit creates or updates the customer contact after a
// successful booking: bumps the visit counter and the last-visit date.
// Matching is by phone or email; without either there is nothing to track.
func (db *DB) RecordContactVisit(ctx context.Context, accountID, name, phone, email, visitDate string) error {
	if phone == "" && email == "" {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	var count int
	err = tx.QueryRowContext(ctx, `
		SELECT id, booking_count FROM contacts
		WHERE user_id = ? AND ((phone != '' AND phone = ?) OR (email != '' AND email = ?))
		LIMIT 1`,
		accountID, phone, email,
	).Scan(&id, &count)

	now := time.Now()
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO contacts (id, user_id, name, phone, email, booking_count, last_visit, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, 1, ?, ?, ?)`,
			uuid.NewString(), accountID, name, phone, email, visitDate, now, now,
		)
		if err != nil {
			return fmt.Errorf("insert contact: %w", err)
		}
	case err != nil:
		return fmt.Errorf("find contact: %w", err)
	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE contacts
			SET name = ?, phone = ?, email = ?, booking_count = ?, last_visit = ?, updated_at = ?
			WHERE id = ?`,
			name, phone, email, count+1, visitDate, now, id,
		)
		if err != nil {
			return fmt.Errorf("update contact: %w", err)
		}
	}

	return tx.Commit()
}

// GetContactByPhone returns the account's contact with the given phone.
func (db *DB) GetContactByPhone(ctx context.Context, accountID, phone string) (*models.Contact, error) {
	var c models.Contact
	var cPhone, cEmail, lastVisit sql.NullString
	err := db.QueryRowContext(ctx, `
		SELECT id, user_id, name, phone, email, booking_count, last_visit, created_at, updated_at
		FROM contacts
		WHERE user_id = ? AND phone = ?`,
		accountID, phone,
	).Scan(&c.ID, &c.UserID, &c.Name, &cPhone, &cEmail, &c.BookingCount, &lastVisit, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Phone = cPhone.String
	c.Email = cEmail.String
	c.LastVisit = lastVisit.String
	return &c, nil
}
