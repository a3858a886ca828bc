package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"zenbook/internal/models"
)

// CreateStaffMember inserts a staff member, assigning an id when empty.
func (db *DB) CreateStaffMember(ctx context.Context, m *models.StaffMember) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO staff_members (id, user_id, name, role, color, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.Name, m.Role, m.Color, m.IsActive, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert staff member: %w", err)
	}
	m.CreatedAt = now
	m.UpdatedAt = now
	return nil
}

// GetStaffMember returns a staff member owned by the account, or nil when
// no such row exists. Ownership is part of the lookup, not a separate check.
func (db *DB) GetStaffMember(ctx context.Context, accountID, staffID string) (*models.StaffMember, error) {
	var m models.StaffMember
	var role, color sql.NullString
	err := db.QueryRowContext(ctx, `
		SELECT id, user_id, name, role, color, is_active, created_at, updated_at
		FROM staff_members
		WHERE id = ? AND user_id = ?`,
		staffID, accountID,
	).Scan(&m.ID, &m.UserID, &m.Name, &role, &color, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.Role = role.String
	m.Color = color.String
	return &m, nil
}

// ListActiveStaff returns the account's active staff members.
func (db *DB) ListActiveStaff(ctx context.Context, accountID string) ([]models.StaffMember, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, name, role, color, is_active, created_at, updated_at
		FROM staff_members
		WHERE user_id = ? AND is_active = 1
		ORDER BY created_at, id`,
		accountID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var staff []models.StaffMember
	for rows.Next() {
		var m models.StaffMember
		var role, color sql.NullString
		if err := rows.Scan(&m.ID, &m.UserID, &m.Name, &role, &color, &m.IsActive, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		m.Role = role.String
		m.Color = color.String
		staff = append(staff, m)
	}
	return staff, rows.Err()
}

// SetStaffActive toggles the active flag; staff are never deleted because
// shifts, exceptions and reservations keep referencing them.
func (db *DB) SetStaffActive(ctx context.Context, accountID, staffID string, active bool) error {
	res, err := db.ExecContext(ctx, `
		UPDATE staff_members SET is_active = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		active, time.Now(), staffID, accountID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
