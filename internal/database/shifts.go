package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"zenbook/internal/models"
)

// UpsertShift creates or replaces the recurring shift for a staff member's
// day of week. The UNIQUE(staff_member_id, day_of_week) constraint plus the
// upsert keep at most one row per pair.
func (db *DB) UpsertShift(ctx context.Context, s *models.StaffShift) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO staff_shifts (id, staff_member_id, day_of_week, start_time, end_time, is_working, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(staff_member_id, day_of_week) DO UPDATE SET
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			is_working = excluded.is_working,
			updated_at = excluded.updated_at`,
		s.ID, s.StaffMemberID, s.DayOfWeek, s.StartTime, s.EndTime, s.IsWorking, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert shift: %w", err)
	}
	return nil
}

// GetShift returns the recurring shift for (staff, day of week), or nil
// when none is defined.
func (db *DB) GetShift(ctx context.Context, staffID string, dayOfWeek int) (*models.StaffShift, error) {
	var s models.StaffShift
	err := db.QueryRowContext(ctx, `
		SELECT id, staff_member_id, day_of_week, start_time, end_time, is_working, created_at, updated_at
		FROM staff_shifts
		WHERE staff_member_id = ? AND day_of_week = ?
		LIMIT 1`,
		staffID, dayOfWeek,
	).Scan(&s.ID, &s.StaffMemberID, &s.DayOfWeek, &s.StartTime, &s.EndTime, &s.IsWorking, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateException records a date-specific exception. Empty start and end
// times mean the staff member is unavailable the whole day.
func (db *DB) CreateException(ctx context.Context, e *models.ShiftException) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO shift_exceptions (id, staff_member_id, exception_date, start_time, end_time, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.StaffMemberID, e.Date,
		nullIfEmpty(e.StartTime), nullIfEmpty(e.EndTime), nullIfEmpty(e.Reason), now,
	)
	if err != nil {
		return fmt.Errorf("insert exception: %w", err)
	}
	e.CreatedAt = now
	return nil
}

// ListExceptions returns every exception for a staff member on a date.
// Overlapping rows are all returned; the engine applies them independently.
func (db *DB) ListExceptions(ctx context.Context, staffID, date string) ([]models.ShiftException, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, staff_member_id, exception_date, start_time, end_time, reason, created_at
		FROM shift_exceptions
		WHERE staff_member_id = ? AND exception_date = ?
		ORDER BY created_at, id`,
		staffID, date,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exceptions []models.ShiftException
	for rows.Next() {
		var e models.ShiftException
		var start, end, reason sql.NullString
		if err := rows.Scan(&e.ID, &e.StaffMemberID, &e.Date, &start, &end, &reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.StartTime = start.String
		e.EndTime = end.String
		e.Reason = reason.String
		exceptions = append(exceptions, e)
	}
	return exceptions, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
