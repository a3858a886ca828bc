package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"zenbook/internal/models"
	"zenbook/internal/schedule"
)

// ListActiveReservations returns the non-cancelled reservations for a staff
// member on a date, scoped to the owning account.
func (db *DB) ListActiveReservations(ctx context.Context, accountID, staffID, date string) ([]models.Reservation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, customer_name, customer_phone, customer_email,
		       date, time, end_time, staff_member_id, product_id, status, source, notes,
		       created_at, updated_at
		FROM reservations
		WHERE user_id = ? AND staff_member_id = ? AND date = ? AND status != 'cancelled'
		ORDER BY time`,
		accountID, staffID, date,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReservations(rows)
}

// CreateReservation re-checks the staff overlap inside the transaction and
// inserts. defaultDurationMinutes fills in the blocked length of existing
// open-ended reservations, matching the engine's policy. A conflict found
// here means a concurrent booking won the race after validation: ErrConflict.
func (db *DB) CreateReservation(ctx context.Context, r *models.Reservation, defaultDurationMinutes int) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if r.StaffMemberID != "" {
		conflict, err := txHasOverlap(ctx, tx, r, defaultDurationMinutes)
		if err != nil {
			return err
		}
		if conflict {
			return ErrConflict
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reservations (
			id, user_id, customer_name, customer_phone, customer_email,
			date, time, end_time, staff_member_id, product_id, status, source, notes,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.CustomerName,
		nullIfEmpty(r.CustomerPhone), nullIfEmpty(r.CustomerEmail),
		r.Date, r.Time, nullIfEmpty(r.EndTime),
		nullIfEmpty(r.StaffMemberID), nullIfEmpty(r.ProductID),
		r.Status, r.Source, nullIfEmpty(r.Notes),
		now, now,
	)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	r.CreatedAt = now
	r.UpdatedAt = now
	return nil
}

// txHasOverlap runs the shared overlap predicate against the staff/date
// rows visible inside the transaction.
func txHasOverlap(ctx context.Context, tx *sql.Tx, r *models.Reservation, defaultDurationMinutes int) (bool, error) {
	start, err := schedule.ParseClock(r.Time)
	if err != nil {
		return false, fmt.Errorf("reservation time: %w", err)
	}
	end := start + defaultDurationMinutes
	if r.EndTime != "" {
		end, err = schedule.ParseClock(r.EndTime)
		if err != nil {
			return false, fmt.Errorf("reservation end time: %w", err)
		}
	}
	candidate := schedule.Interval{Start: start, End: end}

	rows, err := tx.QueryContext(ctx, `
		SELECT time, end_time FROM reservations
		WHERE user_id = ? AND staff_member_id = ? AND date = ? AND status != 'cancelled'`,
		r.UserID, r.StaffMemberID, r.Date,
	)
	if err != nil {
		return false, fmt.Errorf("check conflicts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var bStart string
		var bEnd sql.NullString
		if err := rows.Scan(&bStart, &bEnd); err != nil {
			return false, err
		}
		s, err := schedule.ParseClock(bStart)
		if err != nil {
			return false, err
		}
		e := s + defaultDurationMinutes
		if bEnd.Valid && bEnd.String != "" {
			if e, err = schedule.ParseClock(bEnd.String); err != nil {
				return false, err
			}
		}
		if candidate.Overlaps(schedule.Interval{Start: s, End: e}) {
			return true, nil
		}
	}
	return false, rows.Err()
}

// GetReservation returns one reservation by id within the account scope.
func (db *DB) GetReservation(ctx context.Context, accountID, id string) (*models.Reservation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, customer_name, customer_phone, customer_email,
		       date, time, end_time, staff_member_id, product_id, status, source, notes,
		       created_at, updated_at
		FROM reservations
		WHERE id = ? AND user_id = ?`,
		id, accountID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reservations, err := scanReservations(rows)
	if err != nil {
		return nil, err
	}
	if len(reservations) == 0 {
		return nil, ErrNotFound
	}
	return &reservations[0], nil
}

// CancelReservationByID soft-cancels one reservation. Cancellation is a
// status change, never a delete; history stays and cancelled rows drop out
// of the overlap predicate.
func (db *DB) CancelReservationByID(ctx context.Context, accountID, id string) (int, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE reservations SET status = 'cancelled', updated_at = ?
		WHERE id = ? AND user_id = ? AND status != 'cancelled'`,
		time.Now(), id, accountID,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// CancelReservationsByPhoneDate soft-cancels every non-cancelled
// reservation matching a customer phone on a date.
func (db *DB) CancelReservationsByPhoneDate(ctx context.Context, accountID, phone, date string) (int, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE reservations SET status = 'cancelled', updated_at = ?
		WHERE user_id = ? AND customer_phone = ? AND date = ? AND status != 'cancelled'`,
		time.Now(), accountID, phone, date,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ListReservationsByDateRange returns all reservations (any status) for an
// account between two dates inclusive, ordered for export.
func (db *DB) ListReservationsByDateRange(ctx context.Context, accountID, from, to string) ([]models.Reservation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, customer_name, customer_phone, customer_email,
		       date, time, end_time, staff_member_id, product_id, status, source, notes,
		       created_at, updated_at
		FROM reservations
		WHERE user_id = ? AND date >= ? AND date <= ?
		ORDER BY date, time`,
		accountID, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReservations(rows)
}

func scanReservations(rows *sql.Rows) ([]models.Reservation, error) {
	var reservations []models.Reservation
	for rows.Next() {
		var r models.Reservation
		var phone, email, endTime, staffID, productID, notes sql.NullString
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.CustomerName, &phone, &email,
			&r.Date, &r.Time, &endTime, &staffID, &productID, &r.Status, &r.Source, &notes,
			&r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			return nil, err
		}
		r.CustomerPhone = phone.String
		r.CustomerEmail = email.String
		r.EndTime = endTime.String
		r.StaffMemberID = staffID.String
		r.ProductID = productID.String
		r.Notes = notes.String
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}
