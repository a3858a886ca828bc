// Package database is the sqlite-backed store. All reads are scoped by the
// owning account id; reservation writes run the conflict re-check and the
// insert inside one immediate transaction, which is what makes the
// read-check-write sequence race-free per staff/date.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// ErrConflict is returned when the transactional re-check finds an
// overlapping reservation that was not there at validation time.
var ErrConflict = errors.New("reservation conflict")

// ErrNotFound is returned when a lookup matches no rows.
var ErrNotFound = errors.New("not found")

// DB wraps sql.DB for the booking backend.
type DB struct {
	*sql.DB
}

// NewDB opens the database at path and runs migrations.
// _txlock=immediate makes every transaction take the write lock up front,
// so concurrent check-then-insert sequences serialize instead of racing.
func NewDB(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=5000&_fk=1", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// sqlite allows a single writer; one pooled connection avoids
	// SQLITE_BUSY churn and keeps :memory: databases coherent in tests.
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS staff_members (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			role TEXT,
			color TEXT,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS staff_shifts (
			id TEXT PRIMARY KEY,
			staff_member_id TEXT NOT NULL,
			day_of_week INTEGER NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			is_working BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(staff_member_id, day_of_week),
			FOREIGN KEY (staff_member_id) REFERENCES staff_members(id)
		)`,

		`CREATE TABLE IF NOT EXISTS shift_exceptions (
			id TEXT PRIMARY KEY,
			staff_member_id TEXT NOT NULL,
			exception_date TEXT NOT NULL,
			start_time TEXT,
			end_time TEXT,
			reason TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (staff_member_id) REFERENCES staff_members(id)
		)`,

		`CREATE TABLE IF NOT EXISTS reservations (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			customer_name TEXT NOT NULL,
			customer_phone TEXT,
			customer_email TEXT,
			date TEXT NOT NULL,
			time TEXT NOT NULL,
			end_time TEXT,
			staff_member_id TEXT,
			product_id TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			source TEXT NOT NULL DEFAULT 'manual',
			notes TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (staff_member_id) REFERENCES staff_members(id)
		)`,

		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL DEFAULT 60,
			price REAL NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS contacts (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			phone TEXT,
			email TEXT,
			booking_count INTEGER NOT NULL DEFAULT 0,
			last_visit TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS api_keys (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			key_hash TEXT UNIQUE NOT NULL,
			name TEXT,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			last_used_at DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_staff_members_user ON staff_members(user_id, is_active)`,
		`CREATE INDEX IF NOT EXISTS idx_shift_exceptions_staff_date ON shift_exceptions(staff_member_id, exception_date)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_staff_date ON reservations(staff_member_id, date, status)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_user_date ON reservations(user_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_contacts_user ON contacts(user_id, phone, email)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}
