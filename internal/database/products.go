package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"zenbook/internal/models"
)

// CreateProduct inserts a service/product definition.
func (db *DB) CreateProduct(ctx context.Context, p *models.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO products (id, user_id, name, duration_minutes, price, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Name, p.DurationMinutes, p.Price, p.IsActive, now,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	p.CreatedAt = now
	return nil
}

// GetProduct returns a product owned by the account, or nil when absent.
// A missing product is not an error: the booking path falls back to the
// default duration.
func (db *DB) GetProduct(ctx context.Context, accountID, productID string) (*models.Product, error) {
	var p models.Product
	err := db.QueryRowContext(ctx, `
		SELECT id, user_id, name, duration_minutes, price, is_active, created_at
		FROM products
		WHERE id = ? AND user_id = ?`,
		productID, accountID,
	).Scan(&p.ID, &p.UserID, &p.Name, &p.DurationMinutes, &p.Price, &p.IsActive, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
