package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/Zhima-Mochi/kitchenledger/internal/domain/customer"
)

type CustomerRepository struct {
	q querier
	d Dialect
}

func (r *CustomerRepository) Get(ctx context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	err := r.q.QueryRowContext(ctx, r.d.rebind(`SELECT id, name, email, phone, created_at FROM customers WHERE id = ?`), id).
		Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("customer repository: %w", err)
	}
	return &c, nil
}

func (r *CustomerRepository) Insert(ctx context.Context, c *domain.Customer) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("customer repository: id is required")
	}
	_, err := r.q.ExecContext(ctx, r.d.rebind(`INSERT INTO customers (id, name, email, phone, created_at) VALUES (?, ?, ?, ?, ?)`),
		c.ID, c.Name, c.Email, c.Phone, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("customer repository: %w", err)
	}
	return nil
}
