package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/Zhima-Mochi/kitchenledger/internal/domain/payment"
)

const transactionColumns = `id, order_id, reference, amount, currency, method, status, authorization_url, access_code, created_at, updated_at`

type TransactionRepository struct {
	q querier
	d Dialect
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		t              domain.Transaction
		method, status string
	)
	err := row.Scan(&t.ID, &t.OrderID, &t.Reference, &t.Amount, &t.Currency, &method, &status,
		&t.AuthorizationURL, &t.AccessCode, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Method = domain.Method(method)
	t.Status = domain.Status(status)
	return &t, nil
}

func (r *TransactionRepository) Insert(ctx context.Context, t *domain.Transaction) error {
	if t == nil || t.ID == "" {
		return fmt.Errorf("transaction repository: id is required")
	}
	_, err := r.q.ExecContext(ctx, r.d.rebind(`INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		t.ID, t.OrderID, t.Reference, t.Amount, t.Currency, string(t.Method), string(t.Status),
		t.AuthorizationURL, t.AccessCode, t.CreatedAt, t.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("transaction repository: %w", err)
	}
	return nil
}

func (r *TransactionRepository) Update(ctx context.Context, t *domain.Transaction) error {
	res, err := r.q.ExecContext(ctx, r.d.rebind(`UPDATE transactions
		SET status = ?, authorization_url = ?, access_code = ?, updated_at = ? WHERE id = ?`),
		string(t.Status), t.AuthorizationURL, t.AccessCode, t.UpdatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("transaction repository: %w", err)
	}
	return expectOne(res, domain.ErrNotFound)
}

func (r *TransactionRepository) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	t, err := scanTransaction(r.q.QueryRowContext(ctx,
		r.d.rebind(`SELECT `+transactionColumns+` FROM transactions WHERE reference = ?`), reference))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("transaction repository: %w", err)
	}
	return t, nil
}

// ListByOrder returns transactions oldest first.
func (r *TransactionRepository) ListByOrder(ctx context.Context, orderID string) ([]*domain.Transaction, error) {
	rows, err := r.q.QueryContext(ctx,
		r.d.rebind(`SELECT `+transactionColumns+` FROM transactions WHERE order_id = ? ORDER BY created_at, id`), orderID)
	if err != nil {
		return nil, fmt.Errorf("transaction repository: %w", err)
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("transaction repository: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
