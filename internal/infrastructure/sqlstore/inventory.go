package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	domain "github.com/Zhima-Mochi/kitchenledger/internal/domain/inventory"
)

const inventoryColumns = `id, name, unit, quantity, minimum_stock, unit_price, status, created_at, updated_at, deleted_at`

type InventoryRepository struct {
	q querier
	d Dialect
}

func scanItem(row rowScanner) (*domain.Item, error) {
	var (
		item    domain.Item
		status  string
		deleted sql.NullTime
	)
	err := row.Scan(&item.ID, &item.Name, &item.Unit, &item.Quantity, &item.MinimumStock,
		&item.UnitPrice, &status, &item.CreatedAt, &item.UpdatedAt, &deleted)
	if err != nil {
		return nil, err
	}
	item.Status = domain.Status(status)
	item.DeletedAt = timePtr(deleted)
	return &item, nil
}

func (r *InventoryRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Item, error) {
	item, err := scanItem(r.q.QueryRowContext(ctx, r.d.rebind(query), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("inventory repository: %w", err)
	}
	return item, nil
}

func (r *InventoryRepository) Get(ctx context.Context, id string) (*domain.Item, error) {
	return r.getOne(ctx, `SELECT `+inventoryColumns+` FROM inventory_items WHERE id = ? AND deleted_at IS NULL`, id)
}

func (r *InventoryRepository) GetForUpdate(ctx context.Context, id string) (*domain.Item, error) {
	return r.getOne(ctx, r.d.lock(`SELECT `+inventoryColumns+` FROM inventory_items WHERE id = ? AND deleted_at IS NULL`), id)
}

func (r *InventoryRepository) GetForUpdateIncludingDeleted(ctx context.Context, id string) (*domain.Item, error) {
	return r.getOne(ctx, r.d.lock(`SELECT `+inventoryColumns+` FROM inventory_items WHERE id = ?`), id)
}

func (r *InventoryRepository) FindByName(ctx context.Context, name string) (*domain.Item, error) {
	return r.getOne(ctx, `SELECT `+inventoryColumns+` FROM inventory_items WHERE lower(name) = lower(?) AND deleted_at IS NULL`,
		strings.TrimSpace(name))
}

func (r *InventoryRepository) List(ctx context.Context) ([]*domain.Item, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+inventoryColumns+` FROM inventory_items WHERE deleted_at IS NULL ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("inventory repository: %w", err)
	}
	defer rows.Close()

	var out []*domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("inventory repository: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *InventoryRepository) Insert(ctx context.Context, item *domain.Item) error {
	if item == nil || item.ID == "" {
		return fmt.Errorf("inventory repository: id is required")
	}
	_, err := r.q.ExecContext(ctx, r.d.rebind(`INSERT INTO inventory_items (`+inventoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		item.ID, item.Name, item.Unit, item.Quantity, item.MinimumStock, item.UnitPrice,
		string(item.Status), item.CreatedAt, item.UpdatedAt, nullTime(item.DeletedAt))
	if isUniqueViolation(err) {
		return domain.ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("inventory repository: %w", err)
	}
	return nil
}

func (r *InventoryRepository) Update(ctx context.Context, item *domain.Item) error {
	if item == nil || item.ID == "" {
		return fmt.Errorf("inventory repository: id is required")
	}
	res, err := r.q.ExecContext(ctx, r.d.rebind(`UPDATE inventory_items
		SET name = ?, unit = ?, quantity = ?, minimum_stock = ?, unit_price = ?, status = ?, updated_at = ?, deleted_at = ?
		WHERE id = ?`),
		item.Name, item.Unit, item.Quantity, item.MinimumStock, item.UnitPrice,
		string(item.Status), item.UpdatedAt, nullTime(item.DeletedAt), item.ID)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("inventory repository: %w", err)
	}
	return expectOne(res, domain.ErrNotFound)
}

func (r *InventoryRepository) RecordMovement(ctx context.Context, m domain.Movement) error {
	_, err := r.q.ExecContext(ctx, r.d.rebind(`INSERT INTO inventory_movements
		(id, inventory_id, order_id, reason, delta, balance, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		m.ID, m.ItemID, m.OrderID, string(m.Reason), m.Delta, m.Balance, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("inventory repository: record movement: %w", err)
	}
	return nil
}

func (r *InventoryRepository) Movements(ctx context.Context, itemID string) ([]domain.Movement, error) {
	var exists int
	err := r.q.QueryRowContext(ctx, r.d.rebind(`SELECT 1 FROM inventory_items WHERE id = ?`), itemID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("inventory repository: %w", err)
	}

	rows, err := r.q.QueryContext(ctx, r.d.rebind(`SELECT id, inventory_id, order_id, reason, delta, balance, created_at
		FROM inventory_movements WHERE inventory_id = ? ORDER BY created_at, id`), itemID)
	if err != nil {
		return nil, fmt.Errorf("inventory repository: %w", err)
	}
	defer rows.Close()

	var out []domain.Movement
	for rows.Next() {
		var (
			m      domain.Movement
			reason string
		)
		if err := rows.Scan(&m.ID, &m.ItemID, &m.OrderID, &reason, &m.Delta, &m.Balance, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("inventory repository: %w", err)
		}
		m.Reason = domain.MovementReason(reason)
		out = append(out, m)
	}
	return out, rows.Err()
}
