package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/Zhima-Mochi/kitchenledger/internal/domain/order"
)

const orderColumns = `id, customer_id, total, delivery_fee, delivery_address, status, created_at, updated_at, deleted_at`

// OrderRepository stores an order across three tables: the header, its lines
// (kept in request order via position) and its consumption snapshot.
type OrderRepository struct {
	q querier
	d Dialect
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o       domain.Order
		status  string
		deleted sql.NullTime
	)
	if err := row.Scan(&o.ID, &o.CustomerID, &o.Total, &o.DeliveryFee, &o.DeliveryAddress, &status, &o.CreatedAt, &o.UpdatedAt, &deleted); err != nil {
		return nil, err
	}
	o.Status = domain.Status(status)
	o.DeletedAt = timePtr(deleted)
	return &o, nil
}

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}
	_, err := r.q.ExecContext(ctx, r.d.rebind(`INSERT INTO orders (`+orderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		o.ID, o.CustomerID, o.Total, o.DeliveryFee, o.DeliveryAddress, string(o.Status), o.CreatedAt, o.UpdatedAt, nullTime(o.DeletedAt))
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("order repository: %w", err)
	}
	return r.writeChildren(ctx, o)
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	return r.load(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ? AND deleted_at IS NULL`, id)
}

func (r *OrderRepository) GetForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	return r.load(ctx, r.d.lock(`SELECT `+orderColumns+` FROM orders WHERE id = ? AND deleted_at IS NULL`), id)
}

func (r *OrderRepository) GetIncludingDeleted(ctx context.Context, id string) (*domain.Order, error) {
	return r.load(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
}

func (r *OrderRepository) load(ctx context.Context, query string, id string) (*domain.Order, error) {
	o, err := scanOrder(r.q.QueryRowContext(ctx, r.d.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("order repository: %w", err)
	}
	if err := r.readChildren(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]*domain.Order, error) {
	rows, err := r.q.QueryContext(ctx, r.d.rebind(`SELECT `+orderColumns+` FROM orders
		WHERE customer_id = ? AND deleted_at IS NULL
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`), customerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("order repository: %w", err)
	}
	var out []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("order repository: %w", err)
		}
		out = append(out, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order repository: %w", err)
	}

	// Children are read once the header cursor is closed; lib/pq cannot
	// interleave result sets on one connection.
	for _, o := range out {
		if err := r.readChildren(ctx, o); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *OrderRepository) Update(ctx context.Context, o *domain.Order) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}
	res, err := r.q.ExecContext(ctx, r.d.rebind(`UPDATE orders
		SET total = ?, delivery_fee = ?, delivery_address = ?, status = ?, updated_at = ?, deleted_at = ? WHERE id = ?`),
		o.Total, o.DeliveryFee, o.DeliveryAddress, string(o.Status), o.UpdatedAt, nullTime(o.DeletedAt), o.ID)
	if err != nil {
		return fmt.Errorf("order repository: %w", err)
	}
	if err := expectOne(res, domain.ErrNotFound); err != nil {
		return err
	}

	if _, err := r.q.ExecContext(ctx, r.d.rebind(`DELETE FROM order_items WHERE order_id = ?`), o.ID); err != nil {
		return fmt.Errorf("order repository: clear items: %w", err)
	}
	if _, err := r.q.ExecContext(ctx, r.d.rebind(`DELETE FROM order_consumption WHERE order_id = ?`), o.ID); err != nil {
		return fmt.Errorf("order repository: clear consumption: %w", err)
	}
	return r.writeChildren(ctx, o)
}

func (r *OrderRepository) writeChildren(ctx context.Context, o *domain.Order) error {
	insertItem := r.d.rebind(`INSERT INTO order_items
		(id, order_id, menu_item_id, position, quantity, unit_price, subtotal) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	for i, it := range o.Items {
		if _, err := r.q.ExecContext(ctx, insertItem,
			it.ID, o.ID, it.MenuItemID, i, it.Quantity, it.UnitPrice, it.Subtotal); err != nil {
			return fmt.Errorf("order repository: insert item: %w", err)
		}
	}

	insertConsumption := r.d.rebind(`INSERT INTO order_consumption (order_id, inventory_id, quantity) VALUES (?, ?, ?)`)
	for _, c := range o.Consumption {
		if _, err := r.q.ExecContext(ctx, insertConsumption, o.ID, c.InventoryID, c.Quantity); err != nil {
			return fmt.Errorf("order repository: insert consumption: %w", err)
		}
	}
	return nil
}

func (r *OrderRepository) readChildren(ctx context.Context, o *domain.Order) error {
	rows, err := r.q.QueryContext(ctx, r.d.rebind(`SELECT id, menu_item_id, quantity, unit_price, subtotal
		FROM order_items WHERE order_id = ? ORDER BY position`), o.ID)
	if err != nil {
		return fmt.Errorf("order repository: items: %w", err)
	}
	o.Items = nil
	for rows.Next() {
		it := domain.Item{OrderID: o.ID}
		if err := rows.Scan(&it.ID, &it.MenuItemID, &it.Quantity, &it.UnitPrice, &it.Subtotal); err != nil {
			rows.Close()
			return fmt.Errorf("order repository: items: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("order repository: items: %w", err)
	}

	rows, err = r.q.QueryContext(ctx, r.d.rebind(`SELECT inventory_id, quantity
		FROM order_consumption WHERE order_id = ? ORDER BY inventory_id`), o.ID)
	if err != nil {
		return fmt.Errorf("order repository: consumption: %w", err)
	}
	defer rows.Close()
	o.Consumption = nil
	for rows.Next() {
		var c domain.Consumption
		if err := rows.Scan(&c.InventoryID, &c.Quantity); err != nil {
			return fmt.Errorf("order repository: consumption: %w", err)
		}
		o.Consumption = append(o.Consumption, c)
	}
	return rows.Err()
}
