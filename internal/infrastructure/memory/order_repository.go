package memory

import (
	"context"
	"fmt"

	domain "github.com/Zhima-Mochi/kitchenledger/internal/domain/order"
)

type OrderRepository struct {
	st *state
}

func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}
	if _, exists := r.st.orders[order.ID]; exists {
		return domain.ErrConflict
	}
	r.st.orders[order.ID] = order.Clone()
	r.st.orderSeq = append(r.st.orderSeq, order.ID)
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx
	order, ok := r.st.orders[id]
	if !ok || order.Deleted() {
		return nil, domain.ErrNotFound
	}
	return order.Clone(), nil
}

func (r *OrderRepository) GetForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	return r.Get(ctx, id)
}

func (r *OrderRepository) GetIncludingDeleted(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx
	order, ok := r.st.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return order.Clone(), nil
}

func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]*domain.Order, error) {
	_ = ctx
	var out []*domain.Order
	skipped := 0
	for i := len(r.st.orderSeq) - 1; i >= 0 && len(out) < limit; i-- {
		order := r.st.orders[r.st.orderSeq[i]]
		if order.Deleted() || order.CustomerID != customerID {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, order.Clone())
	}
	return out, nil
}

func (r *OrderRepository) Update(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}
	if _, exists := r.st.orders[order.ID]; !exists {
		return domain.ErrNotFound
	}
	r.st.orders[order.ID] = order.Clone()
	return nil
}
