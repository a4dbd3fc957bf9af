package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	domain "github.com/Zhima-Mochi/kitchenledger/internal/domain/inventory"
)

type InventoryRepository struct {
	st *state
}

func (r *InventoryRepository) Get(ctx context.Context, id string) (*domain.Item, error) {
	_ = ctx
	item, ok := r.st.inventory[id]
	if !ok || item.Deleted() {
		return nil, domain.ErrNotFound
	}
	return item.Clone(), nil
}

// GetForUpdate needs no extra locking: the store already serializes units of work.
func (r *InventoryRepository) GetForUpdate(ctx context.Context, id string) (*domain.Item, error) {
	return r.Get(ctx, id)
}

func (r *InventoryRepository) GetForUpdateIncludingDeleted(ctx context.Context, id string) (*domain.Item, error) {
	_ = ctx
	item, ok := r.st.inventory[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return item.Clone(), nil
}

func (r *InventoryRepository) FindByName(ctx context.Context, name string) (*domain.Item, error) {
	_ = ctx
	for _, item := range r.st.inventory {
		if !item.Deleted() && strings.EqualFold(item.Name, strings.TrimSpace(name)) {
			return item.Clone(), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *InventoryRepository) List(ctx context.Context) ([]*domain.Item, error) {
	_ = ctx
	out := make([]*domain.Item, 0, len(r.st.inventory))
	for _, item := range r.st.inventory {
		if item.Deleted() {
			continue
		}
		out = append(out, item.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *InventoryRepository) Insert(ctx context.Context, item *domain.Item) error {
	if item == nil || item.ID == "" {
		return fmt.Errorf("inventory repository: id is required")
	}
	if _, exists := r.st.inventory[item.ID]; exists {
		return fmt.Errorf("inventory repository: %s already exists", item.ID)
	}
	if _, err := r.FindByName(ctx, item.Name); err == nil {
		return domain.ErrDuplicateName
	}
	r.st.inventory[item.ID] = item.Clone()
	return nil
}

func (r *InventoryRepository) Update(ctx context.Context, item *domain.Item) error {
	_ = ctx
	if item == nil || item.ID == "" {
		return fmt.Errorf("inventory repository: id is required")
	}
	if _, exists := r.st.inventory[item.ID]; !exists {
		return domain.ErrNotFound
	}
	r.st.inventory[item.ID] = item.Clone()
	return nil
}

func (r *InventoryRepository) RecordMovement(ctx context.Context, m domain.Movement) error {
	_ = ctx
	r.st.pending = append(r.st.pending, m)
	return nil
}

func (r *InventoryRepository) Movements(ctx context.Context, itemID string) ([]domain.Movement, error) {
	_ = ctx
	if _, ok := r.st.inventory[itemID]; !ok {
		return nil, domain.ErrNotFound
	}
	committed := r.st.movements.byItem[itemID]
	out := make([]domain.Movement, len(committed), len(committed)+len(r.st.pending))
	copy(out, committed)
	for _, m := range r.st.pending {
		if m.ItemID == itemID {
			out = append(out, m)
		}
	}
	return out, nil
}
