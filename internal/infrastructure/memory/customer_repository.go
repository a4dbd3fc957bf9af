package memory

import (
	"context"
	"fmt"

	domain "github.com/Zhima-Mochi/kitchenledger/internal/domain/customer"
)

type CustomerRepository struct {
	st *state
}

func (r *CustomerRepository) Get(ctx context.Context, id string) (*domain.Customer, error) {
	_ = ctx
	c, ok := r.st.customers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (r *CustomerRepository) Insert(ctx context.Context, c *domain.Customer) error {
	_ = ctx
	if c == nil || c.ID == "" {
		return fmt.Errorf("customer repository: id is required")
	}
	if _, exists := r.st.customers[c.ID]; exists {
		return fmt.Errorf("customer repository: %s already exists", c.ID)
	}
	clone := *c
	r.st.customers[c.ID] = &clone
	return nil
}
