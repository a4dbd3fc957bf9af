package order

import "context"

// Repository persists orders together with their lines and consumption.
type Repository interface {
	// Insert returns ErrConflict when the id is already taken, tombstoned rows included.
	Insert(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	GetForUpdate(ctx context.Context, id string) (*Order, error)
	// GetIncludingDeleted backs idempotency lookups.
	GetIncludingDeleted(ctx context.Context, id string) (*Order, error)
	ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]*Order, error)
	// Update rewrites the header and replaces lines and consumption.
	Update(ctx context.Context, order *Order) error
}
