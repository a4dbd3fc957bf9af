package inventory

import "context"

// Repository exposes inventory rows. Every lookup except
// GetForUpdateIncludingDeleted skips tombstoned items.
type Repository interface {
	Get(ctx context.Context, id string) (*Item, error)
	// GetForUpdate locks the row for the rest of the enclosing unit of work.
	GetForUpdate(ctx context.Context, id string) (*Item, error)
	// GetForUpdateIncludingDeleted is reserved for releasing stock that was
	// consumed before the item was tombstoned.
	GetForUpdateIncludingDeleted(ctx context.Context, id string) (*Item, error)
	FindByName(ctx context.Context, name string) (*Item, error)
	List(ctx context.Context) ([]*Item, error)
	Insert(ctx context.Context, item *Item) error
	Update(ctx context.Context, item *Item) error

	RecordMovement(ctx context.Context, m Movement) error
	Movements(ctx context.Context, itemID string) ([]Movement, error)
}
