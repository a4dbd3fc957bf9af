package catalog

import (
	"context"

	"github.com/shopspring/decimal"
)

type Repository interface {
	GetMenuItem(ctx context.Context, id string) (*MenuItem, error)
	// GetMenuItems returns the items found, keyed by id; missing ids are omitted.
	GetMenuItems(ctx context.Context, ids []string) (map[string]*MenuItem, error)
	ListMenuItems(ctx context.Context) ([]*MenuItem, error)
	InsertMenuItem(ctx context.Context, item *MenuItem) error
	SetAvailability(ctx context.Context, id string, cost decimal.Decimal, sellable bool) error

	GetRecipe(ctx context.Context, id string) (*Recipe, error)
	FindRecipe(ctx context.Context, menuItemID, inventoryID string) (*Recipe, error)
	RecipesFor(ctx context.Context, menuItemID string) ([]*Recipe, error)
	RecipesUsing(ctx context.Context, inventoryIDs []string) ([]*Recipe, error)
	InsertRecipe(ctx context.Context, recipe *Recipe) error
	UpdateRecipe(ctx context.Context, recipe *Recipe) error
	DeleteRecipe(ctx context.Context, id string) error
}
