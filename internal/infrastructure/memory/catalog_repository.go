package memory

import (
	"context"
	"fmt"
	"sort"

	domain "github.com/Zhima-Mochi/kitchenledger/internal/domain/catalog"

	"github.com/shopspring/decimal"
)

type CatalogRepository struct {
	st *state
}

func (r *CatalogRepository) GetMenuItem(ctx context.Context, id string) (*domain.MenuItem, error) {
	_ = ctx
	item, ok := r.st.menuItems[id]
	if !ok {
		return nil, domain.ErrMenuItemNotFound
	}
	return item.Clone(), nil
}

func (r *CatalogRepository) GetMenuItems(ctx context.Context, ids []string) (map[string]*domain.MenuItem, error) {
	_ = ctx
	out := make(map[string]*domain.MenuItem, len(ids))
	for _, id := range ids {
		if item, ok := r.st.menuItems[id]; ok {
			out[id] = item.Clone()
		}
	}
	return out, nil
}

func (r *CatalogRepository) ListMenuItems(ctx context.Context) ([]*domain.MenuItem, error) {
	_ = ctx
	out := make([]*domain.MenuItem, 0, len(r.st.menuItems))
	for _, item := range r.st.menuItems {
		out = append(out, item.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *CatalogRepository) InsertMenuItem(ctx context.Context, item *domain.MenuItem) error {
	_ = ctx
	if item == nil || item.ID == "" {
		return fmt.Errorf("catalog repository: id is required")
	}
	if _, exists := r.st.menuItems[item.ID]; exists {
		return fmt.Errorf("catalog repository: menu item %s already exists", item.ID)
	}
	r.st.menuItems[item.ID] = item.Clone()
	return nil
}

func (r *CatalogRepository) SetAvailability(ctx context.Context, id string, cost decimal.Decimal, sellable bool) error {
	_ = ctx
	item, ok := r.st.menuItems[id]
	if !ok {
		return domain.ErrMenuItemNotFound
	}
	item.Cost = cost
	item.Sellable = sellable
	return nil
}

func (r *CatalogRepository) GetRecipe(ctx context.Context, id string) (*domain.Recipe, error) {
	_ = ctx
	recipe, ok := r.st.recipes[id]
	if !ok {
		return nil, domain.ErrRecipeNotFound
	}
	return recipe.Clone(), nil
}

func (r *CatalogRepository) FindRecipe(ctx context.Context, menuItemID, inventoryID string) (*domain.Recipe, error) {
	_ = ctx
	for _, recipe := range r.st.recipes {
		if recipe.MenuItemID == menuItemID && recipe.InventoryID == inventoryID {
			return recipe.Clone(), nil
		}
	}
	return nil, domain.ErrRecipeNotFound
}

func (r *CatalogRepository) RecipesFor(ctx context.Context, menuItemID string) ([]*domain.Recipe, error) {
	_ = ctx
	var out []*domain.Recipe
	for _, recipe := range r.st.recipes {
		if recipe.MenuItemID == menuItemID {
			out = append(out, recipe.Clone())
		}
	}
	sortRecipes(out)
	return out, nil
}

func (r *CatalogRepository) RecipesUsing(ctx context.Context, inventoryIDs []string) ([]*domain.Recipe, error) {
	_ = ctx
	wanted := make(map[string]struct{}, len(inventoryIDs))
	for _, id := range inventoryIDs {
		wanted[id] = struct{}{}
	}
	var out []*domain.Recipe
	for _, recipe := range r.st.recipes {
		if _, ok := wanted[recipe.InventoryID]; ok {
			out = append(out, recipe.Clone())
		}
	}
	sortRecipes(out)
	return out, nil
}

func (r *CatalogRepository) InsertRecipe(ctx context.Context, recipe *domain.Recipe) error {
	if recipe == nil || recipe.ID == "" {
		return fmt.Errorf("catalog repository: recipe id is required")
	}
	if _, err := r.FindRecipe(ctx, recipe.MenuItemID, recipe.InventoryID); err == nil {
		return domain.ErrRecipeExists
	}
	r.st.recipes[recipe.ID] = recipe.Clone()
	return nil
}

func (r *CatalogRepository) UpdateRecipe(ctx context.Context, recipe *domain.Recipe) error {
	_ = ctx
	if _, ok := r.st.recipes[recipe.ID]; !ok {
		return domain.ErrRecipeNotFound
	}
	r.st.recipes[recipe.ID] = recipe.Clone()
	return nil
}

func (r *CatalogRepository) DeleteRecipe(ctx context.Context, id string) error {
	_ = ctx
	if _, ok := r.st.recipes[id]; !ok {
		return domain.ErrRecipeNotFound
	}
	delete(r.st.recipes, id)
	return nil
}

func sortRecipes(rs []*domain.Recipe) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].CreatedAt.Before(rs[j].CreatedAt)
		}
		return rs[i].ID < rs[j].ID
	})
}
