package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/Zhima-Mochi/kitchenledger/internal/domain/catalog"

	"github.com/shopspring/decimal"
)

const (
	menuItemColumns = `id, name, category_id, price, cost, sellable, created_at, updated_at`
	recipeColumns   = `id, menu_item_id, inventory_id, quantity, unit, created_at, updated_at`
)

type CatalogRepository struct {
	q querier
	d Dialect
}

func scanMenuItem(row rowScanner) (*domain.MenuItem, error) {
	var m domain.MenuItem
	if err := row.Scan(&m.ID, &m.Name, &m.CategoryID, &m.Price, &m.Cost, &m.Sellable, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func scanRecipe(row rowScanner) (*domain.Recipe, error) {
	var r domain.Recipe
	if err := row.Scan(&r.ID, &r.MenuItemID, &r.InventoryID, &r.Quantity, &r.Unit, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *CatalogRepository) GetMenuItem(ctx context.Context, id string) (*domain.MenuItem, error) {
	item, err := scanMenuItem(r.q.QueryRowContext(ctx, r.d.rebind(`SELECT `+menuItemColumns+` FROM menu_items WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMenuItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog repository: %w", err)
	}
	return item, nil
}

func (r *CatalogRepository) GetMenuItems(ctx context.Context, ids []string) (map[string]*domain.MenuItem, error) {
	out := make(map[string]*domain.MenuItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query := `SELECT ` + menuItemColumns + ` FROM menu_items WHERE id IN (` + placeholders(len(ids)) + `)`
	items, err := r.queryMenuItems(ctx, query, toArgs(ids)...)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		out[item.ID] = item
	}
	return out, nil
}

func (r *CatalogRepository) ListMenuItems(ctx context.Context) ([]*domain.MenuItem, error) {
	return r.queryMenuItems(ctx, `SELECT `+menuItemColumns+` FROM menu_items ORDER BY name, id`)
}

func (r *CatalogRepository) queryMenuItems(ctx context.Context, query string, args ...any) ([]*domain.MenuItem, error) {
	rows, err := r.q.QueryContext(ctx, r.d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("catalog repository: %w", err)
	}
	defer rows.Close()

	var out []*domain.MenuItem
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog repository: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *CatalogRepository) InsertMenuItem(ctx context.Context, item *domain.MenuItem) error {
	if item == nil || item.ID == "" {
		return fmt.Errorf("catalog repository: id is required")
	}
	_, err := r.q.ExecContext(ctx, r.d.rebind(`INSERT INTO menu_items (`+menuItemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		item.ID, item.Name, item.CategoryID, item.Price, item.Cost, item.Sellable, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("catalog repository: insert menu item: %w", err)
	}
	return nil
}

func (r *CatalogRepository) SetAvailability(ctx context.Context, id string, cost decimal.Decimal, sellable bool) error {
	res, err := r.q.ExecContext(ctx, r.d.rebind(`UPDATE menu_items SET cost = ?, sellable = ? WHERE id = ?`), cost, sellable, id)
	if err != nil {
		return fmt.Errorf("catalog repository: %w", err)
	}
	return expectOne(res, domain.ErrMenuItemNotFound)
}

func (r *CatalogRepository) getRecipe(ctx context.Context, query string, args ...any) (*domain.Recipe, error) {
	recipe, err := scanRecipe(r.q.QueryRowContext(ctx, r.d.rebind(query), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRecipeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog repository: %w", err)
	}
	return recipe, nil
}

func (r *CatalogRepository) GetRecipe(ctx context.Context, id string) (*domain.Recipe, error) {
	return r.getRecipe(ctx, `SELECT `+recipeColumns+` FROM recipes WHERE id = ?`, id)
}

func (r *CatalogRepository) FindRecipe(ctx context.Context, menuItemID, inventoryID string) (*domain.Recipe, error) {
	return r.getRecipe(ctx, `SELECT `+recipeColumns+` FROM recipes WHERE menu_item_id = ? AND inventory_id = ?`, menuItemID, inventoryID)
}

func (r *CatalogRepository) RecipesFor(ctx context.Context, menuItemID string) ([]*domain.Recipe, error) {
	return r.queryRecipes(ctx, `SELECT `+recipeColumns+` FROM recipes WHERE menu_item_id = ? ORDER BY created_at, id`, menuItemID)
}

func (r *CatalogRepository) RecipesUsing(ctx context.Context, inventoryIDs []string) ([]*domain.Recipe, error) {
	if len(inventoryIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + recipeColumns + ` FROM recipes WHERE inventory_id IN (` + placeholders(len(inventoryIDs)) + `) ORDER BY created_at, id`
	return r.queryRecipes(ctx, query, toArgs(inventoryIDs)...)
}

func (r *CatalogRepository) queryRecipes(ctx context.Context, query string, args ...any) ([]*domain.Recipe, error) {
	rows, err := r.q.QueryContext(ctx, r.d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("catalog repository: %w", err)
	}
	defer rows.Close()

	var out []*domain.Recipe
	for rows.Next() {
		recipe, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog repository: %w", err)
		}
		out = append(out, recipe)
	}
	return out, rows.Err()
}

func (r *CatalogRepository) InsertRecipe(ctx context.Context, recipe *domain.Recipe) error {
	if recipe == nil || recipe.ID == "" {
		return fmt.Errorf("catalog repository: recipe id is required")
	}
	_, err := r.q.ExecContext(ctx, r.d.rebind(`INSERT INTO recipes (`+recipeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		recipe.ID, recipe.MenuItemID, recipe.InventoryID, recipe.Quantity, recipe.Unit, recipe.CreatedAt, recipe.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.ErrRecipeExists
	}
	if err != nil {
		return fmt.Errorf("catalog repository: insert recipe: %w", err)
	}
	return nil
}

func (r *CatalogRepository) UpdateRecipe(ctx context.Context, recipe *domain.Recipe) error {
	res, err := r.q.ExecContext(ctx, r.d.rebind(`UPDATE recipes SET quantity = ?, unit = ?, updated_at = ? WHERE id = ?`),
		recipe.Quantity, recipe.Unit, recipe.UpdatedAt, recipe.ID)
	if err != nil {
		return fmt.Errorf("catalog repository: %w", err)
	}
	return expectOne(res, domain.ErrRecipeNotFound)
}

func (r *CatalogRepository) DeleteRecipe(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, r.d.rebind(`DELETE FROM recipes WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("catalog repository: %w", err)
	}
	return expectOne(res, domain.ErrRecipeNotFound)
}
