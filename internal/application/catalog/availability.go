package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"

	domain "github.com/Zhima-Mochi/kitchenledger/internal/domain/catalog"
	dominv "github.com/Zhima-Mochi/kitchenledger/internal/domain/inventory"
	"github.com/Zhima-Mochi/kitchenledger/internal/domain/uow"

	"github.com/shopspring/decimal"
)

// Requirements maps inventory item ids to the quantity needed.
type Requirements map[string]decimal.Decimal

func (r Requirements) Add(inventoryID string, qty decimal.Decimal) {
	if cur, ok := r[inventoryID]; ok {
		r[inventoryID] = cur.Add(qty)
		return
	}
	r[inventoryID] = qty
}

func (r Requirements) Merge(other Requirements) {
	for id, qty := range other {
		r.Add(id, qty)
	}
}

// IDs returns the inventory ids in a stable order, which is also the row lock order.
func (r Requirements) IDs() []string {
	ids := make([]string, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Line is a menu item and how many units of it are wanted.
type Line struct {
	MenuItemID string
	Quantity   int
}

// Calculator resolves recipes into ingredient requirements and owns the
// derived menu item fields (cost, sellable). All methods run inside the
// caller's unit of work.
type Calculator struct{}

func NewCalculator() *Calculator { return &Calculator{} }

// RequirementsFor scales every recipe edge of the menu item by quantity.
func (c *Calculator) RequirementsFor(ctx context.Context, tx uow.Tx, menuItemID string, quantity int) (Requirements, error) {
	recipes, err := tx.Catalog().RecipesFor(ctx, menuItemID)
	if err != nil {
		return nil, fmt.Errorf("catalog: load recipes: %w", err)
	}
	req := make(Requirements, len(recipes))
	q := decimal.NewFromInt(int64(quantity))
	for _, r := range recipes {
		req.Add(r.InventoryID, r.Quantity.Mul(q))
	}
	return req, nil
}

// Aggregate sums the requirements of several lines.
func (c *Calculator) Aggregate(ctx context.Context, tx uow.Tx, lines []Line) (Requirements, error) {
	total := make(Requirements)
	for _, l := range lines {
		req, err := c.RequirementsFor(ctx, tx, l.MenuItemID, l.Quantity)
		if err != nil {
			return nil, err
		}
		total.Merge(req)
	}
	return total, nil
}

// IsSellable reports whether one unit can be made from current stock. A menu
// item without recipes is never sellable, and neither is one whose recipe
// points at a missing or tombstoned ingredient.
func (c *Calculator) IsSellable(ctx context.Context, tx uow.Tx, menuItemID string) (bool, error) {
	recipes, err := tx.Catalog().RecipesFor(ctx, menuItemID)
	if err != nil {
		return false, fmt.Errorf("catalog: load recipes: %w", err)
	}
	if len(recipes) == 0 {
		return false, nil
	}
	for _, r := range recipes {
		item, err := tx.Inventory().Get(ctx, r.InventoryID)
		if errors.Is(err, dominv.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("catalog: load ingredient %s: %w", r.InventoryID, err)
		}
		if item.Quantity.LessThan(r.Quantity) {
			return false, nil
		}
	}
	return true, nil
}

// CostFor sums recipe quantity times ingredient unit price. Recipes on
// tombstoned ingredients contribute nothing.
func (c *Calculator) CostFor(ctx context.Context, tx uow.Tx, menuItemID string) (decimal.Decimal, error) {
	recipes, err := tx.Catalog().RecipesFor(ctx, menuItemID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("catalog: load recipes: %w", err)
	}
	cost := decimal.Zero
	for _, r := range recipes {
		item, err := tx.Inventory().Get(ctx, r.InventoryID)
		if errors.Is(err, dominv.ErrNotFound) {
			continue
		}
		if err != nil {
			return decimal.Zero, fmt.Errorf("catalog: load ingredient %s: %w", r.InventoryID, err)
		}
		cost = cost.Add(r.Quantity.Mul(item.UnitPrice))
	}
	return cost, nil
}

// RecomputeAffected rewrites cost and sellable for each menu item. It is the
// only writer of those fields.
func (c *Calculator) RecomputeAffected(ctx context.Context, tx uow.Tx, menuItemIDs []string) error {
	seen := make(map[string]struct{}, len(menuItemIDs))
	for _, id := range menuItemIDs {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}

		sellable, err := c.IsSellable(ctx, tx, id)
		if err != nil {
			return err
		}
		cost, err := c.CostFor(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := tx.Catalog().SetAvailability(ctx, id, cost, sellable); err != nil {
			if errors.Is(err, domain.ErrMenuItemNotFound) {
				continue
			}
			return fmt.Errorf("catalog: set availability for %s: %w", id, err)
		}
	}
	return nil
}

// AffectedBy lists the menu items whose recipes use any of the inventory items.
func (c *Calculator) AffectedBy(ctx context.Context, tx uow.Tx, inventoryIDs []string) ([]string, error) {
	if len(inventoryIDs) == 0 {
		return nil, nil
	}
	recipes, err := tx.Catalog().RecipesUsing(ctx, inventoryIDs)
	if err != nil {
		return nil, fmt.Errorf("catalog: load recipes by ingredient: %w", err)
	}
	seen := make(map[string]struct{}, len(recipes))
	out := make([]string, 0, len(recipes))
	for _, r := range recipes {
		if _, ok := seen[r.MenuItemID]; ok {
			continue
		}
		seen[r.MenuItemID] = struct{}{}
		out = append(out, r.MenuItemID)
	}
	sort.Strings(out)
	return out, nil
}

// RecomputeForInventory is AffectedBy followed by RecomputeAffected.
func (c *Calculator) RecomputeForInventory(ctx context.Context, tx uow.Tx, inventoryIDs []string) error {
	affected, err := c.AffectedBy(ctx, tx, inventoryIDs)
	if err != nil {
		return err
	}
	return c.RecomputeAffected(ctx, tx, affected)
}
