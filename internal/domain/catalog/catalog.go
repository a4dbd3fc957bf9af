package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrMenuItemNotFound    = errors.New("catalog: menu item not found")
	ErrUnsellable          = errors.New("catalog: menu item is not sellable")
	ErrInvalidPrice        = errors.New("catalog: price must not be negative")
	ErrNameRequired        = errors.New("catalog: name is required")
	ErrRecipeNotFound      = errors.New("catalog: recipe not found")
	ErrRecipeExists        = errors.New("catalog: recipe already exists for this ingredient")
	ErrUnitMismatch        = errors.New("catalog: recipe unit must match the inventory unit")
	ErrInvalidRecipeAmount = errors.New("catalog: recipe quantity must be greater than zero")
)

// MenuItem is a sellable product. Cost and Sellable are derived from the
// recipes and the inventory ledger; only the availability calculator writes them.
type MenuItem struct {
	ID         string
	Name       string
	CategoryID string
	Price      decimal.Decimal
	Cost       decimal.Decimal
	Sellable   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewMenuItem(id, name, categoryID string, price decimal.Decimal) (*MenuItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if price.IsNegative() {
		return nil, ErrInvalidPrice
	}
	now := time.Now().UTC()
	return &MenuItem{
		ID:         id,
		Name:       name,
		CategoryID: categoryID,
		Price:      price,
		Cost:       decimal.Zero,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (m *MenuItem) Clone() *MenuItem {
	if m == nil {
		return nil
	}
	clone := *m
	return &clone
}

// Recipe is one ingredient edge: Quantity of InventoryID per unit of MenuItemID.
type Recipe struct {
	ID          string
	MenuItemID  string
	InventoryID string
	Quantity    decimal.Decimal
	Unit        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewRecipe(id, menuItemID, inventoryID string, quantity decimal.Decimal, unit string) (*Recipe, error) {
	if !quantity.IsPositive() {
		return nil, ErrInvalidRecipeAmount
	}
	now := time.Now().UTC()
	return &Recipe{
		ID:          id,
		MenuItemID:  menuItemID,
		InventoryID: inventoryID,
		Quantity:    quantity,
		Unit:        unit,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (r *Recipe) Clone() *Recipe {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// NotFoundError lists requested menu items that do not exist.
type NotFoundError struct {
	IDs []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("catalog: menu items not found: %s", strings.Join(e.IDs, ", "))
}

func (e *NotFoundError) Unwrap() error { return ErrMenuItemNotFound }

// UnsellableError names the menu item that blocked an order.
type UnsellableError struct {
	MenuItemID string
	Name       string
}

func (e *UnsellableError) Error() string {
	return fmt.Sprintf("catalog: menu item %q is not available", e.Name)
}

func (e *UnsellableError) Unwrap() error { return ErrUnsellable }
