package inventory

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("inventory: item not found")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be greater than zero")
	ErrNegativeValue     = errors.New("inventory: value must not be negative")
	ErrNameRequired      = errors.New("inventory: name is required")
	ErrUnitRequired      = errors.New("inventory: unit is required")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	ErrUnavailable       = errors.New("inventory: ingredient unavailable")
	ErrDuplicateName     = errors.New("inventory: name already exists")
	ErrInUse             = errors.New("inventory: item is referenced by recipes")
)

type Status string

const (
	StatusInStock    Status = "in_stock"
	StatusLowStock   Status = "low_stock"
	StatusOutOfStock Status = "out_of_stock"
)

// StatusFor derives the stock status from a balance and its threshold.
func StatusFor(quantity, minimumStock decimal.Decimal) Status {
	switch {
	case quantity.LessThanOrEqual(decimal.Zero):
		return StatusOutOfStock
	case quantity.LessThanOrEqual(minimumStock):
		return StatusLowStock
	default:
		return StatusInStock
	}
}

// Item is a raw ingredient tracked by the ledger. A non-nil DeletedAt marks a
// tombstone: the row keeps its history but is excluded from live lookups.
type Item struct {
	ID           string
	Name         string
	Unit         string
	Quantity     decimal.Decimal
	MinimumStock decimal.Decimal
	UnitPrice    decimal.Decimal
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

func NewItem(id, name, unit string, quantity, minimumStock, unitPrice decimal.Decimal) (*Item, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if strings.TrimSpace(unit) == "" {
		return nil, ErrUnitRequired
	}
	if quantity.IsNegative() || minimumStock.IsNegative() || unitPrice.IsNegative() {
		return nil, ErrNegativeValue
	}
	now := time.Now().UTC()
	return &Item{
		ID:           id,
		Name:         name,
		Unit:         unit,
		Quantity:     quantity,
		MinimumStock: minimumStock,
		UnitPrice:    unitPrice,
		Status:       StatusFor(quantity, minimumStock),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (i *Item) Deleted() bool { return i.DeletedAt != nil }

// Withdraw removes amount from the balance. It never lets the balance go negative.
func (i *Item) Withdraw(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidQuantity
	}
	if i.Quantity.LessThan(amount) {
		return &StockError{ItemID: i.ID, Name: i.Name, Required: amount, Available: i.Quantity}
	}
	i.Quantity = i.Quantity.Sub(amount)
	i.refresh()
	return nil
}

// Restore adds amount back to the balance.
func (i *Item) Restore(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidQuantity
	}
	i.Quantity = i.Quantity.Add(amount)
	i.refresh()
	return nil
}

// Changes is an explicit set of field edits. Nil fields are left untouched.
type Changes struct {
	Name         *string
	Unit         *string
	Quantity     *decimal.Decimal
	MinimumStock *decimal.Decimal
	UnitPrice    *decimal.Decimal
}

func (c Changes) Empty() bool {
	return c.Name == nil && c.Unit == nil && c.Quantity == nil && c.MinimumStock == nil && c.UnitPrice == nil
}

// Apply validates and applies the edits, re-deriving the status.
func (i *Item) Apply(c Changes) error {
	if c.Name != nil {
		name := strings.TrimSpace(*c.Name)
		if name == "" {
			return ErrNameRequired
		}
		i.Name = name
	}
	if c.Unit != nil {
		if strings.TrimSpace(*c.Unit) == "" {
			return ErrUnitRequired
		}
		i.Unit = *c.Unit
	}
	for _, v := range []*decimal.Decimal{c.Quantity, c.MinimumStock, c.UnitPrice} {
		if v != nil && v.IsNegative() {
			return ErrNegativeValue
		}
	}
	if c.Quantity != nil {
		i.Quantity = *c.Quantity
	}
	if c.MinimumStock != nil {
		i.MinimumStock = *c.MinimumStock
	}
	if c.UnitPrice != nil {
		i.UnitPrice = *c.UnitPrice
	}
	i.refresh()
	return nil
}

func (i *Item) Tombstone(at time.Time) {
	at = at.UTC()
	i.DeletedAt = &at
	i.UpdatedAt = at
}

func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	clone := *i
	if i.DeletedAt != nil {
		at := *i.DeletedAt
		clone.DeletedAt = &at
	}
	return &clone
}

func (i *Item) refresh() {
	i.Status = StatusFor(i.Quantity, i.MinimumStock)
	i.UpdatedAt = time.Now().UTC()
}

// StockError reports a deduction larger than the available balance.
type StockError struct {
	ItemID    string
	Name      string
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *StockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for %q: required %s, available %s",
		e.Name, e.Required.String(), e.Available.String())
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// UnavailableError reports a recipe ingredient that is missing or tombstoned.
type UnavailableError struct {
	ItemID string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("inventory: ingredient %s is unavailable", e.ItemID)
}

func (e *UnavailableError) Unwrap() error { return ErrUnavailable }
