package order

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound               = errors.New("order: not found")
	ErrConflict               = errors.New("order: conflict")
	ErrInvalidQuantity        = errors.New("order: quantity must be greater than zero")
	ErrEmpty                  = errors.New("order: at least one item is required")
	ErrInvalidStateTransition = errors.New("order: invalid state transition")
	ErrNotEditable            = errors.New("order: items can only change while pending")
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusOutForDelivery Status = "out-for-delivery"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusOutForDelivery, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Item is a priced order line. UnitPrice is captured at order time.
type Item struct {
	ID         string
	OrderID    string
	MenuItemID string
	Quantity   int
	UnitPrice  decimal.Decimal
	Subtotal   decimal.Decimal
}

// Consumption is the ingredient quantity reserved for an order. It is what
// gets released on update or cancellation.
type Consumption struct {
	InventoryID string
	Quantity    decimal.Decimal
}

type Order struct {
	ID              string
	CustomerID      string
	Total           decimal.Decimal
	DeliveryFee     decimal.Decimal
	DeliveryAddress string
	Status          Status
	Items           []Item
	Consumption     []Consumption
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       *time.Time
}

func New(id, customerID string, items []Item, deliveryFee, total decimal.Decimal) (*Order, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	o := &Order{
		ID:          id,
		CustomerID:  customerID,
		Total:       total,
		DeliveryFee: deliveryFee,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	o.setItems(items)
	return o, nil
}

// ReplaceItems swaps the order lines and total. Only pending orders are editable.
func (o *Order) ReplaceItems(items []Item, total decimal.Decimal) error {
	if o.Status != StatusPending {
		return ErrNotEditable
	}
	if err := validateItems(items); err != nil {
		return err
	}
	o.setItems(items)
	o.Total = total
	o.touch()
	return nil
}

// TransitionTo moves the order through its lifecycle. Staying in the
// current status is a no-op.
func (o *Order) TransitionTo(next Status) error {
	if next == o.Status {
		return nil
	}
	state, err := stateFor(o.Status)
	if err != nil {
		return err
	}
	var to OrderState
	switch next {
	case StatusOutForDelivery:
		to, err = state.OnDispatch(o)
	case StatusCompleted:
		to, err = state.OnComplete(o)
	case StatusCancelled:
		to, err = state.OnCancel(o)
	default:
		err = ErrInvalidStateTransition
	}
	if err != nil {
		return err
	}
	o.Status = to.Status()
	o.touch()
	return nil
}

func (o *Order) Deleted() bool { return o.DeletedAt != nil }

func (o *Order) Tombstone(at time.Time) {
	at = at.UTC()
	o.DeletedAt = &at
	o.UpdatedAt = at
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = append([]Item(nil), o.Items...)
	clone.Consumption = append([]Consumption(nil), o.Consumption...)
	if o.DeletedAt != nil {
		at := *o.DeletedAt
		clone.DeletedAt = &at
	}
	return &clone
}

func (o *Order) setItems(items []Item) {
	o.Items = make([]Item, len(items))
	for i, it := range items {
		it.OrderID = o.ID
		o.Items[i] = it
	}
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}

func validateItems(items []Item) error {
	if len(items) == 0 {
		return ErrEmpty
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return ErrInvalidQuantity
		}
	}
	return nil
}
