package order

import (
	"context"
	"errors"
	"time"

	domain "github.com/Zhima-Mochi/kitchenledger/internal/domain/order"
	dompay "github.com/Zhima-Mochi/kitchenledger/internal/domain/payment"

	"github.com/shopspring/decimal"
)

// ErrCacheMiss is returned by Cache.Get when nothing is cached for the id.
var ErrCacheMiss = errors.New("order: cache miss")

// Cache is an optional read-through cache for GetOrder.
type Cache interface {
	Get(ctx context.Context, id string) (*OrderView, error)
	Set(ctx context.Context, view *OrderView) error
	Invalidate(ctx context.Context, id string) error
}

type nopCache struct{}

func (nopCache) Get(context.Context, string) (*OrderView, error) { return nil, ErrCacheMiss }
func (nopCache) Set(context.Context, *OrderView) error           { return nil }
func (nopCache) Invalidate(context.Context, string) error        { return nil }

type ItemView struct {
	ID         string          `json:"id"`
	MenuItemID string          `json:"menu_item_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

type TransactionView struct {
	Reference        string          `json:"reference"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Method           dompay.Method   `json:"method"`
	Status           dompay.Status   `json:"status"`
	AuthorizationURL string          `json:"authorization_url,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// OrderView is the read model served to clients and cached.
type OrderView struct {
	ID              string            `json:"id"`
	CustomerID      string            `json:"customer_id"`
	Status          domain.Status     `json:"status"`
	Total           decimal.Decimal   `json:"total"`
	DeliveryFee     decimal.Decimal   `json:"delivery_fee"`
	DeliveryAddress string            `json:"delivery_address"`
	Items           []ItemView        `json:"items"`
	Transactions    []TransactionView `json:"transactions,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func NewOrderView(o *domain.Order, txns []*dompay.Transaction) *OrderView {
	v := &OrderView{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		Status:          o.Status,
		Total:           o.Total,
		DeliveryFee:     o.DeliveryFee,
		DeliveryAddress: o.DeliveryAddress,
		Items:           make([]ItemView, 0, len(o.Items)),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for _, it := range o.Items {
		v.Items = append(v.Items, ItemView{
			ID:         it.ID,
			MenuItemID: it.MenuItemID,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			Subtotal:   it.Subtotal,
		})
	}
	for _, t := range txns {
		v.Transactions = append(v.Transactions, TransactionView{
			Reference:        t.Reference,
			Amount:           t.Amount,
			Currency:         t.Currency,
			Method:           t.Method,
			Status:           t.Status,
			AuthorizationURL: t.AuthorizationURL,
			CreatedAt:        t.CreatedAt,
		})
	}
	return v
}
