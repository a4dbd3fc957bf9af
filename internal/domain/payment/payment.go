package payment

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound           = errors.New("payment: transaction not found")
	ErrConflict           = errors.New("payment: transaction reference already exists")
	ErrInvalidAmount      = errors.New("payment: amount must be greater than zero")
	ErrReferenceRequired  = errors.New("payment: reference is required")
	ErrVerificationFailed = errors.New("payment: verification failed")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Method string

const MethodCard Method = "card"

// Transaction records the payment attempt attached to an order.
type Transaction struct {
	ID               string
	OrderID          string
	Reference        string
	Amount           decimal.Decimal
	Currency         string
	Method           Method
	Status           Status
	AuthorizationURL string
	AccessCode       string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func NewTransaction(id, orderID, reference string, amount decimal.Decimal, currency string) (*Transaction, error) {
	if reference == "" {
		return nil, ErrReferenceRequired
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	now := time.Now().UTC()
	return &Transaction{
		ID:        id,
		OrderID:   orderID,
		Reference: reference,
		Amount:    amount,
		Currency:  currency,
		Method:    MethodCard,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Initiated reports whether the gateway already returned a checkout for this transaction.
func (t *Transaction) Initiated() bool { return t.AuthorizationURL != "" }

func (t *Transaction) RecordInitiation(in Initiation) {
	t.AuthorizationURL = in.AuthorizationURL
	t.AccessCode = in.AccessCode
	t.touch()
}

func (t *Transaction) MarkCompleted() {
	t.Status = StatusCompleted
	t.touch()
}

func (t *Transaction) MarkFailed() {
	t.Status = StatusFailed
	t.touch()
}

func (t *Transaction) Initiation() Initiation {
	return Initiation{
		Reference:        t.Reference,
		AuthorizationURL: t.AuthorizationURL,
		AccessCode:       t.AccessCode,
	}
}

func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	clone := *t
	return &clone
}

func (t *Transaction) touch() {
	t.UpdatedAt = time.Now().UTC()
}

type Repository interface {
	Insert(ctx context.Context, tx *Transaction) error
	Update(ctx context.Context, tx *Transaction) error
	GetByReference(ctx context.Context, reference string) (*Transaction, error)
	ListByOrder(ctx context.Context, orderID string) ([]*Transaction, error)
}
