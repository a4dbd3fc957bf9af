package payment

import "time"

// SettledEvent is emitted after a verification outcome is stored.
type SettledEvent struct {
	OrderID    string    `json:"order_id"`
	Reference  string    `json:"reference"`
	Amount     string    `json:"amount"`
	Currency   string    `json:"currency"`
	Status     Status    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (SettledEvent) EventName() string { return "payment.settled" }

func (e SettledEvent) AggregateID() string { return e.OrderID }

func NewSettledEvent(t *Transaction) SettledEvent {
	return SettledEvent{
		OrderID:    t.OrderID,
		Reference:  t.Reference,
		Amount:     t.Amount.String(),
		Currency:   t.Currency,
		Status:     t.Status,
		OccurredAt: time.Now().UTC(),
	}
}
