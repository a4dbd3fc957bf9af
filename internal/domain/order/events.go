package order

import "time"

type EventItem struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
	UnitPrice  string `json:"unit_price"`
}

// OrderCreatedEvent is emitted after the creating unit of work commits.
type OrderCreatedEvent struct {
	OrderID    string      `json:"order_id"`
	CustomerID string      `json:"customer_id"`
	Total      string      `json:"total"`
	Items      []EventItem `json:"items"`
	OccurredAt time.Time   `json:"occurred_at"`
}

func (OrderCreatedEvent) EventName() string { return "order.created" }

func (e OrderCreatedEvent) AggregateID() string { return e.OrderID }

func NewOrderCreatedEvent(o *Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Total:      o.Total.String(),
		Items:      eventItems(o.Items),
		OccurredAt: time.Now().UTC(),
	}
}

// OrderUpdatedEvent is emitted when lines or status change.
type OrderUpdatedEvent struct {
	OrderID    string      `json:"order_id"`
	Status     Status      `json:"status"`
	Total      string      `json:"total"`
	Items      []EventItem `json:"items"`
	OccurredAt time.Time   `json:"occurred_at"`
}

func (OrderUpdatedEvent) EventName() string { return "order.updated" }

func (e OrderUpdatedEvent) AggregateID() string { return e.OrderID }

func NewOrderUpdatedEvent(o *Order) OrderUpdatedEvent {
	return OrderUpdatedEvent{
		OrderID:    o.ID,
		Status:     o.Status,
		Total:      o.Total.String(),
		Items:      eventItems(o.Items),
		OccurredAt: time.Now().UTC(),
	}
}

// OrderCancelledEvent is emitted when an order is removed and its stock released.
type OrderCancelledEvent struct {
	OrderID    string    `json:"order_id"`
	CustomerID string    `json:"customer_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (OrderCancelledEvent) EventName() string { return "order.cancelled" }

func (e OrderCancelledEvent) AggregateID() string { return e.OrderID }

func NewOrderCancelledEvent(o *Order) OrderCancelledEvent {
	return OrderCancelledEvent{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		OccurredAt: time.Now().UTC(),
	}
}

func eventItems(items []Item) []EventItem {
	out := make([]EventItem, 0, len(items))
	for _, it := range items {
		out = append(out, EventItem{
			MenuItemID: it.MenuItemID,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice.String(),
		})
	}
	return out
}
