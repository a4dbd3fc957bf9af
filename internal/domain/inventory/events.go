package inventory

import "time"

// StatusChangedEvent is emitted after commit when an item's stock status moves.
type StatusChangedEvent struct {
	ItemID     string    `json:"item_id"`
	Name       string    `json:"name"`
	From       Status    `json:"from"`
	To         Status    `json:"to"`
	Quantity   string    `json:"quantity"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (StatusChangedEvent) EventName() string { return "inventory.status_changed" }

func (e StatusChangedEvent) AggregateID() string { return e.ItemID }

func NewStatusChangedEvent(item *Item, from Status) StatusChangedEvent {
	return StatusChangedEvent{
		ItemID:     item.ID,
		Name:       item.Name,
		From:       from,
		To:         item.Status,
		Quantity:   item.Quantity.String(),
		OccurredAt: time.Now().UTC(),
	}
}
