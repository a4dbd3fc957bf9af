package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

type MovementReason string

const (
	MovementReserve MovementReason = "reserve"
	MovementRelease MovementReason = "release"
	MovementAdjust  MovementReason = "adjust"
)

// Movement is one entry in an item's stock history. Delta is signed.
type Movement struct {
	ID        string
	ItemID    string
	OrderID   string
	Reason    MovementReason
	Delta     decimal.Decimal
	Balance   decimal.Decimal
	CreatedAt time.Time
}
