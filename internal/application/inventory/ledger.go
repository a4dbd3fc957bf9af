package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Zhima-Mochi/kitchenledger/internal/application"
	domain "github.com/Zhima-Mochi/kitchenledger/internal/domain/inventory"
	"github.com/Zhima-Mochi/kitchenledger/internal/domain/uow"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability/logctx"

	"github.com/shopspring/decimal"
)

// Ledger applies stock deductions and restitutions inside the caller's unit
// of work. Rows are locked in id order so concurrent orders cannot deadlock.
type Ledger struct {
	ids       application.IDGenerator
	conflicts observability.Counter // inventory_conflicts_total{reason}
	log       observability.Logger
}

func NewLedger(ids application.IDGenerator, tel observability.Observability) *Ledger {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Ledger{
		ids:       ids,
		conflicts: tel.Metrics().Counter(observability.MInventoryConflicts),
		log:       tel.Logger().With(observability.F("component", "inventory_ledger")),
	}
}

// Reserve withdraws every deduction or none. All balances are checked before
// the first write; any shortfall aborts with a *domain.StockError.
func (l *Ledger) Reserve(ctx context.Context, tx uow.Tx, orderID string, deductions map[string]decimal.Decimal) ([]domain.StatusChangedEvent, error) {
	ids := sortedIDs(deductions)
	items := make([]*domain.Item, 0, len(ids))
	for _, id := range ids {
		if !deductions[id].IsPositive() {
			return nil, fmt.Errorf("%w: deduction for %s", domain.ErrInvalidQuantity, id)
		}
		item, err := tx.Inventory().GetForUpdate(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			l.conflict(ctx, "unavailable", id)
			return nil, &domain.UnavailableError{ItemID: id}
		}
		if err != nil {
			return nil, fmt.Errorf("inventory: lock %s: %w", id, err)
		}
		items = append(items, item)
	}

	for _, item := range items {
		if item.Quantity.LessThan(deductions[item.ID]) {
			l.conflict(ctx, "insufficient_stock", item.ID)
			return nil, &domain.StockError{
				ItemID:    item.ID,
				Name:      item.Name,
				Required:  deductions[item.ID],
				Available: item.Quantity,
			}
		}
	}

	var changes []domain.StatusChangedEvent
	for _, item := range items {
		before := item.Status
		if err := item.Withdraw(deductions[item.ID]); err != nil {
			return nil, err
		}
		if err := l.persist(ctx, tx, item, orderID, domain.MovementReserve, deductions[item.ID].Neg()); err != nil {
			return nil, err
		}
		if item.Status != before {
			changes = append(changes, domain.NewStatusChangedEvent(item, before))
		}
	}
	return changes, nil
}

// Release credits stock back. Tombstoned items still receive it so that their
// history stays balanced.
func (l *Ledger) Release(ctx context.Context, tx uow.Tx, orderID string, restitutions map[string]decimal.Decimal) ([]domain.StatusChangedEvent, error) {
	var changes []domain.StatusChangedEvent
	for _, id := range sortedIDs(restitutions) {
		amount := restitutions[id]
		if !amount.IsPositive() {
			return nil, fmt.Errorf("%w: restitution for %s", domain.ErrInvalidQuantity, id)
		}
		item, err := tx.Inventory().GetForUpdateIncludingDeleted(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("inventory: lock %s: %w", id, err)
		}
		before := item.Status
		if err := item.Restore(amount); err != nil {
			return nil, err
		}
		if err := l.persist(ctx, tx, item, orderID, domain.MovementRelease, amount); err != nil {
			return nil, err
		}
		if item.Status != before && !item.Deleted() {
			changes = append(changes, domain.NewStatusChangedEvent(item, before))
		}
	}
	return changes, nil
}

func (l *Ledger) persist(ctx context.Context, tx uow.Tx, item *domain.Item, orderID string, reason domain.MovementReason, delta decimal.Decimal) error {
	if err := tx.Inventory().Update(ctx, item); err != nil {
		return fmt.Errorf("inventory: update %s: %w", item.ID, err)
	}
	return l.record(ctx, tx, item, orderID, reason, delta)
}

func (l *Ledger) record(ctx context.Context, tx uow.Tx, item *domain.Item, orderID string, reason domain.MovementReason, delta decimal.Decimal) error {
	m := domain.Movement{
		ID:        l.ids.NewID(),
		ItemID:    item.ID,
		OrderID:   orderID,
		Reason:    reason,
		Delta:     delta,
		Balance:   item.Quantity,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.Inventory().RecordMovement(ctx, m); err != nil {
		return fmt.Errorf("inventory: record movement for %s: %w", item.ID, err)
	}
	return nil
}

func (l *Ledger) conflict(ctx context.Context, reason, itemID string) {
	if l.conflicts != nil {
		l.conflicts.Add(1, observability.L("reason", reason))
	}
	logctx.FromOr(ctx, l.log).Info("inventory_reservation_rejected",
		observability.F("reason", reason),
		observability.F("inventory_id", itemID),
	)
}

func sortedIDs(m map[string]decimal.Decimal) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
