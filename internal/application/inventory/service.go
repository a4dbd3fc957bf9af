package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/kitchenledger/internal/application"
	appcatalog "github.com/Zhima-Mochi/kitchenledger/internal/application/catalog"
	domain "github.com/Zhima-Mochi/kitchenledger/internal/domain/inventory"
	domoutbox "github.com/Zhima-Mochi/kitchenledger/internal/domain/outbox"
	"github.com/Zhima-Mochi/kitchenledger/internal/domain/uow"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const (
	inventoryService     = "inventory-service"
	useCaseItemCreate    = "inventory.create"
	useCaseItemAdjust    = "inventory.adjust"
	useCaseItemRestock   = "inventory.restock"
	useCaseItemDelete    = "inventory.delete"
	useCaseItemGet       = "inventory.get"
	useCaseItemList      = "inventory.list"
	useCaseItemMovements = "inventory.movements"
)

// Service holds the inventory mutations that sit outside order placement.
// Each one recomputes the menu items that use the touched ingredient.
type Service struct {
	uow       uow.UnitOfWork
	ledger    *Ledger
	calc      *appcatalog.Calculator
	ids       application.IDGenerator
	publisher domoutbox.Publisher
	obs       application.Instruments
}

func NewService(
	u uow.UnitOfWork,
	ledger *Ledger,
	calc *appcatalog.Calculator,
	ids application.IDGenerator,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *Service {
	return &Service{
		uow:       u,
		ledger:    ledger,
		calc:      calc,
		ids:       ids,
		publisher: publisher,
		obs:       application.NewInstruments(tel, inventoryService),
	}
}

type CreateItemInput struct {
	Name         string
	Unit         string
	Quantity     decimal.Decimal
	MinimumStock decimal.Decimal
	UnitPrice    decimal.Decimal
}

func (s *Service) CreateItem(ctx context.Context, in CreateItemInput) (_ *domain.Item, err error) {
	ctx, probe := s.obs.Begin(ctx, useCaseItemCreate, "CreateInventoryItem", attribute.String("inventory.name", in.Name))
	defer func() { probe.End(err) }()

	item, err := domain.NewItem(s.ids.NewID(), in.Name, in.Unit, in.Quantity, in.MinimumStock, in.UnitPrice)
	if err != nil {
		probe.Fail("INVALID_ITEM")
		return nil, fmt.Errorf("%w: %w", application.ErrValidation, err)
	}

	err = s.uow.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		if err := ensureUniqueName(ctx, tx, item.Name, ""); err != nil {
			return err
		}
		if err := tx.Inventory().Insert(ctx, item); err != nil {
			return err
		}
		if item.Quantity.IsPositive() {
			if err := s.ledger.record(ctx, tx, item, "", domain.MovementAdjust, item.Quantity); err != nil {
				return err
			}
		}
		return s.calc.RecomputeForInventory(ctx, tx, []string{item.ID})
	})
	if err != nil {
		probe.Fail(failureStatus(err))
		return nil, err
	}
	probe.Annotate(observability.F("inventory_id", item.ID))
	return item, nil
}

// AdjustItem applies explicit field edits and returns the new snapshot.
func (s *Service) AdjustItem(ctx context.Context, id string, changes domain.Changes) (_ *domain.Item, err error) {
	ctx, probe := s.obs.Begin(ctx, useCaseItemAdjust, "AdjustInventoryItem", attribute.String("inventory.id", id))
	defer func() { probe.End(err) }()

	if changes.Empty() {
		probe.Fail("NO_CHANGES")
		return nil, application.NewValidation("no changes supplied")
	}

	var updated *domain.Item
	var events []domoutbox.Event
	err = s.uow.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		item, err := tx.Inventory().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		beforeQty, beforeStatus := item.Quantity, item.Status
		if err := item.Apply(changes); err != nil {
			return fmt.Errorf("%w: %w", application.ErrValidation, err)
		}
		if changes.Name != nil {
			if err := ensureUniqueName(ctx, tx, item.Name, item.ID); err != nil {
				return err
			}
		}
		if err := tx.Inventory().Update(ctx, item); err != nil {
			return err
		}
		if delta := item.Quantity.Sub(beforeQty); !delta.IsZero() {
			if err := s.ledger.record(ctx, tx, item, "", domain.MovementAdjust, delta); err != nil {
				return err
			}
		}
		if item.Status != beforeStatus {
			events = append(events, domain.NewStatusChangedEvent(item, beforeStatus))
		}
		updated = item
		return s.calc.RecomputeForInventory(ctx, tx, []string{item.ID})
	})
	if err != nil {
		probe.Fail(failureStatus(err))
		return nil, err
	}
	_ = s.obs.PublishAll(ctx, s.publisher, events...)
	return updated, nil
}

// Restock adds a positive amount to an item's balance.
func (s *Service) Restock(ctx context.Context, id string, amount decimal.Decimal) (_ *domain.Item, err error) {
	ctx, probe := s.obs.Begin(ctx, useCaseItemRestock, "RestockInventoryItem",
		attribute.String("inventory.id", id),
		attribute.String("inventory.amount", amount.String()),
	)
	defer func() { probe.End(err) }()

	if !amount.IsPositive() {
		probe.Fail("QUANTITY_INVALID")
		return nil, application.NewValidation("restock amount must be greater than zero")
	}

	var updated *domain.Item
	var events []domoutbox.Event
	err = s.uow.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		item, err := tx.Inventory().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		before := item.Status
		if err := item.Restore(amount); err != nil {
			return err
		}
		if err := s.ledger.persist(ctx, tx, item, "", domain.MovementAdjust, amount); err != nil {
			return err
		}
		if item.Status != before {
			events = append(events, domain.NewStatusChangedEvent(item, before))
		}
		updated = item
		return s.calc.RecomputeForInventory(ctx, tx, []string{item.ID})
	})
	if err != nil {
		probe.Fail(failureStatus(err))
		return nil, err
	}
	_ = s.obs.PublishAll(ctx, s.publisher, events...)
	return updated, nil
}

// DeleteItem tombstones an item. While recipes still reference it the call is
// rejected with domain.ErrInUse unless force is set; forcing leaves the
// recipes dangling, which makes their menu items unsellable.
func (s *Service) DeleteItem(ctx context.Context, id string, force bool) (err error) {
	ctx, probe := s.obs.Begin(ctx, useCaseItemDelete, "DeleteInventoryItem",
		attribute.String("inventory.id", id),
		attribute.Bool("inventory.force", force),
	)
	defer func() { probe.End(err) }()

	err = s.uow.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		item, err := tx.Inventory().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		affected, err := s.calc.AffectedBy(ctx, tx, []string{id})
		if err != nil {
			return err
		}
		if len(affected) > 0 && !force {
			return fmt.Errorf("%w: used by %d menu items", domain.ErrInUse, len(affected))
		}
		item.Tombstone(time.Now())
		if err := tx.Inventory().Update(ctx, item); err != nil {
			return err
		}
		return s.calc.RecomputeAffected(ctx, tx, affected)
	})
	if err != nil {
		probe.Fail(failureStatus(err))
	}
	return err
}

func (s *Service) GetItem(ctx context.Context, id string) (_ *domain.Item, err error) {
	ctx, probe := s.obs.Begin(ctx, useCaseItemGet, "GetInventoryItem", attribute.String("inventory.id", id))
	defer func() { probe.End(err) }()

	var item *domain.Item
	err = s.uow.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		var err error
		item, err = tx.Inventory().Get(ctx, id)
		return err
	})
	if err != nil {
		probe.Fail(failureStatus(err))
		return nil, err
	}
	return item, nil
}

func (s *Service) ListItems(ctx context.Context) (_ []*domain.Item, err error) {
	ctx, probe := s.obs.Begin(ctx, useCaseItemList, "ListInventoryItems")
	defer func() { probe.End(err) }()

	var items []*domain.Item
	err = s.uow.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		var err error
		items, err = tx.Inventory().List(ctx)
		return err
	})
	if err != nil {
		probe.Fail(failureStatus(err))
		return nil, err
	}
	probe.Annotate(observability.F("count", len(items)))
	return items, nil
}

func (s *Service) Movements(ctx context.Context, id string) (_ []domain.Movement, err error) {
	ctx, probe := s.obs.Begin(ctx, useCaseItemMovements, "ListInventoryMovements", attribute.String("inventory.id", id))
	defer func() { probe.End(err) }()

	var out []domain.Movement
	err = s.uow.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		var err error
		out, err = tx.Inventory().Movements(ctx, id)
		return err
	})
	if err != nil {
		probe.Fail(failureStatus(err))
		return nil, err
	}
	return out, nil
}

func ensureUniqueName(ctx context.Context, tx uow.Tx, name, selfID string) error {
	existing, err := tx.Inventory().FindByName(ctx, name)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != selfID:
		return fmt.Errorf("%w: %q", domain.ErrDuplicateName, name)
	}
	return nil
}

func failureStatus(err error) string {
	switch {
	case errors.Is(err, application.ErrValidation):
		return "VALIDATION_FAILED"
	case errors.Is(err, domain.ErrNotFound):
		return "INVENTORY_NOT_FOUND"
	case errors.Is(err, domain.ErrDuplicateName):
		return "DUPLICATE_NAME"
	case errors.Is(err, domain.ErrInUse):
		return "INVENTORY_IN_USE"
	default:
		return "UNIT_OF_WORK_FAILED"
	}
}
