package order

import (
	"context"
	"strings"

	"github.com/Zhima-Mochi/kitchenledger/internal/application"
	appcatalog "github.com/Zhima-Mochi/kitchenledger/internal/application/catalog"
	dominv "github.com/Zhima-Mochi/kitchenledger/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/kitchenledger/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/kitchenledger/internal/domain/outbox"
	dompay "github.com/Zhima-Mochi/kitchenledger/internal/domain/payment"
	"github.com/Zhima-Mochi/kitchenledger/internal/domain/uow"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const useCaseOrderUpdate = "order.update"

var _ application.UseCase[UpdateOrderInput, *OrderView] = (*UpdateOrderUseCase)(nil)

// UpdateOrderUseCase replaces an order's lines and/or moves its status. New
// lines are re-priced at current menu prices; the client total is not checked.
type UpdateOrderUseCase struct {
	*core
}

type UpdateOrderInput struct {
	OrderID string
	// Items replaces every line when non-nil.
	Items           []RequestedItem
	Status          *domain.Status
	DeliveryAddress *string
}

func (uc *UpdateOrderUseCase) Execute(ctx context.Context, cmd UpdateOrderInput) (_ *OrderView, err error) {
	ctx, probe := uc.obs.Begin(ctx, useCaseOrderUpdate, "UpdateOrder",
		attribute.String("order.id", cmd.OrderID),
		attribute.Bool("order.replace_items", cmd.Items != nil),
	)
	defer func() { probe.End(err) }()

	if cmd.OrderID == "" {
		probe.Fail("ORDER_ID_REQUIRED")
		return nil, application.NewValidation("order id is required")
	}
	if cmd.Items == nil && cmd.Status == nil && cmd.DeliveryAddress == nil {
		probe.Fail("NOTHING_TO_UPDATE")
		return nil, application.NewValidation("items, status or delivery address must be supplied")
	}
	if cmd.DeliveryAddress != nil && strings.TrimSpace(*cmd.DeliveryAddress) == "" {
		probe.Fail("DELIVERY_ADDRESS_INVALID")
		return nil, application.NewValidation("delivery address must not be blank")
	}
	var lines []appcatalog.Line
	if cmd.Items != nil {
		if lines, err = normalize(cmd.Items); err != nil {
			probe.Fail("ITEMS_INVALID")
			return nil, err
		}
	}
	if cmd.Status != nil {
		if !cmd.Status.Valid() {
			probe.Fail("STATUS_INVALID")
			return nil, application.NewValidation("unknown status " + string(*cmd.Status))
		}
		if *cmd.Status == domain.StatusCancelled && cmd.Items != nil {
			probe.Fail("CANCEL_WITH_ITEMS")
			return nil, application.NewValidation("items cannot change while cancelling")
		}
	}

	var (
		updated *domain.Order
		txns    []*dompay.Transaction
		events  []domoutbox.Event
	)
	err = uc.uow.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		events = nil
		o, err := tx.Orders().GetForUpdate(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		touched := appcatalog.Requirements{}

		if cmd.DeliveryAddress != nil {
			if o.Status != domain.StatusPending {
				return domain.ErrNotEditable
			}
			o.DeliveryAddress = strings.TrimSpace(*cmd.DeliveryAddress)
		}

		if lines != nil {
			if o.Status != domain.StatusPending {
				return domain.ErrNotEditable
			}
			changes, err := uc.releaseConsumption(ctx, tx, o, touched)
			if err != nil {
				return err
			}
			events = append(events, statusEvents(changes)...)

			// sellability is judged after this order's own stock is back
			priced, err := uc.priceLines(ctx, tx, lines)
			if err != nil {
				return err
			}
			req, err := uc.calc.Aggregate(ctx, tx, lines)
			if err != nil {
				return err
			}
			changes, err = uc.ledger.Reserve(ctx, tx, o.ID, req)
			if err != nil {
				return err
			}
			events = append(events, statusEvents(changes)...)
			if err := o.ReplaceItems(uc.orderItems(priced), uc.pricer.ComputeTotal(priced)); err != nil {
				return err
			}
			o.Consumption = consumptionOf(req)
			touched.Merge(req)
		}

		if cmd.Status != nil {
			previous := o.Status
			if err := o.TransitionTo(*cmd.Status); err != nil {
				return err
			}
			if o.Status == domain.StatusCancelled && previous != domain.StatusCancelled {
				changes, err := uc.releaseConsumption(ctx, tx, o, touched)
				if err != nil {
					return err
				}
				events = append(events, statusEvents(changes)...)
			}
		}

		if err := tx.Orders().Update(ctx, o); err != nil {
			return err
		}
		if err := uc.calc.RecomputeForInventory(ctx, tx, touched.IDs()); err != nil {
			return err
		}
		if txns, err = tx.Transactions().ListByOrder(ctx, o.ID); err != nil {
			return err
		}
		updated = o
		events = append([]domoutbox.Event{domain.NewOrderUpdatedEvent(o)}, events...)
		return nil
	})
	if err != nil {
		probe.Fail(failureStatus(err))
		return nil, err
	}

	uc.invalidate(ctx, updated.ID)
	if pubErr := uc.obs.PublishAll(ctx, uc.publisher, events...); pubErr != nil {
		probe.Annotate(observability.F("event_publish_error", pubErr.Error()))
	}
	probe.Annotate(
		observability.F("order_id", updated.ID),
		observability.F("order_status", string(updated.Status)),
	)
	return NewOrderView(updated, txns), nil
}

// releaseConsumption returns everything the order holds to the ledger and
// clears the snapshot, so a second release finds nothing.
func (c *core) releaseConsumption(ctx context.Context, tx uow.Tx, o *domain.Order, touched appcatalog.Requirements) ([]dominv.StatusChangedEvent, error) {
	if len(o.Consumption) == 0 {
		return nil, nil
	}
	restitution := restitutionOf(o.Consumption)
	changes, err := c.ledger.Release(ctx, tx, o.ID, restitution)
	if err != nil {
		return nil, err
	}
	touched.Merge(restitution)
	o.Consumption = nil
	return changes, nil
}
