package order

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/kitchenledger/internal/application"
	appcatalog "github.com/Zhima-Mochi/kitchenledger/internal/application/catalog"
	domain "github.com/Zhima-Mochi/kitchenledger/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/kitchenledger/internal/domain/outbox"
	"github.com/Zhima-Mochi/kitchenledger/internal/domain/uow"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const useCaseOrderCancel = "order.cancel"

var _ application.UseCase[string, struct{}] = (*CancelOrderUseCase)(nil)

// CancelOrderUseCase removes an order: its stock goes back to the ledger, its
// lines are dropped and the order row is tombstoned.
type CancelOrderUseCase struct {
	*core
}

func (uc *CancelOrderUseCase) Execute(ctx context.Context, orderID string) (_ struct{}, err error) {
	ctx, probe := uc.obs.Begin(ctx, useCaseOrderCancel, "CancelOrder", attribute.String("order.id", orderID))
	defer func() { probe.End(err) }()

	if orderID == "" {
		probe.Fail("ORDER_ID_REQUIRED")
		return struct{}{}, application.NewValidation("order id is required")
	}

	var events []domoutbox.Event
	err = uc.uow.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		events = nil
		o, err := tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		touched := appcatalog.Requirements{}
		changes, err := uc.releaseConsumption(ctx, tx, o, touched)
		if err != nil {
			return err
		}
		if o.Status != domain.StatusCompleted {
			if err := o.TransitionTo(domain.StatusCancelled); err != nil {
				return err
			}
		}
		o.Items = nil
		o.Tombstone(time.Now())
		if err := tx.Orders().Update(ctx, o); err != nil {
			return err
		}
		if err := uc.calc.RecomputeForInventory(ctx, tx, touched.IDs()); err != nil {
			return err
		}
		events = append([]domoutbox.Event{domain.NewOrderCancelledEvent(o)}, statusEvents(changes)...)
		return nil
	})
	if err != nil {
		probe.Fail(failureStatus(err))
		return struct{}{}, err
	}

	uc.invalidate(ctx, orderID)
	if pubErr := uc.obs.PublishAll(ctx, uc.publisher, events...); pubErr != nil {
		probe.Annotate(observability.F("event_publish_error", pubErr.Error()))
	}
	return struct{}{}, nil
}
