package worker

import (
	"context"
	"fmt"

	appcatalog "github.com/Zhima-Mochi/kitchenledger/internal/application/catalog"
	dominv "github.com/Zhima-Mochi/kitchenledger/internal/domain/inventory"
	domoutbox "github.com/Zhima-Mochi/kitchenledger/internal/domain/outbox"
	"github.com/Zhima-Mochi/kitchenledger/internal/domain/uow"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability/logctx"
)

// Worker raises stock alerts. When an ingredient drops to low or out of
// stock it logs the menu items whose recipes use it, so the kitchen knows
// what is about to stop selling.
type Worker struct {
	uow        uow.UnitOfWork
	calc       *appcatalog.Calculator
	subscriber domoutbox.Subscriber
	wrap       func(name string, h domoutbox.Handler) domoutbox.Handler
	log        observability.Logger
}

func New(u uow.UnitOfWork, calc *appcatalog.Calculator, subscriber domoutbox.Subscriber, wrap func(string, domoutbox.Handler) domoutbox.Handler, tel observability.Observability) *Worker {
	if tel == nil {
		tel = observability.Nop()
	}
	if calc == nil {
		calc = appcatalog.NewCalculator()
	}
	return &Worker{
		uow:        u,
		calc:       calc,
		subscriber: subscriber,
		wrap:       wrap,
		log:        tel.Logger().With(observability.F("component", "inventory_worker")),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.uow == nil {
		return
	}
	var h domoutbox.Handler = w.handleStatusChanged
	if w.wrap != nil {
		h = w.wrap("stock_alert", h)
	}
	w.subscriber.Subscribe(dominv.StatusChangedEvent{}.EventName(), h)
}

func (w *Worker) handleStatusChanged(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(dominv.StatusChangedEvent)
	if !ok {
		return nil
	}
	logger := logctx.FromOr(ctx, w.log).With(
		observability.F("inventory_id", evt.ItemID),
		observability.F("inventory_name", evt.Name),
		observability.F("from", string(evt.From)),
		observability.F("to", string(evt.To)),
		observability.F("quantity", evt.Quantity),
	)

	if evt.To == dominv.StatusInStock {
		logger.Info("inventory_restored")
		return nil
	}

	var affected []string
	err := w.uow.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		var err error
		affected, err = w.calc.AffectedBy(ctx, tx, []string{evt.ItemID})
		return err
	})
	if err != nil {
		logger.Warn("stock_alert_lookup_failed", observability.F("error", err))
		return fmt.Errorf("inventory worker: affected menu items for %s: %w", evt.ItemID, err)
	}

	msg := "inventory_low_stock"
	if evt.To == dominv.StatusOutOfStock {
		msg = "inventory_out_of_stock"
	}
	logger.Warn(msg, observability.F("menu_items", affected))
	return nil
}
