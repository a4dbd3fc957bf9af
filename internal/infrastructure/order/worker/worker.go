package worker

import (
	"context"
	"fmt"

	apporder "github.com/Zhima-Mochi/kitchenledger/internal/application/order"
	domoutbox "github.com/Zhima-Mochi/kitchenledger/internal/domain/outbox"
	dompay "github.com/Zhima-Mochi/kitchenledger/internal/domain/payment"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability/logctx"
)

// Worker keeps the order read cache honest for changes made outside the
// order coordinator. A settled payment changes the transactions embedded in
// the cached view, so the entry is dropped.
type Worker struct {
	cache      apporder.Cache
	subscriber domoutbox.Subscriber
	wrap       func(name string, h domoutbox.Handler) domoutbox.Handler
	log        observability.Logger
}

// New builds the worker. wrap may decorate each handler (tracing, logging); nil leaves them bare.
func New(cache apporder.Cache, subscriber domoutbox.Subscriber, wrap func(string, domoutbox.Handler) domoutbox.Handler, tel observability.Observability) *Worker {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Worker{
		cache:      cache,
		subscriber: subscriber,
		wrap:       wrap,
		log:        tel.Logger().With(observability.F("component", "order_worker")),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.cache == nil {
		return
	}
	var h domoutbox.Handler = w.handlePaymentSettled
	if w.wrap != nil {
		h = w.wrap("order_cache_invalidation", h)
	}
	w.subscriber.Subscribe(dompay.SettledEvent{}.EventName(), h)
}

func (w *Worker) handlePaymentSettled(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(dompay.SettledEvent)
	if !ok {
		return nil
	}
	logger := logctx.FromOr(ctx, w.log)
	if err := w.cache.Invalidate(ctx, evt.OrderID); err != nil {
		logger.Warn("order_cache_invalidate_failed",
			observability.F("order_id", evt.OrderID),
			observability.F("error", err),
		)
		return fmt.Errorf("order worker: invalidate %s: %w", evt.OrderID, err)
	}
	logger.Debug("order_cache_invalidated",
		observability.F("order_id", evt.OrderID),
		observability.F("payment_status", string(evt.Status)),
	)
	return nil
}
