package outbox

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	domoutbox "github.com/Zhima-Mochi/kitchenledger/internal/domain/outbox"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability/logctx"
)

// Bus is an in-memory event bus. Use cases publish after their unit of work
// commits; subscribers (the Kafka forwarder, the order cache) run on the
// dispatch loop. It is not durable: events still queued at shutdown are
// drained on a best-effort basis.
type Bus struct {
	mu          sync.RWMutex
	subs        map[string][]domoutbox.Handler
	queue       chan domoutbox.Event
	startOnce   sync.Once
	stopOnce    sync.Once
	cancel      context.CancelFunc
	done        chan struct{}
	stateMu     sync.RWMutex // guards closed and sends on queue
	closed      bool
	concurrency int
	timeout     time.Duration
	log         observability.Logger
	dispatched  observability.Counter // events_dispatched_total{event,outcome}
}

const componentOutbox = "outbox"

type Option func(*Bus)

// WithQueueSize sets the buffered queue length (default 1024).
func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queue = make(chan domoutbox.Event, n)
		}
	}
}

// WithHandlerTimeout bounds each handler invocation (default 30s).
func WithHandlerTimeout(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.timeout = d
		}
	}
}

func NewBus(tel observability.Observability, opts ...Option) *Bus {
	if tel == nil {
		tel = observability.Nop()
	}
	b := &Bus{
		subs:        make(map[string][]domoutbox.Handler),
		queue:       make(chan domoutbox.Event, 1024),
		done:        make(chan struct{}),
		concurrency: 8,
		timeout:     30 * time.Second,
		log:         tel.Logger().With(observability.F("component", componentOutbox)),
		dispatched:  tel.Metrics().Counter(observability.MEventsDispatched),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var (
	_ domoutbox.Publisher  = (*Bus)(nil)
	_ domoutbox.Subscriber = (*Bus)(nil)
)

func (b *Bus) Subscribe(eventName string, h domoutbox.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventName] = append(b.subs[eventName], h)
}

func (b *Bus) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
		b.cancel = cancel
		go b.dispatchLoop(bg)
		logctx.FromOr(ctx, b.log).Info("event_bus_started")
	})
}

// Stop refuses new events, drains what is already queued and waits for the
// dispatch loop until ctx expires.
func (b *Bus) Stop(ctx context.Context) {
	b.stopOnce.Do(func() {
		b.stateMu.Lock()
		b.closed = true
		close(b.queue)
		b.stateMu.Unlock()

		logger := logctx.FromOr(ctx, b.log)
		if b.cancel == nil {
			logger.Info("event_bus_stopped")
			return
		}
		select {
		case <-b.done:
		case <-ctx.Done():
			logger.Warn("event_bus_drain_aborted", observability.F("pending", len(b.queue)))
		}
		b.cancel()
		logger.Info("event_bus_stopped")
	})
}

func (b *Bus) Publish(ctx context.Context, e domoutbox.Event) error {
	if e == nil {
		return nil
	}
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	logger := logctx.FromOr(ctx, b.log).With(observability.F("event", e.EventName()))
	if b.closed {
		logger.Warn("event_dropped_bus_stopped")
		return ErrStopped
	}
	select {
	case b.queue <- e:
		logger.Debug("event_enqueued")
		return nil
	case <-ctx.Done():
		logger.Warn("event_enqueue_aborted", observability.F("error", ctx.Err()))
		return ctx.Err()
	}
}

func (b *Bus) dispatchLoop(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-b.queue:
			if !ok {
				return
			}
			b.fanout(ctx, e)
		}
	}
}

func (b *Bus) fanout(ctx context.Context, e domoutbox.Event) {
	name := e.EventName()

	b.mu.RLock()
	handlers := append([]domoutbox.Handler(nil), b.subs[name]...)
	b.mu.RUnlock()

	logger := b.log.With(observability.F("event", name))
	if len(handlers) == 0 {
		logger.Debug("event_dropped_no_subscriber")
		b.dispatched.Add(1, observability.L("event", name), observability.L("outcome", "dropped"))
		return
	}

	ctx = logctx.With(context.WithoutCancel(ctx), logger)

	sem := make(chan struct{}, b.concurrency)
	var wg sync.WaitGroup

	for _, h := range handlers {
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			outcome := "success"
			defer func() {
				if r := recover(); r != nil {
					outcome = "panic"
					logger.Error("event_handler_panic",
						observability.F("panic", r),
						observability.F("stack", string(debug.Stack())),
					)
				}
				b.dispatched.Add(1, observability.L("event", name), observability.L("outcome", outcome))
				<-sem
				wg.Done()
			}()

			hctx, cancel := context.WithTimeout(ctx, b.timeout)
			defer cancel()
			if err := h(hctx, e); err != nil {
				outcome = "error"
				logger.Warn("event_handler_error", observability.F("error", err))
			}
		}()
	}

	wg.Wait()

	logger.Debug("event_fanned_out", observability.F("handlers", len(handlers)))
}
