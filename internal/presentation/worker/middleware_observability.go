package workerpresentation

import (
	"context"
	"time"

	domoutbox "github.com/Zhima-Mochi/kitchenledger/internal/domain/outbox"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability/logctx"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// keyed events carry the id of the order or inventory item they describe.
type keyed interface {
	AggregateID() string
}

// WithEventContext injects a request-scoped logger for background/worker executions.
// Dynamic fields only: trace_id/span_id (if valid), event_id (generated if empty),
// plus caller-provided low-cardinality attributes (e.g. "handler", "event").
func WithEventContext(
	ctx context.Context,
	base observability.Logger,
	tel observability.Observability,
	traceID trace.TraceID,
	spanID trace.SpanID,
	attrs map[string]string,
) context.Context {
	if base == nil {
		base = tel.Logger()
	}

	if attrs == nil {
		attrs = make(map[string]string)
	}

	fields := make([]observability.Field, 0, 6)

	evtID := attrs["event_id"]
	if evtID == "" {
		evtID = uuid.NewString()
	}
	fields = append(fields, observability.F("event_id", evtID))

	if traceID.IsValid() {
		fields = append(fields, observability.F("trace_id", traceID.String()))
	}
	if spanID.IsValid() {
		fields = append(fields, observability.F("span_id", spanID.String()))
	}

	for k, v := range attrs {
		if k == "event_id" || v == "" {
			continue
		}
		fields = append(fields, observability.F(k, v))
	}

	return logctx.With(ctx, base.With(fields...))
}

// Observe wraps a bus handler with a consumer span "EVT.<event>" and an
// event-scoped logger. The handler's error is returned unchanged so the bus
// still counts it.
func Observe(tel observability.Observability, name string, h domoutbox.Handler) domoutbox.Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	base := tel.Logger().With(observability.F("component", "event_worker"))

	return func(ctx context.Context, e domoutbox.Event) error {
		event := e.EventName()
		attrs := map[string]string{"handler": name, "event": event}
		spanAttrs := []attribute.KeyValue{
			attribute.String("messaging.operation", "process"),
			attribute.String("event.name", event),
			attribute.String("event.handler", name),
		}
		if k, ok := e.(keyed); ok {
			attrs["aggregate_id"] = k.AggregateID()
			spanAttrs = append(spanAttrs, attribute.String("event.aggregate_id", k.AggregateID()))
		}

		ctx, span := tel.Tracer().Start(ctx, "EVT."+event, spanAttrs...)
		defer span.End()

		sc := span.SpanContext()
		ctx = WithEventContext(ctx, base, tel, sc.TraceID(), sc.SpanID(), attrs)
		logger := logctx.FromOr(ctx, base)

		start := time.Now()
		err := h(ctx, e)
		latency := observability.F("latency_ms", time.Since(start).Milliseconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Warn("event_handler_failed", latency, observability.F("error", err))
			return err
		}
		span.SetStatus(codes.Ok, "")
		logger.Info("event_handled", latency)
		return nil
	}
}
