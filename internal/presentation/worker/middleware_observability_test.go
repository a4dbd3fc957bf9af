package workerpresentation

import (
	"context"
	"errors"
	"testing"

	dominv "github.com/Zhima-Mochi/kitchenledger/internal/domain/inventory"
	domoutbox "github.com/Zhima-Mochi/kitchenledger/internal/domain/outbox"
	infraobs "github.com/Zhima-Mochi/kitchenledger/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/kitchenledger/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability/logctx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type sdkTracer struct{ t trace.Tracer }

func (s sdkTracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.t.Start(ctx, name, trace.WithAttributes(attrs...))
}

func setup(t *testing.T) (observability.Observability, *tracetest.SpanRecorder, *observer.ObservedLogs) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	core, logs := observer.New(zapcore.DebugLevel)
	tel := infraobs.New(sdkTracer{t: tp.Tracer("test")}, zaplogger.Wrap(zap.New(core)), nil, nil)
	return tel, rec, logs
}

func TestObserveWrapsHandler(t *testing.T) {
	tel, rec, logs := setup(t)

	var sawLogger bool
	h := Observe(tel, "stock_alert", func(ctx context.Context, e domoutbox.Event) error {
		sawLogger = logctx.From(ctx) != nil
		return nil
	})

	evt := dominv.StatusChangedEvent{ItemID: "inv-1", To: dominv.StatusLowStock}
	require.NoError(t, h(context.Background(), evt))
	assert.True(t, sawLogger)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "EVT.inventory.status_changed", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("event.aggregate_id", "inv-1"))
	assert.Equal(t, codes.Ok, spans[0].Status().Code)

	entries := logs.FilterMessage("event_handled").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "stock_alert", fields["handler"])
	assert.Equal(t, "inv-1", fields["aggregate_id"])
	assert.Equal(t, spans[0].SpanContext().TraceID().String(), fields["trace_id"])
	assert.NotEmpty(t, fields["event_id"])
}

func TestObservePropagatesFailure(t *testing.T) {
	tel, rec, logs := setup(t)
	boom := errors.New("broker down")

	h := Observe(tel, "kafka_forwarder", func(context.Context, domoutbox.Event) error { return boom })
	err := h(context.Background(), dominv.StatusChangedEvent{ItemID: "inv-2"})
	require.ErrorIs(t, err, boom)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, 1, logs.FilterMessage("event_handler_failed").Len())
}

func TestWithEventContextKeepsGivenEventID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zaplogger.Wrap(zap.New(core))

	ctx := WithEventContext(context.Background(), base, observability.Nop(), trace.TraceID{}, trace.SpanID{},
		map[string]string{"event_id": "evt-7", "event": "order.created", "tenant_id": ""})
	logctx.From(ctx).Info("probe")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "evt-7", fields["event_id"])
	assert.Equal(t, "order.created", fields["event"])
	assert.NotContains(t, fields, "trace_id")
	assert.NotContains(t, fields, "tenant_id")
}
