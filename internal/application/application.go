package application

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/kitchenledger/internal/observability"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}

const spanPrefix = "UC."

// Instruments bundles the tracer, base logger and RED metrics shared by the
// use cases of one service. Build it once at wiring time.
type Instruments struct {
	tracer observability.Tracer
	log    observability.Logger

	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}

	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewInstruments(tel observability.Observability, service string) Instruments {
	if tel == nil {
		tel = observability.Nop()
	}
	return Instruments{
		tracer:       tel.Tracer(),
		log:          tel.Logger().With(observability.F("service", service)),
		reqCounter:   tel.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram: tel.Metrics().Histogram(observability.MUsecaseDuration),
		extCounter:   tel.Metrics().Counter(observability.MExternalRequests),
		extHistogram: tel.Metrics().Histogram(observability.MExternalRequestDuration),
	}
}

// ObserveExternal records one call to a collaborator outside the process.
func (in Instruments) ObserveExternal(peer, endpoint, outcome string, start time.Time) {
	if in.extCounter != nil {
		in.extCounter.Add(1,
			observability.L("peer", peer),
			observability.L("endpoint", endpoint),
			observability.L("outcome", outcome),
		)
	}
	if in.extHistogram != nil {
		in.extHistogram.Observe(time.Since(start).Seconds(),
			observability.L("peer", peer),
			observability.L("endpoint", endpoint),
		)
	}
}

// Logger returns the service logger, for code that runs outside a use case.
func (in Instruments) Logger() observability.Logger {
	if in.log == nil {
		return observability.NopLogger()
	}
	return in.log
}

// Probe tracks one use case execution. Outcome and Status end up on the span,
// the RED metrics and the single use_case_done log line.
type Probe struct {
	in      Instruments
	useCase string
	span    trace.Span
	ctx     context.Context
	start   time.Time
	logger  observability.Logger
	fields  []observability.Field

	Outcome string
	Status  string
}

// Begin starts the span and binds a use-case logger onto the returned context.
func (in Instruments) Begin(ctx context.Context, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, *Probe) {
	tracer := in.tracer
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	attrs = append([]attribute.KeyValue{attribute.String("use_case", useCase)}, attrs...)
	ctx, span := tracer.Start(ctx, spanPrefix+spanName, attrs...)

	logger := logctx.FromOr(ctx, in.Logger()).With(observability.F("use_case", useCase))
	ctx = logctx.With(ctx, logger)

	return ctx, &Probe{
		in:      in,
		useCase: useCase,
		span:    span,
		ctx:     ctx,
		start:   time.Now(),
		logger:  logger,
		Outcome: "success",
		Status:  "OK",
	}
}

func (p *Probe) Span() trace.Span { return p.span }

func (p *Probe) Logger() observability.Logger { return p.logger }

// Fail marks the execution as failed with a machine-readable status.
func (p *Probe) Fail(status string) {
	p.Outcome, p.Status = "error", status
}

// Annotate adds fields to the closing log line.
func (p *Probe) Annotate(fields ...observability.Field) {
	p.fields = append(p.fields, fields...)
}

// End closes the span, records metrics and writes use_case_done.
func (p *Probe) End(err error) {
	if err != nil && p.Outcome == "success" {
		p.Fail("ERROR")
	}
	lat := time.Since(p.start).Seconds()

	if p.span != nil {
		if err != nil {
			p.span.RecordError(err)
			p.span.SetStatus(codes.Error, p.Status)
		} else {
			p.span.SetStatus(codes.Ok, p.Status)
		}
		p.span.End()
	}

	if p.in.reqCounter != nil {
		p.in.reqCounter.Add(1,
			observability.L("use_case", p.useCase),
			observability.L("outcome", p.Outcome),
		)
	}
	if p.in.durHistogram != nil {
		p.in.durHistogram.Observe(lat,
			observability.L("use_case", p.useCase),
		)
	}

	fields := []observability.Field{
		observability.F("outcome", p.Outcome),
		observability.F("status", p.Status),
		observability.F("latency_seconds", lat),
	}
	if sc := trace.SpanContextFromContext(p.ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	fields = append(fields, p.fields...)
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}

	p.logger.Info("use_case_done", fields...)
}
