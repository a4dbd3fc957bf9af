package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	appcatalog "github.com/Zhima-Mochi/kitchenledger/internal/application/catalog"
	appcustomer "github.com/Zhima-Mochi/kitchenledger/internal/application/customer"
	appinventory "github.com/Zhima-Mochi/kitchenledger/internal/application/inventory"
	apporder "github.com/Zhima-Mochi/kitchenledger/internal/application/order"
	apppayment "github.com/Zhima-Mochi/kitchenledger/internal/application/payment"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability/logctx"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	headerTenantID       = "X-Tenant-ID"
	headerIdempotencyKey = "Idempotency-Key"
	maxBodyBytes         = 1 << 20
)

// Services are the application entry points the HTTP surface exposes.
type Services struct {
	Orders    *apporder.Coordinator
	Inventory *appinventory.Service
	Catalog   *appcatalog.Service
	Payments  *apppayment.Service
	Customers *appcustomer.Service
}

type Handler struct {
	svc     Services
	log     observability.Logger
	limiter Limiter

	requests observability.Counter   // http_requests_total{method,route,status}
	duration observability.Histogram // http_request_duration_seconds{method,route,status}
}

type Option func(*Handler)

// WithRateLimiter throttles every route except /health per client key.
func WithRateLimiter(l Limiter) Option {
	return func(h *Handler) { h.limiter = l }
}

func NewHandler(svc Services, tel observability.Observability, opts ...Option) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	h := &Handler{
		svc:      svc,
		log:      tel.Logger().With(observability.F("component", componentHTTPHandler)),
		requests: tel.Metrics().Counter(observability.MHTTPRequests),
		duration: tel.Metrics().Histogram(observability.MHTTPRequestDuration),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// Trace → ObservabilityMiddleware (request logger) → Rate limit → Access log → HTTP metrics → Handler
	h.muxHandle(mux, http.MethodPost, "/customers", h.handleRegisterCustomer)
	h.muxHandle(mux, http.MethodGet, "/customers/{id}", h.handleGetCustomer)
	h.muxHandle(mux, http.MethodGet, "/customers/{id}/orders", h.handleListOrders)

	h.muxHandle(mux, http.MethodPost, "/orders", h.handleCreateOrder)
	h.muxHandle(mux, http.MethodGet, "/orders/{id}", h.handleGetOrder)
	h.muxHandle(mux, http.MethodPatch, "/orders/{id}", h.handleUpdateOrder)
	h.muxHandle(mux, http.MethodDelete, "/orders/{id}", h.handleCancelOrder)

	h.muxHandle(mux, http.MethodPost, "/payments/{reference}/verify", h.handleVerifyPayment)

	h.muxHandle(mux, http.MethodPost, "/inventory", h.handleCreateInventory)
	h.muxHandle(mux, http.MethodGet, "/inventory", h.handleListInventory)
	h.muxHandle(mux, http.MethodGet, "/inventory/{id}", h.handleGetInventory)
	h.muxHandle(mux, http.MethodPatch, "/inventory/{id}", h.handleAdjustInventory)
	h.muxHandle(mux, http.MethodDelete, "/inventory/{id}", h.handleDeleteInventory)
	h.muxHandle(mux, http.MethodPost, "/inventory/{id}/restock", h.handleRestockInventory)
	h.muxHandle(mux, http.MethodGet, "/inventory/{id}/movements", h.handleInventoryMovements)

	h.muxHandle(mux, http.MethodPost, "/menu-items", h.handleCreateMenuItem)
	h.muxHandle(mux, http.MethodGet, "/menu-items/{id}/availability", h.handleCheckAvailability)
	h.muxHandle(mux, http.MethodPost, "/recipes", h.handleCreateRecipe)
	h.muxHandle(mux, http.MethodPatch, "/recipes/{id}", h.handleUpdateRecipe)
	h.muxHandle(mux, http.MethodDelete, "/recipes/{id}", h.handleDeleteRecipe)

	mux.HandleFunc("GET /health", h.handleHealth)

	return mux
}

// muxHandle registers a method-qualified pattern. ServeMux answers 405 for
// other methods on a known path.
func (h *Handler) muxHandle(mux *http.ServeMux, method, route string, handler http.HandlerFunc) {
	pattern := method + " " + route
	wrapped := h.withTrace(
		ObservabilityMiddleware(
			h.log,
			func(r *http.Request) string {
				return r.Header.Get(headerRequestID)
			},
			func(r *http.Request) string {
				return r.Header.Get(headerTenantID)
			},
		)(
			h.withRateLimit(
				h.withAccessLog(
					h.withHTTPMetrics(handler),
				),
			),
		),
	)
	mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// stable route template for low-cardinality labels
		wrapped.ServeHTTP(w, r.WithContext(contextWithRoute(r.Context(), pattern)))
	}))
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("kitchenledger.http")
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		route := routeFromContext(parentCtx)
		spanName, template := route, r.URL.Path
		if route == "unknown" {
			spanName = r.Method + " " + r.URL.Path
		} else if _, path, ok := strings.Cut(route, " "); ok {
			template = path
		}

		ctxWithSpan, span := tracer.Start(parentCtx,
			spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", template),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(lrw, r.WithContext(ctxWithSpan))
		span.SetAttributes(attribute.Int("http.status_code", lrw.status))
	})
}

// withHTTPMetrics records RED-ish HTTP metrics using injected vectors.
// DO NOT new metrics inside the middleware.
func (h *Handler) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		labels := []observability.Label{
			observability.L("method", r.Method),
			observability.L("route", routeFromContext(r.Context())),
			observability.L("status", strconv.Itoa(lrw.status)),
		}
		h.requests.Add(1, labels...)
		h.duration.Observe(time.Since(start).Seconds(), labels...)
	})
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

type errorBody struct {
	Error string `json:"error"`
}

// queryInt reads an optional non-negative integer query parameter.
func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return v, nil
}

type routeKey struct{}

// contextWithRoute stores the stable route template in the context so downstream
// metrics/logging can rely on low-cardinality values.
func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}
