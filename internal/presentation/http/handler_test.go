package httppresentation

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appcatalog "github.com/Zhima-Mochi/kitchenledger/internal/application/catalog"
	appcustomer "github.com/Zhima-Mochi/kitchenledger/internal/application/customer"
	appinventory "github.com/Zhima-Mochi/kitchenledger/internal/application/inventory"
	apporder "github.com/Zhima-Mochi/kitchenledger/internal/application/order"
	apppayment "github.com/Zhima-Mochi/kitchenledger/internal/application/payment"
	"github.com/Zhima-Mochi/kitchenledger/internal/application/pricing"
	dompay "github.com/Zhima-Mochi/kitchenledger/internal/domain/payment"
	"github.com/Zhima-Mochi/kitchenledger/internal/infrastructure/id"
	"github.com/Zhima-Mochi/kitchenledger/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/kitchenledger/internal/infrastructure/sandboxpay"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	server *httptest.Server
	store  *memory.Store
}

func newFixture(t *testing.T, gateway dompay.Gateway, opts ...Option) *fixture {
	t.Helper()
	store := memory.NewStore()
	ids := id.NewUUIDGenerator()
	calc := appcatalog.NewCalculator()
	ledger := appinventory.NewLedger(ids, nil)
	payments := apppayment.NewService(store, gateway, ids, apppayment.Options{Currency: "NGN"}, nil)

	h := NewHandler(Services{
		Orders: apporder.NewCoordinator(apporder.Dependencies{
			UnitOfWork: store,
			Calculator: calc,
			Ledger:     ledger,
			Pricing:    pricing.NewValidator(pricing.DefaultDeliveryFee, pricing.DefaultTolerance),
			Payments:   payments,
			IDs:        ids,
		}),
		Inventory: appinventory.NewService(store, ledger, calc, ids, nil, nil),
		Catalog:   appcatalog.NewService(store, calc, ids, nil),
		Payments:  payments,
		Customers: appcustomer.NewService(store, ids, nil),
	}, nil, opts...)

	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return &fixture{server: srv, store: store}
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers ...string) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

type seeded struct {
	customerID  string
	inventoryID string
	menuItemID  string
}

// seed creates a customer, 1000g of flour and a bread that needs 200g per unit
// and sells for 2000.
func (f *fixture) seed(t *testing.T) seeded {
	t.Helper()
	resp, body := f.do(t, http.MethodPost, "/customers", map[string]any{"name": "Ada", "email": "ada@example.com"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	customer := decode[customerResponse](t, body)

	resp, body = f.do(t, http.MethodPost, "/inventory", map[string]any{
		"name": "Flour", "unit": "g", "quantity": "1000", "minimum_stock": "100", "unit_price": "0.5",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	flour := decode[inventoryItemResponse](t, body)

	resp, body = f.do(t, http.MethodPost, "/menu-items", map[string]any{"name": "Bread", "price": "2000"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	bread := decode[menuItemResponse](t, body)
	assert.False(t, bread.Sellable)

	resp, body = f.do(t, http.MethodPost, "/recipes", map[string]any{
		"menu_item_id": bread.ID, "inventory_id": flour.ID, "quantity": "200",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.Equal(t, "g", decode[recipeResponse](t, body).Unit)

	return seeded{customerID: customer.ID, inventoryID: flour.ID, menuItemID: bread.ID}
}

func (f *fixture) stock(t *testing.T, inventoryID string) string {
	t.Helper()
	resp, body := f.do(t, http.MethodGet, "/inventory/"+inventoryID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[inventoryItemResponse](t, body).Quantity.String()
}

func orderBody(s seeded, qty int, total string) map[string]any {
	return map[string]any{
		"customer_id":      s.customerID,
		"items":            []map[string]any{{"menu_item_id": s.menuItemID, "quantity": qty}},
		"total_price":      total,
		"delivery_address": "12 Marina Road",
	}
}

func TestOrderLifecycle(t *testing.T) {
	f := newFixture(t, sandboxpay.New(1))
	s := f.seed(t)

	resp, body := f.do(t, http.MethodGet, "/menu-items/"+s.menuItemID+"/availability?quantity=5", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	avail := decode[appcatalog.Availability](t, body)
	assert.True(t, avail.Sellable)
	assert.Equal(t, "100", avail.Cost.String())

	resp, body = f.do(t, http.MethodPost, "/orders", orderBody(s, 2, "5500"), headerIdempotencyKey, "req-1")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	created := decode[createOrderResponse](t, body)
	assert.Equal(t, "req-1", created.Order.ID)
	assert.Equal(t, "5500", created.Order.Total.String())
	assert.Equal(t, "12 Marina Road", created.Order.DeliveryAddress)
	require.NotNil(t, created.Payment)
	assert.NotEmpty(t, created.Payment.AuthorizationURL)
	assert.Equal(t, "600", f.stock(t, s.inventoryID))
	assert.NotEmpty(t, resp.Header.Get(headerRequestID))

	// same key replays without touching stock
	resp, body = f.do(t, http.MethodPost, "/orders", orderBody(s, 2, "5500"), headerIdempotencyKey, "req-1")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	replayed := decode[createOrderResponse](t, body)
	assert.True(t, replayed.Replayed)
	assert.Equal(t, created.Payment.Reference, replayed.Payment.Reference)
	assert.Equal(t, "600", f.stock(t, s.inventoryID))

	resp, body = f.do(t, http.MethodPost, "/payments/"+created.Payment.Reference+"/verify", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, dompay.StatusCompleted, decode[transactionResponse](t, body).Status)

	resp, body = f.do(t, http.MethodPatch, "/orders/req-1", map[string]any{
		"items": []map[string]any{{"menu_item_id": s.menuItemID, "quantity": 1}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "3500", decode[apporder.OrderView](t, body).Total.String())
	assert.Equal(t, "800", f.stock(t, s.inventoryID))

	resp, body = f.do(t, http.MethodGet, "/customers/"+s.customerID+"/orders", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]apporder.OrderView](t, body), 1)

	resp, _ = f.do(t, http.MethodDelete, "/orders/req-1", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "1000", f.stock(t, s.inventoryID))

	resp, _ = f.do(t, http.MethodGet, "/orders/req-1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = f.do(t, http.MethodGet, "/inventory/"+s.inventoryID+"/movements", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	moves := decode[[]movementResponse](t, body)
	require.Len(t, moves, 5)
	assert.Equal(t, "1000", moves[len(moves)-1].Balance.String())
}

func TestCreateOrderRejections(t *testing.T) {
	f := newFixture(t, sandboxpay.New(1))
	s := f.seed(t)

	tests := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{"price mismatch", orderBody(s, 1, "3400"), http.StatusBadRequest},
		{"insufficient stock", orderBody(s, 6, "13500"), http.StatusConflict},
		{"unknown customer", func() map[string]any {
			b := orderBody(s, 1, "3500")
			b["customer_id"] = "nobody"
			return b
		}(), http.StatusNotFound},
		{"missing address", func() map[string]any {
			b := orderBody(s, 1, "3500")
			delete(b, "delivery_address")
			return b
		}(), http.StatusBadRequest},
		{"unknown field", func() map[string]any {
			b := orderBody(s, 1, "3500")
			b["coupon"] = "FREE"
			return b
		}(), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.do(t, http.MethodPost, "/orders", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, string(body))
			assert.NotEmpty(t, decode[errorBody](t, body).Error)
		})
	}
	assert.Equal(t, "1000", f.stock(t, s.inventoryID))
}

func TestCreateOrderPaymentFailureReturnsOrder(t *testing.T) {
	f := newFixture(t, sandboxpay.New(1, sandboxpay.WithFailingInitialize()))
	s := f.seed(t)

	resp, body := f.do(t, http.MethodPost, "/orders", orderBody(s, 1, "3500"))
	require.Equal(t, http.StatusBadGateway, resp.StatusCode, string(body))
	out := decode[createOrderResponse](t, body)
	require.NotNil(t, out.Order)
	assert.Nil(t, out.Payment)
	assert.NotEmpty(t, out.Error)
	assert.Equal(t, "800", f.stock(t, s.inventoryID))
}

func TestDeleteInventoryInUse(t *testing.T) {
	f := newFixture(t, sandboxpay.New(1))
	s := f.seed(t)

	resp, _ := f.do(t, http.MethodDelete, "/inventory/"+s.inventoryID, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = f.do(t, http.MethodDelete, "/inventory/"+s.inventoryID+"?force=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodDelete, "/inventory/"+s.inventoryID+"?force=true", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := f.do(t, http.MethodGet, "/menu-items/"+s.menuItemID+"/availability", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[appcatalog.Availability](t, body).Sellable)
}

func TestMethodNotAllowedAndHealth(t *testing.T) {
	f := newFixture(t, sandboxpay.New(1))

	resp, _ := f.do(t, http.MethodPut, "/orders/abc", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, body := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

type countingLimiter struct {
	budget int
	seen   map[string]int
}

func (l *countingLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.seen[key]++
	return l.seen[key] <= l.budget, nil
}

func (l *countingLimiter) Window() time.Duration { return time.Minute }

func TestRateLimit(t *testing.T) {
	limiter := &countingLimiter{budget: 1, seen: map[string]int{}}
	f := newFixture(t, sandboxpay.New(1), WithRateLimiter(limiter))

	resp, _ := f.do(t, http.MethodGet, "/inventory", nil, headerTenantID, "t-1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/inventory", nil, headerTenantID, "t-1")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))

	resp, _ = f.do(t, http.MethodGet, "/inventory", nil, headerTenantID, "t-2")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// health is never throttled
	for range 3 {
		resp, _ = f.do(t, http.MethodGet, "/health", nil, headerTenantID, "t-1")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
	assert.Equal(t, 2, limiter.seen["tenant:t-1"])
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadGateway, statusFor(apppayment.ErrGateway))
	assert.Equal(t, http.StatusPaymentRequired, statusFor(dompay.ErrVerificationFailed))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
