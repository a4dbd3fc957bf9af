package order

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Zhima-Mochi/kitchenledger/internal/application"
	appcatalog "github.com/Zhima-Mochi/kitchenledger/internal/application/catalog"
	appcustomer "github.com/Zhima-Mochi/kitchenledger/internal/application/customer"
	appinventory "github.com/Zhima-Mochi/kitchenledger/internal/application/inventory"
	apppayment "github.com/Zhima-Mochi/kitchenledger/internal/application/payment"
	"github.com/Zhima-Mochi/kitchenledger/internal/application/pricing"
	domcatalog "github.com/Zhima-Mochi/kitchenledger/internal/domain/catalog"
	dominv "github.com/Zhima-Mochi/kitchenledger/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/kitchenledger/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/kitchenledger/internal/domain/outbox"
	dompay "github.com/Zhima-Mochi/kitchenledger/internal/domain/payment"
	"github.com/Zhima-Mochi/kitchenledger/internal/domain/uow"
	"github.com/Zhima-Mochi/kitchenledger/internal/infrastructure/id"
	"github.com/Zhima-Mochi/kitchenledger/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/kitchenledger/internal/infrastructure/sandboxpay"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventName())
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	p.events = nil
	p.mu.Unlock()
}

type recordingCache struct {
	mu          sync.Mutex
	invalidated []string
}

func (c *recordingCache) Get(context.Context, string) (*OrderView, error) { return nil, ErrCacheMiss }
func (c *recordingCache) Set(context.Context, *OrderView) error           { return nil }

func (c *recordingCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, id)
	return nil
}

// staleReads hides existing orders from the next n idempotency lookups, the
// way a READ COMMITTED snapshot misses a row committed after it was taken.
type staleReads struct {
	inner  uow.UnitOfWork
	misses atomic.Int32
}

func (s *staleReads) Do(ctx context.Context, fn func(ctx context.Context, tx uow.Tx) error) error {
	return s.inner.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		return fn(ctx, staleTx{Tx: tx, s: s})
	})
}

type staleTx struct {
	uow.Tx
	s *staleReads
}

func (t staleTx) Orders() domain.Repository { return staleOrders{Repository: t.Tx.Orders(), s: t.s} }

type staleOrders struct {
	domain.Repository
	s *staleReads
}

func (o staleOrders) GetIncludingDeleted(ctx context.Context, id string) (*domain.Order, error) {
	if o.s.misses.Add(-1) >= 0 {
		return nil, domain.ErrNotFound
	}
	return o.Repository.GetIncludingDeleted(ctx, id)
}

type fixture struct {
	ctx       context.Context
	orders    *Coordinator
	inventory *appinventory.Service
	catalog   *appcatalog.Service
	customers *appcustomer.Service
	pub       *recordingPublisher
	deps      Dependencies

	customer string
	flour    string
	sugar    string
	bread    string // 200 g flour, 2000
	cake     string // 100 g flour + 50 g sugar, 3000
}

func newFixture(t *testing.T, gatewayOpts ...sandboxpay.Option) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	ids := id.NewUUIDGenerator()
	calc := appcatalog.NewCalculator()
	ledger := appinventory.NewLedger(ids, nil)
	pub := &recordingPublisher{}

	f := &fixture{
		ctx:       ctx,
		inventory: appinventory.NewService(store, ledger, calc, ids, nil, nil),
		catalog:   appcatalog.NewService(store, calc, ids, nil),
		customers: appcustomer.NewService(store, ids, nil),
		pub:       pub,
	}
	payments := apppayment.NewService(store, sandboxpay.New(1, gatewayOpts...), ids, apppayment.Options{Currency: "NGN"}, nil)
	f.deps = Dependencies{
		UnitOfWork: store,
		Calculator: calc,
		Ledger:     ledger,
		Pricing:    pricing.NewValidator(pricing.DefaultDeliveryFee, pricing.DefaultTolerance),
		Payments:   payments,
		IDs:        ids,
		Publisher:  pub,
	}
	f.orders = NewCoordinator(f.deps)

	cust, err := f.customers.Register(ctx, appcustomer.RegisterInput{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	f.customer = cust.ID

	f.flour = f.stockItem(t, "Flour", 1000, 100)
	f.sugar = f.stockItem(t, "Sugar", 100, 10)
	f.bread = f.menuItem(t, "Bread", 2000, map[string]int64{f.flour: 200})
	f.cake = f.menuItem(t, "Cake", 3000, map[string]int64{f.flour: 100, f.sugar: 50})
	return f
}

func (f *fixture) stockItem(t *testing.T, name string, qty, min int64) string {
	t.Helper()
	item, err := f.inventory.CreateItem(f.ctx, appinventory.CreateItemInput{
		Name: name, Unit: "g", Quantity: decimal.NewFromInt(qty), MinimumStock: decimal.NewFromInt(min), UnitPrice: decimal.RequireFromString("0.5"),
	})
	require.NoError(t, err)
	return item.ID
}

func (f *fixture) menuItem(t *testing.T, name string, price int64, recipe map[string]int64) string {
	t.Helper()
	mi, err := f.catalog.CreateMenuItem(f.ctx, appcatalog.CreateMenuItemInput{Name: name, Price: decimal.NewFromInt(price)})
	require.NoError(t, err)
	for inv, qty := range recipe {
		_, err := f.catalog.CreateRecipe(f.ctx, appcatalog.CreateRecipeInput{MenuItemID: mi.ID, InventoryID: inv, Quantity: decimal.NewFromInt(qty)})
		require.NoError(t, err)
	}
	return mi.ID
}

func (f *fixture) stock(t *testing.T, id string) string {
	t.Helper()
	item, err := f.inventory.GetItem(f.ctx, id)
	require.NoError(t, err)
	return item.Quantity.String()
}

func (f *fixture) create(key string, total int64, items ...RequestedItem) (*CreateOrderResult, error) {
	return f.orders.Create.Execute(f.ctx, CreateOrderInput{
		IdempotencyKey:  key,
		CustomerID:      f.customer,
		Items:           items,
		ClientTotal:     decimal.NewFromInt(total),
		DeliveryAddress: "12 Marina Road",
	})
}

func TestCreateOrderDeductsStockAndOpensCheckout(t *testing.T) {
	f := newFixture(t)

	res, err := f.create("ord-1", 8500,
		RequestedItem{MenuItemID: f.bread, Quantity: 1},
		RequestedItem{MenuItemID: f.cake, Quantity: 1},
		RequestedItem{MenuItemID: f.bread, Quantity: 1},
	)
	require.NoError(t, err)
	require.NotNil(t, res.Payment)
	assert.False(t, res.Replayed)

	view := res.Order
	assert.Equal(t, "ord-1", view.ID)
	assert.Equal(t, domain.StatusPending, view.Status)
	assert.Equal(t, "8500", view.Total.String())
	assert.Equal(t, "1500", view.DeliveryFee.String())
	assert.Equal(t, "12 Marina Road", view.DeliveryAddress)
	require.Len(t, view.Items, 2)
	assert.Equal(t, 2, view.Items[0].Quantity)
	require.Len(t, view.Transactions, 1)
	assert.Equal(t, res.Payment.Reference, view.Transactions[0].Reference)
	assert.Equal(t, dompay.StatusPending, view.Transactions[0].Status)

	assert.Equal(t, "500", f.stock(t, f.flour))
	assert.Equal(t, "50", f.stock(t, f.sugar))
	assert.Equal(t, []string{"order.created"}, f.pub.names())
}

func TestCreateOrderReplaysIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	first, err := f.create("ord-1", 3500, RequestedItem{MenuItemID: f.bread, Quantity: 1})
	require.NoError(t, err)

	again, err := f.create("ord-1", 3500, RequestedItem{MenuItemID: f.bread, Quantity: 1})
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Order.ID, again.Order.ID)
	require.NotNil(t, again.Payment)
	assert.Equal(t, first.Payment.AuthorizationURL, again.Payment.AuthorizationURL)
	assert.Equal(t, "800", f.stock(t, f.flour))
	assert.Len(t, f.pub.names(), 1)

	other, err := f.customers.Register(f.ctx, appcustomer.RegisterInput{Name: "Grace", Email: "grace@example.com"})
	require.NoError(t, err)
	_, err = f.orders.Create.Execute(f.ctx, CreateOrderInput{
		IdempotencyKey:  "ord-1",
		CustomerID:      other.ID,
		Items:           []RequestedItem{{MenuItemID: f.bread, Quantity: 1}},
		ClientTotal:     decimal.NewFromInt(3500),
		DeliveryAddress: "elsewhere",
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCreateOrderRejectionsLeaveNoTrace(t *testing.T) {
	f := newFixture(t)
	noRecipe, err := f.catalog.CreateMenuItem(f.ctx, appcatalog.CreateMenuItemInput{Name: "Water", Price: decimal.NewFromInt(100)})
	require.NoError(t, err)

	cases := []struct {
		name  string
		total int64
		items []RequestedItem
		want  error
	}{
		{"insufficient stock", 13500, []RequestedItem{{MenuItemID: f.bread, Quantity: 6}}, dominv.ErrInsufficientStock},
		{"price mismatch", 3499, []RequestedItem{{MenuItemID: f.bread, Quantity: 1}}, pricing.ErrPriceMismatch},
		{"no recipe", 1600, []RequestedItem{{MenuItemID: noRecipe.ID, Quantity: 1}}, domcatalog.ErrUnsellable},
		{"unknown menu item", 3500, []RequestedItem{{MenuItemID: "ghost", Quantity: 1}}, domcatalog.ErrMenuItemNotFound},
		{"zero quantity", 1500, []RequestedItem{{MenuItemID: f.bread, Quantity: 0}}, application.ErrValidation},
		{"no items", 1500, nil, application.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.create("rejected-"+tc.name, tc.total, tc.items...)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)

			_, err = f.orders.Get.Execute(f.ctx, "rejected-"+tc.name)
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
	assert.Equal(t, "1000", f.stock(t, f.flour))
	assert.Empty(t, f.pub.names())

	var stock *dominv.StockError
	_, err = f.create("", 13500, RequestedItem{MenuItemID: f.bread, Quantity: 6})
	require.True(t, errors.As(err, &stock))
	assert.Equal(t, "1200", stock.Required.String())
	assert.Equal(t, "1000", stock.Available.String())
}

func TestCreateOrderRequiresDeliveryAddress(t *testing.T) {
	f := newFixture(t)
	_, err := f.orders.Create.Execute(f.ctx, CreateOrderInput{
		CustomerID:      f.customer,
		Items:           []RequestedItem{{MenuItemID: f.bread, Quantity: 1}},
		ClientTotal:     decimal.NewFromInt(3500),
		DeliveryAddress: "   ",
	})
	assert.ErrorIs(t, err, application.ErrValidation)
}

func TestCreateOrderKeepsStockWhenCheckoutFails(t *testing.T) {
	f := newFixture(t, sandboxpay.WithFailingInitialize())

	res, err := f.create("ord-1", 3500, RequestedItem{MenuItemID: f.bread, Quantity: 1})
	require.ErrorIs(t, err, ErrPaymentInitialization)
	require.NotNil(t, res)
	assert.Nil(t, res.Payment)
	assert.Equal(t, dompay.StatusFailed, res.Order.Transactions[0].Status)
	assert.Equal(t, "800", f.stock(t, f.flour))

	view, err := f.orders.Get.Execute(f.ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, view.Status)
}

func TestUpdateOrderSwapsItemsAtomically(t *testing.T) {
	f := newFixture(t)
	_, err := f.create("ord-1", 5500, RequestedItem{MenuItemID: f.bread, Quantity: 2})
	require.NoError(t, err)
	f.pub.reset()

	view, err := f.orders.Update.Execute(f.ctx, UpdateOrderInput{
		OrderID: "ord-1",
		Items:   []RequestedItem{{MenuItemID: f.cake, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, "7500", view.Total.String())
	require.Len(t, view.Items, 1)
	assert.Equal(t, f.cake, view.Items[0].MenuItemID)

	assert.Equal(t, "800", f.stock(t, f.flour))
	assert.Equal(t, "0", f.stock(t, f.sugar))
	assert.Equal(t, []string{"order.updated", "inventory.status_changed"}, f.pub.names())

	// too much flour: the whole update is rolled back
	_, err = f.orders.Update.Execute(f.ctx, UpdateOrderInput{
		OrderID: "ord-1",
		Items:   []RequestedItem{{MenuItemID: f.bread, Quantity: 6}},
	})
	require.ErrorIs(t, err, dominv.ErrInsufficientStock)
	assert.Equal(t, "800", f.stock(t, f.flour))
	assert.Equal(t, "0", f.stock(t, f.sugar))

	// a cake needs sugar, but this order's own sugar is released first
	view, err = f.orders.Update.Execute(f.ctx, UpdateOrderInput{
		OrderID: "ord-1",
		Items:   []RequestedItem{{MenuItemID: f.cake, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, "4500", view.Total.String())
	assert.Equal(t, "50", f.stock(t, f.sugar))
}

func TestUpdateOrderOnlyEditsPendingOrders(t *testing.T) {
	f := newFixture(t)
	_, err := f.create("ord-1", 3500, RequestedItem{MenuItemID: f.bread, Quantity: 1})
	require.NoError(t, err)

	address := "7 Broad Street"
	view, err := f.orders.Update.Execute(f.ctx, UpdateOrderInput{OrderID: "ord-1", DeliveryAddress: &address})
	require.NoError(t, err)
	assert.Equal(t, address, view.DeliveryAddress)

	dispatched := domain.StatusOutForDelivery
	_, err = f.orders.Update.Execute(f.ctx, UpdateOrderInput{OrderID: "ord-1", Status: &dispatched})
	require.NoError(t, err)

	_, err = f.orders.Update.Execute(f.ctx, UpdateOrderInput{OrderID: "ord-1", Items: []RequestedItem{{MenuItemID: f.bread, Quantity: 2}}})
	assert.ErrorIs(t, err, domain.ErrNotEditable)
	_, err = f.orders.Update.Execute(f.ctx, UpdateOrderInput{OrderID: "ord-1", DeliveryAddress: &address})
	assert.ErrorIs(t, err, domain.ErrNotEditable)

	_, err = f.orders.Update.Execute(f.ctx, UpdateOrderInput{OrderID: "ord-1"})
	assert.ErrorIs(t, err, application.ErrValidation)

	cancelled := domain.StatusCancelled
	view, err = f.orders.Update.Execute(f.ctx, UpdateOrderInput{OrderID: "ord-1", Status: &cancelled})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, view.Status)
	assert.Equal(t, "1000", f.stock(t, f.flour))
}

func TestCancelOrderRestoresStockAndTombstones(t *testing.T) {
	f := newFixture(t)
	_, err := f.create("ord-1", 4500, RequestedItem{MenuItemID: f.cake, Quantity: 1})
	require.NoError(t, err)
	f.pub.reset()

	_, err = f.orders.Cancel.Execute(f.ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "1000", f.stock(t, f.flour))
	assert.Equal(t, "100", f.stock(t, f.sugar))
	assert.Equal(t, []string{"order.cancelled"}, f.pub.names())

	_, err = f.orders.Get.Execute(f.ctx, "ord-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.orders.Cancel.Execute(f.ctx, "ord-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// the key stays spent
	_, err = f.create("ord-1", 4500, RequestedItem{MenuItemID: f.cake, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestStockIsConservedAcrossLifecycle(t *testing.T) {
	f := newFixture(t)
	keys := []string{"a", "b", "c"}
	_, err := f.create("a", 4500, RequestedItem{MenuItemID: f.cake, Quantity: 1})
	require.NoError(t, err)
	_, err = f.create("b", 3500, RequestedItem{MenuItemID: f.bread, Quantity: 1})
	require.NoError(t, err)
	_, err = f.create("c", 4500, RequestedItem{MenuItemID: f.cake, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, "600", f.stock(t, f.flour))
	_, err = f.orders.Update.Execute(f.ctx, UpdateOrderInput{OrderID: "b", Items: []RequestedItem{{MenuItemID: f.bread, Quantity: 3}}})
	require.NoError(t, err)
	assert.Equal(t, "200", f.stock(t, f.flour))
	for _, k := range keys {
		_, err := f.orders.Cancel.Execute(f.ctx, k)
		require.NoError(t, err)
	}

	for _, inv := range []string{f.flour, f.sugar} {
		moves, err := f.inventory.Movements(f.ctx, inv)
		require.NoError(t, err)
		sum := decimal.Zero
		for _, m := range moves {
			sum = sum.Add(m.Delta)
		}
		item, err := f.inventory.GetItem(f.ctx, inv)
		require.NoError(t, err)
		assert.True(t, sum.Equal(item.Quantity), "movements sum %s, balance %s", sum, item.Quantity)
		assert.True(t, moves[len(moves)-1].Balance.Equal(item.Quantity))
	}
	assert.Equal(t, "1000", f.stock(t, f.flour))
	assert.Equal(t, "100", f.stock(t, f.sugar))
}

func TestConcurrentOrdersNeverOversell(t *testing.T) {
	f := newFixture(t)
	const attempts = 10

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		placed  int
		refused int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.create("", 3500, RequestedItem{MenuItemID: f.bread, Quantity: 1})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				placed++
			case errors.Is(err, dominv.ErrInsufficientStock), errors.Is(err, domcatalog.ErrUnsellable):
				refused++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, placed)
	assert.Equal(t, attempts-5, refused)
	assert.Equal(t, "0", f.stock(t, f.flour))
}

func TestListOrdersPagesNewestFirst(t *testing.T) {
	f := newFixture(t)
	for _, k := range []string{"a", "b", "c"} {
		_, err := f.create(k, 3500, RequestedItem{MenuItemID: f.bread, Quantity: 1})
		require.NoError(t, err)
	}
	_, err := f.orders.Cancel.Execute(f.ctx, "b")
	require.NoError(t, err)

	views, err := f.orders.List.Execute(f.ctx, ListOrdersInput{CustomerID: f.customer})
	require.NoError(t, err)
	require.Len(t, views, 2)

	views, err = f.orders.List.Execute(f.ctx, ListOrdersInput{CustomerID: f.customer, Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, views, 1)

	_, err = f.orders.List.Execute(f.ctx, ListOrdersInput{})
	assert.ErrorIs(t, err, application.ErrValidation)
}

func TestNormalizeMergesDuplicateLines(t *testing.T) {
	lines, err := normalize([]RequestedItem{
		{MenuItemID: "b", Quantity: 1},
		{MenuItemID: "a", Quantity: 2},
		{MenuItemID: "b", Quantity: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, []appcatalog.Line{{MenuItemID: "b", Quantity: 4}, {MenuItemID: "a", Quantity: 2}}, lines)

	_, err = normalize([]RequestedItem{{MenuItemID: "", Quantity: 1}})
	assert.ErrorIs(t, err, application.ErrValidation)
}

func TestCreateOrderReplaysWhenKeyCommittedDuringReservation(t *testing.T) {
	f := newFixture(t)
	first, err := f.create("ord-1", 11500, RequestedItem{MenuItemID: f.bread, Quantity: 5})
	require.NoError(t, err)
	assert.Equal(t, "0", f.stock(t, f.flour))

	stale := &staleReads{inner: f.deps.UnitOfWork}
	stale.misses.Store(1)
	deps := f.deps
	deps.UnitOfWork = stale
	racing := NewCoordinator(deps)

	again, err := racing.Create.Execute(f.ctx, CreateOrderInput{
		IdempotencyKey:  "ord-1",
		CustomerID:      f.customer,
		Items:           []RequestedItem{{MenuItemID: f.bread, Quantity: 5}},
		ClientTotal:     decimal.NewFromInt(11500),
		DeliveryAddress: "12 Marina Road",
	})
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Order.ID, again.Order.ID)
	require.NotNil(t, again.Payment)
	assert.Equal(t, first.Payment.AuthorizationURL, again.Payment.AuthorizationURL)
	assert.Equal(t, "0", f.stock(t, f.flour))

	// a genuine shortage without a prior order is still reported
	stale.misses.Store(1)
	_, err = racing.Create.Execute(f.ctx, CreateOrderInput{
		IdempotencyKey:  "ord-2",
		CustomerID:      f.customer,
		Items:           []RequestedItem{{MenuItemID: f.bread, Quantity: 1}},
		ClientTotal:     decimal.NewFromInt(3500),
		DeliveryAddress: "12 Marina Road",
	})
	assert.ErrorIs(t, err, domcatalog.ErrUnsellable)
}

func TestReplayAfterFailedCheckoutInvalidatesCachedView(t *testing.T) {
	f := newFixture(t, sandboxpay.WithFailingInitialize())
	cache := &recordingCache{}
	deps := f.deps
	deps.Cache = cache
	orders := NewCoordinator(deps)

	input := CreateOrderInput{
		IdempotencyKey:  "ord-1",
		CustomerID:      f.customer,
		Items:           []RequestedItem{{MenuItemID: f.bread, Quantity: 1}},
		ClientTotal:     decimal.NewFromInt(3500),
		DeliveryAddress: "12 Marina Road",
	}
	_, err := orders.Create.Execute(f.ctx, input)
	require.ErrorIs(t, err, ErrPaymentInitialization)
	assert.Empty(t, cache.invalidated)

	res, err := orders.Create.Execute(f.ctx, input)
	require.ErrorIs(t, err, ErrPaymentInitialization)
	assert.True(t, res.Replayed)
	assert.Len(t, res.Order.Transactions, 2)
	assert.Equal(t, []string{"ord-1"}, cache.invalidated)
}
