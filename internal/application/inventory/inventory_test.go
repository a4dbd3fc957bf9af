package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Zhima-Mochi/kitchenledger/internal/application"
	appcatalog "github.com/Zhima-Mochi/kitchenledger/internal/application/catalog"
	domcatalog "github.com/Zhima-Mochi/kitchenledger/internal/domain/catalog"
	domain "github.com/Zhima-Mochi/kitchenledger/internal/domain/inventory"
	domoutbox "github.com/Zhima-Mochi/kitchenledger/internal/domain/outbox"
	"github.com/Zhima-Mochi/kitchenledger/internal/domain/uow"
	"github.com/Zhima-Mochi/kitchenledger/internal/infrastructure/id"
	"github.com/Zhima-Mochi/kitchenledger/internal/infrastructure/memory"
	infraobs "github.com/Zhima-Mochi/kitchenledger/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCounter struct {
	mu   sync.Mutex
	hits map[string]float64
}

func (c *countingCounter) Add(d float64, labels ...observability.Label) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hits == nil {
		c.hits = make(map[string]float64)
	}
	for _, l := range labels {
		c.hits[l.Key+"="+l.Value] += d
	}
}

func (c *countingCounter) Bind(labels ...observability.Label) observability.BoundCounter {
	return boundCounter{c: c, labels: labels}
}

type boundCounter struct {
	c      *countingCounter
	labels []observability.Label
}

func (b boundCounter) Add(d float64) { b.c.Add(d, b.labels...) }

type recordingPublisher struct{ events []domoutbox.Event }

func (p *recordingPublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.events = append(p.events, e)
	return nil
}

type env struct {
	ctx       context.Context
	store     *memory.Store
	ledger    *Ledger
	svc       *Service
	catalog   *appcatalog.Service
	conflicts *countingCounter
	pub       *recordingPublisher
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ids := id.NewUUIDGenerator()
	conflicts := &countingCounter{}
	tel := infraobs.New(nil, nil, map[observability.MetricKey]observability.Counter{
		observability.MInventoryConflicts: conflicts,
	}, nil)
	store := memory.NewStore()
	calc := appcatalog.NewCalculator()
	ledger := NewLedger(ids, tel)
	pub := &recordingPublisher{}
	return &env{
		ctx:       context.Background(),
		store:     store,
		ledger:    ledger,
		svc:       NewService(store, ledger, calc, ids, pub, tel),
		catalog:   appcatalog.NewService(store, calc, ids, nil),
		conflicts: conflicts,
		pub:       pub,
	}
}

func (e *env) item(t *testing.T, name string, qty, min int64) *domain.Item {
	t.Helper()
	it, err := e.svc.CreateItem(e.ctx, CreateItemInput{
		Name: name, Unit: "g", Quantity: decimal.NewFromInt(qty), MinimumStock: decimal.NewFromInt(min), UnitPrice: decimal.NewFromInt(2),
	})
	require.NoError(t, err)
	return it
}

func (e *env) qty(t *testing.T, id string) string {
	t.Helper()
	it, err := e.svc.GetItem(e.ctx, id)
	require.NoError(t, err)
	return it.Quantity.String()
}

func TestReserveIsAllOrNothing(t *testing.T) {
	e := newEnv(t)
	flour := e.item(t, "Flour", 500, 50)
	salt := e.item(t, "Salt", 10, 1)

	err := e.store.Do(e.ctx, func(ctx context.Context, tx uow.Tx) error {
		_, err := e.ledger.Reserve(ctx, tx, "ord-1", map[string]decimal.Decimal{
			flour.ID: decimal.NewFromInt(100),
			salt.ID:  decimal.NewFromInt(11),
		})
		return err
	})
	var stock *domain.StockError
	require.True(t, errors.As(err, &stock))
	assert.Equal(t, salt.ID, stock.ItemID)
	assert.Equal(t, "500", e.qty(t, flour.ID))
	assert.Equal(t, "10", e.qty(t, salt.ID))
	assert.Equal(t, float64(1), e.conflicts.hits["reason=insufficient_stock"])

	err = e.store.Do(e.ctx, func(ctx context.Context, tx uow.Tx) error {
		_, err := e.ledger.Reserve(ctx, tx, "ord-1", map[string]decimal.Decimal{"ghost": decimal.NewFromInt(1)})
		return err
	})
	assert.ErrorIs(t, err, domain.ErrUnavailable)
	assert.Equal(t, float64(1), e.conflicts.hits["reason=unavailable"])
}

func TestReserveAndReleaseReportStatusChanges(t *testing.T) {
	e := newEnv(t)
	flour := e.item(t, "Flour", 100, 20)

	var changes []domain.StatusChangedEvent
	err := e.store.Do(e.ctx, func(ctx context.Context, tx uow.Tx) error {
		var err error
		changes, err = e.ledger.Reserve(ctx, tx, "ord-1", map[string]decimal.Decimal{flour.ID: decimal.NewFromInt(90)})
		return err
	})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, domain.StatusInStock, changes[0].From)
	assert.Equal(t, domain.StatusLowStock, changes[0].To)

	err = e.store.Do(e.ctx, func(ctx context.Context, tx uow.Tx) error {
		var err error
		changes, err = e.ledger.Release(ctx, tx, "ord-1", map[string]decimal.Decimal{flour.ID: decimal.NewFromInt(90)})
		return err
	})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, domain.StatusInStock, changes[0].To)

	moves, err := e.svc.Movements(e.ctx, flour.ID)
	require.NoError(t, err)
	require.Len(t, moves, 3)
	assert.Equal(t, domain.MovementReserve, moves[1].Reason)
	assert.Equal(t, "-90", moves[1].Delta.String())
	assert.Equal(t, "ord-1", moves[1].OrderID)
	assert.Equal(t, domain.MovementRelease, moves[2].Reason)
	assert.Equal(t, "100", moves[2].Balance.String())
}

func TestReleaseCreditsTombstonedItems(t *testing.T) {
	e := newEnv(t)
	flour := e.item(t, "Flour", 100, 0)
	require.NoError(t, e.svc.DeleteItem(e.ctx, flour.ID, false))

	err := e.store.Do(e.ctx, func(ctx context.Context, tx uow.Tx) error {
		changes, err := e.ledger.Release(ctx, tx, "ord-1", map[string]decimal.Decimal{flour.ID: decimal.NewFromInt(5)})
		assert.Empty(t, changes)
		return err
	})
	require.NoError(t, err)

	moves, err := e.svc.Movements(e.ctx, flour.ID)
	require.NoError(t, err)
	assert.Equal(t, "105", moves[len(moves)-1].Balance.String())
	_, err = e.svc.GetItem(e.ctx, flour.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateItemValidation(t *testing.T) {
	e := newEnv(t)
	e.item(t, "Flour", 1, 0)

	_, err := e.svc.CreateItem(e.ctx, CreateItemInput{Name: "Flour", Unit: "g"})
	assert.ErrorIs(t, err, domain.ErrDuplicateName)
	_, err = e.svc.CreateItem(e.ctx, CreateItemInput{Name: " ", Unit: "g"})
	assert.ErrorIs(t, err, application.ErrValidation)
	_, err = e.svc.CreateItem(e.ctx, CreateItemInput{Name: "Oil", Unit: "ml", Quantity: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, domain.ErrNegativeValue)
}

func TestAdjustAndRestockRecordMovements(t *testing.T) {
	e := newEnv(t)
	flour := e.item(t, "Flour", 100, 50)
	e.item(t, "Sugar", 10, 0)

	qty := decimal.NewFromInt(40)
	updated, err := e.svc.AdjustItem(e.ctx, flour.ID, domain.Changes{Quantity: &qty})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusLowStock, updated.Status)

	updated, err = e.svc.Restock(e.ctx, flour.ID, decimal.NewFromInt(60))
	require.NoError(t, err)
	assert.Equal(t, "100", updated.Quantity.String())
	assert.Equal(t, domain.StatusInStock, updated.Status)

	moves, err := e.svc.Movements(e.ctx, flour.ID)
	require.NoError(t, err)
	require.Len(t, moves, 3)
	assert.Equal(t, "-60", moves[1].Delta.String())
	assert.Equal(t, "60", moves[2].Delta.String())
	require.Len(t, e.pub.events, 2)

	name := "Sugar"
	_, err = e.svc.AdjustItem(e.ctx, flour.ID, domain.Changes{Name: &name})
	assert.ErrorIs(t, err, domain.ErrDuplicateName)
	_, err = e.svc.AdjustItem(e.ctx, flour.ID, domain.Changes{})
	assert.ErrorIs(t, err, application.ErrValidation)
	_, err = e.svc.Restock(e.ctx, flour.ID, decimal.Zero)
	assert.ErrorIs(t, err, application.ErrValidation)
}

func TestDeleteItemInUse(t *testing.T) {
	e := newEnv(t)
	flour := e.item(t, "Flour", 1000, 0)
	bread, err := e.catalog.CreateMenuItem(e.ctx, appcatalog.CreateMenuItemInput{Name: "Bread", Price: decimal.NewFromInt(2000)})
	require.NoError(t, err)
	_, err = e.catalog.CreateRecipe(e.ctx, appcatalog.CreateRecipeInput{MenuItemID: bread.ID, InventoryID: flour.ID, Quantity: decimal.NewFromInt(200)})
	require.NoError(t, err)

	err = e.svc.DeleteItem(e.ctx, flour.ID, false)
	require.ErrorIs(t, err, domain.ErrInUse)

	require.NoError(t, e.svc.DeleteItem(e.ctx, flour.ID, true))
	var mi *domcatalog.MenuItem
	require.NoError(t, e.store.Do(e.ctx, func(ctx context.Context, tx uow.Tx) error {
		var err error
		mi, err = tx.Catalog().GetMenuItem(ctx, bread.ID)
		return err
	}))
	assert.False(t, mi.Sellable)
	assert.True(t, mi.Cost.IsZero())

	items, err := e.svc.ListItems(e.ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}
