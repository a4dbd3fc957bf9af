package worker

import (
	"context"
	"testing"

	appcatalog "github.com/Zhima-Mochi/kitchenledger/internal/application/catalog"
	appinventory "github.com/Zhima-Mochi/kitchenledger/internal/application/inventory"
	dominv "github.com/Zhima-Mochi/kitchenledger/internal/domain/inventory"
	domoutbox "github.com/Zhima-Mochi/kitchenledger/internal/domain/outbox"
	"github.com/Zhima-Mochi/kitchenledger/internal/infrastructure/id"
	"github.com/Zhima-Mochi/kitchenledger/internal/infrastructure/memory"
	infraobs "github.com/Zhima-Mochi/kitchenledger/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/kitchenledger/internal/infrastructure/observability/zaplogger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeBus struct{ subs map[string]domoutbox.Handler }

func (b *fakeBus) Subscribe(name string, h domoutbox.Handler) {
	if b.subs == nil {
		b.subs = make(map[string]domoutbox.Handler)
	}
	b.subs[name] = h
}

func TestStockAlertListsAffectedMenuItems(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	ids := id.NewUUIDGenerator()
	calc := appcatalog.NewCalculator()
	inventory := appinventory.NewService(store, appinventory.NewLedger(ids, nil), calc, ids, nil, nil)
	catalog := appcatalog.NewService(store, calc, ids, nil)

	flour, err := inventory.CreateItem(ctx, appinventory.CreateItemInput{
		Name: "Flour", Unit: "g", Quantity: decimal.NewFromInt(50), MinimumStock: decimal.NewFromInt(100), UnitPrice: decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	bread, err := catalog.CreateMenuItem(ctx, appcatalog.CreateMenuItemInput{Name: "Bread", Price: decimal.NewFromInt(2000)})
	require.NoError(t, err)
	_, err = catalog.CreateRecipe(ctx, appcatalog.CreateRecipeInput{MenuItemID: bread.ID, InventoryID: flour.ID, Quantity: decimal.NewFromInt(20)})
	require.NoError(t, err)

	core, logs := observer.New(zapcore.DebugLevel)
	tel := infraobs.New(nil, zaplogger.Wrap(zap.New(core)), nil, nil)
	bus := &fakeBus{}
	New(store, calc, bus, nil, tel).Start()

	h, ok := bus.subs["inventory.status_changed"]
	require.True(t, ok)

	require.NoError(t, h(ctx, dominv.StatusChangedEvent{
		ItemID: flour.ID, Name: "Flour", From: dominv.StatusInStock, To: dominv.StatusLowStock, Quantity: "50",
	}))
	alerts := logs.FilterMessage("inventory_low_stock").All()
	require.Len(t, alerts, 1)
	fields := alerts[0].ContextMap()
	assert.Equal(t, flour.ID, fields["inventory_id"])
	assert.Equal(t, []interface{}{bread.ID}, fields["menu_items"])

	require.NoError(t, h(ctx, dominv.StatusChangedEvent{ItemID: flour.ID, From: dominv.StatusOutOfStock, To: dominv.StatusInStock}))
	assert.Equal(t, 1, logs.FilterMessage("inventory_restored").Len())
	assert.Zero(t, logs.FilterMessage("inventory_out_of_stock").Len())
}
