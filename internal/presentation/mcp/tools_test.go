package mcppresentation

import (
	"context"
	"encoding/json"
	"testing"

	appcatalog "github.com/Zhima-Mochi/kitchenledger/internal/application/catalog"
	appcustomer "github.com/Zhima-Mochi/kitchenledger/internal/application/customer"
	appinventory "github.com/Zhima-Mochi/kitchenledger/internal/application/inventory"
	apporder "github.com/Zhima-Mochi/kitchenledger/internal/application/order"
	apppayment "github.com/Zhima-Mochi/kitchenledger/internal/application/payment"
	"github.com/Zhima-Mochi/kitchenledger/internal/infrastructure/id"
	"github.com/Zhima-Mochi/kitchenledger/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/kitchenledger/internal/infrastructure/sandboxpay"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	server    *Server
	orderID   string
	flourID   string
	breadID   string
	customer  string
	inventory *appinventory.Service
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	ids := id.NewUUIDGenerator()
	calc := appcatalog.NewCalculator()
	ledger := appinventory.NewLedger(ids, nil)
	inventory := appinventory.NewService(store, ledger, calc, ids, nil, nil)
	catalog := appcatalog.NewService(store, calc, ids, nil)
	payments := apppayment.NewService(store, sandboxpay.New(1), ids, apppayment.Options{}, nil)
	orders := apporder.NewCoordinator(apporder.Dependencies{
		UnitOfWork: store,
		Calculator: calc,
		Ledger:     ledger,
		Payments:   payments,
		IDs:        ids,
	})

	flour, err := inventory.CreateItem(ctx, appinventory.CreateItemInput{
		Name: "Flour", Unit: "g", Quantity: decimal.NewFromInt(1000), MinimumStock: decimal.NewFromInt(300), UnitPrice: decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	bread, err := catalog.CreateMenuItem(ctx, appcatalog.CreateMenuItemInput{Name: "Bread", Price: decimal.NewFromInt(2000)})
	require.NoError(t, err)
	_, err = catalog.CreateRecipe(ctx, appcatalog.CreateRecipeInput{
		MenuItemID: bread.ID, InventoryID: flour.ID, Quantity: decimal.NewFromInt(200),
	})
	require.NoError(t, err)
	cust, err := appcustomer.NewService(store, ids, nil).Register(ctx, appcustomer.RegisterInput{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	created, err := orders.Create.Execute(ctx, apporder.CreateOrderInput{
		IdempotencyKey:  "ord-1",
		CustomerID:      cust.ID,
		Items:           []apporder.RequestedItem{{MenuItemID: bread.ID, Quantity: 4}},
		ClientTotal:     decimal.NewFromInt(9500),
		DeliveryAddress: "1 Harbour Street",
	})
	require.NoError(t, err)

	return &testEnv{
		server:    NewServer(Services{Orders: orders, Inventory: inventory, Catalog: catalog}, "test", nil),
		orderID:   created.Order.ID,
		flourID:   flour.ID,
		breadID:   bread.ID,
		customer:  cust.ID,
		inventory: inventory,
	}
}

func call(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestGetOrderTool(t *testing.T) {
	env := setupServer(t)

	res, err := env.server.handleGetOrder(context.Background(), call(map[string]interface{}{"order_id": env.orderID}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var view apporder.OrderView
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &view))
	assert.Equal(t, "ord-1", view.ID)
	assert.Equal(t, "9500", view.Total.String())

	res, err = env.server.handleGetOrder(context.Background(), call(map[string]interface{}{"order_id": "missing"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	_, err = env.server.handleGetOrder(context.Background(), call(map[string]interface{}{}))
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestCheckAvailabilityTool(t *testing.T) {
	env := setupServer(t)

	tests := []struct {
		name     string
		quantity float64
		sellable bool
	}{
		{"remaining stock covers one", 1, true},
		{"short", 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := env.server.handleCheckAvailability(context.Background(), call(map[string]interface{}{
				"menu_item_id": env.breadID,
				"quantity":     tt.quantity,
			}))
			require.NoError(t, err)
			var report appcatalog.Availability
			require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &report))
			require.Len(t, report.Ingredients, 1)
			assert.Equal(t, tt.sellable, report.Ingredients[0].Sufficient)
		})
	}

	_, err := env.server.handleCheckAvailability(context.Background(), call(map[string]interface{}{
		"menu_item_id": env.breadID,
		"quantity":     float64(0),
	}))
	assert.Error(t, err)
}

func TestInventoryStatusTool(t *testing.T) {
	env := setupServer(t)

	res, err := env.server.handleInventoryStatus(context.Background(), call(map[string]interface{}{"inventory_id": env.flourID}))
	require.NoError(t, err)
	var line stockLine
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &line))
	assert.Equal(t, "200", line.Quantity)
	assert.Equal(t, "low_stock", string(line.Status))

	res, err = env.server.handleInventoryStatus(context.Background(), call(map[string]interface{}{"status": "in_stock"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), `"count": 0`)

	_, err = env.server.handleInventoryStatus(context.Background(), call(map[string]interface{}{"status": "plenty"}))
	assert.Error(t, err)
}

func TestCancelOrderToolRestoresStock(t *testing.T) {
	env := setupServer(t)

	observed := env.server.observe("cancel_order", env.server.handleCancelOrder)
	res, err := observed(context.Background(), call(map[string]interface{}{"order_id": env.orderID}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	item, err := env.inventory.GetItem(context.Background(), env.flourID)
	require.NoError(t, err)
	assert.Equal(t, "1000", item.Quantity.String())

	res, err = env.server.handleListOrders(context.Background(), call(map[string]interface{}{"customer_id": env.customer}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), `"count": 0`)
}
