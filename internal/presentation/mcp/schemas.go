package mcppresentation

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func getOrderTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_order",
		Description: "Fetch an order with its lines, totals and payment attempts",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"order_id": map[string]interface{}{
					"type":        "string",
					"description": "Order id (the idempotency key when the client supplied one)",
				},
			},
			Required: []string{"order_id"},
		},
	}
}

func listOrdersTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_orders",
		Description: "List a customer's orders, newest first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"customer_id": map[string]interface{}{
					"type":        "string",
					"description": "Customer id",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of orders to return (1-100)",
					"default":     20,
					"minimum":     1,
					"maximum":     100,
				},
				"offset": map[string]interface{}{
					"type":        "integer",
					"description": "Number of orders to skip",
					"default":     0,
					"minimum":     0,
				},
			},
			Required: []string{"customer_id"},
		},
	}
}

func cancelOrderTool() mcp.Tool {
	return mcp.Tool{
		Name:        "cancel_order",
		Description: "Cancel an order and return its reserved ingredients to stock",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"order_id": map[string]interface{}{
					"type":        "string",
					"description": "Order id",
				},
			},
			Required: []string{"order_id"},
		},
	}
}

func checkAvailabilityTool() mcp.Tool {
	return mcp.Tool{
		Name:        "check_availability",
		Description: "Report whether a quantity of a menu item can be made from current stock, ingredient by ingredient",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"menu_item_id": map[string]interface{}{
					"type":        "string",
					"description": "Menu item id",
				},
				"quantity": map[string]interface{}{
					"type":        "integer",
					"description": "Units wanted",
					"default":     1,
					"minimum":     1,
				},
			},
			Required: []string{"menu_item_id"},
		},
	}
}

func inventoryStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "inventory_status",
		Description: "Show stock level and status for one ingredient, or for every live ingredient when no id is given",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"inventory_id": map[string]interface{}{
					"type":        "string",
					"description": "Inventory item id; omit to list all",
				},
				"status": map[string]interface{}{
					"type":        "string",
					"description": "Only list items in this status",
					"enum":        []string{"in_stock", "low_stock", "out_of_stock"},
				},
			},
		},
	}
}
