package mcppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/kitchenledger/internal/application"
	apporder "github.com/Zhima-Mochi/kitchenledger/internal/application/order"
	domcatalog "github.com/Zhima-Mochi/kitchenledger/internal/domain/catalog"
	dominv "github.com/Zhima-Mochi/kitchenledger/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/kitchenledger/internal/domain/order"

	"github.com/mark3labs/mcp-go/mcp"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
)

func (s *Server) handleGetOrder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	orderID, err := requireString(args, "order_id")
	if err != nil {
		return nil, err
	}

	view, err := s.svc.Orders.Get.Execute(ctx, orderID)
	if err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(formatJSON(view)), nil
}

func (s *Server) handleListOrders(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	customerID, err := requireString(args, "customer_id")
	if err != nil {
		return nil, err
	}
	limit := getIntDefault(args, "limit", 20)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}
	offset := getIntDefault(args, "offset", 0)
	if offset < 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "offset must not be negative", map[string]interface{}{
			"param": "offset",
			"value": offset,
		})
	}

	views, err := s.svc.Orders.List.Execute(ctx, apporder.ListOrdersInput{
		CustomerID: customerID,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"customer_id": customerID,
		"count":       len(views),
		"orders":      views,
	})), nil
}

func (s *Server) handleCancelOrder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	orderID, err := requireString(args, "order_id")
	if err != nil {
		return nil, err
	}

	if _, err := s.svc.Orders.Cancel.Execute(ctx, orderID); err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"order_id":  orderID,
		"cancelled": true,
	})), nil
}

func (s *Server) handleCheckAvailability(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	menuItemID, err := requireString(args, "menu_item_id")
	if err != nil {
		return nil, err
	}
	quantity := getIntDefault(args, "quantity", 1)
	if quantity < 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "quantity must be at least 1", map[string]interface{}{
			"param": "quantity",
			"value": quantity,
		})
	}

	report, err := s.svc.Catalog.CheckAvailability(ctx, menuItemID, quantity)
	if err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(formatJSON(report)), nil
}

type stockLine struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Unit         string        `json:"unit"`
	Quantity     string        `json:"quantity"`
	MinimumStock string        `json:"minimum_stock"`
	Status       dominv.Status `json:"status"`
}

func newStockLine(it *dominv.Item) stockLine {
	return stockLine{
		ID:           it.ID,
		Name:         it.Name,
		Unit:         it.Unit,
		Quantity:     it.Quantity.String(),
		MinimumStock: it.MinimumStock.String(),
		Status:       it.Status,
	}
}

func (s *Server) handleInventoryStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	if id := getStringDefault(args, "inventory_id", ""); id != "" {
		item, err := s.svc.Inventory.GetItem(ctx, id)
		if err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText(formatJSON(newStockLine(item))), nil
	}

	filter := dominv.Status(getStringDefault(args, "status", ""))
	switch filter {
	case "", dominv.StatusInStock, dominv.StatusLowStock, dominv.StatusOutOfStock:
	default:
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid status", map[string]interface{}{
			"param":   "status",
			"value":   string(filter),
			"allowed": []string{string(dominv.StatusInStock), string(dominv.StatusLowStock), string(dominv.StatusOutOfStock)},
		})
	}

	items, err := s.svc.Inventory.ListItems(ctx)
	if err != nil {
		return toolError(err)
	}
	lines := make([]stockLine, 0, len(items))
	for _, it := range items {
		if filter != "" && it.Status != filter {
			continue
		}
		lines = append(lines, newStockLine(it))
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"count": len(lines),
		"items": lines,
	})), nil
}

// Helper functions

// toolError reports business failures inside the result so the caller can
// read them; anything else becomes a protocol error.
func toolError(err error) (*mcp.CallToolResult, error) {
	switch {
	case errors.Is(err, application.ErrValidation),
		errors.Is(err, domorder.ErrNotFound),
		errors.Is(err, domorder.ErrConflict),
		errors.Is(err, domorder.ErrInvalidStateTransition),
		errors.Is(err, domcatalog.ErrMenuItemNotFound),
		errors.Is(err, dominv.ErrNotFound):
		return mcp.NewToolResultError(err.Error()), nil
	}
	return nil, newMCPError(ErrorCodeInternalError, "operation failed", map[string]interface{}{
		"error": err.Error(),
	})
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func requireString(args map[string]interface{}, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
			"param":  key,
			"reason": "missing or empty",
		})
	}
	return v, nil
}

// formatJSON formats a value as indented JSON
func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
