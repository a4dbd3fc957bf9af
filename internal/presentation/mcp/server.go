package mcppresentation

import (
	"context"
	"io"
	"time"

	appcatalog "github.com/Zhima-Mochi/kitchenledger/internal/application/catalog"
	appinventory "github.com/Zhima-Mochi/kitchenledger/internal/application/inventory"
	apporder "github.com/Zhima-Mochi/kitchenledger/internal/application/order"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability/logctx"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// ServerName is the MCP server name
	ServerName = "kitchenledger"

	componentMCP = "mcp_server"
	spanPrefix   = "MCP."
)

// Services are the application entry points exposed as tools.
type Services struct {
	Orders    *apporder.Coordinator
	Inventory *appinventory.Service
	Catalog   *appcatalog.Service
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp *server.MCPServer
	svc Services
	tel observability.Observability
	log observability.Logger
}

// NewServer registers every tool on a fresh MCP server.
func NewServer(svc Services, version string, tel observability.Observability) *Server {
	if tel == nil {
		tel = observability.Nop()
	}
	s := &Server{
		mcp: server.NewMCPServer(ServerName, version,
			server.WithToolCapabilities(false),
			server.WithInstructions("Read and manage restaurant orders and ingredient stock."),
		),
		svc: svc,
		tel: tel,
		log: tel.Logger().With(observability.F("component", componentMCP)),
	}
	s.registerTools()
	return s
}

// Serve speaks MCP over the given streams until ctx is cancelled or stdin closes.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(getOrderTool(), s.observe("get_order", s.handleGetOrder))
	s.mcp.AddTool(listOrdersTool(), s.observe("list_orders", s.handleListOrders))
	s.mcp.AddTool(cancelOrderTool(), s.observe("cancel_order", s.handleCancelOrder))
	s.mcp.AddTool(checkAvailabilityTool(), s.observe("check_availability", s.handleCheckAvailability))
	s.mcp.AddTool(inventoryStatusTool(), s.observe("inventory_status", s.handleInventoryStatus))
}

// observe wraps a tool handler in a span and a single mcp_tool_done log line.
func (s *Server) observe(tool string, next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, span := s.tel.Tracer().Start(ctx, spanPrefix+tool, attribute.String("mcp.tool", tool))
		defer span.End()

		logger := s.log.With(observability.F("tool", tool))
		ctx = logctx.With(ctx, logger)

		start := time.Now()
		res, err := next(ctx, request)

		outcome := "success"
		switch {
		case err != nil:
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case res != nil && res.IsError:
			outcome = "tool_error"
			span.SetStatus(codes.Error, "tool_error")
		default:
			span.SetStatus(codes.Ok, "OK")
		}
		logger.Info("mcp_tool_done",
			observability.F("outcome", outcome),
			observability.F("latency_seconds", time.Since(start).Seconds()),
		)
		return res, err
	}
}
