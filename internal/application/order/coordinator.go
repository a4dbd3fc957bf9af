package order

import (
	"context"
	"errors"

	"github.com/Zhima-Mochi/kitchenledger/internal/application"
	appcatalog "github.com/Zhima-Mochi/kitchenledger/internal/application/catalog"
	appinventory "github.com/Zhima-Mochi/kitchenledger/internal/application/inventory"
	apppayment "github.com/Zhima-Mochi/kitchenledger/internal/application/payment"
	"github.com/Zhima-Mochi/kitchenledger/internal/application/pricing"
	domcatalog "github.com/Zhima-Mochi/kitchenledger/internal/domain/catalog"
	domcustomer "github.com/Zhima-Mochi/kitchenledger/internal/domain/customer"
	dominv "github.com/Zhima-Mochi/kitchenledger/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/kitchenledger/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/kitchenledger/internal/domain/outbox"
	dompay "github.com/Zhima-Mochi/kitchenledger/internal/domain/payment"
	"github.com/Zhima-Mochi/kitchenledger/internal/domain/uow"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability/logctx"

	"github.com/shopspring/decimal"
)

const orderService = "order-service"

var (
	ErrConflict = domain.ErrConflict
	ErrNotFound = domain.ErrNotFound
	// ErrPaymentInitialization is returned together with a committed order
	// when the gateway could not open a checkout.
	ErrPaymentInitialization = errors.New("order: payment initialization failed")
)

// Dependencies wires the coordinator. Cache and Publisher are optional.
type Dependencies struct {
	UnitOfWork    uow.UnitOfWork
	Calculator    *appcatalog.Calculator
	Ledger        *appinventory.Ledger
	Pricing       *pricing.Validator
	Payments      *apppayment.Service
	IDs           application.IDGenerator
	Publisher     domoutbox.Publisher
	Cache         Cache
	Observability observability.Observability
}

// Coordinator groups the order use cases. Each mutation runs in exactly one
// unit of work; payment and event publishing only happen after it commits.
type Coordinator struct {
	Create *CreateOrderUseCase
	Update *UpdateOrderUseCase
	Cancel *CancelOrderUseCase
	Get    *GetOrderUseCase
	List   *ListOrdersUseCase
}

func NewCoordinator(deps Dependencies) *Coordinator {
	c := &core{
		uow:       deps.UnitOfWork,
		calc:      deps.Calculator,
		ledger:    deps.Ledger,
		pricer:    deps.Pricing,
		payments:  deps.Payments,
		ids:       deps.IDs,
		publisher: deps.Publisher,
		cache:     deps.Cache,
		obs:       application.NewInstruments(deps.Observability, orderService),
	}
	if c.calc == nil {
		c.calc = appcatalog.NewCalculator()
	}
	if c.pricer == nil {
		c.pricer = pricing.NewValidator(pricing.DefaultDeliveryFee, pricing.DefaultTolerance)
	}
	if c.cache == nil {
		c.cache = nopCache{}
	}
	return &Coordinator{
		Create: &CreateOrderUseCase{core: c},
		Update: &UpdateOrderUseCase{core: c},
		Cancel: &CancelOrderUseCase{core: c},
		Get:    &GetOrderUseCase{core: c},
		List:   &ListOrdersUseCase{core: c},
	}
}

type core struct {
	uow       uow.UnitOfWork
	calc      *appcatalog.Calculator
	ledger    *appinventory.Ledger
	pricer    *pricing.Validator
	payments  *apppayment.Service
	ids       application.IDGenerator
	publisher domoutbox.Publisher
	cache     Cache
	obs       application.Instruments
}

// RequestedItem is one line as the client sent it.
type RequestedItem struct {
	MenuItemID string
	Quantity   int
}

// normalize validates requested lines and merges duplicates, keeping the
// order in which menu items first appeared.
func normalize(items []RequestedItem) ([]appcatalog.Line, error) {
	if len(items) == 0 {
		return nil, application.NewValidation("at least one item is required")
	}
	index := make(map[string]int, len(items))
	lines := make([]appcatalog.Line, 0, len(items))
	for _, it := range items {
		if it.MenuItemID == "" {
			return nil, application.NewValidation("menu item id is required")
		}
		if it.Quantity <= 0 {
			return nil, application.NewValidation("quantity must be greater than zero")
		}
		if i, ok := index[it.MenuItemID]; ok {
			lines[i].Quantity += it.Quantity
			continue
		}
		index[it.MenuItemID] = len(lines)
		lines = append(lines, appcatalog.Line{MenuItemID: it.MenuItemID, Quantity: it.Quantity})
	}
	return lines, nil
}

// priceLines loads the menu items, checks each one is sellable and prices the
// lines at the current menu price.
func (c *core) priceLines(ctx context.Context, tx uow.Tx, lines []appcatalog.Line) ([]pricing.Line, error) {
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.MenuItemID
	}
	menu, err := tx.Catalog().GetMenuItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, id := range ids {
		if _, ok := menu[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, &domcatalog.NotFoundError{IDs: missing}
	}

	priced := make([]pricing.Line, 0, len(lines))
	for _, l := range lines {
		item := menu[l.MenuItemID]
		sellable, err := c.calc.IsSellable(ctx, tx, item.ID)
		if err != nil {
			return nil, err
		}
		if !sellable {
			return nil, &domcatalog.UnsellableError{MenuItemID: item.ID, Name: item.Name}
		}
		priced = append(priced, pricing.Line{MenuItemID: item.ID, Quantity: l.Quantity, UnitPrice: item.Price})
	}
	return priced, nil
}

func (c *core) orderItems(priced []pricing.Line) []domain.Item {
	items := make([]domain.Item, 0, len(priced))
	for _, l := range priced {
		items = append(items, domain.Item{
			ID:         c.ids.NewID(),
			MenuItemID: l.MenuItemID,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPrice,
			Subtotal:   l.Subtotal(),
		})
	}
	return items
}

func consumptionOf(req appcatalog.Requirements) []domain.Consumption {
	out := make([]domain.Consumption, 0, len(req))
	for _, id := range req.IDs() {
		out = append(out, domain.Consumption{InventoryID: id, Quantity: req[id]})
	}
	return out
}

func restitutionOf(consumed []domain.Consumption) appcatalog.Requirements {
	req := make(appcatalog.Requirements, len(consumed))
	for _, c := range consumed {
		req.Add(c.InventoryID, c.Quantity)
	}
	return req
}

func statusEvents(changes []dominv.StatusChangedEvent) []domoutbox.Event {
	out := make([]domoutbox.Event, 0, len(changes))
	for _, c := range changes {
		out = append(out, c)
	}
	return out
}

func (c *core) invalidate(ctx context.Context, orderID string) {
	if err := c.cache.Invalidate(ctx, orderID); err != nil {
		logctx.FromOr(ctx, c.obs.Logger()).Warn("order_cache_invalidate_failed",
			observability.F("order_id", orderID),
			observability.F("error", err.Error()),
		)
	}
}

func (c *core) fee() decimal.Decimal { return c.pricer.DeliveryFee() }

// failureStatus maps an error onto the status text of the use_case_done line.
func failureStatus(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "CONTEXT_CANCELED"
	case errors.Is(err, application.ErrValidation):
		return "VALIDATION_FAILED"
	case errors.Is(err, domain.ErrNotFound):
		return "ORDER_NOT_FOUND"
	case errors.Is(err, domcustomer.ErrNotFound):
		return "CUSTOMER_NOT_FOUND"
	case errors.Is(err, domcatalog.ErrMenuItemNotFound):
		return "MENU_ITEM_NOT_FOUND"
	case errors.Is(err, domcatalog.ErrUnsellable):
		return "MENU_ITEM_UNSELLABLE"
	case errors.Is(err, pricing.ErrPriceMismatch):
		return "PRICE_MISMATCH"
	case errors.Is(err, dominv.ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, dominv.ErrUnavailable):
		return "INGREDIENT_UNAVAILABLE"
	case errors.Is(err, domain.ErrConflict):
		return "CONFLICT"
	case errors.Is(err, domain.ErrInvalidStateTransition), errors.Is(err, domain.ErrNotEditable):
		return "INVALID_STATE_TRANSITION"
	case errors.Is(err, dompay.ErrNotFound):
		return "TRANSACTION_NOT_FOUND"
	default:
		return "UNIT_OF_WORK_FAILED"
	}
}
