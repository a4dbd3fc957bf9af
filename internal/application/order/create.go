package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Zhima-Mochi/kitchenledger/internal/application"
	appcatalog "github.com/Zhima-Mochi/kitchenledger/internal/application/catalog"
	apppayment "github.com/Zhima-Mochi/kitchenledger/internal/application/payment"
	domain "github.com/Zhima-Mochi/kitchenledger/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/kitchenledger/internal/domain/outbox"
	dompay "github.com/Zhima-Mochi/kitchenledger/internal/domain/payment"
	"github.com/Zhima-Mochi/kitchenledger/internal/domain/uow"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const useCaseOrderCreate = "order.create"

var _ application.UseCase[CreateOrderInput, *CreateOrderResult] = (*CreateOrderUseCase)(nil)

// CreateOrderUseCase places an order: availability, pricing, stock deduction
// and the pending payment record commit together, then payment is initialized.
type CreateOrderUseCase struct {
	*core
}

type CreateOrderInput struct {
	// IdempotencyKey, when set, becomes the order id.
	IdempotencyKey  string
	CustomerID      string
	Items           []RequestedItem
	ClientTotal     decimal.Decimal
	DeliveryAddress string
}

type CreateOrderResult struct {
	Order    *OrderView
	Payment  *dompay.Initiation
	Replayed bool
}

type placement struct {
	order  *domain.Order
	txn    *dompay.Transaction
	email  string
	events []domoutbox.Event
}

// Execute performs the order creation flow. When payment initialization fails
// after commit, the committed order is returned together with an error
// wrapping ErrPaymentInitialization.
func (uc *CreateOrderUseCase) Execute(ctx context.Context, cmd CreateOrderInput) (_ *CreateOrderResult, err error) {
	ctx, probe := uc.obs.Begin(ctx, useCaseOrderCreate, "CreateOrder",
		attribute.String("order.customer_id", cmd.CustomerID),
		attribute.Int("order.line_count", len(cmd.Items)),
		attribute.Bool("order.idempotent", cmd.IdempotencyKey != ""),
	)
	defer func() { probe.End(err) }()

	if cmd.CustomerID == "" {
		probe.Fail("CUSTOMER_ID_REQUIRED")
		return nil, application.NewValidation("customer id is required")
	}
	if strings.TrimSpace(cmd.DeliveryAddress) == "" {
		probe.Fail("DELIVERY_ADDRESS_REQUIRED")
		return nil, application.NewValidation("delivery address is required")
	}
	lines, err := normalize(cmd.Items)
	if err != nil {
		probe.Fail("ITEMS_INVALID")
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		probe.Fail("CONTEXT_CANCELED")
		return nil, err
	}

	orderID := cmd.IdempotencyKey
	if orderID == "" {
		orderID = uc.ids.NewID()
	}

	var (
		placed *placement
		replay *domain.Order
	)
	err = uc.uow.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		placed, replay = nil, nil
		if cmd.IdempotencyKey != "" {
			existing, err := lookupReplay(ctx, tx, orderID, cmd.CustomerID)
			switch {
			case err == nil:
				replay = existing
				return nil
			case !errors.Is(err, domain.ErrNotFound):
				return err
			}
		}
		var err error
		placed, err = uc.place(ctx, tx, orderID, cmd, lines)
		return err
	})
	if err != nil && cmd.IdempotencyKey != "" {
		// A concurrent request with the same key may have committed while this
		// one waited on row locks; it then fails on stock or on the key itself.
		existing, lookupErr := uc.loadReplay(ctx, orderID, cmd.CustomerID)
		switch {
		case lookupErr == nil:
			replay, err = existing, nil
		case errors.Is(lookupErr, domain.ErrConflict):
			err = lookupErr
		}
	}
	if err != nil {
		probe.Fail(failureStatus(err))
		return nil, err
	}
	probe.Annotate(observability.F("order_id", orderID))

	if replay != nil {
		probe.Status = "IDEMPOTENT_REPLAY"
		probe.Span().AddEvent("order.idempotent_replay",
			trace.WithAttributes(attribute.String("order.id", replay.ID)),
		)
		res, err := uc.replay(ctx, replay)
		if err != nil {
			probe.Fail(paymentFailureStatus(err))
		}
		return res, err
	}

	if pubErr := uc.obs.PublishAll(ctx, uc.publisher, placed.events...); pubErr != nil {
		probe.Annotate(observability.F("event_publish_error", pubErr.Error()))
	}

	probe.Span().SetAttributes(attribute.String("order.status", string(placed.order.Status)))
	probe.Span().AddEvent("order.created", trace.WithAttributes(attribute.String("order.id", placed.order.ID)))

	initiation, payErr := uc.payments.Initiate(ctx, apppayment.InitiateInput{
		Reference: placed.txn.Reference,
		Email:     placed.email,
		Amount:    placed.txn.Amount,
	})
	if payErr != nil {
		placed.txn.MarkFailed()
		probe.Fail("PAYMENT_INITIALIZATION_FAILED")
		return &CreateOrderResult{Order: NewOrderView(placed.order, []*dompay.Transaction{placed.txn})},
			fmt.Errorf("%w: %w", ErrPaymentInitialization, payErr)
	}
	placed.txn.RecordInitiation(*initiation)

	return &CreateOrderResult{
		Order:   NewOrderView(placed.order, []*dompay.Transaction{placed.txn}),
		Payment: initiation,
	}, nil
}

// place runs inside the unit of work. Nothing touches stock until every line
// is known, sellable and correctly priced.
func (uc *CreateOrderUseCase) place(ctx context.Context, tx uow.Tx, orderID string, cmd CreateOrderInput, lines []appcatalog.Line) (*placement, error) {
	customer, err := tx.Customers().Get(ctx, cmd.CustomerID)
	if err != nil {
		return nil, err
	}
	priced, err := uc.priceLines(ctx, tx, lines)
	if err != nil {
		return nil, err
	}
	total := uc.pricer.ComputeTotal(priced)
	if err := uc.pricer.Validate(total, cmd.ClientTotal); err != nil {
		return nil, err
	}

	req, err := uc.calc.Aggregate(ctx, tx, lines)
	if err != nil {
		return nil, err
	}
	changes, err := uc.ledger.Reserve(ctx, tx, orderID, req)
	if err != nil {
		return nil, err
	}

	o, err := domain.New(orderID, customer.ID, uc.orderItems(priced), uc.fee(), total)
	if err != nil {
		return nil, fmt.Errorf("order: construct: %w", err)
	}
	o.Consumption = consumptionOf(req)
	o.DeliveryAddress = strings.TrimSpace(cmd.DeliveryAddress)
	if err := tx.Orders().Insert(ctx, o); err != nil {
		return nil, err
	}

	txn, err := dompay.NewTransaction(uc.ids.NewID(), o.ID, uc.payments.NewReference(o.ID), total, uc.payments.Currency())
	if err != nil {
		return nil, fmt.Errorf("order: payment record: %w", err)
	}
	if err := tx.Transactions().Insert(ctx, txn); err != nil {
		return nil, err
	}

	if err := uc.calc.RecomputeForInventory(ctx, tx, req.IDs()); err != nil {
		return nil, err
	}

	events := append([]domoutbox.Event{domain.NewOrderCreatedEvent(o)}, statusEvents(changes)...)
	return &placement{order: o, txn: txn, email: customer.Email, events: events}, nil
}

// replay answers a repeated request with the existing order. The checkout is
// reused when the gateway already issued one; otherwise it is re-derived.
func (uc *CreateOrderUseCase) replay(ctx context.Context, o *domain.Order) (*CreateOrderResult, error) {
	var (
		txns  []*dompay.Transaction
		email string
	)
	err := uc.uow.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		var err error
		if txns, err = tx.Transactions().ListByOrder(ctx, o.ID); err != nil {
			return err
		}
		customer, err := tx.Customers().Get(ctx, o.CustomerID)
		if err != nil {
			return err
		}
		email = customer.Email
		return nil
	})
	if err != nil {
		return nil, err
	}

	var latest *dompay.Transaction
	if n := len(txns); n > 0 {
		latest = txns[n-1]
	}
	res := &CreateOrderResult{Order: NewOrderView(o, txns), Replayed: true}
	if latest != nil && latest.Initiated() && latest.Status != dompay.StatusFailed {
		in := latest.Initiation()
		res.Payment = &in
		return res, nil
	}
	if o.Status != domain.StatusPending || (latest != nil && latest.Status == dompay.StatusCompleted) {
		return res, nil
	}

	if latest == nil || latest.Status == dompay.StatusFailed {
		fresh, err := dompay.NewTransaction(uc.ids.NewID(), o.ID, uc.payments.NewReference(o.ID), o.Total, uc.payments.Currency())
		if err != nil {
			return nil, fmt.Errorf("order: payment record: %w", err)
		}
		if err := uc.uow.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
			return tx.Transactions().Insert(ctx, fresh)
		}); err != nil {
			return nil, err
		}
		uc.invalidate(ctx, o.ID)
		latest = fresh
		txns = append(txns, fresh)
	}

	initiation, payErr := uc.payments.Initiate(ctx, apppayment.InitiateInput{
		Reference: latest.Reference,
		Email:     email,
		Amount:    latest.Amount,
	})
	if payErr != nil {
		latest.MarkFailed()
		res.Order = NewOrderView(o, txns)
		return res, fmt.Errorf("%w: %w", ErrPaymentInitialization, payErr)
	}
	latest.RecordInitiation(*initiation)
	res.Order = NewOrderView(o, txns)
	res.Payment = initiation
	return res, nil
}

func (uc *CreateOrderUseCase) loadReplay(ctx context.Context, orderID, customerID string) (*domain.Order, error) {
	var o *domain.Order
	err := uc.uow.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		var err error
		o, err = lookupReplay(ctx, tx, orderID, customerID)
		return err
	})
	return o, err
}

// lookupReplay finds the order an idempotency key already produced. A key
// that belongs to another customer or to a removed order is a conflict.
func lookupReplay(ctx context.Context, tx uow.Tx, orderID, customerID string) (*domain.Order, error) {
	existing, err := tx.Orders().GetIncludingDeleted(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if existing.Deleted() || existing.CustomerID != customerID {
		return nil, fmt.Errorf("%w: idempotency key %q already used", domain.ErrConflict, orderID)
	}
	return existing, nil
}

func paymentFailureStatus(err error) string {
	if errors.Is(err, ErrPaymentInitialization) {
		return "PAYMENT_INITIALIZATION_FAILED"
	}
	return failureStatus(err)
}
