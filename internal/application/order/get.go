package order

import (
	"context"
	"errors"

	"github.com/Zhima-Mochi/kitchenledger/internal/application"
	"github.com/Zhima-Mochi/kitchenledger/internal/domain/uow"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	useCaseOrderGet  = "order.get"
	useCaseOrderList = "order.list"
	defaultPageSize  = 20
	maxPageSize      = 100
)

var _ application.UseCase[string, *OrderView] = (*GetOrderUseCase)(nil)

// GetOrderUseCase reads one order through the cache.
type GetOrderUseCase struct {
	*core
}

func (uc *GetOrderUseCase) Execute(ctx context.Context, orderID string) (_ *OrderView, err error) {
	ctx, probe := uc.obs.Begin(ctx, useCaseOrderGet, "GetOrder", attribute.String("order.id", orderID))
	defer func() { probe.End(err) }()

	if orderID == "" {
		probe.Fail("ORDER_ID_REQUIRED")
		return nil, application.NewValidation("order id is required")
	}

	view, cacheErr := uc.cache.Get(ctx, orderID)
	switch {
	case cacheErr == nil:
		probe.Status = "CACHE_HIT"
		return view, nil
	case !errors.Is(cacheErr, ErrCacheMiss):
		probe.Annotate(observability.F("cache_error", cacheErr.Error()))
	}

	err = uc.uow.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		o, err := tx.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}
		txns, err := tx.Transactions().ListByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		view = NewOrderView(o, txns)
		return nil
	})
	if err != nil {
		probe.Fail(failureStatus(err))
		return nil, err
	}
	if setErr := uc.cache.Set(ctx, view); setErr != nil {
		probe.Annotate(observability.F("cache_error", setErr.Error()))
	}
	return view, nil
}

type ListOrdersInput struct {
	CustomerID string
	Limit      int
	Offset     int
}

var _ application.UseCase[ListOrdersInput, []*OrderView] = (*ListOrdersUseCase)(nil)

// ListOrdersUseCase pages through a customer's live orders, newest first.
type ListOrdersUseCase struct {
	*core
}

func (uc *ListOrdersUseCase) Execute(ctx context.Context, cmd ListOrdersInput) (_ []*OrderView, err error) {
	ctx, probe := uc.obs.Begin(ctx, useCaseOrderList, "ListOrders", attribute.String("order.customer_id", cmd.CustomerID))
	defer func() { probe.End(err) }()

	if cmd.CustomerID == "" {
		probe.Fail("CUSTOMER_ID_REQUIRED")
		return nil, application.NewValidation("customer id is required")
	}
	if cmd.Limit <= 0 {
		cmd.Limit = defaultPageSize
	}
	if cmd.Limit > maxPageSize {
		cmd.Limit = maxPageSize
	}
	if cmd.Offset < 0 {
		cmd.Offset = 0
	}

	var out []*OrderView
	err = uc.uow.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		orders, err := tx.Orders().ListByCustomer(ctx, cmd.CustomerID, cmd.Limit, cmd.Offset)
		if err != nil {
			return err
		}
		out = make([]*OrderView, 0, len(orders))
		for _, o := range orders {
			out = append(out, NewOrderView(o, nil))
		}
		return nil
	})
	if err != nil {
		probe.Fail(failureStatus(err))
		return nil, err
	}
	probe.Annotate(observability.F("count", len(out)))
	return out, nil
}
