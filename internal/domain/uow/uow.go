package uow

import (
	"context"

	"github.com/Zhima-Mochi/kitchenledger/internal/domain/catalog"
	"github.com/Zhima-Mochi/kitchenledger/internal/domain/customer"
	"github.com/Zhima-Mochi/kitchenledger/internal/domain/inventory"
	"github.com/Zhima-Mochi/kitchenledger/internal/domain/order"
	"github.com/Zhima-Mochi/kitchenledger/internal/domain/payment"
)

// Tx hands out repositories bound to one atomic unit of work.
type Tx interface {
	Inventory() inventory.Repository
	Catalog() catalog.Repository
	Customers() customer.Repository
	Orders() order.Repository
	Transactions() payment.Repository
}

// UnitOfWork runs fn atomically: every write inside fn commits together, or
// none does when fn returns an error or panics.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
