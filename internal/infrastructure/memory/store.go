package memory

import (
	"context"
	"sync"

	domcatalog "github.com/Zhima-Mochi/kitchenledger/internal/domain/catalog"
	domcustomer "github.com/Zhima-Mochi/kitchenledger/internal/domain/customer"
	dominv "github.com/Zhima-Mochi/kitchenledger/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/kitchenledger/internal/domain/order"
	dompay "github.com/Zhima-Mochi/kitchenledger/internal/domain/payment"
	"github.com/Zhima-Mochi/kitchenledger/internal/domain/uow"
)

// Store keeps every aggregate in process memory. Units of work are
// serialized and run against a private copy that replaces the live state
// only when fn succeeds.
type Store struct {
	mu    sync.Mutex
	state *state
}

var _ uow.UnitOfWork = (*Store)(nil)

func NewStore() *Store {
	return &Store{state: newState()}
}

func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx uow.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, &tx{st: work}); err != nil {
		return err
	}
	work.movements.commit(work.pending)
	work.pending = nil
	s.state = work
	return nil
}

type tx struct{ st *state }

func (t *tx) Inventory() dominv.Repository      { return &InventoryRepository{st: t.st} }
func (t *tx) Catalog() domcatalog.Repository    { return &CatalogRepository{st: t.st} }
func (t *tx) Customers() domcustomer.Repository { return &CustomerRepository{st: t.st} }
func (t *tx) Orders() domorder.Repository       { return &OrderRepository{st: t.st} }
func (t *tx) Transactions() dompay.Repository   { return &TransactionRepository{st: t.st} }

type state struct {
	inventory map[string]*dominv.Item
	movements *movementLog
	pending   []dominv.Movement
	menuItems map[string]*domcatalog.MenuItem
	recipes   map[string]*domcatalog.Recipe
	customers map[string]*domcustomer.Customer
	orders    map[string]*domorder.Order
	orderSeq  []string
	txns      map[string]*dompay.Transaction
	txnSeq    []string
}

func newState() *state {
	return &state{
		inventory: make(map[string]*dominv.Item),
		movements: &movementLog{byItem: make(map[string][]dominv.Movement)},
		menuItems: make(map[string]*domcatalog.MenuItem),
		recipes:   make(map[string]*domcatalog.Recipe),
		customers: make(map[string]*domcustomer.Customer),
		orders:    make(map[string]*domorder.Order),
		txns:      make(map[string]*dompay.Transaction),
	}
}

func (s *state) clone() *state {
	c := &state{
		inventory: make(map[string]*dominv.Item, len(s.inventory)),
		movements: s.movements,
		menuItems: make(map[string]*domcatalog.MenuItem, len(s.menuItems)),
		recipes:   make(map[string]*domcatalog.Recipe, len(s.recipes)),
		customers: make(map[string]*domcustomer.Customer, len(s.customers)),
		orders:    make(map[string]*domorder.Order, len(s.orders)),
		orderSeq:  append([]string(nil), s.orderSeq...),
		txns:      make(map[string]*dompay.Transaction, len(s.txns)),
		txnSeq:    append([]string(nil), s.txnSeq...),
	}
	for k, v := range s.inventory {
		c.inventory[k] = v.Clone()
	}
	for k, v := range s.menuItems {
		c.menuItems[k] = v.Clone()
	}
	for k, v := range s.recipes {
		c.recipes[k] = v.Clone()
	}
	for k, v := range s.customers {
		cust := *v
		c.customers[k] = &cust
	}
	for k, v := range s.orders {
		c.orders[k] = v.Clone()
	}
	for k, v := range s.txns {
		c.txns[k] = v.Clone()
	}
	return c
}

// movementLog is shared by every state copy. Movements recorded inside a unit
// of work stay in state.pending until it commits.
type movementLog struct {
	byItem map[string][]dominv.Movement
}

func (l *movementLog) commit(ms []dominv.Movement) {
	for _, m := range ms {
		l.byItem[m.ItemID] = append(l.byItem[m.ItemID], m)
	}
}
