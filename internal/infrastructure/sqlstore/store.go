package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domcatalog "github.com/Zhima-Mochi/kitchenledger/internal/domain/catalog"
	domcustomer "github.com/Zhima-Mochi/kitchenledger/internal/domain/customer"
	dominv "github.com/Zhima-Mochi/kitchenledger/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/kitchenledger/internal/domain/order"
	dompay "github.com/Zhima-Mochi/kitchenledger/internal/domain/payment"
	"github.com/Zhima-Mochi/kitchenledger/internal/domain/uow"
)

// querier is the subset of *sql.DB and *sql.Tx the repositories need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the database-backed unit of work. Each Do call maps onto one
// database transaction.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

var _ uow.UnitOfWork = (*Store)(nil)

// Open connects to the database, applies pending migrations and returns a
// ready Store.
func Open(ctx context.Context, d Dialect, dsn string) (*Store, error) {
	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", d.Name, err)
	}
	if d.Name == SQLite.Name {
		if err := tuneSQLite(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach %s: %w", d.Name, err)
	}

	s := &Store{db: db, dialect: d}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	return s, nil
}

// tuneSQLite pins the pool to one connection. Writers are serialized anyway,
// and an in-memory database only exists for the connection that created it.
func tuneSQLite(ctx context.Context, db *sql.DB) error {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Do runs fn inside a database transaction. The transaction commits when fn
// returns nil and rolls back on error or panic.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx uow.Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	if err = fn(ctx, &tx{q: sqlTx, d: s.dialect}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type tx struct {
	q querier
	d Dialect
}

func (t *tx) Inventory() dominv.Repository      { return &InventoryRepository{q: t.q, d: t.d} }
func (t *tx) Catalog() domcatalog.Repository    { return &CatalogRepository{q: t.q, d: t.d} }
func (t *tx) Customers() domcustomer.Repository { return &CustomerRepository{q: t.q, d: t.d} }
func (t *tx) Orders() domorder.Repository       { return &OrderRepository{q: t.q, d: t.d} }
func (t *tx) Transactions() dompay.Repository   { return &TransactionRepository{q: t.q, d: t.d} }

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, n*3)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = append(b, '?')
	}
	return string(b)
}

func toArgs(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
