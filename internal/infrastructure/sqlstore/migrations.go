package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Migration is one forward step of the schema.
type Migration struct {
	Version string
	Up      string
	Down    string
}

// AllMigrations lists every migration in version order. Column types are
// written as {{decimal}}, {{timestamp}} and {{bool}} and expanded per dialect.
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up: `
CREATE TABLE IF NOT EXISTS customers (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	phone TEXT NOT NULL DEFAULT '',
	created_at {{timestamp}} NOT NULL
);

CREATE TABLE IF NOT EXISTS inventory_items (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	unit TEXT NOT NULL,
	quantity {{decimal}} NOT NULL,
	minimum_stock {{decimal}} NOT NULL,
	unit_price {{decimal}} NOT NULL,
	status TEXT NOT NULL,
	created_at {{timestamp}} NOT NULL,
	updated_at {{timestamp}} NOT NULL,
	deleted_at {{timestamp}}
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_inventory_items_name
	ON inventory_items (lower(name)) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS menu_items (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	category_id TEXT NOT NULL DEFAULT '',
	price {{decimal}} NOT NULL,
	cost {{decimal}} NOT NULL,
	sellable {{bool}} NOT NULL DEFAULT FALSE,
	created_at {{timestamp}} NOT NULL,
	updated_at {{timestamp}} NOT NULL
);

CREATE TABLE IF NOT EXISTS recipes (
	id TEXT PRIMARY KEY,
	menu_item_id TEXT NOT NULL REFERENCES menu_items(id),
	inventory_id TEXT NOT NULL REFERENCES inventory_items(id),
	quantity {{decimal}} NOT NULL,
	unit TEXT NOT NULL,
	created_at {{timestamp}} NOT NULL,
	updated_at {{timestamp}} NOT NULL,
	UNIQUE (menu_item_id, inventory_id)
);

CREATE INDEX IF NOT EXISTS idx_recipes_inventory ON recipes (inventory_id);

CREATE TABLE IF NOT EXISTS orders (
	id TEXT PRIMARY KEY,
	customer_id TEXT NOT NULL REFERENCES customers(id),
	total {{decimal}} NOT NULL,
	delivery_fee {{decimal}} NOT NULL,
	delivery_address TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	created_at {{timestamp}} NOT NULL,
	updated_at {{timestamp}} NOT NULL,
	deleted_at {{timestamp}}
);

CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders (customer_id, created_at);

CREATE TABLE IF NOT EXISTS order_items (
	id TEXT PRIMARY KEY,
	order_id TEXT NOT NULL REFERENCES orders(id),
	menu_item_id TEXT NOT NULL REFERENCES menu_items(id),
	position INTEGER NOT NULL,
	quantity INTEGER NOT NULL,
	unit_price {{decimal}} NOT NULL,
	subtotal {{decimal}} NOT NULL,
	UNIQUE (order_id, menu_item_id)
);

CREATE TABLE IF NOT EXISTS order_consumption (
	order_id TEXT NOT NULL REFERENCES orders(id),
	inventory_id TEXT NOT NULL REFERENCES inventory_items(id),
	quantity {{decimal}} NOT NULL,
	PRIMARY KEY (order_id, inventory_id)
);

CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	order_id TEXT NOT NULL REFERENCES orders(id),
	reference TEXT NOT NULL UNIQUE,
	amount {{decimal}} NOT NULL,
	currency TEXT NOT NULL,
	method TEXT NOT NULL,
	status TEXT NOT NULL,
	authorization_url TEXT NOT NULL DEFAULT '',
	access_code TEXT NOT NULL DEFAULT '',
	created_at {{timestamp}} NOT NULL,
	updated_at {{timestamp}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_order ON transactions (order_id, created_at);
`,
		Down: `
DROP TABLE IF EXISTS transactions;
DROP TABLE IF EXISTS order_consumption;
DROP TABLE IF EXISTS order_items;
DROP TABLE IF EXISTS orders;
DROP TABLE IF EXISTS recipes;
DROP TABLE IF EXISTS menu_items;
DROP TABLE IF EXISTS inventory_items;
DROP TABLE IF EXISTS customers;
`,
	},
	{
		Version: "1.1.0",
		Up: `
CREATE TABLE IF NOT EXISTS inventory_movements (
	id TEXT PRIMARY KEY,
	inventory_id TEXT NOT NULL REFERENCES inventory_items(id),
	order_id TEXT NOT NULL DEFAULT '',
	reason TEXT NOT NULL,
	delta {{decimal}} NOT NULL,
	balance {{decimal}} NOT NULL,
	created_at {{timestamp}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_inventory_movements_item ON inventory_movements (inventory_id, created_at);
`,
		Down: `DROP TABLE IF EXISTS inventory_movements;`,
	},
}

const schemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
	version TEXT PRIMARY KEY,
	applied_at {{timestamp}} NOT NULL
);`

// Migrate brings the schema up to the newest version in AllMigrations.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.expand(schemaVersionTable)); err != nil {
		return fmt.Errorf("failed to create schema_version: %w", err)
	}

	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range AllMigrations {
		v, err := semver.NewVersion(m.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", m.Version, err)
		}
		if !current.LessThan(v) {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return fmt.Errorf("migration %s: %w", m.Version, err)
		}
		current = v
	}
	return nil
}

func (s *Store) apply(ctx context.Context, m Migration) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = sqlTx.Rollback() }()

	if _, err := sqlTx.ExecContext(ctx, s.dialect.expand(m.Up)); err != nil {
		return err
	}
	insert := s.dialect.rebind("INSERT INTO schema_version (version, applied_at) VALUES (?, ?)")
	if _, err := sqlTx.ExecContext(ctx, insert, m.Version, time.Now().UTC()); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// SchemaVersion reports the highest applied migration, 0.0.0 on a fresh database.
func (s *Store) SchemaVersion(ctx context.Context) (*semver.Version, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}
	defer rows.Close()

	current := semver.MustParse("0.0.0")
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		v, err := semver.NewVersion(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid schema version %q: %w", raw, err)
		}
		if v.GreaterThan(current) {
			current = v
		}
	}
	return current, rows.Err()
}
