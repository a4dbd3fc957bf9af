package sqlstore

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// Dialect captures what differs between the SQLite and Postgres backends.
type Dialect struct {
	Name   string
	Driver string
	// forUpdate is appended to row-locking selects.
	forUpdate string
	// positional placeholders ($1, $2...) instead of ?
	numbered bool
	types    map[string]string
}

var (
	SQLite = Dialect{
		Name:   "sqlite",
		Driver: SQLiteDriverName,
		types: map[string]string{
			"{{decimal}}":   "TEXT",
			"{{timestamp}}": "TIMESTAMP",
			"{{bool}}":      "BOOLEAN",
		},
	}
	Postgres = Dialect{
		Name:      "postgres",
		Driver:    "postgres",
		forUpdate: " FOR UPDATE",
		numbered:  true,
		types: map[string]string{
			"{{decimal}}":   "NUMERIC",
			"{{timestamp}}": "TIMESTAMPTZ",
			"{{bool}}":      "BOOLEAN",
		},
	}
)

func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql":
		return Postgres, nil
	}
	return Dialect{}, fmt.Errorf("sqlstore: unknown dialect %q", name)
}

// rebind rewrites ? placeholders for dialects that number them.
func (d Dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// expand substitutes column types into schema templates.
func (d Dialect) expand(ddl string) string {
	for k, v := range d.types {
		ddl = strings.ReplaceAll(ddl, k, v)
	}
	return ddl
}

func (d Dialect) lock(query string) string {
	return query + d.forUpdate
}

// isUniqueViolation recognizes duplicate-key failures from either backend.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	// modernc and mattn both report "UNIQUE constraint failed: ..."
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY constraint failed")
}
