// Package storage opens the hookbox database and owns its schema.
//
// Two dialects are supported: SQLite (single node, the default) and Postgres
// (shared by several hookbox instances). Stores write their queries with "?"
// placeholders and pass them through DB.Rebind.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Dialect names a supported SQL backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// TimeLayout is the fixed-width UTC layout used for every stored timestamp.
// Fixed width keeps lexical order equal to chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// DB is a *sql.DB tagged with its dialect.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Options selects and configures a backend.
type Options struct {
	Driver string // "sqlite" (default) or "postgres"
	Path   string // sqlite file path
	DSN    string // postgres connection string
}

// Open opens the backend named by opts.Driver and bootstraps the schema.
func Open(ctx context.Context, opts Options) (*DB, error) {
	db, err := Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := Bootstrap(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Connect opens and pings the backend without touching the schema.
func Connect(ctx context.Context, opts Options) (*DB, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(opts.Driver))) {
	case "", DialectSQLite:
		return connectSQLite(ctx, opts.Path)
	case DialectPostgres:
		return connectPostgres(ctx, opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported state driver %q", opts.Driver)
	}
}

// Rebind rewrites "?" placeholders into the dialect's native form.
func (d *DB) Rebind(query string) string {
	if d.Dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Ping checks the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return d.PingContext(pctx)
}

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a TimeLayout timestamp. RFC3339 input is accepted too.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err == nil {
		return t, nil
	}
	t, err2 := time.Parse(time.RFC3339Nano, s)
	if err2 != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
