package storage

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint failure on
// table.column. For composite constraints, column is the last column.
func IsUniqueViolation(err error, table, column string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == table+"_"+column+"_key"
	}

	// modernc.org/sqlite: "UNIQUE constraint failed: endpoints.owner_id, endpoints.name (2067)"
	msg := err.Error()
	idx := strings.Index(msg, "UNIQUE constraint failed:")
	if idx < 0 {
		return false
	}
	cols := strings.TrimSpace(msg[idx+len("UNIQUE constraint failed:"):])
	if p := strings.IndexByte(cols, '('); p >= 0 {
		cols = cols[:p]
	}
	parts := strings.Split(cols, ",")
	last := strings.TrimSpace(parts[len(parts)-1])
	return last == table+"."+column
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
