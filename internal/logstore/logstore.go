// Package logstore persists received webhook calls. Entries are append-only;
// they are removed only together with their endpoint.
package logstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattjoyce/hookbox/internal/storage"
)

const (
	// DefaultLimit is the page size used when callers pass limit <= 0.
	DefaultLimit = 50
	// MaxLimit caps a single ListRecent call.
	MaxLimit = 500
)

// Header is one received header line. Repeated names produce repeated pairs.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Entry is one received webhook call.
type Entry struct {
	ID            int64     `json:"id"`
	EndpointID    string    `json:"endpoint_id"`
	Timestamp     time.Time `json:"timestamp"`
	Method        string    `json:"method"`
	Headers       []Header  `json:"headers"`
	Body          string    `json:"body"`
	SourceAddress string    `json:"source_address"`
	ClientAgent   string    `json:"client_agent"`
}

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Store struct {
	db *storage.DB
}

func New(db *storage.DB) *Store {
	return &Store{db: db}
}

// ErrEndpointInactive is returned by Append when the endpoint does not exist
// or is not active at insert time.
var ErrEndpointInactive = errors.New("endpoint not active")

// Append stores e in a single statement and returns the assigned id. The row
// is only written if the endpoint is still active when the statement runs.
// e.ID is ignored. A zero Timestamp is replaced with the current time.
func (s *Store) Append(ctx context.Context, e Entry) (int64, error) {
	if e.EndpointID == "" {
		return 0, fmt.Errorf("endpoint id is empty")
	}
	if e.Method == "" {
		return 0, fmt.Errorf("method is empty")
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	headers := e.Headers
	if headers == nil {
		headers = []Header{}
	}
	headersJSON, err := json.Marshal(headers)
	if err != nil {
		return 0, fmt.Errorf("marshal headers: %w", err)
	}

	body := e.Body
	if s.db.Dialect == storage.DialectPostgres {
		// Postgres text cannot hold NUL.
		body = strings.ReplaceAll(body, "\x00", "\uFFFD")
	}

	var id int64
	err = s.db.QueryRowContext(ctx, s.db.Rebind(`
INSERT INTO webhook_logs(endpoint_id, timestamp, method, headers, body, source_address, client_agent)
SELECT id, ?, ?, ?, ?, ?, ?
FROM endpoints
WHERE id = ? AND is_active
RETURNING id;
`), storage.FormatTime(e.Timestamp), e.Method, string(headersJSON), body, e.SourceAddress, e.ClientAgent, e.EndpointID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrEndpointInactive
	}
	if err != nil {
		return 0, fmt.Errorf("insert webhook log: %w", err)
	}
	return id, nil
}

// ListRecent returns up to limit entries for endpointID, newest first.
// Entries sharing a timestamp are ordered by descending id.
func (s *Store) ListRecent(ctx context.Context, endpointID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`
SELECT id, endpoint_id, timestamp, method, headers, body, source_address, client_agent
FROM webhook_logs
WHERE endpoint_id = ?
ORDER BY timestamp DESC, id DESC
LIMIT ?;
`), endpointID, limit)
	if err != nil {
		return nil, fmt.Errorf("query webhook logs: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			e           Entry
			timestampS  string
			headersJSON string
		)
		if err := rows.Scan(&e.ID, &e.EndpointID, &timestampS, &e.Method, &headersJSON, &e.Body, &e.SourceAddress, &e.ClientAgent); err != nil {
			return nil, fmt.Errorf("scan webhook log: %w", err)
		}
		if e.Timestamp, err = storage.ParseTime(timestampS); err != nil {
			return nil, fmt.Errorf("decode timestamp for log %d: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(headersJSON), &e.Headers); err != nil {
			return nil, fmt.Errorf("decode headers for log %d: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhook logs: %w", err)
	}
	return entries, nil
}

// Count returns the number of stored entries for endpointID.
func (s *Store) Count(ctx context.Context, endpointID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT COUNT(*) FROM webhook_logs WHERE endpoint_id = ?;`), endpointID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count webhook logs: %w", err)
	}
	return n, nil
}

// DeleteAllFor removes every entry of endpointID using ex, which is expected
// to be the transaction deleting the endpoint itself.
func (s *Store) DeleteAllFor(ctx context.Context, ex Execer, endpointID string) (int64, error) {
	res, err := ex.ExecContext(ctx, s.db.Rebind(`DELETE FROM webhook_logs WHERE endpoint_id = ?;`), endpointID)
	if err != nil {
		return 0, fmt.Errorf("delete webhook logs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete webhook logs: %w", err)
	}
	return n, nil
}
