// Package registry owns the set of webhook endpoints: their names, tokens,
// owners and active flags.
//
// Uniqueness is enforced by the database, never by in-process locks, so any
// number of hookbox instances may share one Postgres database.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/hookbox/internal/logstore"
	"github.com/mattjoyce/hookbox/internal/storage"
	"github.com/mattjoyce/hookbox/internal/token"
)

// MaxTokenAttempts bounds token regeneration when the store reports a collision.
const MaxTokenAttempts = 5

// MaxNameLength is the longest accepted endpoint name.
const MaxNameLength = 64

var (
	ErrNotFound       = errors.New("endpoint not found")
	ErrDuplicateName  = errors.New("endpoint name already exists")
	ErrInvalidName    = errors.New("invalid endpoint name")
	ErrTokenExhausted = errors.New("could not allocate a unique endpoint token")
)

// Names are used as a single URL path segment.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Endpoint is a named, tokened inbound webhook target owned by one account.
type Endpoint struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Token     string    `json:"token"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenSource produces endpoint tokens.
type TokenSource func() (string, error)

type Option func(*Registry)

// WithTokenSource replaces the token generator.
func WithTokenSource(src TokenSource) Option {
	return func(r *Registry) { r.newToken = src }
}

type Registry struct {
	db       *storage.DB
	logs     *logstore.Store
	newToken TokenSource
}

// New returns a Registry over db. logs is used to cascade endpoint deletion.
func New(db *storage.DB, logs *logstore.Store, opts ...Option) *Registry {
	r := &Registry{db: db, logs: logs, newToken: token.Generate}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NormalizeName trims name and checks it can be used as a routing key.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > MaxNameLength || !namePattern.MatchString(name) {
		return "", ErrInvalidName
	}
	return name, nil
}

// Create registers a new active endpoint called name for ownerID.
func (r *Registry) Create(ctx context.Context, ownerID, name string) (*Endpoint, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	if ownerID == "" {
		return nil, fmt.Errorf("owner id is empty")
	}

	var exists int
	err = r.db.QueryRowContext(ctx, r.db.Rebind(`SELECT COUNT(*) FROM endpoints WHERE owner_id = ? AND name = ?;`), ownerID, name).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check endpoint name: %w", err)
	}
	if exists > 0 {
		return nil, ErrDuplicateName
	}

	ep := &Endpoint{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      name,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}

	for attempt := 1; attempt <= MaxTokenAttempts; attempt++ {
		tok, err := r.newToken()
		if err != nil {
			return nil, fmt.Errorf("generate token: %w", err)
		}
		ep.Token = tok

		_, err = r.db.ExecContext(ctx, r.db.Rebind(`
INSERT INTO endpoints(id, owner_id, name, token, is_active, created_at)
VALUES(?, ?, ?, ?, ?, ?);
`), ep.ID, ep.OwnerID, ep.Name, ep.Token, ep.IsActive, storage.FormatTime(ep.CreatedAt))
		switch {
		case err == nil:
			return ep, nil
		case storage.IsUniqueViolation(err, "endpoints", "token"):
			continue
		case storage.IsUniqueViolation(err, "endpoints", "name"):
			// Lost a race with a concurrent create.
			return nil, ErrDuplicateName
		default:
			return nil, fmt.Errorf("insert endpoint: %w", err)
		}
	}
	return nil, ErrTokenExhausted
}

const selectEndpoint = `SELECT id, owner_id, name, token, is_active, created_at FROM endpoints`

// GetByID returns the endpoint id if it belongs to ownerID.
func (r *Registry) GetByID(ctx context.Context, id, ownerID string) (*Endpoint, error) {
	row := r.db.QueryRowContext(ctx, r.db.Rebind(selectEndpoint+` WHERE id = ? AND owner_id = ?;`), id, ownerID)
	return scanEndpoint(row)
}

// GetByNameActive returns the active endpoint called name regardless of owner.
// When several owners use the name, the earliest created one wins.
func (r *Registry) GetByNameActive(ctx context.Context, name string) (*Endpoint, error) {
	row := r.db.QueryRowContext(ctx, r.db.Rebind(selectEndpoint+`
WHERE name = ? AND is_active = ?
ORDER BY created_at ASC, id ASC
LIMIT 1;`), name, true)
	return scanEndpoint(row)
}

// ListActiveByName returns every active endpoint called name, oldest first.
func (r *Registry) ListActiveByName(ctx context.Context, name string) ([]Endpoint, error) {
	return r.list(ctx, selectEndpoint+`
WHERE name = ? AND is_active = ?
ORDER BY created_at ASC, id ASC;`, name, true)
}

// ListForOwner returns all endpoints of ownerID, active or not, oldest first.
func (r *Registry) ListForOwner(ctx context.Context, ownerID string) ([]Endpoint, error) {
	return r.list(ctx, selectEndpoint+`
WHERE owner_id = ?
ORDER BY created_at ASC, id ASC;`, ownerID)
}

// ToggleActive flips the active flag of an owned endpoint and returns the
// updated record.
func (r *Registry) ToggleActive(ctx context.Context, id, ownerID string) (*Endpoint, error) {
	row := r.db.QueryRowContext(ctx, r.db.Rebind(`
UPDATE endpoints SET is_active = NOT is_active
WHERE id = ? AND owner_id = ?
RETURNING id, owner_id, name, token, is_active, created_at;`), id, ownerID)
	return scanEndpoint(row)
}

// Delete removes an owned endpoint together with all of its log entries.
func (r *Registry) Delete(ctx context.Context, id, ownerID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var found string
	err = tx.QueryRowContext(ctx, r.db.Rebind(`SELECT id FROM endpoints WHERE id = ? AND owner_id = ?;`), id, ownerID).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup endpoint: %w", err)
	}

	if _, err := r.logs.DeleteAllFor(ctx, tx, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, r.db.Rebind(`DELETE FROM endpoints WHERE id = ? AND owner_id = ?;`), id, ownerID); err != nil {
		return fmt.Errorf("delete endpoint: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *Registry) list(ctx context.Context, query string, args ...any) ([]Endpoint, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query endpoints: %w", err)
	}
	defer rows.Close()

	out := make([]Endpoint, 0)
	for rows.Next() {
		ep, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate endpoints: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEndpoint(row rowScanner) (*Endpoint, error) {
	var (
		ep         Endpoint
		createdAtS string
	)
	err := row.Scan(&ep.ID, &ep.OwnerID, &ep.Name, &ep.Token, &ep.IsActive, &createdAtS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan endpoint: %w", err)
	}
	t, err := storage.ParseTime(createdAtS)
	if err != nil {
		return nil, err
	}
	ep.CreatedAt = t
	return &ep, nil
}
