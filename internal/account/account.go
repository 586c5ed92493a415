// Package account stores the accounts that own endpoints and resolves API
// keys to account identities.
package account

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/mattjoyce/hookbox/internal/storage"
	"github.com/mattjoyce/hookbox/internal/token"
)

// KeyPrefix marks account API keys so they are not confused with endpoint tokens.
const KeyPrefix = "hbk_"

const keyLength = 40

var (
	ErrNotFound          = errors.New("account not found")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrInvalidUsername   = errors.New("username is required")
)

// Account is an owner of endpoints. The API key itself is never stored.
type Account struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type Store struct {
	db *storage.DB
}

func NewStore(db *storage.DB) *Store {
	return &Store{db: db}
}

// Create registers username and returns the account with its API key.
// The key is only available here; the store keeps its BLAKE3 hash.
func (s *Store) Create(ctx context.Context, username string) (*Account, string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, "", ErrInvalidUsername
	}

	secret, err := token.GenerateN(keyLength)
	if err != nil {
		return nil, "", fmt.Errorf("generate api key: %w", err)
	}
	apiKey := KeyPrefix + secret

	acct := &Account{
		ID:        uuid.NewString(),
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
INSERT INTO accounts(id, username, key_hash, created_at)
VALUES(?, ?, ?, ?);
`), acct.ID, acct.Username, HashKey(apiKey), storage.FormatTime(acct.CreatedAt))
	if err != nil {
		if storage.IsUniqueViolation(err, "accounts", "username") {
			return nil, "", ErrDuplicateUsername
		}
		return nil, "", fmt.Errorf("insert account: %w", err)
	}
	return acct, apiKey, nil
}

// Authenticate resolves an API key to its account.
func (s *Store) Authenticate(ctx context.Context, apiKey string) (*Account, error) {
	if !strings.HasPrefix(apiKey, KeyPrefix) {
		return nil, ErrNotFound
	}
	return s.scanOne(ctx, `SELECT id, username, created_at FROM accounts WHERE key_hash = ?;`, HashKey(apiKey))
}

// GetByUsername looks an account up by its username.
func (s *Store) GetByUsername(ctx context.Context, username string) (*Account, error) {
	return s.scanOne(ctx, `SELECT id, username, created_at FROM accounts WHERE username = ?;`, strings.TrimSpace(username))
}

func (s *Store) scanOne(ctx context.Context, query string, arg any) (*Account, error) {
	var (
		acct       Account
		createdAtS string
	)
	err := s.db.QueryRowContext(ctx, s.db.Rebind(query), arg).Scan(&acct.ID, &acct.Username, &createdAtS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read account: %w", err)
	}
	if acct.CreatedAt, err = storage.ParseTime(createdAtS); err != nil {
		return nil, fmt.Errorf("read account %s: bad created_at %q: %w", acct.ID, createdAtS, err)
	}
	return &acct, nil
}

// HashKey returns the hex BLAKE3 digest stored for an API key.
func HashKey(apiKey string) string {
	sum := blake3.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}
