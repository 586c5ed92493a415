// Package auth derives the calling account from request credentials and
// carries it through the request context. It is the only place that maps
// credentials to an account identity.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/mattjoyce/hookbox/internal/account"
)

var (
	ErrMissingHeader = errors.New("missing Authorization header")
	ErrNotBearer     = errors.New("invalid Authorization header format")
	ErrEmptyBearer   = errors.New("missing bearer value")
)

// Authenticator resolves an API key to an account.
type Authenticator interface {
	Authenticate(ctx context.Context, apiKey string) (*account.Account, error)
}

type accountKey struct{}

// WithAccount returns a context carrying accountID.
func WithAccount(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountKey{}, accountID)
}

// CurrentAccountID returns the account attached by Middleware.
func CurrentAccountID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(accountKey{}).(string)
	return id, ok && id != ""
}

// ExtractBearerToken returns the value of an "Authorization: Bearer <v>"
// header. The scheme is matched case-insensitively. A bare "Bearer" is
// ErrEmptyBearer: net/http trims trailing spaces, so "Bearer " arrives that way.
func ExtractBearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", ErrMissingHeader
	}

	scheme, value, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "Bearer") {
		return "", ErrNotBearer
	}

	tok := strings.TrimSpace(value)
	if tok == "" {
		return "", ErrEmptyBearer
	}
	return tok, nil
}

// ConstantTimeEqual compares two secrets without leaking where they differ.
// Empty values never match.
func ConstantTimeEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Middleware rejects requests without a valid account API key and attaches
// the account id to the request context otherwise.
func Middleware(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := ExtractBearerToken(r)
			if err != nil {
				unauthorized(w)
				return
			}
			acct, err := authn.Authenticate(r.Context(), key)
			if err != nil || acct == nil {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), acct.ID)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
}
