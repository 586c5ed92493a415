package webhook

import (
	"context"
	"time"

	"github.com/mattjoyce/hookbox/internal/logstore"
	"github.com/mattjoyce/hookbox/internal/registry"
)

//go:generate mockgen -destination=mocks/mock_ports.go -package=mocks github.com/mattjoyce/hookbox/internal/webhook EndpointResolver,LogAppender

// EndpointResolver finds the active endpoints answering to a name.
type EndpointResolver interface {
	ListActiveByName(ctx context.Context, name string) ([]registry.Endpoint, error)
}

// LogAppender persists one received call.
type LogAppender interface {
	Append(ctx context.Context, e logstore.Entry) (int64, error)
}

// AuthPolicy decides what happens to calls that carry no bearer token.
type AuthPolicy string

const (
	// PolicyPermissive accepts calls without a bearer token.
	PolicyPermissive AuthPolicy = "permissive"
	// PolicyRequireToken rejects calls without a bearer token.
	PolicyRequireToken AuthPolicy = "require_token"
)

// Config holds ingestion settings.
type Config struct {
	AuthPolicy AuthPolicy
	// RateLimitRequests is the number of calls one client address may make
	// per RateLimitWindow. Zero disables rate limiting.
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// SuccessResponse is returned for every stored call.
type SuccessResponse struct {
	Status    string `json:"status"`
	Webhook   string `json:"webhook"`
	Endpoint  string `json:"endpoint"`
	Timestamp string `json:"timestamp"`
	Method    string `json:"method"`
	LogID     int64  `json:"log_id"`
}

// ErrorResponse is the JSON response for ingestion errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Methods lists the HTTP verbs routed to ingestion.
var Methods = []string{"GET", "POST", "PUT", "DELETE", "PATCH"}

// Error messages. They never carry storage detail.
const (
	msgNotFound     = "endpoint not found"
	msgInvalidToken = "invalid token"
	msgMissingToken = "missing token"
	msgInternal     = "internal error"
	msgBadBody      = "failed to read request body"
	msgRateLimited  = "rate limit exceeded"
)
