package api

import (
	"time"

	"github.com/mattjoyce/hookbox/internal/logstore"
)

// CreateEndpointRequest is the body of POST /endpoints, as JSON or form.
type CreateEndpointRequest struct {
	Name string `json:"name" validate:"required,endpoint_name"`
}

// EndpointSummary is one item of GET /endpoints.
type EndpointSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	URL       string    `json:"url"`
	IsActive  bool      `json:"is_active"`
}

// EndpointResponse is returned on create and carries the endpoint token.
type EndpointResponse struct {
	EndpointSummary
	Token string `json:"token"`
}

// EndpointDetailResponse is returned by GET /endpoints/{id}.
type EndpointDetailResponse struct {
	EndpointResponse
	LogCount int `json:"log_count"`
}

// LogsResponse is returned by GET /endpoints/{id}/logs.
type LogsResponse struct {
	EndpointID string           `json:"endpoint_id"`
	Limit      int              `json:"limit"`
	Logs       []logstore.Entry `json:"logs"`
}

// DeleteResponse is returned by POST /endpoints/{id}/delete.
type DeleteResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Database      string `json:"database"`
}
