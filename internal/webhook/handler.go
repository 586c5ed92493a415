package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/hookbox/internal/auth"
	"github.com/mattjoyce/hookbox/internal/logstore"
	"github.com/mattjoyce/hookbox/internal/registry"
)

// Handler receives calls to /{name}, authenticates them against the
// endpoint token and records them in the log store.
type Handler struct {
	config    Config
	endpoints EndpointResolver
	logs      LogAppender
	logger    *slog.Logger
	limiter   *ipLimiter
	now       func() time.Time
}

// New creates an ingestion handler.
func New(config Config, endpoints EndpointResolver, logs LogAppender, logger *slog.Logger) *Handler {
	if config.AuthPolicy == "" {
		config.AuthPolicy = PolicyPermissive
	}
	h := &Handler{
		config:    config,
		endpoints: endpoints,
		logs:      logs,
		logger:    logger,
		now:       time.Now,
	}
	if config.RateLimitRequests > 0 {
		window := config.RateLimitWindow
		if window <= 0 {
			window = DefaultRateLimitWindow
		}
		h.limiter = newIPLimiter(config.RateLimitRequests, window)
	}
	return h
}

// Routes returns a router serving every ingestion method on /{name}.
// Mount it under /webhook. It expects PeerAddress followed by
// middleware.RealIP upstream.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	if h.limiter != nil {
		r.Use(h.limiter.middleware)
	}
	for _, m := range Methods {
		r.MethodFunc(m, "/{name}", h.handleWebhook)
	}
	return r
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")
	logger := h.logger.With("endpoint", name, "request_id", middleware.GetReqID(ctx))

	candidates, err := h.endpoints.ListActiveByName(ctx, name)
	if err != nil {
		logger.Error("endpoint lookup failed", "error", err)
		h.respondError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	if len(candidates) == 0 {
		h.respondError(w, http.StatusNotFound, msgNotFound)
		return
	}

	ep, status, msg := h.authenticate(r, candidates)
	if ep == nil {
		logger.Warn("webhook rejected", "status", status, "reason", msg)
		h.respondError(w, status, msg)
		return
	}

	capturedAt := h.now().UTC()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Warn("failed to read webhook body", "error", err)
		h.respondError(w, http.StatusBadRequest, msgBadBody)
		return
	}

	entry := logstore.Entry{
		EndpointID:    ep.ID,
		Timestamp:     capturedAt,
		Method:        r.Method,
		Headers:       captureHeaders(r),
		Body:          bodyText(body),
		SourceAddress: clientAddress(r),
		ClientAgent:   r.UserAgent(),
	}

	logID, err := h.logs.Append(ctx, entry)
	if errors.Is(err, logstore.ErrEndpointInactive) {
		// Deactivated or deleted after the lookup.
		logger.Info("endpoint went inactive before store", "endpoint_id", ep.ID)
		h.respondError(w, http.StatusNotFound, msgNotFound)
		return
	}
	if err != nil {
		logger.Error("failed to store webhook", "endpoint_id", ep.ID, "error", err)
		h.respondError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	logger.Info("webhook stored", "endpoint_id", ep.ID, "method", r.Method, "log_id", logID, "bytes", len(body))

	h.respondJSON(w, http.StatusOK, SuccessResponse{
		Status:    "success",
		Webhook:   ep.Name,
		Endpoint:  ep.Name,
		Timestamp: capturedAt.Format(time.RFC3339Nano),
		Method:    r.Method,
		LogID:     logID,
	})
}

// authenticate picks the candidate the call is addressed to. A presented
// bearer value is compared against every candidate token so the time taken
// does not depend on which one matched.
func (h *Handler) authenticate(r *http.Request, candidates []registry.Endpoint) (*registry.Endpoint, int, string) {
	presented, err := auth.ExtractBearerToken(r)
	switch {
	case err == nil, errors.Is(err, auth.ErrEmptyBearer):
		var match *registry.Endpoint
		for i := range candidates {
			if auth.ConstantTimeEqual(presented, candidates[i].Token) && match == nil {
				match = &candidates[i]
			}
		}
		if match == nil {
			return nil, http.StatusUnauthorized, msgInvalidToken
		}
		return match, 0, ""
	case h.config.AuthPolicy == PolicyRequireToken:
		return nil, http.StatusUnauthorized, msgMissingToken
	default:
		return &candidates[0], 0, ""
	}
}

// respondJSON sends a JSON response.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Debug("failed to write response", "error", err)
	}
}

// respondError sends a JSON error response.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, ErrorResponse{Error: message})
}
