package api

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mattjoyce/hookbox/internal/auth"
	"github.com/mattjoyce/hookbox/internal/logstore"
	"github.com/mattjoyce/hookbox/internal/registry"
)

func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("endpoint_name", func(fl validator.FieldLevel) bool {
		_, err := registry.NormalizeName(fl.Field().String())
		return err == nil
	})
	return v
}

// handleHealthz reports liveness and database reachability.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Database:      "ok",
	}
	status := http.StatusOK
	if err := s.db.Ping(r.Context()); err != nil {
		s.logger.Error("database ping failed", "error", err)
		resp.Status = "degraded"
		resp.Database = "unavailable"
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, resp)
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, buildOpenAPIDoc())
}

// handleCreateEndpoint handles POST /endpoints with a JSON or form body.
func (s *Server) handleCreateEndpoint(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.CurrentAccountID(r.Context())
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	req, err := decodeCreateRequest(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, http.StatusBadRequest, describeValidation(err))
		return
	}

	ep, err := s.endpoints.Create(r.Context(), ownerID, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrDuplicateName), errors.Is(err, registry.ErrInvalidName):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.Error("failed to create endpoint", "owner_id", ownerID, "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to create endpoint")
		}
		return
	}

	s.logger.Info("endpoint created", "endpoint_id", ep.ID, "owner_id", ownerID, "name", ep.Name)
	respondJSON(w, http.StatusCreated, s.endpointResponse(r, *ep))
}

// handleListEndpoints returns the caller's active endpoints, or all of them
// with ?all=true.
func (s *Server) handleListEndpoints(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.CurrentAccountID(r.Context())
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("all"))

	eps, err := s.endpoints.ListForOwner(r.Context(), ownerID)
	if err != nil {
		s.logger.Error("failed to list endpoints", "owner_id", ownerID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list endpoints")
		return
	}

	out := make([]EndpointSummary, 0, len(eps))
	for _, ep := range eps {
		if !ep.IsActive && !includeInactive {
			continue
		}
		out = append(out, s.endpointSummary(r, ep))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetEndpoint(w http.ResponseWriter, r *http.Request) {
	ep, ok := s.ownedEndpoint(w, r)
	if !ok {
		return
	}

	count, err := s.logs.Count(r.Context(), ep.ID)
	if err != nil {
		s.logger.Error("failed to count logs", "endpoint_id", ep.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load endpoint")
		return
	}

	respondJSON(w, http.StatusOK, EndpointDetailResponse{
		EndpointResponse: s.endpointResponse(r, *ep),
		LogCount:         count,
	})
}

// handleListLogs returns recent log entries, newest first.
func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	limit := logstore.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, logstore.MaxLimit)
	}

	ep, ok := s.ownedEndpoint(w, r)
	if !ok {
		return
	}

	entries, err := s.logs.ListRecent(r.Context(), ep.ID, limit)
	if err != nil {
		s.logger.Error("failed to list logs", "endpoint_id", ep.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list logs")
		return
	}

	respondJSON(w, http.StatusOK, LogsResponse{EndpointID: ep.ID, Limit: limit, Logs: entries})
}

func (s *Server) handleToggleEndpoint(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.CurrentAccountID(r.Context())
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id := chi.URLParam(r, "id")

	ep, err := s.endpoints.ToggleActive(r.Context(), id, ownerID)
	if err != nil {
		s.endpointError(w, id, "toggle", err)
		return
	}

	s.logger.Info("endpoint toggled", "endpoint_id", ep.ID, "is_active", ep.IsActive)
	respondJSON(w, http.StatusOK, s.endpointSummary(r, *ep))
}

func (s *Server) handleDeleteEndpoint(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.CurrentAccountID(r.Context())
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id := chi.URLParam(r, "id")

	if err := s.endpoints.Delete(r.Context(), id, ownerID); err != nil {
		s.endpointError(w, id, "delete", err)
		return
	}

	s.logger.Info("endpoint deleted", "endpoint_id", id)
	respondJSON(w, http.StatusOK, DeleteResponse{Status: "deleted", ID: id})
}

// ownedEndpoint loads {id} for the calling account, writing the error
// response itself when that fails.
func (s *Server) ownedEndpoint(w http.ResponseWriter, r *http.Request) (*registry.Endpoint, bool) {
	ownerID, ok := auth.CurrentAccountID(r.Context())
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	id := chi.URLParam(r, "id")

	ep, err := s.endpoints.GetByID(r.Context(), id, ownerID)
	if err != nil {
		s.endpointError(w, id, "get", err)
		return nil, false
	}
	return ep, true
}

// endpointError maps registry errors. Unknown and foreign endpoints look
// the same to the caller.
func (s *Server) endpointError(w http.ResponseWriter, id, op string, err error) {
	if errors.Is(err, registry.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "endpoint not found")
		return
	}
	s.logger.Error("endpoint operation failed", "op", op, "endpoint_id", id, "error", err)
	s.writeError(w, http.StatusInternalServerError, "failed to "+op+" endpoint")
}

func (s *Server) endpointSummary(r *http.Request, ep registry.Endpoint) EndpointSummary {
	return EndpointSummary{
		ID:        ep.ID,
		Name:      ep.Name,
		CreatedAt: ep.CreatedAt,
		URL:       s.ingestURL(r, ep.Name),
		IsActive:  ep.IsActive,
	}
}

func (s *Server) endpointResponse(r *http.Request, ep registry.Endpoint) EndpointResponse {
	return EndpointResponse{EndpointSummary: s.endpointSummary(r, ep), Token: ep.Token}
}

// ingestURL is the public address third parties send calls for name to.
func (s *Server) ingestURL(r *http.Request, name string) string {
	base := s.config.PublicURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return strings.TrimRight(base, "/") + "/webhook/" + url.PathEscape(name)
}

func decodeCreateRequest(r *http.Request) (CreateEndpointRequest, error) {
	var req CreateEndpointRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, errors.New("invalid JSON body")
		}
		return req, nil
	}
	if err := r.ParseForm(); err != nil {
		return req, errors.New("invalid form body")
	}
	req.Name = r.PostFormValue("name")
	return req, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Tag() {
		case "required":
			return "name is required"
		case "endpoint_name":
			return registry.ErrInvalidName.Error()
		}
	}
	return "invalid request"
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
