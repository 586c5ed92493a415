package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/mattjoyce/hookbox/internal/auth"
	"github.com/mattjoyce/hookbox/internal/logstore"
	"github.com/mattjoyce/hookbox/internal/registry"
	"github.com/mattjoyce/hookbox/internal/webhook"
)

// EndpointService defines the registry operations used by the management API.
type EndpointService interface {
	Create(ctx context.Context, ownerID, name string) (*registry.Endpoint, error)
	GetByID(ctx context.Context, id, ownerID string) (*registry.Endpoint, error)
	ListForOwner(ctx context.Context, ownerID string) ([]registry.Endpoint, error)
	ToggleActive(ctx context.Context, id, ownerID string) (*registry.Endpoint, error)
	Delete(ctx context.Context, id, ownerID string) error
}

// LogReader defines the log store queries used by the management API.
type LogReader interface {
	ListRecent(ctx context.Context, endpointID string, limit int) ([]logstore.Entry, error)
	Count(ctx context.Context, endpointID string) (int, error)
}

// Pinger reports database reachability for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds API server configuration
type Config struct {
	Listen string
	// PublicURL is the base of ingestion URLs in responses. Empty means the
	// scheme and host of the request.
	PublicURL    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server serves ingestion and the management API on one listener.
type Server struct {
	config    Config
	endpoints EndpointService
	logs      LogReader
	db        Pinger
	authn     auth.Authenticator
	ingest    http.Handler
	logger    *slog.Logger
	validate  *validator.Validate
	server    *http.Server
	startedAt time.Time
}

// New creates a new API server instance. ingest is mounted at /webhook.
func New(config Config, endpoints EndpointService, logs LogReader, db Pinger, authn auth.Authenticator, ingest http.Handler, logger *slog.Logger) *Server {
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 10 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 30 * time.Second
	}
	return &Server{
		config:    config,
		endpoints: endpoints,
		logs:      logs,
		db:        db,
		authn:     authn,
		ingest:    ingest,
		logger:    logger,
		validate:  newRequestValidator(),
		startedAt: time.Now(),
	}
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start starts the HTTP server (blocking)
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.setupRoutes(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(webhook.PeerAddress)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated.
	r.Get("/healthz", s.handleHealthz)
	r.Get("/openapi.json", s.handleOpenAPI)
	if s.ingest != nil {
		r.Mount("/webhook", s.ingest)
	}

	// Owner-authenticated management API.
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.authn))
		r.Post("/endpoints", s.handleCreateEndpoint)
		r.Get("/endpoints", s.handleListEndpoints)
		r.Get("/endpoints/{id}", s.handleGetEndpoint)
		r.Get("/endpoints/{id}/logs", s.handleListLogs)
		r.Post("/endpoints/{id}/toggle", s.handleToggleEndpoint)
		r.Post("/endpoints/{id}/delete", s.handleDeleteEndpoint)
	})

	return r
}

// loggingMiddleware logs HTTP requests. Bodies are never logged.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}
