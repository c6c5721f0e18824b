package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/pathcanary/rollback-go/internal/api/ws"
	"github.com/pathcanary/rollback-go/internal/auth"
	"github.com/pathcanary/rollback-go/internal/config"
	"github.com/pathcanary/rollback-go/internal/domain"
	"github.com/pathcanary/rollback-go/internal/server/middleware"
	"github.com/pathcanary/rollback-go/internal/toggle"
	"github.com/pathcanary/rollback-go/pkg/rollback"
)

const (
	// ServiceName identifies this provider in health responses.
	ServiceName = "pathcanary-rollback-provider"
	// Version is the kit release reported by /health.
	Version = "1.0.0"
)

// DataStore aggregates the repositories the server wires into handlers.
// Implemented by the memory and postgres stores.
type DataStore interface {
	Tenants() domain.TenantRepository
	Flags() domain.FlagRepository
	Audit() domain.AuditRepository
}

// Server is the HTTP server that wires all provider routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	cfg        *config.Config
}

// New creates a Server with all routes wired. broker may be nil when no
// live event surface is configured; the /ws/flags route is then omitted.
func New(ctx context.Context, cfg *config.Config, store DataStore, broker domain.EventBroker, authSvc *auth.Service, toggles *toggle.Service) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RealIP)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.HeaderRequestID},
		ExposedHeaders: []string{middleware.HeaderRequestID},
		MaxAge:         300,
	}).Handler)
	router.Use(middleware.RequestID())

	s := &Server{
		router: router,
		cfg:    cfg,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	webhook := newWebhookHandler(toggles, cfg.Webhook.Budget)

	// Authenticated surface: the webhook itself plus the introspection API
	// and the live event stream.
	router.Group(func(r chi.Router) {
		r.Use(middleware.Auth(authSvc, store.Audit()))
		r.Use(middleware.RequireTenant())
		r.Use(middleware.RateLimit(ctx, cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))

		r.Post(rollback.WebhookPath, webhook.ServeHTTP)

		apiConfig := huma.DefaultConfig("PathCanary Rollback Provider API", Version)
		api := humachi.New(r, apiConfig)
		registerAPIRoutes(api, store)

		if broker != nil {
			hub := ws.NewHub(broker)
			registerWSRoutes(r, hub)
		}
	})

	// Health check (unauthenticated).
	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		body := fmt.Sprintf(`{"status":"healthy","service":"%s","version":"%s","timestamp":"%s"}`,
			ServiceName, Version, time.Now().UTC().Format(time.RFC3339))
		_, _ = w.Write([]byte(body))
	})

	return s
}

// Handler exposes the composed router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
