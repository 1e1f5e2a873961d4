// Package server exposes the market proxy, sequence tools and deployment
// API over HTTP, plus a WebSocket feed of deployment progress.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/matchbox/internal/domain"
	"github.com/alanyoungcy/matchbox/internal/server/handler"
	"github.com/alanyoungcy/matchbox/internal/server/middleware"
	"github.com/alanyoungcy/matchbox/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port            int
	CORSOrigins     []string
	APIKey          string // if empty, authentication is disabled
	RateLimit       int    // requests per window per client IP; 0 disables
	RateLimitWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Deploy and Vaults are nil when no chain is configured; their routes are
// then left out.
type Handlers struct {
	Health   *handler.HealthHandler
	Proxy    *handler.ProxyHandler
	Markets  *handler.MarketHandler
	Sequence *handler.SequenceHandler
	Deploy   *handler.DeployHandler
	Vaults   *handler.VaultHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on a ServeMux and
// the middleware chain applied. limiter may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           NewHandler(cfg, handlers, wsHub, limiter, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger}
}

// NewHandler builds the routed, middleware-wrapped handler.
func NewHandler(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/polymarket", handlers.Proxy.Fetch)

	mux.HandleFunc("GET /api/markets/resolve", handlers.Markets.Resolve)
	mux.HandleFunc("GET /api/markets/search", handlers.Markets.Search)
	mux.HandleFunc("GET /api/markets/trending", handlers.Markets.Trending)
	mux.HandleFunc("GET /api/markets/condition/{id}", handlers.Markets.GetByCondition)

	mux.HandleFunc("POST /api/sequence/validate", handlers.Sequence.Validate)

	if handlers.Deploy != nil {
		mux.HandleFunc("POST /api/deployments", handlers.Deploy.Create)
		mux.HandleFunc("GET /api/deployments", handlers.Deploy.List)
		mux.HandleFunc("GET /api/deployments/{id}", handlers.Deploy.Get)
		mux.HandleFunc("GET /api/deployments/{id}/events", handlers.Deploy.Events)
		mux.HandleFunc("POST /api/deployments/{id}/reset", handlers.Deploy.Reset)
	}
	if handlers.Vaults != nil {
		mux.HandleFunc("GET /api/vaults/{address}", handlers.Vaults.Status)
		mux.HandleFunc("GET /api/owners/{address}/vaults", handlers.Vaults.ForOwner)
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Outermost first: CORS, Logging, RateLimit, Auth.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateLimitWindow, logger)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
