// Package server wires the ledgerchat relay together: router, middleware
// stack, and HTTP server lifecycle.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ledgerline/ledgerchat/config"
	"github.com/ledgerline/ledgerchat/errors"
	"github.com/ledgerline/ledgerchat/server/handlers"
	"github.com/ledgerline/ledgerchat/server/metrics"
	"github.com/ledgerline/ledgerchat/server/middleware"
	"github.com/ledgerline/ledgerchat/server/prompt"
	"github.com/ledgerline/ledgerchat/server/relay"
)

// Router handles HTTP routing for the relay.
type Router struct {
	router chi.Router
}

// NewRouter creates the router with the full middleware stack. The order
// matters: CORS runs before routing so pre-flights are answered and the
// allow-list headers are present on every response, including 405s.
func NewRouter(cfg *config.Config, chat http.Handler, m *metrics.Metrics, logger *zap.Logger) *Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	r.Use(middleware.PrometheusMetrics(m))

	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		errors.Write(w, errors.NewMethodError())
	})

	r.Post("/v1/chat", chat.ServeHTTP)
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	return &Router{router: r}
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

// Server is the relay's HTTP server.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	logger          *zap.Logger
}

// NewServer builds the fully wired relay from a validated configuration:
// metrics registry, upstream client, token counter, chat handler, router.
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	m := metrics.NewMetrics()
	client := relay.NewClient(cfg.Upstream, logger)
	counter := prompt.NewTokenCounter(cfg.Upstream.Model)
	chat := handlers.NewChatHandler(client, counter, m, logger)
	router := NewRouter(cfg, chat, m, logger)

	if !client.Configured() {
		logger.Warn("No upstream API key configured; chat endpoint will answer 503",
			zap.String("env", config.EnvAPIKey),
		)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:        router,
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
			MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		},
		shutdownTimeout: cfg.Server.ShutdownTimeout,
		logger:          logger,
	}
}

// Start runs the server and blocks until the context is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("Server started", zap.String("address", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		s.logger.Info("Shutting down server")
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error during server shutdown: %w", err)
		}
		return nil

	case err := <-errChan:
		return err
	}
}
