package api

import (
	"context"
	"net/http"
	"time"

	"tradecoach/internal/adapters/config"
	"tradecoach/internal/api/health"
	"tradecoach/internal/metrics"
	"tradecoach/pkg/errors"
	"tradecoach/pkg/logger"
)

// ServerConfig contains configuration for HTTP server
type ServerConfig struct {
	HTTP        config.HTTPConfig
	ServiceName string
	Version     string
}

// Server wraps HTTP server with lifecycle management
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewServer creates and configures HTTP server with all routes.
// demo may be nil, in which case the demo endpoints are not registered.
func NewServer(cfg ServerConfig, healthHandler *health.Handler, monitor RiskStateMonitor, demo DemoControls, log *logger.Logger) *Server {
	log = log.With("component", "http_server")

	mux := http.NewServeMux()

	// Health check endpoints (Kubernetes probes)
	mux.HandleFunc("GET /health", healthHandler.HandleHealth)
	mux.HandleFunc("GET /health/ready", healthHandler.HandleReadiness)
	mux.HandleFunc("GET /health/live", healthHandler.HandleLiveness)

	// Prometheus metrics endpoint
	mux.Handle("GET /metrics", metrics.Handler())

	rs := newRiskStateHandler(monitor, log)
	mux.HandleFunc("GET /api/v1/risk-state", rs.get)
	mux.HandleFunc("POST /api/v1/risk-state/refresh", rs.refresh)
	mux.HandleFunc("GET /ws/risk-state", newStreamHandler(monitor, log).ServeHTTP)

	if demo != nil {
		newDemoHandler(demo, log).register(mux)
		log.Info("✓ Demo controls registered at /api/v1/demo")
	}

	// Root endpoint (service info)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"service": cfg.ServiceName,
			"version": cfg.Version,
			"status":  "running",
		})
	})

	addr := cfg.HTTP.Addr
	if addr == "" {
		addr = ":8080"
	}

	log.Infof("HTTP server configured on %s", addr)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      withRecovery(mux, log),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		log:        log,
	}
}

// Handler exposes the routed handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests
// Blocks until server is stopped or encounters an error
func (s *Server) Start() error {
	s.log.Infof("Starting HTTP server on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server failed")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
// Waits for active connections to complete within timeout
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Stopping HTTP server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "http server shutdown failed")
	}

	s.log.Info("✓ HTTP server stopped")
	return nil
}

func withRecovery(next http.Handler, log *logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Errorw("Handler panicked", "path", r.URL.Path, "panic", rec)
				writeError(w, errors.Newf("internal error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
