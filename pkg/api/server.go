// Package api serves the simulated device and the sync engine over a REST
// API guarded by an API key.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricsInterval = 30 * time.Second
	shutdownTimeout = 5 * time.Second
)

// NewRouter configures all routes of s
func NewRouter(s *Server) http.Handler {
	metrics := s.metrics

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus metrics endpoint (unprotected for scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(metrics.InstrumentAuthMiddleware(apiKeyMiddleware(s.config.APIKey)))

		// Health check
		r.Get("/health", metrics.InstrumentHandler("GET", "/api/v1/health", s.handleHealth))

		// Handheld side
		r.Get("/databases", metrics.InstrumentHandler("GET", "/api/v1/databases", s.handleListDatabases))
		r.Get("/databases/{db}/records", metrics.InstrumentHandler("GET", "/api/v1/databases/{db}/records", s.handleListRecords))
		r.Post("/databases/{db}/records", metrics.InstrumentHandler("POST", "/api/v1/databases/{db}/records", s.handleCreateRecord))
		r.Get("/databases/{db}/records/{rid}", metrics.InstrumentHandler("GET", "/api/v1/databases/{db}/records/{rid}", s.handleGetRecord))
		r.Put("/databases/{db}/records/{rid}", metrics.InstrumentHandler("PUT", "/api/v1/databases/{db}/records/{rid}", s.handleUpdateRecord))
		r.Delete("/databases/{db}/records/{rid}", metrics.InstrumentHandler("DELETE", "/api/v1/databases/{db}/records/{rid}", s.handleDeleteRecord))
		r.Get("/databases/{db}/statetable", metrics.InstrumentHandler("GET", "/api/v1/databases/{db}/statetable", s.handleStateTable))

		// Desktop side
		r.Post("/sync/{db}", metrics.InstrumentHandler("POST", "/api/v1/sync/{db}", s.handleSync))
		r.Put("/desktop/{db}/{uid}", metrics.InstrumentHandler("PUT", "/api/v1/desktop/{db}/{uid}", s.handlePush))
		r.Delete("/desktop/{db}/{uid}", metrics.InstrumentHandler("DELETE", "/api/v1/desktop/{db}/{uid}", s.handleDesktopDelete))
	})

	return r
}

// StartServer serves s until ctx is cancelled, then shuts down gracefully
func StartServer(ctx context.Context, s *Server) error {
	addr := net.JoinHostPort(s.config.Bind, strconv.Itoa(s.config.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(s),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start background metrics updater
	updaterCtx, stop := context.WithCancel(ctx)
	defer stop()
	go s.startMetricsUpdater(updaterCtx, metricsInterval)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting bbsync REST API server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("shutting down REST API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
