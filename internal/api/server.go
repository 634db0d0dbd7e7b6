// Package api exposes the recommendation pipeline over HTTP.
//
// Endpoints:
//
//   - POST /v1/recommendations   — run the full matching pipeline
//   - POST /v1/should-recommend  — cheap pre-filter for a raw message
//   - GET  /healthz, /readyz     — probes (see internal/health)
//   - GET  /metrics              — Prometheus scrape endpoint
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kaede-app/signpost/internal/health"
	"github.com/kaede-app/signpost/internal/observe"
	"github.com/kaede-app/signpost/internal/recommend"
)

const (
	readHeaderTimeout = 5 * time.Second

	// requestTimeout bounds one recommendation call end to end. On expiry the
	// coordinator returns whatever it has computed so far.
	requestTimeout = 30 * time.Second
)

// Server is the HTTP front of Signpost.
type Server struct {
	coordinator *recommend.Coordinator
	prefilter   *recommend.Prefilter
	httpSrv     *http.Server
}

// New assembles the HTTP server on addr. checkers feed the /readyz endpoint.
func New(addr string, coordinator *recommend.Coordinator, prefilter *recommend.Prefilter, metrics *observe.Metrics, checkers ...health.Checker) *Server {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	s := &Server{
		coordinator: coordinator,
		prefilter:   prefilter,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/recommendations", s.handleRecommendations)
	mux.HandleFunc("POST /v1/should-recommend", s.handleShouldRecommend)
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(checkers...).Register(mux)

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// ListenAndServe blocks serving HTTP until Shutdown is called or the listener
// fails. A closed-server error is normalised to nil.
func (s *Server) ListenAndServe() error {
	slog.Info("http server listening", "addr", s.httpSrv.Addr)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
