package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/simonbarrel6/aakora/internal/config"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Server exposes liveness and Prometheus metrics.
type Server struct {
	cfg    config.HTTPConfig
	checks map[string]HealthCheck
	log    *zerolog.Logger
	server *http.Server
}

func NewServer(cfg config.HTTPConfig, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "HTTPServer").Logger()
	return &Server{cfg: cfg, checks: map[string]HealthCheck{}, log: &l}
}

// AddCheck registers a dependency checked by /health.
func (s *Server) AddCheck(name string, check HealthCheck) {
	s.checks[name] = check
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID, Recover(s.log), RequestLog(s.log))
	if s.cfg.RequestTimeout > 0 {
		r.Use(Timeout(s.cfg.RequestTimeout))
	}
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Int("port", s.cfg.Port).Msg("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

type healthResponse struct {
	Status string   `json:"status"`
	Failed []string `json:"failed,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var failed []string
	for name, check := range s.checks {
		if err := check(r.Context()); err != nil {
			s.log.Warn().Err(err).Str("check", name).Msg("health check failed")
			failed = append(failed, name)
		}
	}
	sort.Strings(failed)

	resp := healthResponse{Status: "ok"}
	code := http.StatusOK
	if len(failed) > 0 {
		resp = healthResponse{Status: "unavailable", Failed: failed}
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
