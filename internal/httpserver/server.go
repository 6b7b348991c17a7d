package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"hotel-receptionist/internal/backend"
	"hotel-receptionist/internal/hotel"
	"hotel-receptionist/internal/license"
	"hotel-receptionist/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxConfigBytes = 1 << 20

// Admin is the administrative surface exposed under /api.
type Admin interface {
	Config(ctx context.Context) (hotel.Config, error)
	UpdateConfig(ctx context.Context, cfg hotel.Config) (hotel.Config, error)
	Clients(ctx context.Context) ([]hotel.Client, error)
	Bookings(ctx context.Context) ([]hotel.Booking, error)
	Logs(ctx context.Context) ([]hotel.MessageLog, error)
	License(ctx context.Context) (hotel.License, error)
}

// Handlers groups optional HTTP handlers to mount.
type Handlers struct {
	// Voice registers the telephony webhooks.
	Voice interface{ Register(mux *http.ServeMux) }
	Live  http.Handler
}

// Server wraps an http.Server with predefined routes.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	metrics    *metrics.Metrics
	admin      Admin
	basePath   string
}

// New creates a new HTTP server listening on addr with health, metrics,
// admin and call endpoints.
func New(addr string, logger *slog.Logger, metricRegistry *metrics.Metrics, admin Admin, handlers Handlers, basePath string) *Server {
	server := &Server{
		logger:   logger.With("component", "http"),
		metrics:  metricRegistry,
		admin:    admin,
		basePath: normaliseBasePath(basePath),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler)
	mux.Handle("/metrics", promhttp.Handler())
	if admin != nil {
		mux.HandleFunc("/api/config", server.handleConfig)
		mux.HandleFunc("/api/clients", readOnly(server, func(ctx context.Context) (any, error) { return admin.Clients(ctx) }))
		mux.HandleFunc("/api/bookings", readOnly(server, func(ctx context.Context) (any, error) { return admin.Bookings(ctx) }))
		mux.HandleFunc("/api/logs", readOnly(server, func(ctx context.Context) (any, error) { return admin.Logs(ctx) }))
		mux.HandleFunc("/api/license", readOnly(server, func(ctx context.Context) (any, error) { return admin.License(ctx) }))
	}
	if handlers.Voice != nil {
		handlers.Voice.Register(mux)
	}
	if handlers.Live != nil {
		mux.Handle("/live", handlers.Live)
	}

	handler := mountWithBasePath(server.basePath, mux)

	server.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if server.basePath != "" {
		server.logger.Info("http server configured with base path", "base_path", server.basePath)
	}

	return server
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for incoming HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}

func readOnly(s *Server, load func(ctx context.Context) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		data, err := load(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, data)
	}
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cfg, err := s.admin.Config(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, cfg)
	case http.MethodPut, http.MethodPost:
		var cfg hotel.Config
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxConfigBytes))
		if err := dec.Decode(&cfg); err != nil {
			http.Error(w, "invalid config payload", http.StatusBadRequest)
			return
		}
		updated, err := s.admin.UpdateConfig(r.Context(), cfg)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, updated)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, license.ErrLicenseInvalid), errors.Is(err, license.ErrNoLicense):
		status = http.StatusForbidden
	case errors.Is(err, backend.ErrInvalidConfig):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("api request failed", "path", r.URL.Path, "error", err)
		if s.metrics != nil {
			s.metrics.Errors.WithLabelValues("http").Inc()
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "failed to encode json", http.StatusInternalServerError)
	}
}

func mountWithBasePath(basePath string, handler http.Handler) http.Handler {
	if basePath == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, basePath) {
			http.NotFound(w, r)
			return
		}
		if len(r.URL.Path) > len(basePath) && r.URL.Path[len(basePath)] != '/' {
			http.NotFound(w, r)
			return
		}
		trimmed := strings.TrimPrefix(r.URL.Path, basePath)
		if trimmed == "" {
			trimmed = "/"
		}
		r.URL.Path = trimmed
		if r.URL.RawPath != "" {
			rawTrimmed := strings.TrimPrefix(r.URL.RawPath, basePath)
			if rawTrimmed == "" {
				rawTrimmed = "/"
			}
			r.URL.RawPath = rawTrimmed
		}
		handler.ServeHTTP(w, r)
	})
}

func normaliseBasePath(base string) string {
	base = strings.TrimSpace(base)
	if base == "" || base == "/" {
		return ""
	}
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	return strings.TrimSuffix(base, "/")
}
