package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/iran-tracker-data/internal/filter"
	"github.com/couchcryptid/iran-tracker-data/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	readTimeout  = 10 * time.Second
	writeTimeout = 60 * time.Second
	idleTimeout  = 60 * time.Second
)

// SnapshotProvider returns the latest committed snapshot, or nil.
type SnapshotProvider interface {
	Current() *pipeline.Snapshot
}

// Refresher runs one refresh cycle on demand.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Deps are the collaborators the API serves from.
type Deps struct {
	Ready     sharedobs.ReadinessChecker
	Snapshots SnapshotProvider
	Filters   *filter.Store
	Refresher Refresher
}

// Server exposes health, readiness, metrics and the dataset API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger

	snapshots  SnapshotProvider
	filters    *filter.Store
	refresher  Refresher
	facilities *filter.Engine
	incidents  *filter.Engine
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /api routes.
func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  idleTimeout,
		},
		logger:     logger,
		snapshots:  deps.Snapshots,
		filters:    deps.Filters,
		refresher:  deps.Refresher,
		facilities: filter.NewFacilityEngine(),
		incidents:  filter.NewIncidentEngine(),
	}
	if s.filters == nil {
		s.filters = filter.NewStore()
	}
	s.filters.Subscribe(func(st filter.State) {
		logger.Debug("filter state changed", "tags", []string(st))
	})

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(deps.Ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/incidents", s.withSnapshot(s.handleIncidents))
	mux.HandleFunc("GET /api/facilities", s.withSnapshot(s.handleFacilities))
	mux.HandleFunc("GET /api/systems", s.withSnapshot(s.handleSystems))
	mux.HandleFunc("GET /api/impacts", s.withSnapshot(s.handleImpacts))
	mux.HandleFunc("GET /api/join", s.withSnapshot(s.handleJoin))
	mux.HandleFunc("GET /api/visuals", s.withSnapshot(s.handleVisuals))
	mux.HandleFunc("GET /api/related-products", s.withSnapshot(s.handleRelatedProducts))

	mux.HandleFunc("GET /api/filters", s.handleFilters)
	mux.HandleFunc("POST /api/filters/toggle", s.handleToggle)
	mux.HandleFunc("DELETE /api/filters", s.handleClearFilters)

	mux.HandleFunc("POST /api/refresh", s.handleRefresh)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
