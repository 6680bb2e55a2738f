// Package http exposes the relay's operational surface: health, readiness,
// metrics, manual cycle triggers, and thin JSON CRUD over the stores. Route
// handlers contain no pipeline logic; they delegate and render.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/weather-alert-relay/internal/domain"
	"github.com/couchcryptid/weather-alert-relay/internal/pipeline"
	"github.com/couchcryptid/weather-alert-relay/internal/store"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// CycleRunner runs one pipeline cycle of each kind on demand.
type CycleRunner interface {
	RunAlertCycle(ctx context.Context) (pipeline.Summary, error)
	RunConditionsCycle(ctx context.Context) (pipeline.Summary, error)
	RunForecastCycle(ctx context.Context) (pipeline.Summary, error)
}

// ScheduleApplier re-applies the persisted schedule after settings change.
type ScheduleApplier interface {
	Apply(ctx context.Context) error
}

// LedgerAdmin clears dedup state when a location goes away.
type LedgerAdmin interface {
	ClearForLocation(ctx context.Context, locationID string) error
}

// Stores bundles the collections the admin surface exposes.
type Stores struct {
	Settings   *store.SettingsStore
	Locations  *store.LocationStore
	AlertTypes *store.AlertTypeStore
	States     *store.ConditionStateStore
	Logs       *store.LogStore
}

// Server exposes the relay's HTTP endpoints.
type Server struct {
	httpServer *http.Server
	runner     CycleRunner
	schedule   ScheduleApplier
	ledger     LedgerAdmin
	stores     Stores
	logger     *slog.Logger
}

// NewServer wires all routes.
func NewServer(addr string, ready ReadinessChecker, runner CycleRunner, schedule ScheduleApplier, ledger LedgerAdmin, stores Stores, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 120 * time.Second, // manual cycles run synchronously
			IdleTimeout:  60 * time.Second,
		},
		runner:   runner,
		schedule: schedule,
		ledger:   ledger,
		stores:   stores,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/run/{kind}", s.handleRun)

	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PATCH /api/settings", s.handlePatchSettings)

	mux.HandleFunc("GET /api/locations", s.handleListLocations)
	mux.HandleFunc("POST /api/locations", s.handleAddLocation)
	mux.HandleFunc("PUT /api/locations/{id}", s.handleUpdateLocation)
	mux.HandleFunc("DELETE /api/locations/{id}", s.handleDeleteLocation)

	mux.HandleFunc("GET /api/alert-types", s.handleListAlertTypes)
	mux.HandleFunc("POST /api/alert-types", s.handleAddAlertType)
	mux.HandleFunc("PUT /api/alert-types/{id}", s.handleUpdateAlertType)
	mux.HandleFunc("DELETE /api/alert-types/{id}", s.handleDeleteAlertType)

	mux.HandleFunc("GET /api/logs", s.handleListLogs)

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

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// handleRun is the manual trigger: it runs the named cycle synchronously and
// returns its summary, or 409 when that cycle is already in flight.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var run func(context.Context) (pipeline.Summary, error)
	switch r.PathValue("kind") {
	case pipeline.KindAlerts:
		run = s.runner.RunAlertCycle
	case pipeline.KindConditions:
		run = s.runner.RunConditionsCycle
	case pipeline.KindForecast:
		run = s.runner.RunForecastCycle
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown cycle kind"))
		return
	}

	summary, err := run(r.Context())
	switch {
	case errors.Is(err, pipeline.ErrCycleInFlight):
		writeError(w, http.StatusConflict, err)
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   err.Error(),
			"summary": summary,
		})
	default:
		writeJSON(w, http.StatusOK, summary)
	}
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.stores.Settings.Get(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handlePatchSettings(w http.ResponseWriter, r *http.Request) {
	var patch store.SettingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	merged, err := s.stores.Settings.Update(r.Context(), patch)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	// The log sink reads its bound on every append; push the merged value so
	// a retention change takes effect without a restart.
	s.stores.Logs.SetRetention(merged.MaxLogEntries)
	// Schedule fields may have changed; re-derive the triggers.
	if err := s.schedule.Apply(r.Context()); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":    err.Error(),
			"settings": merged,
		})
		return
	}
	writeJSON(w, http.StatusOK, merged)
}

func (s *Server) handleListLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := s.stores.Locations.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if locs == nil {
		locs = []domain.Location{}
	}
	writeJSON(w, http.StatusOK, locs)
}

func (s *Server) handleAddLocation(w http.ResponseWriter, r *http.Request) {
	var loc domain.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if loc.PostalCode == "" && !loc.HasCoordinates() {
		writeError(w, http.StatusBadRequest, errors.New("location needs a postal code or coordinates"))
		return
	}
	created, err := s.stores.Locations.Add(r.Context(), loc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	var loc domain.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	loc.ID = r.PathValue("id")
	if err := s.stores.Locations.Update(r.Context(), loc); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// handleDeleteLocation removes the location and cascades to its dedup ledger
// entry and conditions snapshot so a re-created location starts fresh.
func (s *Server) handleDeleteLocation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.stores.Locations.Delete(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	if err := s.ledger.ClearForLocation(r.Context(), id); err != nil {
		s.logger.Warn("ledger cascade clear failed", "location_id", id, "error", err)
	}
	if err := s.stores.States.Clear(r.Context(), id); err != nil {
		s.logger.Warn("condition state cascade clear failed", "location_id", id, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListAlertTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.stores.AlertTypes.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if types == nil {
		types = []domain.AlertType{}
	}
	writeJSON(w, http.StatusOK, types)
}

func (s *Server) handleAddAlertType(w http.ResponseWriter, r *http.Request) {
	var t domain.AlertType
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	created, err := s.stores.AlertTypes.Add(r.Context(), t)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateAlertType(w http.ResponseWriter, r *http.Request) {
	var t domain.AlertType
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	t.ID = r.PathValue("id")
	if err := s.stores.AlertTypes.Update(r.Context(), t); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteAlertType(w http.ResponseWriter, r *http.Request) {
	if err := s.stores.AlertTypes.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := s.stores.Logs.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []store.LogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeError(w, http.StatusInternalServerError, err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response body
}
