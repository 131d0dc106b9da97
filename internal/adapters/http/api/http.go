// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/pitwall/internal/app"

	"github.com/okian/pitwall/internal/adapters/replay"
	"github.com/okian/pitwall/internal/adapters/repository"
	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/rank"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Ingest validates and enqueues a telemetry payload. Returns true when
	// a retried sample id was suppressed.
	Ingest(ctx context.Context, fields map[string]any, origin string) (bool, error)

	// Read operations over driver state.
	Leaderboard(ctx context.Context) []rank.Entry
	Driver(ctx context.Context, driverID string) (model.Snapshot, error)
	ResetDrivers(ctx context.Context) error

	// Replay run lifecycle.
	StartRun(ctx context.Context, name string, cfg map[string]any, force bool) (string, error)
	CurrentRun(ctx context.Context) (string, map[string]any, error)
	RunConfig(ctx context.Context, runID string) (map[string]any, error)
	ListRuns(ctx context.Context) ([]string, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	telemetryHandler   *TelemetryHandler
	leaderboardHandler *LeaderboardHandler
	driversHandler     *DriversHandler
	runsHandler        *RunsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		telemetryHandler:   NewTelemetryHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps),
		driversHandler:     NewDriversHandler(deps),
		runsHandler:        NewRunsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/telemetry", MetricsMiddleware(s.telemetryHandler.HandlePostTelemetry, "telemetry"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/leaderboard/reset", MetricsMiddleware(s.leaderboardHandler.HandleReset, "leaderboard_reset"))
	mux.HandleFunc("/drivers/", MetricsMiddleware(s.driversHandler.HandleGetDriver, "drivers"))
	mux.HandleFunc("/api/sim/start", MetricsMiddleware(s.runsHandler.HandleStartRun, "sim_start"))
	mux.HandleFunc("/api/sim/current", MetricsMiddleware(s.runsHandler.HandleCurrentRun, "sim_current"))
	mux.HandleFunc("/api/sim/config/", MetricsMiddleware(s.runsHandler.HandleRunConfig, "sim_config"))
	mux.HandleFunc("/api/sim/runs", MetricsMiddleware(s.runsHandler.HandleListRuns, "sim_runs"))
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError translates service and adapter sentinels to HTTP status
// codes; anything unrecognized is a 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, replay.ErrNotFound),
		errors.Is(err, replay.ErrNoActiveRun):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, replay.ErrRunActive):
		writeError(w, http.StatusConflict, "run_active", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
