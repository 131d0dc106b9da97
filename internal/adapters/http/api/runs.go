// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// RunDependencies defines the interface for replay run lifecycle operations.
type RunDependencies interface {
	StartRun(ctx context.Context, name string, cfg map[string]any, force bool) (string, error)
	CurrentRun(ctx context.Context) (string, map[string]any, error)
	RunConfig(ctx context.Context, runID string) (map[string]any, error)
	ListRuns(ctx context.Context) ([]string, error)
}

// RunsHandler handles replay run requests.
type RunsHandler struct {
	deps RunDependencies
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(deps RunDependencies) *RunsHandler {
	return &RunsHandler{deps: deps}
}

// runStartRequest mirrors the POST /api/sim/start body.
type runStartRequest struct {
	Name   string         `json:"name"`
	Config map[string]any `json:"config"`
}

type runResponse struct {
	RunID  string         `json:"run_id"`
	Config map[string]any `json:"config"`
}

// HandleStartRun handles POST /api/sim/start?force=true requests. A 409 is
// returned when a run is already active and force is unset.
func (h *RunsHandler) HandleStartRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req runStartRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
			return
		}
	}
	if req.Config == nil {
		req.Config = map[string]any{}
	}
	force := r.URL.Query().Get("force") == "true"

	runID, err := h.deps.StartRun(r.Context(), req.Name, req.Config, force)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, runResponse{RunID: runID, Config: req.Config})
}

// HandleCurrentRun handles GET /api/sim/current requests.
func (h *RunsHandler) HandleCurrentRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	runID, cfg, err := h.deps.CurrentRun(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runResponse{RunID: runID, Config: cfg})
}

// HandleRunConfig handles GET /api/sim/config/{run_id} requests, checking
// the active run before durable storage.
func (h *RunsHandler) HandleRunConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	runID := strings.TrimPrefix(r.URL.Path, "/api/sim/config/")
	if runID == "" || strings.Contains(runID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	cfg, err := h.deps.RunConfig(r.Context(), runID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runResponse{RunID: runID, Config: cfg})
}

// HandleListRuns handles GET /api/sim/runs requests.
func (h *RunsHandler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	runs, err := h.deps.ListRuns(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"runs": runs})
}
