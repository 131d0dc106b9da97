// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// TelemetryDependencies defines the interface for telemetry ingestion.
type TelemetryDependencies interface {
	Ingest(ctx context.Context, fields map[string]any, origin string) (bool, error)
}

// TelemetryHandler handles telemetry ingestion requests.
type TelemetryHandler struct {
	deps TelemetryDependencies
}

// NewTelemetryHandler creates a new telemetry handler.
func NewTelemetryHandler(deps TelemetryDependencies) *TelemetryHandler {
	return &TelemetryHandler{deps: deps}
}

// HandlePostTelemetry handles POST /telemetry requests. The payload is an
// open field map; only driver identity is mandatory, everything else merges
// into the driver's snapshot as-is.
func (h *TelemetryHandler) HandlePostTelemetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}

	duplicate, err := h.deps.Ingest(r.Context(), fields, "")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if duplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Duplicate: false})
}
