// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/pitwall/internal/domain/model"
)

// DriverDependencies defines the interface for driver snapshot reads.
type DriverDependencies interface {
	Driver(ctx context.Context, driverID string) (model.Snapshot, error)
}

// DriversHandler handles driver snapshot requests.
type DriversHandler struct {
	deps DriverDependencies
}

// NewDriversHandler creates a new drivers handler.
func NewDriversHandler(deps DriverDependencies) *DriversHandler {
	return &DriversHandler{deps: deps}
}

// HandleGetDriver handles GET /drivers/{driver_id} requests.
func (h *DriversHandler) HandleGetDriver(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	driverID := strings.TrimPrefix(r.URL.Path, "/drivers/")
	if driverID == "" || strings.Contains(driverID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	snap, err := h.deps.Driver(r.Context(), driverID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
