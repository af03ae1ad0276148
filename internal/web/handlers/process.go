package handlers

import (
	"net/http"

	"github.com/lumeo/lumeo/internal/registry"
)

// ProcessHandler runs the clustering + reconciliation phase.
type ProcessHandler struct {
	engine *registry.Engine
}

// NewProcessHandler creates a new process handler.
func NewProcessHandler(engine *registry.Engine) *ProcessHandler {
	return &ProcessHandler{engine: engine}
}

// Run handles POST /api/v1/process. Returns 409 when another run is in
// flight; the caller is expected to retry.
func (h *ProcessHandler) Run(w http.ResponseWriter, r *http.Request) {
	clusters, err := h.engine.Process(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, clusters)
}
