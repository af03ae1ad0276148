package handlers

import (
	"net/http"

	"github.com/lumeo/lumeo/internal/database"
	"github.com/lumeo/lumeo/internal/registry"
)

// StatsHandler reports engine-wide counts.
type StatsHandler struct {
	store  database.Store
	engine *registry.Engine
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(store database.Store, engine *registry.Engine) *StatsHandler {
	return &StatsHandler{store: store, engine: engine}
}

// StatsResponse represents the statistics response.
type StatsResponse struct {
	TotalPhotos      int `json:"total_photos"`
	TotalFaces       int `json:"total_faces"`
	UnclusteredFaces int `json:"unclustered_faces"`
	TotalClusters    int `json:"total_clusters"`
	NamedClusters    int `json:"named_clusters"`
}

// Get handles GET /api/v1/stats.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	photos, err := h.store.CountPhotos(ctx)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	faces, err := h.store.CountFaces(ctx)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	unclustered, err := h.store.AllUnclustered(ctx)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	clusters, err := h.engine.ListClusters(ctx)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	named := 0
	for _, c := range clusters {
		if c.Name != database.DefaultClusterName {
			named++
		}
	}

	respondJSON(w, http.StatusOK, StatsResponse{
		TotalPhotos:      photos,
		TotalFaces:       faces,
		UnclusteredFaces: len(unclustered),
		TotalClusters:    len(clusters),
		NamedClusters:    named,
	})
}

// ResetHandler destroys all cluster state.
type ResetHandler struct {
	engine *registry.Engine
}

// NewResetHandler creates a new reset handler.
func NewResetHandler(engine *registry.Engine) *ResetHandler {
	return &ResetHandler{engine: engine}
}

// Run handles POST /api/v1/reset. Photos survive; faces, clusters and the
// junction are destroyed.
func (h *ResetHandler) Run(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Reset(r.Context()); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
