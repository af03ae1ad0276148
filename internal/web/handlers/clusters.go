package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lumeo/lumeo/internal/registry"
)

// ClustersHandler handles cluster registry endpoints.
type ClustersHandler struct {
	engine *registry.Engine
}

// NewClustersHandler creates a new clusters handler.
func NewClustersHandler(engine *registry.Engine) *ClustersHandler {
	return &ClustersHandler{engine: engine}
}

// List handles GET /api/v1/clusters.
func (h *ClustersHandler) List(w http.ResponseWriter, r *http.Request) {
	clusters, err := h.engine.ListClusters(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, clusters)
}

// Photos handles GET /api/v1/clusters/{id}/photos.
func (h *ClustersHandler) Photos(w http.ResponseWriter, r *http.Request) {
	photos, err := h.engine.PhotosInCluster(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, photos)
}

// RenameRequest is the payload for renaming a cluster.
type RenameRequest struct {
	Name string `json:"name"`
}

// Rename handles PUT /api/v1/clusters/{id}. Pure metadata update; no
// re-clustering is triggered.
func (h *ClustersHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.engine.RenameCluster(r.Context(), id, req.Name); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"cluster_id": id, "name": req.Name})
}
