package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"sync"

	"github.com/lumeo/lumeo/internal/config"
	"github.com/lumeo/lumeo/internal/database"
	"github.com/lumeo/lumeo/internal/registry"
)

// FacesHandler handles face ingest and similarity search. Similarity runs
// against an in-memory HNSW index rebuilt lazily from the store.
type FacesHandler struct {
	engine *registry.Engine
	store  database.FaceStore
	search config.SearchTuning

	indexMu sync.Mutex
	index   *database.HNSWIndex
}

// NewFacesHandler creates a new faces handler.
func NewFacesHandler(engine *registry.Engine, store database.FaceStore, search config.SearchTuning) *FacesHandler {
	return &FacesHandler{
		engine: engine,
		store:  store,
		search: search,
		index:  database.NewHNSWIndex(),
	}
}

// IngestFaceRequest is the payload delivered by the external detector: one
// embedding plus where it was found and how good it looks.
type IngestFaceRequest struct {
	PhotoID   string    `json:"photo_id"`
	Embedding []float32 `json:"embedding"`
	BBox      [4]int    `json:"bbox"`
	Quality   struct {
		Sharpness  float64 `json:"sharpness"`
		Brightness float64 `json:"brightness"`
		Frontal    float64 `json:"frontal"`
		Size       float64 `json:"size"`
		Overall    float64 `json:"overall"`
	} `json:"quality"`
}

// Ingest handles POST /api/v1/faces.
func (h *FacesHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestFaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	quality := database.QualityMetrics{
		Sharpness:  req.Quality.Sharpness,
		Brightness: req.Quality.Brightness,
		Frontal:    req.Quality.Frontal,
		Size:       req.Quality.Size,
		Overall:    req.Quality.Overall,
	}

	id, err := h.engine.IngestFace(r.Context(), req.PhotoID, req.Embedding, req.BBox, quality)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	// Keep the similarity index warm. Failure here never fails the ingest.
	if face, err := h.store.GetFace(r.Context(), id); err == nil {
		h.indexMu.Lock()
		h.index.Add(face)
		h.indexMu.Unlock()
	} else {
		log.Printf("warning: failed to index face %d: %v", id, err)
	}

	respondJSON(w, http.StatusCreated, map[string]int64{"face_id": id})
}

// SimilarRequest is the payload for similarity search. Metric selects how
// distances are computed and reported ("euclidean", the default, or
// "cosine"); ExcludePhotoID drops hits from one photo, typically the photo
// the query embedding came from.
type SimilarRequest struct {
	Embedding      []float32 `json:"embedding"`
	K              int       `json:"k"`
	Metric         string    `json:"metric"`
	ExcludePhotoID string    `json:"exclude_photo_id"`
}

// SimilarFace is one similarity search hit.
type SimilarFace struct {
	FaceID   int64   `json:"face_id"`
	PhotoID  string  `json:"photo_id"`
	Distance float64 `json:"distance"`
}

// Similar handles POST /api/v1/faces/similar.
func (h *FacesHandler) Similar(w http.ResponseWriter, r *http.Request) {
	var req SimilarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(req.Embedding) == 0 {
		respondError(w, http.StatusBadRequest, "embedding is required")
		return
	}
	switch req.Metric {
	case "", "euclidean", "cosine":
	default:
		respondError(w, http.StatusBadRequest, "metric must be euclidean or cosine")
		return
	}
	k := req.K
	if k <= 0 {
		k = h.search.DefaultK
	}

	h.indexMu.Lock()
	defer h.indexMu.Unlock()

	if err := h.syncIndex(r); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if h.index.IsEmpty() {
		respondJSON(w, http.StatusOK, []SimilarFace{})
		return
	}

	// Over-fetch when post-filters can discard candidates or the ranking
	// metric differs from the graph's.
	fetchK := k
	if h.search.MaxDistance > 0 || req.ExcludePhotoID != "" || req.Metric == "cosine" {
		fetchK = k * database.HNSWSearchMultiplier
	}

	ids, distances, err := h.index.Search(req.Embedding, fetchK)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// The distance cutoff applies to the reported distance, whichever
	// metric produced it.
	results := make([]SimilarFace, 0, len(ids))
	for i, id := range ids {
		face := h.index.GetFace(id)
		if face == nil {
			continue
		}
		if req.ExcludePhotoID != "" && face.PhotoID == req.ExcludePhotoID {
			continue
		}
		distance := distances[i]
		if req.Metric == "cosine" {
			distance = database.CosineDistance(req.Embedding, face.Embedding)
		}
		if h.search.MaxDistance > 0 && distance > h.search.MaxDistance {
			continue
		}
		results = append(results, SimilarFace{
			FaceID:   id,
			PhotoID:  face.PhotoID,
			Distance: distance,
		})
	}

	// HNSW orders by Euclidean distance; re-rank when reporting cosine.
	if req.Metric == "cosine" {
		sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	}
	if len(results) > k {
		results = results[:k]
	}
	respondJSON(w, http.StatusOK, results)
}

// syncIndex rebuilds the in-memory index when it has drifted from the
// store, e.g. after a reset or a restart. Caller holds indexMu.
func (h *FacesHandler) syncIndex(r *http.Request) error {
	count, err := h.store.CountFaces(r.Context())
	if err != nil {
		return err
	}
	if h.index.Count() == count {
		return nil
	}

	faces, err := h.store.AllFaces(r.Context())
	if err != nil {
		return err
	}
	return h.index.BuildFromFaces(faces)
}
