package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lumeo/lumeo/internal/database"
)

// PhotosHandler handles photo registration endpoints.
type PhotosHandler struct {
	store database.PhotoStore
}

// NewPhotosHandler creates a new photos handler.
func NewPhotosHandler(store database.PhotoStore) *PhotosHandler {
	return &PhotosHandler{store: store}
}

// RegisterPhotoRequest is the payload for registering a photo.
type RegisterPhotoRequest struct {
	ID   string `json:"photo_id"`
	Path string `json:"path"`
}

// PhotoResponse represents a registered photo.
type PhotoResponse struct {
	ID         string    `json:"photo_id"`
	Path       string    `json:"path"`
	UploadedAt time.Time `json:"uploaded_at"`
	Status     string    `json:"status"`
}

// Register handles POST /api/v1/photos. The id is optional; a fresh one is
// generated when omitted.
func (h *PhotosHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterPhotoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	photo := database.Photo{
		ID:         req.ID,
		Path:       req.Path,
		UploadedAt: time.Now(),
		Status:     database.PhotoPending,
	}
	if err := h.store.AddPhoto(r.Context(), photo); err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, PhotoResponse{
		ID:         photo.ID,
		Path:       photo.Path,
		UploadedAt: photo.UploadedAt,
		Status:     string(photo.Status),
	})
}

// Get handles GET /api/v1/photos/{id}.
func (h *PhotosHandler) Get(w http.ResponseWriter, r *http.Request) {
	photo, err := h.store.GetPhoto(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, PhotoResponse{
		ID:         photo.ID,
		Path:       photo.Path,
		UploadedAt: photo.UploadedAt,
		Status:     string(photo.Status),
	})
}

// SetStatusRequest is the payload for flipping a photo's processing status.
type SetStatusRequest struct {
	Status string `json:"status"`
}

// SetStatus handles POST /api/v1/photos/{id}/status.
func (h *PhotosHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req SetStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	status := database.PhotoStatus(req.Status)
	switch status {
	case database.PhotoPending, database.PhotoProcessed, database.PhotoFailed:
	default:
		respondError(w, http.StatusBadRequest, "status must be pending, processed or failed")
		return
	}

	if err := h.store.SetPhotoStatus(r.Context(), chi.URLParam(r, "id"), status); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}
