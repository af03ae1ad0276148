package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/lumeo/lumeo/internal/organizer"
)

// OrganizeHandler triggers the folder-per-person export.
type OrganizeHandler struct {
	organizer *organizer.Organizer
	destRoot  string
}

// NewOrganizeHandler creates a new organize handler. destRoot is the
// configured default destination.
func NewOrganizeHandler(org *organizer.Organizer, destRoot string) *OrganizeHandler {
	return &OrganizeHandler{organizer: org, destRoot: destRoot}
}

// OrganizeRequest optionally overrides the destination root.
type OrganizeRequest struct {
	DestRoot string `json:"dest_root"`
}

// Run handles POST /api/v1/organize.
func (h *OrganizeHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req OrganizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	dest := req.DestRoot
	if dest == "" {
		dest = h.destRoot
	}

	results, err := h.organizer.Organize(r.Context(), dest)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, results)
}
