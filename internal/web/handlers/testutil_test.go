package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lumeo/lumeo/internal/clustering"
	"github.com/lumeo/lumeo/internal/config"
	"github.com/lumeo/lumeo/internal/database"
	"github.com/lumeo/lumeo/internal/database/memory"
	"github.com/lumeo/lumeo/internal/registry"
)

const testDim = 3

// testEngine creates an engine over a fresh in-memory store.
func testEngine(t *testing.T) (*registry.Engine, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	engine := registry.New(store, testDim, clustering.Options{
		Eps:        clustering.DefaultEps,
		MinSamples: clustering.DefaultMinSamples,
	})
	return engine, store
}

func testSearchTuning() config.SearchTuning {
	return config.SearchTuning{DefaultK: 10, MaxDistance: 0.8}
}

func vec(x float32) []float32 {
	return []float32{x, 0, 0}
}

func goodQuality(overall float64) database.QualityMetrics {
	return database.QualityMetrics{
		Sharpness:  overall,
		Brightness: overall,
		Frontal:    overall,
		Size:       overall,
		Overall:    overall,
	}
}

// seedPhoto registers a photo directly in the store.
func seedPhoto(t *testing.T, store *memory.Store, id string) {
	t.Helper()
	err := store.AddPhoto(context.Background(), database.Photo{
		ID:         id,
		Path:       "/photos/" + id + ".jpg",
		UploadedAt: time.Now(),
		Status:     database.PhotoPending,
	})
	if err != nil {
		t.Fatalf("failed to seed photo %s: %v", id, err)
	}
}

// seedFace ingests a face directly through the store.
func seedFace(t *testing.T, store *memory.Store, photoID string, v []float32) int64 {
	t.Helper()
	id, err := store.AddFace(context.Background(), database.StoredFace{
		PhotoID:   photoID,
		Embedding: v,
		BBox:      [4]int{10, 110, 110, 10},
		Quality:   goodQuality(80),
	})
	if err != nil {
		t.Fatalf("failed to seed face: %v", err)
	}
	return id
}

// jsonRequest creates a request with a JSON-encoded body.
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request body: %v", err)
	}
	return httptest.NewRequest(method, path, bytes.NewReader(payload))
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}
