package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lumeo/lumeo/internal/database"
)

func TestClustersHandler_List_Empty(t *testing.T) {
	engine, _ := testEngine(t)
	handler := NewClustersHandler(engine)

	req := httptest.NewRequest("GET", "/api/v1/clusters", nil)
	recorder := httptest.NewRecorder()

	handler.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var clusters []database.ClusterSummary
	parseJSONResponse(t, recorder, &clusters)

	if len(clusters) != 0 {
		t.Errorf("expected 0 clusters, got %d", len(clusters))
	}
}

func TestClustersHandler_List_AfterProcess(t *testing.T) {
	engine, store := testEngine(t)
	handler := NewClustersHandler(engine)
	seedPhoto(t, store, "p1")
	seedFace(t, store, "p1", vec(0))
	seedFace(t, store, "p1", vec(5))

	if _, err := engine.Process(context.Background()); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/v1/clusters", nil)
	recorder := httptest.NewRecorder()

	handler.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var clusters []database.ClusterSummary
	parseJSONResponse(t, recorder, &clusters)

	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
	for _, c := range clusters {
		if c.Name != database.DefaultClusterName {
			t.Errorf("expected default name for new cluster, got '%s'", c.Name)
		}
		if c.FaceCount != 1 {
			t.Errorf("expected face count 1, got %d", c.FaceCount)
		}
	}
}

func TestClustersHandler_Rename_Success(t *testing.T) {
	engine, store := testEngine(t)
	handler := NewClustersHandler(engine)
	seedPhoto(t, store, "p1")
	seedFace(t, store, "p1", vec(0))

	clusters, err := engine.Process(context.Background())
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	id := clusters[0].ID

	req := jsonRequest(t, "PUT", "/api/v1/clusters/"+id, RenameRequest{Name: "Alice"})
	req = requestWithChiParams(req, map[string]string{"id": id})
	recorder := httptest.NewRecorder()

	handler.Rename(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	updated, err := engine.ListClusters(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if updated[0].Name != "Alice" {
		t.Errorf("expected cluster renamed to 'Alice', got '%s'", updated[0].Name)
	}
}

func TestClustersHandler_Rename_NotFound(t *testing.T) {
	engine, _ := testEngine(t)
	handler := NewClustersHandler(engine)

	req := jsonRequest(t, "PUT", "/api/v1/clusters/missing", RenameRequest{Name: "Alice"})
	req = requestWithChiParams(req, map[string]string{"id": "missing"})
	recorder := httptest.NewRecorder()

	handler.Rename(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestClustersHandler_Rename_EmptyName(t *testing.T) {
	engine, store := testEngine(t)
	handler := NewClustersHandler(engine)
	seedPhoto(t, store, "p1")
	seedFace(t, store, "p1", vec(0))

	clusters, err := engine.Process(context.Background())
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	id := clusters[0].ID

	req := jsonRequest(t, "PUT", "/api/v1/clusters/"+id, RenameRequest{Name: ""})
	req = requestWithChiParams(req, map[string]string{"id": id})
	recorder := httptest.NewRecorder()

	handler.Rename(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestClustersHandler_Photos_Success(t *testing.T) {
	engine, store := testEngine(t)
	handler := NewClustersHandler(engine)
	seedPhoto(t, store, "p1")
	seedPhoto(t, store, "p2")
	seedFace(t, store, "p1", vec(0))
	seedFace(t, store, "p2", vec(0.1))

	clusters, err := engine.Process(context.Background())
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	id := clusters[0].ID

	req := httptest.NewRequest("GET", "/api/v1/clusters/"+id+"/photos", nil)
	req = requestWithChiParams(req, map[string]string{"id": id})
	recorder := httptest.NewRecorder()

	handler.Photos(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var photos []database.PhotoSummary
	parseJSONResponse(t, recorder, &photos)

	if len(photos) != 2 {
		t.Errorf("expected 2 photos in cluster, got %d", len(photos))
	}
}

func TestClustersHandler_Photos_NotFound(t *testing.T) {
	engine, _ := testEngine(t)
	handler := NewClustersHandler(engine)

	req := httptest.NewRequest("GET", "/api/v1/clusters/missing/photos", nil)
	req = requestWithChiParams(req, map[string]string{"id": "missing"})
	recorder := httptest.NewRecorder()

	handler.Photos(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
}
