package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStatsHandler_Get_Empty(t *testing.T) {
	engine, store := testEngine(t)
	handler := NewStatsHandler(store, engine)

	req := httptest.NewRequest("GET", "/api/v1/stats", nil)
	recorder := httptest.NewRecorder()

	handler.Get(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var stats StatsResponse
	parseJSONResponse(t, recorder, &stats)

	if stats.TotalPhotos != 0 || stats.TotalFaces != 0 || stats.TotalClusters != 0 {
		t.Errorf("expected empty stats, got %+v", stats)
	}
}

func TestStatsHandler_Get_CountsNamedClusters(t *testing.T) {
	engine, store := testEngine(t)
	handler := NewStatsHandler(store, engine)
	seedPhoto(t, store, "p1")
	seedFace(t, store, "p1", vec(0))
	seedFace(t, store, "p1", vec(5))

	clusters, err := engine.Process(context.Background())
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if err := engine.RenameCluster(context.Background(), clusters[0].ID, "Alice"); err != nil {
		t.Fatalf("rename failed: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/v1/stats", nil)
	recorder := httptest.NewRecorder()

	handler.Get(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var stats StatsResponse
	parseJSONResponse(t, recorder, &stats)

	if stats.TotalPhotos != 1 {
		t.Errorf("expected 1 photo, got %d", stats.TotalPhotos)
	}
	if stats.TotalFaces != 2 {
		t.Errorf("expected 2 faces, got %d", stats.TotalFaces)
	}
	if stats.UnclusteredFaces != 0 {
		t.Errorf("expected 0 unclustered faces, got %d", stats.UnclusteredFaces)
	}
	if stats.TotalClusters != 2 {
		t.Errorf("expected 2 clusters, got %d", stats.TotalClusters)
	}
	if stats.NamedClusters != 1 {
		t.Errorf("expected 1 named cluster, got %d", stats.NamedClusters)
	}
}

func TestStatsHandler_Get_UnclusteredBeforeProcess(t *testing.T) {
	engine, store := testEngine(t)
	handler := NewStatsHandler(store, engine)
	seedPhoto(t, store, "p1")
	seedFace(t, store, "p1", vec(0))

	req := httptest.NewRequest("GET", "/api/v1/stats", nil)
	recorder := httptest.NewRecorder()

	handler.Get(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var stats StatsResponse
	parseJSONResponse(t, recorder, &stats)

	if stats.UnclusteredFaces != 1 {
		t.Errorf("expected 1 unclustered face, got %d", stats.UnclusteredFaces)
	}
}

func TestResetHandler_Run(t *testing.T) {
	engine, store := testEngine(t)
	statsHandler := NewStatsHandler(store, engine)
	resetHandler := NewResetHandler(engine)
	seedPhoto(t, store, "p1")
	seedFace(t, store, "p1", vec(0))

	if _, err := engine.Process(context.Background()); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	req := httptest.NewRequest("POST", "/api/v1/reset", nil)
	recorder := httptest.NewRecorder()

	resetHandler.Run(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	req = httptest.NewRequest("GET", "/api/v1/stats", nil)
	recorder = httptest.NewRecorder()

	statsHandler.Get(recorder, req)

	var stats StatsResponse
	parseJSONResponse(t, recorder, &stats)

	if stats.TotalPhotos != 1 {
		t.Errorf("expected photos to survive reset, got %d", stats.TotalPhotos)
	}
	if stats.TotalFaces != 0 || stats.TotalClusters != 0 {
		t.Errorf("expected faces and clusters destroyed, got %+v", stats)
	}
}
