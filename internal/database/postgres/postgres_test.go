//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/lumeo/lumeo/internal/config"
	"github.com/lumeo/lumeo/internal/database"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func testEmbedding(fill float32) []float32 {
	vec := make([]float32, 128)
	for i := range vec {
		vec[i] = fill
	}
	return vec
}

func TestPhotoRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	store := NewStore(pool)

	err := store.AddPhoto(ctx, database.Photo{
		ID:         "p1",
		Path:       "/photos/p1.jpg",
		UploadedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("add photo: %v", err)
	}

	photo, err := store.GetPhoto(ctx, "p1")
	if err != nil {
		t.Fatalf("get photo: %v", err)
	}
	if photo.Status != database.PhotoPending {
		t.Errorf("expected pending status, got %s", photo.Status)
	}

	err = store.AddPhoto(ctx, database.Photo{ID: "p1", Path: "/dup.jpg"})
	if !errors.Is(err, database.ErrValidation) {
		t.Errorf("expected ErrValidation on duplicate, got %v", err)
	}

	if err := store.SetPhotoStatus(ctx, "p1", database.PhotoProcessed); err != nil {
		t.Fatalf("set status: %v", err)
	}
	err = store.SetPhotoStatus(ctx, "missing", database.PhotoFailed)
	if !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if _, err := store.GetPhoto(ctx, "missing"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFaceRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	store := NewStore(pool)

	if err := store.AddPhoto(ctx, database.Photo{ID: "p1", Path: "/p1.jpg"}); err != nil {
		t.Fatalf("add photo: %v", err)
	}

	_, err := store.AddFace(ctx, database.StoredFace{
		PhotoID:   "ghost",
		Embedding: testEmbedding(0.5),
	})
	if !errors.Is(err, database.ErrReference) {
		t.Errorf("expected ErrReference for missing photo, got %v", err)
	}

	id, err := store.AddFace(ctx, database.StoredFace{
		PhotoID:   "p1",
		Embedding: testEmbedding(0.5),
		BBox:      [4]int{10, 110, 110, 10},
		Quality:   database.QualityMetrics{Sharpness: 80, Overall: 75},
	})
	if err != nil {
		t.Fatalf("add face: %v", err)
	}

	face, err := store.GetFace(ctx, id)
	if err != nil {
		t.Fatalf("get face: %v", err)
	}
	if len(face.Embedding) != 128 || face.Embedding[0] != 0.5 {
		t.Errorf("embedding did not round-trip: len %d first %f", len(face.Embedding), face.Embedding[0])
	}
	if face.BBox != [4]int{10, 110, 110, 10} {
		t.Errorf("bbox did not round-trip: %v", face.BBox)
	}
	if face.Quality.Overall != 75 {
		t.Errorf("quality did not round-trip: %f", face.Quality.Overall)
	}
	if face.ClusterID != "" {
		t.Errorf("new face should be unclustered, got %s", face.ClusterID)
	}

	unclustered, err := store.AllUnclustered(ctx)
	if err != nil {
		t.Fatalf("all unclustered: %v", err)
	}
	if len(unclustered) != 1 {
		t.Errorf("expected 1 unclustered face, got %d", len(unclustered))
	}
}

func TestFindSimilarOrdersByDistance(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	store := NewStore(pool)

	if err := store.AddPhoto(ctx, database.Photo{ID: "p1", Path: "/p1.jpg"}); err != nil {
		t.Fatalf("add photo: %v", err)
	}

	near, err := store.AddFace(ctx, database.StoredFace{PhotoID: "p1", Embedding: testEmbedding(0.1)})
	if err != nil {
		t.Fatalf("add near face: %v", err)
	}
	if _, err := store.AddFace(ctx, database.StoredFace{PhotoID: "p1", Embedding: testEmbedding(0.9)}); err != nil {
		t.Fatalf("add far face: %v", err)
	}

	faces, err := store.FindSimilar(ctx, testEmbedding(0.12), 2)
	if err != nil {
		t.Fatalf("find similar: %v", err)
	}
	if len(faces) != 2 {
		t.Fatalf("expected 2 results, got %d", len(faces))
	}
	if faces[0].ID != near {
		t.Errorf("expected nearest face %d first, got %d", near, faces[0].ID)
	}
}

func TestReconciliationCycle(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	store := NewStore(pool)

	if err := store.AddPhoto(ctx, database.Photo{ID: "p1", Path: "/p1.jpg"}); err != nil {
		t.Fatalf("add photo: %v", err)
	}
	f1, err := store.AddFace(ctx, database.StoredFace{PhotoID: "p1", Embedding: testEmbedding(0.1)})
	if err != nil {
		t.Fatalf("add face: %v", err)
	}
	f2, err := store.AddFace(ctx, database.StoredFace{PhotoID: "p1", Embedding: testEmbedding(0.2)})
	if err != nil {
		t.Fatalf("add face: %v", err)
	}

	err = store.ApplyReconciliation(ctx, database.ReconcileChangeSet{
		NewClusters: []database.Cluster{
			{ID: "c1", Name: database.DefaultClusterName, CreatedAt: time.Now()},
		},
		FaceAssignments: map[int64]string{f1: "c1", f2: "c1"},
		ClusterUpdates: []database.ClusterUpdate{
			{ID: "c1", FaceCount: 2, PhotoCount: 1, ThumbnailFaceID: f1, ThumbnailPhotoID: "p1"},
		},
		Links: []database.PhotoClusterLink{
			{PhotoID: "p1", ClusterID: "c1", FaceCount: 2, IsPrimary: true},
		},
	})
	if err != nil {
		t.Fatalf("apply reconciliation: %v", err)
	}

	cluster, err := store.GetCluster(ctx, "c1")
	if err != nil {
		t.Fatalf("get cluster: %v", err)
	}
	if cluster.FaceCount != 2 || cluster.ThumbnailFaceID != f1 {
		t.Errorf("cluster state not applied: %+v", cluster)
	}

	if err := store.RenameCluster(ctx, "c1", "Alice"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	photos, err := store.PhotosForCluster(ctx, "c1")
	if err != nil {
		t.Fatalf("photos for cluster: %v", err)
	}
	if len(photos) != 1 || !photos[0].IsPrimary {
		t.Errorf("unexpected junction: %v", photos)
	}

	// Delete the cluster; face assignments are cleared by the change set.
	err = store.ApplyReconciliation(ctx, database.ReconcileChangeSet{
		DeletedClusterIDs: []string{"c1"},
		FaceAssignments:   map[int64]string{f1: "", f2: ""},
	})
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if _, err := store.GetCluster(ctx, "c1"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("cluster should be gone, got %v", err)
	}
	face, err := store.GetFace(ctx, f1)
	if err != nil {
		t.Fatalf("get face: %v", err)
	}
	if face.ClusterID != "" {
		t.Errorf("assignment should be cleared, got %s", face.ClusterID)
	}
}

func TestResetKeepsPhotos(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	store := NewStore(pool)

	if err := store.AddPhoto(ctx, database.Photo{ID: "p1", Path: "/p1.jpg"}); err != nil {
		t.Fatalf("add photo: %v", err)
	}
	if _, err := store.AddFace(ctx, database.StoredFace{PhotoID: "p1", Embedding: testEmbedding(0.3)}); err != nil {
		t.Fatalf("add face: %v", err)
	}

	if err := store.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}

	if n, err := store.CountFaces(ctx); err != nil || n != 0 {
		t.Errorf("expected 0 faces after reset, got %d (%v)", n, err)
	}
	if n, err := store.CountPhotos(ctx); err != nil || n != 1 {
		t.Errorf("photos must survive reset, got %d (%v)", n, err)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	if err := pool.Migrate(ctx); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	applied, err := pool.MigrationsApplied(ctx)
	if err != nil {
		t.Fatalf("migrations applied: %v", err)
	}
	if len(applied) != 2 {
		t.Errorf("expected 2 applied migrations, got %d: %v", len(applied), applied)
	}
}
