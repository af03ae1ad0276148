// Package memory provides an in-memory implementation of the database
// interfaces. It backs unit tests and storage-less operation (no
// DATABASE_URL configured); the postgres backend is the durable choice.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lumeo/lumeo/internal/database"
)

// Store is an in-memory database.Store guarded by a single RWMutex.
type Store struct {
	mu         sync.RWMutex
	photos     map[string]database.Photo
	faces      map[int64]database.StoredFace
	clusters   map[string]database.Cluster
	links      []database.PhotoClusterLink
	nextFaceID int64
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		photos:     make(map[string]database.Photo),
		faces:      make(map[int64]database.StoredFace),
		clusters:   make(map[string]database.Cluster),
		nextFaceID: 1,
	}
}

// AddPhoto registers a photo record.
func (s *Store) AddPhoto(ctx context.Context, photo database.Photo) error {
	if photo.ID == "" || photo.Path == "" {
		return fmt.Errorf("photo id and path are required: %w", database.ErrValidation)
	}
	if photo.Status == "" {
		photo.Status = database.PhotoPending
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.photos[photo.ID]; ok {
		return fmt.Errorf("photo %s already registered: %w", photo.ID, database.ErrValidation)
	}
	s.photos[photo.ID] = photo
	return nil
}

// GetPhoto retrieves a photo by id.
func (s *Store) GetPhoto(ctx context.Context, id string) (*database.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	photo, ok := s.photos[id]
	if !ok {
		return nil, fmt.Errorf("photo %s: %w", id, database.ErrNotFound)
	}
	return &photo, nil
}

// SetPhotoStatus flips the processing status of a photo.
func (s *Store) SetPhotoStatus(ctx context.Context, id string, status database.PhotoStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	photo, ok := s.photos[id]
	if !ok {
		return fmt.Errorf("photo %s: %w", id, database.ErrNotFound)
	}
	photo.Status = status
	s.photos[id] = photo
	return nil
}

// CountPhotos returns the number of registered photos.
func (s *Store) CountPhotos(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.photos), nil
}

// validFaceQuality checks that every quality sub-score is within 0-100.
func validFaceQuality(q database.QualityMetrics) bool {
	for _, v := range []float64{q.Sharpness, q.Brightness, q.Frontal, q.Size, q.Overall} {
		if v < 0 || v > 100 {
			return false
		}
	}
	return true
}

// AddFace stores a face embedding and returns its id.
func (s *Store) AddFace(ctx context.Context, face database.StoredFace) (int64, error) {
	if len(face.Embedding) == 0 {
		return 0, fmt.Errorf("empty embedding: %w", database.ErrValidation)
	}
	if !validFaceQuality(face.Quality) {
		return 0, fmt.Errorf("quality scores must be within 0-100: %w", database.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	photo, ok := s.photos[face.PhotoID]
	if !ok {
		return 0, fmt.Errorf("photo %s does not exist: %w", face.PhotoID, database.ErrReference)
	}
	if photo.Status == database.PhotoFailed {
		return 0, fmt.Errorf("photo %s is marked failed: %w", face.PhotoID, database.ErrReference)
	}

	face.ID = s.nextFaceID
	s.nextFaceID++
	if face.CreatedAt.IsZero() {
		face.CreatedAt = time.Now()
	}
	face.Embedding = append([]float32(nil), face.Embedding...)
	s.faces[face.ID] = face
	return face.ID, nil
}

// GetFace retrieves a face by id.
func (s *Store) GetFace(ctx context.Context, id int64) (*database.StoredFace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	face, ok := s.faces[id]
	if !ok {
		return nil, fmt.Errorf("face %d: %w", id, database.ErrNotFound)
	}
	return &face, nil
}

// FacesForPhotos retrieves all faces belonging to the given photos.
func (s *Store) FacesForPhotos(ctx context.Context, photoIDs []string) ([]database.StoredFace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]struct{}, len(photoIDs))
	for _, id := range photoIDs {
		wanted[id] = struct{}{}
	}

	var faces []database.StoredFace
	for _, face := range s.faces {
		if _, ok := wanted[face.PhotoID]; ok {
			faces = append(faces, face)
		}
	}
	sortFacesByID(faces)
	return faces, nil
}

// AllFaces retrieves every stored face ordered by id.
func (s *Store) AllFaces(ctx context.Context) ([]database.StoredFace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	faces := make([]database.StoredFace, 0, len(s.faces))
	for _, face := range s.faces {
		faces = append(faces, face)
	}
	sortFacesByID(faces)
	return faces, nil
}

// AllUnclustered retrieves faces that no cluster owns yet.
func (s *Store) AllUnclustered(ctx context.Context) ([]database.StoredFace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var faces []database.StoredFace
	for _, face := range s.faces {
		if face.ClusterID == "" {
			faces = append(faces, face)
		}
	}
	sortFacesByID(faces)
	return faces, nil
}

// SetFaceCluster assigns a face to a cluster.
func (s *Store) SetFaceCluster(ctx context.Context, faceID int64, clusterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	face, ok := s.faces[faceID]
	if !ok {
		return fmt.Errorf("face %d: %w", faceID, database.ErrNotFound)
	}
	if clusterID != "" {
		if _, ok := s.clusters[clusterID]; !ok {
			return fmt.Errorf("cluster %s does not exist: %w", clusterID, database.ErrReference)
		}
	}
	face.ClusterID = clusterID
	s.faces[faceID] = face
	return nil
}

// CountFaces returns the total number of stored faces.
func (s *Store) CountFaces(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.faces), nil
}

// GetCluster retrieves a cluster by id.
func (s *Store) GetCluster(ctx context.Context, id string) (*database.Cluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cluster, ok := s.clusters[id]
	if !ok {
		return nil, fmt.Errorf("cluster %s: %w", id, database.ErrNotFound)
	}
	return &cluster, nil
}

// ListClusters returns all clusters ordered by creation time.
func (s *Store) ListClusters(ctx context.Context) ([]database.Cluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clusters := make([]database.Cluster, 0, len(s.clusters))
	for _, c := range s.clusters {
		clusters = append(clusters, c)
	}
	sort.Slice(clusters, func(i, j int) bool {
		if !clusters[i].CreatedAt.Equal(clusters[j].CreatedAt) {
			return clusters[i].CreatedAt.Before(clusters[j].CreatedAt)
		}
		return clusters[i].ID < clusters[j].ID
	})
	return clusters, nil
}

// RenameCluster updates the display name of a cluster.
func (s *Store) RenameCluster(ctx context.Context, id, name string) error {
	if name == "" {
		return fmt.Errorf("cluster name is required: %w", database.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cluster, ok := s.clusters[id]
	if !ok {
		return fmt.Errorf("cluster %s: %w", id, database.ErrNotFound)
	}
	cluster.Name = name
	s.clusters[id] = cluster
	return nil
}

// PhotosForCluster returns the photos linked to a cluster.
func (s *Store) PhotosForCluster(ctx context.Context, id string) ([]database.PhotoSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.clusters[id]; !ok {
		return nil, fmt.Errorf("cluster %s: %w", id, database.ErrNotFound)
	}

	var photos []database.PhotoSummary
	for _, link := range s.links {
		if link.ClusterID != id {
			continue
		}
		photo, ok := s.photos[link.PhotoID]
		if !ok {
			continue
		}
		photos = append(photos, database.PhotoSummary{
			ID:         photo.ID,
			Path:       photo.Path,
			UploadedAt: photo.UploadedAt,
			FaceCount:  link.FaceCount,
			IsPrimary:  link.IsPrimary,
		})
	}
	sort.Slice(photos, func(i, j int) bool {
		if !photos[i].UploadedAt.Equal(photos[j].UploadedAt) {
			return photos[i].UploadedAt.Before(photos[j].UploadedAt)
		}
		return photos[i].ID < photos[j].ID
	})
	return photos, nil
}

// ApplyReconciliation applies a full reconciliation change set atomically.
// Inputs are validated up front so a bad change set leaves the store
// untouched.
func (s *Store) ApplyReconciliation(ctx context.Context, changes database.ReconcileChangeSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate before mutating anything.
	for faceID := range changes.FaceAssignments {
		if _, ok := s.faces[faceID]; !ok {
			return fmt.Errorf("face %d: %w", faceID, database.ErrNotFound)
		}
	}
	newIDs := make(map[string]struct{}, len(changes.NewClusters))
	for _, c := range changes.NewClusters {
		if c.ID == "" {
			return fmt.Errorf("new cluster without id: %w", database.ErrValidation)
		}
		newIDs[c.ID] = struct{}{}
	}
	for faceID, clusterID := range changes.FaceAssignments {
		if clusterID == "" {
			continue
		}
		_, existing := s.clusters[clusterID]
		_, created := newIDs[clusterID]
		if !existing && !created {
			return fmt.Errorf("face %d assigned to unknown cluster %s: %w",
				faceID, clusterID, database.ErrReference)
		}
	}

	for _, c := range changes.NewClusters {
		s.clusters[c.ID] = c
	}
	for faceID, clusterID := range changes.FaceAssignments {
		face := s.faces[faceID]
		face.ClusterID = clusterID
		s.faces[faceID] = face
	}
	for _, id := range changes.DeletedClusterIDs {
		delete(s.clusters, id)
	}
	for _, u := range changes.ClusterUpdates {
		cluster, ok := s.clusters[u.ID]
		if !ok {
			continue
		}
		cluster.FaceCount = u.FaceCount
		cluster.PhotoCount = u.PhotoCount
		cluster.ThumbnailFaceID = u.ThumbnailFaceID
		cluster.ThumbnailPhotoID = u.ThumbnailPhotoID
		s.clusters[u.ID] = cluster
	}
	s.links = append([]database.PhotoClusterLink(nil), changes.Links...)

	return nil
}

// Reset destroys all clusters, faces and junction rows. Photos are kept.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.faces = make(map[int64]database.StoredFace)
	s.clusters = make(map[string]database.Cluster)
	s.links = nil
	s.nextFaceID = 1
	return nil
}

func sortFacesByID(faces []database.StoredFace) {
	sort.Slice(faces, func(i, j int) bool { return faces[i].ID < faces[j].ID })
}

// Verify interface compliance.
var _ database.Store = (*Store)(nil)
