package database

import (
	"context"
)

// PhotoStore provides access to photo records. Photo files themselves are
// owned by the upload layer; the engine only tracks metadata and status.
type PhotoStore interface {
	// AddPhoto registers a photo record. Fails with ErrValidation on an
	// empty id or path.
	AddPhoto(ctx context.Context, photo Photo) error
	// GetPhoto retrieves a photo by id, ErrNotFound if missing.
	GetPhoto(ctx context.Context, id string) (*Photo, error)
	// SetPhotoStatus flips the processing status of a photo.
	SetPhotoStatus(ctx context.Context, id string, status PhotoStatus) error
	// CountPhotos returns the total number of registered photos.
	CountPhotos(ctx context.Context) (int, error)
}

// FaceStore is the embedding store: one vector plus quality metrics per
// detected face, keyed to its source photo.
type FaceStore interface {
	// AddFace stores a face embedding and returns its id. Fails with
	// ErrReference if the owning photo is absent or marked failed, and with
	// ErrValidation on an empty vector or out-of-range quality scores.
	AddFace(ctx context.Context, face StoredFace) (int64, error)
	// GetFace retrieves a face by id, ErrNotFound if missing.
	GetFace(ctx context.Context, id int64) (*StoredFace, error)
	// FacesForPhotos retrieves all faces belonging to the given photos.
	FacesForPhotos(ctx context.Context, photoIDs []string) ([]StoredFace, error)
	// AllFaces retrieves every stored face ordered by id.
	AllFaces(ctx context.Context) ([]StoredFace, error)
	// AllUnclustered retrieves faces that no cluster owns yet.
	AllUnclustered(ctx context.Context) ([]StoredFace, error)
	// SetFaceCluster assigns a face to a cluster; an empty cluster id
	// clears the assignment.
	SetFaceCluster(ctx context.Context, faceID int64, clusterID string) error
	// CountFaces returns the total number of stored faces.
	CountFaces(ctx context.Context) (int, error)
}

// ClusterStore is the durable cluster registry: identities, names,
// thumbnails and the photo/cluster junction.
type ClusterStore interface {
	// GetCluster retrieves a cluster by id, ErrNotFound if missing.
	GetCluster(ctx context.Context, id string) (*Cluster, error)
	// ListClusters returns all clusters ordered by creation time.
	ListClusters(ctx context.Context) ([]Cluster, error)
	// RenameCluster updates the display name only. ErrNotFound if the
	// cluster does not exist, ErrValidation on an empty name. Never touches
	// membership.
	RenameCluster(ctx context.Context, id, name string) error
	// PhotosForCluster returns the photos linked to a cluster via the
	// junction, ordered by upload time.
	PhotosForCluster(ctx context.Context, id string) ([]PhotoSummary, error)
	// ApplyReconciliation applies a full reconciliation change set
	// atomically: either every creation, deletion, assignment, count and
	// junction update lands, or none do.
	ApplyReconciliation(ctx context.Context, changes ReconcileChangeSet) error
	// Reset destroys all clusters, faces and junction rows. Photo records
	// are retained; purging them is the surrounding system's call.
	Reset(ctx context.Context) error
}

// Store combines all persistence concerns of the engine. Both the postgres
// and the in-memory backend implement it.
type Store interface {
	PhotoStore
	FaceStore
	ClusterStore
}

// ClusterUpdate carries the recomputed denormalized state of a surviving
// cluster after reconciliation.
type ClusterUpdate struct {
	ID               string
	FaceCount        int
	PhotoCount       int
	ThumbnailFaceID  int64
	ThumbnailPhotoID string
}

// ReconcileChangeSet is the complete outcome of one reconciliation run.
// The junction rows replace the previous junction wholesale; they are
// derived purely from the face assignments.
type ReconcileChangeSet struct {
	NewClusters       []Cluster
	DeletedClusterIDs []string
	FaceAssignments   map[int64]string // face id -> owning cluster id
	ClusterUpdates    []ClusterUpdate
	Links             []PhotoClusterLink
}
