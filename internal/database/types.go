package database

import (
	"time"
)

// PhotoStatus tracks where a photo is in the processing pipeline.
type PhotoStatus string

const (
	PhotoPending   PhotoStatus = "pending"
	PhotoProcessed PhotoStatus = "processed"
	PhotoFailed    PhotoStatus = "failed"
)

// Photo represents an uploaded photo known to the engine.
// The engine never touches the file contents; Path points at the
// upload layer's copy on disk.
type Photo struct {
	ID         string
	Path       string
	UploadedAt time.Time
	Status     PhotoStatus
}

// QualityMetrics holds the per-face quality sub-scores computed by the
// quality scorer. All values are in the 0-100 range.
type QualityMetrics struct {
	Sharpness  float64
	Brightness float64
	Frontal    float64
	Size       float64
	Overall    float64
}

// StoredFace represents one detected face: its embedding vector, where it
// was found, how good it looks, and which cluster currently owns it.
type StoredFace struct {
	ID        int64
	PhotoID   string
	Embedding []float32
	BBox      [4]int // [top, right, bottom, left] in pixel coordinates
	Quality   QualityMetrics
	ClusterID string // empty until clustering assigns one
	CreatedAt time.Time
}

// Cluster is a named group of faces believed to be one person.
type Cluster struct {
	ID         string
	Name       string
	FaceCount  int
	PhotoCount int
	// Thumbnail references the best-quality member face and its photo.
	ThumbnailFaceID  int64
	ThumbnailPhotoID string
	CreatedAt        time.Time
}

// PhotoClusterLink is the many-to-many photo/cluster junction. It exists
// iff at least one face in the photo belongs to the cluster and is always
// recomputed from face assignments, never edited directly.
type PhotoClusterLink struct {
	PhotoID   string
	ClusterID string
	FaceCount int  // faces of this cluster appearing in this photo
	IsPrimary bool // cluster owning the most faces in this photo
}

// ClusterSummary is the read model returned to callers.
type ClusterSummary struct {
	ID               string `json:"cluster_id"`
	Name             string `json:"name"`
	FaceCount        int    `json:"face_count"`
	PhotoCount       int    `json:"photo_count"`
	ThumbnailFaceID  int64  `json:"thumbnail_face_id,omitempty"`
	ThumbnailPhotoID string `json:"thumbnail_photo_id,omitempty"`
}

// PhotoSummary is the read model for photos listed under a cluster.
type PhotoSummary struct {
	ID         string    `json:"photo_id"`
	Path       string    `json:"path"`
	UploadedAt time.Time `json:"uploaded_at"`
	FaceCount  int       `json:"face_count"`
	IsPrimary  bool      `json:"is_primary"`
}

// DefaultClusterName is the placeholder name for clusters the user has not
// named yet.
const DefaultClusterName = "Unknown Person"
