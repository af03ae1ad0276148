package database

// FaceEmbeddingDim is the default embedding dimensionality produced by the
// external face encoder. Configurable via FACE_EMBEDDING_DIM.
const FaceEmbeddingDim = 128

// HNSW index parameters for face embeddings
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher = better recall, more memory.
	HNSWMaxNeighbors = 16

	// HNSWSearchMultiplier is the factor to request more candidates from
	// HNSW when a distance cutoff will filter some of them out.
	HNSWSearchMultiplier = 3
)
