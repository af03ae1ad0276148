package postgres

import (
	"github.com/lumeo/lumeo/internal/database"
)

// Store combines the photo, face and cluster repositories into one
// database.Store backed by a shared connection pool.
type Store struct {
	*PhotoRepository
	*FaceRepository
	*ClusterRepository
}

// NewStore creates a Store over the given pool.
func NewStore(pool *Pool) *Store {
	return &Store{
		PhotoRepository:   NewPhotoRepository(pool),
		FaceRepository:    NewFaceRepository(pool),
		ClusterRepository: NewClusterRepository(pool),
	}
}

// Verify interface compliance.
var _ database.Store = (*Store)(nil)
