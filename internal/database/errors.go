package database

import "errors"

// Sentinel errors shared by all storage backends. Callers match them with
// errors.Is; backends wrap them with context about the failing entity.
var (
	// ErrNotFound means the requested photo, face or cluster does not exist.
	ErrNotFound = errors.New("not found")

	// ErrReference means a write referenced a photo that is absent or marked
	// failed. Embeddings may not exist without a valid owning photo.
	ErrReference = errors.New("invalid reference")

	// ErrValidation means the input itself is malformed: wrong embedding
	// dimensionality, out-of-range quality score, empty cluster name.
	ErrValidation = errors.New("validation failed")

	// ErrConflict means a clustering or reconciliation run is already in
	// flight. The caller is expected to retry once the running phase ends.
	ErrConflict = errors.New("operation conflict")
)
