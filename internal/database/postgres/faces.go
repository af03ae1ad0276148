package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/lumeo/lumeo/internal/database"
)

const faceColumns = `id, photo_id, embedding, bbox,
	sharpness, brightness, frontal, size_score, quality, cluster_id, created_at`

// FaceRepository provides PostgreSQL-backed face embedding storage.
type FaceRepository struct {
	pool *Pool
}

// NewFaceRepository creates a new PostgreSQL face repository.
func NewFaceRepository(pool *Pool) *FaceRepository {
	return &FaceRepository{pool: pool}
}

// AddFace stores a face embedding and returns its id.
func (r *FaceRepository) AddFace(ctx context.Context, face database.StoredFace) (int64, error) {
	if len(face.Embedding) == 0 {
		return 0, fmt.Errorf("empty embedding: %w", database.ErrValidation)
	}
	if !validFaceQuality(face.Quality) {
		return 0, fmt.Errorf("quality scores must be within 0-100: %w", database.ErrValidation)
	}

	var status string
	err := r.pool.QueryRow(ctx, "SELECT status FROM photos WHERE id = $1", face.PhotoID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("photo %s does not exist: %w", face.PhotoID, database.ErrReference)
	}
	if err != nil {
		return 0, fmt.Errorf("check photo: %w", err)
	}
	if database.PhotoStatus(status) == database.PhotoFailed {
		return 0, fmt.Errorf("photo %s is marked failed: %w", face.PhotoID, database.ErrReference)
	}

	bbox := make([]int64, 4)
	for i, v := range face.BBox {
		bbox[i] = int64(v)
	}

	var id int64
	err = r.pool.QueryRow(ctx, `
		INSERT INTO faces (photo_id, embedding, bbox, sharpness, brightness, frontal, size_score, quality)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, face.PhotoID, pgvector.NewVector(face.Embedding), pq.Array(bbox),
		face.Quality.Sharpness, face.Quality.Brightness, face.Quality.Frontal,
		face.Quality.Size, face.Quality.Overall).Scan(&id)
	if isPQError(err, pqForeignKeyViolation) {
		return 0, fmt.Errorf("photo %s does not exist: %w", face.PhotoID, database.ErrReference)
	}
	if err != nil {
		return 0, fmt.Errorf("insert face: %w", err)
	}
	return id, nil
}

// GetFace retrieves a face by id.
func (r *FaceRepository) GetFace(ctx context.Context, id int64) (*database.StoredFace, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+faceColumns+" FROM faces WHERE id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("query face: %w", err)
	}
	defer rows.Close()

	faces, err := scanFaces(rows)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, fmt.Errorf("face %d: %w", id, database.ErrNotFound)
	}
	return &faces[0], nil
}

// FacesForPhotos retrieves all faces belonging to the given photos.
func (r *FaceRepository) FacesForPhotos(ctx context.Context, photoIDs []string) ([]database.StoredFace, error) {
	if len(photoIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		"SELECT "+faceColumns+" FROM faces WHERE photo_id = ANY($1) ORDER BY id",
		pq.Array(photoIDs))
	if err != nil {
		return nil, fmt.Errorf("query faces by photos: %w", err)
	}
	defer rows.Close()

	return scanFaces(rows)
}

// AllFaces retrieves every stored face ordered by id.
func (r *FaceRepository) AllFaces(ctx context.Context) ([]database.StoredFace, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+faceColumns+" FROM faces ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query faces: %w", err)
	}
	defer rows.Close()

	return scanFaces(rows)
}

// AllUnclustered retrieves faces that no cluster owns yet.
func (r *FaceRepository) AllUnclustered(ctx context.Context) ([]database.StoredFace, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+faceColumns+" FROM faces WHERE cluster_id IS NULL ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query unclustered faces: %w", err)
	}
	defer rows.Close()

	return scanFaces(rows)
}

// SetFaceCluster assigns a face to a cluster; an empty cluster id clears the
// assignment.
func (r *FaceRepository) SetFaceCluster(ctx context.Context, faceID int64, clusterID string) error {
	var cluster sql.NullString
	if clusterID != "" {
		cluster = sql.NullString{String: clusterID, Valid: true}
	}

	result, err := r.pool.Exec(ctx,
		"UPDATE faces SET cluster_id = $1 WHERE id = $2", cluster, faceID)
	if isPQError(err, pqForeignKeyViolation) {
		return fmt.Errorf("cluster %s does not exist: %w", clusterID, database.ErrReference)
	}
	if err != nil {
		return fmt.Errorf("update face cluster: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("face %d: %w", faceID, database.ErrNotFound)
	}
	return nil
}

// CountFaces returns the total number of stored faces.
func (r *FaceRepository) CountFaces(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM faces").Scan(&count); err != nil {
		return 0, fmt.Errorf("count faces: %w", err)
	}
	return count, nil
}

// FindSimilar returns the faces closest to the query embedding by Euclidean
// distance, nearest first, ranked in the database with the pgvector
// operator. The web layer serves lookups from the in-memory index instead.
func (r *FaceRepository) FindSimilar(ctx context.Context, embedding []float32, limit int) ([]database.StoredFace, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+faceColumns+" FROM faces ORDER BY embedding <-> $1 LIMIT $2",
		pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("query similar faces: %w", err)
	}
	defer rows.Close()

	return scanFaces(rows)
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

// scanFaces reads StoredFace rows produced by a faceColumns select.
func scanFaces(rows *sql.Rows) ([]database.StoredFace, error) {
	var faces []database.StoredFace
	for rows.Next() {
		var face database.StoredFace
		var vec pgvector.Vector
		var bbox pq.Int64Array
		var cluster sql.NullString

		err := rows.Scan(&face.ID, &face.PhotoID, &vec, &bbox,
			&face.Quality.Sharpness, &face.Quality.Brightness, &face.Quality.Frontal,
			&face.Quality.Size, &face.Quality.Overall, &cluster, &face.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}

		face.Embedding = vec.Slice()
		for i := 0; i < len(bbox) && i < 4; i++ {
			face.BBox[i] = int(bbox[i])
		}
		if cluster.Valid {
			face.ClusterID = cluster.String
		}
		faces = append(faces, face)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faces: %w", err)
	}
	return faces, nil
}
