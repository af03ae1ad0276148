package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lumeo/lumeo/internal/database"
)

// ClusterRepository provides PostgreSQL-backed cluster registry storage.
type ClusterRepository struct {
	pool *Pool
}

// NewClusterRepository creates a new PostgreSQL cluster repository.
func NewClusterRepository(pool *Pool) *ClusterRepository {
	return &ClusterRepository{pool: pool}
}

// GetCluster retrieves a cluster by id.
func (r *ClusterRepository) GetCluster(ctx context.Context, id string) (*database.Cluster, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, face_count, photo_count, thumbnail_face_id, thumbnail_photo_id, created_at
		FROM clusters WHERE id = $1
	`, id)

	cluster, err := scanCluster(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cluster %s: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query cluster: %w", err)
	}
	return cluster, nil
}

// ListClusters returns all clusters ordered by creation time.
func (r *ClusterRepository) ListClusters(ctx context.Context) ([]database.Cluster, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, face_count, photo_count, thumbnail_face_id, thumbnail_photo_id, created_at
		FROM clusters ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query clusters: %w", err)
	}
	defer rows.Close()

	var clusters []database.Cluster
	for rows.Next() {
		cluster, err := scanCluster(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan cluster: %w", err)
		}
		clusters = append(clusters, *cluster)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clusters: %w", err)
	}
	return clusters, nil
}

// RenameCluster updates the display name of a cluster.
func (r *ClusterRepository) RenameCluster(ctx context.Context, id, name string) error {
	if name == "" {
		return fmt.Errorf("cluster name is required: %w", database.ErrValidation)
	}

	result, err := r.pool.Exec(ctx, "UPDATE clusters SET name = $1 WHERE id = $2", name, id)
	if err != nil {
		return fmt.Errorf("rename cluster: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("cluster %s: %w", id, database.ErrNotFound)
	}
	return nil
}

// PhotosForCluster returns the photos linked to a cluster, ordered by
// upload time.
func (r *ClusterRepository) PhotosForCluster(ctx context.Context, id string) ([]database.PhotoSummary, error) {
	if _, err := r.GetCluster(ctx, id); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.path, p.uploaded_at, pc.face_count, pc.is_primary
		FROM photo_clusters pc
		JOIN photos p ON p.id = pc.photo_id
		WHERE pc.cluster_id = $1
		ORDER BY p.uploaded_at, p.id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query cluster photos: %w", err)
	}
	defer rows.Close()

	var photos []database.PhotoSummary
	for rows.Next() {
		var p database.PhotoSummary
		if err := rows.Scan(&p.ID, &p.Path, &p.UploadedAt, &p.FaceCount, &p.IsPrimary); err != nil {
			return nil, fmt.Errorf("scan cluster photo: %w", err)
		}
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cluster photos: %w", err)
	}
	return photos, nil
}

// ApplyReconciliation applies a full reconciliation change set in one
// transaction: cluster creations, face reassignments, cluster deletions,
// recomputed counts and the replaced photo/cluster junction.
func (r *ClusterRepository) ApplyReconciliation(ctx context.Context, changes database.ReconcileChangeSet) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range changes.NewClusters {
		if c.ID == "" {
			return fmt.Errorf("new cluster without id: %w", database.ErrValidation)
		}
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO clusters (id, name, face_count, photo_count, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, c.ID, c.Name, c.FaceCount, c.PhotoCount, createdAt)
		if err != nil {
			return fmt.Errorf("insert cluster %s: %w", c.ID, err)
		}
	}

	for faceID, clusterID := range changes.FaceAssignments {
		var cluster sql.NullString
		if clusterID != "" {
			cluster = sql.NullString{String: clusterID, Valid: true}
		}
		result, err := tx.ExecContext(ctx,
			"UPDATE faces SET cluster_id = $1 WHERE id = $2", cluster, faceID)
		if isPQError(err, pqForeignKeyViolation) {
			return fmt.Errorf("face %d assigned to unknown cluster %s: %w",
				faceID, clusterID, database.ErrReference)
		}
		if err != nil {
			return fmt.Errorf("assign face %d: %w", faceID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("face %d: %w", faceID, database.ErrNotFound)
		}
	}

	for _, id := range changes.DeletedClusterIDs {
		if _, err := tx.ExecContext(ctx, "DELETE FROM clusters WHERE id = $1", id); err != nil {
			return fmt.Errorf("delete cluster %s: %w", id, err)
		}
	}

	for _, u := range changes.ClusterUpdates {
		_, err := tx.ExecContext(ctx, `
			UPDATE clusters
			SET face_count = $1, photo_count = $2, thumbnail_face_id = $3, thumbnail_photo_id = $4
			WHERE id = $5
		`, u.FaceCount, u.PhotoCount, nullInt64(u.ThumbnailFaceID), nullString(u.ThumbnailPhotoID), u.ID)
		if err != nil {
			return fmt.Errorf("update cluster %s: %w", u.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM photo_clusters"); err != nil {
		return fmt.Errorf("clear junction: %w", err)
	}
	for _, link := range changes.Links {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO photo_clusters (photo_id, cluster_id, face_count, is_primary)
			VALUES ($1, $2, $3, $4)
		`, link.PhotoID, link.ClusterID, link.FaceCount, link.IsPrimary)
		if err != nil {
			return fmt.Errorf("insert junction row %s/%s: %w", link.PhotoID, link.ClusterID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reconciliation: %w", err)
	}
	return nil
}

// Reset destroys all clusters, faces and junction rows. Photos are kept.
func (r *ClusterRepository) Reset(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, "TRUNCATE photo_clusters, faces, clusters RESTART IDENTITY")
	if err != nil {
		return fmt.Errorf("reset cluster state: %w", err)
	}
	return nil
}

// scanCluster reads one cluster row via the given scan function.
func scanCluster(scan func(...any) error) (*database.Cluster, error) {
	var cluster database.Cluster
	var thumbFace sql.NullInt64
	var thumbPhoto sql.NullString

	err := scan(&cluster.ID, &cluster.Name, &cluster.FaceCount, &cluster.PhotoCount,
		&thumbFace, &thumbPhoto, &cluster.CreatedAt)
	if err != nil {
		return nil, err
	}
	if thumbFace.Valid {
		cluster.ThumbnailFaceID = thumbFace.Int64
	}
	if thumbPhoto.Valid {
		cluster.ThumbnailPhotoID = thumbPhoto.String
	}
	return &cluster, nil
}

func nullInt64(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
