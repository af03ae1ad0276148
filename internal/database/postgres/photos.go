package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/lumeo/lumeo/internal/database"
)

// pq error codes we translate into sentinel errors.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// PhotoRepository provides PostgreSQL-backed photo storage.
type PhotoRepository struct {
	pool *Pool
}

// NewPhotoRepository creates a new PostgreSQL photo repository.
func NewPhotoRepository(pool *Pool) *PhotoRepository {
	return &PhotoRepository{pool: pool}
}

// AddPhoto registers a photo record.
func (r *PhotoRepository) AddPhoto(ctx context.Context, photo database.Photo) error {
	if photo.ID == "" || photo.Path == "" {
		return fmt.Errorf("photo id and path are required: %w", database.ErrValidation)
	}
	if photo.Status == "" {
		photo.Status = database.PhotoPending
	}
	if photo.UploadedAt.IsZero() {
		photo.UploadedAt = time.Now()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO photos (id, path, uploaded_at, status)
		VALUES ($1, $2, $3, $4)
	`, photo.ID, photo.Path, photo.UploadedAt, string(photo.Status))
	if isPQError(err, pqUniqueViolation) {
		return fmt.Errorf("photo %s already registered: %w", photo.ID, database.ErrValidation)
	}
	if err != nil {
		return fmt.Errorf("insert photo: %w", err)
	}
	return nil
}

// GetPhoto retrieves a photo by id.
func (r *PhotoRepository) GetPhoto(ctx context.Context, id string) (*database.Photo, error) {
	var photo database.Photo
	var status string
	err := r.pool.QueryRow(ctx, `
		SELECT id, path, uploaded_at, status FROM photos WHERE id = $1
	`, id).Scan(&photo.ID, &photo.Path, &photo.UploadedAt, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("photo %s: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query photo: %w", err)
	}
	photo.Status = database.PhotoStatus(status)
	return &photo, nil
}

// SetPhotoStatus flips the processing status of a photo.
func (r *PhotoRepository) SetPhotoStatus(ctx context.Context, id string, status database.PhotoStatus) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE photos SET status = $1 WHERE id = $2
	`, string(status), id)
	if err != nil {
		return fmt.Errorf("update photo status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("photo %s: %w", id, database.ErrNotFound)
	}
	return nil
}

// CountPhotos returns the number of registered photos.
func (r *PhotoRepository) CountPhotos(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM photos").Scan(&count); err != nil {
		return 0, fmt.Errorf("count photos: %w", err)
	}
	return count, nil
}

// isPQError reports whether err is a pq error with the given code.
func isPQError(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}
