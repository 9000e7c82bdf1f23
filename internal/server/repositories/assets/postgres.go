package assets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/lostfound/internal/common"
	"github.com/dmitrijs2005/lostfound/internal/dbx"
	"github.com/dmitrijs2005/lostfound/internal/server/models"
)

// PostgresRepository stores AssetRecords in the assets table.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository returns a repository bound to the provided DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts rec. The id is generated by the caller.
func (r *PostgresRepository) Create(ctx context.Context, rec *models.AssetRecord) error {
	query :=
		`INSERT INTO assets (id, external_key, content_type, display_name, size_bytes, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 `

	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.ExternalKey, string(rec.ContentType), rec.DisplayName, rec.Size, rec.UploadedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

// Get returns common.ErrorNotFound when no record has the id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.AssetRecord, error) {
	if err := dbx.CheckID(id); err != nil {
		return nil, err
	}
	query :=
		`SELECT id, external_key, content_type, display_name, size_bytes, uploaded_at
		 FROM assets WHERE id = $1
		 `

	rec := &models.AssetRecord{}
	var contentType string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID, &rec.ExternalKey, &contentType, &rec.DisplayName, &rec.Size, &rec.UploadedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	rec.ContentType = models.ContentType(contentType)

	return rec, nil
}

// Delete removes the record. Deleting a missing record is not an error.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if dbx.CheckID(id) != nil {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM assets WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	return nil
}

// ListUnreferenced returns records uploaded before the cutoff that no user,
// office or found item points at.
func (r *PostgresRepository) ListUnreferenced(ctx context.Context, uploadedBefore time.Time) ([]*models.AssetRecord, error) {
	query :=
		`SELECT a.id, a.external_key, a.content_type, a.display_name, a.size_bytes, a.uploaded_at
		 FROM assets a
		 WHERE a.uploaded_at < $1
		   AND NOT EXISTS (SELECT 1 FROM users u WHERE u.photo_id = a.id)
		   AND NOT EXISTS (SELECT 1 FROM offices o WHERE o.photo_id = a.id)
		   AND NOT EXISTS (SELECT 1 FROM found_items i WHERE i.photo_id = a.id)
		 ORDER BY a.uploaded_at
		 `

	rows, err := r.db.QueryContext(ctx, query, uploadedBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to select assets: %w", err)
	}
	defer rows.Close()

	var result []*models.AssetRecord
	for rows.Next() {
		rec := &models.AssetRecord{}
		var contentType string
		if err := rows.Scan(&rec.ID, &rec.ExternalKey, &contentType, &rec.DisplayName, &rec.Size, &rec.UploadedAt); err != nil {
			return nil, err
		}
		rec.ContentType = models.ContentType(contentType)
		result = append(result, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
