// Package photoref reads and writes the photo_id column that every
// photo-carrying table has, and resolves which user owns a row.
package photoref

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/lostfound/internal/common"
	"github.com/dmitrijs2005/lostfound/internal/dbx"
)

// PostgresRef works on one table. OwnerColumn names the column holding the
// owning user's id ("id" for the users table itself).
type PostgresRef struct {
	db          dbx.DBTX
	table       string
	ownerColumn string
}

// NewPostgresRef binds a PostgresRef to table, whose ownerColumn holds the
// owning user's id.
func NewPostgresRef(db dbx.DBTX, table, ownerColumn string) *PostgresRef {
	return &PostgresRef{db: db, table: table, ownerColumn: ownerColumn}
}

// PhotoID returns the row's current asset id, nil when it has none, or
// common.ErrorNotFound when the row does not exist.
func (r *PostgresRef) PhotoID(ctx context.Context, id string) (*string, error) {
	if err := dbx.CheckID(id); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT photo_id FROM %s WHERE id = $1`, r.table)

	var photoID sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(&photoID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if !photoID.Valid {
		return nil, nil
	}
	return &photoID.String, nil
}

// SetPhotoID stores assetID (nil clears it).
func (r *PostgresRef) SetPhotoID(ctx context.Context, id string, assetID *string) error {
	if err := dbx.CheckID(id); err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET photo_id = $2 WHERE id = $1`, r.table)

	var value any
	if assetID != nil {
		value = *assetID
	}

	res, err := r.db.ExecContext(ctx, query, id, value)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}

// OwnerOf returns the id of the user owning the row. An empty string means
// the row has no recorded owner.
func (r *PostgresRef) OwnerOf(ctx context.Context, id string) (string, error) {
	if err := dbx.CheckID(id); err != nil {
		return "", err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, r.ownerColumn, r.table)

	var owner sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(&owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}

	return owner.String, nil
}

// FindByPhotoID returns the row referencing assetID and its owner, or
// common.ErrorNotFound when no row references it.
func (r *PostgresRef) FindByPhotoID(ctx context.Context, assetID string) (id string, owner string, err error) {
	if err := dbx.CheckID(assetID); err != nil {
		return "", "", err
	}
	query := fmt.Sprintf(`SELECT id, %s FROM %s WHERE photo_id = $1 LIMIT 1`, r.ownerColumn, r.table)

	var ownerID sql.NullString
	err = r.db.QueryRowContext(ctx, query, assetID).Scan(&id, &ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", common.ErrorNotFound
		}
		return "", "", fmt.Errorf("db error: %w", err)
	}

	return id, ownerID.String, nil
}
