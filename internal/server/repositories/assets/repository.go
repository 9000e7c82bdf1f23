// Package assets persists photo metadata records.
package assets

import (
	"context"
	"time"

	"github.com/dmitrijs2005/lostfound/internal/server/models"
)

// Repository is the asset record store.
type Repository interface {
	Create(ctx context.Context, rec *models.AssetRecord) error
	Get(ctx context.Context, id string) (*models.AssetRecord, error)
	Delete(ctx context.Context, id string) error
	ListUnreferenced(ctx context.Context, uploadedBefore time.Time) ([]*models.AssetRecord, error)
}
