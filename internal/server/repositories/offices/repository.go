// Package offices persists the photo reference and ownership of offices.
package offices

import "context"

// Repository exposes an office's photo reference and its creator.
type Repository interface {
	PhotoID(ctx context.Context, id string) (*string, error)
	SetPhotoID(ctx context.Context, id string, assetID *string) error
	OwnerOf(ctx context.Context, id string) (string, error)
	FindByPhotoID(ctx context.Context, assetID string) (id string, owner string, err error)
}
