// Package items persists the photo reference and ownership of found items.
package items

import "context"

// Repository exposes a found item's photo reference and its reporter.
type Repository interface {
	PhotoID(ctx context.Context, id string) (*string, error)
	SetPhotoID(ctx context.Context, id string, assetID *string) error
	OwnerOf(ctx context.Context, id string) (string, error)
	FindByPhotoID(ctx context.Context, assetID string) (id string, owner string, err error)
}
