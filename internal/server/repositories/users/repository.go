package users

import (
	"context"

	"github.com/dmitrijs2005/lostfound/internal/server/models"
)

// Repository is the account store. It also carries the user's photo
// reference, so it can act as an assets.OwnerStore.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	AddRole(ctx context.Context, userID, role string) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUserName(ctx context.Context, userName string) (*models.User, error)
	ExistsByUserName(ctx context.Context, userName string) (bool, error)
	ExistsByMail(ctx context.Context, mail string) (bool, error)
	UpdateProfile(ctx context.Context, id string, patch models.UserPatch) error
	UpdatePassword(ctx context.Context, id string, hash []byte) error
	Delete(ctx context.Context, id string) error

	PhotoID(ctx context.Context, id string) (*string, error)
	SetPhotoID(ctx context.Context, id string, assetID *string) error
	OwnerOf(ctx context.Context, id string) (string, error)
	FindByPhotoID(ctx context.Context, assetID string) (id string, owner string, err error)
}
