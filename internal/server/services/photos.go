package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/lostfound/internal/common"
	"github.com/dmitrijs2005/lostfound/internal/dbx"
	"github.com/dmitrijs2005/lostfound/internal/logging"
	"github.com/dmitrijs2005/lostfound/internal/server/assets"
	"github.com/dmitrijs2005/lostfound/internal/server/auth"
	"github.com/dmitrijs2005/lostfound/internal/server/models"
	"github.com/dmitrijs2005/lostfound/internal/server/repositories/repomanager"
)

// photoOwnerRepo is implemented by the users, offices and items repositories.
type photoOwnerRepo interface {
	assets.OwnerStore
	OwnerOf(ctx context.Context, id string) (string, error)
	FindByPhotoID(ctx context.Context, assetID string) (id string, owner string, err error)
}

// PhotoService puts the authorization check in front of the asset
// lifecycle for every kind of photo owner.
type PhotoService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	guard       Authorizer
	photos      PhotoLifecycle
	logger      logging.Logger
}

// NewPhotoService returns a PhotoService. guard decides who may change a
// photo and photos does the lifecycle work.
func NewPhotoService(db *sql.DB, m repomanager.RepositoryManager, guard Authorizer, photos PhotoLifecycle, logger logging.Logger) *PhotoService {
	return &PhotoService{
		db:          db,
		repomanager: m,
		guard:       guard,
		photos:      photos,
		logger:      logger.With("module", "photos"),
	}
}

func (s *PhotoService) repo(kind string, db dbx.DBTX) (photoOwnerRepo, error) {
	switch kind {
	case assets.KindUser:
		return s.repomanager.Users(db), nil
	case assets.KindOffice:
		return s.repomanager.Offices(db), nil
	case assets.KindItem:
		return s.repomanager.Items(db), nil
	default:
		return nil, fmt.Errorf("%w: unknown owner kind %q", common.ErrInvalidArgument, kind)
	}
}

// authorize resolves the entity's owner and runs the guard.
func (s *PhotoService) authorize(ctx context.Context, p auth.Principal, kind, id string, op auth.Operation) (assets.Owner, error) {
	repo, err := s.repo(kind, s.db)
	if err != nil {
		return assets.Owner{}, err
	}

	ownerID, err := repo.OwnerOf(ctx, id)
	if err != nil {
		return assets.Owner{}, err
	}

	if err := s.guard.Authorize(ctx, p, ownerID, op); err != nil {
		return assets.Owner{}, err
	}

	return assets.Owner{Kind: kind, ID: id, Store: repo}, nil
}

// Replace stores content as the photo of entity id of the given kind.
func (s *PhotoService) Replace(ctx context.Context, p auth.Principal, kind, id string, content []byte, contentType, displayName string) (*models.AssetRecord, error) {
	owner, err := s.authorize(ctx, p, kind, id, auth.OpReplacePhoto)
	if err != nil {
		return nil, err
	}
	return s.photos.Replace(ctx, owner, content, contentType, displayName)
}

// Remove deletes the current photo of entity id and clears its reference.
func (s *PhotoService) Remove(ctx context.Context, p auth.Principal, kind, id string) error {
	owner, err := s.authorize(ctx, p, kind, id, auth.OpDeletePhoto)
	if err != nil {
		return err
	}
	return s.photos.Detach(ctx, owner)
}

// DeleteAsset deletes a photo by its asset id. The entity referencing it
// decides who may do that; an asset nobody references is denied to
// everyone and left to orphan collection.
func (s *PhotoService) DeleteAsset(ctx context.Context, p auth.Principal, assetID string) error {
	for _, kind := range []string{assets.KindUser, assets.KindOffice, assets.KindItem} {
		repo, err := s.repo(kind, s.db)
		if err != nil {
			return err
		}

		entityID, ownerID, err := repo.FindByPhotoID(ctx, assetID)
		if errors.Is(err, common.ErrorNotFound) {
			continue
		}
		if err != nil {
			return err
		}

		if err := s.guard.Authorize(ctx, p, ownerID, auth.OpDeletePhoto); err != nil {
			return err
		}
		return s.photos.DetachAsset(ctx, assets.Owner{Kind: kind, ID: entityID, Store: repo}, assetID)
	}

	return s.guard.Authorize(ctx, p, "", auth.OpDeletePhoto)
}

// Fetch is public: anyone with the asset id may read the bytes.
func (s *PhotoService) Fetch(ctx context.Context, assetID string) (*models.AssetRecord, io.ReadCloser, error) {
	return s.photos.Fetch(ctx, assetID)
}
