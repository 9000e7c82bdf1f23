// Package services holds the server's business logic. Handlers call into
// it with an authenticated principal; it talks to repositories, the token
// service and the asset lifecycle manager.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/lostfound/internal/common"
	"github.com/dmitrijs2005/lostfound/internal/dbx"
	"github.com/dmitrijs2005/lostfound/internal/logging"
	"github.com/dmitrijs2005/lostfound/internal/server/assets"
	"github.com/dmitrijs2005/lostfound/internal/server/auth"
	"github.com/dmitrijs2005/lostfound/internal/server/models"
	"github.com/dmitrijs2005/lostfound/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// adminPrefix marks usernames that are registered with the ADMIN role.
const adminPrefix = "admin"

// TokenIssuer mints access tokens for a logged-in user.
type TokenIssuer interface {
	Issue(subject string, roles []auth.Role) (string, error)
}

// Authorizer decides whether p may run op on a resource owned by ownerID.
type Authorizer interface {
	Authorize(ctx context.Context, p auth.Principal, ownerID string, op auth.Operation) error
}

// PhotoLifecycle is the part of assets.Manager the services depend on.
type PhotoLifecycle interface {
	Replace(ctx context.Context, owner assets.Owner, content []byte, contentType, displayName string) (*models.AssetRecord, error)
	Detach(ctx context.Context, owner assets.Owner) error
	DetachAsset(ctx context.Context, owner assets.Owner, assetID string) error
	Fetch(ctx context.Context, assetID string) (*models.AssetRecord, io.ReadCloser, error)
}

// RegisterInput is what a new account is created from.
type RegisterInput struct {
	UserName   string
	Password   string
	Name       string
	Surname    string
	Mail       string
	Salutation string
	Country    string
}

// UserService manages accounts: registration, login, profile edits and
// deletion.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	tokens      TokenIssuer
	guard       Authorizer
	photos      PhotoLifecycle
	logger      logging.Logger
	bcryptCost  int
}

// NewUserService returns a UserService using bcrypt.DefaultCost.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, tokens TokenIssuer, guard Authorizer, photos PhotoLifecycle, logger logging.Logger) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		tokens:      tokens,
		guard:       guard,
		photos:      photos,
		logger:      logger.With("module", "users"),
		bcryptCost:  bcrypt.DefaultCost,
	}
}

// Register creates an account. Usernames starting with "admin" get the
// ADMIN role, everyone else USER.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if strings.TrimSpace(in.UserName) == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", common.ErrInvalidArgument)
	}
	if strings.TrimSpace(in.Mail) == "" {
		return nil, fmt.Errorf("%w: mail is required", common.ErrInvalidArgument)
	}

	repo := s.repomanager.Users(s.db)

	taken, err := repo.ExistsByUserName(ctx, in.UserName)
	if err != nil {
		return nil, fmt.Errorf("error checking username: %w", err)
	}
	if taken {
		return nil, common.ErrUsernameTaken
	}
	taken, err = repo.ExistsByMail(ctx, in.Mail)
	if err != nil {
		return nil, fmt.Errorf("error checking mail: %w", err)
	}
	if taken {
		return nil, common.ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	role := auth.RoleUser
	if strings.HasPrefix(in.UserName, adminPrefix) {
		role = auth.RoleAdmin
	}

	user := &models.User{
		ID:           uuid.NewString(),
		UserName:     in.UserName,
		PasswordHash: hash,
		Name:         in.Name,
		Surname:      in.Surname,
		Mail:         in.Mail,
		Salutation:   in.Salutation,
		Country:      in.Country,
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repoTx := s.repomanager.Users(tx)
		created, err := repoTx.Create(ctx, user)
		if err != nil {
			return err
		}
		if err := repoTx.AddRole(ctx, created.ID, role.String()); err != nil {
			return fmt.Errorf("error adding role: %w", err)
		}
		user = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	user.Roles = []string{role.String()}
	s.logger.Info(ctx, "user registered", "user_id", user.ID, "role", role.String())
	return user, nil
}

// Login checks the password and returns an access token whose subject is
// the user id.
func (s *UserService) Login(ctx context.Context, userName, password string) (string, error) {
	user, err := s.repomanager.Users(s.db).GetByUserName(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrInvalidCredentials
		}
		return "", fmt.Errorf("error loading user: %w", err)
	}

	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)) != nil {
		return "", common.ErrInvalidCredentials
	}

	roles, err := parseRoles(user.Roles)
	if err != nil {
		return "", err
	}

	token, err := s.tokens.Issue(user.ID, roles)
	if err != nil {
		return "", fmt.Errorf("error issuing token: %w", err)
	}
	return token, nil
}

// ChangePassword replaces the caller's own password after checking the
// current one.
func (s *UserService) ChangePassword(ctx context.Context, p auth.Principal, oldPassword, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: new password is empty", common.ErrInvalidArgument)
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByID(ctx, p.Subject)
	if err != nil {
		return err
	}

	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(oldPassword)) != nil {
		return common.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}

	return repo.UpdatePassword(ctx, user.ID, hash)
}

// Me returns the caller's own account.
func (s *UserService) Me(ctx context.Context, p auth.Principal) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, p.Subject)
}

// UpdateProfile applies patch to userID's account. Only administrators may
// hand out a username carrying the admin prefix.
func (s *UserService) UpdateProfile(ctx context.Context, p auth.Principal, userID string, patch models.UserPatch) (*models.User, error) {
	if err := s.guard.Authorize(ctx, p, userID, auth.OpUpdateProfile); err != nil {
		return nil, err
	}
	if patch.UserName != nil {
		if strings.TrimSpace(*patch.UserName) == "" {
			return nil, fmt.Errorf("%w: username is empty", common.ErrInvalidArgument)
		}
		if strings.HasPrefix(*patch.UserName, adminPrefix) && !p.Elevated() {
			return nil, common.ErrUsernameForbidden
		}
	}
	if patch.Mail != nil && strings.TrimSpace(*patch.Mail) == "" {
		return nil, fmt.Errorf("%w: mail is empty", common.ErrInvalidArgument)
	}

	repo := s.repomanager.Users(s.db)
	if err := repo.UpdateProfile(ctx, userID, patch); err != nil {
		return nil, err
	}
	return repo.GetByID(ctx, userID)
}

// DeleteUser removes the account and its photo. The photo goes first so a
// failure leaves the account in place for a retry.
func (s *UserService) DeleteUser(ctx context.Context, p auth.Principal, userID string) error {
	if err := s.guard.Authorize(ctx, p, userID, auth.OpDeleteUser); err != nil {
		return err
	}

	repo := s.repomanager.Users(s.db)
	owner := assets.Owner{Kind: assets.KindUser, ID: userID, Store: repo}
	if err := s.photos.Detach(ctx, owner); err != nil {
		return err
	}

	if err := repo.Delete(ctx, userID); err != nil {
		return err
	}

	s.logger.Info(ctx, "user deleted", "user_id", userID, "by", p.Subject)
	return nil
}

func parseRoles(tags []string) ([]auth.Role, error) {
	roles := make([]auth.Role, 0, len(tags))
	for _, t := range tags {
		r, err := auth.ParseRole(t)
		if err != nil {
			return nil, fmt.Errorf("stored role: %w", err)
		}
		roles = append(roles, r)
	}
	return roles, nil
}
