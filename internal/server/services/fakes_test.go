package services

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/lostfound/internal/common"
	"github.com/dmitrijs2005/lostfound/internal/dbx"
	"github.com/dmitrijs2005/lostfound/internal/server/assets"
	"github.com/dmitrijs2005/lostfound/internal/server/auth"
	"github.com/dmitrijs2005/lostfound/internal/server/models"
	assetsrepo "github.com/dmitrijs2005/lostfound/internal/server/repositories/assets"
	"github.com/dmitrijs2005/lostfound/internal/server/repositories/items"
	"github.com/dmitrijs2005/lostfound/internal/server/repositories/offices"
	"github.com/dmitrijs2005/lostfound/internal/server/repositories/users"
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// fakeUsersRepo keeps users in memory. Embedding the interface makes any
// method a test does not expect panic.
type fakeUsersRepo struct {
	users.Repository

	mu        sync.Mutex
	byID      map[string]*models.User
	createErr error
	deleted   []string
}

func newFakeUsersRepo(us ...*models.User) *fakeUsersRepo {
	f := &fakeUsersRepo{byID: map[string]*models.User{}}
	for _, u := range us {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	cp := *u
	f.byID[u.ID] = &cp
	return u, nil
}

func (f *fakeUsersRepo) AddRole(_ context.Context, userID, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return common.ErrorNotFound
	}
	u.Roles = append(u.Roles, role)
	return nil
}

func (f *fakeUsersRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsersRepo) GetByUserName(_ context.Context, name string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.UserName == name {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) ExistsByUserName(ctx context.Context, name string) (bool, error) {
	_, err := f.GetByUserName(ctx, name)
	return err == nil, nil
}

func (f *fakeUsersRepo) ExistsByMail(_ context.Context, mail string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Mail == mail {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsersRepo) UpdateProfile(_ context.Context, id string, patch models.UserPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	if patch.UserName != nil {
		u.UserName = *patch.UserName
	}
	if patch.Name != nil {
		u.Name = *patch.Name
	}
	if patch.Country != nil {
		u.Country = *patch.Country
	}
	return nil
}

func (f *fakeUsersRepo) UpdatePassword(_ context.Context, id string, hash []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUsersRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.byID, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeUsersRepo) PhotoID(_ context.Context, id string) (*string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u.PhotoID, nil
}

func (f *fakeUsersRepo) SetPhotoID(_ context.Context, id string, assetID *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PhotoID = assetID
	return nil
}

func (f *fakeUsersRepo) OwnerOf(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return "", common.ErrorNotFound
	}
	return id, nil
}

func (f *fakeUsersRepo) FindByPhotoID(_ context.Context, assetID string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, u := range f.byID {
		if u.PhotoID != nil && *u.PhotoID == assetID {
			return id, id, nil
		}
	}
	return "", "", common.ErrorNotFound
}

// ownedEntity is an office or a found item as far as photos care.
type ownedEntity struct {
	owner string
	photo *string
}

type fakeOwnedRepo struct {
	mu       sync.Mutex
	entities map[string]*ownedEntity
}

func newFakeOwnedRepo() *fakeOwnedRepo {
	return &fakeOwnedRepo{entities: map[string]*ownedEntity{}}
}

func (f *fakeOwnedRepo) add(id, owner string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entities[id] = &ownedEntity{owner: owner}
}

func (f *fakeOwnedRepo) PhotoID(_ context.Context, id string) (*string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entities[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return e.photo, nil
}

func (f *fakeOwnedRepo) SetPhotoID(_ context.Context, id string, assetID *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entities[id]
	if !ok {
		return common.ErrorNotFound
	}
	e.photo = assetID
	return nil
}

func (f *fakeOwnedRepo) OwnerOf(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entities[id]
	if !ok {
		return "", common.ErrorNotFound
	}
	return e.owner, nil
}

func (f *fakeOwnedRepo) FindByPhotoID(_ context.Context, assetID string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, e := range f.entities {
		if e.photo != nil && *e.photo == assetID {
			return id, e.owner, nil
		}
	}
	return "", "", common.ErrorNotFound
}

type fakeRepoManager struct {
	users   *fakeUsersRepo
	offices *fakeOwnedRepo
	items   *fakeOwnedRepo
}

func newFakeRepoManager(us ...*models.User) *fakeRepoManager {
	return &fakeRepoManager{
		users:   newFakeUsersRepo(us...),
		offices: newFakeOwnedRepo(),
		items:   newFakeOwnedRepo(),
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return m.users }
func (m *fakeRepoManager) Offices(dbx.DBTX) offices.Repository          { return m.offices }
func (m *fakeRepoManager) Items(dbx.DBTX) items.Repository              { return m.items }
func (m *fakeRepoManager) Assets(dbx.DBTX) assetsrepo.Repository        { return nil }

type fakeTokens struct {
	subject string
	roles   []auth.Role
}

func (f *fakeTokens) Issue(subject string, roles []auth.Role) (string, error) {
	f.subject, f.roles = subject, roles
	return "token-for-" + subject, nil
}

// fakePhotos stands in for assets.Manager. It writes through the owner's
// store so reference changes are visible to the test.
type fakePhotos struct {
	mu        sync.Mutex
	seq       int
	content   map[string][]byte
	detachErr error
	calls     []string
}

func newFakePhotos() *fakePhotos {
	return &fakePhotos{content: map[string][]byte{}}
}

func (f *fakePhotos) Replace(ctx context.Context, owner assets.Owner, content []byte, contentType, _ string) (*models.AssetRecord, error) {
	ct, err := models.ParseContentType(contentType)
	if err != nil {
		return nil, common.ErrUnsupportedContentType
	}
	f.mu.Lock()
	f.seq++
	id := fmt.Sprintf("asset-%d", f.seq)
	f.content[id] = content
	f.calls = append(f.calls, "replace "+owner.Kind+":"+owner.ID)
	f.mu.Unlock()

	if err := owner.Store.SetPhotoID(ctx, owner.ID, &id); err != nil {
		return nil, err
	}
	return &models.AssetRecord{ID: id, ContentType: ct, Size: int64(len(content))}, nil
}

func (f *fakePhotos) Detach(ctx context.Context, owner assets.Owner) error {
	f.mu.Lock()
	f.calls = append(f.calls, "detach "+owner.Kind+":"+owner.ID)
	err := f.detachErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return owner.Store.SetPhotoID(ctx, owner.ID, nil)
}

func (f *fakePhotos) DetachAsset(ctx context.Context, owner assets.Owner, assetID string) error {
	f.mu.Lock()
	f.calls = append(f.calls, "detach "+owner.Kind+":"+owner.ID+" "+assetID)
	delete(f.content, assetID)
	f.mu.Unlock()
	return owner.Store.SetPhotoID(ctx, owner.ID, nil)
}

func (f *fakePhotos) Fetch(_ context.Context, assetID string) (*models.AssetRecord, io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.content[assetID]
	if !ok {
		return nil, nil, common.ErrAssetNotFound
	}
	return &models.AssetRecord{ID: assetID, ContentType: models.ContentTypePNG, Size: int64(len(b))},
		io.NopCloser(bytes.NewReader(b)), nil
}
