package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/lostfound/internal/common"
	"github.com/dmitrijs2005/lostfound/internal/logging"
	"github.com/dmitrijs2005/lostfound/internal/server/auth"
	"github.com/dmitrijs2005/lostfound/internal/server/models"
	"github.com/dmitrijs2005/lostfound/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAuthenticator accepts "Bearer <subject>" for a fixed set of subjects.
type fakeAuthenticator struct {
	principals map[string]auth.Principal
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, header string) (auth.Principal, error) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return auth.Principal{}, common.ErrInvalidToken
	}
	p, ok := f.principals[token]
	if !ok {
		return auth.Principal{}, common.ErrInvalidToken
	}
	return p, nil
}

type fakeUsers struct {
	registerErr error
	lastPatch   models.UserPatch
}

func (f *fakeUsers) Register(_ context.Context, in services.RegisterInput) (*models.User, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &models.User{ID: "u-" + in.UserName, UserName: in.UserName, Roles: []string{"USER"}}, nil
}

func (f *fakeUsers) Login(_ context.Context, userName, password string) (string, error) {
	if userName == "alice" && password == "pw" {
		return "jwt-alice", nil
	}
	return "", common.ErrInvalidCredentials
}

func (f *fakeUsers) ChangePassword(_ context.Context, _ auth.Principal, oldPassword, _ string) error {
	if oldPassword != "pw" {
		return common.ErrInvalidCredentials
	}
	return nil
}

func (f *fakeUsers) Me(_ context.Context, p auth.Principal) (*models.User, error) {
	return &models.User{ID: p.Subject, UserName: p.Subject, Roles: []string{"USER"}}, nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, p auth.Principal, userID string, patch models.UserPatch) (*models.User, error) {
	if p.Subject != userID && !p.Elevated() {
		return nil, common.ErrNotAllowed
	}
	if patch.UserName != nil && strings.HasPrefix(*patch.UserName, "admin") && !p.Elevated() {
		return nil, common.ErrUsernameForbidden
	}
	f.lastPatch = patch
	u := &models.User{ID: userID, UserName: userID}
	if patch.Name != nil {
		u.Name = *patch.Name
	}
	return u, nil
}

func (f *fakeUsers) DeleteUser(_ context.Context, p auth.Principal, userID string) error {
	if p.Subject != userID && !p.Elevated() {
		return common.ErrNotAllowed
	}
	return nil
}

type fakePhotos struct {
	mu      sync.Mutex
	content map[string][]byte
	types   map[string]models.ContentType
	owners  map[string]string
	seq     int
	failErr error
}

func newFakePhotos() *fakePhotos {
	return &fakePhotos{content: map[string][]byte{}, types: map[string]models.ContentType{}, owners: map[string]string{}}
}

func (f *fakePhotos) Replace(_ context.Context, p auth.Principal, kind, id string, content []byte, contentType, name string) (*models.AssetRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	if p.Subject != id && !p.Elevated() {
		return nil, common.ErrNotAllowed
	}
	ct, err := models.ParseContentType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrUnsupportedContentType, err)
	}
	f.seq++
	assetID := fmt.Sprintf("a-%d", f.seq)
	f.content[assetID] = content
	f.types[assetID] = ct
	f.owners[assetID] = id
	return &models.AssetRecord{ID: assetID, ContentType: ct, DisplayName: name, Size: int64(len(content)), UploadedAt: time.Now()}, nil
}

func (f *fakePhotos) Remove(_ context.Context, p auth.Principal, _, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	if p.Subject != id && !p.Elevated() {
		return common.ErrNotAllowed
	}
	return nil
}

func (f *fakePhotos) DeleteAsset(_ context.Context, p auth.Principal, assetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	owner := f.owners[assetID]
	if owner == "" || (p.Subject != owner && !p.Elevated()) {
		return common.ErrNotAllowed
	}
	delete(f.content, assetID)
	delete(f.owners, assetID)
	return nil
}

func (f *fakePhotos) Fetch(_ context.Context, assetID string) (*models.AssetRecord, io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, nil, f.failErr
	}
	b, ok := f.content[assetID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %w", common.ErrAssetNotFound, common.ErrorNotFound)
	}
	return &models.AssetRecord{ID: assetID, ContentType: f.types[assetID], Size: int64(len(b))}, io.NopCloser(bytes.NewReader(b)), nil
}

type fakeHealth struct{ err error }

func (f *fakeHealth) PingContext(context.Context) error { return f.err }

type testServer struct {
	handler http.Handler
	users   *fakeUsers
	photos  *fakePhotos
	health  *fakeHealth
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	a := &fakeAuthenticator{principals: map[string]auth.Principal{
		"alice": {Subject: "alice", Roles: []auth.Role{auth.RoleUser}},
		"bob":   {Subject: "bob", Roles: []auth.Role{auth.RoleUser}},
		"carol": {Subject: "carol", Roles: []auth.Role{auth.RoleAdmin}},
	}}
	ts := &testServer{users: &fakeUsers{}, photos: newFakePhotos(), health: &fakeHealth{}}
	s := NewServer(":0", a, ts.users, ts.photos, ts.health, 64, logging.NewNopLogger())
	ts.handler = s.Handler()
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path, token string, body any) *http.Request {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func photoRequest(method, path, token, contentType string, content []byte) *http.Request {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="photo"; filename="pic"`)
	h.Set("Content-Type", contentType)
	part, _ := w.CreatePart(h)
	_, _ = part.Write(content)
	_ = w.Close()

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	ts.health.err = errors.New("db down")
	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(jsonRequest(http.MethodPost, "/api/auth/register", "", registerRequest{UserName: "alice", Password: "pw", Mail: "alice@example.com"}))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "u-alice", decode[userResponse](t, rec).ID)

	ts.users.registerErr = common.ErrUsernameTaken
	rec = ts.do(jsonRequest(http.MethodPost, "/api/auth/register", "", registerRequest{UserName: "alice", Password: "pw", Mail: "alice@example.com"}))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(jsonRequest(http.MethodPost, "/api/auth/login", "", loginRequest{UserName: "alice", Password: "pw"}))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[loginResponse](t, rec)
	assert.Equal(t, "jwt-alice", resp.Token)
	assert.Equal(t, "Bearer", resp.TokenType)

	rec = ts.do(jsonRequest(http.MethodPost, "/api/auth/login", "", loginRequest{UserName: "alice", Password: "nope"}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic alice", http.StatusUnauthorized},
		{"lowercase scheme", "bearer alice", http.StatusUnauthorized},
		{"unknown token", "Bearer mallory", http.StatusUnauthorized},
		{"valid", "Bearer alice", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := ts.do(req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Equal(t, "invalid token", decode[errorResponse](t, rec).Error)
			}
		})
	}
}

func TestUpdateProfileAndDelete(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(jsonRequest(http.MethodPatch, "/api/users/alice", "bob", map[string]string{"name": "x"}))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(jsonRequest(http.MethodPatch, "/api/users/alice", "alice", map[string]string{"name": "Alice"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alice", decode[userResponse](t, rec).Name)
	require.NotNil(t, ts.users.lastPatch.Name)
	assert.Nil(t, ts.users.lastPatch.Country)

	rec = ts.do(jsonRequest(http.MethodPatch, "/api/users/alice", "alice", map[string]string{"username": "adminAlice"}))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, common.ErrUsernameForbidden.Error(), decode[errorResponse](t, rec).Error)

	rec = ts.do(jsonRequest(http.MethodDelete, "/api/users/alice", "carol", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(jsonRequest(http.MethodPut, "/api/auth/password", "alice", changePasswordRequest{OldPassword: "bad", NewPassword: "x"}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPhotoUploadFetchDelete(t *testing.T) {
	ts := newTestServer(t)
	png := []byte("\x89PNG fake")

	rec := ts.do(photoRequest(http.MethodPut, "/api/users/alice/photo", "alice", "image/png", png))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	asset := decode[assetResponse](t, rec)
	assert.Equal(t, "image/png", asset.ContentType)
	assert.Equal(t, "/api/photos/"+asset.ID, asset.URL)

	// fetching is public
	rec = ts.do(httptest.NewRequest(http.MethodGet, asset.URL, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, png, rec.Body.Bytes())

	rec = ts.do(jsonRequest(http.MethodDelete, asset.URL, "bob", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(jsonRequest(http.MethodDelete, asset.URL, "carol", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(httptest.NewRequest(http.MethodGet, asset.URL, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPhotoUploadErrors(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(photoRequest(http.MethodPut, "/api/offices/alice/photo", "alice", "application/pdf", []byte("%PDF")))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = ts.do(photoRequest(http.MethodPut, "/api/items/alice/photo", "alice", "image/png", bytes.Repeat([]byte("x"), 65)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = ts.do(jsonRequest(http.MethodPut, "/api/items/alice/photo", "alice", map[string]string{}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(photoRequest(http.MethodPut, "/api/users/alice/photo", "", "image/png", []byte("x")))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(photoRequest(http.MethodPut, "/api/users/alice/photo", "bob", "image/png", []byte("x")))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(jsonRequest(http.MethodDelete, "/api/offices/alice/photo", "alice", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	ts := newTestServer(t)
	ts.photos.failErr = fmt.Errorf("%w: dial tcp 10.0.0.7:9000: connection refused", common.ErrUploadFailed)

	rec := ts.do(photoRequest(http.MethodPut, "/api/users/alice/photo", "alice", "image/png", []byte("x")))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[errorResponse](t, rec)
	assert.Equal(t, "upload failed", body.Error)
	assert.NotContains(t, rec.Body.String(), "10.0.0.7")

	ts.photos.failErr = fmt.Errorf("%w: s3 timeout", common.ErrDeletionFailed)
	rec = ts.do(jsonRequest(http.MethodDelete, "/api/users/alice/photo", "alice", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "deletion failed", decode[errorResponse](t, rec).Error)

	ts.photos.failErr = errors.New("pq: connection reset")
	rec = ts.do(jsonRequest(http.MethodDelete, "/api/users/alice/photo", "alice", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, http.StatusText(http.StatusInternalServerError), decode[errorResponse](t, rec).Error)

	ts.photos.failErr = fmt.Errorf("%w: timeout", common.ErrAssetUnavailable)
	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/photos/a-1", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
