package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/lostfound/internal/filex"
	"github.com/dmitrijs2005/lostfound/internal/server/models"
)

// LocalStore keeps blobs under a root directory. Writes go to a temp file
// first and are renamed into place, so readers never see partial content.
type LocalStore struct {
	root string
	now  func() time.Time
}

// NewLocalStore creates root and its tmp directory if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	abs, err := filex.EnsureDir(root)
	if err != nil {
		return nil, fmt.Errorf("local blob root: %w", err)
	}
	if _, err := filex.EnsureDir(filepath.Join(abs, "tmp")); err != nil {
		return nil, err
	}
	return &LocalStore{root: abs, now: time.Now}, nil
}

// Put writes content to a temp file and renames it into place, so a key is
// either complete or absent.
func (s *LocalStore) Put(ctx context.Context, content []byte, contentType models.ContentType) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Join(s.root, "tmp"), "put-*")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(content); err != nil {
		cleanup()
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", err
	}

	key := NewKey(s.now(), contentType)
	dst, err := s.pathFromKey(key)
	if err != nil {
		cleanup()
		return "", err
	}
	if _, err := filex.EnsureDir(filepath.Dir(dst)); err != nil {
		cleanup()
		return "", err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		cleanup()
		return "", err
	}

	return key, nil
}

// Get opens the file behind key. A missing file is ErrNotFound.
func (s *LocalStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.pathFromKey(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// Delete removes a blob. Missing files are ignored.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.pathFromKey(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStore) pathFromKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("blob key is required")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("blob key must be relative")
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid blob key")
	}
	return filepath.Join(s.root, clean), nil
}
