// Package blob stores photo bytes under opaque keys. Two backends exist: an
// S3-compatible object store and a local directory tree.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/lostfound/internal/server/models"
	"github.com/google/uuid"
)

// ErrNotFound is returned by Get when the key has no object.
var ErrNotFound = errors.New("blob not found")

// Store is what the asset lifecycle needs from a byte store.
//
// Put is all-or-nothing: a failed Put leaves no object visible under the
// returned key. Delete of a missing key succeeds.
type Store interface {
	Put(ctx context.Context, content []byte, contentType models.ContentType) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// NewKey builds a fresh key of the form photos/<y>/<m>/<d>/<uuid><ext>.
// Keys are never reused, so a deleted photo's key cannot resurface.
func NewKey(now time.Time, contentType models.ContentType) string {
	return fmt.Sprintf("photos/%d/%d/%d/%v%s", now.Year(), now.Month(), now.Day(), uuid.New(), contentType.Extension())
}
