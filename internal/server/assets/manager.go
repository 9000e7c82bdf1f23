// Package assets owns the lifecycle of photos attached to users, offices and
// found items: validation, storage in the blob store, the metadata record
// and the owner's reference to it.
//
// Blob and record writes are not transactional. A new photo is stored
// before the old one is deleted. A blob is deleted before its record, and a
// failed blob delete keeps the record.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/lostfound/internal/common"
	"github.com/dmitrijs2005/lostfound/internal/logging"
	"github.com/dmitrijs2005/lostfound/internal/server/blob"
	"github.com/dmitrijs2005/lostfound/internal/server/events"
	"github.com/dmitrijs2005/lostfound/internal/server/locks"
	"github.com/dmitrijs2005/lostfound/internal/server/models"
	"github.com/google/uuid"
)

// RecordStore persists AssetRecords. Get returns common.ErrorNotFound for
// unknown ids; Delete of an unknown id succeeds.
type RecordStore interface {
	Create(ctx context.Context, rec *models.AssetRecord) error
	Get(ctx context.Context, id string) (*models.AssetRecord, error)
	Delete(ctx context.Context, id string) error
	ListUnreferenced(ctx context.Context, uploadedBefore time.Time) ([]*models.AssetRecord, error)
}

// Manager runs the photo lifecycle for every owner kind: upload, replace,
// delete, detach, fetch and orphan collection. Blob and record calls each run
// under the configured timeout.
type Manager struct {
	blobs     blob.Store
	records   RecordStore
	locker    locks.Locker
	publisher events.Publisher
	logger    logging.Logger
	timeout   time.Duration
	now       func() time.Time
	newID     func() string
}

// Option configures a Manager.
type Option func(*Manager)

// WithLocker serializes Upload, Replace and Detach per owner.
func WithLocker(l locks.Locker) Option {
	return func(m *Manager) { m.locker = l }
}

// WithPublisher sends lifecycle events to p. The default drops them.
func WithPublisher(p events.Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

// WithTimeout bounds every single blob or record store call.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) { m.timeout = d }
}

// WithClock overrides time.Now for upload timestamps and orphan cutoffs.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager returns a Manager over blobs and records. Without WithLocker
// concurrent replaces on one owner are last-write-wins.
func NewManager(blobs blob.Store, records RecordStore, logger logging.Logger, opts ...Option) *Manager {
	m := &Manager{
		blobs:     blobs,
		records:   records,
		publisher: events.NopPublisher{},
		logger:    logger.With("module", "assets"),
		timeout:   10 * time.Second,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func fail(kind error, err error) error {
	return fmt.Errorf("%w: %w", kind, err)
}

func (m *Manager) call(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.timeout)
}

// cleanupCtx outlives a canceled request so compensation still runs.
func (m *Manager) cleanupCtx(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func (m *Manager) lock(ctx context.Context, owner Owner) (func(), error) {
	if m.locker == nil {
		return func() {}, nil
	}
	return m.locker.Lock(ctx, owner.key())
}

func (m *Manager) publish(ctx context.Context, ev events.Event) {
	ev.At = m.now().UTC()
	if err := m.publisher.Publish(ctx, ev); err != nil {
		m.logger.Warn(ctx, "event not published", "type", ev.Type, "asset_id", ev.AssetID, "error", err)
	}
}

// Upload stores content as the owner's photo. Any photo the owner had
// before is deleted once the new one is safely recorded.
func (m *Manager) Upload(ctx context.Context, owner Owner, content []byte, contentType, displayName string) (*models.AssetRecord, error) {
	ct, err := models.ParseContentType(contentType)
	if err != nil {
		return nil, fail(common.ErrUnsupportedContentType, err)
	}

	unlock, err := m.lock(ctx, owner)
	if err != nil {
		return nil, fail(common.ErrUploadFailed, err)
	}
	defer unlock()

	previous, err := m.ownerPhoto(ctx, owner)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%s %s: %w", owner.Kind, owner.ID, err)
		}
		return nil, fail(common.ErrUploadFailed, err)
	}

	rec, err := m.store(ctx, content, ct, displayName)
	if err != nil {
		return nil, err
	}

	if previous != nil && *previous != rec.ID {
		if err := m.Delete(ctx, *previous); err != nil {
			m.logger.Error(ctx, "previous photo not deleted, rolling back new one",
				"owner", owner.key(), "previous", *previous, "asset_id", rec.ID, "error", err)
			if rbErr := m.Delete(m.cleanupCtx(ctx), rec.ID); rbErr != nil {
				m.logger.Error(ctx, "rollback failed, asset orphaned", "asset_id", rec.ID, "error", rbErr)
				m.publish(ctx, events.Event{Type: events.AssetOrphaned, AssetID: rec.ID, ExternalKey: rec.ExternalKey, OwnerKind: owner.Kind, OwnerID: owner.ID})
			}
			return nil, err
		}
	}

	if err := m.setOwnerPhoto(ctx, owner, &rec.ID); err != nil {
		// The save may have landed despite the error, so the new asset is
		// kept and left to the orphan collector.
		m.logger.Error(ctx, "owner not updated, asset orphaned",
			"owner", owner.key(), "asset_id", rec.ID, "error", err)
		m.publish(ctx, events.Event{Type: events.AssetOrphaned, AssetID: rec.ID, ExternalKey: rec.ExternalKey, OwnerKind: owner.Kind, OwnerID: owner.ID})
		return nil, fail(common.ErrUploadFailed, err)
	}

	m.logger.Info(ctx, "photo stored", "owner", owner.key(), "asset_id", rec.ID, "content_type", string(rec.ContentType), "size", rec.Size)
	m.publish(ctx, events.Event{Type: events.AssetUploaded, AssetID: rec.ID, ExternalKey: rec.ExternalKey, OwnerKind: owner.Kind, OwnerID: owner.ID})

	return rec, nil
}

// Replace is Upload for an owner that already has a photo.
func (m *Manager) Replace(ctx context.Context, owner Owner, content []byte, contentType, displayName string) (*models.AssetRecord, error) {
	return m.Upload(ctx, owner, content, contentType, displayName)
}

// store writes the blob, then the record. A failed record write removes
// the blob again.
func (m *Manager) store(ctx context.Context, content []byte, ct models.ContentType, displayName string) (*models.AssetRecord, error) {
	putCtx, cancel := m.call(ctx)
	key, err := m.blobs.Put(putCtx, content, ct)
	cancel()
	if err != nil {
		return nil, fail(common.ErrUploadFailed, err)
	}

	rec := &models.AssetRecord{
		ID:          m.newID(),
		ExternalKey: key,
		ContentType: ct,
		DisplayName: displayName,
		Size:        int64(len(content)),
		UploadedAt:  m.now().UTC(),
	}

	createCtx, cancel := m.call(ctx)
	err = m.records.Create(createCtx, rec)
	cancel()
	if err != nil {
		delCtx, cancel := m.call(m.cleanupCtx(ctx))
		if delErr := m.blobs.Delete(delCtx, key); delErr != nil {
			m.logger.Error(ctx, "blob leaked after failed record write", "key", key, "error", delErr)
		}
		cancel()
		return nil, fail(common.ErrUploadFailed, err)
	}

	return rec, nil
}

// Delete removes the blob and then the record. Unknown ids are a no-op. If
// the blob cannot be deleted the record is kept so the blob stays findable.
func (m *Manager) Delete(ctx context.Context, assetID string) error {
	getCtx, cancel := m.call(ctx)
	rec, err := m.records.Get(getCtx, assetID)
	cancel()
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return fail(common.ErrDeletionFailed, err)
	}

	delCtx, cancel := m.call(ctx)
	err = m.blobs.Delete(delCtx, rec.ExternalKey)
	cancel()
	if err != nil {
		m.logger.Warn(ctx, "blob delete failed, record kept", "asset_id", assetID, "key", rec.ExternalKey, "error", err)
		return fail(common.ErrDeletionFailed, err)
	}

	recCtx, cancel := m.call(ctx)
	err = m.records.Delete(recCtx, assetID)
	cancel()
	if err != nil {
		return fail(common.ErrDeletionFailed, err)
	}

	m.logger.Info(ctx, "photo deleted", "asset_id", assetID)
	m.publish(ctx, events.Event{Type: events.AssetDeleted, AssetID: assetID, ExternalKey: rec.ExternalKey})

	return nil
}

// Detach deletes the owner's current photo and clears the reference.
// Calling it again after a partial failure finishes the job.
func (m *Manager) Detach(ctx context.Context, owner Owner) error {
	return m.detach(ctx, owner, "")
}

// DetachAsset is Detach for a specific asset id. If the owner has since
// moved on to another photo, only assetID is deleted.
func (m *Manager) DetachAsset(ctx context.Context, owner Owner, assetID string) error {
	return m.detach(ctx, owner, assetID)
}

func (m *Manager) detach(ctx context.Context, owner Owner, assetID string) error {
	unlock, err := m.lock(ctx, owner)
	if err != nil {
		return fail(common.ErrDeletionFailed, err)
	}
	defer unlock()

	current, err := m.ownerPhoto(ctx, owner)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("%s %s: %w", owner.Kind, owner.ID, err)
		}
		return fail(common.ErrDeletionFailed, err)
	}

	if assetID != "" && (current == nil || *current != assetID) {
		return m.Delete(ctx, assetID)
	}
	if current == nil {
		return nil
	}

	if err := m.Delete(ctx, *current); err != nil {
		return err
	}

	if err := m.setOwnerPhoto(ctx, owner, nil); err != nil {
		return fail(common.ErrDeletionFailed, err)
	}

	return nil
}

// Fetch returns the record and a stream of its bytes. The caller closes
// the stream.
func (m *Manager) Fetch(ctx context.Context, assetID string) (*models.AssetRecord, io.ReadCloser, error) {
	getCtx, cancel := m.call(ctx)
	rec, err := m.records.Get(getCtx, assetID)
	cancel()
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, fail(common.ErrAssetNotFound, err)
		}
		return nil, nil, fail(common.ErrAssetUnavailable, err)
	}

	// The stream outlives this call, so the timeout is released on Close.
	streamCtx, cancel := m.call(ctx)
	body, err := m.blobs.Get(streamCtx, rec.ExternalKey)
	if err != nil {
		cancel()
		return nil, nil, fail(common.ErrAssetUnavailable, err)
	}

	return rec, &cancelOnClose{ReadCloser: body, cancel: cancel}, nil
}

// CollectOrphans deletes records (and their blobs) that no owner references
// and that are older than olderThan. It returns how many were deleted.
func (m *Manager) CollectOrphans(ctx context.Context, olderThan time.Duration) (int, error) {
	listCtx, cancel := m.call(ctx)
	orphans, err := m.records.ListUnreferenced(listCtx, m.now().Add(-olderThan))
	cancel()
	if err != nil {
		return 0, fmt.Errorf("list orphans: %w", err)
	}

	var errs []error
	deleted := 0
	for _, rec := range orphans {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := m.Delete(ctx, rec.ID); err != nil {
			errs = append(errs, fmt.Errorf("asset %s: %w", rec.ID, err))
			continue
		}
		deleted++
	}

	m.logger.Info(ctx, "orphan collection finished", "found", len(orphans), "deleted", deleted)
	return deleted, errors.Join(errs...)
}

func (m *Manager) ownerPhoto(ctx context.Context, owner Owner) (*string, error) {
	callCtx, cancel := m.call(ctx)
	defer cancel()
	return owner.Store.PhotoID(callCtx, owner.ID)
}

func (m *Manager) setOwnerPhoto(ctx context.Context, owner Owner, assetID *string) error {
	callCtx, cancel := m.call(ctx)
	defer cancel()
	return owner.Store.SetPhotoID(callCtx, owner.ID, assetID)
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
