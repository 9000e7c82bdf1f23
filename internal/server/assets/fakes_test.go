package assets

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dmitrijs2005/lostfound/internal/common"
	"github.com/dmitrijs2005/lostfound/internal/server/blob"
	"github.com/dmitrijs2005/lostfound/internal/server/events"
	"github.com/dmitrijs2005/lostfound/internal/server/models"
)

type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	seq     int
	puts    int
	gets    int
	deletes int

	failPut    error
	failGet    error
	failDelete map[string]error
	blockPut   bool
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: map[string][]byte{}, failDelete: map[string]error{}}
}

func (f *fakeBlobs) Put(ctx context.Context, content []byte, _ models.ContentType) (string, error) {
	f.mu.Lock()
	f.puts++
	block, failErr := f.blockPut, f.failPut
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if failErr != nil {
		return "", failErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	key := fmt.Sprintf("photos/k%d", f.seq)
	f.objects[key] = append([]byte(nil), content...)
	return key, nil
}

func (f *fakeBlobs) Get(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.failGet != nil {
		return nil, f.failGet
	}
	b, ok := f.objects[key]
	if !ok {
		return nil, blob.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *fakeBlobs) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if err := f.failDelete[key]; err != nil {
		return err
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeBlobs) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

type fakeRecords struct {
	mu      sync.Mutex
	records map[string]*models.AssetRecord
	creates int
	deletes int

	failCreate error
	failGet    error
	failDelete error
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{records: map[string]*models.AssetRecord{}}
}

func (f *fakeRecords) Create(_ context.Context, rec *models.AssetRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.failCreate != nil {
		return f.failCreate
	}
	cp := *rec
	f.records[rec.ID] = &cp
	return nil
}

func (f *fakeRecords) Get(_ context.Context, id string) (*models.AssetRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return nil, f.failGet
	}
	rec, ok := f.records[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeRecords) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.failDelete != nil {
		return f.failDelete
	}
	delete(f.records, id)
	return nil
}

// ListUnreferenced only filters by age; ownership is not modelled here.
func (f *fakeRecords) ListUnreferenced(_ context.Context, before time.Time) ([]*models.AssetRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.AssetRecord
	for _, rec := range f.records {
		if rec.UploadedAt.Before(before) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRecords) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakeOwners struct {
	mu      sync.Mutex
	photos  map[string]*string
	lookups int
	saves   int
	failSet error
}

func newFakeOwners(ids ...string) *fakeOwners {
	f := &fakeOwners{photos: map[string]*string{}}
	for _, id := range ids {
		f.photos[id] = nil
	}
	return f
}

func (f *fakeOwners) PhotoID(_ context.Context, id string) (*string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	p, ok := f.photos[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if p == nil {
		return nil, nil
	}
	v := *p
	return &v, nil
}

func (f *fakeOwners) SetPhotoID(_ context.Context, id string, assetID *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.failSet != nil {
		return f.failSet
	}
	if _, ok := f.photos[id]; !ok {
		return common.ErrorNotFound
	}
	if assetID == nil {
		f.photos[id] = nil
		return nil
	}
	v := *assetID
	f.photos[id] = &v
	return nil
}

func (f *fakeOwners) current(id string) *string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.photos[id]
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *fakePublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}
