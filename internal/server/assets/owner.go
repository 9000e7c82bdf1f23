package assets

import "context"

// Owner kinds. Together with the entity id they key the per-owner lock.
const (
	KindUser   = "user"
	KindOffice = "office"
	KindItem   = "item"
)

// OwnerStore reads and writes the single photo reference of one kind of
// entity. A nil id means "no photo".
type OwnerStore interface {
	PhotoID(ctx context.Context, id string) (*string, error)
	SetPhotoID(ctx context.Context, id string, assetID *string) error
}

// OwnerFuncs adapts a lookup/save pair of functions to OwnerStore.
type OwnerFuncs struct {
	Lookup func(ctx context.Context, id string) (*string, error)
	Save   func(ctx context.Context, id string, assetID *string) error
}

// PhotoID calls f.Get.
func (f OwnerFuncs) PhotoID(ctx context.Context, id string) (*string, error) {
	return f.Lookup(ctx, id)
}

// SetPhotoID calls f.Set.
func (f OwnerFuncs) SetPhotoID(ctx context.Context, id string, assetID *string) error {
	return f.Save(ctx, id, assetID)
}

// Owner identifies the entity a photo hangs off.
type Owner struct {
	Kind  string
	ID    string
	Store OwnerStore
}

func (o Owner) key() string { return o.Kind + ":" + o.ID }
