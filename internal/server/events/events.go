// Package events publishes asset lifecycle notifications. Publishing is
// best effort: callers log failures and carry on.
package events

import (
	"context"
	"time"
)

const (
	AssetUploaded = "asset.uploaded"
	AssetDeleted  = "asset.deleted"
	AssetOrphaned = "asset.orphaned"
)

// Event describes one change to a stored photo.
type Event struct {
	Type        string    `json:"type"`
	AssetID     string    `json:"asset_id"`
	ExternalKey string    `json:"external_key,omitempty"`
	OwnerKind   string    `json:"owner_kind,omitempty"`
	OwnerID     string    `json:"owner_id,omitempty"`
	At          time.Time `json:"at"`
}

// Publisher delivers lifecycle events. Failures are logged by the caller
// and never fail the operation that produced the event.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

// Publish drops ev.
func (NopPublisher) Publish(context.Context, Event) error { return nil }
