// Package audit records the append-only trail of market state changes.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sreddy08840/agri-connect-sub002/internal/platform/id"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/storage"
)

// Audit tags for listing lifecycle actions.
const (
	TagListingCreated      = "listing.created"
	TagListingSubmitted    = "listing.submitted"
	TagListingAutoApproved = "listing.auto_approved"
	TagListingApproved     = "listing.approved"
	TagListingRejected     = "listing.rejected"
	TagListingEdited       = "listing.edited"
	TagListingDeleted      = "listing.deleted"
	TagListingStockChanged = "listing.stock_changed"
	TagListingFeatured     = "listing.featured"
)

// Audit tags for order lifecycle actions.
const (
	TagOrderPlaced     = "order.placed"
	TagOrderTransition = "order.transition"
)

// Entry describes one state change to record. Before and After are entity
// snapshots serialized to JSON by the recorder; either may be nil.
type Entry struct {
	EntityKind string
	EntityID   string
	Tag        string
	ActorID    string
	ActorRole  string
	FromStatus string
	ToStatus   string
	Before     any
	After      any
	Note       string
}

// Recorder appends audit records to durable storage.
type Recorder struct {
	store       storage.AuditStore
	clock       func() time.Time
	idGenerator func() (string, error)
}

// NewRecorder creates an audit recorder backed by the given store.
func NewRecorder(store storage.AuditStore) *Recorder {
	return &Recorder{store: store, clock: time.Now, idGenerator: id.NewID}
}

// Record appends one audit record and returns its id. It is a no-op when the
// recorder or its store is nil.
func (r *Recorder) Record(ctx context.Context, entry Entry) (string, error) {
	if r == nil || r.store == nil {
		return "", nil
	}

	recordID, err := r.idGenerator()
	if err != nil {
		return "", fmt.Errorf("generate audit record id: %w", err)
	}

	beforeJSON, err := encodeSnapshot(entry.Before)
	if err != nil {
		return "", fmt.Errorf("encode audit before snapshot: %w", err)
	}
	afterJSON, err := encodeSnapshot(entry.After)
	if err != nil {
		return "", fmt.Errorf("encode audit after snapshot: %w", err)
	}

	record := storage.AuditRecord{
		ID:         recordID,
		EntityKind: entry.EntityKind,
		EntityID:   entry.EntityID,
		Tag:        entry.Tag,
		ActorID:    entry.ActorID,
		ActorRole:  entry.ActorRole,
		FromStatus: entry.FromStatus,
		ToStatus:   entry.ToStatus,
		BeforeJSON: beforeJSON,
		AfterJSON:  afterJSON,
		Note:       entry.Note,
		CreatedAt:  r.clock().UTC(),
	}
	if err := r.store.AppendAudit(ctx, record); err != nil {
		return "", fmt.Errorf("append audit record: %w", err)
	}
	return recordID, nil
}

// ListByEntity returns the audit trail for one entity, most recent first.
func (r *Recorder) ListByEntity(ctx context.Context, entityKind, entityID string, limit int) ([]storage.AuditRecord, error) {
	if r == nil || r.store == nil {
		return nil, nil
	}
	return r.store.ListAuditByEntity(ctx, entityKind, entityID, limit)
}

func encodeSnapshot(value any) (string, error) {
	if value == nil {
		return "", nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
