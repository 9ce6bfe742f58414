// Package storage defines the persistence contracts for market state.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/domain/listing"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/domain/order"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict indicates a versioned write lost a concurrent race.
	ErrVersionConflict = errors.New("record version conflict")
)

// AuditRecord stores one immutable audit trail entry. Records are append-only:
// nothing updates or deletes them after the write.
type AuditRecord struct {
	ID         string
	EntityKind string
	EntityID   string
	// Tag names the recorded action, e.g. "listing.approved" or "order.placed".
	Tag        string
	ActorID    string
	ActorRole  string
	FromStatus string
	ToStatus   string
	// BeforeJSON and AfterJSON hold entity snapshots around the change.
	BeforeJSON string
	AfterJSON  string
	Note       string
	CreatedAt  time.Time
}

// MessageRecord stores one direct message for channel history replay.
type MessageRecord struct {
	ID        string
	Channel   string
	SenderID  string
	Body      string
	CreatedAt time.Time
}

// ListingStore persists listing state with optimistic version checks.
type ListingStore interface {
	PutListing(ctx context.Context, l listing.Listing) error
	// UpdateListing writes the listing if the stored version still matches
	// l.Version, returning the record with its incremented version. A stale
	// version yields ErrVersionConflict.
	UpdateListing(ctx context.Context, l listing.Listing) (listing.Listing, error)
	GetListing(ctx context.Context, id string) (listing.Listing, error)
	DeleteListing(ctx context.Context, id string) error
	ListListingsByOwner(ctx context.Context, ownerID string, limit int) ([]listing.Listing, error)
	CountListingsByStatus(ctx context.Context, status listing.Status) (int, error)
}

// OrderStore persists order state with optimistic version checks.
type OrderStore interface {
	PutOrder(ctx context.Context, o order.Order) error
	// UpdateOrder writes the order if the stored version still matches
	// o.Version, returning the record with its incremented version. A stale
	// version yields ErrVersionConflict.
	UpdateOrder(ctx context.Context, o order.Order) (order.Order, error)
	GetOrder(ctx context.Context, id string) (order.Order, error)
	ListOrdersByParty(ctx context.Context, partyID string, limit int) ([]order.Order, error)
	CountOrdersByStatus(ctx context.Context, status order.Status) (int, error)
}

// AuditStore persists the append-only audit trail.
type AuditStore interface {
	AppendAudit(ctx context.Context, record AuditRecord) error
	// ListAuditByEntity returns records for one entity, most recent first.
	ListAuditByEntity(ctx context.Context, entityKind, entityID string, limit int) ([]AuditRecord, error)
}

// MessageStore persists direct message history.
type MessageStore interface {
	AppendMessage(ctx context.Context, record MessageRecord) error
	// ListMessagesByChannel returns the latest messages for one channel in
	// chronological order.
	ListMessagesByChannel(ctx context.Context, channel string, limit int) ([]MessageRecord, error)
}

// Store is the full persistence surface the engine depends on.
type Store interface {
	ListingStore
	OrderStore
	AuditStore
	MessageStore
	Close() error
}
