// Package search maintains the listing search index and keeps it consistent
// with listing visibility: only approved listings are discoverable.
package search

import (
	"context"
	"fmt"

	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/domain/listing"
)

// Document is one indexed listing projection.
type Document struct {
	ListingID string `json:"listing_id"`
	Name      string `json:"name"`
	Desc      string `json:"description"`
	Category  string `json:"category"`
}

// Index stores listing documents for full-text lookup.
type Index interface {
	Upsert(ctx context.Context, doc Document) error
	Remove(ctx context.Context, listingID string) error
	Search(ctx context.Context, query string, limit int) ([]Document, error)
	Close() error
}

// DocumentFromListing projects a listing into its search document.
func DocumentFromListing(l listing.Listing) Document {
	return Document{
		ListingID: l.ID,
		Name:      l.Name,
		Desc:      l.Description,
		Category:  l.CategoryID,
	}
}

// Synchronizer reconciles the index with a listing's current state.
type Synchronizer struct {
	index Index
}

// NewSynchronizer creates an index synchronizer.
func NewSynchronizer(index Index) *Synchronizer {
	return &Synchronizer{index: index}
}

// Sync upserts the listing's document when the listing is discoverable and
// removes it otherwise, so the index never serves drafts, pending listings,
// or rejections.
func (s *Synchronizer) Sync(ctx context.Context, l listing.Listing) error {
	if s == nil || s.index == nil {
		return nil
	}
	if l.Status.IsDiscoverable() {
		if err := s.index.Upsert(ctx, DocumentFromListing(l)); err != nil {
			return fmt.Errorf("upsert search document %s: %w", l.ID, err)
		}
		return nil
	}
	if err := s.index.Remove(ctx, l.ID); err != nil {
		return fmt.Errorf("remove search document %s: %w", l.ID, err)
	}
	return nil
}

// Delete removes the listing's document regardless of status.
func (s *Synchronizer) Delete(ctx context.Context, listingID string) error {
	if s == nil || s.index == nil {
		return nil
	}
	if err := s.index.Remove(ctx, listingID); err != nil {
		return fmt.Errorf("remove search document %s: %w", listingID, err)
	}
	return nil
}

// Search queries the index directly.
func (s *Synchronizer) Search(ctx context.Context, query string, limit int) ([]Document, error) {
	if s == nil || s.index == nil {
		return nil, nil
	}
	return s.index.Search(ctx, query, limit)
}
