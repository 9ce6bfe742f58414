package engine

import (
	"context"

	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/domain/listing"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/domain/order"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/search"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/storage"
)

// openOrderStatuses are the statuses counted as in-flight work.
var openOrderStatuses = []order.Status{
	order.StatusPlaced,
	order.StatusConfirmed,
	order.StatusAccepted,
	order.StatusPacked,
	order.StatusShipped,
}

// GetListing loads one listing.
func (e *Engine) GetListing(ctx context.Context, listingID string) (listing.Listing, error) {
	return e.loadListing(ctx, listingID)
}

// GetOrder loads one order.
func (e *Engine) GetOrder(ctx context.Context, orderID string) (order.Order, error) {
	current, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return order.Order{}, mapStorageError(err, "order", orderID)
	}
	return current, nil
}

// ListingsByOwner returns a seller's listings, newest first.
func (e *Engine) ListingsByOwner(ctx context.Context, ownerID string, limit int) ([]listing.Listing, error) {
	listings, err := e.store.ListListingsByOwner(ctx, ownerID, limit)
	if err != nil {
		return nil, mapStorageError(err, "listing", "")
	}
	return listings, nil
}

// OrdersForParty returns the orders a user participates in, newest first.
func (e *Engine) OrdersForParty(ctx context.Context, partyID string, limit int) ([]order.Order, error) {
	orders, err := e.store.ListOrdersByParty(ctx, partyID, limit)
	if err != nil {
		return nil, mapStorageError(err, "order", "")
	}
	return orders, nil
}

// SearchListings queries the search index. Only approved listings are indexed.
func (e *Engine) SearchListings(ctx context.Context, query string, limit int) ([]search.Document, error) {
	return e.search.Search(ctx, query, limit)
}

// PendingReviewCount returns the moderation queue size through the count cache.
func (e *Engine) PendingReviewCount(ctx context.Context) (int, error) {
	compute := func(ctx context.Context) (int, error) {
		return e.store.CountListingsByStatus(ctx, listing.StatusPendingReview)
	}
	if e.counts == nil {
		return compute(ctx)
	}
	return e.counts.GetOrCompute(ctx, keyPendingListings, compute)
}

// OpenOrderCount returns the number of in-flight orders through the count cache.
func (e *Engine) OpenOrderCount(ctx context.Context) (int, error) {
	compute := func(ctx context.Context) (int, error) {
		total := 0
		for _, status := range openOrderStatuses {
			count, err := e.store.CountOrdersByStatus(ctx, status)
			if err != nil {
				return 0, err
			}
			total += count
		}
		return total, nil
	}
	if e.counts == nil {
		return compute(ctx)
	}
	return e.counts.GetOrCompute(ctx, keyOpenOrders, compute)
}

// AuditTrail returns the audit records for one entity, most recent first.
func (e *Engine) AuditTrail(ctx context.Context, entityKind, entityID string, limit int) ([]storage.AuditRecord, error) {
	return e.recorder.ListByEntity(ctx, entityKind, entityID, limit)
}
