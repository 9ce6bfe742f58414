package engine

import (
	"context"
	"fmt"

	apperrors "github.com/Sreddy08840/agri-connect-sub002/internal/platform/errors"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/audit"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/domain/listing"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/domain/transition"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/realtime"
)

// CreateListing creates a listing for the acting seller. Published listings
// run the auto-decision rule: trusted sellers with at least one image skip
// review and land directly in approved.
func (e *Engine) CreateListing(ctx context.Context, actor Actor, input listing.CreateInput) (listing.Listing, error) {
	start := e.clock()
	if err := requireRole(actor, transition.RoleSeller); err != nil {
		return listing.Listing{}, err
	}
	input.OwnerID = actor.ID

	initial := listing.StatusDraft
	autoApproved := false
	if input.Publish {
		initial = listing.StatusPendingReview
		if listing.Decide(input, actor.Trusted) {
			initial = listing.StatusApproved
			autoApproved = true
		}
	}

	created, err := listing.Create(input, initial, e.clock, nil)
	if err != nil {
		e.observeTransition("listing", "rejected", start)
		return listing.Listing{}, err
	}
	if err := e.store.PutListing(ctx, created); err != nil {
		return listing.Listing{}, mapStorageError(err, "listing", created.ID)
	}

	tag := audit.TagListingCreated
	note := ""
	if autoApproved {
		tag = audit.TagListingAutoApproved
		note = "review skipped by auto-decision"
	}
	tasks := []effectTask{
		{name: "audit", run: func(ctx context.Context) error {
			return e.record(ctx, audit.Entry{
				EntityKind: string(transition.KindListing),
				EntityID:   created.ID,
				Tag:        tag,
				ActorID:    actor.ID,
				ActorRole:  string(actor.Role),
				ToStatus:   string(created.Status),
				After:      created,
				Note:       note,
			})
		}},
	}
	if created.Status == listing.StatusApproved {
		tasks = append(tasks, effectTask{name: "search", run: func(ctx context.Context) error {
			return e.search.Sync(ctx, created)
		}})
	}
	if created.Status == listing.StatusPendingReview {
		tasks = append(tasks,
			effectTask{name: "cache", run: func(ctx context.Context) error {
				return e.invalidateCount(ctx, keyPendingListings)
			}},
			effectTask{name: "fanout", run: func(ctx context.Context) error {
				e.publish(realtime.Event{
					Type:    realtime.EventListingSubmitted,
					Channel: realtime.ReviewersChannel,
					Payload: map[string]string{"listing_id": created.ID, "owner_id": created.OwnerID},
				})
				return nil
			}},
		)
	}
	e.runEffects(ctx, tasks)
	e.observeTransition("listing", "allowed", start)
	return created, nil
}

// PublishListing submits a draft for review.
func (e *Engine) PublishListing(ctx context.Context, actor Actor, listingID string) (listing.Listing, error) {
	current, err := e.loadOwnedListing(ctx, actor, listingID)
	if err != nil {
		return listing.Listing{}, err
	}
	return e.transitionListing(ctx, actor, current, listing.StatusPendingReview, "", audit.TagListingSubmitted, "")
}

// ApproveListing moves a pending listing to approved. Reviewer only.
func (e *Engine) ApproveListing(ctx context.Context, actor Actor, listingID string) (listing.Listing, error) {
	current, err := e.loadListing(ctx, listingID)
	if err != nil {
		return listing.Listing{}, err
	}
	return e.transitionListing(ctx, actor, current, listing.StatusApproved, "", audit.TagListingApproved, "")
}

// RejectListing moves a pending listing to rejected with a mandatory reason.
func (e *Engine) RejectListing(ctx context.Context, actor Actor, listingID, reason string) (listing.Listing, error) {
	current, err := e.loadListing(ctx, listingID)
	if err != nil {
		return listing.Listing{}, err
	}
	return e.transitionListing(ctx, actor, current, listing.StatusRejected, reason, audit.TagListingRejected, reason)
}

// EditListing replaces listing content. Approval is tied to the content that
// was reviewed, so editing an approved or rejected listing re-enters review;
// drafts stay drafts.
func (e *Engine) EditListing(ctx context.Context, actor Actor, listingID string, input listing.EditInput) (listing.Listing, error) {
	start := e.clock()
	current, err := e.loadOwnedListing(ctx, actor, listingID)
	if err != nil {
		return listing.Listing{}, err
	}

	edited, err := listing.ApplyEdit(current, input, e.clock)
	if err != nil {
		e.observeTransition("listing", "rejected", start)
		return listing.Listing{}, err
	}

	reenterReview := current.Status == listing.StatusApproved || current.Status == listing.StatusRejected
	if reenterReview {
		decision := transition.Validate(transition.KindListing, string(current.Status), string(listing.StatusPendingReview), actor.Role)
		if !decision.Allowed {
			e.observeTransition("listing", "rejected", start)
			return listing.Listing{}, decision.Err
		}
		edited, err = listing.ApplyStatus(edited, listing.StatusPendingReview, "", e.clock)
		if err != nil {
			return listing.Listing{}, err
		}
	}

	updated, err := e.store.UpdateListing(ctx, edited)
	if err != nil {
		return listing.Listing{}, mapStorageError(err, "listing", listingID)
	}

	tasks := []effectTask{
		{name: "audit", run: func(ctx context.Context) error {
			return e.record(ctx, audit.Entry{
				EntityKind: string(transition.KindListing),
				EntityID:   updated.ID,
				Tag:        audit.TagListingEdited,
				ActorID:    actor.ID,
				ActorRole:  string(actor.Role),
				FromStatus: string(current.Status),
				ToStatus:   string(updated.Status),
				Before:     current,
				After:      updated,
			})
		}},
		{name: "search", run: func(ctx context.Context) error {
			return e.search.Sync(ctx, updated)
		}},
	}
	if reenterReview {
		tasks = append(tasks,
			effectTask{name: "cache", run: func(ctx context.Context) error {
				return e.invalidateCount(ctx, keyPendingListings)
			}},
			effectTask{name: "fanout", run: func(ctx context.Context) error {
				e.publish(realtime.Event{
					Type:    realtime.EventListingSubmitted,
					Channel: realtime.ReviewersChannel,
					Payload: map[string]string{"listing_id": updated.ID, "owner_id": updated.OwnerID},
				})
				return nil
			}},
		)
	}
	e.runEffects(ctx, tasks)
	e.observeTransition("listing", "allowed", start)
	return updated, nil
}

// DeleteListing removes the listing and its search document. Owner only.
func (e *Engine) DeleteListing(ctx context.Context, actor Actor, listingID string) error {
	current, err := e.loadOwnedListing(ctx, actor, listingID)
	if err != nil {
		return err
	}
	if err := e.store.DeleteListing(ctx, listingID); err != nil {
		return mapStorageError(err, "listing", listingID)
	}

	e.runEffects(ctx, []effectTask{
		{name: "audit", run: func(ctx context.Context) error {
			return e.record(ctx, audit.Entry{
				EntityKind: string(transition.KindListing),
				EntityID:   current.ID,
				Tag:        audit.TagListingDeleted,
				ActorID:    actor.ID,
				ActorRole:  string(actor.Role),
				FromStatus: string(current.Status),
				Before:     current,
			})
		}},
		{name: "search", run: func(ctx context.Context) error {
			return e.search.Delete(ctx, listingID)
		}},
		{name: "cache", run: func(ctx context.Context) error {
			return e.invalidateCount(ctx, keyPendingListings)
		}},
	})
	return nil
}

// AdjustStock applies a stock delta outside the order flow (restock or manual
// correction). Featured placement clears when stock reaches the low threshold.
func (e *Engine) AdjustStock(ctx context.Context, actor Actor, listingID string, delta int) (listing.Listing, error) {
	current, err := e.loadOwnedListing(ctx, actor, listingID)
	if err != nil {
		return listing.Listing{}, err
	}

	adjusted, signal, err := listing.AdjustStock(current, delta, e.clock)
	if err != nil {
		return listing.Listing{}, err
	}
	updated, err := e.store.UpdateListing(ctx, adjusted)
	if err != nil {
		return listing.Listing{}, mapStorageError(err, "listing", listingID)
	}

	tasks := []effectTask{
		{name: "audit", run: func(ctx context.Context) error {
			return e.record(ctx, audit.Entry{
				EntityKind: string(transition.KindListing),
				EntityID:   updated.ID,
				Tag:        audit.TagListingStockChanged,
				ActorID:    actor.ID,
				ActorRole:  string(actor.Role),
				Before:     current,
				After:      updated,
				Note:       fmt.Sprintf("stock %d -> %d", current.Stock, updated.Stock),
			})
		}},
	}
	if event := stockEvent(updated, signal); event != nil {
		tasks = append(tasks, effectTask{name: "fanout", run: func(ctx context.Context) error {
			e.publish(*event)
			return nil
		}})
	}
	e.runEffects(ctx, tasks)
	return updated, nil
}

// FeatureListing toggles featured placement. Reviewer only; only approved
// listings with healthy stock may be featured.
func (e *Engine) FeatureListing(ctx context.Context, actor Actor, listingID string, featured bool) (listing.Listing, error) {
	if err := requireRole(actor, transition.RoleReviewer); err != nil {
		return listing.Listing{}, err
	}
	current, err := e.loadListing(ctx, listingID)
	if err != nil {
		return listing.Listing{}, err
	}
	if featured {
		if current.Status != listing.StatusApproved {
			return listing.Listing{}, apperrors.WithMetadata(
				apperrors.CodeListingNotOrderable,
				"only approved listings may be featured",
				map[string]string{"ListingID": listingID, "Status": string(current.Status)},
			)
		}
		if listing.StockCondition(current.Stock) != listing.StockOK {
			return listing.Listing{}, apperrors.WithMetadata(
				apperrors.CodeListingInvalidStock,
				"cannot feature a listing at or below the low-stock threshold",
				map[string]string{"ListingID": listingID},
			)
		}
	}

	current.Featured = featured
	current.UpdatedAt = e.clock().UTC()
	updated, err := e.store.UpdateListing(ctx, current)
	if err != nil {
		return listing.Listing{}, mapStorageError(err, "listing", listingID)
	}

	e.runEffects(ctx, []effectTask{
		{name: "audit", run: func(ctx context.Context) error {
			return e.record(ctx, audit.Entry{
				EntityKind: string(transition.KindListing),
				EntityID:   updated.ID,
				Tag:        audit.TagListingFeatured,
				ActorID:    actor.ID,
				ActorRole:  string(actor.Role),
				After:      updated,
				Note:       fmt.Sprintf("featured=%v", featured),
			})
		}},
	})
	return updated, nil
}

// transitionListing runs the validator-gated listing status change shared by
// publish, approve, reject, and edit resubmission.
func (e *Engine) transitionListing(ctx context.Context, actor Actor, current listing.Listing, target listing.Status, rejectionReason, tag, note string) (listing.Listing, error) {
	start := e.clock()

	decision := transition.Validate(transition.KindListing, string(current.Status), string(target), actor.Role)
	if !decision.Allowed {
		e.observeTransition("listing", "rejected", start)
		return listing.Listing{}, decision.Err
	}

	next, err := listing.ApplyStatus(current, target, rejectionReason, e.clock)
	if err != nil {
		e.observeTransition("listing", "rejected", start)
		return listing.Listing{}, err
	}
	updated, err := e.store.UpdateListing(ctx, next)
	if err != nil {
		return listing.Listing{}, mapStorageError(err, "listing", current.ID)
	}

	tasks := []effectTask{
		{name: "audit", run: func(ctx context.Context) error {
			return e.record(ctx, audit.Entry{
				EntityKind: string(transition.KindListing),
				EntityID:   updated.ID,
				Tag:        tag,
				ActorID:    actor.ID,
				ActorRole:  string(actor.Role),
				FromStatus: string(current.Status),
				ToStatus:   string(updated.Status),
				Before:     current,
				After:      updated,
				Note:       note,
			})
		}},
	}
	for _, effect := range decision.Effects {
		switch effect {
		case transition.EffectReindex:
			tasks = append(tasks, effectTask{name: "search", run: func(ctx context.Context) error {
				return e.search.Sync(ctx, updated)
			}})
		case transition.EffectInvalidateCount:
			tasks = append(tasks, effectTask{name: "cache", run: func(ctx context.Context) error {
				return e.invalidateCount(ctx, keyPendingListings)
			}})
		case transition.EffectNotifyOwner:
			tasks = append(tasks, effectTask{name: "fanout", run: func(ctx context.Context) error {
				payload := map[string]string{"listing_id": updated.ID, "status": string(updated.Status)}
				if updated.RejectionReason != "" {
					payload["reason"] = updated.RejectionReason
				}
				e.publish(realtime.Event{
					Type:    realtime.EventListingStatus,
					Channel: realtime.OwnerChannel(updated.OwnerID),
					Payload: payload,
				})
				return nil
			}})
		case transition.EffectNotifyReviewers:
			tasks = append(tasks, effectTask{name: "fanout", run: func(ctx context.Context) error {
				e.publish(realtime.Event{
					Type:    realtime.EventListingSubmitted,
					Channel: realtime.ReviewersChannel,
					Payload: map[string]string{"listing_id": updated.ID, "owner_id": updated.OwnerID},
				})
				return nil
			}})
		}
	}
	e.runEffects(ctx, tasks)
	e.observeTransition("listing", "allowed", start)
	return updated, nil
}

func (e *Engine) loadListing(ctx context.Context, listingID string) (listing.Listing, error) {
	current, err := e.store.GetListing(ctx, listingID)
	if err != nil {
		return listing.Listing{}, mapStorageError(err, "listing", listingID)
	}
	return current, nil
}

func (e *Engine) loadOwnedListing(ctx context.Context, actor Actor, listingID string) (listing.Listing, error) {
	if err := requireRole(actor, transition.RoleSeller); err != nil {
		return listing.Listing{}, err
	}
	current, err := e.loadListing(ctx, listingID)
	if err != nil {
		return listing.Listing{}, err
	}
	if current.OwnerID != actor.ID {
		return listing.Listing{}, apperrors.WithMetadata(
			apperrors.CodeTransitionForbiddenRole,
			"actor does not own this listing",
			map[string]string{"ListingID": listingID},
		)
	}
	return current, nil
}

// stockEvent maps a stock signal to its fan-out event, if any.
func stockEvent(l listing.Listing, signal listing.StockSignal) *realtime.Event {
	switch signal {
	case listing.StockLow:
		return &realtime.Event{
			Type:    realtime.EventListingLowStock,
			Channel: realtime.OwnerChannel(l.OwnerID),
			Payload: map[string]string{"listing_id": l.ID, "stock": fmt.Sprintf("%d", l.Stock)},
		}
	case listing.StockOut:
		return &realtime.Event{
			Type:    realtime.EventListingOutOfStock,
			Channel: realtime.OwnerChannel(l.OwnerID),
			Payload: map[string]string{"listing_id": l.ID},
		}
	default:
		return nil
	}
}
