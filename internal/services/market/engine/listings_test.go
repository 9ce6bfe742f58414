package engine

import (
	"context"
	"math/rand"
	"testing"

	apperrors "github.com/Sreddy08840/agri-connect-sub002/internal/platform/errors"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/audit"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/domain/listing"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/domain/money"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/realtime"
)

func indexed(t *testing.T, eng testEngine, term string) bool {
	t.Helper()
	docs, err := eng.SearchListings(context.Background(), term, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	return len(docs) > 0
}

// Trusted owner, zero images: auto-approval is denied and the listing walks
// the full review loop, with the index tracking visibility at every step.
func TestListingReviewLoopKeepsIndexConsistent(t *testing.T) {
	eng := newTestEngine(t, nil)
	ctx := context.Background()

	created, err := eng.CreateListing(ctx, trusted, createInput("Alphonso Mangoes", 20, 0))
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	if created.Status != listing.StatusPendingReview {
		t.Fatalf("expected auto-approval denied without images, got %q", created.Status)
	}
	if indexed(t, eng, "alphonso") {
		t.Fatal("expected pending listing to stay out of the index")
	}

	approved, err := eng.ApproveListing(ctx, reviewer, created.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != listing.StatusApproved {
		t.Fatalf("expected approved, got %q", approved.Status)
	}
	if !indexed(t, eng, "alphonso") {
		t.Fatal("expected approved listing in the index")
	}

	edited, err := eng.EditListing(ctx, trusted, created.ID, listing.EditInput{
		Name:        "Alphonso Mangoes",
		Description: "new price",
		Price:       money.MustParse("39.00"),
		Stock:       20,
		MinOrderQty: 1,
		CategoryID:  "fruit",
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if edited.Status != listing.StatusPendingReview {
		t.Fatalf("expected edit to re-enter review, got %q", edited.Status)
	}
	if indexed(t, eng, "alphonso") {
		t.Fatal("expected edited listing removed from the index")
	}
}

func TestAutoApprovedListingTaggedDistinctly(t *testing.T) {
	eng := newTestEngine(t, nil)
	ctx := context.Background()

	created, err := eng.CreateListing(ctx, trusted, createInput("Kesar Mangoes", 20, 2))
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	if created.Status != listing.StatusApproved {
		t.Fatalf("expected auto-approval, got %q", created.Status)
	}
	if !indexed(t, eng, "kesar") {
		t.Fatal("expected auto-approved listing in the index")
	}

	trail, err := eng.AuditTrail(ctx, "listing", created.ID, 10)
	if err != nil {
		t.Fatalf("audit trail: %v", err)
	}
	if len(trail) != 1 || trail[0].Tag != audit.TagListingAutoApproved {
		t.Fatalf("expected distinct auto-approval tag, got %+v", trail)
	}

	// A reviewer-approved listing carries the plain approval tag.
	manual, err := eng.CreateListing(ctx, seller, createInput("Basmati Rice", 20, 0))
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	if _, err := eng.ApproveListing(ctx, reviewer, manual.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	trail, err = eng.AuditTrail(ctx, "listing", manual.ID, 10)
	if err != nil {
		t.Fatalf("audit trail: %v", err)
	}
	if trail[0].Tag != audit.TagListingApproved {
		t.Fatalf("expected reviewer approval tag, got %q", trail[0].Tag)
	}
}

func TestRejectRequiresReasonAndNotifiesOwner(t *testing.T) {
	eng := newTestEngine(t, nil)
	ctx := context.Background()

	created, err := eng.CreateListing(ctx, seller, createInput("Okra", 20, 0))
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}

	if _, err := eng.RejectListing(ctx, reviewer, created.ID, "  "); !apperrors.IsCode(err, apperrors.CodeListingRejectionReason) {
		t.Fatalf("expected mandatory reason error, got %v", err)
	}

	sink := &eventSink{}
	eng.hub.Subscribe(realtime.OwnerChannel(seller.ID), sink)

	rejected, err := eng.RejectListing(ctx, reviewer, created.ID, "photos too dark")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.RejectionReason != "photos too dark" {
		t.Fatalf("expected stored reason, got %q", rejected.RejectionReason)
	}

	events := sink.byType(realtime.EventListingStatus)
	if len(events) != 1 || events[0].Payload["reason"] != "photos too dark" {
		t.Fatalf("expected owner notification with reason, got %+v", events)
	}
}

func TestSellerCannotApprove(t *testing.T) {
	eng := newTestEngine(t, nil)
	ctx := context.Background()

	created, err := eng.CreateListing(ctx, seller, createInput("Coriander", 20, 0))
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	if _, err := eng.ApproveListing(ctx, seller, created.ID); !apperrors.IsCode(err, apperrors.CodeTransitionForbiddenRole) {
		t.Fatalf("expected forbidden role, got %v", err)
	}
}

func TestOwnershipEnforcedOnMutations(t *testing.T) {
	eng := newTestEngine(t, nil)
	ctx := context.Background()

	created, err := eng.CreateListing(ctx, seller, createInput("Peanuts", 20, 0))
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}

	intruder := Actor{ID: "seller-2", Role: seller.Role}
	if _, err := eng.AdjustStock(ctx, intruder, created.ID, 5); !apperrors.IsCode(err, apperrors.CodeTransitionForbiddenRole) {
		t.Fatalf("expected ownership rejection, got %v", err)
	}
	if err := eng.DeleteListing(ctx, intruder, created.ID); !apperrors.IsCode(err, apperrors.CodeTransitionForbiddenRole) {
		t.Fatalf("expected ownership rejection, got %v", err)
	}
}

func TestDeleteListingRemovesIndexDocument(t *testing.T) {
	eng := newTestEngine(t, nil)
	ctx := context.Background()

	created, err := eng.CreateListing(ctx, trusted, createInput("Jaggery Blocks", 20, 1))
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	if !indexed(t, eng, "jaggery") {
		t.Fatal("expected listing indexed")
	}
	if err := eng.DeleteListing(ctx, trusted, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if indexed(t, eng, "jaggery") {
		t.Fatal("expected index document removed")
	}
	if _, err := eng.GetListing(ctx, created.ID); !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFeatureListingRules(t *testing.T) {
	eng := newTestEngine(t, nil)
	ctx := context.Background()

	created, err := eng.CreateListing(ctx, trusted, createInput("Sweet Corn", 20, 1))
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}

	if _, err := eng.FeatureListing(ctx, seller, created.ID, true); !apperrors.IsCode(err, apperrors.CodeTransitionForbiddenRole) {
		t.Fatalf("expected reviewer-only, got %v", err)
	}

	featured, err := eng.FeatureListing(ctx, reviewer, created.ID, true)
	if err != nil {
		t.Fatalf("feature: %v", err)
	}
	if !featured.Featured {
		t.Fatal("expected featured flag set")
	}

	// Dropping to the low-stock threshold clears featured placement.
	sink := &eventSink{}
	eng.hub.Subscribe(realtime.OwnerChannel(seller.ID), sink)
	low, err := eng.AdjustStock(ctx, trusted, created.ID, -16)
	if err != nil {
		t.Fatalf("adjust stock: %v", err)
	}
	if low.Featured {
		t.Fatal("expected featured cleared at low stock")
	}
	if events := sink.byType(realtime.EventListingLowStock); len(events) != 1 {
		t.Fatalf("expected low stock event, got %+v", sink.events)
	}

	if _, err := eng.FeatureListing(ctx, reviewer, created.ID, true); !apperrors.IsCode(err, apperrors.CodeListingInvalidStock) {
		t.Fatalf("expected low-stock featuring rejection, got %v", err)
	}
}

// Property: after any sequence of lifecycle operations, index membership is
// exactly "status == approved".
func TestVisibilityInvariantUnderRandomOperations(t *testing.T) {
	eng := newTestEngine(t, nil)
	ctx := context.Background()

	created, err := eng.CreateListing(ctx, seller, createInput("Cardamom Pods", 50, 0))
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}

	rng := rand.New(rand.NewSource(1))
	for step := range 60 {
		switch rng.Intn(4) {
		case 0:
			_, _ = eng.ApproveListing(ctx, reviewer, created.ID)
		case 1:
			_, _ = eng.RejectListing(ctx, reviewer, created.ID, "random rejection")
		case 2:
			_, _ = eng.EditListing(ctx, seller, created.ID, listing.EditInput{
				Name:        "Cardamom Pods",
				Description: "batch",
				Price:       money.MustParse("99.00"),
				Stock:       50,
				MinOrderQty: 1,
				CategoryID:  "spice",
			})
		case 3:
			_, _ = eng.PublishListing(ctx, seller, created.ID)
		}

		current, err := eng.GetListing(ctx, created.ID)
		if err != nil {
			t.Fatalf("step %d: get listing: %v", step, err)
		}
		want := current.Status == listing.StatusApproved
		if got := indexed(t, eng, "cardamom"); got != want {
			t.Fatalf("step %d: status %q but indexed=%v", step, current.Status, got)
		}
	}
}
