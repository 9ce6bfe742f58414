package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/domain/listing"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/domain/money"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/domain/order"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/storage"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "market.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func sampleListing(id string, now time.Time) listing.Listing {
	return listing.Listing{
		ID:          id,
		OwnerID:     "owner-1",
		Name:        "Alphonso Mangoes",
		Description: "tree-ripened",
		Price:       money.MustParse("42.50"),
		Stock:       20,
		MinOrderQty: 1,
		CategoryID:  "fruit",
		Images:      []listing.ImageRef{{URL: "https://img.example/m.jpg", Alt: "crate"}},
		Status:      listing.StatusPendingReview,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestPutGetListing(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	want := sampleListing("lst-1", now)
	if err := store.PutListing(ctx, want); err != nil {
		t.Fatalf("put listing: %v", err)
	}

	got, err := store.GetListing(ctx, "lst-1")
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if got.Name != want.Name || got.OwnerID != want.OwnerID {
		t.Fatalf("unexpected listing: %+v", got)
	}
	if !got.Price.Equal(want.Price) {
		t.Fatalf("expected price %s, got %s", want.Price, got.Price)
	}
	if got.Status != listing.StatusPendingReview {
		t.Fatalf("expected pending review, got %q", got.Status)
	}
	if got.Version != 1 {
		t.Fatalf("expected version 1, got %d", got.Version)
	}
	if len(got.Images) != 1 || got.Images[0].URL != want.Images[0].URL {
		t.Fatalf("unexpected images: %+v", got.Images)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("expected created at %v, got %v", now, got.CreatedAt)
	}

	if _, err := store.GetListing(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateListingVersionConflict(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	if err := store.PutListing(ctx, sampleListing("lst-1", now)); err != nil {
		t.Fatalf("put listing: %v", err)
	}

	first, err := store.GetListing(ctx, "lst-1")
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	second := first

	first.Status = listing.StatusApproved
	updated, err := store.UpdateListing(ctx, first)
	if err != nil {
		t.Fatalf("first update: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("expected version 2, got %d", updated.Version)
	}

	// The second writer still holds version 1 and must lose.
	second.Status = listing.StatusRejected
	if _, err := store.UpdateListing(ctx, second); !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	got, err := store.GetListing(ctx, "lst-1")
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if got.Status != listing.StatusApproved {
		t.Fatalf("expected first writer's status to stick, got %q", got.Status)
	}

	missing := first
	missing.ID = "missing"
	if _, err := store.UpdateListing(ctx, missing); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found for missing id, got %v", err)
	}
}

func TestDeleteListing(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	if err := store.PutListing(ctx, sampleListing("lst-1", now)); err != nil {
		t.Fatalf("put listing: %v", err)
	}
	if err := store.DeleteListing(ctx, "lst-1"); err != nil {
		t.Fatalf("delete listing: %v", err)
	}
	if _, err := store.GetListing(ctx, "lst-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := store.DeleteListing(ctx, "lst-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestListListingsByOwnerNewestFirst(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"lst-old", "lst-mid", "lst-new"} {
		l := sampleListing(id, now.Add(time.Duration(i)*time.Minute))
		if err := store.PutListing(ctx, l); err != nil {
			t.Fatalf("put listing %s: %v", id, err)
		}
	}
	other := sampleListing("lst-other", now)
	other.OwnerID = "owner-2"
	if err := store.PutListing(ctx, other); err != nil {
		t.Fatalf("put other listing: %v", err)
	}

	listings, err := store.ListListingsByOwner(ctx, "owner-1", 10)
	if err != nil {
		t.Fatalf("list listings: %v", err)
	}
	if len(listings) != 3 {
		t.Fatalf("expected 3 listings, got %d", len(listings))
	}
	if listings[0].ID != "lst-new" || listings[2].ID != "lst-old" {
		t.Fatalf("expected newest first, got %s..%s", listings[0].ID, listings[2].ID)
	}
}

func TestCountListingsByStatus(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	pending := sampleListing("lst-1", now)
	approved := sampleListing("lst-2", now)
	approved.Status = listing.StatusApproved
	for _, l := range []listing.Listing{pending, approved} {
		if err := store.PutListing(ctx, l); err != nil {
			t.Fatalf("put listing: %v", err)
		}
	}

	count, err := store.CountListingsByStatus(ctx, listing.StatusPendingReview)
	if err != nil {
		t.Fatalf("count listings: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 pending listing, got %d", count)
	}
}

func sampleOrder(id string, now time.Time) order.Order {
	return order.Order{
		ID:        id,
		Reference: order.NewReference(id),
		BuyerID:   "buyer-1",
		SellerID:  "seller-1",
		Status:    order.StatusPlaced,
		Items: []order.LineItem{
			{ListingID: "lst-1", Name: "Alphonso Mangoes", Quantity: 3, UnitPrice: money.MustParse("42.50")},
		},
		Total:         money.MustParse("127.50"),
		PaymentMethod: order.PaymentCashOnDelivery,
		Delivery:      order.Address{Line1: "14 Canal Road", City: "Nashik"},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestPutGetUpdateOrder(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	if err := store.PutOrder(ctx, sampleOrder("ord-1", now)); err != nil {
		t.Fatalf("put order: %v", err)
	}

	got, err := store.GetOrder(ctx, "ord-1")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.Status != order.StatusPlaced || got.Version != 1 {
		t.Fatalf("unexpected order: status=%q version=%d", got.Status, got.Version)
	}
	if !got.Total.Equal(money.MustParse("127.50")) {
		t.Fatalf("expected total 127.50, got %s", got.Total)
	}
	if len(got.Items) != 1 || !got.Items[0].UnitPrice.Equal(money.MustParse("42.50")) {
		t.Fatalf("unexpected items: %+v", got.Items)
	}
	if got.Delivery.City != "Nashik" {
		t.Fatalf("unexpected delivery: %+v", got.Delivery)
	}

	got.Status = order.StatusConfirmed
	updated, err := store.UpdateOrder(ctx, got)
	if err != nil {
		t.Fatalf("update order: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("expected version 2, got %d", updated.Version)
	}

	// Stale version loses.
	stale := got
	stale.Status = order.StatusCancelled
	if _, err := store.UpdateOrder(ctx, stale); !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
}

func TestListOrdersByParty(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	asBuyer := sampleOrder("ord-1", now)
	asSeller := sampleOrder("ord-2", now.Add(time.Minute))
	asSeller.BuyerID = "buyer-2"
	asSeller.SellerID = "buyer-1"
	unrelated := sampleOrder("ord-3", now)
	unrelated.BuyerID = "buyer-9"
	unrelated.SellerID = "seller-9"
	for _, o := range []order.Order{asBuyer, asSeller, unrelated} {
		if err := store.PutOrder(ctx, o); err != nil {
			t.Fatalf("put order %s: %v", o.ID, err)
		}
	}

	orders, err := store.ListOrdersByParty(ctx, "buyer-1", 10)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	if orders[0].ID != "ord-2" {
		t.Fatalf("expected newest first, got %s", orders[0].ID)
	}
}

func TestAuditAppendAndListNewestFirst(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	records := []storage.AuditRecord{
		{ID: "aud-1", EntityKind: "listing", EntityID: "lst-1", Tag: "listing.created", ActorID: "owner-1", ActorRole: "seller", ToStatus: "pending_review", CreatedAt: now},
		{ID: "aud-2", EntityKind: "listing", EntityID: "lst-1", Tag: "listing.approved", ActorID: "rev-1", ActorRole: "reviewer", FromStatus: "pending_review", ToStatus: "approved", CreatedAt: now.Add(time.Minute)},
		{ID: "aud-other", EntityKind: "order", EntityID: "ord-1", Tag: "order.placed", CreatedAt: now},
	}
	for _, record := range records {
		if err := store.AppendAudit(ctx, record); err != nil {
			t.Fatalf("append audit %s: %v", record.ID, err)
		}
	}

	got, err := store.ListAuditByEntity(ctx, "listing", "lst-1", 10)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].Tag != "listing.approved" || got[1].Tag != "listing.created" {
		t.Fatalf("expected newest first, got %s, %s", got[0].Tag, got[1].Tag)
	}
}

func TestMessagesChronologicalHistory(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"msg-1", "msg-2", "msg-3"} {
		record := storage.MessageRecord{
			ID:        id,
			Channel:   "dm:buyer-1|seller-1",
			SenderID:  "buyer-1",
			Body:      "hello " + id,
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		}
		if err := store.AppendMessage(ctx, record); err != nil {
			t.Fatalf("append message %s: %v", id, err)
		}
	}

	history, err := store.ListMessagesByChannel(ctx, "dm:buyer-1|seller-1", 2)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history))
	}
	if history[0].ID != "msg-2" || history[1].ID != "msg-3" {
		t.Fatalf("expected latest messages in chronological order, got %s, %s", history[0].ID, history[1].ID)
	}
}
