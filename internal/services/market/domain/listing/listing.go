// Package listing holds the seller listing entity and its review lifecycle rules.
package listing

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/Sreddy08840/agri-connect-sub002/internal/platform/errors"
	"github.com/Sreddy08840/agri-connect-sub002/internal/platform/id"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/domain/money"
)

// DefaultLowStockThreshold is the stock level at or below which a listing
// loses its featured placement and a low-stock event is emitted.
const DefaultLowStockThreshold = 5

var (
	// ErrEmptyName indicates a missing listing name.
	ErrEmptyName = apperrors.New(apperrors.CodeListingNameEmpty, "listing name is required")
	// ErrInvalidPrice indicates a non-positive listing price.
	ErrInvalidPrice = apperrors.New(apperrors.CodeListingInvalidPrice, "listing price must be positive")
	// ErrInvalidStock indicates a negative stock quantity.
	ErrInvalidStock = apperrors.New(apperrors.CodeListingInvalidStock, "listing stock must not be negative")
	// ErrInvalidMinOrderQty indicates a non-positive minimum order quantity.
	ErrInvalidMinOrderQty = apperrors.New(apperrors.CodeListingInvalidMinQty, "minimum order quantity must be positive")
	// ErrEmptyRejectionReason indicates a reviewer rejection without a reason.
	ErrEmptyRejectionReason = apperrors.New(apperrors.CodeListingRejectionReason, "rejection reason is required")
)

// ImageRef references an externally stored listing image.
// File handling itself lives outside the engine.
type ImageRef struct {
	URL string
	Alt string
}

// Listing represents a product offered by a seller.
type Listing struct {
	ID          string
	OwnerID     string
	Name        string
	Description string
	Price       money.Amount
	Stock       int
	MinOrderQty int
	CategoryID  string
	Images      []ImageRef
	Featured    bool
	Status      Status
	// RejectionReason carries the most recent reviewer rejection rationale.
	// Cleared when the listing re-enters review.
	RejectionReason string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	// Version increments on every persisted mutation for optimistic locking.
	Version int64
}

// CreateInput describes the fields needed to create a listing.
type CreateInput struct {
	OwnerID     string
	Name        string
	Description string
	Price       money.Amount
	Stock       int
	MinOrderQty int
	CategoryID  string
	Images      []ImageRef
	// Publish submits the listing for review immediately instead of keeping
	// it in draft.
	Publish bool
}

// EditInput describes an owner edit of listing content.
type EditInput struct {
	Name        string
	Description string
	Price       money.Amount
	Stock       int
	MinOrderQty int
	CategoryID  string
	Images      []ImageRef
}

// NormalizeCreateInput trims and validates listing creation fields.
func NormalizeCreateInput(input CreateInput) (CreateInput, error) {
	input.OwnerID = strings.TrimSpace(input.OwnerID)
	if input.OwnerID == "" {
		return CreateInput{}, apperrors.New(apperrors.CodeActorEmptyID, "listing owner id is required")
	}
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return CreateInput{}, ErrEmptyName
	}
	input.Description = strings.TrimSpace(input.Description)
	input.CategoryID = strings.TrimSpace(input.CategoryID)
	if !input.Price.IsPositive() {
		return CreateInput{}, ErrInvalidPrice
	}
	if input.Stock < 0 {
		return CreateInput{}, ErrInvalidStock
	}
	if input.MinOrderQty <= 0 {
		return CreateInput{}, ErrInvalidMinOrderQty
	}
	return input, nil
}

// Create builds a new listing. The initial status is decided by the caller
// from the auto-decision outcome: draft when unpublished, pending review when
// published, approved when the auto-decision rule allowed skipping review.
func Create(input CreateInput, initial Status, now func() time.Time, idGenerator func() (string, error)) (Listing, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateInput(input)
	if err != nil {
		return Listing{}, err
	}

	listingID, err := idGenerator()
	if err != nil {
		return Listing{}, fmt.Errorf("generate listing id: %w", err)
	}

	createdAt := now().UTC()
	return Listing{
		ID:          listingID,
		OwnerID:     normalized.OwnerID,
		Name:        normalized.Name,
		Description: normalized.Description,
		Price:       normalized.Price,
		Stock:       normalized.Stock,
		MinOrderQty: normalized.MinOrderQty,
		CategoryID:  normalized.CategoryID,
		Images:      normalized.Images,
		Status:      initial,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}, nil
}

// ApplyStatus records a validated status change and updates timestamps.
// Transition legality is the transition registry's responsibility; ApplyStatus
// only maintains the entity's bookkeeping for a change that was already
// accepted.
func ApplyStatus(l Listing, target Status, rejectionReason string, now func() time.Time) (Listing, error) {
	if now == nil {
		now = time.Now
	}
	if target == StatusRejected {
		rejectionReason = strings.TrimSpace(rejectionReason)
		if rejectionReason == "" {
			return Listing{}, ErrEmptyRejectionReason
		}
		l.RejectionReason = rejectionReason
	}
	if target == StatusPendingReview {
		l.RejectionReason = ""
	}
	l.Status = target
	l.UpdatedAt = now().UTC()
	return l, nil
}

// ApplyEdit replaces listing content with the owner's edit. Approval is tied
// to the exact content last reviewed, so the caller re-submits approved or
// rejected listings for review after a successful edit.
func ApplyEdit(l Listing, input EditInput, now func() time.Time) (Listing, error) {
	if now == nil {
		now = time.Now
	}
	normalized, err := NormalizeCreateInput(CreateInput{
		OwnerID:     l.OwnerID,
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		Stock:       input.Stock,
		MinOrderQty: input.MinOrderQty,
		CategoryID:  input.CategoryID,
		Images:      input.Images,
	})
	if err != nil {
		return Listing{}, err
	}

	l.Name = normalized.Name
	l.Description = normalized.Description
	l.Price = normalized.Price
	l.Stock = normalized.Stock
	l.MinOrderQty = normalized.MinOrderQty
	l.CategoryID = normalized.CategoryID
	l.Images = normalized.Images
	l.UpdatedAt = now().UTC()
	return applyStockRules(l), nil
}

// StockSignal describes the stock condition after an adjustment.
type StockSignal int

const (
	// StockOK indicates stock above the low threshold.
	StockOK StockSignal = iota
	// StockLow indicates stock at or below the low threshold.
	StockLow
	// StockOut indicates stock exhausted.
	StockOut
)

// AdjustStock applies a stock delta and enforces the featured-flag rule:
// featured placement is cleared whenever stock reaches zero or falls to the
// low-stock threshold.
func AdjustStock(l Listing, delta int, now func() time.Time) (Listing, StockSignal, error) {
	if now == nil {
		now = time.Now
	}
	next := l.Stock + delta
	if next < 0 {
		return Listing{}, StockOK, apperrors.WithMetadata(
			apperrors.CodeOrderInsufficientStock,
			fmt.Sprintf("insufficient stock for listing %s: have %d, need %d", l.ID, l.Stock, -delta),
			map[string]string{"ListingID": l.ID, "Available": fmt.Sprintf("%d", l.Stock)},
		)
	}
	l.Stock = next
	l.UpdatedAt = now().UTC()
	l = applyStockRules(l)
	return l, StockCondition(l.Stock), nil
}

// StockCondition classifies a stock quantity against the low threshold.
func StockCondition(stock int) StockSignal {
	switch {
	case stock == 0:
		return StockOut
	case stock <= DefaultLowStockThreshold:
		return StockLow
	default:
		return StockOK
	}
}

func applyStockRules(l Listing) Listing {
	if l.Stock <= DefaultLowStockThreshold {
		l.Featured = false
	}
	return l
}
