// Package order holds the order entity and its fulfillment lifecycle rules.
package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/Sreddy08840/agri-connect-sub002/internal/platform/errors"
	"github.com/Sreddy08840/agri-connect-sub002/internal/platform/id"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/domain/money"
)

// PaymentMethod identifies how the buyer intends to settle the order.
// Capture and settlement happen in an external payment collaborator.
type PaymentMethod string

const (
	PaymentUnspecified    PaymentMethod = ""
	PaymentCashOnDelivery PaymentMethod = "cod"
	PaymentCard           PaymentMethod = "card"
	PaymentUPI            PaymentMethod = "upi"
)

// ParsePaymentMethod canonicalizes payment method labels.
func ParsePaymentMethod(value string) (PaymentMethod, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "cod":
		return PaymentCashOnDelivery, true
	case "card":
		return PaymentCard, true
	case "upi":
		return PaymentUPI, true
	default:
		return PaymentUnspecified, false
	}
}

var (
	// ErrNoLineItems indicates an order creation without line items.
	ErrNoLineItems = apperrors.New(apperrors.CodeOrderNoLineItems, "order requires at least one line item")
	// ErrEmptyAddress indicates a missing delivery address.
	ErrEmptyAddress = apperrors.New(apperrors.CodeOrderEmptyAddress, "delivery address is required")
	// ErrInvalidPayment indicates an unknown payment method.
	ErrInvalidPayment = apperrors.New(apperrors.CodeOrderInvalidPayment, "payment method is required")
)

// Address is the delivery address snapshot captured at order time.
// It is stored as structured columns, not re-resolved from the buyer profile.
type Address struct {
	Line1      string
	Line2      string
	City       string
	Region     string
	PostalCode string
}

func (a Address) isEmpty() bool {
	return strings.TrimSpace(a.Line1) == "" || strings.TrimSpace(a.City) == ""
}

// LineItem is one priced order line. UnitPrice is captured from the listing
// at order time and never changes afterwards, regardless of later catalog
// price updates.
type LineItem struct {
	ListingID string
	Name      string
	Quantity  int
	UnitPrice money.Amount
}

// Subtotal returns quantity times the captured unit price.
func (li LineItem) Subtotal() money.Amount {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Order represents a single transaction between a buyer and a seller.
type Order struct {
	ID string
	// Reference is the human-readable order number shown to both parties.
	Reference     string
	BuyerID       string
	SellerID      string
	Status        Status
	Items         []LineItem
	Total         money.Amount
	PaymentMethod PaymentMethod
	Delivery      Address
	CreatedAt     time.Time
	UpdatedAt     time.Time
	// Version increments on every persisted mutation for optimistic locking.
	Version int64
}

// CreateInput describes an order creation request after line items have been
// priced against their listings by the caller.
type CreateInput struct {
	BuyerID       string
	SellerID      string
	Items         []LineItem
	PaymentMethod PaymentMethod
	Delivery      Address
}

// Create builds a new order in the placed status with captured line prices
// and a computed total.
func Create(input CreateInput, now func() time.Time, idGenerator func() (string, error)) (Order, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	input.BuyerID = strings.TrimSpace(input.BuyerID)
	input.SellerID = strings.TrimSpace(input.SellerID)
	if input.BuyerID == "" || input.SellerID == "" {
		return Order{}, apperrors.New(apperrors.CodeActorEmptyID, "order buyer and seller ids are required")
	}
	if len(input.Items) == 0 {
		return Order{}, ErrNoLineItems
	}
	if input.Delivery.isEmpty() {
		return Order{}, ErrEmptyAddress
	}
	if input.PaymentMethod == PaymentUnspecified {
		return Order{}, ErrInvalidPayment
	}

	total := money.Zero()
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return Order{}, apperrors.WithMetadata(
				apperrors.CodeOrderInvalidQuantity,
				fmt.Sprintf("line item quantity must be positive for listing %s", item.ListingID),
				map[string]string{"ListingID": item.ListingID},
			)
		}
		total = total.Add(item.Subtotal())
	}

	orderID, err := idGenerator()
	if err != nil {
		return Order{}, fmt.Errorf("generate order id: %w", err)
	}

	createdAt := now().UTC()
	return Order{
		ID:            orderID,
		Reference:     NewReference(orderID),
		BuyerID:       input.BuyerID,
		SellerID:      input.SellerID,
		Status:        StatusPlaced,
		Items:         input.Items,
		Total:         total,
		PaymentMethod: input.PaymentMethod,
		Delivery:      input.Delivery,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}, nil
}

// NewReference derives the human-readable order number from the order id.
func NewReference(orderID string) string {
	suffix := orderID
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return "ORD-" + strings.ToUpper(suffix)
}

// ApplyStatus records a validated status change and updates timestamps.
// Transition legality is the transition registry's responsibility.
func ApplyStatus(o Order, target Status, now func() time.Time) Order {
	if now == nil {
		now = time.Now
	}
	o.Status = target
	o.UpdatedAt = now().UTC()
	return o
}
