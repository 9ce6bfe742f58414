// Package payments defines the boundary to the external payment collaborator.
// Capture and settlement live outside the engine; the workflow only needs an
// authorization verdict before an order moves to confirmed.
package payments

import (
	"context"
	"strings"

	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/domain/money"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/domain/order"
)

// Authorization describes one payment authorization request.
type Authorization struct {
	OrderID string
	BuyerID string
	Method  order.PaymentMethod
	Amount  money.Amount
}

// Result is the gateway verdict. A declined authorization is a normal
// business outcome, not an error.
type Result struct {
	Authorized bool
	Reference  string
	Reason     string
}

// Gateway authorizes buyer payments.
type Gateway interface {
	Authorize(ctx context.Context, req Authorization) (Result, error)
}

// StaticGateway is the in-process gateway used until a real processor is
// wired. Cash on delivery always authorizes; card and UPI authorize unless
// the buyer id appears in the configured decline list.
type StaticGateway struct {
	DeclinedBuyers map[string]string
}

// Authorize implements Gateway.
func (g *StaticGateway) Authorize(_ context.Context, req Authorization) (Result, error) {
	if req.Method == order.PaymentCashOnDelivery {
		return Result{Authorized: true, Reference: "cod:" + req.OrderID}, nil
	}
	if g != nil {
		if reason, declined := g.DeclinedBuyers[strings.TrimSpace(req.BuyerID)]; declined {
			return Result{Reason: reason}, nil
		}
	}
	return Result{Authorized: true, Reference: "auth:" + req.OrderID}, nil
}
