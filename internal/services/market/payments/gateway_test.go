package payments

import (
	"context"
	"testing"

	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/domain/money"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/domain/order"
)

func TestStaticGatewayVerdicts(t *testing.T) {
	gateway := &StaticGateway{DeclinedBuyers: map[string]string{"buyer-2": "card declined"}}

	tests := []struct {
		name     string
		buyerID  string
		method   order.PaymentMethod
		wantAuth bool
	}{
		{"cod always authorizes", "buyer-2", order.PaymentCashOnDelivery, true},
		{"card for clean buyer", "buyer-1", order.PaymentCard, true},
		{"card for declined buyer", "buyer-2", order.PaymentCard, false},
		{"upi for declined buyer", "buyer-2", order.PaymentUPI, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := gateway.Authorize(context.Background(), Authorization{
				OrderID: "ord-1",
				BuyerID: tt.buyerID,
				Method:  tt.method,
				Amount:  money.MustParse("85.00"),
			})
			if err != nil {
				t.Fatalf("authorize: %v", err)
			}
			if result.Authorized != tt.wantAuth {
				t.Fatalf("authorized = %v, want %v (reason %q)", result.Authorized, tt.wantAuth, result.Reason)
			}
			if result.Authorized && result.Reference == "" {
				t.Fatal("expected a gateway reference on authorization")
			}
			if !result.Authorized && result.Reason == "" {
				t.Fatal("expected a decline reason")
			}
		})
	}
}

func TestStaticGatewayZeroValueAuthorizes(t *testing.T) {
	var gateway StaticGateway
	result, err := gateway.Authorize(context.Background(), Authorization{
		OrderID: "ord-2",
		BuyerID: "buyer-1",
		Method:  order.PaymentUPI,
		Amount:  money.MustParse("10.00"),
	})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if !result.Authorized {
		t.Fatalf("expected authorization, got %+v", result)
	}
}
