package engine

import (
	"context"
	"fmt"

	apperrors "github.com/Sreddy08840/agri-connect-sub002/internal/platform/errors"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/audit"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/domain/listing"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/domain/order"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/domain/transition"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/payments"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/realtime"
)

// OrderLineInput is one requested order line before pricing.
type OrderLineInput struct {
	ListingID string
	Quantity  int
}

// CreateOrderInput describes an order placement request.
type CreateOrderInput struct {
	Lines         []OrderLineInput
	PaymentMethod order.PaymentMethod
	Delivery      order.Address
}

// CreateOrder places an order for the acting buyer. Line prices are captured
// from the listings at this moment and never change afterwards; stock is
// decremented up front so two buyers cannot claim the same units.
func (e *Engine) CreateOrder(ctx context.Context, actor Actor, input CreateOrderInput) (order.Order, error) {
	start := e.clock()
	if err := requireRole(actor, transition.RoleBuyer); err != nil {
		return order.Order{}, err
	}
	if len(input.Lines) == 0 {
		return order.Order{}, order.ErrNoLineItems
	}

	// Resolve and validate every referenced listing before touching state.
	sellerID := ""
	listings := make([]listing.Listing, 0, len(input.Lines))
	items := make([]order.LineItem, 0, len(input.Lines))
	for _, line := range input.Lines {
		l, err := e.loadListing(ctx, line.ListingID)
		if err != nil {
			return order.Order{}, err
		}
		if !l.Status.IsDiscoverable() {
			return order.Order{}, apperrors.WithMetadata(
				apperrors.CodeListingNotOrderable,
				fmt.Sprintf("listing %s is not open for orders", l.ID),
				map[string]string{"ListingID": l.ID, "Status": string(l.Status)},
			)
		}
		if line.Quantity < l.MinOrderQty {
			return order.Order{}, apperrors.WithMetadata(
				apperrors.CodeOrderBelowMinQuantity,
				fmt.Sprintf("listing %s requires a minimum order of %d", l.ID, l.MinOrderQty),
				map[string]string{"ListingID": l.ID, "MinOrderQty": fmt.Sprintf("%d", l.MinOrderQty)},
			)
		}
		if sellerID == "" {
			sellerID = l.OwnerID
		} else if sellerID != l.OwnerID {
			return order.Order{}, apperrors.New(apperrors.CodeOrderMixedSellers, "all order lines must belong to one seller")
		}
		listings = append(listings, l)
		items = append(items, order.LineItem{
			ListingID: l.ID,
			Name:      l.Name,
			Quantity:  line.Quantity,
			UnitPrice: l.Price,
		})
	}

	placed, err := order.Create(order.CreateInput{
		BuyerID:       actor.ID,
		SellerID:      sellerID,
		Items:         items,
		PaymentMethod: input.PaymentMethod,
		Delivery:      input.Delivery,
	}, e.clock, nil)
	if err != nil {
		e.observeTransition("order", "rejected", start)
		return order.Order{}, err
	}

	// Decrement stock. The versioned write is the serialization point: a
	// concurrent claim on the same listing surfaces as a conflict here.
	var stockEvents []realtime.Event
	for i, l := range listings {
		adjusted, signal, err := listing.AdjustStock(l, -input.Lines[i].Quantity, e.clock)
		if err != nil {
			e.observeTransition("order", "rejected", start)
			return order.Order{}, err
		}
		updated, err := e.store.UpdateListing(ctx, adjusted)
		if err != nil {
			return order.Order{}, mapStorageError(err, "listing", l.ID)
		}
		if event := stockEvent(updated, signal); event != nil {
			stockEvents = append(stockEvents, *event)
		}
	}

	if err := e.store.PutOrder(ctx, placed); err != nil {
		return order.Order{}, mapStorageError(err, "order", placed.ID)
	}

	tasks := []effectTask{
		{name: "audit", run: func(ctx context.Context) error {
			return e.record(ctx, audit.Entry{
				EntityKind: string(transition.KindOrder),
				EntityID:   placed.ID,
				Tag:        audit.TagOrderPlaced,
				ActorID:    actor.ID,
				ActorRole:  string(actor.Role),
				ToStatus:   string(placed.Status),
				After:      placed,
			})
		}},
		{name: "cache", run: func(ctx context.Context) error {
			return e.invalidateCount(ctx, keyOpenOrders)
		}},
		{name: "fanout", run: func(ctx context.Context) error {
			e.publish(realtime.Event{
				Type:    realtime.EventOrderUpdate,
				Channel: realtime.OrderChannel(placed.ID),
				Payload: map[string]string{
					"order_id":  placed.ID,
					"reference": placed.Reference,
					"status":    string(placed.Status),
				},
			})
			for _, event := range stockEvents {
				e.publish(event)
			}
			return nil
		}},
	}
	e.runEffects(ctx, tasks)
	e.observeTransition("order", "allowed", start)
	return placed, nil
}

// TransitionOrder moves an order to the target status after validating the
// edge and the actor's standing on this order.
func (e *Engine) TransitionOrder(ctx context.Context, actor Actor, orderID string, target order.Status) (order.Order, error) {
	start := e.clock()

	current, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return order.Order{}, mapStorageError(err, "order", orderID)
	}
	if err := requireOrderParty(actor, current); err != nil {
		e.observeTransition("order", "rejected", start)
		return order.Order{}, err
	}

	decision := transition.Validate(transition.KindOrder, string(current.Status), string(target), actor.Role)
	if !decision.Allowed {
		e.observeTransition("order", "rejected", start)
		return order.Order{}, decision.Err
	}

	// Buyer confirmation requires a payment authorization verdict first.
	if target == order.StatusConfirmed {
		result, err := e.gateway.Authorize(ctx, payments.Authorization{
			OrderID: current.ID,
			BuyerID: current.BuyerID,
			Method:  current.PaymentMethod,
			Amount:  current.Total,
		})
		if err != nil {
			e.observeTransition("order", "rejected", start)
			return order.Order{}, apperrors.Wrap(apperrors.CodePaymentGatewayUnusable, "payment gateway unavailable", err)
		}
		if !result.Authorized {
			e.observeTransition("order", "rejected", start)
			return order.Order{}, apperrors.WithMetadata(
				apperrors.CodePaymentNotAuthorized,
				"payment was not authorized",
				map[string]string{"OrderID": current.ID, "Reason": result.Reason},
			)
		}
	}

	next := order.ApplyStatus(current, target, e.clock)
	updated, err := e.store.UpdateOrder(ctx, next)
	if err != nil {
		return order.Order{}, mapStorageError(err, "order", orderID)
	}

	tasks := []effectTask{
		{name: "audit", run: func(ctx context.Context) error {
			return e.record(ctx, audit.Entry{
				EntityKind: string(transition.KindOrder),
				EntityID:   updated.ID,
				Tag:        audit.TagOrderTransition,
				ActorID:    actor.ID,
				ActorRole:  string(actor.Role),
				FromStatus: string(current.Status),
				ToStatus:   string(updated.Status),
				Before:     current,
				After:      updated,
			})
		}},
	}
	for _, effect := range decision.Effects {
		switch effect {
		case transition.EffectInvalidateCount:
			tasks = append(tasks, effectTask{name: "cache", run: func(ctx context.Context) error {
				return e.invalidateCount(ctx, keyOpenOrders)
			}})
		case transition.EffectNotifyParties:
			tasks = append(tasks, effectTask{name: "fanout", run: func(ctx context.Context) error {
				e.publish(realtime.Event{
					Type:    realtime.EventOrderUpdate,
					Channel: realtime.OrderChannel(updated.ID),
					Payload: map[string]string{
						"order_id":  updated.ID,
						"reference": updated.Reference,
						"status":    string(updated.Status),
					},
				})
				return nil
			}})
		}
	}
	e.runEffects(ctx, tasks)
	e.observeTransition("order", "allowed", start)
	return updated, nil
}

// CancelOrder requests buyer cancellation. The validator enforces the
// cutoff: shipped and delivered orders can no longer be cancelled.
func (e *Engine) CancelOrder(ctx context.Context, actor Actor, orderID string) (order.Order, error) {
	return e.TransitionOrder(ctx, actor, orderID, order.StatusCancelled)
}

// requireOrderParty checks the actor's standing on the order: buyers must be
// the order's buyer, sellers its seller. Role legitimacy for the specific
// edge stays with the validator.
func requireOrderParty(actor Actor, o order.Order) *apperrors.Error {
	if actor.ID == "" {
		return apperrors.New(apperrors.CodeActorEmptyID, "actor id is required")
	}
	switch actor.Role {
	case transition.RoleBuyer:
		if actor.ID != o.BuyerID {
			return notParty(actor, o)
		}
	case transition.RoleSeller:
		if actor.ID != o.SellerID {
			return notParty(actor, o)
		}
	default:
		return notParty(actor, o)
	}
	return nil
}

func notParty(actor Actor, o order.Order) *apperrors.Error {
	return apperrors.WithMetadata(
		apperrors.CodeOrderActorNotApplicable,
		"actor is not a party to this order",
		map[string]string{"OrderID": o.ID, "ActorID": actor.ID, "Role": string(actor.Role)},
	)
}
