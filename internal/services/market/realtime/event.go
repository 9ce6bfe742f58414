// Package realtime fans out market events to connected subscribers.
//
// Delivery is best effort and live-only: subscribers present at publish time
// receive the event, absent subscribers receive nothing later. Direct message
// history is the one durable surface, persisted through the message store and
// replayed on request.
package realtime

import (
	"sort"
	"strings"
	"time"
)

// EventType labels one fan-out event kind.
type EventType string

const (
	// EventOrderUpdate reports an order status change to both parties.
	EventOrderUpdate EventType = "order-update"
	// EventListingStatus reports a listing review outcome to its owner.
	EventListingStatus EventType = "listing-status"
	// EventListingLowStock reports stock at or below the low threshold.
	EventListingLowStock EventType = "listing-low-stock"
	// EventListingOutOfStock reports exhausted stock.
	EventListingOutOfStock EventType = "listing-out-of-stock"
	// EventListingSubmitted reports a new listing awaiting review.
	EventListingSubmitted EventType = "listing-submitted"
	// EventDMMessage carries one direct message.
	EventDMMessage EventType = "dm-message"
)

// Event is one fan-out payload delivered to channel subscribers.
type Event struct {
	Type    EventType         `json:"type"`
	Channel string            `json:"channel"`
	Payload map[string]string `json:"payload,omitempty"`
	At      time.Time         `json:"at"`
}

// ReviewersChannel is the shared channel for the reviewer pool.
const ReviewersChannel = "reviewers"

// OrderChannel names the channel both order parties subscribe to.
func OrderChannel(orderID string) string {
	return "order:" + strings.TrimSpace(orderID)
}

// OwnerChannel names a seller's personal channel.
func OwnerChannel(ownerID string) string {
	return "owner:" + strings.TrimSpace(ownerID)
}

// DMChannel names the direct message channel between two users. The pair is
// sorted so both sides resolve the same channel regardless of who dials.
func DMChannel(a, b string) string {
	pair := []string{strings.TrimSpace(a), strings.TrimSpace(b)}
	sort.Strings(pair)
	return "dm:" + pair[0] + "|" + pair[1]
}
