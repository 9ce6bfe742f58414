package order

import "strings"

// Status describes the order fulfillment lifecycle label used by domain decisions.
type Status string

const (
	StatusUnspecified Status = ""
	StatusPlaced      Status = "placed"
	StatusConfirmed   Status = "confirmed"
	StatusAccepted    Status = "accepted"
	StatusRejected    Status = "rejected"
	StatusPacked      Status = "packed"
	StatusShipped     Status = "shipped"
	StatusDelivered   Status = "delivered"
	StatusCancelled   Status = "cancelled"
)

// ParseStatus canonicalizes status labels read from storage or wire payloads.
func ParseStatus(value string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "placed":
		return StatusPlaced, true
	case "confirmed":
		return StatusConfirmed, true
	case "accepted":
		return StatusAccepted, true
	case "rejected":
		return StatusRejected, true
	case "packed":
		return StatusPacked, true
	case "shipped":
		return StatusShipped, true
	case "delivered":
		return StatusDelivered, true
	case "cancelled":
		return StatusCancelled, true
	default:
		return StatusUnspecified, false
	}
}

// IsTerminal reports whether no further transition is permitted from this status.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusDelivered || s == StatusCancelled
}
