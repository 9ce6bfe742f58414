package listing

import "strings"

// Status describes the listing review lifecycle label used by domain decisions.
type Status string

const (
	StatusUnspecified   Status = ""
	StatusDraft         Status = "draft"
	StatusPendingReview Status = "pending_review"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
)

// ParseStatus canonicalizes status labels read from storage or wire payloads.
func ParseStatus(value string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "draft":
		return StatusDraft, true
	case "pending_review":
		return StatusPendingReview, true
	case "approved":
		return StatusApproved, true
	case "rejected":
		return StatusRejected, true
	default:
		return StatusUnspecified, false
	}
}

// IsDiscoverable reports whether a listing in this status may appear in search
// results and accept orders. Only approved listings are discoverable.
func (s Status) IsDiscoverable() bool {
	return s == StatusApproved
}
