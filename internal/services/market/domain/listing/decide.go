package listing

// Decide evaluates the creation-time auto-approval rule: a listing skips
// manual review only when its owner is trusted and it carries at least one
// image. The rule is deterministic and total; it never consults external
// services, and its outcome is recorded in the audit trail under a
// distinguished action tag so auto-approvals remain distinguishable from
// reviewer approvals.
func Decide(input CreateInput, ownerTrusted bool) bool {
	return ownerTrusted && len(input.Images) > 0
}
