// Package transition defines the valid states and legal transitions for
// orders and listings, and validates requested transitions against them.
//
// The registry is pure data: it executes no side effects and performs no
// lookups. Side effects required by an accepted transition are declared as
// effect tags for the orchestrator to execute after the durable state write
// commits. Role checks are structural — the actor's role is an input resolved
// by an external authorization collaborator, never looked up here.
package transition

import (
	"fmt"

	apperrors "github.com/Sreddy08840/agri-connect-sub002/internal/platform/errors"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/domain/listing"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/domain/order"
)

// Kind identifies which entity state machine a transition targets.
type Kind string

const (
	KindOrder   Kind = "order"
	KindListing Kind = "listing"
)

// Role is the actor role resolved by the authorization collaborator.
type Role string

const (
	RoleBuyer    Role = "buyer"
	RoleSeller   Role = "seller"
	RoleReviewer Role = "reviewer"
)

// ParseRole canonicalizes role labels from the API surface.
func ParseRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleBuyer:
		return RoleBuyer, true
	case RoleSeller:
		return RoleSeller, true
	case RoleReviewer:
		return RoleReviewer, true
	default:
		return "", false
	}
}

// Effect tags the side effects an accepted transition schedules. Effects are
// declared here and executed by the orchestrator; the validator never runs them.
type Effect string

const (
	// EffectReindex updates or removes the listing's search document.
	EffectReindex Effect = "reindex"
	// EffectInvalidateCount invalidates derived aggregate counts in the cache.
	EffectInvalidateCount Effect = "invalidate_count"
	// EffectNotifyOwner publishes to the entity owner's channel.
	EffectNotifyOwner Effect = "notify_owner"
	// EffectNotifyReviewers publishes to the reviewer pool channel.
	EffectNotifyReviewers Effect = "notify_reviewers"
	// EffectNotifyParties publishes to the order channel (buyer and seller).
	EffectNotifyParties Effect = "notify_parties"
)

// Reason is the typed rejection reason returned for disallowed transitions.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonInvalidTransition Reason = "invalid_transition"
	ReasonForbiddenForRole  Reason = "forbidden_for_role"
	ReasonAlreadyTerminal   Reason = "already_terminal"
	ReasonTooLateToCancel   Reason = "too_late_to_cancel"
)

// Decision is the validator outcome: either an acceptance carrying the
// declared side effects, or a typed rejection. Rejections are values, never
// panics; Err carries the ready-to-surface domain error.
type Decision struct {
	Allowed bool
	Effects []Effect
	Reason  Reason
	Err     *apperrors.Error
}

type edge struct {
	from string
	to   string
}

type rule struct {
	role    Role
	effects []Effect
}

var orderRules = map[edge]rule{
	{string(order.StatusPlaced), string(order.StatusConfirmed)}:    {RoleBuyer, []Effect{EffectNotifyParties, EffectInvalidateCount}},
	{string(order.StatusPlaced), string(order.StatusAccepted)}:     {RoleSeller, []Effect{EffectNotifyParties, EffectInvalidateCount}},
	{string(order.StatusConfirmed), string(order.StatusAccepted)}:  {RoleSeller, []Effect{EffectNotifyParties, EffectInvalidateCount}},
	{string(order.StatusPlaced), string(order.StatusRejected)}:     {RoleSeller, []Effect{EffectNotifyParties, EffectInvalidateCount}},
	{string(order.StatusConfirmed), string(order.StatusRejected)}:  {RoleSeller, []Effect{EffectNotifyParties, EffectInvalidateCount}},
	{string(order.StatusAccepted), string(order.StatusPacked)}:     {RoleSeller, []Effect{EffectNotifyParties}},
	{string(order.StatusPacked), string(order.StatusShipped)}:      {RoleSeller, []Effect{EffectNotifyParties}},
	{string(order.StatusShipped), string(order.StatusDelivered)}:   {RoleSeller, []Effect{EffectNotifyParties, EffectInvalidateCount}},
	{string(order.StatusPlaced), string(order.StatusCancelled)}:    {RoleBuyer, []Effect{EffectNotifyParties, EffectInvalidateCount}},
	{string(order.StatusConfirmed), string(order.StatusCancelled)}: {RoleBuyer, []Effect{EffectNotifyParties, EffectInvalidateCount}},
	{string(order.StatusAccepted), string(order.StatusCancelled)}:  {RoleBuyer, []Effect{EffectNotifyParties, EffectInvalidateCount}},
	{string(order.StatusPacked), string(order.StatusCancelled)}:    {RoleBuyer, []Effect{EffectNotifyParties, EffectInvalidateCount}},
}

var listingRules = map[edge]rule{
	{string(listing.StatusDraft), string(listing.StatusPendingReview)}:         {RoleSeller, []Effect{EffectInvalidateCount, EffectNotifyReviewers}},
	{string(listing.StatusPendingReview), string(listing.StatusApproved)}:      {RoleReviewer, []Effect{EffectReindex, EffectInvalidateCount, EffectNotifyOwner}},
	{string(listing.StatusPendingReview), string(listing.StatusRejected)}:      {RoleReviewer, []Effect{EffectInvalidateCount, EffectNotifyOwner}},
	{string(listing.StatusApproved), string(listing.StatusPendingReview)}:      {RoleSeller, []Effect{EffectReindex, EffectInvalidateCount, EffectNotifyReviewers}},
	{string(listing.StatusRejected), string(listing.StatusPendingReview)}:      {RoleSeller, []Effect{EffectInvalidateCount, EffectNotifyReviewers}},
}

// Validate accepts or rejects a requested transition for an entity kind,
// given the entity's current state and the actor's role.
//
// Check order: the order-cancellation cutoff is reported before terminal
// immutability so a buyer cancelling a shipped or delivered order sees the
// actionable reason; then terminal states reject everything; then the edge
// must exist; then the role must match.
func Validate(kind Kind, from, to string, role Role) Decision {
	if kind == KindOrder && to == string(order.StatusCancelled) {
		if from == string(order.StatusShipped) || from == string(order.StatusDelivered) {
			return reject(ReasonTooLateToCancel, apperrors.WithMetadata(
				apperrors.CodeOrderTooLateToCancel,
				fmt.Sprintf("order can no longer be cancelled: %s", from),
				meta(kind, from, to, role),
			))
		}
	}

	if isTerminal(kind, from) {
		return reject(ReasonAlreadyTerminal, apperrors.WithMetadata(
			apperrors.CodeTransitionAlreadyTerminal,
			fmt.Sprintf("%s is in terminal state %s", kind, from),
			meta(kind, from, to, role),
		))
	}

	r, ok := rules(kind)[edge{from, to}]
	if !ok {
		return reject(ReasonInvalidTransition, apperrors.WithMetadata(
			apperrors.CodeTransitionInvalid,
			fmt.Sprintf("%s status transition not allowed: %s -> %s", kind, from, to),
			meta(kind, from, to, role),
		))
	}

	if r.role != role {
		return reject(ReasonForbiddenForRole, apperrors.WithMetadata(
			apperrors.CodeTransitionForbiddenRole,
			fmt.Sprintf("role %s may not move %s from %s to %s", role, kind, from, to),
			meta(kind, from, to, role),
		))
	}

	return Decision{Allowed: true, Effects: append([]Effect(nil), r.effects...)}
}

func rules(kind Kind) map[edge]rule {
	switch kind {
	case KindOrder:
		return orderRules
	case KindListing:
		return listingRules
	default:
		return nil
	}
}

func isTerminal(kind Kind, from string) bool {
	if kind != KindOrder {
		// Listing statuses are all re-enterable.
		return false
	}
	status, ok := order.ParseStatus(from)
	if !ok {
		return false
	}
	return status.IsTerminal()
}

func reject(reason Reason, err *apperrors.Error) Decision {
	return Decision{Reason: reason, Err: err}
}

func meta(kind Kind, from, to string, role Role) map[string]string {
	return map[string]string{
		"EntityKind": string(kind),
		"FromStatus": from,
		"ToStatus":   to,
		"Role":       string(role),
	}
}
