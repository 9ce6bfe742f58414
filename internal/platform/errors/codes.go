package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeMalformedPayload represents an unparseable request body.
	CodeMalformedPayload Code = "MALFORMED_PAYLOAD"

	// Transition errors
	CodeTransitionInvalid         Code = "TRANSITION_INVALID"
	CodeTransitionForbiddenRole   Code = "TRANSITION_FORBIDDEN_FOR_ROLE"
	CodeTransitionAlreadyTerminal Code = "TRANSITION_ALREADY_TERMINAL"
	CodeOrderTooLateToCancel      Code = "ORDER_TOO_LATE_TO_CANCEL"

	// Listing errors
	CodeListingNameEmpty       Code = "LISTING_NAME_EMPTY"
	CodeListingInvalidPrice    Code = "LISTING_INVALID_PRICE"
	CodeListingInvalidStock    Code = "LISTING_INVALID_STOCK"
	CodeListingInvalidMinQty   Code = "LISTING_INVALID_MIN_ORDER_QTY"
	CodeListingNotOrderable    Code = "LISTING_NOT_ORDERABLE"
	CodeListingRejectionReason Code = "LISTING_REJECTION_REASON_EMPTY"

	// Order errors
	CodeOrderNoLineItems        Code = "ORDER_NO_LINE_ITEMS"
	CodeOrderInvalidQuantity    Code = "ORDER_INVALID_QUANTITY"
	CodeOrderBelowMinQuantity   Code = "ORDER_BELOW_MIN_QUANTITY"
	CodeOrderInsufficientStock  Code = "ORDER_INSUFFICIENT_STOCK"
	CodeOrderEmptyAddress       Code = "ORDER_EMPTY_DELIVERY_ADDRESS"
	CodeOrderInvalidPayment     Code = "ORDER_INVALID_PAYMENT_METHOD"
	CodeOrderMixedSellers       Code = "ORDER_MIXED_SELLERS"
	CodePaymentNotAuthorized    Code = "PAYMENT_NOT_AUTHORIZED"
	CodePaymentGatewayUnusable  Code = "PAYMENT_GATEWAY_UNAVAILABLE"
	CodeOrderActorNotApplicable Code = "ORDER_ACTOR_NOT_APPLICABLE"

	// Actor errors
	CodeActorEmptyID     Code = "ACTOR_EMPTY_ID"
	CodeActorInvalidRole Code = "ACTOR_INVALID_ROLE"

	// Storage errors
	CodeNotFound        Code = "NOT_FOUND"
	CodeVersionConflict Code = "VERSION_CONFLICT"
	CodeStorageFailure  Code = "STORAGE_FAILURE"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeListingNameEmpty,
		CodeListingInvalidPrice,
		CodeListingInvalidStock,
		CodeListingInvalidMinQty,
		CodeListingRejectionReason,
		CodeOrderNoLineItems,
		CodeOrderInvalidQuantity,
		CodeOrderBelowMinQuantity,
		CodeOrderEmptyAddress,
		CodeOrderInvalidPayment,
		CodeOrderMixedSellers,
		CodeActorEmptyID,
		CodeActorInvalidRole,
		CodeMalformedPayload:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeTransitionInvalid,
		CodeTransitionAlreadyTerminal,
		CodeOrderTooLateToCancel,
		CodeListingNotOrderable,
		CodeOrderInsufficientStock,
		CodePaymentNotAuthorized:
		return codes.FailedPrecondition

	// PermissionDenied - actor role disallows the operation
	case CodeTransitionForbiddenRole,
		CodeOrderActorNotApplicable:
		return codes.PermissionDenied

	// Aborted - concurrent modification lost the race
	case CodeVersionConflict:
		return codes.Aborted

	// NotFound - resource doesn't exist
	case CodeNotFound:
		return codes.NotFound

	// Unavailable - external collaborator unreachable
	case CodePaymentGatewayUnusable:
		return codes.Unavailable

	default:
		return codes.Internal
	}
}
