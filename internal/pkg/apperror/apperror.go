// Package apperror defines the typed failures returned by the rental core.
// Business-rule violations carry a Kind the presentation layer maps to a
// status code; anything else is treated as Internal.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error.
type Kind string

const (
	KindNotFound                 Kind = "NOT_FOUND"
	KindNotAvailable             Kind = "NOT_AVAILABLE"
	KindConflict                 Kind = "CONFLICT"
	KindAlreadyPaid              Kind = "ALREADY_PAID"
	KindInvalidBookingState      Kind = "INVALID_BOOKING_STATE"
	KindInvalidTransition        Kind = "INVALID_TRANSITION"
	KindUnsupportedPaymentMethod Kind = "UNSUPPORTED_PAYMENT_METHOD"
	KindValidation               Kind = "VALIDATION"
	KindInternal                 Kind = "INTERNAL"
)

// internalMessage is the only text an Internal error ever exposes.
const internalMessage = "internal server error"

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// NewNotFoundError reports a missing entity.
func NewNotFoundError(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s not found: %s", entity, id)}
}

// NewNotAvailableError reports a resource that cannot currently be reserved.
func NewNotAvailableError(message string) *Error {
	return &Error{Kind: KindNotAvailable, Message: message}
}

// NewConflictError reports a date-range overlap or a concurrent modification.
func NewConflictError(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// NewAlreadyPaidError reports a second payment attempt for a booking.
func NewAlreadyPaidError(bookingID string) *Error {
	return &Error{Kind: KindAlreadyPaid, Message: fmt.Sprintf("booking %s already has a payment", bookingID)}
}

// NewInvalidBookingStateError reports an operation the booking's status does not allow.
func NewInvalidBookingStateError(message string) *Error {
	return &Error{Kind: KindInvalidBookingState, Message: message}
}

// NewInvalidTransitionError reports an illegal payment confirm or cancel.
func NewInvalidTransitionError(message string) *Error {
	return &Error{Kind: KindInvalidTransition, Message: message}
}

// NewUnsupportedPaymentMethodError reports a method no strategy claims.
func NewUnsupportedPaymentMethodError(method string) *Error {
	return &Error{Kind: KindUnsupportedPaymentMethod, Message: fmt.Sprintf("unsupported payment method: %q", method)}
}

// NewValidationError reports malformed input.
func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NewInternalError wraps an unexpected failure. The cause is kept for logs only.
func NewInternalError(err error) *Error {
	return &Error{Kind: KindInternal, Message: internalMessage, Err: err}
}

// KindOf returns the Kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err is an application error of the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// IsBusiness reports whether err is a classified, non-internal failure.
func IsBusiness(err error) bool {
	if err == nil {
		return false
	}
	return KindOf(err) != KindInternal
}

// HTTPStatus maps err to the status code the API returns for it.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindNotAvailable, KindConflict, KindAlreadyPaid, KindInvalidBookingState,
		KindInvalidTransition, KindUnsupportedPaymentMethod, KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text that may be shown to a caller.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Message
	}
	return internalMessage
}
