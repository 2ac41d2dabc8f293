package booking

import "fmt"

// BookingStatus represents the current state of a booking in its lifecycle.
type BookingStatus string

const (
	StatusConfirmed BookingStatus = "Confirmed"
	// StatusPendingPayment is a booking created ahead of its payment.
	StatusPendingPayment BookingStatus = "Pending Payment"
	// StatusPaymentPending is a booking whose cash payment awaits staff confirmation.
	StatusPaymentPending BookingStatus = "Payment Pending"
	StatusCancelled      BookingStatus = "Cancelled"
	StatusReturned       BookingStatus = "Returned"
)

// validTransitions defines the state machine for booking status transitions.
var validTransitions = map[BookingStatus][]BookingStatus{
	StatusPendingPayment: {StatusConfirmed, StatusPaymentPending, StatusCancelled},
	StatusConfirmed:      {StatusPaymentPending, StatusReturned, StatusCancelled},
	StatusPaymentPending: {StatusConfirmed, StatusCancelled},
	StatusCancelled:      {},
	StatusReturned:       {},
}

// NonBlockingStatuses are the statuses that release a vehicle for overlap purposes.
var NonBlockingStatuses = []BookingStatus{StatusCancelled, StatusReturned}

// IsValid returns true if the status is a recognized booking status.
func (s BookingStatus) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible from this status.
func (s BookingStatus) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

// IsBlocking reports whether a booking in this status occupies its vehicles.
func (s BookingStatus) IsBlocking() bool {
	for _, nb := range NonBlockingStatuses {
		if s == nb {
			return false
		}
	}
	return true
}

// AcceptsPayment reports whether a payment may be taken in this status.
func (s BookingStatus) AcceptsPayment() bool {
	return s == StatusPendingPayment || s == StatusConfirmed
}

// String returns the string representation of the status.
func (s BookingStatus) String() string {
	return string(s)
}

// ParseBookingStatus converts a string to a BookingStatus, returning an error if invalid.
func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid booking status: %s", s)
	}
	return status, nil
}

// BookingType distinguishes single-vehicle from package bookings.
type BookingType string

const (
	TypeVehicle BookingType = "VEHICLE"
	TypePackage BookingType = "PACKAGE"
)

// ParseBookingType converts a string to a BookingType.
func ParseBookingType(s string) (BookingType, error) {
	switch t := BookingType(s); t {
	case TypeVehicle, TypePackage:
		return t, nil
	}
	return "", fmt.Errorf("invalid booking type: %s", s)
}
