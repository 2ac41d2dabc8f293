package booking

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/roadrunner-rentals/service-rental/internal/domain/pricing"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/apperror"
	"github.com/shopspring/decimal"
)

const bookingNumberChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Booking is the aggregate root for a rental reservation.
type Booking struct {
	id            uuid.UUID
	bookingNumber string
	customerID    uuid.UUID
	bookingType   BookingType
	vehicleID     *uuid.UUID
	packageID     *uuid.UUID
	// heldVehicleIDs are the vehicles this booking occupies: the vehicle
	// itself, or every package member at booking time.
	heldVehicleIDs []uuid.UUID

	startDate time.Time
	endDate   time.Time
	totalCost decimal.Decimal
	status    BookingStatus

	cancelledAt *time.Time
	returnedAt  *time.Time

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// generateBookingNumber creates a booking number in the format "BK-XXXXXX".
func generateBookingNumber() (string, error) {
	result := make([]byte, 6)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(bookingNumberChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate booking number: %w", err)
		}
		result[i] = bookingNumberChars[n.Int64()]
	}
	return "BK-" + string(result), nil
}

// NewVehicleBooking creates a booking holding a single vehicle.
func NewVehicleBooking(
	customerID, vehicleID uuid.UUID,
	start, end time.Time,
	totalCost decimal.Decimal,
	initial BookingStatus,
) (*Booking, error) {
	if vehicleID == uuid.Nil {
		return nil, apperror.NewValidationError("vehicle ID is required")
	}
	b, err := newBooking(customerID, TypeVehicle, []uuid.UUID{vehicleID}, start, end, totalCost, initial)
	if err != nil {
		return nil, err
	}
	b.vehicleID = &vehicleID
	return b, nil
}

// NewPackageBooking creates a booking holding every member of a package.
func NewPackageBooking(
	customerID, packageID uuid.UUID,
	memberIDs []uuid.UUID,
	start, end time.Time,
	totalCost decimal.Decimal,
	initial BookingStatus,
) (*Booking, error) {
	if packageID == uuid.Nil {
		return nil, apperror.NewValidationError("package ID is required")
	}
	if len(memberIDs) == 0 {
		return nil, apperror.NewValidationError("package booking must hold at least one vehicle")
	}
	b, err := newBooking(customerID, TypePackage, memberIDs, start, end, totalCost, initial)
	if err != nil {
		return nil, err
	}
	b.packageID = &packageID
	return b, nil
}

func newBooking(
	customerID uuid.UUID,
	bookingType BookingType,
	held []uuid.UUID,
	start, end time.Time,
	totalCost decimal.Decimal,
	initial BookingStatus,
) (*Booking, error) {
	if customerID == uuid.Nil {
		return nil, apperror.NewValidationError("customer ID is required")
	}
	if err := ValidateRange(start, end); err != nil {
		return nil, err
	}
	if totalCost.IsNegative() {
		return nil, apperror.NewValidationError("total cost must not be negative")
	}
	if initial != StatusConfirmed && initial != StatusPendingPayment {
		return nil, apperror.NewValidationError(fmt.Sprintf("bookings cannot start in status %s", initial))
	}

	bookingNumber, err := generateBookingNumber()
	if err != nil {
		return nil, err
	}

	heldCopy := make([]uuid.UUID, len(held))
	copy(heldCopy, held)

	now := time.Now().UTC()
	return &Booking{
		id:             uuid.New(),
		bookingNumber:  bookingNumber,
		customerID:     customerID,
		bookingType:    bookingType,
		heldVehicleIDs: heldCopy,
		startDate:      start.UTC(),
		endDate:        end.UTC(),
		totalCost:      pricing.Round2(totalCost),
		status:         initial,
		version:        1,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// ReconstructBooking rebuilds a Booking from persistence data (no validation).
func ReconstructBooking(
	id uuid.UUID,
	bookingNumber string,
	customerID uuid.UUID,
	bookingType BookingType,
	vehicleID, packageID *uuid.UUID,
	heldVehicleIDs []uuid.UUID,
	startDate, endDate time.Time,
	totalCost decimal.Decimal,
	status BookingStatus,
	cancelledAt, returnedAt *time.Time,
	version int64,
	createdAt, updatedAt time.Time,
) *Booking {
	return &Booking{
		id:             id,
		bookingNumber:  bookingNumber,
		customerID:     customerID,
		bookingType:    bookingType,
		vehicleID:      vehicleID,
		packageID:      packageID,
		heldVehicleIDs: heldVehicleIDs,
		startDate:      startDate,
		endDate:        endDate,
		totalCost:      totalCost,
		status:         status,
		cancelledAt:    cancelledAt,
		returnedAt:     returnedAt,
		version:        version,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

// --- Getters ---

// ID returns the booking's unique identifier.
func (b *Booking) ID() uuid.UUID { return b.id }

// BookingNumber returns the human-readable booking number.
func (b *Booking) BookingNumber() string { return b.bookingNumber }

// CustomerID returns the renting customer's user ID.
func (b *Booking) CustomerID() uuid.UUID { return b.customerID }

// Type returns whether the booking is for a vehicle or a package.
func (b *Booking) Type() BookingType { return b.bookingType }

// VehicleID returns the booked vehicle, or nil for package bookings.
func (b *Booking) VehicleID() *uuid.UUID { return b.vehicleID }

// PackageID returns the booked package, or nil for vehicle bookings.
func (b *Booking) PackageID() *uuid.UUID { return b.packageID }

// ResourceID returns the vehicle or package id, whichever was booked.
func (b *Booking) ResourceID() uuid.UUID {
	if b.packageID != nil {
		return *b.packageID
	}
	if b.vehicleID != nil {
		return *b.vehicleID
	}
	return uuid.Nil
}

// HeldVehicleIDs returns a copy of the vehicles this booking occupies.
func (b *Booking) HeldVehicleIDs() []uuid.UUID {
	out := make([]uuid.UUID, len(b.heldVehicleIDs))
	copy(out, b.heldVehicleIDs)
	return out
}

// StartDate returns the inclusive start of the rental.
func (b *Booking) StartDate() time.Time { return b.startDate }

// EndDate returns the exclusive end of the rental.
func (b *Booking) EndDate() time.Time { return b.endDate }

// TotalCost returns the amount fixed at creation.
func (b *Booking) TotalCost() decimal.Decimal { return b.totalCost }

// Status returns the current booking status.
func (b *Booking) Status() BookingStatus { return b.status }

// CancelledAt returns when the booking was cancelled.
func (b *Booking) CancelledAt() *time.Time { return b.cancelledAt }

// ReturnedAt returns when the vehicles were returned.
func (b *Booking) ReturnedAt() *time.Time { return b.returnedAt }

// Version returns the optimistic locking version.
func (b *Booking) Version() int64 { return b.version }

// CreatedAt returns the creation timestamp.
func (b *Booking) CreatedAt() time.Time { return b.createdAt }

// UpdatedAt returns the last update timestamp.
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// --- Behavior ---

// Cancel moves the booking to Cancelled. Returns false without error when it
// already is.
func (b *Booking) Cancel(now time.Time) (bool, error) {
	if b.status == StatusCancelled {
		return false, nil
	}
	if !b.status.CanTransitionTo(StatusCancelled) {
		return false, apperror.NewInvalidBookingStateError(
			fmt.Sprintf("booking %s is %s and cannot be cancelled", b.bookingNumber, b.status))
	}
	at := now.UTC()
	b.status = StatusCancelled
	b.cancelledAt = &at
	b.updatedAt = at
	return true, nil
}

// ForceCancel cancels the booking from any status, Returned included. It is
// the administrative release used when a payment is cancelled. Returns false
// when the booking already is Cancelled.
func (b *Booking) ForceCancel(now time.Time) bool {
	if b.status == StatusCancelled {
		return false
	}
	at := now.UTC()
	b.status = StatusCancelled
	b.cancelledAt = &at
	b.updatedAt = at
	return true
}

// Return moves a confirmed booking to Returned. Returns false without error
// when it already is.
func (b *Booking) Return(now time.Time) (bool, error) {
	if b.status == StatusReturned {
		return false, nil
	}
	if b.status != StatusConfirmed {
		return false, apperror.NewInvalidBookingStateError(
			fmt.Sprintf("booking %s is %s; only confirmed bookings can be returned", b.bookingNumber, b.status))
	}
	at := now.UTC()
	b.status = StatusReturned
	b.returnedAt = &at
	b.updatedAt = at
	return true, nil
}

// ApplyPaymentOutcome moves the booking to the status a payment strategy
// decided. Returns true if the status changed.
func (b *Booking) ApplyPaymentOutcome(target BookingStatus) (bool, error) {
	if !b.status.AcceptsPayment() {
		return false, apperror.NewInvalidBookingStateError(
			fmt.Sprintf("booking %s is %s and cannot accept a payment", b.bookingNumber, b.status))
	}
	if target == b.status {
		return false, nil
	}
	if !b.status.CanTransitionTo(target) {
		return false, apperror.NewInvalidBookingStateError(
			fmt.Sprintf("booking %s cannot move from %s to %s", b.bookingNumber, b.status, target))
	}
	b.status = target
	b.updatedAt = time.Now().UTC()
	return true, nil
}

// ConfirmSettlement confirms a booking whose payment was awaiting staff.
func (b *Booking) ConfirmSettlement() error {
	if b.status != StatusPaymentPending {
		return apperror.NewInvalidTransitionError(
			fmt.Sprintf("booking %s is %s, not awaiting payment confirmation", b.bookingNumber, b.status))
	}
	b.status = StatusConfirmed
	b.updatedAt = time.Now().UTC()
	return nil
}

// IncrementVersion bumps the optimistic locking version.
func (b *Booking) IncrementVersion() {
	b.version++
	b.updatedAt = time.Now().UTC()
}

// Overlaps reports whether [s1, e1) and [s2, e2) share any instant. Touching
// endpoints do not overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && e1.After(s2)
}

// ValidateRange rejects empty or inverted rental ranges.
func ValidateRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return apperror.NewValidationError("start and end dates are required")
	}
	if !end.After(start) {
		return apperror.NewValidationError("end date must be after start date")
	}
	return nil
}
