package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BookingRepository defines the persistence contract for booking aggregates.
type BookingRepository interface {
	// FindByID retrieves a booking by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// LockByID retrieves a booking and locks its row for the current transaction.
	LockByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindOverlapping returns bookings holding any of the vehicles whose range
	// overlaps [start, end), skipping the excluded statuses.
	FindOverlapping(ctx context.Context, vehicleIDs []uuid.UUID, start, end time.Time, exclude []BookingStatus) ([]*Booking, error)

	// CountHolds counts, per vehicle and booking type, the blocking bookings
	// holding each vehicle.
	CountHolds(ctx context.Context, vehicleIDs []uuid.UUID) (map[uuid.UUID]map[BookingType]int64, error)

	// FindByCustomerID retrieves a customer's bookings with pagination.
	FindByCustomerID(ctx context.Context, customerID uuid.UUID, page, limit int) ([]*Booking, int64, error)

	// FindByVehicleID retrieves every booking that held the vehicle, newest first.
	FindByVehicleID(ctx context.Context, vehicleID uuid.UUID) ([]*Booking, error)

	// ListAll retrieves all bookings with pagination (admin).
	ListAll(ctx context.Context, page, limit int) ([]*Booking, int64, error)

	// CountByStatus returns booking counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Save persists a new booking together with the vehicles it holds.
	Save(ctx context.Context, booking *Booking) error

	// Update persists changes to an existing booking with optimistic locking.
	Update(ctx context.Context, booking *Booking) error

	// Delete removes a booking and its held-vehicle rows.
	Delete(ctx context.Context, id uuid.UUID) error
}
