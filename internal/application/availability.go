package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/roadrunner-rentals/service-rental/internal/domain/booking"
	"github.com/roadrunner-rentals/service-rental/internal/domain/fleet"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/apperror"
)

// Resource is the thing a booking reserves: one vehicle or a whole package.
type Resource struct {
	Type booking.BookingType
	ID   uuid.UUID
}

// AvailabilityChecker answers whether a resource is free over a date range.
// It never writes.
type AvailabilityChecker struct {
	vehicles fleet.VehicleRepository
	packages fleet.PackageRepository
	bookings booking.BookingRepository
}

// NewAvailabilityChecker creates a new AvailabilityChecker.
func NewAvailabilityChecker(repos Repositories) *AvailabilityChecker {
	return &AvailabilityChecker{
		vehicles: repos.Vehicles,
		packages: repos.Packages,
		bookings: repos.Bookings,
	}
}

// IsAvailable reports whether no booking outside exclude overlaps
// [start, end) on the vehicle, or on any member of the package. Unknown
// resources fail NotFound.
func (c *AvailabilityChecker) IsAvailable(ctx context.Context, res Resource, start, end time.Time, exclude []booking.BookingStatus) (bool, error) {
	vehicleIDs, err := c.vehicleIDs(ctx, res)
	if err != nil {
		return false, err
	}
	overlapping, err := c.bookings.FindOverlapping(ctx, vehicleIDs, start, end, exclude)
	if err != nil {
		return false, err
	}
	return len(overlapping) == 0, nil
}

func (c *AvailabilityChecker) vehicleIDs(ctx context.Context, res Resource) ([]uuid.UUID, error) {
	switch res.Type {
	case booking.TypeVehicle:
		v, err := c.vehicles.FindByID(ctx, res.ID)
		if err != nil {
			return nil, err
		}
		return []uuid.UUID{v.ID()}, nil
	case booking.TypePackage:
		pkg, err := c.packages.FindByID(ctx, res.ID)
		if err != nil {
			return nil, err
		}
		return pkg.VehicleIDs(), nil
	default:
		return nil, apperror.NewValidationError(fmt.Sprintf("unknown booking type %q", res.Type))
	}
}

// checkFree fails Conflict if any blocking booking overlaps [start, end) on
// the given vehicles.
func (c *AvailabilityChecker) checkFree(ctx context.Context, vehicleIDs []uuid.UUID, start, end time.Time) error {
	overlapping, err := c.bookings.FindOverlapping(ctx, vehicleIDs, start, end, booking.NonBlockingStatuses)
	if err != nil {
		return err
	}
	if len(overlapping) == 0 {
		return nil
	}
	numbers := make([]string, len(overlapping))
	for i, b := range overlapping {
		numbers[i] = b.BookingNumber()
	}
	return apperror.NewConflictError(fmt.Sprintf(
		"requested dates %s to %s overlap existing booking(s) %s",
		start.Format(time.DateOnly), end.Format(time.DateOnly), strings.Join(numbers, ", ")))
}
