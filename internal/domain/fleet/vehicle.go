package fleet

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/roadrunner-rentals/service-rental/internal/domain/pricing"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/apperror"
	"github.com/shopspring/decimal"
)

// VehicleStatus represents the availability state of a vehicle.
type VehicleStatus string

const (
	VehicleStatusAvailable   VehicleStatus = "Available"
	VehicleStatusBooked      VehicleStatus = "Booked"
	VehicleStatusRented      VehicleStatus = "Rented"
	VehicleStatusMaintenance VehicleStatus = "Maintenance"
)

// IsValid returns true if the status is a recognised vehicle status.
func (s VehicleStatus) IsValid() bool {
	switch s {
	case VehicleStatusAvailable, VehicleStatusBooked, VehicleStatusRented, VehicleStatusMaintenance:
		return true
	}
	return false
}

// IsReserved reports whether the status is caused by a held booking.
func (s VehicleStatus) IsReserved() bool {
	return s == VehicleStatusBooked || s == VehicleStatusRented
}

// ParseVehicleStatus converts a string to a VehicleStatus.
func ParseVehicleStatus(s string) (VehicleStatus, error) {
	status := VehicleStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid vehicle status: %s", s)
	}
	return status, nil
}

// Holds counts the blocking reservations a vehicle is part of.
type Holds struct {
	Vehicle int64
	Package int64
}

// Total returns the number of blocking reservations.
func (h Holds) Total() int64 { return h.Vehicle + h.Package }

// Vehicle is the aggregate root for a rentable car.
type Vehicle struct {
	id           uuid.UUID
	make         string
	model        string
	year         int
	registration string
	ratePerDay   decimal.Decimal
	status       VehicleStatus
	version      int64
	createdAt    time.Time
	updatedAt    time.Time

	// discountedRate is derived at read time and never persisted.
	discountedRate decimal.NullDecimal
}

// NewVehicle registers a new, available vehicle.
func NewVehicle(manufacturer, model string, year int, registration string, ratePerDay decimal.Decimal) (*Vehicle, error) {
	manufacturer, model = strings.TrimSpace(manufacturer), strings.TrimSpace(model)
	registration = strings.ToUpper(strings.TrimSpace(registration))
	if manufacturer == "" || model == "" {
		return nil, apperror.NewValidationError("make and model are required")
	}
	if year < 1950 || year > time.Now().Year()+1 {
		return nil, apperror.NewValidationError(fmt.Sprintf("invalid model year: %d", year))
	}
	if registration == "" {
		return nil, apperror.NewValidationError("registration is required")
	}
	if !ratePerDay.IsPositive() {
		return nil, apperror.NewValidationError("rental rate per day must be positive")
	}

	now := time.Now().UTC()
	return &Vehicle{
		id:           uuid.New(),
		make:         manufacturer,
		model:        model,
		year:         year,
		registration: registration,
		ratePerDay:   pricing.Round2(ratePerDay),
		status:       VehicleStatusAvailable,
		version:      1,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// ReconstructVehicle rebuilds a Vehicle from persistence data (no validation).
func ReconstructVehicle(
	id uuid.UUID,
	manufacturer, model string,
	year int,
	registration string,
	ratePerDay decimal.Decimal,
	status VehicleStatus,
	version int64,
	createdAt, updatedAt time.Time,
) *Vehicle {
	return &Vehicle{
		id:           id,
		make:         manufacturer,
		model:        model,
		year:         year,
		registration: registration,
		ratePerDay:   ratePerDay,
		status:       status,
		version:      version,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

// ID returns the vehicle identifier.
func (v *Vehicle) ID() uuid.UUID { return v.id }

// Make returns the manufacturer.
func (v *Vehicle) Make() string { return v.make }

// Model returns the model name.
func (v *Vehicle) Model() string { return v.model }

// Year returns the model year.
func (v *Vehicle) Year() int { return v.year }

// Registration returns the upper-cased registration plate.
func (v *Vehicle) Registration() string { return v.registration }

// RatePerDay returns the undiscounted daily rate.
func (v *Vehicle) RatePerDay() decimal.Decimal { return v.ratePerDay }

// Status returns the current vehicle status.
func (v *Vehicle) Status() VehicleStatus { return v.status }

// Version returns the optimistic locking version.
func (v *Vehicle) Version() int64 { return v.version }

// CreatedAt returns the creation timestamp.
func (v *Vehicle) CreatedAt() time.Time { return v.createdAt }

// UpdatedAt returns the last update timestamp.
func (v *Vehicle) UpdatedAt() time.Time { return v.updatedAt }

// DiscountedRate returns the rate after the active offer, when one applies.
func (v *Vehicle) DiscountedRate() decimal.NullDecimal { return v.discountedRate }

// IsAvailable reports whether the vehicle is idle.
func (v *Vehicle) IsAvailable() bool { return v.status == VehicleStatusAvailable }

// IsReservable reports whether new bookings may be attempted. Booked and
// Rented vehicles stay reservable for ranges that do not overlap.
func (v *Vehicle) IsReservable() bool { return v.status != VehicleStatusMaintenance }

// ApplyDiscount derives the discounted rate. Only available vehicles quote a
// discount.
func (v *Vehicle) ApplyDiscount(percent decimal.Decimal) {
	if !v.IsAvailable() || !percent.IsPositive() {
		v.discountedRate = decimal.NullDecimal{}
		return
	}
	v.discountedRate = decimal.NewNullDecimal(pricing.ApplyDiscount(v.ratePerDay, percent))
}

// EffectiveRate returns the per-day rate a new booking is charged.
func (v *Vehicle) EffectiveRate() decimal.Decimal {
	return pricing.EffectiveRate(v.ratePerDay, v.discountedRate)
}

// Cost prices a rental of this vehicle over the range.
func (v *Vehicle) Cost(start, end time.Time) decimal.Decimal {
	return pricing.VehicleCost(v.EffectiveRate(), start, end)
}

// ApplyHolds recomputes the status from the reservations currently held.
// Maintenance is an operator flag and is left alone. Returns true if the
// status changed.
func (v *Vehicle) ApplyHolds(h Holds) bool {
	next := DeriveVehicleStatus(v.status, h)
	if next == v.status {
		return false
	}
	v.status = next
	v.updatedAt = time.Now().UTC()
	return true
}

// SetMaintenance moves the vehicle in or out of maintenance.
func (v *Vehicle) SetMaintenance(on bool, h Holds) error {
	if on {
		if v.status == VehicleStatusMaintenance {
			return nil
		}
		if h.Total() > 0 {
			return apperror.NewNotAvailableError(
				fmt.Sprintf("vehicle %s has %d active reservation(s)", v.registration, h.Total()))
		}
		v.status = VehicleStatusMaintenance
	} else {
		if v.status != VehicleStatusMaintenance {
			return nil
		}
		v.status = VehicleStatusAvailable
		v.ApplyHolds(h)
	}
	v.updatedAt = time.Now().UTC()
	return nil
}

// CanBeDeleted reports whether the vehicle may be removed from the fleet.
func (v *Vehicle) CanBeDeleted() error {
	if !v.IsAvailable() {
		return apperror.NewNotAvailableError(
			fmt.Sprintf("vehicle %s is %s and cannot be deleted", v.registration, v.status))
	}
	return nil
}

// IncrementVersion bumps the optimistic locking version.
func (v *Vehicle) IncrementVersion() {
	v.version++
	v.updatedAt = time.Now().UTC()
}

// DeriveVehicleStatus maps held reservations onto a status: Booked when a
// vehicle booking holds it, Rented when only package bookings do.
func DeriveVehicleStatus(current VehicleStatus, h Holds) VehicleStatus {
	switch {
	case current == VehicleStatusMaintenance:
		return VehicleStatusMaintenance
	case h.Vehicle > 0:
		return VehicleStatusBooked
	case h.Package > 0:
		return VehicleStatusRented
	default:
		return VehicleStatusAvailable
	}
}
