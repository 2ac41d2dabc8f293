package fleet

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/roadrunner-rentals/service-rental/internal/domain/pricing"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/apperror"
	"github.com/shopspring/decimal"
)

// PackageStatus represents the reservation state of a vehicle package.
type PackageStatus string

const (
	PackageStatusActivated         PackageStatus = "Activated"
	PackageStatusDeactivated       PackageStatus = "Deactivated"
	PackageStatusPartiallyReserved PackageStatus = "Partially Reserved"
	PackageStatusReserved          PackageStatus = "Reserved"
)

// IsValid returns true if the status is a recognised package status.
func (s PackageStatus) IsValid() bool {
	switch s {
	case PackageStatusActivated, PackageStatusDeactivated, PackageStatusPartiallyReserved, PackageStatusReserved:
		return true
	}
	return false
}

// ParsePackageStatus converts a string to a PackageStatus.
func ParsePackageStatus(s string) (PackageStatus, error) {
	status := PackageStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid package status: %s", s)
	}
	return status, nil
}

// VehiclePackage bundles several vehicles at a flat price for a set duration.
type VehiclePackage struct {
	id           uuid.UUID
	name         string
	description  string
	price        decimal.Decimal
	durationDays int
	status       PackageStatus
	vehicleIDs   []uuid.UUID
	version      int64
	createdAt    time.Time
	updatedAt    time.Time
}

// NewVehiclePackage creates an activated package.
func NewVehiclePackage(name, description string, price decimal.Decimal, durationDays int, vehicleIDs []uuid.UUID) (*VehiclePackage, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.NewValidationError("package name is required")
	}
	if !price.IsPositive() {
		return nil, apperror.NewValidationError("package price must be positive")
	}
	if durationDays <= 0 {
		return nil, apperror.NewValidationError("package duration must be at least one day")
	}
	members, err := normalizeMembers(vehicleIDs)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &VehiclePackage{
		id:           uuid.New(),
		name:         name,
		description:  description,
		price:        pricing.Round2(price),
		durationDays: durationDays,
		status:       PackageStatusActivated,
		vehicleIDs:   members,
		version:      1,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// ReconstructVehiclePackage rebuilds a package from persistence data.
func ReconstructVehiclePackage(
	id uuid.UUID,
	name, description string,
	price decimal.Decimal,
	durationDays int,
	status PackageStatus,
	vehicleIDs []uuid.UUID,
	version int64,
	createdAt, updatedAt time.Time,
) *VehiclePackage {
	return &VehiclePackage{
		id:           id,
		name:         name,
		description:  description,
		price:        price,
		durationDays: durationDays,
		status:       status,
		vehicleIDs:   vehicleIDs,
		version:      version,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

// ID returns the package identifier.
func (p *VehiclePackage) ID() uuid.UUID { return p.id }

// Name returns the package name.
func (p *VehiclePackage) Name() string { return p.name }

// Description returns the package description.
func (p *VehiclePackage) Description() string { return p.description }

// Price returns the flat price covering DurationDays.
func (p *VehiclePackage) Price() decimal.Decimal { return p.price }

// DurationDays returns the number of days the flat price covers.
func (p *VehiclePackage) DurationDays() int { return p.durationDays }

// Status returns the current package status.
func (p *VehiclePackage) Status() PackageStatus { return p.status }

// Version returns the optimistic locking version.
func (p *VehiclePackage) Version() int64 { return p.version }

// CreatedAt returns the creation timestamp.
func (p *VehiclePackage) CreatedAt() time.Time { return p.createdAt }

// UpdatedAt returns the last update timestamp.
func (p *VehiclePackage) UpdatedAt() time.Time { return p.updatedAt }

// VehicleIDs returns a copy of the member vehicle ids, sorted.
func (p *VehiclePackage) VehicleIDs() []uuid.UUID {
	out := make([]uuid.UUID, len(p.vehicleIDs))
	copy(out, p.vehicleIDs)
	return out
}

// Contains reports whether the vehicle is a member.
func (p *VehiclePackage) Contains(vehicleID uuid.UUID) bool {
	for _, id := range p.vehicleIDs {
		if id == vehicleID {
			return true
		}
	}
	return false
}

// Cost prices a rental of the whole package over the range.
func (p *VehiclePackage) Cost(start, end time.Time) decimal.Decimal {
	return pricing.PackageCost(p.price, p.durationDays, start, end)
}

// SetMembers replaces the member set.
func (p *VehiclePackage) SetMembers(vehicleIDs []uuid.UUID) error {
	members, err := normalizeMembers(vehicleIDs)
	if err != nil {
		return err
	}
	p.vehicleIDs = members
	p.updatedAt = time.Now().UTC()
	return nil
}

// Deactivate withdraws the package from sale.
func (p *VehiclePackage) Deactivate() {
	p.status = PackageStatusDeactivated
	p.updatedAt = time.Now().UTC()
}

// Activate puts the package back on sale; callers then call Recompute.
func (p *VehiclePackage) Activate() {
	if p.status == PackageStatusDeactivated {
		p.status = PackageStatusActivated
		p.updatedAt = time.Now().UTC()
	}
}

// Recompute derives the status from the members' statuses. Returns true if
// the status changed.
func (p *VehiclePackage) Recompute(members []*Vehicle) bool {
	reserved := 0
	for _, v := range members {
		if p.Contains(v.ID()) && v.Status().IsReserved() {
			reserved++
		}
	}
	next := DerivePackageStatus(p.status, len(p.vehicleIDs), reserved)
	if next == p.status {
		return false
	}
	p.status = next
	p.updatedAt = time.Now().UTC()
	return true
}

// CheckBookable returns NotAvailable if the package cannot be booked at all,
// regardless of dates.
func (p *VehiclePackage) CheckBookable(members []*Vehicle) error {
	if msg := p.AvailabilityMessage(members); msg != "" {
		return apperror.NewNotAvailableError(msg)
	}
	return nil
}

// AvailabilityMessage explains why the package cannot be booked, or returns
// "" when it can.
func (p *VehiclePackage) AvailabilityMessage(members []*Vehicle) string {
	if p.status == PackageStatusDeactivated {
		return fmt.Sprintf("package %q is deactivated", p.name)
	}
	if len(p.vehicleIDs) == 0 {
		return fmt.Sprintf("package %q has no vehicles", p.name)
	}
	if len(members) < len(p.vehicleIDs) {
		return fmt.Sprintf("package %q references vehicles that no longer exist", p.name)
	}
	var inMaintenance []string
	for _, v := range members {
		if v.Status() == VehicleStatusMaintenance {
			inMaintenance = append(inMaintenance, v.Registration())
		}
	}
	if len(inMaintenance) > 0 {
		return fmt.Sprintf("package %q includes vehicles in maintenance: %s", p.name, strings.Join(inMaintenance, ", "))
	}
	return ""
}

// IncrementVersion bumps the optimistic locking version.
func (p *VehiclePackage) IncrementVersion() {
	p.version++
	p.updatedAt = time.Now().UTC()
}

// DerivePackageStatus maps the number of reserved members onto a status.
// Deactivated is an operator flag and is left alone.
func DerivePackageStatus(current PackageStatus, members, reserved int) PackageStatus {
	switch {
	case current == PackageStatusDeactivated:
		return PackageStatusDeactivated
	case reserved == 0 || members == 0:
		return PackageStatusActivated
	case reserved < members:
		return PackageStatusPartiallyReserved
	default:
		return PackageStatusReserved
	}
}

func normalizeMembers(ids []uuid.UUID) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			return nil, apperror.NewValidationError("vehicle id must not be empty")
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}
