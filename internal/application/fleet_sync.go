package application

import (
	"context"

	"github.com/google/uuid"
	"github.com/roadrunner-rentals/service-rental/internal/domain/booking"
	"github.com/roadrunner-rentals/service-rental/internal/domain/fleet"
)

// fleetSync recomputes the derived vehicle and package statuses after a
// reservation changes. It must run inside the transaction that made the change.
type fleetSync struct {
	vehicles fleet.VehicleRepository
	packages fleet.PackageRepository
	bookings booking.BookingRepository
}

func newFleetSync(repos Repositories) *fleetSync {
	return &fleetSync{vehicles: repos.Vehicles, packages: repos.Packages, bookings: repos.Bookings}
}

// resync derives each vehicle's status from the blocking bookings holding it,
// then each package containing one of them from its members.
func (f *fleetSync) resync(ctx context.Context, vehicleIDs []uuid.UUID) error {
	if len(vehicleIDs) == 0 {
		return nil
	}
	vehicles, err := f.vehicles.LockByIDs(ctx, vehicleIDs)
	if err != nil {
		return err
	}
	counts, err := f.bookings.CountHolds(ctx, vehicleIDs)
	if err != nil {
		return err
	}
	for _, v := range vehicles {
		if !v.ApplyHolds(holdsOf(counts[v.ID()])) {
			continue
		}
		v.IncrementVersion()
		if err := f.vehicles.Update(ctx, v); err != nil {
			return err
		}
	}
	return f.resyncPackages(ctx, vehicleIDs)
}

func (f *fleetSync) resyncPackages(ctx context.Context, vehicleIDs []uuid.UUID) error {
	pkgs, err := f.packages.FindByVehicleIDs(ctx, vehicleIDs)
	if err != nil {
		return err
	}
	for _, pkg := range pkgs {
		if err := f.recomputePackage(ctx, pkg); err != nil {
			return err
		}
	}
	return nil
}

// recomputePackage refreshes pkg's status from its members and persists it
// when it changed.
func (f *fleetSync) recomputePackage(ctx context.Context, pkg *fleet.VehiclePackage) error {
	members, err := f.vehicles.FindByIDs(ctx, pkg.VehicleIDs())
	if err != nil {
		return err
	}
	if !pkg.Recompute(members) {
		return nil
	}
	pkg.IncrementVersion()
	return f.packages.Update(ctx, pkg)
}

// holdsFor returns the holds on a single vehicle.
func (f *fleetSync) holdsFor(ctx context.Context, vehicleID uuid.UUID) (fleet.Holds, error) {
	counts, err := f.bookings.CountHolds(ctx, []uuid.UUID{vehicleID})
	if err != nil {
		return fleet.Holds{}, err
	}
	return holdsOf(counts[vehicleID]), nil
}

func holdsOf(byType map[booking.BookingType]int64) fleet.Holds {
	return fleet.Holds{
		Vehicle: byType[booking.TypeVehicle],
		Package: byType[booking.TypePackage],
	}
}
