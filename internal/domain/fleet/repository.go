package fleet

import (
	"context"

	"github.com/google/uuid"
)

// VehicleFilter narrows vehicle listings.
type VehicleFilter struct {
	Status VehicleStatus
}

// VehicleRepository defines the persistence contract for vehicles.
type VehicleRepository interface {
	// FindByID retrieves a vehicle by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Vehicle, error)

	// FindByIDs retrieves the vehicles that exist among ids, ordered by id.
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*Vehicle, error)

	// LockByIDs is FindByIDs with the rows locked for the rest of the
	// current transaction. Locks are taken in ascending id order.
	LockByIDs(ctx context.Context, ids []uuid.UUID) ([]*Vehicle, error)

	// List retrieves vehicles matching the filter.
	List(ctx context.Context, filter VehicleFilter) ([]*Vehicle, error)

	// ExistsByRegistration reports whether a registration is taken.
	ExistsByRegistration(ctx context.Context, registration string) (bool, error)

	// Save persists a new vehicle.
	Save(ctx context.Context, vehicle *Vehicle) error

	// Update persists changes to an existing vehicle with optimistic locking.
	Update(ctx context.Context, vehicle *Vehicle) error

	// Delete removes a vehicle and its package memberships.
	Delete(ctx context.Context, id uuid.UUID) error
}

// PackageRepository defines the persistence contract for vehicle packages.
type PackageRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*VehiclePackage, error)
	List(ctx context.Context) ([]*VehiclePackage, error)

	// FindByVehicleIDs returns every package containing any of the vehicles.
	FindByVehicleIDs(ctx context.Context, vehicleIDs []uuid.UUID) ([]*VehiclePackage, error)

	Save(ctx context.Context, pkg *VehiclePackage) error

	// Update persists fields, status and membership with optimistic locking.
	Update(ctx context.Context, pkg *VehiclePackage) error
}
