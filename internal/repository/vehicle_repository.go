package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/roadrunner-rentals/service-rental/internal/domain/fleet"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/apperror"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormVehicleRepository implements VehicleRepository using GORM.
type GormVehicleRepository struct {
	db *gorm.DB
}

func NewGormVehicleRepository(db *gorm.DB) *GormVehicleRepository {
	return &GormVehicleRepository{db: db}
}

func (r *GormVehicleRepository) FindByID(ctx context.Context, id uuid.UUID) (*fleet.Vehicle, error) {
	var model VehicleModel
	if err := conn(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFoundError("Vehicle", id.String())
		}
		return nil, fmt.Errorf("failed to find vehicle by ID: %w", err)
	}
	return toVehicleDomain(&model), nil
}

func (r *GormVehicleRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*fleet.Vehicle, error) {
	return r.findByIDs(conn(ctx, r.db), ids)
}

// LockByIDs takes FOR UPDATE locks on the vehicle rows in ascending id order,
// so two transactions locking overlapping sets cannot deadlock.
func (r *GormVehicleRepository) LockByIDs(ctx context.Context, ids []uuid.UUID) ([]*fleet.Vehicle, error) {
	return r.findByIDs(conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}), ids)
}

func (r *GormVehicleRepository) findByIDs(db *gorm.DB, ids []uuid.UUID) ([]*fleet.Vehicle, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sorted := make([]uuid.UUID, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })

	var models []VehicleModel
	if err := db.Where("id IN ?", sorted).Order("id ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find vehicles: %w", err)
	}
	vehicles := make([]*fleet.Vehicle, len(models))
	for i := range models {
		vehicles[i] = toVehicleDomain(&models[i])
	}
	return vehicles, nil
}

func (r *GormVehicleRepository) List(ctx context.Context, filter fleet.VehicleFilter) ([]*fleet.Vehicle, error) {
	q := conn(ctx, r.db)
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	var models []VehicleModel
	if err := q.Order("make ASC, model ASC, registration ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	vehicles := make([]*fleet.Vehicle, len(models))
	for i := range models {
		vehicles[i] = toVehicleDomain(&models[i])
	}
	return vehicles, nil
}

func (r *GormVehicleRepository) ExistsByRegistration(ctx context.Context, registration string) (bool, error) {
	var count int64
	if err := conn(ctx, r.db).Model(&VehicleModel{}).Where("registration = ?", registration).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check registration: %w", err)
	}
	return count > 0, nil
}

func (r *GormVehicleRepository) Save(ctx context.Context, v *fleet.Vehicle) error {
	model := toVehicleModel(v)
	if err := conn(ctx, r.db).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperror.NewConflictError(fmt.Sprintf("registration %s is already in the fleet", v.Registration()))
		}
		return fmt.Errorf("failed to save vehicle: %w", err)
	}
	return nil
}

// Update persists changes to an existing vehicle with optimistic locking.
func (r *GormVehicleRepository) Update(ctx context.Context, v *fleet.Vehicle) error {
	expectedVersion := v.Version() - 1
	result := conn(ctx, r.db).
		Model(&VehicleModel{}).
		Where("id = ? AND version = ?", v.ID(), expectedVersion).
		Updates(map[string]interface{}{
			"rate_per_day": v.RatePerDay(),
			"status":       string(v.Status()),
			"version":      v.Version(),
			"updated_at":   v.UpdatedAt(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update vehicle: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NewConflictError("vehicle was modified by another transaction")
	}
	return nil
}

// Delete removes the vehicle and drops it from every package.
func (r *GormVehicleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return inTx(ctx, r.db, func(tx *gorm.DB) error {
		if err := tx.Where("vehicle_id = ?", id).Delete(&PackageVehicleModel{}).Error; err != nil {
			return fmt.Errorf("failed to remove vehicle from packages: %w", err)
		}
		result := tx.Where("id = ?", id).Delete(&VehicleModel{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete vehicle: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperror.NewNotFoundError("Vehicle", id.String())
		}
		return nil
	})
}

func toVehicleModel(v *fleet.Vehicle) VehicleModel {
	return VehicleModel{
		ID:           v.ID(),
		Make:         v.Make(),
		ModelName:    v.Model(),
		Year:         v.Year(),
		Registration: v.Registration(),
		RatePerDay:   v.RatePerDay(),
		Status:       string(v.Status()),
		Version:      v.Version(),
		CreatedAt:    v.CreatedAt(),
		UpdatedAt:    v.UpdatedAt(),
	}
}

func toVehicleDomain(m *VehicleModel) *fleet.Vehicle {
	return fleet.ReconstructVehicle(
		m.ID,
		m.Make,
		m.ModelName,
		m.Year,
		m.Registration,
		m.RatePerDay,
		fleet.VehicleStatus(m.Status),
		m.Version,
		m.CreatedAt.UTC(),
		m.UpdatedAt.UTC(),
	)
}
