package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/roadrunner-rentals/service-rental/internal/domain/fleet"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/apperror"
	"gorm.io/gorm"
)

// GormPackageRepository implements PackageRepository using GORM.
type GormPackageRepository struct {
	db *gorm.DB
}

func NewGormPackageRepository(db *gorm.DB) *GormPackageRepository {
	return &GormPackageRepository{db: db}
}

func (r *GormPackageRepository) FindByID(ctx context.Context, id uuid.UUID) (*fleet.VehiclePackage, error) {
	db := conn(ctx, r.db)
	var model PackageModel
	if err := db.Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFoundError("VehiclePackage", id.String())
		}
		return nil, fmt.Errorf("failed to find package by ID: %w", err)
	}
	pkgs, err := r.withMembers(db, []PackageModel{model})
	if err != nil {
		return nil, err
	}
	return pkgs[0], nil
}

func (r *GormPackageRepository) List(ctx context.Context) ([]*fleet.VehiclePackage, error) {
	db := conn(ctx, r.db)
	var models []PackageModel
	if err := db.Order("name ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	return r.withMembers(db, models)
}

func (r *GormPackageRepository) FindByVehicleIDs(ctx context.Context, vehicleIDs []uuid.UUID) ([]*fleet.VehiclePackage, error) {
	if len(vehicleIDs) == 0 {
		return nil, nil
	}
	db := conn(ctx, r.db)
	memberOf := db.Model(&PackageVehicleModel{}).Select("package_id").Where("vehicle_id IN ?", vehicleIDs)

	var models []PackageModel
	if err := db.Where("id IN (?)", memberOf).Order("id ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find packages by vehicle: %w", err)
	}
	return r.withMembers(db, models)
}

func (r *GormPackageRepository) Save(ctx context.Context, pkg *fleet.VehiclePackage) error {
	model := toPackageModel(pkg)
	return inTx(ctx, r.db, func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return fmt.Errorf("failed to save package: %w", err)
		}
		return insertMembers(tx, pkg)
	})
}

// Update persists fields, status and membership with optimistic locking.
func (r *GormPackageRepository) Update(ctx context.Context, pkg *fleet.VehiclePackage) error {
	expectedVersion := pkg.Version() - 1
	return inTx(ctx, r.db, func(tx *gorm.DB) error {
		result := tx.Model(&PackageModel{}).
			Where("id = ? AND version = ?", pkg.ID(), expectedVersion).
			Updates(map[string]interface{}{
				"name":          pkg.Name(),
				"description":   pkg.Description(),
				"price":         pkg.Price(),
				"duration_days": pkg.DurationDays(),
				"status":        string(pkg.Status()),
				"version":       pkg.Version(),
				"updated_at":    pkg.UpdatedAt(),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update package: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperror.NewConflictError("package was modified by another transaction")
		}
		if err := tx.Where("package_id = ?", pkg.ID()).Delete(&PackageVehicleModel{}).Error; err != nil {
			return fmt.Errorf("failed to clear package members: %w", err)
		}
		return insertMembers(tx, pkg)
	})
}

func insertMembers(tx *gorm.DB, pkg *fleet.VehiclePackage) error {
	ids := pkg.VehicleIDs()
	if len(ids) == 0 {
		return nil
	}
	rows := make([]PackageVehicleModel, len(ids))
	for i, id := range ids {
		rows[i] = PackageVehicleModel{PackageID: pkg.ID(), VehicleID: id}
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to save package members: %w", err)
	}
	return nil
}

func (r *GormPackageRepository) withMembers(db *gorm.DB, models []PackageModel) ([]*fleet.VehiclePackage, error) {
	if len(models) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}
	var rows []PackageVehicleModel
	if err := db.Where("package_id IN ?", ids).Order("vehicle_id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load package members: %w", err)
	}
	members := make(map[uuid.UUID][]uuid.UUID, len(models))
	for _, row := range rows {
		members[row.PackageID] = append(members[row.PackageID], row.VehicleID)
	}

	pkgs := make([]*fleet.VehiclePackage, len(models))
	for i := range models {
		pkgs[i] = toPackageDomain(&models[i], members[models[i].ID])
	}
	return pkgs, nil
}

func toPackageModel(p *fleet.VehiclePackage) PackageModel {
	return PackageModel{
		ID:           p.ID(),
		Name:         p.Name(),
		Description:  p.Description(),
		Price:        p.Price(),
		DurationDays: p.DurationDays(),
		Status:       string(p.Status()),
		Version:      p.Version(),
		CreatedAt:    p.CreatedAt(),
		UpdatedAt:    p.UpdatedAt(),
	}
}

func toPackageDomain(m *PackageModel, members []uuid.UUID) *fleet.VehiclePackage {
	return fleet.ReconstructVehiclePackage(
		m.ID,
		m.Name,
		m.Description,
		m.Price,
		m.DurationDays,
		fleet.PackageStatus(m.Status),
		members,
		m.Version,
		m.CreatedAt.UTC(),
		m.UpdatedAt.UTC(),
	)
}
