package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	bookingDomain "github.com/roadrunner-rentals/service-rental/internal/domain/booking"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/apperror"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormBookingRepository is the GORM-based implementation of BookingRepository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	return r.findOne(conn(ctx, r.db), id)
}

// LockByID retrieves a booking with its row locked until the transaction ends.
func (r *GormBookingRepository) LockByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	return r.findOne(conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormBookingRepository) findOne(db *gorm.DB, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := db.Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFoundError("Booking", id.String())
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	bookings, err := r.withHeldVehicles(db.Session(&gorm.Session{NewDB: true}), []BookingModel{model})
	if err != nil {
		return nil, err
	}
	return bookings[0], nil
}

// FindOverlapping returns bookings holding any of the vehicles whose
// [start_date, end_date) range overlaps [start, end). Touching ranges do not
// overlap.
func (r *GormBookingRepository) FindOverlapping(
	ctx context.Context,
	vehicleIDs []uuid.UUID,
	start, end time.Time,
	exclude []bookingDomain.BookingStatus,
) ([]*bookingDomain.Booking, error) {
	if len(vehicleIDs) == 0 {
		return nil, nil
	}
	db := conn(ctx, r.db)
	holding := db.Model(&BookingVehicleModel{}).Select("booking_id").Where("vehicle_id IN ?", vehicleIDs)

	q := db.Where("id IN (?)", holding).
		Where("start_date < ? AND end_date > ?", end.UTC(), start.UTC())
	if len(exclude) > 0 {
		q = q.Where("status NOT IN ?", sqlStatuses(exclude))
	}

	var models []BookingModel
	if err := q.Order("start_date ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find overlapping bookings: %w", err)
	}
	return r.withHeldVehicles(db, models)
}

// CountHolds counts, per vehicle and booking type, the blocking bookings that
// hold each vehicle. Vehicles with no holds are absent from the result.
func (r *GormBookingRepository) CountHolds(ctx context.Context, vehicleIDs []uuid.UUID) (map[uuid.UUID]map[bookingDomain.BookingType]int64, error) {
	counts := make(map[uuid.UUID]map[bookingDomain.BookingType]int64)
	if len(vehicleIDs) == 0 {
		return counts, nil
	}

	type holdRow struct {
		VehicleID   uuid.UUID
		BookingType string
		Count       int64
	}
	var rows []holdRow
	if err := conn(ctx, r.db).
		Table("booking_vehicles AS bv").
		Select("bv.vehicle_id AS vehicle_id, b.booking_type AS booking_type, COUNT(*) AS count").
		Joins("JOIN bookings b ON b.id = bv.booking_id").
		Where("bv.vehicle_id IN ?", vehicleIDs).
		Where("b.status NOT IN ?", sqlStatuses(bookingDomain.NonBlockingStatuses)).
		Group("bv.vehicle_id, b.booking_type").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count vehicle holds: %w", err)
	}

	for _, row := range rows {
		if counts[row.VehicleID] == nil {
			counts[row.VehicleID] = make(map[bookingDomain.BookingType]int64)
		}
		counts[row.VehicleID][bookingDomain.BookingType(row.BookingType)] = row.Count
	}
	return counts, nil
}

// FindByCustomerID retrieves bookings for a specific customer with pagination.
func (r *GormBookingRepository) FindByCustomerID(ctx context.Context, customerID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	db := conn(ctx, r.db)
	var total int64
	if err := db.Model(&BookingModel{}).Where("customer_id = ?", customerID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count customer bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := db.
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find customer bookings: %w", err)
	}

	bookings, err := r.withHeldVehicles(db, models)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// FindByVehicleID retrieves every booking that held the vehicle, newest first.
func (r *GormBookingRepository) FindByVehicleID(ctx context.Context, vehicleID uuid.UUID) ([]*bookingDomain.Booking, error) {
	db := conn(ctx, r.db)
	holding := db.Model(&BookingVehicleModel{}).Select("booking_id").Where("vehicle_id = ?", vehicleID)

	var models []BookingModel
	if err := db.Where("id IN (?)", holding).Order("start_date DESC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find vehicle bookings: %w", err)
	}
	return r.withHeldVehicles(db, models)
}

// ListAll retrieves all bookings with pagination (admin).
func (r *GormBookingRepository) ListAll(ctx context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	db := conn(ctx, r.db)
	var total int64
	if err := db.Model(&BookingModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := db.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	bookings, err := r.withHeldVehicles(db, models)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// CountByStatus returns booking counts grouped by status (admin).
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := conn(ctx, r.db).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// Save persists a new booking together with the vehicles it holds.
func (r *GormBookingRepository) Save(ctx context.Context, bk *bookingDomain.Booking) error {
	model := toBookingModel(bk)
	held := bk.HeldVehicleIDs()
	return inTx(ctx, r.db, func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return fmt.Errorf("failed to save booking: %w", err)
		}
		rows := make([]BookingVehicleModel, len(held))
		for i, id := range held {
			rows[i] = BookingVehicleModel{BookingID: bk.ID(), VehicleID: id}
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to save booking vehicles: %w", err)
		}
		return nil
	})
}

// Update persists changes to an existing booking with optimistic locking.
func (r *GormBookingRepository) Update(ctx context.Context, bk *bookingDomain.Booking) error {
	model := toBookingModel(bk)

	// Optimistic locking: only update if the version matches (current version - 1 since IncrementVersion was called)
	expectedVersion := bk.Version() - 1
	result := conn(ctx, r.db).
		Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":       model.Status,
			"total_cost":   model.TotalCost,
			"cancelled_at": model.CancelledAt,
			"returned_at":  model.ReturnedAt,
			"version":      model.Version,
			"updated_at":   model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update booking: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return apperror.NewConflictError("booking was modified by another transaction")
	}

	return nil
}

// Delete removes a booking and its held-vehicle rows.
func (r *GormBookingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return inTx(ctx, r.db, func(tx *gorm.DB) error {
		if err := tx.Where("booking_id = ?", id).Delete(&BookingVehicleModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete booking vehicles: %w", err)
		}
		result := tx.Where("id = ?", id).Delete(&BookingModel{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete booking: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperror.NewNotFoundError("Booking", id.String())
		}
		return nil
	})
}

func (r *GormBookingRepository) withHeldVehicles(db *gorm.DB, models []BookingModel) ([]*bookingDomain.Booking, error) {
	if len(models) == 0 {
		return []*bookingDomain.Booking{}, nil
	}
	ids := make([]uuid.UUID, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}
	var rows []BookingVehicleModel
	if err := db.Where("booking_id IN ?", ids).Order("vehicle_id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load booking vehicles: %w", err)
	}
	held := make(map[uuid.UUID][]uuid.UUID, len(models))
	for _, row := range rows {
		held[row.BookingID] = append(held[row.BookingID], row.VehicleID)
	}

	bookings := make([]*bookingDomain.Booking, len(models))
	for i := range models {
		bk, err := toDomainBooking(&models[i], held[models[i].ID])
		if err != nil {
			return nil, err
		}
		bookings[i] = bk
	}
	return bookings, nil
}

// --- Conversion Helpers ---

func toBookingModel(bk *bookingDomain.Booking) BookingModel {
	return BookingModel{
		ID:            bk.ID(),
		BookingNumber: bk.BookingNumber(),
		CustomerID:    bk.CustomerID(),
		BookingType:   string(bk.Type()),
		VehicleID:     bk.VehicleID(),
		PackageID:     bk.PackageID(),
		StartDate:     bk.StartDate(),
		EndDate:       bk.EndDate(),
		TotalCost:     bk.TotalCost(),
		Status:        string(bk.Status()),
		CancelledAt:   bk.CancelledAt(),
		ReturnedAt:    bk.ReturnedAt(),
		Version:       bk.Version(),
		CreatedAt:     bk.CreatedAt(),
		UpdatedAt:     bk.UpdatedAt(),
	}
}

func toDomainBooking(m *BookingModel, held []uuid.UUID) (*bookingDomain.Booking, error) {
	status, err := bookingDomain.ParseBookingStatus(m.Status)
	if err != nil {
		return nil, err
	}
	bookingType, err := bookingDomain.ParseBookingType(m.BookingType)
	if err != nil {
		return nil, err
	}

	return bookingDomain.ReconstructBooking(
		m.ID,
		m.BookingNumber,
		m.CustomerID,
		bookingType,
		m.VehicleID,
		m.PackageID,
		held,
		m.StartDate.UTC(),
		m.EndDate.UTC(),
		m.TotalCost,
		status,
		utcPtr(m.CancelledAt),
		utcPtr(m.ReturnedAt),
		m.Version,
		m.CreatedAt.UTC(),
		m.UpdatedAt.UTC(),
	), nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
