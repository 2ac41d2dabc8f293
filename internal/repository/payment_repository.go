package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/roadrunner-rentals/service-rental/internal/domain/payment"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/apperror"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPaymentRepository implements payment.Repository using GORM.
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository.
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	return r.findOne(conn(ctx, r.db), "id = ?", id)
}

func (r *GormPaymentRepository) LockByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	return r.findOne(conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}), "id = ?", id)
}

func (r *GormPaymentRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*payment.Payment, error) {
	return r.findOne(conn(ctx, r.db), "booking_id = ?", bookingID)
}

func (r *GormPaymentRepository) findOne(db *gorm.DB, cond string, id uuid.UUID) (*payment.Payment, error) {
	var model PaymentModel
	if err := db.Where(cond, id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFoundError("Payment", id.String())
		}
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}
	return toPaymentDomain(&model), nil
}

func (r *GormPaymentRepository) ExistsForBooking(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	var count int64
	if err := conn(ctx, r.db).Model(&PaymentModel{}).Where("booking_id = ?", bookingID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check booking payment: %w", err)
	}
	return count > 0, nil
}

// ListAll retrieves all payments with pagination (admin).
func (r *GormPaymentRepository) ListAll(ctx context.Context, page, limit int) ([]*payment.Payment, int64, error) {
	db := conn(ctx, r.db)
	var total int64
	if err := db.Model(&PaymentModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count payments: %w", err)
	}

	var models []PaymentModel
	if err := db.Order("payment_date DESC").Offset((page - 1) * limit).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list payments: %w", err)
	}

	payments := make([]*payment.Payment, len(models))
	for i := range models {
		payments[i] = toPaymentDomain(&models[i])
	}
	return payments, total, nil
}

// Summarize totals completed revenue and counts payments by method and status.
func (r *GormPaymentRepository) Summarize(ctx context.Context) (*payment.Summary, error) {
	db := conn(ctx, r.db)

	var amounts []decimal.Decimal
	if err := db.Model(&PaymentModel{}).
		Where("status = ?", string(payment.StatusCompleted)).
		Pluck("amount", &amounts).Error; err != nil {
		return nil, fmt.Errorf("failed to load completed amounts: %w", err)
	}
	revenue := decimal.Zero
	for _, a := range amounts {
		revenue = revenue.Add(a)
	}

	byMethod, err := r.countBy(db, "method")
	if err != nil {
		return nil, err
	}
	byStatus, err := r.countBy(db, "status")
	if err != nil {
		return nil, err
	}

	return &payment.Summary{
		CompletedRevenue: revenue.Round(2),
		CountByMethod:    byMethod,
		CountByStatus:    byStatus,
	}, nil
}

func (r *GormPaymentRepository) countBy(db *gorm.DB, column string) (map[string]int64, error) {
	type groupCount struct {
		GroupKey string
		Count    int64
	}
	var results []groupCount
	if err := db.Model(&PaymentModel{}).
		Select(column + " AS group_key, count(*) AS count").
		Group(column).
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count payments by %s: %w", column, err)
	}
	counts := make(map[string]int64, len(results))
	for _, gc := range results {
		counts[gc.GroupKey] = gc.Count
	}
	return counts, nil
}

// Save persists a new payment. The unique booking_id index backs the
// one-payment-per-booking rule.
func (r *GormPaymentRepository) Save(ctx context.Context, p *payment.Payment) error {
	model := toPaymentModel(p)
	if err := conn(ctx, r.db).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperror.NewAlreadyPaidError(p.BookingID().String())
		}
		return fmt.Errorf("failed to save payment: %w", err)
	}
	return nil
}

// Update persists changes to an existing payment with optimistic locking.
func (r *GormPaymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	expectedVersion := p.Version() - 1
	result := conn(ctx, r.db).
		Model(&PaymentModel{}).
		Where("id = ? AND version = ?", p.ID(), expectedVersion).
		Updates(map[string]interface{}{
			"status":       string(p.Status()),
			"payment_date": p.PaymentDate(),
			"version":      p.Version(),
			"updated_at":   p.UpdatedAt(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update payment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NewConflictError("payment was modified by another transaction")
	}
	return nil
}

func (r *GormPaymentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := conn(ctx, r.db).Where("id = ?", id).Delete(&PaymentModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete payment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NewNotFoundError("Payment", id.String())
	}
	return nil
}

func toPaymentModel(p *payment.Payment) PaymentModel {
	return PaymentModel{
		ID:            p.ID(),
		BookingID:     p.BookingID(),
		Amount:        p.Amount(),
		Method:        p.Method(),
		Status:        string(p.Status()),
		TransactionID: p.TransactionID(),
		PaymentDate:   p.PaymentDate(),
		Version:       p.Version(),
		CreatedAt:     p.CreatedAt(),
		UpdatedAt:     p.UpdatedAt(),
	}
}

func toPaymentDomain(m *PaymentModel) *payment.Payment {
	return payment.Reconstruct(
		m.ID,
		m.BookingID,
		m.Amount,
		m.Method,
		payment.Status(m.Status),
		m.TransactionID,
		m.PaymentDate.UTC(),
		m.Version,
		m.CreatedAt.UTC(),
		m.UpdatedAt.UTC(),
	)
}
