package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/roadrunner-rentals/service-rental/internal/domain/offer"
	"github.com/roadrunner-rentals/service-rental/internal/domain/pricing"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/apperror"
	"gorm.io/gorm"
)

// GormOfferRepository implements offer.Repository using GORM.
type GormOfferRepository struct {
	db *gorm.DB
}

// NewGormOfferRepository creates a new GormOfferRepository.
func NewGormOfferRepository(db *gorm.DB) *GormOfferRepository {
	return &GormOfferRepository{db: db}
}

// FindByID returns a single offer by ID.
func (r *GormOfferRepository) FindByID(ctx context.Context, id uuid.UUID) (*offer.Offer, error) {
	var model OfferModel
	if err := conn(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFoundError("Offer", id.String())
		}
		return nil, fmt.Errorf("failed to find offer: %w", err)
	}
	return toOfferDomain(&model), nil
}

// List returns offers, newest first.
func (r *GormOfferRepository) List(ctx context.Context, includeDeleted bool) ([]*offer.Offer, error) {
	q := conn(ctx, r.db)
	if !includeDeleted {
		q = q.Where("deleted = ?", false)
	}
	var models []OfferModel
	if err := q.Order("start_date DESC, created_at DESC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}
	return toOfferDomains(models), nil
}

// FindApplicable returns the active offers whose window covers day.
func (r *GormOfferRepository) FindApplicable(ctx context.Context, day time.Time) ([]*offer.Offer, error) {
	d := pricing.DateOf(day)
	var models []OfferModel
	if err := conn(ctx, r.db).
		Where("active = ? AND deleted = ?", true, false).
		Where("start_date <= ? AND end_date >= ?", d, d).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find applicable offers: %w", err)
	}
	return toOfferDomains(models), nil
}

// Save persists a new offer.
func (r *GormOfferRepository) Save(ctx context.Context, o *offer.Offer) error {
	model := toOfferModel(o)
	if err := conn(ctx, r.db).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to save offer: %w", err)
	}
	return nil
}

// Update persists the active and deleted flags.
func (r *GormOfferRepository) Update(ctx context.Context, o *offer.Offer) error {
	result := conn(ctx, r.db).
		Model(&OfferModel{}).
		Where("id = ?", o.ID()).
		Updates(map[string]interface{}{
			"active":     o.IsActive(),
			"deleted":    o.IsDeleted(),
			"updated_at": o.UpdatedAt(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update offer: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NewNotFoundError("Offer", o.ID().String())
	}
	return nil
}

func toOfferDomains(models []OfferModel) []*offer.Offer {
	offers := make([]*offer.Offer, len(models))
	for i := range models {
		offers[i] = toOfferDomain(&models[i])
	}
	return offers
}

func toOfferModel(o *offer.Offer) OfferModel {
	return OfferModel{
		ID:          o.ID(),
		Title:       o.Title(),
		Description: o.Description(),
		Discount:    o.Discount(),
		StartDate:   o.StartDate(),
		EndDate:     o.EndDate(),
		Active:      o.IsActive(),
		Deleted:     o.IsDeleted(),
		CreatedAt:   o.CreatedAt(),
		UpdatedAt:   o.UpdatedAt(),
	}
}

func toOfferDomain(m *OfferModel) *offer.Offer {
	return offer.Reconstruct(
		m.ID,
		m.Title,
		m.Description,
		m.Discount,
		m.StartDate.UTC(),
		m.EndDate.UTC(),
		m.Active,
		m.Deleted,
		m.CreatedAt.UTC(),
		m.UpdatedAt.UTC(),
	)
}
