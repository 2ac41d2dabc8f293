package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	offerDomain "github.com/roadrunner-rentals/service-rental/internal/domain/offer"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/apperror"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateOfferRequest holds the data to create a discount offer.
type CreateOfferRequest struct {
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description"`
	Discount    decimal.Decimal `json:"discount" binding:"required"`
	StartDate   time.Time       `json:"start_date" binding:"required"`
	EndDate     time.Time       `json:"end_date" binding:"required"`
}

// OfferDTO is the API response representation of an offer.
type OfferDTO struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Discount    string    `json:"discount"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Active      bool      `json:"active"`
	Deleted     bool      `json:"deleted,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ActiveDiscountDTO is the discount currently applied to available vehicles.
type ActiveDiscountDTO struct {
	Date     time.Time `json:"date"`
	Discount string    `json:"discount"`
}

// OfferService handles offer administration.
type OfferService struct {
	repo   offerDomain.Repository
	pricer *pricer
	logger *zap.Logger
}

// NewOfferService creates a new OfferService.
func NewOfferService(repo offerDomain.Repository, logger *zap.Logger, opts ...Option) *OfferService {
	o := buildOptions(opts)
	return &OfferService{repo: repo, pricer: &pricer{offers: repo, now: o.now}, logger: logger}
}

// CreateOffer creates an active offer.
func (s *OfferService) CreateOffer(ctx context.Context, req CreateOfferRequest) (*OfferDTO, error) {
	o, err := offerDomain.NewOffer(req.Title, req.Description, req.Discount, req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, o); err != nil {
		return nil, internalError(s.logger, "create offer", err)
	}

	s.logger.Info("offer created",
		zap.String("offer_id", o.ID().String()),
		zap.String("discount", o.Discount().String()),
	)
	return toOfferDTO(o), nil
}

// ListOffers returns offers, hiding soft-deleted ones unless asked.
func (s *OfferService) ListOffers(ctx context.Context, includeDeleted bool) ([]*OfferDTO, error) {
	offers, err := s.repo.List(ctx, includeDeleted)
	if err != nil {
		return nil, internalError(s.logger, "list offers", err)
	}

	dtos := make([]*OfferDTO, len(offers))
	for i, o := range offers {
		dtos[i] = toOfferDTO(o)
	}
	return dtos, nil
}

// ToggleOffer flips an offer between active and inactive.
func (s *OfferService) ToggleOffer(ctx context.Context, offerID uuid.UUID) (*OfferDTO, error) {
	o, err := s.repo.FindByID(ctx, offerID)
	if err != nil {
		return nil, internalError(s.logger, "toggle offer", err)
	}
	if o.IsDeleted() {
		return nil, apperror.NewNotFoundError("Offer", offerID.String())
	}
	o.Toggle()
	if err := s.repo.Update(ctx, o); err != nil {
		return nil, internalError(s.logger, "toggle offer", err)
	}

	s.logger.Info("offer toggled",
		zap.String("offer_id", offerID.String()),
		zap.Bool("active", o.IsActive()),
	)
	return toOfferDTO(o), nil
}

// DeleteOffer soft-deletes an offer.
func (s *OfferService) DeleteOffer(ctx context.Context, offerID uuid.UUID) error {
	o, err := s.repo.FindByID(ctx, offerID)
	if err != nil {
		return internalError(s.logger, "delete offer", err)
	}
	if o.IsDeleted() {
		return nil
	}
	o.SoftDelete()
	if err := s.repo.Update(ctx, o); err != nil {
		return internalError(s.logger, "delete offer", err)
	}

	s.logger.Info("offer deleted", zap.String("offer_id", offerID.String()))
	return nil
}

// MaxActiveDiscount returns the largest discount in force today.
func (s *OfferService) MaxActiveDiscount(ctx context.Context) (*ActiveDiscountDTO, error) {
	pct, err := s.pricer.activeDiscount(ctx)
	if err != nil {
		return nil, internalError(s.logger, "max active discount", err)
	}
	y, m, d := s.pricer.now().UTC().Date()
	return &ActiveDiscountDTO{
		Date:     time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Discount: pct.StringFixed(2),
	}, nil
}

func toOfferDTO(o *offerDomain.Offer) *OfferDTO {
	return &OfferDTO{
		ID:          o.ID(),
		Title:       o.Title(),
		Description: o.Description(),
		Discount:    o.Discount().StringFixed(2),
		StartDate:   o.StartDate(),
		EndDate:     o.EndDate(),
		Active:      o.IsActive(),
		Deleted:     o.IsDeleted(),
		CreatedAt:   o.CreatedAt(),
	}
}
