package offer

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/roadrunner-rentals/service-rental/internal/domain/pricing"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/apperror"
	"github.com/shopspring/decimal"
)

var maxPercent = decimal.NewFromInt(100)

// Offer is a time-boxed percentage discount on vehicle rates.
type Offer struct {
	id          uuid.UUID
	title       string
	description string
	discount    decimal.Decimal
	startDate   time.Time
	endDate     time.Time
	active      bool
	deleted     bool
	createdAt   time.Time
	updatedAt   time.Time
}

// NewOffer creates an active offer valid from start to end inclusive.
func NewOffer(title, description string, discount decimal.Decimal, start, end time.Time) (*Offer, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperror.NewValidationError("offer title is required")
	}
	if discount.IsNegative() || discount.GreaterThan(maxPercent) {
		return nil, apperror.NewValidationError("discount must be between 0 and 100 percent")
	}
	start, end = pricing.DateOf(start), pricing.DateOf(end)
	if end.Before(start) {
		return nil, apperror.NewValidationError("offer end date must not precede its start date")
	}

	now := time.Now().UTC()
	return &Offer{
		id:          uuid.New(),
		title:       title,
		description: description,
		discount:    discount.Round(2),
		startDate:   start,
		endDate:     end,
		active:      true,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// Reconstruct rebuilds an Offer from persistence data (no validation).
func Reconstruct(
	id uuid.UUID,
	title, description string,
	discount decimal.Decimal,
	startDate, endDate time.Time,
	active, deleted bool,
	createdAt, updatedAt time.Time,
) *Offer {
	return &Offer{
		id:          id,
		title:       title,
		description: description,
		discount:    discount,
		startDate:   startDate,
		endDate:     endDate,
		active:      active,
		deleted:     deleted,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// ID returns the offer identifier.
func (o *Offer) ID() uuid.UUID { return o.id }

// Title returns the offer title.
func (o *Offer) Title() string { return o.title }

// Description returns the offer description.
func (o *Offer) Description() string { return o.description }

// Discount returns the discount percentage.
func (o *Offer) Discount() decimal.Decimal { return o.discount }

// StartDate returns the first day the offer applies.
func (o *Offer) StartDate() time.Time { return o.startDate }

// EndDate returns the last day the offer applies.
func (o *Offer) EndDate() time.Time { return o.endDate }

// IsActive reports whether the offer is switched on.
func (o *Offer) IsActive() bool { return o.active }

// IsDeleted reports whether the offer was soft-deleted.
func (o *Offer) IsDeleted() bool { return o.deleted }

// CreatedAt returns the creation timestamp.
func (o *Offer) CreatedAt() time.Time { return o.createdAt }

// UpdatedAt returns the last update timestamp.
func (o *Offer) UpdatedAt() time.Time { return o.updatedAt }

// AppliesOn reports whether the offer is in force on the given day.
func (o *Offer) AppliesOn(day time.Time) bool {
	if !o.active || o.deleted {
		return false
	}
	d := pricing.DateOf(day)
	return !d.Before(pricing.DateOf(o.startDate)) && !d.After(pricing.DateOf(o.endDate))
}

// Toggle flips the active flag.
func (o *Offer) Toggle() {
	o.active = !o.active
	o.updatedAt = time.Now().UTC()
}

// SoftDelete hides the offer without removing the record.
func (o *Offer) SoftDelete() {
	o.deleted = true
	o.active = false
	o.updatedAt = time.Now().UTC()
}

// MaxActiveDiscount returns the largest discount among offers in force on
// day. Discounts do not stack.
func MaxActiveDiscount(offers []*Offer, day time.Time) decimal.Decimal {
	best := decimal.Zero
	for _, o := range offers {
		if o.AppliesOn(day) && o.discount.GreaterThan(best) {
			best = o.discount
		}
	}
	return best
}

// Repository defines persistence for offers.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Offer, error)
	List(ctx context.Context, includeDeleted bool) ([]*Offer, error)
	// FindApplicable returns active, non-deleted offers whose window covers day.
	FindApplicable(ctx context.Context, day time.Time) ([]*Offer, error)
	Save(ctx context.Context, offer *Offer) error
	Update(ctx context.Context, offer *Offer) error
}
