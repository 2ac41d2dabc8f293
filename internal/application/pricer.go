package application

import (
	"context"
	"time"

	"github.com/roadrunner-rentals/service-rental/internal/domain/fleet"
	"github.com/roadrunner-rentals/service-rental/internal/domain/offer"
	"github.com/shopspring/decimal"
)

// pricer applies the offer in force today to vehicle rates.
type pricer struct {
	offers offer.Repository
	now    func() time.Time
}

// activeDiscount returns the largest discount among offers in force today.
func (p *pricer) activeDiscount(ctx context.Context) (decimal.Decimal, error) {
	today := p.now()
	offers, err := p.offers.FindApplicable(ctx, today)
	if err != nil {
		return decimal.Zero, err
	}
	return offer.MaxActiveDiscount(offers, today), nil
}

// discount sets the transient discounted rate on each vehicle. Vehicles that
// are not Available keep their base rate.
func (p *pricer) discount(ctx context.Context, vehicles ...*fleet.Vehicle) error {
	if len(vehicles) == 0 {
		return nil
	}
	pct, err := p.activeDiscount(ctx)
	if err != nil {
		return err
	}
	for _, v := range vehicles {
		v.ApplyDiscount(pct)
	}
	return nil
}
