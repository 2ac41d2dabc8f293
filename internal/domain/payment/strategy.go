package payment

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/roadrunner-rentals/service-rental/internal/domain/booking"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/apperror"
	"github.com/shopspring/decimal"
)

// Outcome is what a strategy decides: the payment to persist and the status
// the booking should move to.
type Outcome struct {
	Payment       *Payment
	BookingStatus booking.BookingStatus
}

// Strategy settles a booking through one payment method.
type Strategy interface {
	// Method returns the registry key the strategy claims.
	Method() string
	Process(b *booking.Booking, amount decimal.Decimal, transactionID string, now time.Time) (Outcome, error)
}

// CardStrategy settles immediately.
type CardStrategy struct {
	newTransactionID func() string
}

// NewCardStrategy creates a card strategy generating TXN-<uuid> ids when the
// caller supplies none.
func NewCardStrategy() *CardStrategy {
	return &CardStrategy{newTransactionID: func() string { return "TXN-" + uuid.NewString() }}
}

// Method returns "card".
func (s *CardStrategy) Method() string { return MethodCard }

// Process completes the payment at once and confirms the booking.
func (s *CardStrategy) Process(b *booking.Booking, amount decimal.Decimal, transactionID string, now time.Time) (Outcome, error) {
	if strings.TrimSpace(transactionID) == "" {
		transactionID = s.newTransactionID()
	}
	p, err := NewPayment(b.ID(), amount, MethodCard, StatusCompleted, transactionID, now)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Payment: p, BookingStatus: booking.StatusConfirmed}, nil
}

// CashStrategy records a payment that staff confirm later.
type CashStrategy struct{}

// NewCashStrategy creates a cash strategy.
func NewCashStrategy() *CashStrategy { return &CashStrategy{} }

// Method returns "cash".
func (s *CashStrategy) Method() string { return MethodCash }

// Process ignores transactionID: cash payments never carry one.
func (s *CashStrategy) Process(b *booking.Booking, amount decimal.Decimal, _ string, now time.Time) (Outcome, error) {
	p, err := NewPayment(b.ID(), amount, MethodCash, StatusPending, "", now)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Payment: p, BookingStatus: booking.StatusPaymentPending}, nil
}

// Registry resolves method names to strategies.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry registers the strategies, failing if two claim the same method.
func NewRegistry(strategies ...Strategy) (*Registry, error) {
	r := &Registry{strategies: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		key := NormalizeMethod(s.Method())
		if key == "" {
			return nil, fmt.Errorf("payment strategy %T has an empty method name", s)
		}
		if existing, dup := r.strategies[key]; dup {
			return nil, fmt.Errorf("payment method %q claimed by both %T and %T", key, existing, s)
		}
		r.strategies[key] = s
	}
	return r, nil
}

// NewRegistryFor builds a registry of the built-in strategies named in methods.
func NewRegistryFor(methods []string) (*Registry, error) {
	builtin := map[string]func() Strategy{
		MethodCard: func() Strategy { return NewCardStrategy() },
		MethodCash: func() Strategy { return NewCashStrategy() },
	}
	strategies := make([]Strategy, 0, len(methods))
	for _, m := range methods {
		build, ok := builtin[NormalizeMethod(m)]
		if !ok {
			return nil, fmt.Errorf("no built-in payment strategy for %q", m)
		}
		strategies = append(strategies, build())
	}
	return NewRegistry(strategies...)
}

// Resolve returns the strategy for method.
func (r *Registry) Resolve(method string) (Strategy, error) {
	s, ok := r.strategies[NormalizeMethod(method)]
	if !ok {
		return nil, apperror.NewUnsupportedPaymentMethodError(method)
	}
	return s, nil
}

// Methods lists the registered method keys, sorted.
func (r *Registry) Methods() []string {
	out := make([]string, 0, len(r.strategies))
	for k := range r.strategies {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
