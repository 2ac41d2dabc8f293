package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/roadrunner-rentals/service-rental/internal/domain/pricing"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/apperror"
	"github.com/shopspring/decimal"
)

// Status represents the settlement state of a payment.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

// IsValid returns true if the status is a recognised payment status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Built-in payment method keys.
const (
	MethodCard = "card"
	MethodCash = "cash"
)

// NormalizeMethod canonicalises a method name for registry lookups.
func NormalizeMethod(method string) string {
	return strings.ToLower(strings.TrimSpace(method))
}

// Payment is the settlement record of a booking. A booking has at most one.
type Payment struct {
	id            uuid.UUID
	bookingID     uuid.UUID
	amount        decimal.Decimal
	method        string
	status        Status
	transactionID string
	paymentDate   time.Time
	version       int64
	createdAt     time.Time
	updatedAt     time.Time
}

// NewPayment creates a payment record. Strategies are the only callers.
func NewPayment(bookingID uuid.UUID, amount decimal.Decimal, method string, status Status, transactionID string, now time.Time) (*Payment, error) {
	if bookingID == uuid.Nil {
		return nil, apperror.NewValidationError("booking ID is required")
	}
	if amount.IsNegative() {
		return nil, apperror.NewValidationError("payment amount must not be negative")
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid payment status: %s", status)
	}
	at := now.UTC()
	return &Payment{
		id:            uuid.New(),
		bookingID:     bookingID,
		amount:        pricing.Round2(amount),
		method:        NormalizeMethod(method),
		status:        status,
		transactionID: transactionID,
		paymentDate:   at,
		version:       1,
		createdAt:     at,
		updatedAt:     at,
	}, nil
}

// Reconstruct rebuilds a Payment from persistence data (no validation).
func Reconstruct(
	id, bookingID uuid.UUID,
	amount decimal.Decimal,
	method string,
	status Status,
	transactionID string,
	paymentDate time.Time,
	version int64,
	createdAt, updatedAt time.Time,
) *Payment {
	return &Payment{
		id:            id,
		bookingID:     bookingID,
		amount:        amount,
		method:        method,
		status:        status,
		transactionID: transactionID,
		paymentDate:   paymentDate,
		version:       version,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}
}

// ID returns the payment identifier.
func (p *Payment) ID() uuid.UUID { return p.id }

// BookingID returns the booking this payment settles.
func (p *Payment) BookingID() uuid.UUID { return p.bookingID }

// Amount returns the amount paid.
func (p *Payment) Amount() decimal.Decimal { return p.amount }

// Method returns the payment method key.
func (p *Payment) Method() string { return p.method }

// Status returns the current payment status.
func (p *Payment) Status() Status { return p.status }

// TransactionID returns the card transaction id; empty for cash.
func (p *Payment) TransactionID() string { return p.transactionID }

// PaymentDate returns when the payment was taken.
func (p *Payment) PaymentDate() time.Time { return p.paymentDate }

// Version returns the optimistic locking version.
func (p *Payment) Version() int64 { return p.version }

// CreatedAt returns the creation timestamp.
func (p *Payment) CreatedAt() time.Time { return p.createdAt }

// UpdatedAt returns the last update timestamp.
func (p *Payment) UpdatedAt() time.Time { return p.updatedAt }

// Confirm completes a pending cash payment.
func (p *Payment) Confirm(now time.Time) error {
	if p.method != MethodCash || p.status != StatusPending {
		return apperror.NewInvalidTransitionError(
			fmt.Sprintf("only pending cash payments can be confirmed (payment is %s %s)", p.status, p.method))
	}
	p.status = StatusCompleted
	p.paymentDate = now.UTC()
	p.updatedAt = now.UTC()
	return nil
}

// Cancel marks the payment cancelled. Returns false when it already was.
func (p *Payment) Cancel(now time.Time) bool {
	if p.status == StatusCancelled {
		return false
	}
	p.status = StatusCancelled
	p.updatedAt = now.UTC()
	return true
}

// IncrementVersion bumps the optimistic locking version.
func (p *Payment) IncrementVersion() {
	p.version++
	p.updatedAt = time.Now().UTC()
}

// Summary aggregates payments for the admin dashboard.
type Summary struct {
	CompletedRevenue decimal.Decimal
	CountByMethod    map[string]int64
	CountByStatus    map[string]int64
}

// Repository defines persistence for payments.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	LockByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	// FindByBookingID returns NotFound when the booking has no payment.
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*Payment, error)
	ExistsForBooking(ctx context.Context, bookingID uuid.UUID) (bool, error)
	ListAll(ctx context.Context, page, limit int) ([]*Payment, int64, error)
	Summarize(ctx context.Context) (*Summary, error)
	Save(ctx context.Context, payment *Payment) error
	Update(ctx context.Context, payment *Payment) error
	Delete(ctx context.Context, id uuid.UUID) error
}
