package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	bookingDomain "github.com/roadrunner-rentals/service-rental/internal/domain/booking"
	"github.com/roadrunner-rentals/service-rental/internal/domain/payment"
	"github.com/roadrunner-rentals/service-rental/internal/events"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/apperror"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProcessPaymentRequest pays for an existing booking. Amount defaults to the
// booking total.
type ProcessPaymentRequest struct {
	BookingID     uuid.UUID        `json:"booking_id" binding:"required"`
	Method        string           `json:"method" binding:"required"`
	Amount        *decimal.Decimal `json:"amount"`
	TransactionID string           `json:"transaction_id"`
}

// PaymentDTO is the response representation of a payment.
type PaymentDTO struct {
	ID            uuid.UUID `json:"id"`
	BookingID     uuid.UUID `json:"booking_id"`
	Amount        string    `json:"amount"`
	Method        string    `json:"method"`
	Status        string    `json:"status"`
	TransactionID string    `json:"transaction_id,omitempty"`
	PaymentDate   time.Time `json:"payment_date"`
	Version       int64     `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PaymentResultDTO is a payment with the booking status it produced.
type PaymentResultDTO struct {
	Payment       PaymentDTO `json:"payment"`
	BookingStatus string     `json:"booking_status"`
}

// PaymentSummaryDTO aggregates payments for the admin dashboard.
type PaymentSummaryDTO struct {
	CompletedRevenue string           `json:"completed_revenue"`
	ByMethod         map[string]int64 `json:"by_method"`
	ByStatus         map[string]int64 `json:"by_status"`
}

// PaymentService settles bookings through the payment strategies.
type PaymentService struct {
	tx       Transactor
	repos    Repositories
	sync     *fleetSync
	registry *payment.Registry
	producer EventPublisher
	logger   *zap.Logger
	opts     options
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(
	tx Transactor,
	repos Repositories,
	registry *payment.Registry,
	producer EventPublisher,
	logger *zap.Logger,
	opts ...Option,
) *PaymentService {
	return &PaymentService{
		tx:       tx,
		repos:    repos,
		sync:     newFleetSync(repos),
		registry: registry,
		producer: producer,
		logger:   logger,
		opts:     buildOptions(opts),
	}
}

// ProcessPayment records the booking's single payment and moves the booking
// to the status the payment method implies.
func (s *PaymentService) ProcessPayment(ctx context.Context, req ProcessPaymentRequest, requester Requester) (*PaymentResultDTO, error) {
	var (
		bk  *bookingDomain.Booking
		pay *payment.Payment
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := s.repos.Bookings.LockByID(ctx, req.BookingID)
		if err != nil {
			return err
		}
		if !requester.CanAccess(b.CustomerID()) {
			return apperror.NewNotFoundError("Booking", req.BookingID.String())
		}
		paid, err := s.repos.Payments.ExistsForBooking(ctx, b.ID())
		if err != nil {
			return err
		}
		if paid {
			return apperror.NewAlreadyPaidError(b.ID().String())
		}
		if !b.Status().AcceptsPayment() {
			return apperror.NewInvalidBookingStateError(
				"booking " + b.BookingNumber() + " is " + b.Status().String() + " and cannot be paid")
		}

		strategy, err := s.registry.Resolve(req.Method)
		if err != nil {
			return err
		}
		amount := b.TotalCost()
		if req.Amount != nil {
			amount = *req.Amount
		}
		outcome, err := strategy.Process(b, amount, req.TransactionID, s.opts.now())
		if err != nil {
			return err
		}

		changed, err := b.ApplyPaymentOutcome(outcome.BookingStatus)
		if err != nil {
			return err
		}
		if changed {
			b.IncrementVersion()
			if err := s.repos.Bookings.Update(ctx, b); err != nil {
				return err
			}
		}
		if err := s.repos.Payments.Save(ctx, outcome.Payment); err != nil {
			return err
		}
		bk, pay = b, outcome.Payment
		return nil
	})
	if err != nil {
		return nil, internalError(s.logger, "process payment", err)
	}

	s.logger.Info("payment processed",
		zap.String("payment_id", pay.ID().String()),
		zap.String("booking_id", bk.ID().String()),
		zap.String("method", pay.Method()),
		zap.String("status", string(pay.Status())),
		zap.String("amount", pay.Amount().StringFixed(2)),
	)
	publishPaymentEvent(ctx, s.producer, s.logger, events.PaymentProcessed, pay, bk.Status())

	return &PaymentResultDTO{Payment: toPaymentDTO(pay), BookingStatus: bk.Status().String()}, nil
}

// ConfirmPayment completes a pending cash payment and confirms its booking.
func (s *PaymentService) ConfirmPayment(ctx context.Context, paymentID uuid.UUID) (*PaymentResultDTO, error) {
	var (
		bk  *bookingDomain.Booking
		pay *payment.Payment
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		b, p, err := s.lockBookingAndPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if err := p.Confirm(s.opts.now()); err != nil {
			return err
		}
		if err := b.ConfirmSettlement(); err != nil {
			return err
		}

		p.IncrementVersion()
		if err := s.repos.Payments.Update(ctx, p); err != nil {
			return err
		}
		b.IncrementVersion()
		if err := s.repos.Bookings.Update(ctx, b); err != nil {
			return err
		}
		bk, pay = b, p
		return nil
	})
	if err != nil {
		return nil, internalError(s.logger, "confirm payment", err)
	}

	s.logger.Info("payment confirmed",
		zap.String("payment_id", pay.ID().String()),
		zap.String("booking_id", bk.ID().String()),
	)
	publishPaymentEvent(ctx, s.producer, s.logger, events.PaymentConfirmed, pay, bk.Status())

	return &PaymentResultDTO{Payment: toPaymentDTO(pay), BookingStatus: bk.Status().String()}, nil
}

// CancelPayment cancels the payment and its booking and frees every vehicle
// the booking held. It can be repeated safely; each call re-derives the
// vehicle and package statuses.
func (s *PaymentService) CancelPayment(ctx context.Context, paymentID uuid.UUID) (*PaymentResultDTO, error) {
	var (
		bk               *bookingDomain.Booking
		pay              *payment.Payment
		paymentChanged   bool
		bookingCancelled bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		b, p, err := s.lockBookingAndPayment(ctx, paymentID)
		if err != nil {
			return err
		}

		if b.ForceCancel(s.opts.now()) {
			b.IncrementVersion()
			if err := s.repos.Bookings.Update(ctx, b); err != nil {
				return err
			}
			bookingCancelled = true
		}

		if p.Cancel(s.opts.now()) {
			p.IncrementVersion()
			if err := s.repos.Payments.Update(ctx, p); err != nil {
				return err
			}
			paymentChanged = true
		}

		bk, pay = b, p
		return s.sync.resync(ctx, b.HeldVehicleIDs())
	})
	if err != nil {
		return nil, internalError(s.logger, "cancel payment", err)
	}

	if paymentChanged {
		s.logger.Info("payment cancelled",
			zap.String("payment_id", pay.ID().String()),
			zap.String("booking_id", bk.ID().String()),
			zap.Bool("booking_cancelled", bookingCancelled),
		)
		publishPaymentEvent(ctx, s.producer, s.logger, events.PaymentCancelled, pay, bk.Status())
	}

	return &PaymentResultDTO{Payment: toPaymentDTO(pay), BookingStatus: bk.Status().String()}, nil
}

// DeletePayment removes a payment record. Booking and vehicle state are left
// untouched.
func (s *PaymentService) DeletePayment(ctx context.Context, paymentID uuid.UUID) error {
	p, err := s.repos.Payments.FindByID(ctx, paymentID)
	if err != nil {
		return internalError(s.logger, "delete payment", err)
	}
	if err := s.repos.Payments.Delete(ctx, paymentID); err != nil {
		return internalError(s.logger, "delete payment", err)
	}

	s.logger.Warn("payment deleted",
		zap.String("payment_id", paymentID.String()),
		zap.String("booking_id", p.BookingID().String()),
	)
	publishPaymentEvent(ctx, s.producer, s.logger, events.PaymentDeleted, p, "")
	return nil
}

// SettleCashPayment confirms a cash payment reported collected by the till.
func (s *PaymentService) SettleCashPayment(ctx context.Context, paymentID uuid.UUID) error {
	_, err := s.ConfirmPayment(ctx, paymentID)
	return err
}

// VoidCashPayment cancels a cash payment voided at the till.
func (s *PaymentService) VoidCashPayment(ctx context.Context, paymentID uuid.UUID) error {
	_, err := s.CancelPayment(ctx, paymentID)
	return err
}

// GetPayment returns a payment visible to the requester.
func (s *PaymentService) GetPayment(ctx context.Context, paymentID uuid.UUID, requester Requester) (*PaymentDTO, error) {
	p, err := s.repos.Payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, internalError(s.logger, "get payment", err)
	}
	if err := s.checkOwner(ctx, p.BookingID(), requester); err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return nil, apperror.NewNotFoundError("Payment", paymentID.String())
		}
		return nil, internalError(s.logger, "get payment", err)
	}
	result := toPaymentDTO(p)
	return &result, nil
}

// GetPaymentByBooking returns the payment recorded for a booking.
func (s *PaymentService) GetPaymentByBooking(ctx context.Context, bookingID uuid.UUID, requester Requester) (*PaymentDTO, error) {
	if err := s.checkOwner(ctx, bookingID, requester); err != nil {
		return nil, internalError(s.logger, "get payment by booking", err)
	}
	p, err := s.repos.Payments.FindByBookingID(ctx, bookingID)
	if err != nil {
		return nil, internalError(s.logger, "get payment by booking", err)
	}
	result := toPaymentDTO(p)
	return &result, nil
}

// ListPayments returns a page of all payments (admin).
func (s *PaymentService) ListPayments(ctx context.Context, page, limit int) (*PaginatedResult[PaymentDTO], error) {
	payments, total, err := s.repos.Payments.ListAll(ctx, page, limit)
	if err != nil {
		return nil, internalError(s.logger, "list payments", err)
	}
	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	return NewPaginatedResult(dtos, total, page, limit), nil
}

// PaymentSummary returns completed revenue and payment counts (admin).
func (s *PaymentService) PaymentSummary(ctx context.Context) (*PaymentSummaryDTO, error) {
	sum, err := s.repos.Payments.Summarize(ctx)
	if err != nil {
		return nil, internalError(s.logger, "payment summary", err)
	}
	return &PaymentSummaryDTO{
		CompletedRevenue: sum.CompletedRevenue.StringFixed(2),
		ByMethod:         sum.CountByMethod,
		ByStatus:         sum.CountByStatus,
	}, nil
}

// lockBookingAndPayment locks the payment's booking before the payment
// itself, the same order booking operations take.
func (s *PaymentService) lockBookingAndPayment(ctx context.Context, paymentID uuid.UUID) (*bookingDomain.Booking, *payment.Payment, error) {
	found, err := s.repos.Payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, nil, err
	}
	b, err := s.repos.Bookings.LockByID(ctx, found.BookingID())
	if err != nil {
		return nil, nil, err
	}
	p, err := s.repos.Payments.LockByID(ctx, paymentID)
	if err != nil {
		return nil, nil, err
	}
	return b, p, nil
}

func (s *PaymentService) checkOwner(ctx context.Context, bookingID uuid.UUID, requester Requester) error {
	if requester.Staff {
		return nil
	}
	b, err := s.repos.Bookings.FindByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if !requester.CanAccess(b.CustomerID()) {
		return apperror.NewNotFoundError("Booking", bookingID.String())
	}
	return nil
}

func publishPaymentEvent(
	ctx context.Context,
	producer EventPublisher,
	logger *zap.Logger,
	eventType string,
	p *payment.Payment,
	bookingStatus bookingDomain.BookingStatus,
) {
	evt := events.PaymentEvent{
		PaymentID:     p.ID(),
		BookingID:     p.BookingID(),
		Method:        p.Method(),
		Status:        string(p.Status()),
		Amount:        p.Amount().StringFixed(2),
		TransactionID: p.TransactionID(),
		BookingStatus: bookingStatus.String(),
		OccurredAt:    p.UpdatedAt(),
	}
	publishEvent(ctx, producer, logger, events.TopicPaymentEvents, eventType, p.ID().String(), evt)
}

func toPaymentDTO(p *payment.Payment) PaymentDTO {
	return PaymentDTO{
		ID:            p.ID(),
		BookingID:     p.BookingID(),
		Amount:        p.Amount().StringFixed(2),
		Method:        p.Method(),
		Status:        string(p.Status()),
		TransactionID: p.TransactionID(),
		PaymentDate:   p.PaymentDate(),
		Version:       p.Version(),
		CreatedAt:     p.CreatedAt(),
		UpdatedAt:     p.UpdatedAt(),
	}
}
