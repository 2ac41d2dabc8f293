package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	bookingDomain "github.com/roadrunner-rentals/service-rental/internal/domain/booking"
	"github.com/roadrunner-rentals/service-rental/internal/domain/payment"
	"github.com/roadrunner-rentals/service-rental/internal/events"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/apperror"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateBookingRequest holds the data needed to create a new booking.
// TotalCost is what the client displayed; the stored total is computed.
type CreateBookingRequest struct {
	BookingType string           `json:"booking_type" binding:"required"`
	ResourceID  uuid.UUID        `json:"resource_id" binding:"required"`
	StartDate   time.Time        `json:"start_date" binding:"required"`
	EndDate     time.Time        `json:"end_date" binding:"required"`
	TotalCost   *decimal.Decimal `json:"total_cost"`
}

// CheckoutRequest creates a booking and pays for it in one step.
type CheckoutRequest struct {
	CreateBookingRequest
	PaymentMethod string `json:"payment_method" binding:"required"`
	TransactionID string `json:"transaction_id"`
}

// BookingDTO is the response representation of a booking.
type BookingDTO struct {
	ID            uuid.UUID   `json:"id"`
	BookingNumber string      `json:"booking_number"`
	CustomerID    uuid.UUID   `json:"customer_id"`
	BookingType   string      `json:"booking_type"`
	VehicleID     *uuid.UUID  `json:"vehicle_id,omitempty"`
	PackageID     *uuid.UUID  `json:"package_id,omitempty"`
	VehicleIDs    []uuid.UUID `json:"vehicle_ids"`
	StartDate     time.Time   `json:"start_date"`
	EndDate       time.Time   `json:"end_date"`
	TotalCost     string      `json:"total_cost"`
	Status        string      `json:"status"`
	CancelledAt   *time.Time  `json:"cancelled_at,omitempty"`
	ReturnedAt    *time.Time  `json:"returned_at,omitempty"`
	Version       int64       `json:"version"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// CheckoutDTO is a booking together with its payment.
type CheckoutDTO struct {
	Booking BookingDTO  `json:"booking"`
	Payment *PaymentDTO `json:"payment,omitempty"`
}

// BookingStatsDTO holds aggregate booking statistics.
type BookingStatsDTO struct {
	TotalBookings int64            `json:"total_bookings"`
	ByStatus      map[string]int64 `json:"by_status"`
}

// BookingService is the application service orchestrating booking use cases.
type BookingService struct {
	tx       Transactor
	repos    Repositories
	checker  *AvailabilityChecker
	sync     *fleetSync
	pricer   *pricer
	registry *payment.Registry
	producer EventPublisher
	logger   *zap.Logger
	opts     options
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	tx Transactor,
	repos Repositories,
	registry *payment.Registry,
	producer EventPublisher,
	logger *zap.Logger,
	opts ...Option,
) *BookingService {
	o := buildOptions(opts)
	return &BookingService{
		tx:       tx,
		repos:    repos,
		checker:  NewAvailabilityChecker(repos),
		sync:     newFleetSync(repos),
		pricer:   &pricer{offers: repos.Offers, now: o.now},
		registry: registry,
		producer: producer,
		logger:   logger,
		opts:     o,
	}
}

// CreateBooking reserves a vehicle or package for the customer and confirms it.
func (s *BookingService) CreateBooking(ctx context.Context, customerID uuid.UUID, req CreateBookingRequest) (*BookingDTO, error) {
	var bk *bookingDomain.Booking
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := s.prepare(ctx, customerID, req, bookingDomain.StatusConfirmed)
		if err != nil {
			return err
		}
		if err := s.persistNew(ctx, b); err != nil {
			return err
		}
		bk = b
		return nil
	})
	if err != nil {
		return nil, internalError(s.logger, "create booking", err)
	}

	s.logger.Info("booking created",
		zap.String("booking_id", bk.ID().String()),
		zap.String("booking_number", bk.BookingNumber()),
		zap.String("total_cost", bk.TotalCost().StringFixed(2)),
	)
	s.publishBookingEvent(ctx, events.BookingCreated, bk)

	result := toBookingDTO(bk)
	return &result, nil
}

// CreateBookingWithPayment creates a booking awaiting payment and settles it
// through the chosen payment method in the same transaction.
func (s *BookingService) CreateBookingWithPayment(ctx context.Context, customerID uuid.UUID, req CheckoutRequest) (*CheckoutDTO, error) {
	strategy, err := s.registry.Resolve(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	var (
		bk  *bookingDomain.Booking
		pay *payment.Payment
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := s.prepare(ctx, customerID, req.CreateBookingRequest, bookingDomain.StatusPendingPayment)
		if err != nil {
			return err
		}
		outcome, err := strategy.Process(b, b.TotalCost(), req.TransactionID, s.opts.now())
		if err != nil {
			return err
		}
		if _, err := b.ApplyPaymentOutcome(outcome.BookingStatus); err != nil {
			return err
		}
		if err := s.persistNew(ctx, b); err != nil {
			return err
		}
		if err := s.repos.Payments.Save(ctx, outcome.Payment); err != nil {
			return err
		}
		bk, pay = b, outcome.Payment
		return nil
	})
	if err != nil {
		return nil, internalError(s.logger, "create booking with payment", err)
	}

	s.logger.Info("booking checked out",
		zap.String("booking_id", bk.ID().String()),
		zap.String("payment_id", pay.ID().String()),
		zap.String("method", pay.Method()),
		zap.String("booking_status", bk.Status().String()),
	)
	s.publishBookingEvent(ctx, events.BookingCreated, bk)
	publishPaymentEvent(ctx, s.producer, s.logger, events.PaymentProcessed, pay, bk.Status())

	paymentDTO := toPaymentDTO(pay)
	return &CheckoutDTO{Booking: toBookingDTO(bk), Payment: &paymentDTO}, nil
}

// prepare resolves and locks the resource, checks it is free, prices the
// rental and builds the booking. Nothing is written.
func (s *BookingService) prepare(
	ctx context.Context,
	customerID uuid.UUID,
	req CreateBookingRequest,
	initial bookingDomain.BookingStatus,
) (*bookingDomain.Booking, error) {
	bookingType, err := bookingDomain.ParseBookingType(req.BookingType)
	if err != nil {
		return nil, apperror.NewValidationError(err.Error())
	}
	start, end := req.StartDate.UTC(), req.EndDate.UTC()
	if err := bookingDomain.ValidateRange(start, end); err != nil {
		return nil, err
	}

	switch bookingType {
	case bookingDomain.TypePackage:
		pkg, err := s.repos.Packages.FindByID(ctx, req.ResourceID)
		if err != nil {
			return nil, err
		}
		members, err := s.repos.Vehicles.LockByIDs(ctx, pkg.VehicleIDs())
		if err != nil {
			return nil, err
		}
		if err := pkg.CheckBookable(members); err != nil {
			return nil, err
		}
		if err := s.checker.checkFree(ctx, pkg.VehicleIDs(), start, end); err != nil {
			return nil, err
		}
		total := s.resolveTotal(pkg.Cost(start, end), req.TotalCost, pkg.ID())
		return bookingDomain.NewPackageBooking(customerID, pkg.ID(), pkg.VehicleIDs(), start, end, total, initial)

	default:
		if _, err := s.repos.Vehicles.FindByID(ctx, req.ResourceID); err != nil {
			return nil, err
		}
		locked, err := s.repos.Vehicles.LockByIDs(ctx, []uuid.UUID{req.ResourceID})
		if err != nil {
			return nil, err
		}
		if len(locked) == 0 {
			return nil, apperror.NewNotFoundError("Vehicle", req.ResourceID.String())
		}
		v := locked[0]
		if !v.IsReservable() {
			return nil, apperror.NewNotAvailableError(
				fmt.Sprintf("vehicle %s is %s", v.Registration(), v.Status()))
		}
		if err := s.checker.checkFree(ctx, []uuid.UUID{v.ID()}, start, end); err != nil {
			return nil, err
		}
		if err := s.pricer.discount(ctx, v); err != nil {
			return nil, err
		}
		total := s.resolveTotal(v.Cost(start, end), req.TotalCost, v.ID())
		return bookingDomain.NewVehicleBooking(customerID, v.ID(), start, end, total, initial)
	}
}

// resolveTotal picks the amount to store: the computed cost, unless the
// service is configured to trust a positive client total.
func (s *BookingService) resolveTotal(computed decimal.Decimal, supplied *decimal.Decimal, resourceID uuid.UUID) decimal.Decimal {
	if supplied == nil || supplied.Round(2).Equal(computed) {
		return computed
	}
	if s.opts.trustClientTotal && supplied.IsPositive() {
		return *supplied
	}
	s.logger.Warn("client total differs from computed cost; using computed cost",
		zap.String("resource_id", resourceID.String()),
		zap.String("supplied", supplied.StringFixed(2)),
		zap.String("computed", computed.StringFixed(2)),
	)
	return computed
}

func (s *BookingService) persistNew(ctx context.Context, bk *bookingDomain.Booking) error {
	if err := s.repos.Bookings.Save(ctx, bk); err != nil {
		return err
	}
	return s.sync.resync(ctx, bk.HeldVehicleIDs())
}

// CancelBooking cancels a booking and releases its vehicles. A pending
// payment is cancelled with it. Cancelling twice is a no-op.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID uuid.UUID, requester Requester) (*BookingDTO, error) {
	var (
		bk               *bookingDomain.Booking
		changed          bool
		cancelledPayment *payment.Payment
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := s.repos.Bookings.LockByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if !requester.CanAccess(b.CustomerID()) {
			return apperror.NewNotFoundError("Booking", bookingID.String())
		}
		bk = b

		changed, err = b.Cancel(s.opts.now())
		if err != nil || !changed {
			return err
		}
		b.IncrementVersion()
		if err := s.repos.Bookings.Update(ctx, b); err != nil {
			return err
		}

		p, err := s.repos.Payments.FindByBookingID(ctx, b.ID())
		switch {
		case apperror.Is(err, apperror.KindNotFound):
		case err != nil:
			return err
		case p.Status() == payment.StatusPending:
			p.Cancel(s.opts.now())
			p.IncrementVersion()
			if err := s.repos.Payments.Update(ctx, p); err != nil {
				return err
			}
			cancelledPayment = p
		}

		return s.sync.resync(ctx, b.HeldVehicleIDs())
	})
	if err != nil {
		return nil, internalError(s.logger, "cancel booking", err)
	}

	if changed {
		s.logger.Info("booking cancelled",
			zap.String("booking_id", bk.ID().String()),
			zap.String("cancelled_by", requester.UserID.String()),
		)
		s.publishBookingEvent(ctx, events.BookingCancelled, bk)
	}
	if cancelledPayment != nil {
		publishPaymentEvent(ctx, s.producer, s.logger, events.PaymentCancelled, cancelledPayment, bk.Status())
	}

	result := toBookingDTO(bk)
	return &result, nil
}

// ReturnBooking records that the vehicles came back and frees them.
// Returning twice is a no-op.
func (s *BookingService) ReturnBooking(ctx context.Context, bookingID uuid.UUID) (*BookingDTO, error) {
	var (
		bk      *bookingDomain.Booking
		changed bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := s.repos.Bookings.LockByID(ctx, bookingID)
		if err != nil {
			return err
		}
		bk = b

		changed, err = b.Return(s.opts.now())
		if err != nil || !changed {
			return err
		}
		b.IncrementVersion()
		if err := s.repos.Bookings.Update(ctx, b); err != nil {
			return err
		}
		return s.sync.resync(ctx, b.HeldVehicleIDs())
	})
	if err != nil {
		return nil, internalError(s.logger, "return booking", err)
	}

	if changed {
		s.logger.Info("booking returned", zap.String("booking_id", bk.ID().String()))
		s.publishBookingEvent(ctx, events.BookingReturned, bk)
	}

	result := toBookingDTO(bk)
	return &result, nil
}

// DeleteBooking removes a booking that has no payment and frees its vehicles.
func (s *BookingService) DeleteBooking(ctx context.Context, bookingID uuid.UUID) error {
	var bk *bookingDomain.Booking
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := s.repos.Bookings.LockByID(ctx, bookingID)
		if err != nil {
			return err
		}
		paid, err := s.repos.Payments.ExistsForBooking(ctx, b.ID())
		if err != nil {
			return err
		}
		if paid {
			return apperror.NewInvalidBookingStateError(
				fmt.Sprintf("booking %s has a payment; delete the payment first", b.BookingNumber()))
		}
		if err := s.repos.Bookings.Delete(ctx, b.ID()); err != nil {
			return err
		}
		bk = b
		return s.sync.resync(ctx, b.HeldVehicleIDs())
	})
	if err != nil {
		return internalError(s.logger, "delete booking", err)
	}

	s.logger.Info("booking deleted", zap.String("booking_id", bookingID.String()))
	s.publishBookingEvent(ctx, events.BookingDeleted, bk)
	return nil
}

// GetBooking retrieves a single booking visible to the requester.
func (s *BookingService) GetBooking(ctx context.Context, bookingID uuid.UUID, requester Requester) (*BookingDTO, error) {
	bk, err := s.repos.Bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, internalError(s.logger, "get booking", err)
	}
	if !requester.CanAccess(bk.CustomerID()) {
		return nil, apperror.NewNotFoundError("Booking", bookingID.String())
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// ListCustomerBookings returns a customer's bookings, newest first.
func (s *BookingService) ListCustomerBookings(ctx context.Context, customerID uuid.UUID, page, limit int) (*PaginatedResult[BookingDTO], error) {
	bookings, total, err := s.repos.Bookings.FindByCustomerID(ctx, customerID, page, limit)
	if err != nil {
		return nil, internalError(s.logger, "list customer bookings", err)
	}
	return NewPaginatedResult(toBookingDTOs(bookings), total, page, limit), nil
}

// ListVehicleBookings returns every booking that held the vehicle.
func (s *BookingService) ListVehicleBookings(ctx context.Context, vehicleID uuid.UUID) ([]BookingDTO, error) {
	if _, err := s.repos.Vehicles.FindByID(ctx, vehicleID); err != nil {
		return nil, internalError(s.logger, "list vehicle bookings", err)
	}
	bookings, err := s.repos.Bookings.FindByVehicleID(ctx, vehicleID)
	if err != nil {
		return nil, internalError(s.logger, "list vehicle bookings", err)
	}
	return toBookingDTOs(bookings), nil
}

// ListAllBookings returns a paginated list of all bookings (admin).
func (s *BookingService) ListAllBookings(ctx context.Context, page, limit int) ([]BookingDTO, int64, error) {
	bookings, total, err := s.repos.Bookings.ListAll(ctx, page, limit)
	if err != nil {
		return nil, 0, internalError(s.logger, "list bookings", fmt.Errorf("failed to list bookings: %w", err))
	}
	return toBookingDTOs(bookings), total, nil
}

// GetBookingStats returns aggregate booking statistics (admin).
func (s *BookingService) GetBookingStats(ctx context.Context) (*BookingStatsDTO, error) {
	counts, err := s.repos.Bookings.CountByStatus(ctx)
	if err != nil {
		return nil, internalError(s.logger, "booking stats", fmt.Errorf("failed to get booking stats: %w", err))
	}

	var total int64
	for _, c := range counts {
		total += c
	}

	return &BookingStatsDTO{
		TotalBookings: total,
		ByStatus:      counts,
	}, nil
}

// --- Helpers ---

func (s *BookingService) publishBookingEvent(ctx context.Context, eventType string, bk *bookingDomain.Booking) {
	evt := events.BookingEvent{
		BookingID:     bk.ID(),
		BookingNumber: bk.BookingNumber(),
		CustomerID:    bk.CustomerID(),
		BookingType:   string(bk.Type()),
		ResourceID:    bk.ResourceID(),
		VehicleIDs:    bk.HeldVehicleIDs(),
		StartDate:     bk.StartDate(),
		EndDate:       bk.EndDate(),
		TotalCost:     bk.TotalCost().StringFixed(2),
		Status:        bk.Status().String(),
		OccurredAt:    s.opts.now().UTC(),
	}
	publishEvent(ctx, s.producer, s.logger, events.TopicBookingEvents, eventType, bk.ID().String(), evt)
}

func toBookingDTO(bk *bookingDomain.Booking) BookingDTO {
	return BookingDTO{
		ID:            bk.ID(),
		BookingNumber: bk.BookingNumber(),
		CustomerID:    bk.CustomerID(),
		BookingType:   string(bk.Type()),
		VehicleID:     bk.VehicleID(),
		PackageID:     bk.PackageID(),
		VehicleIDs:    bk.HeldVehicleIDs(),
		StartDate:     bk.StartDate(),
		EndDate:       bk.EndDate(),
		TotalCost:     bk.TotalCost().StringFixed(2),
		Status:        bk.Status().String(),
		CancelledAt:   bk.CancelledAt(),
		ReturnedAt:    bk.ReturnedAt(),
		Version:       bk.Version(),
		CreatedAt:     bk.CreatedAt(),
		UpdatedAt:     bk.UpdatedAt(),
	}
}

func toBookingDTOs(bookings []*bookingDomain.Booking) []BookingDTO {
	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk)
	}
	return dtos
}
