package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/roadrunner-rentals/service-rental/internal/domain/booking"
	"github.com/roadrunner-rentals/service-rental/internal/domain/fleet"
	"github.com/roadrunner-rentals/service-rental/internal/domain/offer"
	"github.com/roadrunner-rentals/service-rental/internal/domain/payment"
	"github.com/roadrunner-rentals/service-rental/internal/events"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/apperror"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/kafka"
	"go.uber.org/zap"
)

// Transactor runs fn atomically. Repository calls made with the ctx passed to
// fn join the transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher delivers lifecycle events to read-only consumers.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}

// Repositories groups the persistence ports the services need.
type Repositories struct {
	Vehicles fleet.VehicleRepository
	Packages fleet.PackageRepository
	Bookings booking.BookingRepository
	Payments payment.Repository
	Offers   offer.Repository
}

// Requester identifies who is calling. Staff may act on any customer's records.
type Requester struct {
	UserID uuid.UUID
	Staff  bool
}

// CanAccess reports whether the requester may see records owned by customerID.
func (r Requester) CanAccess(customerID uuid.UUID) bool {
	return r.Staff || r.UserID == customerID
}

// Option customises a service.
type Option func(*options)

type options struct {
	now              func() time.Time
	trustClientTotal bool
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithTrustClientTotal stores a positive caller-supplied total instead of the
// computed one.
func WithTrustClientTotal(trust bool) Option {
	return func(o *options) { o.trustClientTotal = trust }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// PaginatedResult is a page of items plus paging metadata.
type PaginatedResult[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginatedResult builds a PaginatedResult.
func NewPaginatedResult[T any](items []T, total int64, page, limit int) *PaginatedResult[T] {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return &PaginatedResult[T]{Items: items, Total: total, Page: page, Limit: limit, TotalPages: pages}
}

// internalError logs an unexpected failure once and hides it behind
// apperror.Internal. Classified errors pass through untouched.
func internalError(logger *zap.Logger, op string, err error) error {
	if err == nil || apperror.IsBusiness(err) {
		return err
	}
	logger.Error("operation failed",
		zap.String("operation", op),
		zap.Error(err),
	)
	return apperror.NewInternalError(err)
}

// publishEvent wraps data in a CloudEvent and publishes it. Failures are
// logged; the state change they describe has already committed.
func publishEvent(ctx context.Context, producer EventPublisher, logger *zap.Logger, topic, eventType, key string, data interface{}) {
	if producer == nil {
		return
	}
	cloudEvent, err := kafka.NewCloudEvent(events.Source, eventType, key, data)
	if err != nil {
		logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}

	if err := producer.PublishEvent(ctx, topic, cloudEvent); err != nil {
		logger.Error("failed to publish event",
			zap.String("topic", topic),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
