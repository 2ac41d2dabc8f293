package events

import (
	"context"

	"github.com/google/uuid"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/apperror"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/kafka"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// PaymentSettler settles cash payments reported by the till.
type PaymentSettler interface {
	SettleCashPayment(ctx context.Context, paymentID uuid.UUID) error
	VoidCashPayment(ctx context.Context, paymentID uuid.UUID) error
}

// CashierEventConsumer listens to till events and confirms or cancels the
// matching cash payments.
type CashierEventConsumer struct {
	consumer *kafka.Consumer
	settler  PaymentSettler
	logger   *zap.Logger
}

// NewCashierEventConsumer creates a new CashierEventConsumer.
func NewCashierEventConsumer(
	brokers []string,
	groupID string,
	settler PaymentSettler,
	logger *zap.Logger,
) *CashierEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, TopicCashierEvents, logger)
	return &CashierEventConsumer{
		consumer: consumer,
		settler:  settler,
		logger:   logger,
	}
}

// Start begins consuming cashier events. This blocks until the context is cancelled.
func (c *CashierEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *CashierEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *CashierEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from cashier topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case CashCollected:
		return c.handle(ctx, cloudEvent, "confirm", c.settler.SettleCashPayment)
	case CashVoided:
		return c.handle(ctx, cloudEvent, "cancel", c.settler.VoidCashPayment)
	default:
		c.logger.Debug("ignoring unhandled cashier event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *CashierEventConsumer) handle(
	ctx context.Context,
	cloudEvent kafka.CloudEvent,
	action string,
	apply func(context.Context, uuid.UUID) error,
) error {
	var evt CashierEvent
	if err := cloudEvent.ParseData(&evt); err != nil || evt.PaymentID == uuid.Nil {
		c.logger.Error("failed to parse CashierEvent data",
			zap.String("event_id", cloudEvent.ID),
			zap.Error(err),
		)
		return nil // Don't retry malformed data
	}

	log := c.logger.With(
		zap.String("action", action),
		zap.String("payment_id", evt.PaymentID.String()),
		zap.String("cashier_id", evt.CashierID.String()),
	)

	if err := apply(ctx, evt.PaymentID); err != nil {
		if apperror.IsBusiness(err) {
			log.Warn("cashier event rejected", zap.Error(err))
			return nil
		}
		log.Error("failed to apply cashier event", zap.Error(err))
		return err
	}

	log.Info("cashier event applied")
	return nil
}
