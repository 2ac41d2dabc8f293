package events

import (
	"time"

	"github.com/google/uuid"
)

// Source is the CloudEvents source of everything this service publishes.
const Source = "service-rental"

// Topics.
const (
	TopicBookingEvents = "rental.booking.events"
	TopicPaymentEvents = "rental.payment.events"
	TopicCashierEvents = "rental.cashier.events"
)

// Booking event types.
const (
	BookingCreated   = "rental.booking.created"
	BookingCancelled = "rental.booking.cancelled"
	BookingReturned  = "rental.booking.returned"
	BookingDeleted   = "rental.booking.deleted"
)

// Payment event types.
const (
	PaymentProcessed = "rental.payment.processed"
	PaymentConfirmed = "rental.payment.confirmed"
	PaymentCancelled = "rental.payment.cancelled"
	PaymentDeleted   = "rental.payment.deleted"
)

// Cashier event types, produced by the front-desk till.
const (
	CashCollected = "rental.cashier.cash_collected"
	CashVoided    = "rental.cashier.cash_voided"
)

// BookingEvent is the payload of every booking event.
type BookingEvent struct {
	BookingID     uuid.UUID   `json:"booking_id"`
	BookingNumber string      `json:"booking_number"`
	CustomerID    uuid.UUID   `json:"customer_id"`
	BookingType   string      `json:"booking_type"`
	ResourceID    uuid.UUID   `json:"resource_id"`
	VehicleIDs    []uuid.UUID `json:"vehicle_ids"`
	StartDate     time.Time   `json:"start_date"`
	EndDate       time.Time   `json:"end_date"`
	TotalCost     string      `json:"total_cost"`
	Status        string      `json:"status"`
	OccurredAt    time.Time   `json:"occurred_at"`
}

// PaymentEvent is the payload of every payment event.
type PaymentEvent struct {
	PaymentID     uuid.UUID `json:"payment_id"`
	BookingID     uuid.UUID `json:"booking_id"`
	Method        string    `json:"method"`
	Status        string    `json:"status"`
	Amount        string    `json:"amount"`
	TransactionID string    `json:"transaction_id,omitempty"`
	BookingStatus string    `json:"booking_status,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// CashierEvent is what the till reports about a cash payment.
type CashierEvent struct {
	PaymentID  uuid.UUID `json:"payment_id"`
	CashierID  uuid.UUID `json:"cashier_id"`
	Reference  string    `json:"reference,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
