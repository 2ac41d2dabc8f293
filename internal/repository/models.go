package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VehicleModel is the GORM model for the vehicles table.
type VehicleModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Make         string          `gorm:"type:varchar(100);not null"`
	ModelName    string          `gorm:"column:model;type:varchar(100);not null"`
	Year         int             `gorm:"not null"`
	Registration string          `gorm:"type:varchar(20);uniqueIndex;not null"`
	RatePerDay   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Status       string          `gorm:"type:varchar(20);not null;index"`
	Version      int64           `gorm:"not null"`
	CreatedAt    time.Time       `gorm:"not null"`
	UpdatedAt    time.Time       `gorm:"not null"`
}

func (VehicleModel) TableName() string { return "vehicles" }

// PackageModel is the GORM model for the vehicle_packages table.
type PackageModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Name         string          `gorm:"type:varchar(100);not null"`
	Description  string          `gorm:"type:text"`
	Price        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	DurationDays int             `gorm:"not null"`
	Status       string          `gorm:"type:varchar(20);not null"`
	Version      int64           `gorm:"not null"`
	CreatedAt    time.Time       `gorm:"not null"`
	UpdatedAt    time.Time       `gorm:"not null"`
}

func (PackageModel) TableName() string { return "vehicle_packages" }

// PackageVehicleModel links a package to one member vehicle.
type PackageVehicleModel struct {
	PackageID uuid.UUID `gorm:"type:uuid;primaryKey"`
	VehicleID uuid.UUID `gorm:"type:uuid;primaryKey;index"`
}

func (PackageVehicleModel) TableName() string { return "vehicle_package_members" }

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BookingNumber string          `gorm:"uniqueIndex;not null;size:20"`
	CustomerID    uuid.UUID       `gorm:"type:uuid;index;not null"`
	BookingType   string          `gorm:"not null;size:10"`
	VehicleID     *uuid.UUID      `gorm:"type:uuid;index"`
	PackageID     *uuid.UUID      `gorm:"type:uuid;index"`
	StartDate     time.Time       `gorm:"not null"`
	EndDate       time.Time       `gorm:"not null"`
	TotalCost     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Status        string          `gorm:"not null;size:30;index"`
	CancelledAt   *time.Time
	ReturnedAt    *time.Time
	Version       int64     `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// BookingVehicleModel records one vehicle held by a booking.
type BookingVehicleModel struct {
	BookingID uuid.UUID `gorm:"type:uuid;primaryKey"`
	VehicleID uuid.UUID `gorm:"type:uuid;primaryKey;index"`
}

func (BookingVehicleModel) TableName() string { return "booking_vehicles" }

// PaymentModel is the GORM model for the payments table.
type PaymentModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BookingID     uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Method        string          `gorm:"type:varchar(20);not null"`
	Status        string          `gorm:"type:varchar(20);not null;index"`
	TransactionID string          `gorm:"type:varchar(100)"`
	PaymentDate   time.Time       `gorm:"not null"`
	Version       int64           `gorm:"not null"`
	CreatedAt     time.Time       `gorm:"not null"`
	UpdatedAt     time.Time       `gorm:"not null"`
}

func (PaymentModel) TableName() string { return "payments" }

// OfferModel is the GORM model for the offers table.
type OfferModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Title       string          `gorm:"type:varchar(150);not null"`
	Description string          `gorm:"type:text"`
	Discount    decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	StartDate   time.Time       `gorm:"not null"`
	EndDate     time.Time       `gorm:"not null"`
	Active      bool            `gorm:"not null"`
	Deleted     bool            `gorm:"not null"`
	CreatedAt   time.Time       `gorm:"not null"`
	UpdatedAt   time.Time       `gorm:"not null"`
}

func (OfferModel) TableName() string { return "offers" }

// AllModels lists every persisted model, for AutoMigrate in tests.
func AllModels() []interface{} {
	return []interface{}{
		&VehicleModel{},
		&PackageModel{},
		&PackageVehicleModel{},
		&BookingModel{},
		&BookingVehicleModel{},
		&PaymentModel{},
		&OfferModel{},
	}
}

func sqlStatuses[T ~string](statuses []T) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
