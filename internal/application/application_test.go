package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	bookingDomain "github.com/roadrunner-rentals/service-rental/internal/domain/booking"
	"github.com/roadrunner-rentals/service-rental/internal/domain/fleet"
	"github.com/roadrunner-rentals/service-rental/internal/domain/payment"
	"github.com/roadrunner-rentals/service-rental/internal/events"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/apperror"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/database"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/kafka"
	"github.com/roadrunner-rentals/service-rental/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, time.January, 5, 9, 30, 0, 0, time.UTC)

func jan(d int) time.Time { return time.Date(2026, time.January, d, 0, 0, 0, 0, time.UTC) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error {
	args := m.Called(ctx, topic, event)
	return args.Error(0)
}

// published returns the event types sent to topic, in order.
func (m *mockPublisher) published(topic string) []string {
	var types []string
	for _, call := range m.Calls {
		if call.Method == "PublishEvent" && call.Arguments.String(1) == topic {
			types = append(types, call.Arguments.Get(2).(kafka.CloudEvent).Type)
		}
	}
	return types
}

type fixture struct {
	repos     Repositories
	publisher *mockPublisher
	bookings  *BookingService
	payments  *PaymentService
	fleet     *FleetService
	offers    *OfferService
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	return newFixtureWith(t, nil, opts...)
}

// newFixtureWith lets wrap replace repositories the services see. f.repos
// keeps the unwrapped ones for assertions.
func newFixtureWith(t *testing.T, wrap func(Repositories) Repositories, opts ...Option) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:app_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Connect(database.PostgresConfig{DSN: dsn}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(repository.AllModels()...))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})

	repos := Repositories{
		Vehicles: repository.NewGormVehicleRepository(db),
		Packages: repository.NewGormPackageRepository(db),
		Bookings: repository.NewGormBookingRepository(db),
		Payments: repository.NewGormPaymentRepository(db),
		Offers:   repository.NewGormOfferRepository(db),
	}
	registry, err := payment.NewRegistry(payment.NewCardStrategy(), payment.NewCashStrategy())
	require.NoError(t, err)

	pub := &mockPublisher{}
	pub.On("PublishEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	served := repos
	if wrap != nil {
		served = wrap(repos)
	}

	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	tx := repository.NewGormTransactor(db)
	logger := zap.NewNop()
	return &fixture{
		repos:     repos,
		publisher: pub,
		bookings:  NewBookingService(tx, served, registry, pub, logger, opts...),
		payments:  NewPaymentService(tx, served, registry, pub, logger, opts...),
		fleet:     NewFleetService(tx, served, logger, opts...),
		offers:    NewOfferService(served.Offers, logger, opts...),
	}
}

func (f *fixture) vehicle(t *testing.T, reg, rate string) uuid.UUID {
	t.Helper()
	v, err := f.fleet.RegisterVehicle(context.Background(), RegisterVehicleRequest{
		Make: "Toyota", Model: "Yaris", Year: 2024, Registration: reg, RatePerDay: dec(rate),
	})
	require.NoError(t, err)
	return v.ID
}

func (f *fixture) vehicleStatus(t *testing.T, id uuid.UUID) fleet.VehicleStatus {
	t.Helper()
	v, err := f.repos.Vehicles.FindByID(context.Background(), id)
	require.NoError(t, err)
	return v.Status()
}

func (f *fixture) packageStatus(t *testing.T, id uuid.UUID) fleet.PackageStatus {
	t.Helper()
	p, err := f.repos.Packages.FindByID(context.Background(), id)
	require.NoError(t, err)
	return p.Status()
}

func vehicleRequest(id uuid.UUID, start, end time.Time) CreateBookingRequest {
	return CreateBookingRequest{BookingType: "VEHICLE", ResourceID: id, StartDate: start, EndDate: end}
}

func packageRequest(id uuid.UUID, start, end time.Time) CreateBookingRequest {
	return CreateBookingRequest{BookingType: "PACKAGE", ResourceID: id, StartDate: start, EndDate: end}
}

func TestCashFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	customer := uuid.New()
	car := f.vehicle(t, "CASH-1", "40")

	bk, err := f.bookings.CreateBooking(ctx, customer, vehicleRequest(car, jan(10), jan(12)))
	require.NoError(t, err)
	assert.Equal(t, "80.00", bk.TotalCost)
	assert.Equal(t, "Confirmed", bk.Status)
	assert.Equal(t, fleet.VehicleStatusBooked, f.vehicleStatus(t, car))

	paid, err := f.payments.ProcessPayment(ctx, ProcessPaymentRequest{BookingID: bk.ID, Method: "cash"}, Requester{UserID: customer})
	require.NoError(t, err)
	assert.Equal(t, "Pending", paid.Payment.Status)
	assert.Equal(t, "80.00", paid.Payment.Amount)
	assert.Empty(t, paid.Payment.TransactionID)
	assert.Equal(t, "Payment Pending", paid.BookingStatus)

	confirmed, err := f.payments.ConfirmPayment(ctx, paid.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "Completed", confirmed.Payment.Status)
	assert.Equal(t, "Confirmed", confirmed.BookingStatus)

	_, err = f.payments.ConfirmPayment(ctx, paid.Payment.ID)
	assert.True(t, apperror.Is(err, apperror.KindInvalidTransition))

	assert.Equal(t, []string{events.BookingCreated}, f.publisher.published(events.TopicBookingEvents))
	assert.Equal(t, []string{events.PaymentProcessed, events.PaymentConfirmed}, f.publisher.published(events.TopicPaymentEvents))
}

func TestCreateBooking_ConflictAndTouchingRange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	car := f.vehicle(t, "CONF-1", "50")

	_, err := f.bookings.CreateBooking(ctx, uuid.New(), vehicleRequest(car, jan(10), jan(15)))
	require.NoError(t, err)

	_, err = f.bookings.CreateBooking(ctx, uuid.New(), vehicleRequest(car, jan(12), jan(14)))
	assert.True(t, apperror.Is(err, apperror.KindConflict), "got %v", err)

	third, err := f.bookings.CreateBooking(ctx, uuid.New(), vehicleRequest(car, jan(15), jan(18)))
	require.NoError(t, err)
	assert.Equal(t, "150.00", third.TotalCost)

	all, err := f.bookings.ListVehicleBookings(ctx, car)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCreateBooking_Failures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	car := f.vehicle(t, "FAIL-1", "50")

	_, err := f.bookings.CreateBooking(ctx, uuid.New(), vehicleRequest(uuid.New(), jan(10), jan(12)))
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	_, err = f.bookings.CreateBooking(ctx, uuid.New(), vehicleRequest(car, jan(12), jan(10)))
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	_, err = f.bookings.CreateBooking(ctx, uuid.New(), CreateBookingRequest{BookingType: "BOAT", ResourceID: car, StartDate: jan(10), EndDate: jan(12)})
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	_, err = f.fleet.SetVehicleMaintenance(ctx, car, true)
	require.NoError(t, err)
	_, err = f.bookings.CreateBooking(ctx, uuid.New(), vehicleRequest(car, jan(10), jan(12)))
	assert.True(t, apperror.Is(err, apperror.KindNotAvailable))
}

func TestCreateBooking_ClientTotal(t *testing.T) {
	ctx := context.Background()
	supplied := dec("1.00")

	f := newFixture(t)
	car := f.vehicle(t, "TOT-1", "40")
	req := vehicleRequest(car, jan(10), jan(12))
	req.TotalCost = &supplied
	bk, err := f.bookings.CreateBooking(ctx, uuid.New(), req)
	require.NoError(t, err)
	assert.Equal(t, "80.00", bk.TotalCost)

	trusting := newFixture(t, WithTrustClientTotal(true))
	car = trusting.vehicle(t, "TOT-2", "40")
	req = vehicleRequest(car, jan(10), jan(12))
	req.TotalCost = &supplied
	bk, err = trusting.bookings.CreateBooking(ctx, uuid.New(), req)
	require.NoError(t, err)
	assert.Equal(t, "1.00", bk.TotalCost)
}

func TestCreateBooking_MaxDiscountWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	car := f.vehicle(t, "DISC-1", "100")

	for _, pct := range []string{"10", "20"} {
		_, err := f.offers.CreateOffer(ctx, CreateOfferRequest{
			Title: pct + " off", Discount: dec(pct), StartDate: jan(1), EndDate: jan(31),
		})
		require.NoError(t, err)
	}
	expired, err := f.offers.CreateOffer(ctx, CreateOfferRequest{
		Title: "last year", Discount: dec("50"), StartDate: jan(1).AddDate(-1, 0, 0), EndDate: jan(2).AddDate(-1, 0, 0),
	})
	require.NoError(t, err)
	require.NotNil(t, expired)

	active, err := f.offers.MaxActiveDiscount(ctx)
	require.NoError(t, err)
	assert.Equal(t, "20.00", active.Discount)

	v, err := f.fleet.GetVehicle(ctx, car)
	require.NoError(t, err)
	require.NotNil(t, v.DiscountedRate)
	assert.Equal(t, "80.00", *v.DiscountedRate)

	bk, err := f.bookings.CreateBooking(ctx, uuid.New(), vehicleRequest(car, jan(10), jan(11)))
	require.NoError(t, err)
	assert.Equal(t, "80.00", bk.TotalCost)

	// Booked vehicles quote their base rate.
	v, err = f.fleet.GetVehicle(ctx, car)
	require.NoError(t, err)
	assert.Nil(t, v.DiscountedRate)
}

func TestPackageBooking_ProrationAndStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.vehicle(t, "PKG-A", "30")
	b := f.vehicle(t, "PKG-B", "30")

	pkg, err := f.fleet.CreatePackage(ctx, CreatePackageRequest{
		Name: "Family week", Price: dec("300"), DurationDays: 5, VehicleIDs: []uuid.UUID{a, b},
	})
	require.NoError(t, err)
	assert.Equal(t, "Activated", pkg.Status)

	bk, err := f.bookings.CreateBooking(ctx, uuid.New(), packageRequest(pkg.ID, jan(10), jan(17)))
	require.NoError(t, err)
	assert.Equal(t, "420.00", bk.TotalCost)
	assert.ElementsMatch(t, []uuid.UUID{a, b}, bk.VehicleIDs)
	assert.Equal(t, fleet.VehicleStatusRented, f.vehicleStatus(t, a))
	assert.Equal(t, fleet.PackageStatusReserved, f.packageStatus(t, pkg.ID))

	// A member held by the package cannot be booked alone over the same dates.
	_, err = f.bookings.CreateBooking(ctx, uuid.New(), vehicleRequest(a, jan(12), jan(13)))
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	_, err = f.bookings.CancelBooking(ctx, bk.ID, Requester{Staff: true})
	require.NoError(t, err)
	assert.Equal(t, fleet.VehicleStatusAvailable, f.vehicleStatus(t, a))
	assert.Equal(t, fleet.VehicleStatusAvailable, f.vehicleStatus(t, b))
	assert.Equal(t, fleet.PackageStatusActivated, f.packageStatus(t, pkg.ID))
}

func TestPackageStatus_PartiallyReserved(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.vehicle(t, "PART-A", "30")
	b := f.vehicle(t, "PART-B", "30")
	pkg, err := f.fleet.CreatePackage(ctx, CreatePackageRequest{
		Name: "Pair", Price: dec("100"), DurationDays: 3, VehicleIDs: []uuid.UUID{a, b},
	})
	require.NoError(t, err)

	bk, err := f.bookings.CreateBooking(ctx, uuid.New(), vehicleRequest(a, jan(10), jan(12)))
	require.NoError(t, err)
	assert.Equal(t, fleet.PackageStatusPartiallyReserved, f.packageStatus(t, pkg.ID))

	_, err = f.bookings.ReturnBooking(ctx, bk.ID)
	require.NoError(t, err)
	assert.Equal(t, fleet.PackageStatusActivated, f.packageStatus(t, pkg.ID))
}

func TestPackageBooking_NotAvailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.vehicle(t, "NA-A", "30")
	pkg, err := f.fleet.CreatePackage(ctx, CreatePackageRequest{
		Name: "Solo", Price: dec("100"), DurationDays: 3, VehicleIDs: []uuid.UUID{a},
	})
	require.NoError(t, err)

	_, err = f.fleet.SetPackageActive(ctx, pkg.ID, false)
	require.NoError(t, err)
	_, err = f.bookings.CreateBooking(ctx, uuid.New(), packageRequest(pkg.ID, jan(10), jan(12)))
	assert.True(t, apperror.Is(err, apperror.KindNotAvailable))

	reactivated, err := f.fleet.SetPackageActive(ctx, pkg.ID, true)
	require.NoError(t, err)
	assert.Equal(t, "Activated", reactivated.Status)

	_, err = f.fleet.SetVehicleMaintenance(ctx, a, true)
	require.NoError(t, err)
	msg, err := f.fleet.PackageAvailabilityMessage(ctx, pkg.ID)
	require.NoError(t, err)
	assert.Contains(t, msg, "NA-A")
	_, err = f.bookings.CreateBooking(ctx, uuid.New(), packageRequest(pkg.ID, jan(10), jan(12)))
	assert.True(t, apperror.Is(err, apperror.KindNotAvailable))
}

func TestProcessPayment_AlreadyPaid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	customer := uuid.New()
	car := f.vehicle(t, "PAID-1", "40")
	bk, err := f.bookings.CreateBooking(ctx, customer, vehicleRequest(car, jan(10), jan(12)))
	require.NoError(t, err)

	req := ProcessPaymentRequest{BookingID: bk.ID, Method: "Card"}
	first, err := f.payments.ProcessPayment(ctx, req, Requester{UserID: customer})
	require.NoError(t, err)
	assert.Equal(t, "Completed", first.Payment.Status)
	assert.Regexp(t, `^TXN-`, first.Payment.TransactionID)
	assert.Equal(t, "Confirmed", first.BookingStatus)

	_, err = f.payments.ProcessPayment(ctx, req, Requester{UserID: customer})
	assert.True(t, apperror.Is(err, apperror.KindAlreadyPaid))

	_, total, err := f.repos.Payments.ListAll(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestProcessPayment_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	customer := uuid.New()
	car := f.vehicle(t, "REJ-1", "40")
	bk, err := f.bookings.CreateBooking(ctx, customer, vehicleRequest(car, jan(10), jan(12)))
	require.NoError(t, err)

	_, err = f.payments.ProcessPayment(ctx, ProcessPaymentRequest{BookingID: uuid.New(), Method: "card"}, Requester{Staff: true})
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	_, err = f.payments.ProcessPayment(ctx, ProcessPaymentRequest{BookingID: bk.ID, Method: "card"}, Requester{UserID: uuid.New()})
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	_, err = f.payments.ProcessPayment(ctx, ProcessPaymentRequest{BookingID: bk.ID, Method: "crypto"}, Requester{UserID: customer})
	assert.True(t, apperror.Is(err, apperror.KindUnsupportedPaymentMethod))

	_, err = f.bookings.CancelBooking(ctx, bk.ID, Requester{UserID: customer})
	require.NoError(t, err)
	_, err = f.payments.ProcessPayment(ctx, ProcessPaymentRequest{BookingID: bk.ID, Method: "card"}, Requester{UserID: customer})
	assert.True(t, apperror.Is(err, apperror.KindInvalidBookingState))

	exists, err := f.repos.Payments.ExistsForBooking(ctx, bk.ID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCancelBooking_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	customer := uuid.New()
	car := f.vehicle(t, "IDEM-1", "40")
	bk, err := f.bookings.CreateBooking(ctx, customer, vehicleRequest(car, jan(10), jan(12)))
	require.NoError(t, err)
	paid, err := f.payments.ProcessPayment(ctx, ProcessPaymentRequest{BookingID: bk.ID, Method: "cash"}, Requester{UserID: customer})
	require.NoError(t, err)

	first, err := f.bookings.CancelBooking(ctx, bk.ID, Requester{UserID: customer})
	require.NoError(t, err)
	second, err := f.bookings.CancelBooking(ctx, bk.ID, Requester{UserID: customer})
	require.NoError(t, err)

	assert.Equal(t, "Cancelled", first.Status)
	assert.Equal(t, first.Version, second.Version)
	require.NotNil(t, second.CancelledAt)
	assert.True(t, first.CancelledAt.Equal(*second.CancelledAt))
	assert.Equal(t, fleet.VehicleStatusAvailable, f.vehicleStatus(t, car))

	p, err := f.repos.Payments.FindByID(ctx, paid.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCancelled, p.Status())

	assert.Equal(t, []string{events.BookingCreated, events.BookingCancelled}, f.publisher.published(events.TopicBookingEvents))

	// The freed range can be booked again.
	_, err = f.bookings.CreateBooking(ctx, uuid.New(), vehicleRequest(car, jan(10), jan(12)))
	require.NoError(t, err)
}

func TestCancelBooking_OtherCustomer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	car := f.vehicle(t, "OWN-1", "40")
	bk, err := f.bookings.CreateBooking(ctx, uuid.New(), vehicleRequest(car, jan(10), jan(12)))
	require.NoError(t, err)

	_, err = f.bookings.CancelBooking(ctx, bk.ID, Requester{UserID: uuid.New()})
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
	_, err = f.bookings.GetBooking(ctx, bk.ID, Requester{UserID: uuid.New()})
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
	assert.Equal(t, fleet.VehicleStatusBooked, f.vehicleStatus(t, car))
}

func TestReturnBooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	car := f.vehicle(t, "RET-1", "40")
	bk, err := f.bookings.CreateBooking(ctx, uuid.New(), vehicleRequest(car, jan(10), jan(12)))
	require.NoError(t, err)

	returned, err := f.bookings.ReturnBooking(ctx, bk.ID)
	require.NoError(t, err)
	assert.Equal(t, "Returned", returned.Status)
	require.NotNil(t, returned.ReturnedAt)
	assert.Equal(t, fleet.VehicleStatusAvailable, f.vehicleStatus(t, car))

	again, err := f.bookings.ReturnBooking(ctx, bk.ID)
	require.NoError(t, err)
	assert.Equal(t, returned.Version, again.Version)

	_, err = f.bookings.CancelBooking(ctx, bk.ID, Requester{Staff: true})
	assert.True(t, apperror.Is(err, apperror.KindInvalidBookingState))
}

func TestReturnBooking_RequiresConfirmed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	customer := uuid.New()
	car := f.vehicle(t, "RET-2", "40")
	bk, err := f.bookings.CreateBooking(ctx, customer, vehicleRequest(car, jan(10), jan(12)))
	require.NoError(t, err)
	_, err = f.payments.ProcessPayment(ctx, ProcessPaymentRequest{BookingID: bk.ID, Method: "cash"}, Requester{UserID: customer})
	require.NoError(t, err)

	_, err = f.bookings.ReturnBooking(ctx, bk.ID)
	assert.True(t, apperror.Is(err, apperror.KindInvalidBookingState))
}

func TestCancelPayment_ReleasesEverything(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	customer := uuid.New()
	a := f.vehicle(t, "CP-A", "30")
	b := f.vehicle(t, "CP-B", "30")
	pkg, err := f.fleet.CreatePackage(ctx, CreatePackageRequest{
		Name: "Weekend", Price: dec("150"), DurationDays: 2, VehicleIDs: []uuid.UUID{a, b},
	})
	require.NoError(t, err)

	out, err := f.bookings.CreateBookingWithPayment(ctx, customer, CheckoutRequest{
		CreateBookingRequest: packageRequest(pkg.ID, jan(10), jan(12)),
		PaymentMethod:        "card",
		TransactionID:        "TXN-CLIENT",
	})
	require.NoError(t, err)
	assert.Equal(t, "Confirmed", out.Booking.Status)
	assert.Equal(t, "150.00", out.Booking.TotalCost)
	require.NotNil(t, out.Payment)
	assert.Equal(t, "TXN-CLIENT", out.Payment.TransactionID)
	assert.Equal(t, fleet.PackageStatusReserved, f.packageStatus(t, pkg.ID))

	for i := 0; i < 2; i++ {
		res, err := f.payments.CancelPayment(ctx, out.Payment.ID)
		require.NoError(t, err)
		assert.Equal(t, "Cancelled", res.Payment.Status)
		assert.Equal(t, "Cancelled", res.BookingStatus)
		assert.Equal(t, fleet.VehicleStatusAvailable, f.vehicleStatus(t, a))
		assert.Equal(t, fleet.VehicleStatusAvailable, f.vehicleStatus(t, b))
		assert.Equal(t, fleet.PackageStatusActivated, f.packageStatus(t, pkg.ID))
	}
	assert.Equal(t, []string{events.PaymentProcessed, events.PaymentCancelled}, f.publisher.published(events.TopicPaymentEvents))
}

func TestCancelPayment_CancelsReturnedBooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	customer := uuid.New()
	car := f.vehicle(t, "CPR-1", "40")
	bk, err := f.bookings.CreateBooking(ctx, customer, vehicleRequest(car, jan(10), jan(12)))
	require.NoError(t, err)
	paid, err := f.payments.ProcessPayment(ctx, ProcessPaymentRequest{BookingID: bk.ID, Method: "card"}, Requester{UserID: customer})
	require.NoError(t, err)
	_, err = f.bookings.ReturnBooking(ctx, bk.ID)
	require.NoError(t, err)

	res, err := f.payments.CancelPayment(ctx, paid.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cancelled", res.Payment.Status)
	assert.Equal(t, "Cancelled", res.BookingStatus)
	assert.Equal(t, fleet.VehicleStatusAvailable, f.vehicleStatus(t, car))

	got, err := f.bookings.GetBooking(ctx, bk.ID, Requester{Staff: true})
	require.NoError(t, err)
	assert.NotNil(t, got.CancelledAt)
	assert.NotNil(t, got.ReturnedAt)
}

func TestCheckout_CashLeavesPaymentPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	car := f.vehicle(t, "CHK-1", "40")

	out, err := f.bookings.CreateBookingWithPayment(ctx, uuid.New(), CheckoutRequest{
		CreateBookingRequest: vehicleRequest(car, jan(10), jan(13)),
		PaymentMethod:        "cash",
	})
	require.NoError(t, err)
	assert.Equal(t, "Payment Pending", out.Booking.Status)
	assert.Equal(t, "Pending", out.Payment.Status)
	assert.Equal(t, "120.00", out.Payment.Amount)
	assert.Equal(t, fleet.VehicleStatusBooked, f.vehicleStatus(t, car))

	require.NoError(t, f.payments.SettleCashPayment(ctx, out.Payment.ID))
	got, err := f.bookings.GetBooking(ctx, out.Booking.ID, Requester{Staff: true})
	require.NoError(t, err)
	assert.Equal(t, "Confirmed", got.Status)
}

func TestCheckout_UnsupportedMethodWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	car := f.vehicle(t, "CHK-2", "40")

	_, err := f.bookings.CreateBookingWithPayment(ctx, uuid.New(), CheckoutRequest{
		CreateBookingRequest: vehicleRequest(car, jan(10), jan(13)),
		PaymentMethod:        "cheque",
	})
	assert.True(t, apperror.Is(err, apperror.KindUnsupportedPaymentMethod))

	all, err := f.bookings.ListVehicleBookings(ctx, car)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Equal(t, fleet.VehicleStatusAvailable, f.vehicleStatus(t, car))
}

func TestDeleteBooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	customer := uuid.New()
	car := f.vehicle(t, "DEL-1", "40")

	unpaid, err := f.bookings.CreateBooking(ctx, customer, vehicleRequest(car, jan(10), jan(12)))
	require.NoError(t, err)
	require.NoError(t, f.bookings.DeleteBooking(ctx, unpaid.ID))
	assert.Equal(t, fleet.VehicleStatusAvailable, f.vehicleStatus(t, car))

	paidBooking, err := f.bookings.CreateBooking(ctx, customer, vehicleRequest(car, jan(10), jan(12)))
	require.NoError(t, err)
	paid, err := f.payments.ProcessPayment(ctx, ProcessPaymentRequest{BookingID: paidBooking.ID, Method: "card"}, Requester{UserID: customer})
	require.NoError(t, err)

	err = f.bookings.DeleteBooking(ctx, paidBooking.ID)
	assert.True(t, apperror.Is(err, apperror.KindInvalidBookingState))

	require.NoError(t, f.payments.DeletePayment(ctx, paid.Payment.ID))
	got, err := f.bookings.GetBooking(ctx, paidBooking.ID, Requester{Staff: true})
	require.NoError(t, err)
	assert.Equal(t, "Confirmed", got.Status, "deleting a payment leaves the booking alone")
	require.NoError(t, f.bookings.DeleteBooking(ctx, paidBooking.ID))
}

func TestQueriesAndStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	customer := uuid.New()
	car := f.vehicle(t, "Q-1", "40")

	for i := 0; i < 3; i++ {
		_, err := f.bookings.CreateBooking(ctx, customer, vehicleRequest(car, jan(10+2*i), jan(11+2*i)))
		require.NoError(t, err)
	}
	first, err := f.bookings.CreateBooking(ctx, uuid.New(), vehicleRequest(car, jan(20), jan(21)))
	require.NoError(t, err)
	_, err = f.payments.ProcessPayment(ctx, ProcessPaymentRequest{BookingID: first.ID, Method: "card"}, Requester{Staff: true})
	require.NoError(t, err)
	_, err = f.bookings.CancelBooking(ctx, first.ID, Requester{Staff: true})
	require.NoError(t, err)

	page, err := f.bookings.ListCustomerBookings(ctx, customer, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 2, page.TotalPages)

	stats, err := f.bookings.GetBookingStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.TotalBookings)
	assert.Equal(t, int64(3), stats.ByStatus["Confirmed"])
	assert.Equal(t, int64(1), stats.ByStatus["Cancelled"])

	summary, err := f.payments.PaymentSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, "40.00", summary.CompletedRevenue)
	assert.Equal(t, int64(1), summary.ByMethod["card"])

	byBooking, err := f.payments.GetPaymentByBooking(ctx, first.ID, Requester{Staff: true})
	require.NoError(t, err)
	assert.Equal(t, "card", byBooking.Method)

	_, err = f.payments.GetPaymentByBooking(ctx, first.ID, Requester{UserID: customer})
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestQuote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	car := f.vehicle(t, "QUO-1", "50")

	q, err := f.fleet.Quote(ctx, QuoteRequest{BookingType: "VEHICLE", ResourceID: car, StartDate: jan(10), EndDate: jan(13)})
	require.NoError(t, err)
	assert.Equal(t, "150.00", q.TotalCost)
	assert.Equal(t, int64(3), q.Days)
	assert.True(t, q.Available)

	_, err = f.bookings.CreateBooking(ctx, uuid.New(), vehicleRequest(car, jan(11), jan(12)))
	require.NoError(t, err)
	q, err = f.fleet.Quote(ctx, QuoteRequest{BookingType: "VEHICLE", ResourceID: car, StartDate: jan(10), EndDate: jan(13)})
	require.NoError(t, err)
	assert.False(t, q.Available)
}

func TestFleetAdministration(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.vehicle(t, "ADM-A", "30")
	b := f.vehicle(t, "ADM-B", "30")

	_, err := f.fleet.RegisterVehicle(ctx, RegisterVehicleRequest{
		Make: "Ford", Model: "Focus", Year: 2022, Registration: "adm-a", RatePerDay: dec("25"),
	})
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	pkg, err := f.fleet.CreatePackage(ctx, CreatePackageRequest{
		Name: "Duo", Price: dec("90"), DurationDays: 3, VehicleIDs: []uuid.UUID{a},
	})
	require.NoError(t, err)
	_, err = f.fleet.SetPackageMembers(ctx, pkg.ID, []uuid.UUID{a, uuid.New()})
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
	updated, err := f.fleet.SetPackageMembers(ctx, pkg.ID, []uuid.UUID{b, a})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{a, b}, updated.VehicleIDs)

	bk, err := f.bookings.CreateBooking(ctx, uuid.New(), vehicleRequest(b, jan(10), jan(12)))
	require.NoError(t, err)
	_, err = f.fleet.SetVehicleMaintenance(ctx, b, true)
	assert.True(t, apperror.Is(err, apperror.KindNotAvailable))
	assert.True(t, apperror.Is(f.fleet.DeleteVehicle(ctx, b), apperror.KindNotAvailable))

	_, err = f.bookings.CancelBooking(ctx, bk.ID, Requester{Staff: true})
	require.NoError(t, err)
	require.NoError(t, f.fleet.DeleteVehicle(ctx, b))

	left, err := f.fleet.GetPackage(ctx, pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a}, left.VehicleIDs)

	maint, err := f.fleet.ListVehicles(ctx, "Maintenance")
	require.NoError(t, err)
	assert.Empty(t, maint)
	_, err = f.fleet.ListVehicles(ctx, "Sunk")
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestOfferAdministration(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	o, err := f.offers.CreateOffer(ctx, CreateOfferRequest{Title: "Spring", Discount: dec("15"), StartDate: jan(1), EndDate: jan(31)})
	require.NoError(t, err)
	assert.True(t, o.Active)

	toggled, err := f.offers.ToggleOffer(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Active)
	active, err := f.offers.MaxActiveDiscount(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0.00", active.Discount)

	require.NoError(t, f.offers.DeleteOffer(ctx, o.ID))
	listed, err := f.offers.ListOffers(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, listed)
	listed, err = f.offers.ListOffers(ctx, true)
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	_, err = f.offers.ToggleOffer(ctx, o.ID)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	_, err = f.offers.CreateOffer(ctx, CreateOfferRequest{Title: "Too much", Discount: dec("120"), StartDate: jan(1), EndDate: jan(2)})
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

type failingPayments struct {
	payment.Repository
	err error
}

func (r *failingPayments) Save(context.Context, *payment.Payment) error { return r.err }

func TestCreateBookingWithPayment_PersistenceFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	dbErr := errors.New("pq: connection reset by peer")
	f := newFixtureWith(t, func(r Repositories) Repositories {
		r.Payments = &failingPayments{Repository: r.Payments, err: dbErr}
		return r
	})
	car := f.vehicle(t, "ERR-1", "40")

	_, err := f.bookings.CreateBookingWithPayment(ctx, uuid.New(), CheckoutRequest{
		CreateBookingRequest: vehicleRequest(car, jan(10), jan(12)),
		PaymentMethod:        "card",
	})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindInternal))
	assert.ErrorIs(t, err, dbErr)
	assert.NotContains(t, apperror.PublicMessage(err), "connection reset")

	assert.Equal(t, fleet.VehicleStatusAvailable, f.vehicleStatus(t, car))
	held, err := f.bookings.ListVehicleBookings(ctx, car)
	require.NoError(t, err)
	assert.Empty(t, held)
	assert.Empty(t, f.publisher.published(events.TopicBookingEvents))
}

// lockLog records the order in which rows are locked.
type lockLog struct {
	order []string
}

type loggedBookings struct {
	bookingDomain.BookingRepository
	log *lockLog
}

func (r *loggedBookings) LockByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	r.log.order = append(r.log.order, "booking")
	return r.BookingRepository.LockByID(ctx, id)
}

type loggedPayments struct {
	payment.Repository
	log *lockLog
}

func (r *loggedPayments) LockByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	r.log.order = append(r.log.order, "payment")
	return r.Repository.LockByID(ctx, id)
}

func TestPaymentAdmin_LocksBookingBeforePayment(t *testing.T) {
	ctx := context.Background()
	locks := &lockLog{}
	f := newFixtureWith(t, func(r Repositories) Repositories {
		r.Bookings = &loggedBookings{BookingRepository: r.Bookings, log: locks}
		r.Payments = &loggedPayments{Repository: r.Payments, log: locks}
		return r
	})
	customer := uuid.New()
	car := f.vehicle(t, "LCK-1", "40")

	bk, err := f.bookings.CreateBooking(ctx, customer, vehicleRequest(car, jan(10), jan(12)))
	require.NoError(t, err)
	paid, err := f.payments.ProcessPayment(ctx, ProcessPaymentRequest{BookingID: bk.ID, Method: "cash"}, Requester{UserID: customer})
	require.NoError(t, err)

	locks.order = nil
	_, err = f.payments.ConfirmPayment(ctx, paid.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"booking", "payment"}, locks.order)

	locks.order = nil
	_, err = f.payments.CancelPayment(ctx, paid.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"booking", "payment"}, locks.order)
}
