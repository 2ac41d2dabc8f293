package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	bookingDomain "github.com/roadrunner-rentals/service-rental/internal/domain/booking"
	"github.com/roadrunner-rentals/service-rental/internal/domain/fleet"
	"github.com/roadrunner-rentals/service-rental/internal/domain/pricing"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/apperror"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RegisterVehicleRequest is the request DTO for adding a vehicle to the fleet.
type RegisterVehicleRequest struct {
	Make         string          `json:"make" binding:"required"`
	Model        string          `json:"model" binding:"required"`
	Year         int             `json:"year" binding:"required"`
	Registration string          `json:"registration" binding:"required"`
	RatePerDay   decimal.Decimal `json:"rate_per_day" binding:"required"`
}

// CreatePackageRequest is the request DTO for creating a vehicle package.
type CreatePackageRequest struct {
	Name         string          `json:"name" binding:"required"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price" binding:"required"`
	DurationDays int             `json:"duration_days" binding:"required"`
	VehicleIDs   []uuid.UUID     `json:"vehicle_ids"`
}

// QuoteRequest asks for the price of a rental without reserving anything.
type QuoteRequest struct {
	BookingType string    `json:"booking_type" binding:"required"`
	ResourceID  uuid.UUID `json:"resource_id" binding:"required"`
	StartDate   time.Time `json:"start_date" binding:"required"`
	EndDate     time.Time `json:"end_date" binding:"required"`
}

// VehicleDTO is the response representation of a vehicle. DiscountedRate is
// set only while an offer applies to it.
type VehicleDTO struct {
	ID             uuid.UUID `json:"id"`
	Make           string    `json:"make"`
	Model          string    `json:"model"`
	Year           int       `json:"year"`
	Registration   string    `json:"registration"`
	RatePerDay     string    `json:"rate_per_day"`
	DiscountedRate *string   `json:"discounted_rate,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PackageDTO is the response representation of a vehicle package.
type PackageDTO struct {
	ID                  uuid.UUID   `json:"id"`
	Name                string      `json:"name"`
	Description         string      `json:"description,omitempty"`
	Price               string      `json:"price"`
	DurationDays        int         `json:"duration_days"`
	Status              string      `json:"status"`
	VehicleIDs          []uuid.UUID `json:"vehicle_ids"`
	AvailabilityMessage string      `json:"availability_message,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// QuoteDTO is the computed price of a prospective rental.
type QuoteDTO struct {
	BookingType string    `json:"booking_type"`
	ResourceID  uuid.UUID `json:"resource_id"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Days        int64     `json:"days"`
	TotalCost   string    `json:"total_cost"`
	Available   bool      `json:"available"`
}

// FleetService manages the vehicle and package catalogue.
type FleetService struct {
	tx      Transactor
	repos   Repositories
	checker *AvailabilityChecker
	sync    *fleetSync
	pricer  *pricer
	logger  *zap.Logger
}

// NewFleetService creates a new FleetService.
func NewFleetService(tx Transactor, repos Repositories, logger *zap.Logger, opts ...Option) *FleetService {
	o := buildOptions(opts)
	return &FleetService{
		tx:      tx,
		repos:   repos,
		checker: NewAvailabilityChecker(repos),
		sync:    newFleetSync(repos),
		pricer:  &pricer{offers: repos.Offers, now: o.now},
		logger:  logger,
	}
}

// RegisterVehicle adds an available vehicle to the fleet.
func (s *FleetService) RegisterVehicle(ctx context.Context, req RegisterVehicleRequest) (*VehicleDTO, error) {
	v, err := fleet.NewVehicle(req.Make, req.Model, req.Year, req.Registration, req.RatePerDay)
	if err != nil {
		return nil, err
	}
	taken, err := s.repos.Vehicles.ExistsByRegistration(ctx, v.Registration())
	if err != nil {
		return nil, internalError(s.logger, "register vehicle", err)
	}
	if taken {
		return nil, apperror.NewConflictError(fmt.Sprintf("registration %s is already in the fleet", v.Registration()))
	}
	if err := s.repos.Vehicles.Save(ctx, v); err != nil {
		return nil, internalError(s.logger, "register vehicle", err)
	}

	s.logger.Info("vehicle registered",
		zap.String("vehicle_id", v.ID().String()),
		zap.String("registration", v.Registration()),
	)
	result := toVehicleDTO(v)
	return &result, nil
}

// GetVehicle returns a vehicle with its discounted rate applied.
func (s *FleetService) GetVehicle(ctx context.Context, vehicleID uuid.UUID) (*VehicleDTO, error) {
	v, err := s.repos.Vehicles.FindByID(ctx, vehicleID)
	if err != nil {
		return nil, internalError(s.logger, "get vehicle", err)
	}
	if err := s.pricer.discount(ctx, v); err != nil {
		return nil, internalError(s.logger, "get vehicle", err)
	}
	result := toVehicleDTO(v)
	return &result, nil
}

// ListVehicles returns the fleet, optionally filtered by status.
func (s *FleetService) ListVehicles(ctx context.Context, status string) ([]VehicleDTO, error) {
	var filter fleet.VehicleFilter
	if status != "" {
		st, err := fleet.ParseVehicleStatus(status)
		if err != nil {
			return nil, apperror.NewValidationError(err.Error())
		}
		filter.Status = st
	}
	vehicles, err := s.repos.Vehicles.List(ctx, filter)
	if err != nil {
		return nil, internalError(s.logger, "list vehicles", err)
	}
	if err := s.pricer.discount(ctx, vehicles...); err != nil {
		return nil, internalError(s.logger, "list vehicles", err)
	}
	dtos := make([]VehicleDTO, len(vehicles))
	for i, v := range vehicles {
		dtos[i] = toVehicleDTO(v)
	}
	return dtos, nil
}

// DeleteVehicle removes an available vehicle and its package memberships.
func (s *FleetService) DeleteVehicle(ctx context.Context, vehicleID uuid.UUID) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		v, err := s.lockVehicle(ctx, vehicleID)
		if err != nil {
			return err
		}
		if err := v.CanBeDeleted(); err != nil {
			return err
		}
		pkgs, err := s.repos.Packages.FindByVehicleIDs(ctx, []uuid.UUID{vehicleID})
		if err != nil {
			return err
		}
		if err := s.repos.Vehicles.Delete(ctx, vehicleID); err != nil {
			return err
		}
		for _, pkg := range pkgs {
			reloaded, err := s.repos.Packages.FindByID(ctx, pkg.ID())
			if err != nil {
				return err
			}
			if err := s.sync.recomputePackage(ctx, reloaded); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return internalError(s.logger, "delete vehicle", err)
	}

	s.logger.Info("vehicle deleted", zap.String("vehicle_id", vehicleID.String()))
	return nil
}

// SetVehicleMaintenance moves a vehicle in or out of maintenance. Entering
// maintenance is refused while reservations hold the vehicle.
func (s *FleetService) SetVehicleMaintenance(ctx context.Context, vehicleID uuid.UUID, on bool) (*VehicleDTO, error) {
	var v *fleet.Vehicle
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		locked, err := s.lockVehicle(ctx, vehicleID)
		if err != nil {
			return err
		}
		holds, err := s.sync.holdsFor(ctx, vehicleID)
		if err != nil {
			return err
		}
		before := locked.Status()
		if err := locked.SetMaintenance(on, holds); err != nil {
			return err
		}
		v = locked
		if before == locked.Status() {
			return nil
		}
		locked.IncrementVersion()
		if err := s.repos.Vehicles.Update(ctx, locked); err != nil {
			return err
		}
		return s.sync.resyncPackages(ctx, []uuid.UUID{vehicleID})
	})
	if err != nil {
		return nil, internalError(s.logger, "set vehicle maintenance", err)
	}

	s.logger.Info("vehicle maintenance updated",
		zap.String("vehicle_id", vehicleID.String()),
		zap.Bool("maintenance", on),
		zap.String("status", string(v.Status())),
	)
	result := toVehicleDTO(v)
	return &result, nil
}

// CreatePackage creates a package over existing vehicles.
func (s *FleetService) CreatePackage(ctx context.Context, req CreatePackageRequest) (*PackageDTO, error) {
	pkg, err := fleet.NewVehiclePackage(req.Name, req.Description, req.Price, req.DurationDays, req.VehicleIDs)
	if err != nil {
		return nil, err
	}
	var members []*fleet.Vehicle
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		found, err := s.existingMembers(ctx, pkg.VehicleIDs())
		if err != nil {
			return err
		}
		members = found
		if err := s.repos.Packages.Save(ctx, pkg); err != nil {
			return err
		}
		return s.sync.recomputePackage(ctx, pkg)
	})
	if err != nil {
		return nil, internalError(s.logger, "create package", err)
	}

	s.logger.Info("vehicle package created",
		zap.String("package_id", pkg.ID().String()),
		zap.Int("vehicles", len(pkg.VehicleIDs())),
	)
	result := toPackageDTO(pkg, members)
	return &result, nil
}

// GetPackage returns a package with its availability message.
func (s *FleetService) GetPackage(ctx context.Context, packageID uuid.UUID) (*PackageDTO, error) {
	pkg, err := s.repos.Packages.FindByID(ctx, packageID)
	if err != nil {
		return nil, internalError(s.logger, "get package", err)
	}
	members, err := s.repos.Vehicles.FindByIDs(ctx, pkg.VehicleIDs())
	if err != nil {
		return nil, internalError(s.logger, "get package", err)
	}
	result := toPackageDTO(pkg, members)
	return &result, nil
}

// ListPackages returns every package.
func (s *FleetService) ListPackages(ctx context.Context) ([]PackageDTO, error) {
	pkgs, err := s.repos.Packages.List(ctx)
	if err != nil {
		return nil, internalError(s.logger, "list packages", err)
	}
	dtos := make([]PackageDTO, len(pkgs))
	for i, pkg := range pkgs {
		members, err := s.repos.Vehicles.FindByIDs(ctx, pkg.VehicleIDs())
		if err != nil {
			return nil, internalError(s.logger, "list packages", err)
		}
		dtos[i] = toPackageDTO(pkg, members)
	}
	return dtos, nil
}

// PackageAvailabilityMessage explains why a package cannot be booked, or
// returns "" when it can.
func (s *FleetService) PackageAvailabilityMessage(ctx context.Context, packageID uuid.UUID) (string, error) {
	dto, err := s.GetPackage(ctx, packageID)
	if err != nil {
		return "", err
	}
	return dto.AvailabilityMessage, nil
}

// SetPackageMembers replaces the vehicles in a package. Existing bookings keep
// the vehicles they reserved.
func (s *FleetService) SetPackageMembers(ctx context.Context, packageID uuid.UUID, vehicleIDs []uuid.UUID) (*PackageDTO, error) {
	var (
		pkg     *fleet.VehiclePackage
		members []*fleet.Vehicle
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.repos.Packages.FindByID(ctx, packageID)
		if err != nil {
			return err
		}
		if err := p.SetMembers(vehicleIDs); err != nil {
			return err
		}
		members, err = s.existingMembers(ctx, p.VehicleIDs())
		if err != nil {
			return err
		}
		p.IncrementVersion()
		if err := s.repos.Packages.Update(ctx, p); err != nil {
			return err
		}
		pkg = p
		return s.sync.recomputePackage(ctx, p)
	})
	if err != nil {
		return nil, internalError(s.logger, "set package members", err)
	}

	s.logger.Info("vehicle package members updated",
		zap.String("package_id", packageID.String()),
		zap.Int("vehicles", len(pkg.VehicleIDs())),
	)
	result := toPackageDTO(pkg, members)
	return &result, nil
}

// SetPackageActive puts a package on or off sale.
func (s *FleetService) SetPackageActive(ctx context.Context, packageID uuid.UUID, active bool) (*PackageDTO, error) {
	var (
		pkg     *fleet.VehiclePackage
		members []*fleet.Vehicle
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.repos.Packages.FindByID(ctx, packageID)
		if err != nil {
			return err
		}
		if active {
			p.Activate()
		} else {
			p.Deactivate()
		}
		p.IncrementVersion()
		if err := s.repos.Packages.Update(ctx, p); err != nil {
			return err
		}
		if err := s.sync.recomputePackage(ctx, p); err != nil {
			return err
		}
		members, err = s.repos.Vehicles.FindByIDs(ctx, p.VehicleIDs())
		pkg = p
		return err
	})
	if err != nil {
		return nil, internalError(s.logger, "set package active", err)
	}

	s.logger.Info("vehicle package availability changed",
		zap.String("package_id", packageID.String()),
		zap.String("status", string(pkg.Status())),
	)
	result := toPackageDTO(pkg, members)
	return &result, nil
}

// Quote prices a prospective rental the way CreateBooking would and reports
// whether the dates are free.
func (s *FleetService) Quote(ctx context.Context, req QuoteRequest) (*QuoteDTO, error) {
	bookingType, err := bookingDomain.ParseBookingType(req.BookingType)
	if err != nil {
		return nil, apperror.NewValidationError(err.Error())
	}
	start, end := req.StartDate.UTC(), req.EndDate.UTC()
	if err := bookingDomain.ValidateRange(start, end); err != nil {
		return nil, err
	}

	var total decimal.Decimal
	switch bookingType {
	case bookingDomain.TypePackage:
		pkg, err := s.repos.Packages.FindByID(ctx, req.ResourceID)
		if err != nil {
			return nil, internalError(s.logger, "quote", err)
		}
		total = pkg.Cost(start, end)
	default:
		v, err := s.repos.Vehicles.FindByID(ctx, req.ResourceID)
		if err != nil {
			return nil, internalError(s.logger, "quote", err)
		}
		if err := s.pricer.discount(ctx, v); err != nil {
			return nil, internalError(s.logger, "quote", err)
		}
		total = v.Cost(start, end)
	}

	available, err := s.checker.IsAvailable(ctx, Resource{Type: bookingType, ID: req.ResourceID}, start, end, bookingDomain.NonBlockingStatuses)
	if err != nil {
		return nil, internalError(s.logger, "quote", err)
	}

	return &QuoteDTO{
		BookingType: string(bookingType),
		ResourceID:  req.ResourceID,
		StartDate:   start,
		EndDate:     end,
		Days:        pricing.RentalDays(start, end),
		TotalCost:   total.StringFixed(2),
		Available:   available,
	}, nil
}

func (s *FleetService) lockVehicle(ctx context.Context, vehicleID uuid.UUID) (*fleet.Vehicle, error) {
	locked, err := s.repos.Vehicles.LockByIDs(ctx, []uuid.UUID{vehicleID})
	if err != nil {
		return nil, err
	}
	if len(locked) == 0 {
		return nil, apperror.NewNotFoundError("Vehicle", vehicleID.String())
	}
	return locked[0], nil
}

// existingMembers loads the vehicles and fails NotFound naming the first
// missing id.
func (s *FleetService) existingMembers(ctx context.Context, ids []uuid.UUID) ([]*fleet.Vehicle, error) {
	members, err := s.repos.Vehicles.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(members) == len(ids) {
		return members, nil
	}
	found := make(map[uuid.UUID]struct{}, len(members))
	for _, v := range members {
		found[v.ID()] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return nil, apperror.NewNotFoundError("Vehicle", id.String())
		}
	}
	return members, nil
}

func toVehicleDTO(v *fleet.Vehicle) VehicleDTO {
	dto := VehicleDTO{
		ID:           v.ID(),
		Make:         v.Make(),
		Model:        v.Model(),
		Year:         v.Year(),
		Registration: v.Registration(),
		RatePerDay:   v.RatePerDay().StringFixed(2),
		Status:       string(v.Status()),
		CreatedAt:    v.CreatedAt(),
		UpdatedAt:    v.UpdatedAt(),
	}
	if d := v.DiscountedRate(); d.Valid {
		rate := d.Decimal.StringFixed(2)
		dto.DiscountedRate = &rate
	}
	return dto
}

func toPackageDTO(pkg *fleet.VehiclePackage, members []*fleet.Vehicle) PackageDTO {
	return PackageDTO{
		ID:                  pkg.ID(),
		Name:                pkg.Name(),
		Description:         pkg.Description(),
		Price:               pkg.Price().StringFixed(2),
		DurationDays:        pkg.DurationDays(),
		Status:              string(pkg.Status()),
		VehicleIDs:          pkg.VehicleIDs(),
		AvailabilityMessage: pkg.AvailabilityMessage(members),
		CreatedAt:           pkg.CreatedAt(),
		UpdatedAt:           pkg.UpdatedAt(),
	}
}
