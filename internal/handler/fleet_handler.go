package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/roadrunner-rentals/service-rental/internal/application"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/auth"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/middleware"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/response"
)

// FleetHandler serves the vehicle and package catalogue.
type FleetHandler struct {
	service  *application.FleetService
	bookings *application.BookingService
}

// NewFleetHandler creates a new FleetHandler.
func NewFleetHandler(service *application.FleetService, bookings *application.BookingService) *FleetHandler {
	return &FleetHandler{service: service, bookings: bookings}
}

// RegisterRoutes registers public catalogue routes and the admin fleet routes.
func (h *FleetHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	r.GET("/api/v1/vehicles", h.ListVehicles)
	r.GET("/api/v1/vehicles/:id", h.GetVehicle)
	r.GET("/api/v1/packages", h.ListPackages)
	r.GET("/api/v1/packages/:id", h.GetPackage)
	r.POST("/api/v1/quotes", h.Quote)

	admin := r.Group("/api/v1/admin")
	admin.Use(middleware.AuthMiddleware(jwtManager), middleware.RequireRole(auth.RoleAdmin))
	{
		admin.POST("/vehicles", h.RegisterVehicle)
		admin.DELETE("/vehicles/:id", h.DeleteVehicle)
		admin.PUT("/vehicles/:id/maintenance", h.SetMaintenance)
		admin.GET("/vehicles/:id/bookings", h.ListVehicleBookings)
		admin.POST("/packages", h.CreatePackage)
		admin.PUT("/packages/:id/vehicles", h.SetPackageMembers)
		admin.PUT("/packages/:id/active", h.SetPackageActive)
	}
}

// ListVehicles handles GET /api/v1/vehicles?status=.
func (h *FleetHandler) ListVehicles(c *gin.Context) {
	result, err := h.service.ListVehicles(c.Request.Context(), c.Query("status"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// GetVehicle handles GET /api/v1/vehicles/:id.
func (h *FleetHandler) GetVehicle(c *gin.Context) {
	vehicleID, ok := parseID(c, "id", "vehicle")
	if !ok {
		return
	}

	result, err := h.service.GetVehicle(c.Request.Context(), vehicleID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// ListPackages handles GET /api/v1/packages.
func (h *FleetHandler) ListPackages(c *gin.Context) {
	result, err := h.service.ListPackages(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// GetPackage handles GET /api/v1/packages/:id.
func (h *FleetHandler) GetPackage(c *gin.Context) {
	packageID, ok := parseID(c, "id", "package")
	if !ok {
		return
	}

	result, err := h.service.GetPackage(c.Request.Context(), packageID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Quote handles POST /api/v1/quotes.
func (h *FleetHandler) Quote(c *gin.Context) {
	var req application.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.Quote(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// RegisterVehicle handles POST /api/v1/admin/vehicles.
func (h *FleetHandler) RegisterVehicle(c *gin.Context) {
	var req application.RegisterVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.RegisterVehicle(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// DeleteVehicle handles DELETE /api/v1/admin/vehicles/:id.
func (h *FleetHandler) DeleteVehicle(c *gin.Context) {
	vehicleID, ok := parseID(c, "id", "vehicle")
	if !ok {
		return
	}

	if err := h.service.DeleteVehicle(c.Request.Context(), vehicleID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "vehicle deleted"})
}

// SetMaintenance handles PUT /api/v1/admin/vehicles/:id/maintenance.
func (h *FleetHandler) SetMaintenance(c *gin.Context) {
	vehicleID, ok := parseID(c, "id", "vehicle")
	if !ok {
		return
	}

	var body struct {
		Maintenance *bool `json:"maintenance" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.SetVehicleMaintenance(c.Request.Context(), vehicleID, *body.Maintenance)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// ListVehicleBookings handles GET /api/v1/admin/vehicles/:id/bookings.
func (h *FleetHandler) ListVehicleBookings(c *gin.Context) {
	vehicleID, ok := parseID(c, "id", "vehicle")
	if !ok {
		return
	}

	result, err := h.bookings.ListVehicleBookings(c.Request.Context(), vehicleID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// CreatePackage handles POST /api/v1/admin/packages.
func (h *FleetHandler) CreatePackage(c *gin.Context) {
	var req application.CreatePackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreatePackage(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// SetPackageMembers handles PUT /api/v1/admin/packages/:id/vehicles.
func (h *FleetHandler) SetPackageMembers(c *gin.Context) {
	packageID, ok := parseID(c, "id", "package")
	if !ok {
		return
	}

	var body struct {
		VehicleIDs []uuid.UUID `json:"vehicle_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.SetPackageMembers(c.Request.Context(), packageID, body.VehicleIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// SetPackageActive handles PUT /api/v1/admin/packages/:id/active.
func (h *FleetHandler) SetPackageActive(c *gin.Context) {
	packageID, ok := parseID(c, "id", "package")
	if !ok {
		return
	}

	var body struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.SetPackageActive(c.Request.Context(), packageID, *body.Active)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
