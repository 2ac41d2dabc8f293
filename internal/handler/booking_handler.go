package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/roadrunner-rentals/service-rental/internal/application"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/auth"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/middleware"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/response"
)

// BookingHandler handles HTTP requests for booking operations.
type BookingHandler struct {
	service  *application.BookingService
	payments *application.PaymentService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(service *application.BookingService, payments *application.PaymentService) *BookingHandler {
	return &BookingHandler{service: service, payments: payments}
}

// RegisterRoutes registers all booking routes on the given router group.
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	staff := middleware.RequireRole(auth.RoleStaff, auth.RoleAdmin)

	bookings := r.Group("/api/v1/bookings")
	bookings.Use(authMW)
	{
		bookings.POST("", h.CreateBooking)
		bookings.POST("/checkout", h.Checkout)
		bookings.GET("", h.ListBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.GET("/:id/payment", h.GetBookingPayment)
		bookings.POST("/:id/cancel", h.CancelBooking)
		bookings.POST("/:id/return", staff, h.ReturnBooking)
	}
}

// CreateBooking handles POST /api/v1/bookings.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req application.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateBooking(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// Checkout handles POST /api/v1/bookings/checkout: book and pay in one step.
func (h *BookingHandler) Checkout(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req application.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateBookingWithPayment(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListBookings handles GET /api/v1/bookings. Customers see their own
// bookings; staff may pass customer_id.
func (h *BookingHandler) ListBookings(c *gin.Context) {
	req, ok := requesterFrom(c)
	if !ok {
		return
	}

	customerID := req.UserID
	if raw := c.Query("customer_id"); raw != "" && req.Staff {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "invalid customer ID")
			return
		}
		customerID = id
	}

	page, limit := parsePagination(c)
	result, err := h.service.ListCustomerBookings(c.Request.Context(), customerID, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// GetBooking handles GET /api/v1/bookings/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	bookingID, ok := parseID(c, "id", "booking")
	if !ok {
		return
	}
	req, ok := requesterFrom(c)
	if !ok {
		return
	}

	result, err := h.service.GetBooking(c.Request.Context(), bookingID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetBookingPayment handles GET /api/v1/bookings/:id/payment.
func (h *BookingHandler) GetBookingPayment(c *gin.Context) {
	bookingID, ok := parseID(c, "id", "booking")
	if !ok {
		return
	}
	req, ok := requesterFrom(c)
	if !ok {
		return
	}

	result, err := h.payments.GetPaymentByBooking(c.Request.Context(), bookingID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	bookingID, ok := parseID(c, "id", "booking")
	if !ok {
		return
	}
	req, ok := requesterFrom(c)
	if !ok {
		return
	}

	result, err := h.service.CancelBooking(c.Request.Context(), bookingID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ReturnBooking handles POST /api/v1/bookings/:id/return (staff).
func (h *BookingHandler) ReturnBooking(c *gin.Context) {
	bookingID, ok := parseID(c, "id", "booking")
	if !ok {
		return
	}

	result, err := h.service.ReturnBooking(c.Request.Context(), bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// requesterFrom builds the caller identity, writing a 401 when absent.
func requesterFrom(c *gin.Context) (application.Requester, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return application.Requester{}, false
	}
	return application.Requester{UserID: userID, Staff: middleware.IsStaff(c)}, true
}

// parseID reads a uuid path parameter, writing a 400 when it is malformed.
func parseID(c *gin.Context, param, entity string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		response.BadRequest(c, "invalid "+entity+" ID")
		return uuid.Nil, false
	}
	return id, true
}

// parsePagination extracts page and limit query parameters with defaults.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return page, limit
}
