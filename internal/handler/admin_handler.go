package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/roadrunner-rentals/service-rental/internal/application"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/auth"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/middleware"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/response"
)

// AdminBookingHandler handles admin HTTP requests for bookings and payments.
type AdminBookingHandler struct {
	service  *application.BookingService
	payments *application.PaymentService
}

// NewAdminBookingHandler creates a new AdminBookingHandler.
func NewAdminBookingHandler(service *application.BookingService, payments *application.PaymentService) *AdminBookingHandler {
	return &AdminBookingHandler{service: service, payments: payments}
}

// RegisterRoutes registers admin booking routes.
func (h *AdminBookingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	adminRole := middleware.RequireRole(auth.RoleAdmin)

	admin := r.Group("/api/v1/admin")
	admin.Use(authMW, adminRole)
	{
		admin.GET("/bookings", h.ListBookings)
		admin.DELETE("/bookings/:id", h.DeleteBooking)
		admin.GET("/stats/bookings", h.BookingStats)
		admin.GET("/payments", h.ListPayments)
		admin.DELETE("/payments/:id", h.DeletePayment)
		admin.GET("/stats/payments", h.PaymentStats)
	}
}

// ListBookings handles GET /api/v1/admin/bookings.
func (h *AdminBookingHandler) ListBookings(c *gin.Context) {
	page, limit := parsePagination(c)

	bookings, total, err := h.service.ListAllBookings(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, bookings, total, page, limit)
}

// DeleteBooking handles DELETE /api/v1/admin/bookings/:id.
func (h *AdminBookingHandler) DeleteBooking(c *gin.Context) {
	bookingID, ok := parseID(c, "id", "booking")
	if !ok {
		return
	}

	if err := h.service.DeleteBooking(c.Request.Context(), bookingID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "booking deleted"})
}

// BookingStats handles GET /api/v1/admin/stats/bookings.
func (h *AdminBookingHandler) BookingStats(c *gin.Context) {
	stats, err := h.service.GetBookingStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

// ListPayments handles GET /api/v1/admin/payments.
func (h *AdminBookingHandler) ListPayments(c *gin.Context) {
	page, limit := parsePagination(c)

	result, err := h.payments.ListPayments(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// DeletePayment handles DELETE /api/v1/admin/payments/:id.
func (h *AdminBookingHandler) DeletePayment(c *gin.Context) {
	paymentID, ok := parseID(c, "id", "payment")
	if !ok {
		return
	}

	if err := h.payments.DeletePayment(c.Request.Context(), paymentID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "payment deleted"})
}

// PaymentStats handles GET /api/v1/admin/stats/payments.
func (h *AdminBookingHandler) PaymentStats(c *gin.Context) {
	summary, err := h.payments.PaymentSummary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, summary)
}
