package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/roadrunner-rentals/service-rental/internal/application"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/auth"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/middleware"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/response"
)

// PaymentHandler handles HTTP requests for payments.
type PaymentHandler struct {
	service *application.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(service *application.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// RegisterRoutes registers payment routes.
func (h *PaymentHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	staff := middleware.RequireRole(auth.RoleStaff, auth.RoleAdmin)

	payments := r.Group("/api/v1/payments")
	payments.Use(middleware.AuthMiddleware(jwtManager))
	{
		payments.POST("", h.ProcessPayment)
		payments.GET("/:id", h.GetPayment)
		payments.POST("/:id/confirm", staff, h.ConfirmPayment)
		payments.POST("/:id/cancel", staff, h.CancelPayment)
	}
}

// ProcessPayment handles POST /api/v1/payments.
func (h *PaymentHandler) ProcessPayment(c *gin.Context) {
	req, ok := requesterFrom(c)
	if !ok {
		return
	}

	var body application.ProcessPaymentRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.ProcessPayment(c.Request.Context(), body, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// GetPayment handles GET /api/v1/payments/:id.
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	paymentID, ok := parseID(c, "id", "payment")
	if !ok {
		return
	}
	req, ok := requesterFrom(c)
	if !ok {
		return
	}

	result, err := h.service.GetPayment(c.Request.Context(), paymentID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ConfirmPayment handles POST /api/v1/payments/:id/confirm.
func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	paymentID, ok := parseID(c, "id", "payment")
	if !ok {
		return
	}

	result, err := h.service.ConfirmPayment(c.Request.Context(), paymentID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CancelPayment handles POST /api/v1/payments/:id/cancel.
func (h *PaymentHandler) CancelPayment(c *gin.Context) {
	paymentID, ok := parseID(c, "id", "payment")
	if !ok {
		return
	}

	result, err := h.service.CancelPayment(c.Request.Context(), paymentID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
