package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/roadrunner-rentals/service-rental/internal/application"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/auth"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/middleware"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/response"
)

// OfferHandler handles offer HTTP requests.
type OfferHandler struct {
	service *application.OfferService
}

// NewOfferHandler creates a new OfferHandler.
func NewOfferHandler(service *application.OfferService) *OfferHandler {
	return &OfferHandler{service: service}
}

// RegisterRoutes registers offer routes.
func (h *OfferHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	r.GET("/api/v1/offers/discount", h.ActiveDiscount)

	admin := r.Group("/api/v1/admin/offers")
	admin.Use(middleware.AuthMiddleware(jwtManager), middleware.RequireRole(auth.RoleAdmin))
	{
		admin.POST("", h.CreateOffer)
		admin.GET("", h.ListOffers)
		admin.POST("/:id/toggle", h.ToggleOffer)
		admin.DELETE("/:id", h.DeleteOffer)
	}
}

// ActiveDiscount returns the discount applied to available vehicles today.
func (h *OfferHandler) ActiveDiscount(c *gin.Context) {
	result, err := h.service.MaxActiveDiscount(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// CreateOffer creates a new offer.
func (h *OfferHandler) CreateOffer(c *gin.Context) {
	var req application.CreateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateOffer(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ListOffers lists offers; ?deleted=true includes soft-deleted ones.
func (h *OfferHandler) ListOffers(c *gin.Context) {
	result, err := h.service.ListOffers(c.Request.Context(), c.Query("deleted") == "true")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// ToggleOffer flips an offer's active flag.
func (h *OfferHandler) ToggleOffer(c *gin.Context) {
	offerID, ok := parseID(c, "id", "offer")
	if !ok {
		return
	}

	result, err := h.service.ToggleOffer(c.Request.Context(), offerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// DeleteOffer soft-deletes an offer.
func (h *OfferHandler) DeleteOffer(c *gin.Context) {
	offerID, ok := parseID(c, "id", "offer")
	if !ok {
		return
	}

	if err := h.service.DeleteOffer(c.Request.Context(), offerID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "offer deleted"})
}
