package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/roadrunner-rentals/service-rental/internal/pkg/apperror"
)

// Envelope is the JSON shape of every API response.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Meta carries pagination details.
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

// Success writes a 200 response.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes a 201 response.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// Paginated writes a 200 response with pagination metadata.
func Paginated(c *gin.Context, items interface{}, total int64, page, limit int) {
	totalPages := int64(0)
	if limit > 0 {
		totalPages = (total + int64(limit) - 1) / int64(limit)
	}
	c.JSON(http.StatusOK, Envelope{
		Success: true,
		Data:    items,
		Meta:    &Meta{Page: page, Limit: limit, Total: total, TotalPages: totalPages},
	})
}

// BadRequest writes a 400 validation failure.
func BadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Envelope{
		Error: &ErrorBody{Code: string(apperror.KindValidation), Message: message},
	})
}

// Unauthorized writes a 401.
func Unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Envelope{
		Error: &ErrorBody{Code: "UNAUTHORIZED", Message: message},
	})
}

// Forbidden writes a 403.
func Forbidden(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusForbidden, Envelope{
		Error: &ErrorBody{Code: "FORBIDDEN", Message: message},
	})
}

// Error maps err to its status code. Internal failures never expose detail.
func Error(c *gin.Context, err error) {
	c.AbortWithStatusJSON(apperror.HTTPStatus(err), Envelope{
		Error: &ErrorBody{
			Code:    string(apperror.KindOf(err)),
			Message: apperror.PublicMessage(err),
		},
	})
}
