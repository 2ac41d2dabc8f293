package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NewNotFoundError("Booking", "42"), http.StatusNotFound},
		{"not available", NewNotAvailableError("vehicle in maintenance"), http.StatusBadRequest},
		{"conflict", NewConflictError("overlap"), http.StatusBadRequest},
		{"already paid", NewAlreadyPaidError("42"), http.StatusBadRequest},
		{"invalid booking state", NewInvalidBookingStateError("returned"), http.StatusBadRequest},
		{"invalid transition", NewInvalidTransitionError("card"), http.StatusBadRequest},
		{"unsupported method", NewUnsupportedPaymentMethodError("crypto"), http.StatusBadRequest},
		{"validation", NewValidationError("bad"), http.StatusBadRequest},
		{"internal", NewInternalError(errors.New("db down")), http.StatusInternalServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("create booking: %w", NewConflictError("overlap"))

	assert.Equal(t, KindConflict, KindOf(err))
	assert.True(t, Is(err, KindConflict))
	assert.True(t, IsBusiness(err))
	assert.False(t, Is(nil, KindConflict))
}

func TestPublicMessage_HidesInternalDetail(t *testing.T) {
	err := NewInternalError(errors.New(`pq: relation "bookings" does not exist`))

	assert.Equal(t, "internal server error", PublicMessage(err))
	assert.Contains(t, err.Error(), "relation")
	assert.Equal(t, "Vehicle not found: 7", PublicMessage(NewNotFoundError("Vehicle", "7")))
}
