package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager("test-secret", time.Minute)
	userID := uuid.New()

	token, err := m.GenerateAccessToken(userID, "ana@example.com", RoleCustomer)
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, RoleCustomer, claims.Role)
	assert.Equal(t, "ana@example.com", claims.Email)
}

func TestJWTManager_Rejects(t *testing.T) {
	m := NewJWTManager("test-secret", time.Minute)
	other := NewJWTManager("other-secret", time.Minute)
	expired := NewJWTManager("test-secret", -time.Minute)

	foreign, err := other.GenerateAccessToken(uuid.New(), "", RoleAdmin)
	require.NoError(t, err)
	stale, err := expired.GenerateAccessToken(uuid.New(), "", RoleAdmin)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"wrong secret": foreign,
		"expired":      stale,
		"garbage":      "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := m.ValidateToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
