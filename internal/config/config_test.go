package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("RENTAL_APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8006", cfg.Port)
	assert.Equal(t, "rental_db", cfg.DBConfig.DBName)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaConfig.Brokers)
	assert.Equal(t, []string{"card", "cash"}, cfg.PaymentConfig.Methods)
	assert.False(t, cfg.PricingConfig.TrustClientTotal)
	assert.NotEmpty(t, cfg.JWTConfig.Secret)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RENTAL_APP_ENV", "production")
	t.Setenv("RENTAL_SERVICE_PORT", "9090")
	t.Setenv("RENTAL_JWT_SECRET", "prod-secret")
	t.Setenv("RENTAL_KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("RENTAL_PAYMENT_METHODS", "card")
	t.Setenv("RENTAL_PRICING_TRUST_CLIENT_TOTAL", "true")
	t.Setenv("RENTAL_DB_DSN", "file:local.db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Port)
	assert.Equal(t, "prod-secret", cfg.JWTConfig.Secret)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaConfig.Brokers)
	assert.Equal(t, []string{"card"}, cfg.PaymentConfig.Methods)
	assert.True(t, cfg.PricingConfig.TrustClientTotal)
	assert.Equal(t, "file:local.db", cfg.DBConfig.DSN)
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("RENTAL_APP_ENV", "production")
	t.Setenv("RENTAL_JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}
