package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "RENTAL"

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	DSN      string
}

// JWTConfig holds token verification settings.
type JWTConfig struct {
	Secret string
}

// KafkaConfig holds broker settings.
type KafkaConfig struct {
	Brokers     []string
	GroupPrefix string
}

// PaymentConfig lists the payment methods the registry accepts.
type PaymentConfig struct {
	Methods []string
}

// PricingConfig controls how booking totals are established.
type PricingConfig struct {
	// TrustClientTotal stores a caller supplied total instead of the computed one.
	TrustClientTotal bool
}

// ServiceConfig holds all configuration for the rental service.
type ServiceConfig struct {
	Port           string
	AppEnv         string
	MigrationsPath string
	DBConfig       DatabaseConfig
	JWTConfig      JWTConfig
	KafkaConfig    KafkaConfig
	PaymentConfig  PaymentConfig
	PricingConfig  PricingConfig
}

// Load reads configuration from an optional .env file and RENTAL_* variables.
func Load() (*ServiceConfig, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &ServiceConfig{
		Port:           v.GetString("SERVICE_PORT"),
		AppEnv:         v.GetString("APP_ENV"),
		MigrationsPath: v.GetString("MIGRATIONS_PATH"),
		DBConfig: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
			DSN:      v.GetString("DB_DSN"),
		},
		JWTConfig: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
		},
		KafkaConfig: KafkaConfig{
			Brokers:     splitList(v.GetString("KAFKA_BROKERS")),
			GroupPrefix: v.GetString("KAFKA_GROUP_PREFIX"),
		},
		PaymentConfig: PaymentConfig{
			Methods: splitList(v.GetString("PAYMENT_METHODS")),
		},
		PricingConfig: PricingConfig{
			TrustClientTotal: v.GetBool("PRICING_TRUST_CLIENT_TOTAL"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_PORT", ":8006")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("MIGRATIONS_PATH", "migrations")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "rental_db")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_GROUP_PREFIX", "rental-")
	v.SetDefault("PAYMENT_METHODS", "card,cash")
	v.SetDefault("PRICING_TRUST_CLIENT_TOTAL", false)
}

func (c *ServiceConfig) validate() error {
	if c.JWTConfig.Secret == "" {
		if c.AppEnv != "development" && c.AppEnv != "test" {
			return fmt.Errorf("%s_JWT_SECRET is required in %s", envPrefix, c.AppEnv)
		}
		c.JWTConfig.Secret = "dev-secret-change-me"
	}
	if len(c.PaymentConfig.Methods) == 0 {
		return fmt.Errorf("%s_PAYMENT_METHODS must list at least one method", envPrefix)
	}
	if !strings.HasPrefix(c.Port, ":") {
		c.Port = ":" + c.Port
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
