// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// KafkaBrokers is a comma-separated list of broker addresses
	// (e.g. "localhost:9092"). Empty disables event publishing.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// KafkaGroupID is the consumer group for the event worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// RedisAddr is the address of the Redis used for consumer-side event
	// dedup (e.g. "localhost:6379"). Empty disables dedup.
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// RedisDB is the Redis logical database index.
	RedisDB int `mapstructure:"REDIS_DB"`

	// KeycloakBaseURL is the base URL of the identity provider
	// (e.g. "http://localhost:8081").
	KeycloakBaseURL string `mapstructure:"KEYCLOAK_BASE_URL"`
	// KeycloakRealm is the realm holding synced subjects.
	KeycloakRealm string `mapstructure:"KEYCLOAK_REALM"`
	// KeycloakClientID is the service-account client used for admin calls.
	KeycloakClientID string `mapstructure:"KEYCLOAK_CLIENT_ID"`
	// KeycloakClientSecret is the service-account client secret.
	KeycloakClientSecret string `mapstructure:"KEYCLOAK_CLIENT_SECRET"`

	// MetricsAddr is the listen address for the Prometheus /metrics
	// endpoint in the worker. Empty disables the listener.
	MetricsAddr string `mapstructure:"METRICS_ADDR"`

	// LogLevel is the minimum log level (trace, debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogPretty enables human-friendly console logs; keep false in production.
	LogPretty bool `mapstructure:"LOG_PRETTY"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment via Viper. Missing .env is ignored (e.g. in CI). Env vars
// override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_GROUP_ID", "identity-service")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("KEYCLOAK_BASE_URL", "")
	v.SetDefault("KEYCLOAK_REALM", "identity")
	v.SetDefault("KEYCLOAK_CLIENT_ID", "")
	v.SetDefault("KEYCLOAK_CLIENT_SECRET", "")
	v.SetDefault("METRICS_ADDR", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.LogPretty && cfg.Env == "production" {
		return nil, errors.New("config: LOG_PRETTY must not be true when APP_ENV=production")
	}

	return &cfg, nil
}

// KafkaBrokersList returns broker addresses from the comma-separated config.
// Used to decide if eventing is enabled (non-empty list) and to create the
// producer and reader.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
