// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/solsentry/solsentry/internal/analysis"
	"github.com/solsentry/solsentry/internal/webhook"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "json" or "text"

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Tracing
	OTLPEndpoint string // OTLP gRPC endpoint (optional, tracing disabled if not set)

	// API rate limiting
	RateLimitRPM int

	// Detection
	DrainThresholdLamports uint64

	// Webhook channel
	Webhook webhook.Config
}

// Defaults
const (
	DefaultPort           = "8080"
	DefaultEnv            = "development"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultRateLimitRPM   = 120
	DefaultWebhookBackoff = 1000 // ms
	DefaultWebhookTimeout = 10000 // ms
)

// Load reads configuration from environment variables.
// It loads a .env file if present (for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                   getEnv("PORT", DefaultPort),
		Env:                    getEnv("ENV", DefaultEnv),
		LogLevel:               getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:              getEnv("LOG_FORMAT", DefaultLogFormat),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		OTLPEndpoint:           os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		RateLimitRPM:           int(getEnvInt64("RATE_LIMIT_RPM", DefaultRateLimitRPM)),
		DrainThresholdLamports: uint64(getEnvInt64("DRAIN_THRESHOLD_LAMPORTS", 0)),
		Webhook:                loadWebhook(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadWebhook() webhook.Config {
	cfg := webhook.Config{
		Endpoints: webhook.Endpoints{
			Low:      os.Getenv("WEBHOOK_URL_LOW"),
			Medium:   os.Getenv("WEBHOOK_URL_MEDIUM"),
			High:     os.Getenv("WEBHOOK_URL_HIGH"),
			Critical: os.Getenv("WEBHOOK_URL_CRITICAL"),
			Blocked:  os.Getenv("WEBHOOK_URL_BLOCKED"),
			Success:  os.Getenv("WEBHOOK_URL_SUCCESS"),
		},
		Auth: webhook.AuthConfig{
			Type:     webhook.AuthType(getEnv("WEBHOOK_AUTH_TYPE", string(webhook.AuthNone))),
			Token:    os.Getenv("WEBHOOK_AUTH_TOKEN"),
			Username: os.Getenv("WEBHOOK_AUTH_USERNAME"),
			Password: os.Getenv("WEBHOOK_AUTH_PASSWORD"),
		},
		Retry: webhook.RetryPolicy{
			MaxAttempts:    int(getEnvInt64("WEBHOOK_MAX_ATTEMPTS", webhook.DefaultMaxAttempts)),
			Backoff:        time.Duration(getEnvInt64("WEBHOOK_BACKOFF_MS", DefaultWebhookBackoff)) * time.Millisecond,
			AttemptTimeout: time.Duration(getEnvInt64("WEBHOOK_TIMEOUT_MS", DefaultWebhookTimeout)) * time.Millisecond,
		},
		Filters: webhook.Filters{
			MinRiskScore: int(getEnvInt64("WEBHOOK_MIN_SCORE", 0)),
			ThreatTypes:  parseThreatTypes(os.Getenv("WEBHOOK_THREAT_TYPES")),
			OnlyBlocked:  getEnvBool("WEBHOOK_ONLY_BLOCKED", false),
		},
		RateLimit: webhook.RateLimit{
			MaxPerMinute: int(getEnvInt64("WEBHOOK_MAX_PER_MINUTE", 0)),
			MaxPerHour:   int(getEnvInt64("WEBHOOK_MAX_PER_HOUR", 0)),
		},
	}

	// Custom auth headers: "Name1=val1,Name2=val2"
	if raw := os.Getenv("WEBHOOK_AUTH_HEADERS"); raw != "" {
		cfg.Auth.Type = webhook.AuthCustom
		cfg.Auth.Headers = make(map[string]string)
		for _, pair := range strings.Split(raw, ",") {
			name, value, ok := strings.Cut(pair, "=")
			if !ok {
				continue
			}
			cfg.Auth.Headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
	}

	return cfg
}

func parseThreatTypes(raw string) []analysis.ThreatKind {
	if raw == "" {
		return nil
	}
	var kinds []analysis.ThreatKind
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			kinds = append(kinds, analysis.ThreatKind(part))
		}
	}
	return kinds
}

// Validate checks that configuration values are coherent
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be numeric, got %q", c.Port)
	}

	switch c.Webhook.Auth.Type {
	case "", webhook.AuthNone, webhook.AuthBearer, webhook.AuthBasic, webhook.AuthCustom:
	default:
		return fmt.Errorf("WEBHOOK_AUTH_TYPE must be one of none, bearer, basic, custom")
	}
	if c.Webhook.Auth.Type == webhook.AuthBearer && c.Webhook.Auth.Token == "" {
		return fmt.Errorf("WEBHOOK_AUTH_TOKEN is required for bearer auth")
	}
	if c.Webhook.Auth.Type == webhook.AuthBasic &&
		(c.Webhook.Auth.Username == "" || c.Webhook.Auth.Password == "") {
		return fmt.Errorf("WEBHOOK_AUTH_USERNAME and WEBHOOK_AUTH_PASSWORD are required for basic auth")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
