package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solsentry/solsentry/internal/analysis"
	"github.com/solsentry/solsentry/internal/webhook"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 120, cfg.RateLimitRPM)
	assert.Equal(t, time.Second, cfg.Webhook.Retry.Backoff)
	assert.Equal(t, 10*time.Second, cfg.Webhook.Retry.AttemptTimeout)
	assert.Equal(t, webhook.DefaultMaxAttempts, cfg.Webhook.Retry.MaxAttempts)
}

func TestLoad_WithOverrides(t *testing.T) {
	setEnv(t, "PORT", "9090")
	setEnv(t, "DRAIN_THRESHOLD_LAMPORTS", "5000000000")
	setEnv(t, "RATE_LIMIT_RPM", "30")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, uint64(5000000000), cfg.DrainThresholdLamports)
	assert.Equal(t, 30, cfg.RateLimitRPM)
}

func TestLoad_WebhookEndpoints(t *testing.T) {
	setEnv(t, "WEBHOOK_URL_HIGH", "https://hooks.example.com/high")
	setEnv(t, "WEBHOOK_URL_BLOCKED", "https://hooks.example.com/blocked")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Webhook.Configured())
	assert.Equal(t, "https://hooks.example.com/high", cfg.Webhook.Endpoints.High)
	assert.Equal(t, "https://hooks.example.com/blocked", cfg.Webhook.Endpoints.Blocked)
	assert.Empty(t, cfg.Webhook.Endpoints.Low)
}

func TestLoad_WebhookAuth_Bearer(t *testing.T) {
	setEnv(t, "WEBHOOK_URL_CRITICAL", "https://hooks.example.com/crit")
	setEnv(t, "WEBHOOK_AUTH_TYPE", "bearer")
	setEnv(t, "WEBHOOK_AUTH_TOKEN", "tok_abc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, webhook.AuthBearer, cfg.Webhook.Auth.Type)
	assert.Equal(t, "tok_abc", cfg.Webhook.Auth.Token)
}

func TestLoad_WebhookCustomHeaders(t *testing.T) {
	setEnv(t, "WEBHOOK_URL_HIGH", "https://hooks.example.com/high")
	setEnv(t, "WEBHOOK_AUTH_HEADERS", "X-Api-Key=secret,X-Env=prod")

	cfg, err := Load()
	require.NoError(t, err)

	// Custom headers force the custom auth type
	assert.Equal(t, webhook.AuthCustom, cfg.Webhook.Auth.Type)
	assert.Equal(t, "secret", cfg.Webhook.Auth.Headers["X-Api-Key"])
	assert.Equal(t, "prod", cfg.Webhook.Auth.Headers["X-Env"])
}

func TestLoad_WebhookFilters(t *testing.T) {
	setEnv(t, "WEBHOOK_URL_HIGH", "https://hooks.example.com/high")
	setEnv(t, "WEBHOOK_MIN_SCORE", "40")
	setEnv(t, "WEBHOOK_THREAT_TYPES", "WALLET_DRAIN,PHISHING_PATTERN")
	setEnv(t, "WEBHOOK_ONLY_BLOCKED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 40, cfg.Webhook.Filters.MinRiskScore)
	assert.Equal(t,
		[]analysis.ThreatKind{"WALLET_DRAIN", "PHISHING_PATTERN"},
		cfg.Webhook.Filters.ThreatTypes)
	assert.True(t, cfg.Webhook.Filters.OnlyBlocked)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:    "valid config",
			config:  Config{Port: "8080"},
			wantErr: "",
		},
		{
			name:    "non-numeric port",
			config:  Config{Port: "http"},
			wantErr: "PORT must be numeric",
		},
		{
			name: "bearer auth without token",
			config: Config{
				Port: "8080",
				Webhook: webhook.Config{
					Endpoints: webhook.Endpoints{High: "https://x"},
					Auth:      webhook.AuthConfig{Type: webhook.AuthBearer},
				},
			},
			wantErr: "WEBHOOK_AUTH_TOKEN is required",
		},
		{
			name: "basic auth without credentials",
			config: Config{
				Port: "8080",
				Webhook: webhook.Config{
					Endpoints: webhook.Endpoints{High: "https://x"},
					Auth:      webhook.AuthConfig{Type: webhook.AuthBasic},
				},
			},
			wantErr: "WEBHOOK_AUTH_USERNAME",
		},
		{
			name: "unknown auth type",
			config: Config{
				Port: "8080",
				Webhook: webhook.Config{
					Endpoints: webhook.Endpoints{High: "https://x"},
					Auth:      webhook.AuthConfig{Type: "hmac"},
				},
			},
			wantErr: "WEBHOOK_AUTH_TYPE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	cfg := &Config{Env: "development"}
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	cfg.Env = "production"
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.IsProduction())
}

func TestGetEnv(t *testing.T) {
	setEnv(t, "TEST_VAR", "custom_value")

	assert.Equal(t, "custom_value", getEnv("TEST_VAR", "default"))
	assert.Equal(t, "default", getEnv("NONEXISTENT_VAR", "default"))
}

func TestGetEnvInt64(t *testing.T) {
	setEnv(t, "TEST_INT", "42")
	setEnv(t, "TEST_INVALID", "not_a_number")

	assert.Equal(t, int64(42), getEnvInt64("TEST_INT", 0))
	assert.Equal(t, int64(99), getEnvInt64("NONEXISTENT_VAR", 99))
	assert.Equal(t, int64(99), getEnvInt64("TEST_INVALID", 99)) // Falls back on parse error
}

func TestGetEnvBool(t *testing.T) {
	setEnv(t, "TEST_TRUE", "true")
	setEnv(t, "TEST_ONE", "1")
	setEnv(t, "TEST_FALSE", "false")

	assert.True(t, getEnvBool("TEST_TRUE", false))
	assert.True(t, getEnvBool("TEST_ONE", false))
	assert.False(t, getEnvBool("TEST_FALSE", true))
	assert.True(t, getEnvBool("NONEXISTENT_VAR", true))
}
