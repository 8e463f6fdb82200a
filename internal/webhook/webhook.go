// Package webhook delivers assessment notifications to configured HTTP
// endpoints.
//
// A channel maps risk tiers to endpoint URLs and owns the delivery policy:
// auth, content filters, fixed-window rate caps, and linear-backoff retry.
// Notify is best-effort: every failure mode short of a final delivery error
// is a silent (logged) no-op, and even that error is meant to be swallowed
// by the caller.
package webhook

import (
	"time"

	"github.com/solsentry/solsentry/internal/analysis"
	"github.com/solsentry/solsentry/internal/risk"
)

// AuthType selects how requests authenticate to the endpoint.
type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthBearer AuthType = "bearer"
	AuthBasic  AuthType = "basic"
	AuthCustom AuthType = "custom"
)

// AuthConfig describes endpoint authentication.
type AuthConfig struct {
	Type     AuthType          `json:"type"`
	Token    string            `json:"token,omitempty"`    // bearer
	Username string            `json:"username,omitempty"` // basic
	Password string            `json:"password,omitempty"` // basic
	Headers  map[string]string `json:"headers,omitempty"`  // custom
}

// Endpoints maps risk tiers (plus the BLOCKED and SUCCESS channels) to URLs.
// Empty URL means "not configured".
type Endpoints struct {
	Low      string `json:"low,omitempty"`
	Medium   string `json:"medium,omitempty"`
	High     string `json:"high,omitempty"`
	Critical string `json:"critical,omitempty"`
	Blocked  string `json:"blocked,omitempty"`
	Success  string `json:"success,omitempty"`
}

// ForLevel returns the endpoint configured for a risk level.
func (e Endpoints) ForLevel(level risk.Level) string {
	switch level {
	case risk.LevelLow:
		return e.Low
	case risk.LevelMedium:
		return e.Medium
	case risk.LevelHigh:
		return e.High
	case risk.LevelCritical:
		return e.Critical
	}
	return ""
}

// RetryPolicy bounds delivery attempts.
type RetryPolicy struct {
	MaxAttempts    int           `json:"maxAttempts"`
	Backoff        time.Duration `json:"backoff"`
	AttemptTimeout time.Duration `json:"attemptTimeout"`
}

// Filters drop notifications before any delivery work happens.
type Filters struct {
	// MinRiskScore drops assessments scoring below it. Zero means no floor.
	MinRiskScore int `json:"minRiskScore,omitempty"`
	// ThreatTypes, when non-empty, requires at least one matching threat.
	ThreatTypes []analysis.ThreatKind `json:"threatTypes,omitempty"`
	// OnlyBlocked drops everything that wasn't blocked.
	OnlyBlocked bool `json:"onlyBlocked,omitempty"`
}

// RateLimit caps deliveries per endpoint. Zero means unlimited. Windows are
// fixed calendar minute/hour buckets, not sliding.
type RateLimit struct {
	MaxPerMinute int `json:"maxPerMinute,omitempty"`
	MaxPerHour   int `json:"maxPerHour,omitempty"`
}

// Config is a webhook channel: endpoints plus delivery policy. Built once at
// startup; only the rate-limit counters mutate afterwards.
type Config struct {
	Endpoints Endpoints   `json:"endpoints"`
	Auth      AuthConfig  `json:"auth"`
	Retry     RetryPolicy `json:"retry"`
	Filters   Filters     `json:"filters"`
	RateLimit RateLimit   `json:"rateLimit"`
}

// Defaults for the retry policy.
const (
	DefaultMaxAttempts    = 3
	DefaultBackoff        = 1 * time.Second
	DefaultAttemptTimeout = 10 * time.Second
)

// Configured reports whether any endpoint is set.
func (c *Config) Configured() bool {
	e := c.Endpoints
	return e.Low != "" || e.Medium != "" || e.High != "" || e.Critical != "" ||
		e.Blocked != "" || e.Success != ""
}
