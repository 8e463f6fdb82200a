package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/solsentry/solsentry/internal/retry"
	"github.com/solsentry/solsentry/internal/risk"
)

var (
	deliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "solsentry",
		Subsystem: "webhook",
		Name:      "deliveries_total",
		Help:      "Total webhook delivery outcomes by result.",
	}, []string{"result"})

	rateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "solsentry",
		Subsystem: "webhook",
		Name:      "rate_limited_total",
		Help:      "Total webhook notifications dropped by rate limiting.",
	})
)

func init() {
	prometheus.MustRegister(deliveriesTotal, rateLimitedTotal)
}

// Dispatcher owns one channel configuration and its rate-limit state.
// Safe for concurrent use.
type Dispatcher struct {
	cfg    Config
	client *http.Client
	limits *windowLimiter
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher for the given channel. Retry defaults
// are applied to unset policy fields.
func NewDispatcher(cfg Config, logger *slog.Logger) *Dispatcher {
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Retry.Backoff <= 0 {
		cfg.Retry.Backoff = DefaultBackoff
	}
	if cfg.Retry.AttemptTimeout <= 0 {
		cfg.Retry.AttemptTimeout = DefaultAttemptTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		cfg:    cfg,
		client: &http.Client{}, // per-attempt timeout comes from the request context
		limits: newWindowLimiter(),
		logger: logger,
	}
}

// Notify delivers an assessment notification. Unconfigured channels,
// filtered assessments, and rate-limited endpoints are silent no-ops; only a
// delivery failure after the final retry attempt surfaces as an error, which
// callers treat as log-and-forget.
func (d *Dispatcher) Notify(ctx context.Context, a *risk.Assessment, secretRef string) error {
	endpoint := d.selectEndpoint(a)
	if endpoint == "" {
		return nil
	}

	if !d.passesFilters(a) {
		return nil
	}

	if !d.limits.allow(endpoint, d.cfg.RateLimit) {
		rateLimitedTotal.Inc()
		d.logger.Debug("webhook rate limited", "endpoint", endpoint, "assessment", a.ID)
		return nil
	}

	payload := buildPayload(a, secretRef)
	body, err := json.Marshal(payload)
	if err != nil {
		deliveriesTotal.WithLabelValues("marshal_error").Inc()
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	err = retry.Do(ctx, d.cfg.Retry.MaxAttempts, d.cfg.Retry.Backoff, func(attempt int) error {
		return d.attempt(ctx, endpoint, body, payload.EventType)
	})
	if err != nil {
		deliveriesTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("webhook delivery to %s failed: %w", endpoint, err)
	}
	deliveriesTotal.WithLabelValues("success").Inc()
	return nil
}

// selectEndpoint applies the channel routing rules: BLOCKED wins when the
// assessment is blocked, then the risk tier, then the SUCCESS fallback.
func (d *Dispatcher) selectEndpoint(a *risk.Assessment) string {
	if a.Blocked && d.cfg.Endpoints.Blocked != "" {
		return d.cfg.Endpoints.Blocked
	}
	if url := d.cfg.Endpoints.ForLevel(a.Level); url != "" {
		return url
	}
	return d.cfg.Endpoints.Success
}

// passesFilters applies the filter chain in its contractual order.
func (d *Dispatcher) passesFilters(a *risk.Assessment) bool {
	f := d.cfg.Filters

	if f.OnlyBlocked && !a.Blocked {
		return false
	}
	if f.MinRiskScore > 0 && a.Score < f.MinRiskScore {
		return false
	}
	if len(f.ThreatTypes) > 0 {
		match := false
		for _, t := range a.Threats {
			for _, kind := range f.ThreatTypes {
				if t.Kind == kind {
					match = true
					break
				}
			}
			if match {
				break
			}
		}
		if !match {
			return false
		}
	}
	return true
}

// attempt performs one POST, bounded by the per-attempt timeout.
func (d *Dispatcher) attempt(ctx context.Context, endpoint string, body []byte, eventType EventType) error {
	actx, cancel := context.WithTimeout(ctx, d.cfg.Retry.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Solsentry-Event", string(eventType))
	d.applyAuth(req)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) applyAuth(req *http.Request) {
	switch d.cfg.Auth.Type {
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+d.cfg.Auth.Token)
	case AuthBasic:
		req.SetBasicAuth(d.cfg.Auth.Username, d.cfg.Auth.Password)
	case AuthCustom:
		for k, v := range d.cfg.Auth.Headers {
			req.Header.Set(k, v)
		}
	}
}

// Compile-time check that Dispatcher implements risk.Notifier.
var _ risk.Notifier = (*Dispatcher)(nil)
