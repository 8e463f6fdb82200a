package webhook

import (
	"time"

	"github.com/solsentry/solsentry/internal/analysis"
	"github.com/solsentry/solsentry/internal/idgen"
	"github.com/solsentry/solsentry/internal/risk"
)

// EventType distinguishes the two notification events.
type EventType string

const (
	EventTransactionAnalyzed EventType = "TRANSACTION_ANALYZED"
	EventTransactionBlocked  EventType = "TRANSACTION_BLOCKED"
)

// SchemaVersion is the payload schema version consumers pin against.
const SchemaVersion = "1.0"

// Payload is the JSON body POSTed to a channel endpoint.
type Payload struct {
	EventID       string    `json:"eventId"`
	EventType     EventType `json:"eventType"`
	Timestamp     string    `json:"timestamp"` // RFC 3339 UTC
	SchemaVersion string    `json:"schemaVersion"`
	// APIKey is the caller's secret reference, redacted to its last four
	// characters. Never carries the full secret.
	APIKey      string                `json:"apiKey,omitempty"`
	Wallet      string                `json:"wallet"`
	Transaction string                `json:"transaction,omitempty"`
	Score       int                   `json:"score"`
	Level       risk.Level            `json:"level"`
	Threats     []analysis.Threat     `json:"threats"`
	Warnings    []analysis.Threat     `json:"warnings"`
	Financial   risk.FinancialSummary `json:"financial"`
	Blocked     bool                  `json:"blocked"`
	Reason      string                `json:"reason,omitempty"`
	Notified    bool                  `json:"notified"`
}

// buildPayload converts an assessment into the wire payload. Blocking
// threats land in Threats, advisories in Warnings.
func buildPayload(a *risk.Assessment, secretRef string) *Payload {
	eventType := EventTransactionAnalyzed
	if a.Blocked {
		eventType = EventTransactionBlocked
	}

	threats := make([]analysis.Threat, 0, len(a.Threats))
	warnings := make([]analysis.Threat, 0)
	for _, t := range a.Threats {
		if t.BlockedByDefault {
			threats = append(threats, t)
		} else {
			warnings = append(warnings, t)
		}
	}

	return &Payload{
		EventID:       idgen.WithPrefix("evt_"),
		EventType:     eventType,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		SchemaVersion: SchemaVersion,
		APIKey:        redactSecret(secretRef),
		Wallet:        a.Wallet,
		Transaction:   a.Signature,
		Score:         a.Score,
		Level:         a.Level,
		Threats:       threats,
		Warnings:      warnings,
		Financial:     a.Financial,
		Blocked:       a.Blocked,
		Reason:        a.Reason,
		Notified:      true,
	}
}

// redactSecret keeps only the last four characters of a secret reference.
func redactSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "..." + secret
	}
	return "..." + secret[len(secret)-4:]
}
