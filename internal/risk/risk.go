// Package risk turns a threat set into a bounded score and a four-level
// category, and orchestrates the full per-transaction assessment flow.
//
// Scoring is a pure function: each threat contributes points by severity and
// the sum clamps to [0,100]. Callers can recompute after appending rule
// threats to detector threats and always get a consistent answer.
package risk

import (
	"context"
	"time"

	"github.com/solsentry/solsentry/internal/analysis"
)

// Level is the four-tier risk category.
type Level string

const (
	LevelLow      Level = "LOW"
	LevelMedium   Level = "MEDIUM"
	LevelHigh     Level = "HIGH"
	LevelCritical Level = "CRITICAL"
)

// Score thresholds for Level.
const (
	mediumThreshold   = 20
	highThreshold     = 50
	criticalThreshold = 80
)

// Per-severity score contributions.
const (
	pointsCritical = 30
	pointsHigh     = 20
	pointsMedium   = 10
	pointsLow      = 5
)

// Score sums per-threat contributions by severity and clamps to [0,100].
// Adding a threat never decreases the result.
func Score(threats []analysis.Threat) int {
	score := 0
	for _, t := range threats {
		switch t.Severity {
		case analysis.SeverityCritical:
			score += pointsCritical
		case analysis.SeverityHigh:
			score += pointsHigh
		case analysis.SeverityMedium:
			score += pointsMedium
		case analysis.SeverityLow:
			score += pointsLow
		}
	}
	if score > 100 {
		score = 100
	}
	return score
}

// LevelFor maps a score to its category: [0,20) LOW, [20,50) MEDIUM,
// [50,80) HIGH, [80,100] CRITICAL.
func LevelFor(score int) Level {
	switch {
	case score >= criticalThreshold:
		return LevelCritical
	case score >= highThreshold:
		return LevelHigh
	case score >= mediumThreshold:
		return LevelMedium
	default:
		return LevelLow
	}
}

// FinancialSummary condenses the context's financial activity for the
// assessment record and webhook payloads.
type FinancialSummary struct {
	SOLTransfers   int     `json:"solTransfers"`
	TokenTransfers int     `json:"tokenTransfers"`
	NFTTransfers   int     `json:"nftTransfers"`
	ValueAtRiskUSD float64 `json:"valueAtRiskUsd"`
}

// Assessment is the result of analyzing one transaction.
type Assessment struct {
	ID          string            `json:"id"`
	Wallet      string            `json:"wallet"`
	Signature   string            `json:"signature,omitempty"`
	Score       int               `json:"score"`
	Level       Level             `json:"level"`
	Threats     []analysis.Threat `json:"threats"`
	Blocked     bool              `json:"blocked"`
	Reason      string            `json:"reason,omitempty"`
	Financial   FinancialSummary  `json:"financial"`
	EvaluatedAt time.Time         `json:"evaluatedAt"`
}

// Store persists assessments for an audit trail.
type Store interface {
	Record(ctx context.Context, a *Assessment) error
	ListByWallet(ctx context.Context, wallet string, limit int) ([]*Assessment, error)
}

// Notifier delivers best-effort outbound notifications for a completed
// assessment. Implemented by the webhook dispatcher.
type Notifier interface {
	Notify(ctx context.Context, a *Assessment, secretRef string) error
}

// Broadcaster pushes completed assessments to realtime subscribers.
type Broadcaster interface {
	BroadcastAssessment(a *Assessment)
}
