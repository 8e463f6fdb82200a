package detect

import (
	"fmt"

	"github.com/solsentry/solsentry/internal/analysis"
)

// Reputation cutoffs for unverified programs.
const (
	reputationHighCutoff  = 30 // below this: HIGH
	reputationBlockCutoff = 50 // below this: blocked by default
)

// ProgramDetector flags unverified programs by reputation tier and surfaces
// suspicious cross-program invocations.
type ProgramDetector struct{}

// NewProgramDetector creates an unknown-program/CPI detector.
func NewProgramDetector() *ProgramDetector { return &ProgramDetector{} }

func (d *ProgramDetector) Name() string { return "programs" }

func (d *ProgramDetector) Detect(actx *analysis.Context, subject string) []analysis.Threat {
	var threats []analysis.Threat

	invoked := make(map[string]struct{}, len(actx.Programs.Invoked))
	for _, p := range actx.Programs.Invoked {
		invoked[p.Address] = struct{}{}
		if p.Verified {
			continue
		}

		severity := analysis.SeverityMedium
		switch {
		case p.Reputation == 0:
			severity = analysis.SeverityCritical
		case p.Reputation < reputationHighCutoff:
			severity = analysis.SeverityHigh
		}

		name := p.Name
		if name == "" {
			name = p.Address
		}
		threats = append(threats, analysis.Threat{
			Kind:     analysis.ThreatUnknownProgram,
			Severity: severity,
			Title:    "Unverified program invoked",
			Description: fmt.Sprintf("Program %s is not verified (reputation %d/100)",
				name, p.Reputation),
			AffectedAccounts: []string{p.Address},
			Evidence: map[string]any{
				"program":    p.Address,
				"reputation": p.Reputation,
			},
			Recommendation:   "Only interact with programs you trust or that have been verified",
			BlockedByDefault: p.Reputation < reputationBlockCutoff,
		})
	}

	for _, call := range actx.Programs.SuspiciousCalls {
		if _, ok := invoked[call.Program]; !ok {
			continue
		}
		reason := call.Reason
		if reason == "" {
			reason = "flagged by simulator"
		}
		threats = append(threats, analysis.Threat{
			Kind:             analysis.ThreatSuspiciousCPI,
			Severity:         analysis.SeverityHigh,
			Title:            "Suspicious cross-program invocation",
			Description:      fmt.Sprintf("Program %s made a suspicious CPI: %s", call.Program, reason),
			AffectedAccounts: []string{call.Program, subject},
			Evidence: map[string]any{
				"program": call.Program,
				"reason":  reason,
			},
			Recommendation:   "Unexpected nested program calls can hide token movements",
			BlockedByDefault: false,
		})
	}

	return threats
}
