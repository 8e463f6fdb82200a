package detect

import (
	"fmt"

	"github.com/solsentry/solsentry/internal/analysis"
)

// DelegateDetector flags delegate authority handed to anyone other than the
// subject wallet. Delegation to a third party is how most token drainers get
// spend rights without an immediate transfer.
type DelegateDetector struct{}

// NewDelegateDetector creates a delegate-hijack detector.
func NewDelegateDetector() *DelegateDetector { return &DelegateDetector{} }

func (d *DelegateDetector) Name() string { return "delegate" }

func (d *DelegateDetector) Detect(actx *analysis.Context, subject string) []analysis.Threat {
	var threats []analysis.Threat

	for _, change := range actx.AuthorityChanges {
		if change.Kind != analysis.AuthorityDelegate {
			continue
		}

		if change.NewAuthority != "" && change.NewAuthority != subject {
			threats = append(threats, analysis.Threat{
				Kind:     analysis.ThreatDelegateHijack,
				Severity: analysis.SeverityCritical,
				Title:    "Delegate authority hijack",
				Description: fmt.Sprintf("Account %s delegates spend authority to %s, which is not your wallet",
					change.Account, change.NewAuthority),
				AffectedAccounts: []string{change.Account},
				Evidence: map[string]any{
					"account":      change.Account,
					"oldAuthority": change.OldAuthority,
					"newAuthority": change.NewAuthority,
				},
				Recommendation:   "Revoke the delegation immediately if you did not intend it",
				BlockedByDefault: true,
			})
		}

		// Separate advisory when the simulator marked the change for
		// attention; may fire alongside the hijack threat for one change.
		if change.Attention {
			threats = append(threats, analysis.Threat{
				Kind:     analysis.ThreatDelegateHijack,
				Severity: analysis.SeverityHigh,
				Title:    "Delegate change flagged for attention",
				Description: fmt.Sprintf("Delegate authority change on account %s was flagged by the simulator",
					change.Account),
				AffectedAccounts: []string{change.Account, change.NewAuthority},
				Evidence: map[string]any{
					"account":      change.Account,
					"newAuthority": change.NewAuthority,
				},
				Recommendation:   "Review the delegation before signing",
				BlockedByDefault: false,
			})
		}
	}

	return threats
}
