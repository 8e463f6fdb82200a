package detect

import (
	"fmt"

	"github.com/solsentry/solsentry/internal/analysis"
)

const (
	// DefaultDrainThresholdLamports is the summed SOL outflow above which a
	// transaction is treated as a wallet drain (10 SOL). Strictly
	// greater-than: a transfer of exactly the threshold does not trigger.
	DefaultDrainThresholdLamports uint64 = 10 * analysis.LamportsPerSOL

	// batchDrainThreshold is the number of outgoing token transfers from the
	// subject wallet above which the batch-drain heuristic fires.
	batchDrainThreshold = 5
)

// DrainDetector flags transactions that move an unusually large amount of
// value out of the subject wallet, plus any account closure.
type DrainDetector struct {
	thresholdLamports uint64
}

// NewDrainDetector creates a drain detector with the default SOL threshold.
func NewDrainDetector() *DrainDetector {
	return &DrainDetector{thresholdLamports: DefaultDrainThresholdLamports}
}

// WithThreshold overrides the lamport threshold.
func (d *DrainDetector) WithThreshold(lamports uint64) *DrainDetector {
	d.thresholdLamports = lamports
	return d
}

func (d *DrainDetector) Name() string { return "drain" }

func (d *DrainDetector) Detect(actx *analysis.Context, subject string) []analysis.Threat {
	var threats []analysis.Threat

	var totalLamports uint64
	for _, tr := range actx.Financial.SOLTransfers {
		totalLamports += tr.Lamports
	}
	if totalLamports > d.thresholdLamports {
		threats = append(threats, analysis.Threat{
			Kind:     analysis.ThreatWalletDrain,
			Severity: analysis.SeverityCritical,
			Title:    "Large SOL outflow",
			Description: fmt.Sprintf("Transaction moves %.4f SOL, above the %.2f SOL drain threshold",
				float64(totalLamports)/float64(analysis.LamportsPerSOL),
				float64(d.thresholdLamports)/float64(analysis.LamportsPerSOL)),
			AffectedAccounts: []string{subject},
			Evidence: map[string]any{
				"totalLamports":     totalLamports,
				"thresholdLamports": d.thresholdLamports,
				"transferCount":     len(actx.Financial.SOLTransfers),
			},
			Recommendation:   "Reject this transaction unless you intended to move this amount",
			BlockedByDefault: true,
		})
	}

	outgoing := 0
	destinations := []string{subject}
	seenDest := map[string]struct{}{subject: {}}
	for _, tr := range actx.Financial.TokenTransfers {
		if tr.From != subject {
			continue
		}
		outgoing++
		if _, ok := seenDest[tr.To]; !ok {
			seenDest[tr.To] = struct{}{}
			destinations = append(destinations, tr.To)
		}
	}
	if outgoing > batchDrainThreshold {
		threats = append(threats, analysis.Threat{
			Kind:     analysis.ThreatWalletDrain,
			Severity: analysis.SeverityHigh,
			Title:    "Batch token outflow",
			Description: fmt.Sprintf("Wallet is the source of %d outgoing token transfers in a single transaction",
				outgoing),
			AffectedAccounts: destinations,
			Evidence: map[string]any{
				"outgoingTransfers": outgoing,
			},
			Recommendation:   "Batch transfers out of a wallet are a common drainer pattern",
			BlockedByDefault: true,
		})
	}

	for _, change := range actx.AuthorityChanges {
		if change.Kind != analysis.AuthorityClose {
			continue
		}
		threats = append(threats, analysis.Threat{
			Kind:             analysis.ThreatAccountClosure,
			Severity:         analysis.SeverityCritical,
			Title:            "Account closure",
			Description:      fmt.Sprintf("Transaction closes account %s", change.Account),
			AffectedAccounts: []string{change.Account},
			Evidence: map[string]any{
				"account":      change.Account,
				"newAuthority": change.NewAuthority,
			},
			Recommendation:   "Closing an account reclaims its rent and destroys its data",
			BlockedByDefault: true,
		})
	}

	return threats
}
