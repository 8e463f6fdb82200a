package detect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/solsentry/solsentry/internal/analysis"
)

// phishingSignatures are tested against the lowercased concatenation of all
// log lines. Order matters: the first match wins and no further signatures
// are tried, so put the most specific patterns first.
var phishingSignatures = []*regexp.Regexp{
	regexp.MustCompile(`approve.*all`),
	regexp.MustCompile(`unlimited.*approval`),
	regexp.MustCompile(`verify.*wallet`),
	regexp.MustCompile(`claim.*reward`),
	regexp.MustCompile(`airdrop.*eligib`),
}

// approvalKeywords mark log lines attributable to approval-type operations.
var approvalKeywords = []string{"approve", "setauthority", "delegate"}

// approvalFloodThreshold is the approval-operation count above which the
// approval-flood advisory fires.
const approvalFloodThreshold = 3

// PhishingDetector matches known phishing signatures in program logs and
// flags approval floods.
type PhishingDetector struct{}

// NewPhishingDetector creates a phishing detector.
func NewPhishingDetector() *PhishingDetector { return &PhishingDetector{} }

func (d *PhishingDetector) Name() string { return "phishing" }

func (d *PhishingDetector) Detect(actx *analysis.Context, subject string) []analysis.Threat {
	var threats []analysis.Threat

	logs := strings.ToLower(strings.Join(actx.Execution.Logs, "\n"))

	// One threat at most for signature hits, no matter how many patterns match.
	for _, sig := range phishingSignatures {
		if !sig.MatchString(logs) {
			continue
		}
		threats = append(threats, analysis.Threat{
			Kind:             analysis.ThreatPhishingSignature,
			Severity:         analysis.SeverityHigh,
			Title:            "Phishing signature in program logs",
			Description:      fmt.Sprintf("Program logs match the phishing signature %q", sig.String()),
			AffectedAccounts: []string{subject},
			Evidence: map[string]any{
				"signature": sig.String(),
			},
			Recommendation:   "Do not sign transactions from sites asking you to verify or approve your wallet",
			BlockedByDefault: true,
		})
		break
	}

	approvals := 0
	for _, line := range actx.Execution.Logs {
		lower := strings.ToLower(line)
		for _, kw := range approvalKeywords {
			if strings.Contains(lower, kw) {
				approvals++
				break
			}
		}
	}
	if approvals > approvalFloodThreshold {
		threats = append(threats, analysis.Threat{
			Kind:             analysis.ThreatPhishingSignature,
			Severity:         analysis.SeverityMedium,
			Title:            "Approval flood",
			Description: fmt.Sprintf("Transaction performs %d approval-type operations", approvals),
			// Transaction-wide advisory: no single affected account, which
			// also keeps it distinct from a signature hit for the subject.
			Evidence: map[string]any{
				"approvalOperations": approvals,
			},
			Recommendation:   "Many approvals in one transaction often precede token theft",
			BlockedByDefault: false,
		})
	}

	return threats
}
