package analysis

import (
	"sort"
	"strings"
)

// Severity ranks how dangerous a threat is.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// ValidSeverity reports whether s is one of the four known severities.
func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// ThreatKind is the closed (but extensible) set of detection result types.
type ThreatKind string

const (
	ThreatWalletDrain         ThreatKind = "WALLET_DRAIN"
	ThreatAccountClosure      ThreatKind = "ACCOUNT_CLOSURE"
	ThreatPhishingSignature   ThreatKind = "PHISHING_SIGNATURE"
	ThreatDelegateHijack      ThreatKind = "DELEGATE_HIJACK"
	ThreatUnknownProgram      ThreatKind = "UNKNOWN_PROGRAM"
	ThreatSuspiciousCPI       ThreatKind = "SUSPICIOUS_CPI"
	ThreatCustomRuleViolation ThreatKind = "CUSTOM_RULE_VIOLATION"
)

// Threat is a single detected security concern. Threats are value objects;
// two threats with the same kind and affected-account set are duplicates.
type Threat struct {
	Kind             ThreatKind     `json:"kind"`
	Severity         Severity       `json:"severity"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	AffectedAccounts []string       `json:"affectedAccounts,omitempty"`
	Evidence         map[string]any `json:"evidence,omitempty"`
	Recommendation   string         `json:"recommendation,omitempty"`
	BlockedByDefault bool           `json:"blockedByDefault"`
}

// DedupKey returns the deduplication identity: kind plus the sorted
// affected-account set. Account order and duplicates within the set do not
// affect identity.
func (t *Threat) DedupKey() string {
	accounts := make([]string, 0, len(t.AffectedAccounts))
	seen := make(map[string]struct{}, len(t.AffectedAccounts))
	for _, a := range t.AffectedAccounts {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		accounts = append(accounts, a)
	}
	sort.Strings(accounts)
	return string(t.Kind) + "|" + strings.Join(accounts, ",")
}
