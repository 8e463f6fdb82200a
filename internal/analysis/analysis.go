// Package analysis defines the per-transaction snapshot that detectors and
// rules evaluate. A Context is assembled once from the simulator's output and
// never mutated afterwards; every consumer receives a read-only view.
package analysis

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL uint64 = 1_000_000_000

// ExecutionOutcome captures the simulated execution result.
type ExecutionOutcome struct {
	Success         bool     `json:"success"`
	Error           string   `json:"error,omitempty"`
	Logs            []string `json:"logs,omitempty"`
	ComputeUnits    uint64   `json:"computeUnits"`
	AccountsRead    []string `json:"accountsRead,omitempty"`
	AccountsWritten []string `json:"accountsWritten,omitempty"`
}

// SOLTransfer is a native lamport movement observed during simulation.
type SOLTransfer struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Lamports uint64 `json:"lamports"`
}

// TokenTransfer is an SPL token movement observed during simulation.
type TokenTransfer struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Mint     string `json:"mint"`
	Amount   uint64 `json:"amount"`
	Decimals uint8  `json:"decimals"`
}

// NFTTransfer is a transfer of a token with supply 1.
type NFTTransfer struct {
	From string `json:"from"`
	To   string `json:"to"`
	Mint string `json:"mint"`
}

// FinancialActivity aggregates value movements. Empty slices mean "no
// evidence found", not "nothing happened": the simulator may be unable to
// derive transfers for exotic programs.
type FinancialActivity struct {
	SOLTransfers   []SOLTransfer   `json:"solTransfers,omitempty"`
	TokenTransfers []TokenTransfer `json:"tokenTransfers,omitempty"`
	NFTTransfers   []NFTTransfer   `json:"nftTransfers,omitempty"`
	// TotalValueAtRiskUSD is supplied by the simulation collaborator as an
	// opaque figure; nothing in this service derives it.
	TotalValueAtRiskUSD float64 `json:"totalValueAtRiskUsd"`
}

// ProgramInfo describes one invoked program.
type ProgramInfo struct {
	Address    string `json:"address"`
	Name       string `json:"name,omitempty"`
	Verified   bool   `json:"verified"`
	Reputation int    `json:"reputation"` // 0-100
}

// CPIEdge is one cross-program invocation observed in the trace.
type CPIEdge struct {
	Caller           string `json:"caller"`
	Callee           string `json:"callee"`
	InstructionIndex int    `json:"instructionIndex"`
	Suspicious       bool   `json:"suspicious"`
	Reason           string `json:"reason,omitempty"`
}

// SuspiciousCall is a CPI the simulator flagged for review.
type SuspiciousCall struct {
	Program string `json:"program"`
	Reason  string `json:"reason,omitempty"`
}

// ProgramActivity describes all program involvement in the transaction.
type ProgramActivity struct {
	Invoked         []ProgramInfo    `json:"invoked,omitempty"`
	CPIEdges        []CPIEdge        `json:"cpiEdges,omitempty"`
	SuspiciousCalls []SuspiciousCall `json:"suspiciousCalls,omitempty"`
}

// AuthorityKind identifies which authority over an account is changing.
type AuthorityKind string

const (
	AuthorityMint     AuthorityKind = "Mint"
	AuthorityFreeze   AuthorityKind = "Freeze"
	AuthorityOwner    AuthorityKind = "Owner"
	AuthorityClose    AuthorityKind = "Close"
	AuthorityUpgrade  AuthorityKind = "Upgrade"
	AuthorityDelegate AuthorityKind = "Delegate"
)

// AuthorityChange records one authority transition. Empty old/new authority
// means "none" (authority created or revoked).
type AuthorityChange struct {
	Account      string        `json:"account"`
	Kind         AuthorityKind `json:"kind"`
	OldAuthority string        `json:"oldAuthority,omitempty"`
	NewAuthority string        `json:"newAuthority,omitempty"`
	Attention    bool          `json:"attention"`
}

// Context is the immutable per-transaction snapshot supplied by the
// simulation collaborator.
type Context struct {
	Execution        ExecutionOutcome  `json:"execution"`
	Financial        FinancialActivity `json:"financial"`
	Programs         ProgramActivity   `json:"programs"`
	AuthorityChanges []AuthorityChange `json:"authorityChanges,omitempty"`
}

// ProgramInvoked reports whether the given program address appears in the
// invoked program set.
func (c *Context) ProgramInvoked(address string) bool {
	for _, p := range c.Programs.Invoked {
		if p.Address == address {
			return true
		}
	}
	return false
}
