package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/solsentry/solsentry/internal/analysis"
)

// Spec is the declarative, serializable form of a rule. Specs are what the
// HTTP API and the store trade in; Compile turns one into a runnable Rule.
// Rules registered programmatically (arbitrary Go conditions) have no spec
// and live only in memory.
type Spec struct {
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Severity     analysis.Severity `json:"severity"`
	Condition    ConditionSpec     `json:"condition"`
	Message      string            `json:"message,omitempty"`
	Blocking     bool              `json:"blocking"`
	ApplicableTo []string          `json:"applicableTo,omitempty"`
	Metadata     map[string]any    `json:"metadata,omitempty"`
}

// ConditionSpec names a built-in condition type with its parameters.
type ConditionSpec struct {
	Type   string          `json:"type"`
	Params json.RawMessage `json:"params,omitempty"`
}

// SOLOutflowParams configures the sol_outflow_above condition.
type SOLOutflowParams struct {
	Lamports uint64 `json:"lamports"`
}

// TokenTransferCountParams configures the token_transfers_above condition.
type TokenTransferCountParams struct {
	Count int `json:"count"`
}

// LogMatchParams configures the log_matches condition.
type LogMatchParams struct {
	Pattern string `json:"pattern"`
}

// ProgramInvokedParams configures the program_invoked condition.
type ProgramInvokedParams struct {
	Address string `json:"address"`
}

// ValueAtRiskParams configures the value_at_risk_above condition.
type ValueAtRiskParams struct {
	USD float64 `json:"usd"`
}

// ComputeUnitsParams configures the compute_units_above condition.
type ComputeUnitsParams struct {
	Units uint64 `json:"units"`
}

// Validate checks the spec's fields and condition parameters.
func (s *Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if !analysis.ValidSeverity(s.Severity) {
		return fmt.Errorf("rule %q: unknown severity %q", s.Name, s.Severity)
	}
	switch s.Condition.Type {
	case "sol_outflow_above":
		var p SOLOutflowParams
		if err := json.Unmarshal(s.Condition.Params, &p); err != nil {
			return fmt.Errorf("rule %q sol_outflow_above: invalid params: %w", s.Name, err)
		}
	case "token_transfers_above":
		var p TokenTransferCountParams
		if err := json.Unmarshal(s.Condition.Params, &p); err != nil {
			return fmt.Errorf("rule %q token_transfers_above: invalid params: %w", s.Name, err)
		}
		if p.Count < 0 {
			return fmt.Errorf("rule %q token_transfers_above: count must not be negative", s.Name)
		}
	case "log_matches":
		var p LogMatchParams
		if err := json.Unmarshal(s.Condition.Params, &p); err != nil {
			return fmt.Errorf("rule %q log_matches: invalid params: %w", s.Name, err)
		}
		if _, err := regexp.Compile(p.Pattern); err != nil {
			return fmt.Errorf("rule %q log_matches: invalid pattern: %w", s.Name, err)
		}
	case "program_invoked":
		var p ProgramInvokedParams
		if err := json.Unmarshal(s.Condition.Params, &p); err != nil {
			return fmt.Errorf("rule %q program_invoked: invalid params: %w", s.Name, err)
		}
		if p.Address == "" {
			return fmt.Errorf("rule %q program_invoked: address is required", s.Name)
		}
	case "value_at_risk_above":
		var p ValueAtRiskParams
		if err := json.Unmarshal(s.Condition.Params, &p); err != nil {
			return fmt.Errorf("rule %q value_at_risk_above: invalid params: %w", s.Name, err)
		}
	case "compute_units_above":
		var p ComputeUnitsParams
		if err := json.Unmarshal(s.Condition.Params, &p); err != nil {
			return fmt.Errorf("rule %q compute_units_above: invalid params: %w", s.Name, err)
		}
	case "execution_failed":
		// no params
	default:
		return fmt.Errorf("rule %q: unknown condition type %q", s.Name, s.Condition.Type)
	}
	return nil
}

// Compile turns a validated spec into a runnable Rule.
func (s *Spec) Compile() (Rule, error) {
	if err := s.Validate(); err != nil {
		return Rule{}, err
	}

	cond, err := buildCondition(s.Condition)
	if err != nil {
		return Rule{}, err
	}

	msg := s.Message
	if msg == "" {
		msg = fmt.Sprintf("Rule %s matched", s.Name)
	}

	return Rule{
		Name:         s.Name,
		Description:  s.Description,
		Severity:     s.Severity,
		Condition:    cond,
		Message:      StaticMessage(msg),
		Blocking:     s.Blocking,
		ApplicableTo: s.ApplicableTo,
		Metadata:     s.Metadata,
	}, nil
}

func buildCondition(cs ConditionSpec) (Condition, error) {
	switch cs.Type {
	case "sol_outflow_above":
		var p SOLOutflowParams
		if err := json.Unmarshal(cs.Params, &p); err != nil {
			return nil, err
		}
		return func(_ context.Context, actx *analysis.Context, _ *Context) (bool, error) {
			var total uint64
			for _, tr := range actx.Financial.SOLTransfers {
				total += tr.Lamports
			}
			return total > p.Lamports, nil
		}, nil

	case "token_transfers_above":
		var p TokenTransferCountParams
		if err := json.Unmarshal(cs.Params, &p); err != nil {
			return nil, err
		}
		return func(_ context.Context, actx *analysis.Context, _ *Context) (bool, error) {
			return len(actx.Financial.TokenTransfers) > p.Count, nil
		}, nil

	case "log_matches":
		var p LogMatchParams
		if err := json.Unmarshal(cs.Params, &p); err != nil {
			return nil, err
		}
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, err
		}
		return func(_ context.Context, actx *analysis.Context, _ *Context) (bool, error) {
			for _, line := range actx.Execution.Logs {
				if re.MatchString(line) {
					return true, nil
				}
			}
			return false, nil
		}, nil

	case "program_invoked":
		var p ProgramInvokedParams
		if err := json.Unmarshal(cs.Params, &p); err != nil {
			return nil, err
		}
		return func(_ context.Context, actx *analysis.Context, _ *Context) (bool, error) {
			return actx.ProgramInvoked(p.Address), nil
		}, nil

	case "value_at_risk_above":
		var p ValueAtRiskParams
		if err := json.Unmarshal(cs.Params, &p); err != nil {
			return nil, err
		}
		return func(_ context.Context, actx *analysis.Context, _ *Context) (bool, error) {
			return actx.Financial.TotalValueAtRiskUSD > p.USD, nil
		}, nil

	case "compute_units_above":
		var p ComputeUnitsParams
		if err := json.Unmarshal(cs.Params, &p); err != nil {
			return nil, err
		}
		return func(_ context.Context, actx *analysis.Context, _ *Context) (bool, error) {
			return actx.Execution.ComputeUnits > p.Units, nil
		}, nil

	case "execution_failed":
		return func(_ context.Context, actx *analysis.Context, _ *Context) (bool, error) {
			return !actx.Execution.Success, nil
		}, nil
	}
	return nil, fmt.Errorf("unknown condition type %q", cs.Type)
}
