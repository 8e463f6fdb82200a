package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/solsentry/solsentry/internal/analysis"
)

// Engine owns a named rule set. Mutations serialize behind a mutex;
// evaluation takes a snapshot so concurrent Evaluate calls never block each
// other or observe a half-applied Import.
type Engine struct {
	mu     sync.RWMutex
	order  []string
	byName map[string]*Rule
	logger *slog.Logger
}

// NewEngine creates an engine seeded with the given rules, kept in the order
// given.
func NewEngine(logger *slog.Logger, initial ...Rule) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		byName: make(map[string]*Rule),
		logger: logger,
	}
	for _, r := range initial {
		e.Add(r)
	}
	return e
}

// Add upserts a rule by name. Replacing an existing rule keeps its position
// in the evaluation order; new names append.
func (e *Engine) Add(r Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.byName[r.Name]; !exists {
		e.order = append(e.order, r.Name)
	}
	rule := r
	e.byName[r.Name] = &rule
}

// Remove deletes a rule by name. Returns false if the name is unknown.
func (e *Engine) Remove(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.byName[name]; !exists {
		return false
	}
	delete(e.byName, name)
	for i, n := range e.order {
		if n == name {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	return true
}

// Patch is a partial rule update; nil fields are left unchanged.
type Patch struct {
	Description  *string
	Severity     *analysis.Severity
	Condition    Condition
	Message      *Message
	Blocking     *bool
	ApplicableTo *[]string
	Metadata     *map[string]any
}

// Update applies a partial update to a named rule. Returns false (a no-op)
// if the name is unknown.
func (e *Engine) Update(name string, patch Patch) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	rule, exists := e.byName[name]
	if !exists {
		return false
	}
	if patch.Description != nil {
		rule.Description = *patch.Description
	}
	if patch.Severity != nil {
		rule.Severity = *patch.Severity
	}
	if patch.Condition != nil {
		rule.Condition = patch.Condition
	}
	if patch.Message != nil {
		rule.Message = *patch.Message
	}
	if patch.Blocking != nil {
		rule.Blocking = *patch.Blocking
	}
	if patch.ApplicableTo != nil {
		rule.ApplicableTo = *patch.ApplicableTo
	}
	if patch.Metadata != nil {
		rule.Metadata = *patch.Metadata
	}
	return true
}

// Export returns the rule set in evaluation order.
func (e *Engine) Export() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotLocked()
}

// Import atomically replaces the entire rule set with the given rules, in
// the given order. Later duplicates of a name win, matching Add semantics.
func (e *Engine) Import(set []Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.order = e.order[:0]
	e.byName = make(map[string]*Rule, len(set))
	for _, r := range set {
		if _, exists := e.byName[r.Name]; !exists {
			e.order = append(e.order, r.Name)
		}
		rule := r
		e.byName[r.Name] = &rule
	}
}

// Len returns the number of registered rules.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.order)
}

func (e *Engine) snapshotLocked() []Rule {
	out := make([]Rule, 0, len(e.order))
	for _, name := range e.order {
		out = append(out, *e.byName[name])
	}
	return out
}

// Evaluate runs every applicable rule against the context, in registration
// order, and returns one CUSTOM_RULE_VIOLATION threat per firing rule. A
// rule that errors or panics contributes nothing and never aborts the batch.
func (e *Engine) Evaluate(ctx context.Context, actx *analysis.Context, rctx *Context) []analysis.Threat {
	e.mu.RLock()
	snapshot := e.snapshotLocked()
	e.mu.RUnlock()

	var threats []analysis.Threat
	for i := range snapshot {
		rule := &snapshot[i]
		if !rule.appliesTo(actx) {
			continue
		}
		fired, err := e.evalIsolated(ctx, rule, actx, rctx)
		if err != nil {
			e.logger.Warn("rule evaluation failed", "rule", rule.Name, "error", err)
			continue
		}
		if !fired {
			continue
		}
		threats = append(threats, violation(rule, actx, rctx))
	}
	return threats
}

func (e *Engine) evalIsolated(ctx context.Context, rule *Rule, actx *analysis.Context, rctx *Context) (fired bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			fired = false
			err = fmt.Errorf("rule %q panicked: %v", rule.Name, r)
		}
	}()
	if rule.Condition == nil {
		return false, nil
	}
	return rule.Condition(ctx, actx, rctx)
}

func violation(rule *Rule, actx *analysis.Context, rctx *Context) analysis.Threat {
	evidence := map[string]any{"rule": rule.Name}
	for k, v := range rule.Metadata {
		evidence[k] = v
	}

	var affected []string
	if rctx != nil && rctx.UserWallet != "" {
		affected = []string{rctx.UserWallet}
	}

	return analysis.Threat{
		Kind:             analysis.ThreatCustomRuleViolation,
		Severity:         rule.Severity,
		Title:            fmt.Sprintf("Custom rule violated: %s", rule.Name),
		Description:      rule.Message.Resolve(actx),
		AffectedAccounts: affected,
		Evidence:         evidence,
		Recommendation:   rule.Description,
		BlockedByDefault: rule.Blocking,
	}
}
