// Package rules evaluates user-defined predicates against an analysis
// context and turns violations into threats.
//
// A Rule pairs a condition with a severity, a message, and an optional
// program scope. Rules are identified by name only: adding a rule under an
// existing name replaces it in place. Conditions may block (perform I/O);
// the engine evaluates them one at a time and isolates failures so a broken
// rule can never take down the batch.
package rules

import (
	"context"
	"errors"

	"github.com/solsentry/solsentry/internal/analysis"
)

// ErrRuleNotFound is returned by stores when a named rule does not exist.
var ErrRuleNotFound = errors.New("rules: not found")

// Condition decides whether a rule fires for a context. It may block on
// external lookups; ctx bounds that work. A non-nil error counts as "did not
// fire" and is logged by the engine.
type Condition func(ctx context.Context, actx *analysis.Context, rctx *Context) (bool, error)

// Context carries per-evaluation request data into rule conditions.
type Context struct {
	UserWallet string
	Signature  string
	Metadata   map[string]any
}

// Message is the text attached to a violation: either a fixed string or a
// function of the analysis context.
type Message struct {
	static  string
	dynamic func(*analysis.Context) string
}

// StaticMessage returns a fixed-text message.
func StaticMessage(text string) Message {
	return Message{static: text}
}

// DynamicMessage returns a message computed from the context at violation
// time.
func DynamicMessage(fn func(*analysis.Context) string) Message {
	return Message{dynamic: fn}
}

// Resolve produces the final message text for a context.
func (m Message) Resolve(actx *analysis.Context) string {
	if m.dynamic != nil {
		return m.dynamic(actx)
	}
	return m.static
}

// IsZero reports whether the message carries neither text nor a function.
func (m Message) IsZero() bool {
	return m.static == "" && m.dynamic == nil
}

// Rule is a named predicate over an analysis context.
type Rule struct {
	Name        string
	Description string
	Severity    analysis.Severity
	Condition   Condition
	Message     Message
	// Blocking marks produced threats as blocked by default.
	Blocking bool
	// ApplicableTo restricts the rule to contexts that invoked at least one
	// of the listed program addresses. Empty means always applicable.
	ApplicableTo []string
	Metadata     map[string]any
}

// appliesTo reports whether the rule should run for the context.
func (r *Rule) appliesTo(actx *analysis.Context) bool {
	if len(r.ApplicableTo) == 0 {
		return true
	}
	for _, program := range r.ApplicableTo {
		if actx.ProgramInvoked(program) {
			return true
		}
	}
	return false
}
