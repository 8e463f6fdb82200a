package rules

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solsentry/solsentry/internal/analysis"
)

func alwaysFires(_ context.Context, _ *analysis.Context, _ *Context) (bool, error) {
	return true, nil
}

func neverFires(_ context.Context, _ *analysis.Context, _ *Context) (bool, error) {
	return false, nil
}

func namedRule(name string, cond Condition) Rule {
	return Rule{
		Name:      name,
		Severity:  analysis.SeverityMedium,
		Condition: cond,
		Message:   StaticMessage(name + " fired"),
	}
}

func TestEngine_AddAndEvaluate(t *testing.T) {
	e := NewEngine(slog.Default(), namedRule("r1", alwaysFires))

	threats := e.Evaluate(context.Background(), &analysis.Context{}, &Context{UserWallet: "W"})
	require.Len(t, threats, 1)
	assert.Equal(t, analysis.ThreatCustomRuleViolation, threats[0].Kind)
	assert.Equal(t, analysis.SeverityMedium, threats[0].Severity)
	assert.Equal(t, "r1 fired", threats[0].Description)
	assert.Equal(t, []string{"W"}, threats[0].AffectedAccounts)
	assert.Equal(t, "r1", threats[0].Evidence["rule"])
}

func TestEngine_UpsertKeepsPosition(t *testing.T) {
	e := NewEngine(slog.Default(),
		namedRule("first", alwaysFires),
		namedRule("second", alwaysFires),
		namedRule("third", alwaysFires),
	)

	// Replacing "second" must not move it to the end
	replacement := namedRule("second", alwaysFires)
	replacement.Severity = analysis.SeverityCritical
	e.Add(replacement)

	exported := e.Export()
	require.Len(t, exported, 3)
	assert.Equal(t, "first", exported[0].Name)
	assert.Equal(t, "second", exported[1].Name)
	assert.Equal(t, analysis.SeverityCritical, exported[1].Severity)
	assert.Equal(t, "third", exported[2].Name)
}

func TestEngine_Remove(t *testing.T) {
	e := NewEngine(slog.Default(), namedRule("r1", alwaysFires))

	assert.True(t, e.Remove("r1"))
	assert.False(t, e.Remove("r1"), "second remove should report not found")
	assert.Equal(t, 0, e.Len())

	threats := e.Evaluate(context.Background(), &analysis.Context{}, nil)
	assert.Empty(t, threats)
}

func TestEngine_Update(t *testing.T) {
	e := NewEngine(slog.Default(), namedRule("r1", neverFires))

	sev := analysis.SeverityHigh
	blocking := true
	ok := e.Update("r1", Patch{
		Severity:  &sev,
		Condition: alwaysFires,
		Blocking:  &blocking,
	})
	require.True(t, ok)

	threats := e.Evaluate(context.Background(), &analysis.Context{}, nil)
	require.Len(t, threats, 1)
	assert.Equal(t, analysis.SeverityHigh, threats[0].Severity)
	assert.True(t, threats[0].BlockedByDefault)

	// Untouched fields survive the patch
	exported := e.Export()
	assert.Equal(t, "r1 fired", exported[0].Message.Resolve(nil))
}

func TestEngine_Update_UnknownName(t *testing.T) {
	e := NewEngine(slog.Default())
	assert.False(t, e.Update("ghost", Patch{}))
}

func TestEngine_Import_ReplacesAtomically(t *testing.T) {
	e := NewEngine(slog.Default(), namedRule("old1", alwaysFires), namedRule("old2", alwaysFires))

	e.Import([]Rule{
		namedRule("new1", alwaysFires),
		namedRule("new2", neverFires),
	})

	exported := e.Export()
	require.Len(t, exported, 2)
	assert.Equal(t, "new1", exported[0].Name)
	assert.Equal(t, "new2", exported[1].Name)
}

func TestEngine_Import_LaterDuplicateWins(t *testing.T) {
	e := NewEngine(slog.Default())

	dupA := namedRule("dup", alwaysFires)
	dupA.Severity = analysis.SeverityLow
	dupB := namedRule("dup", alwaysFires)
	dupB.Severity = analysis.SeverityCritical

	e.Import([]Rule{dupA, dupB})

	exported := e.Export()
	require.Len(t, exported, 1)
	assert.Equal(t, analysis.SeverityCritical, exported[0].Severity)
}

func TestEngine_EvaluationOrder(t *testing.T) {
	e := NewEngine(slog.Default(),
		namedRule("a", alwaysFires),
		namedRule("b", alwaysFires),
	)

	threats := e.Evaluate(context.Background(), &analysis.Context{}, nil)
	require.Len(t, threats, 2)
	assert.Equal(t, "a", threats[0].Evidence["rule"])
	assert.Equal(t, "b", threats[1].Evidence["rule"])
}

func TestEngine_ErrorCountsAsNotFired(t *testing.T) {
	failing := namedRule("failing", func(_ context.Context, _ *analysis.Context, _ *Context) (bool, error) {
		return true, errors.New("lookup failed")
	})
	e := NewEngine(slog.Default(), failing, namedRule("ok", alwaysFires))

	threats := e.Evaluate(context.Background(), &analysis.Context{}, nil)
	require.Len(t, threats, 1)
	assert.Equal(t, "ok", threats[0].Evidence["rule"])
}

func TestEngine_PanicIsolation(t *testing.T) {
	panicky := namedRule("panicky", func(_ context.Context, _ *analysis.Context, _ *Context) (bool, error) {
		panic("condition blew up")
	})
	e := NewEngine(slog.Default(), panicky, namedRule("ok", alwaysFires))

	threats := e.Evaluate(context.Background(), &analysis.Context{}, nil)
	require.Len(t, threats, 1)
	assert.Equal(t, "ok", threats[0].Evidence["rule"])
}

func TestEngine_NilConditionNeverFires(t *testing.T) {
	e := NewEngine(slog.Default(), Rule{Name: "no-cond", Severity: analysis.SeverityLow})

	threats := e.Evaluate(context.Background(), &analysis.Context{}, nil)
	assert.Empty(t, threats)
}

func TestEngine_ProgramScope(t *testing.T) {
	scoped := namedRule("scoped", alwaysFires)
	scoped.ApplicableTo = []string{"TargetProg"}
	e := NewEngine(slog.Default(), scoped)

	// Context without the program: rule does not run
	threats := e.Evaluate(context.Background(), &analysis.Context{}, nil)
	assert.Empty(t, threats)

	// Context invoking the program: rule runs
	actx := &analysis.Context{
		Programs: analysis.ProgramActivity{
			Invoked: []analysis.ProgramInfo{{Address: "TargetProg"}},
		},
	}
	threats = e.Evaluate(context.Background(), actx, nil)
	assert.Len(t, threats, 1)
}

func TestEngine_DynamicMessage(t *testing.T) {
	r := namedRule("dyn", alwaysFires)
	r.Message = DynamicMessage(func(actx *analysis.Context) string {
		if actx.Execution.Success {
			return "succeeded"
		}
		return "failed"
	})
	e := NewEngine(slog.Default(), r)

	threats := e.Evaluate(context.Background(), &analysis.Context{
		Execution: analysis.ExecutionOutcome{Success: true},
	}, nil)
	require.Len(t, threats, 1)
	assert.Equal(t, "succeeded", threats[0].Description)
}

func TestEngine_ConcurrentEvaluateAndMutate(t *testing.T) {
	e := NewEngine(slog.Default(), namedRule("base", alwaysFires))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				e.Evaluate(context.Background(), &analysis.Context{}, nil)
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				e.Add(namedRule("churn", alwaysFires))
				e.Remove("churn")
			}
		}()
	}
	wg.Wait()
}
