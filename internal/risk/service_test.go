package risk

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solsentry/solsentry/internal/analysis"
	"github.com/solsentry/solsentry/internal/detect"
	"github.com/solsentry/solsentry/internal/rules"
)

// recordingNotifier captures Notify calls.
type recordingNotifier struct {
	mu        sync.Mutex
	calls     int
	last      *Assessment
	secretRef string
	done      chan struct{}
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{done: make(chan struct{}, 10)}
}

func (n *recordingNotifier) Notify(_ context.Context, a *Assessment, secretRef string) error {
	n.mu.Lock()
	n.calls++
	n.last = a
	n.secretRef = secretRef
	n.mu.Unlock()
	n.done <- struct{}{}
	return nil
}

// recordingBroadcaster captures broadcast assessments.
type recordingBroadcaster struct {
	mu   sync.Mutex
	last *Assessment
}

func (b *recordingBroadcaster) BroadcastAssessment(a *Assessment) {
	b.mu.Lock()
	b.last = a
	b.mu.Unlock()
}

func newTestAnalyzer(store Store) *Analyzer {
	coordinator := detect.NewCoordinator(nil, detect.DefaultDetectors()...)
	engine := rules.NewEngine(nil)
	return NewAnalyzer(coordinator, engine, store, nil)
}

func drainContext() *analysis.Context {
	return &analysis.Context{
		Execution: analysis.ExecutionOutcome{Success: true},
		Financial: analysis.FinancialActivity{
			SOLTransfers: []analysis.SOLTransfer{
				{From: "W", To: "Attacker", Lamports: 11 * analysis.LamportsPerSOL},
			},
		},
	}
}

func cleanContext() *analysis.Context {
	return &analysis.Context{
		Execution: analysis.ExecutionOutcome{Success: true},
	}
}

func TestAnalyze_CleanTransaction(t *testing.T) {
	a := newTestAnalyzer(nil)

	assessment := a.Analyze(context.Background(), &Request{
		Wallet:  "W",
		Context: cleanContext(),
	})

	require.NotNil(t, assessment)
	assert.NotEmpty(t, assessment.ID)
	assert.Equal(t, "W", assessment.Wallet)
	assert.Equal(t, 0, assessment.Score)
	assert.Equal(t, LevelLow, assessment.Level)
	assert.False(t, assessment.Blocked)
	assert.Empty(t, assessment.Reason)
	assert.False(t, assessment.EvaluatedAt.IsZero())
}

func TestAnalyze_DrainBlocks(t *testing.T) {
	a := newTestAnalyzer(nil)

	assessment := a.Analyze(context.Background(), &Request{
		Wallet:  "W",
		Context: drainContext(),
	})

	require.NotEmpty(t, assessment.Threats)
	assert.True(t, assessment.Blocked)
	assert.Equal(t, assessment.Threats[0].Title, assessment.Reason,
		"reason comes from the first blocking threat")
	assert.GreaterOrEqual(t, assessment.Score, 30)
}

func TestAnalyze_RuleThreatsAppended(t *testing.T) {
	coordinator := detect.NewCoordinator(nil, detect.DefaultDetectors()...)
	engine := rules.NewEngine(nil, rules.Rule{
		Name:     "always",
		Severity: analysis.SeverityMedium,
		Condition: func(_ context.Context, _ *analysis.Context, _ *rules.Context) (bool, error) {
			return true, nil
		},
		Message: rules.StaticMessage("custom rule hit"),
	})
	a := NewAnalyzer(coordinator, engine, nil, nil)

	assessment := a.Analyze(context.Background(), &Request{
		Wallet:  "W",
		Context: cleanContext(),
	})

	require.Len(t, assessment.Threats, 1)
	assert.Equal(t, analysis.ThreatCustomRuleViolation, assessment.Threats[0].Kind)
	assert.Equal(t, 10, assessment.Score)
}

func TestAnalyze_FinancialSummary(t *testing.T) {
	a := newTestAnalyzer(nil)

	actx := cleanContext()
	actx.Financial.SOLTransfers = []analysis.SOLTransfer{{Lamports: 1}}
	actx.Financial.TokenTransfers = make([]analysis.TokenTransfer, 2)
	actx.Financial.NFTTransfers = make([]analysis.NFTTransfer, 3)
	actx.Financial.TotalValueAtRiskUSD = 42.5

	assessment := a.Analyze(context.Background(), &Request{Wallet: "W", Context: actx})

	assert.Equal(t, 1, assessment.Financial.SOLTransfers)
	assert.Equal(t, 2, assessment.Financial.TokenTransfers)
	assert.Equal(t, 3, assessment.Financial.NFTTransfers)
	assert.Equal(t, 42.5, assessment.Financial.ValueAtRiskUSD)
}

func TestAnalyze_RecordsToStore(t *testing.T) {
	store := NewMemoryStore()
	a := newTestAnalyzer(store)

	a.Analyze(context.Background(), &Request{Wallet: "W", Context: cleanContext()})

	// Recording is asynchronous
	require.Eventually(t, func() bool {
		list, err := store.ListByWallet(context.Background(), "W", 10)
		return err == nil && len(list) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestAnalyze_NotifiesWebhook(t *testing.T) {
	notifier := newRecordingNotifier()
	a := newTestAnalyzer(nil).WithNotifier(notifier)

	assessment := a.Analyze(context.Background(), &Request{
		Wallet:    "W",
		SecretRef: "sk_live_abc",
		Context:   drainContext(),
	})

	select {
	case <-notifier.done:
	case <-time.After(time.Second):
		t.Fatal("notifier was not called")
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Equal(t, 1, notifier.calls)
	assert.Equal(t, assessment.ID, notifier.last.ID)
	assert.Equal(t, "sk_live_abc", notifier.secretRef)
}

func TestAnalyze_Broadcasts(t *testing.T) {
	broadcaster := &recordingBroadcaster{}
	a := newTestAnalyzer(nil).WithBroadcaster(broadcaster)

	assessment := a.Analyze(context.Background(), &Request{Wallet: "W", Context: cleanContext()})

	// Broadcast happens synchronously on the decision path
	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()
	require.NotNil(t, broadcaster.last)
	assert.Equal(t, assessment.ID, broadcaster.last.ID)
}

func TestMemoryStore_ListByWallet(t *testing.T) {
	store := NewMemoryStore()

	for i := 0; i < 5; i++ {
		err := store.Record(context.Background(), &Assessment{
			ID:     string(rune('a' + i)),
			Wallet: "W",
			Score:  i * 10,
		})
		require.NoError(t, err)
	}

	// Most recent first, limit respected
	list, err := store.ListByWallet(context.Background(), "W", 3)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "e", list[0].ID)
	assert.Equal(t, "d", list[1].ID)
	assert.Equal(t, "c", list[2].ID)

	// Zero limit returns everything
	list, err = store.ListByWallet(context.Background(), "W", 0)
	require.NoError(t, err)
	assert.Len(t, list, 5)

	// Unknown wallet is empty, not an error
	list, err = store.ListByWallet(context.Background(), "ghost", 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemoryStore_CopiesOnRecord(t *testing.T) {
	store := NewMemoryStore()

	a := &Assessment{ID: "x", Wallet: "W", Threats: []analysis.Threat{{Kind: analysis.ThreatWalletDrain}}}
	require.NoError(t, store.Record(context.Background(), a))

	// Mutating the original must not leak into the store
	a.Score = 99
	a.Threats[0].Kind = analysis.ThreatAccountClosure

	list, err := store.ListByWallet(context.Background(), "W", 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 0, list[0].Score)
	assert.Equal(t, analysis.ThreatWalletDrain, list[0].Threats[0].Kind)
}
