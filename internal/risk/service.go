package risk

import (
	"context"
	"log/slog"
	"time"

	"github.com/solsentry/solsentry/internal/analysis"
	"github.com/solsentry/solsentry/internal/detect"
	"github.com/solsentry/solsentry/internal/idgen"
	"github.com/solsentry/solsentry/internal/metrics"
	"github.com/solsentry/solsentry/internal/rules"
	"github.com/solsentry/solsentry/internal/traces"
)

// defaultNotifyTimeout bounds the detached webhook dispatch, covering all
// retry attempts.
const defaultNotifyTimeout = 60 * time.Second

// Request carries one transaction into the analyzer.
type Request struct {
	Wallet    string
	Signature string
	// SecretRef is an opaque reference included (redacted) in webhook
	// payloads so consumers can correlate the notification with their key.
	SecretRef string
	Context   *analysis.Context
	Metadata  map[string]any
}

// Analyzer runs the full assessment flow: detectors, rules, aggregation,
// audit recording, realtime broadcast, and webhook notification.
type Analyzer struct {
	coordinator *detect.Coordinator
	engine      *rules.Engine
	store       Store
	notifier    Notifier
	broadcaster Broadcaster
	logger      *slog.Logger

	notifyTimeout time.Duration
}

// NewAnalyzer creates an analyzer. Store may be nil (no audit trail).
func NewAnalyzer(coordinator *detect.Coordinator, engine *rules.Engine, store Store, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		coordinator:   coordinator,
		engine:        engine,
		store:         store,
		logger:        logger,
		notifyTimeout: defaultNotifyTimeout,
	}
}

// WithNotifier attaches a webhook notifier.
func (a *Analyzer) WithNotifier(n Notifier) *Analyzer {
	a.notifier = n
	return a
}

// WithBroadcaster attaches a realtime broadcaster.
func (a *Analyzer) WithBroadcaster(b Broadcaster) *Analyzer {
	a.broadcaster = b
	return a
}

// Analyze assesses one transaction. It never returns an error: detector and
// rule failures degrade to missing threats, and downstream delivery problems
// are logged, so the caller always gets a usable assessment.
func (a *Analyzer) Analyze(ctx context.Context, req *Request) *Assessment {
	ctx, span := traces.StartSpan(ctx, "risk.analyze",
		traces.Wallet(req.Wallet), traces.Signature(req.Signature))
	defer span.End()

	actx := req.Context

	threats := a.coordinator.DetectAll(actx, req.Wallet)
	ruleThreats := a.engine.Evaluate(ctx, actx, &rules.Context{
		UserWallet: req.Wallet,
		Signature:  req.Signature,
		Metadata:   req.Metadata,
	})
	threats = append(threats, ruleThreats...)

	score := Score(threats)
	level := LevelFor(score)

	blocked := false
	reason := ""
	for _, t := range threats {
		metrics.ThreatsDetectedTotal.WithLabelValues(string(t.Kind), string(t.Severity)).Inc()
		if t.BlockedByDefault && !blocked {
			blocked = true
			reason = t.Title
		}
	}

	assessment := &Assessment{
		ID:        idgen.WithPrefix("asmt_"),
		Wallet:    req.Wallet,
		Signature: req.Signature,
		Score:     score,
		Level:     level,
		Threats:   threats,
		Blocked:   blocked,
		Reason:    reason,
		Financial: FinancialSummary{
			SOLTransfers:   len(actx.Financial.SOLTransfers),
			TokenTransfers: len(actx.Financial.TokenTransfers),
			NFTTransfers:   len(actx.Financial.NFTTransfers),
			ValueAtRiskUSD: actx.Financial.TotalValueAtRiskUSD,
		},
		EvaluatedAt: time.Now(),
	}

	metrics.AssessmentsTotal.WithLabelValues(string(level)).Inc()
	span.SetAttributes(traces.RiskScore(score), traces.RiskLevel(string(level)))

	// Persist asynchronously; losing an audit row must not lose the result.
	if a.store != nil {
		go func() {
			if err := a.store.Record(context.Background(), assessment); err != nil {
				a.logger.Warn("failed to record assessment", "id", assessment.ID, "error", err)
			}
		}()
	}

	if a.broadcaster != nil {
		a.broadcaster.BroadcastAssessment(assessment)
	}

	// Fire-and-forget: webhook failure never blocks the decision path.
	if a.notifier != nil && req.Wallet != "" {
		go func() {
			nctx, cancel := context.WithTimeout(context.Background(), a.notifyTimeout)
			defer cancel()
			if err := a.notifier.Notify(nctx, assessment, req.SecretRef); err != nil {
				a.logger.Warn("webhook notification failed",
					"assessment", assessment.ID, "wallet", req.Wallet, "error", err)
			}
		}()
	}

	return assessment
}
