// Package detect runs independent threat detectors over an analysis context.
//
// Each detector is a pure function of (context, subject wallet). The
// coordinator fans a context across every registered detector, survives
// detector panics, and deduplicates the merged results by (kind,
// affected-account set) with first occurrence winning, so registration order
// decides which detector's description and evidence surface.
package detect

import (
	"log/slog"

	"github.com/solsentry/solsentry/internal/analysis"
)

// Detector produces zero or more threats from a context. Implementations
// must be stateless and safe for concurrent use.
type Detector interface {
	Name() string
	Detect(actx *analysis.Context, subject string) []analysis.Threat
}

// Coordinator owns the registered detectors.
type Coordinator struct {
	detectors []Detector
	logger    *slog.Logger
}

// NewCoordinator creates a coordinator over the given detectors.
func NewCoordinator(logger *slog.Logger, detectors ...Detector) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{detectors: detectors, logger: logger}
}

// DefaultDetectors returns the built-in detector set in its canonical order.
func DefaultDetectors() []Detector {
	return []Detector{
		NewDrainDetector(),
		NewPhishingDetector(),
		NewDelegateDetector(),
		NewProgramDetector(),
	}
}

// DetectAll runs every detector against the context and returns the merged,
// deduplicated threat list. A panicking detector contributes nothing; it
// never aborts the sweep.
func (c *Coordinator) DetectAll(actx *analysis.Context, subject string) []analysis.Threat {
	var merged []analysis.Threat
	for _, d := range c.detectors {
		merged = append(merged, c.runIsolated(d, actx, subject)...)
	}

	seen := make(map[string]struct{}, len(merged))
	out := make([]analysis.Threat, 0, len(merged))
	for _, t := range merged {
		key := t.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}

func (c *Coordinator) runIsolated(d Detector, actx *analysis.Context, subject string) (threats []analysis.Threat) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("detector panicked", "detector", d.Name(), "panic", r)
			threats = nil
		}
	}()
	return d.Detect(actx, subject)
}
