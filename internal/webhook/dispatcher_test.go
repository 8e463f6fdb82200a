package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solsentry/solsentry/internal/analysis"
	"github.com/solsentry/solsentry/internal/risk"
)

func testAssessment(level risk.Level, score int, blocked bool) *risk.Assessment {
	return &risk.Assessment{
		ID:      "asmt_test",
		Wallet:  "W",
		Score:   score,
		Level:   level,
		Blocked: blocked,
		Threats: []analysis.Threat{
			{Kind: analysis.ThreatWalletDrain, Severity: analysis.SeverityCritical, BlockedByDefault: blocked},
		},
		EvaluatedAt: time.Now(),
	}
}

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond, AttemptTimeout: time.Second}
}

func TestNotify_DeliversToTierEndpoint(t *testing.T) {
	var got atomic.Pointer[Payload]
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		var p Payload
		_ = json.Unmarshal(body, &p)
		got.Store(&p)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	d := NewDispatcher(Config{
		Endpoints: Endpoints{High: ts.URL},
		Retry:     fastRetry(),
	}, nil)

	err := d.Notify(context.Background(), testAssessment(risk.LevelHigh, 60, false), "")
	require.NoError(t, err)

	p := got.Load()
	require.NotNil(t, p)
	assert.Equal(t, EventTransactionAnalyzed, p.EventType)
	assert.Equal(t, "W", p.Wallet)
	assert.Equal(t, 60, p.Score)
	assert.Equal(t, SchemaVersion, p.SchemaVersion)
	assert.NotEmpty(t, p.EventID)
}

func TestNotify_BlockedChannelWinsOverTier(t *testing.T) {
	var blockedHits, highHits atomic.Int32
	blockedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		blockedHits.Add(1)
		assert.Equal(t, string(EventTransactionBlocked), r.Header.Get("X-Solsentry-Event"))
	}))
	defer blockedSrv.Close()
	highSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		highHits.Add(1)
	}))
	defer highSrv.Close()

	d := NewDispatcher(Config{
		Endpoints: Endpoints{High: highSrv.URL, Blocked: blockedSrv.URL},
		Retry:     fastRetry(),
	}, nil)

	err := d.Notify(context.Background(), testAssessment(risk.LevelHigh, 60, true), "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), blockedHits.Load())
	assert.Equal(t, int32(0), highHits.Load())
}

func TestNotify_SuccessFallback(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer ts.Close()

	// No LOW endpoint configured; SUCCESS catches it
	d := NewDispatcher(Config{
		Endpoints: Endpoints{High: "http://127.0.0.1:1/unused", Success: ts.URL},
		Retry:     fastRetry(),
	}, nil)

	err := d.Notify(context.Background(), testAssessment(risk.LevelLow, 0, false), "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestNotify_UnconfiguredChannelIsNoOp(t *testing.T) {
	d := NewDispatcher(Config{Retry: fastRetry()}, nil)

	err := d.Notify(context.Background(), testAssessment(risk.LevelCritical, 90, true), "")
	assert.NoError(t, err)
}

func TestNotify_Filters(t *testing.T) {
	tests := []struct {
		name       string
		filters    Filters
		assessment *risk.Assessment
		delivered  bool
	}{
		{
			name:       "onlyBlocked drops allowed",
			filters:    Filters{OnlyBlocked: true},
			assessment: testAssessment(risk.LevelHigh, 60, false),
			delivered:  false,
		},
		{
			name:       "onlyBlocked passes blocked",
			filters:    Filters{OnlyBlocked: true},
			assessment: testAssessment(risk.LevelHigh, 60, true),
			delivered:  true,
		},
		{
			name:       "minRiskScore drops below floor",
			filters:    Filters{MinRiskScore: 50},
			assessment: testAssessment(risk.LevelMedium, 30, false),
			delivered:  false,
		},
		{
			name:       "minRiskScore passes at floor",
			filters:    Filters{MinRiskScore: 50},
			assessment: testAssessment(risk.LevelHigh, 50, false),
			delivered:  true,
		},
		{
			name:       "threatTypes requires a match",
			filters:    Filters{ThreatTypes: []analysis.ThreatKind{analysis.ThreatDelegateHijack}},
			assessment: testAssessment(risk.LevelHigh, 60, false),
			delivered:  false,
		},
		{
			name:       "threatTypes passes on match",
			filters:    Filters{ThreatTypes: []analysis.ThreatKind{analysis.ThreatWalletDrain}},
			assessment: testAssessment(risk.LevelHigh, 60, false),
			delivered:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
			}))
			defer ts.Close()

			cfg := Config{Retry: fastRetry(), Filters: tt.filters}
			cfg.Endpoints = Endpoints{
				Low: ts.URL, Medium: ts.URL, High: ts.URL, Critical: ts.URL, Blocked: ts.URL,
			}
			d := NewDispatcher(cfg, nil)

			err := d.Notify(context.Background(), tt.assessment, "")
			require.NoError(t, err)
			if tt.delivered {
				assert.Equal(t, int32(1), hits.Load())
			} else {
				assert.Equal(t, int32(0), hits.Load())
			}
		})
	}
}

func TestNotify_RetriesOnServerError(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	d := NewDispatcher(Config{
		Endpoints: Endpoints{High: ts.URL},
		Retry:     fastRetry(),
	}, nil)

	err := d.Notify(context.Background(), testAssessment(risk.LevelHigh, 60, false), "")
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
}

func TestNotify_FailsAfterMaxAttempts(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	d := NewDispatcher(Config{
		Endpoints: Endpoints{High: ts.URL},
		Retry:     fastRetry(),
	}, nil)

	err := d.Notify(context.Background(), testAssessment(risk.LevelHigh, 60, false), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Equal(t, int32(3), hits.Load())
}

func TestNotify_AuthHeaders(t *testing.T) {
	tests := []struct {
		name  string
		auth  AuthConfig
		check func(t *testing.T, r *http.Request)
	}{
		{
			name: "bearer",
			auth: AuthConfig{Type: AuthBearer, Token: "tok_abc"},
			check: func(t *testing.T, r *http.Request) {
				assert.Equal(t, "Bearer tok_abc", r.Header.Get("Authorization"))
			},
		},
		{
			name: "basic",
			auth: AuthConfig{Type: AuthBasic, Username: "user", Password: "pass"},
			check: func(t *testing.T, r *http.Request) {
				user, pass, ok := r.BasicAuth()
				require.True(t, ok)
				assert.Equal(t, "user", user)
				assert.Equal(t, "pass", pass)
			},
		},
		{
			name: "custom headers",
			auth: AuthConfig{Type: AuthCustom, Headers: map[string]string{"X-Api-Key": "secret"}},
			check: func(t *testing.T, r *http.Request) {
				assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
			},
		},
		{
			name: "none",
			auth: AuthConfig{Type: AuthNone},
			check: func(t *testing.T, r *http.Request) {
				assert.Empty(t, r.Header.Get("Authorization"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			done := make(chan struct{})
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				tt.check(t, r)
				close(done)
			}))
			defer ts.Close()

			d := NewDispatcher(Config{
				Endpoints: Endpoints{High: ts.URL},
				Auth:      tt.auth,
				Retry:     fastRetry(),
			}, nil)

			require.NoError(t, d.Notify(context.Background(), testAssessment(risk.LevelHigh, 60, false), ""))
			<-done
		})
	}
}

func TestNotify_RateLimited(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer ts.Close()

	d := NewDispatcher(Config{
		Endpoints: Endpoints{High: ts.URL},
		Retry:     fastRetry(),
		RateLimit: RateLimit{MaxPerMinute: 2},
	}, nil)

	a := testAssessment(risk.LevelHigh, 60, false)
	for i := 0; i < 5; i++ {
		require.NoError(t, d.Notify(context.Background(), a, ""))
	}

	// Drops past the cap are silent no-ops
	assert.Equal(t, int32(2), hits.Load())
}

func TestDispatcher_RetryDefaultsApplied(t *testing.T) {
	d := NewDispatcher(Config{}, nil)

	assert.Equal(t, DefaultMaxAttempts, d.cfg.Retry.MaxAttempts)
	assert.Equal(t, DefaultBackoff, d.cfg.Retry.Backoff)
	assert.Equal(t, DefaultAttemptTimeout, d.cfg.Retry.AttemptTimeout)
}

func TestConfig_Configured(t *testing.T) {
	assert.False(t, (&Config{}).Configured())
	assert.True(t, (&Config{Endpoints: Endpoints{Success: "https://x"}}).Configured())
	assert.True(t, (&Config{Endpoints: Endpoints{Blocked: "https://x"}}).Configured())
}
