package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fixedClock returns a controllable now func.
func fixedClock(start time.Time) (*time.Time, func() time.Time) {
	t := start
	return &t, func() time.Time { return t }
}

func TestWindowLimiter_Unlimited(t *testing.T) {
	l := newWindowLimiter()
	for i := 0; i < 100; i++ {
		assert.True(t, l.allow("ep", RateLimit{}))
	}
}

func TestWindowLimiter_MinuteCap(t *testing.T) {
	l := newWindowLimiter()
	clock, now := fixedClock(time.Date(2026, 1, 1, 12, 0, 30, 0, time.UTC))
	l.now = now

	limit := RateLimit{MaxPerMinute: 3}
	for i := 0; i < 3; i++ {
		assert.True(t, l.allow("ep", limit), "request %d within cap", i)
	}
	assert.False(t, l.allow("ep", limit), "request past cap is dropped")

	// Next calendar minute: fresh window
	*clock = clock.Add(time.Minute)
	assert.True(t, l.allow("ep", limit))
}

func TestWindowLimiter_FixedWindowNotSliding(t *testing.T) {
	l := newWindowLimiter()
	clock, now := fixedClock(time.Date(2026, 1, 1, 12, 0, 59, 0, time.UTC))
	l.now = now

	limit := RateLimit{MaxPerMinute: 1}
	assert.True(t, l.allow("ep", limit))

	// One second later, but a new calendar minute: the window resets even
	// though less than a minute has passed.
	*clock = clock.Add(time.Second)
	assert.True(t, l.allow("ep", limit))
}

func TestWindowLimiter_HourCap(t *testing.T) {
	l := newWindowLimiter()
	clock, now := fixedClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	l.now = now

	limit := RateLimit{MaxPerMinute: 2, MaxPerHour: 3}

	// Minute 1: two deliveries
	assert.True(t, l.allow("ep", limit))
	assert.True(t, l.allow("ep", limit))
	assert.False(t, l.allow("ep", limit), "minute cap")

	// Minute 2: minute window resets but the hour cap catches the second
	*clock = clock.Add(time.Minute)
	assert.True(t, l.allow("ep", limit))
	assert.False(t, l.allow("ep", limit), "hour cap")

	// Next hour: everything resets
	*clock = clock.Add(time.Hour)
	assert.True(t, l.allow("ep", limit))
}

func TestWindowLimiter_PerEndpoint(t *testing.T) {
	l := newWindowLimiter()
	_, now := fixedClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	l.now = now

	limit := RateLimit{MaxPerMinute: 1}
	assert.True(t, l.allow("ep-a", limit))
	assert.False(t, l.allow("ep-a", limit))
	assert.True(t, l.allow("ep-b", limit), "caps are per endpoint")
}

func TestWindowLimiter_DeniedRequestNotCounted(t *testing.T) {
	l := newWindowLimiter()
	clock, now := fixedClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	l.now = now

	// Minute cap of 1, hour cap of 2. The denied minute requests must not
	// consume hour budget.
	limit := RateLimit{MaxPerMinute: 1, MaxPerHour: 2}
	assert.True(t, l.allow("ep", limit))
	assert.False(t, l.allow("ep", limit))
	assert.False(t, l.allow("ep", limit))

	*clock = clock.Add(time.Minute)
	assert.True(t, l.allow("ep", limit), "hour budget should have one left")
}
