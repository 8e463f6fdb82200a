package webhook

import (
	"sync"
	"time"
)

// windowLimiter enforces fixed-window per-endpoint caps. Counters are keyed
// by (endpoint, bucket); a bucket is the current calendar minute or hour, so
// limits reset on bucket rollover rather than sliding.
type windowLimiter struct {
	mu     sync.Mutex
	minute map[string]int // endpoint → count in current minute bucket
	hour   map[string]int // endpoint → count in current hour bucket

	minuteBucket int64
	hourBucket   int64

	now func() time.Time // injectable for tests
}

func newWindowLimiter() *windowLimiter {
	return &windowLimiter{
		minute: make(map[string]int),
		hour:   make(map[string]int),
		now:    time.Now,
	}
}

// allow checks both caps for the endpoint and, if neither is exhausted,
// counts the request against both windows.
func (l *windowLimiter) allow(endpoint string, limit RateLimit) bool {
	if limit.MaxPerMinute <= 0 && limit.MaxPerHour <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	minuteBucket := now.Unix() / 60
	hourBucket := now.Unix() / 3600

	// Bucket rollover: old counts are irrelevant, drop them wholesale.
	if minuteBucket != l.minuteBucket {
		l.minuteBucket = minuteBucket
		l.minute = make(map[string]int)
	}
	if hourBucket != l.hourBucket {
		l.hourBucket = hourBucket
		l.hour = make(map[string]int)
	}

	if limit.MaxPerMinute > 0 && l.minute[endpoint] >= limit.MaxPerMinute {
		return false
	}
	if limit.MaxPerHour > 0 && l.hour[endpoint] >= limit.MaxPerHour {
		return false
	}

	l.minute[endpoint]++
	l.hour[endpoint]++
	return true
}
