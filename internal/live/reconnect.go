package live

import (
	"time"

	"golang.org/x/time/rate"
)

// ReconnectPolicy decides whether, and after how long, a closed connection is
// reopened. attempt starts at 1 for the first reconnect after a drop and resets
// once a connection reaches Open.
type ReconnectPolicy interface {
	Next(attempt int) (time.Duration, bool)
}

// NoReconnect leaves a dropped connection closed.
type NoReconnect struct{}

// Next never allows a reconnect.
func (NoReconnect) Next(int) (time.Duration, bool) {
	return 0, false
}

// BackoffPolicy reconnects with exponential backoff between Min and Max, at
// most MaxAttempts times in a row. A token bucket refilling once per Max
// bounds reconnects across flapping connections whose attempt counter keeps
// resetting.
type BackoffPolicy struct {
	Min         time.Duration
	Max         time.Duration
	MaxAttempts int

	limiter *rate.Limiter
}

// NewBackoffPolicy returns a policy with defaults applied.
func NewBackoffPolicy(min, max time.Duration, maxAttempts int) *BackoffPolicy {
	if min <= 0 {
		min = 500 * time.Millisecond
	}
	if max < min {
		max = min
	}
	burst := maxAttempts
	if burst <= 0 {
		burst = 5
	}
	return &BackoffPolicy{
		Min:         min,
		Max:         max,
		MaxAttempts: maxAttempts,
		limiter:     rate.NewLimiter(rate.Every(max), burst),
	}
}

// Next returns the delay before reconnect attempt n.
func (p *BackoffPolicy) Next(attempt int) (time.Duration, bool) {
	if attempt < 1 {
		attempt = 1
	}
	if p.MaxAttempts > 0 && attempt > p.MaxAttempts {
		return 0, false
	}
	delay := p.Min
	for i := 1; i < attempt && delay < p.Max; i++ {
		delay *= 2
	}
	if delay > p.Max {
		delay = p.Max
	}
	if p.limiter != nil {
		if wait := p.limiter.Reserve().Delay(); wait > delay {
			delay = wait
		}
	}
	return delay, true
}
