package accounting

import (
	"context"
	"sync"

	"github.com/rclone/ftpfetch/fs"
	"golang.org/x/time/rate"
)

// DefaultRateStep is the amount a rate is changed by StepUp and
// StepDown when no step is configured.
const DefaultRateStep = fs.SizeSuffix(1024)

// TokenBucket paces a transfer to a byte rate.
//
// The bucket holds one second's worth of bytes so data moves in
// bursts of at most the rate, each followed by a wait for the
// remainder of that second.  A nil *TokenBucket or one with a limit
// of 0 doesn't limit.
type TokenBucket struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	limit   fs.SizeSuffix
	step    fs.SizeSuffix
}

// NewTokenBucket makes a TokenBucket for limit bytes/s.  step is the
// increment used by StepUp and StepDown.
func NewTokenBucket(limit, step fs.SizeSuffix) *TokenBucket {
	if step <= 0 {
		step = DefaultRateStep
	}
	tb := &TokenBucket{step: step}
	tb.setLimit(limit)
	return tb
}

// make a new token bucket with the bandwidth given
//
// The bucket starts full so the first second's bytes go straight
// away.
func newLimiter(limit fs.SizeSuffix) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(limit), int(limit))
}

// setLimit must be called with the lock held or before tb is shared
func (tb *TokenBucket) setLimit(limit fs.SizeSuffix) {
	if limit <= 0 {
		tb.limit = 0
		tb.limiter = nil
		return
	}
	tb.limit = limit
	tb.limiter = newLimiter(limit)
}

// SetLimit changes the limit, 0 to stop limiting
func (tb *TokenBucket) SetLimit(limit fs.SizeSuffix) {
	if tb == nil {
		return
	}
	tb.mu.Lock()
	tb.setLimit(limit)
	tb.mu.Unlock()
}

// Limit returns the current limit in bytes/s, 0 for unlimited
func (tb *TokenBucket) Limit() fs.SizeSuffix {
	if tb == nil {
		return 0
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.limit
}

// Step returns the step increment
func (tb *TokenBucket) Step() fs.SizeSuffix {
	if tb == nil {
		return 0
	}
	return tb.step
}

// StepUp raises an active limit by the step.  An unlimited bucket
// stays unlimited.
func (tb *TokenBucket) StepUp() {
	if tb == nil {
		return
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if tb.limit == 0 {
		return
	}
	tb.setLimit(tb.limit + tb.step)
	fs.Logf(nil, "Rate limit increased to %v", tb.limit.ByteRateUnit())
}

// StepDown lowers an active limit by the step as long as the result
// stays positive.
func (tb *TokenBucket) StepDown() {
	if tb == nil {
		return
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if tb.limit <= tb.step {
		return
	}
	tb.setLimit(tb.limit - tb.step)
	fs.Logf(nil, "Rate limit decreased to %v", tb.limit.ByteRateUnit())
}

// ChunkSize returns the largest number of bytes which should be
// moved before calling WaitN, or def if unlimited.
func (tb *TokenBucket) ChunkSize(def int) int {
	limit := tb.Limit()
	if limit > 0 && int64(limit) < int64(def) {
		return int(limit)
	}
	return def
}

// WaitN sleeps for the correct amount of time for the passage of n
// bytes according to the current limit.  n must be no larger than
// ChunkSize.
func (tb *TokenBucket) WaitN(ctx context.Context, n int) error {
	if tb == nil || n <= 0 {
		return nil
	}
	tb.mu.Lock()
	limiter := tb.limiter
	tb.mu.Unlock()
	if limiter == nil {
		return nil
	}
	if n > limiter.Burst() {
		n = limiter.Burst()
	}
	return limiter.WaitN(ctx, n)
}
