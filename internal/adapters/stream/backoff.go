package stream

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff is a bounded exponential reconnect policy.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	// MaxAttempts caps consecutive failed attempts; 0 means unlimited.
	MaxAttempts int
	// Jitter spreads each delay by ±Jitter of its value (0.0-1.0).
	Jitter float64
}

// DefaultBackoff returns half a second doubling up to thirty seconds with
// 20% jitter and no attempt cap.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial:    500 * time.Millisecond,
		Max:        30 * time.Second,
		Multiplier: 2,
		Jitter:     0.2,
	}
}

// Delay returns the wait before reconnect attempt n (1-based). hint, when
// positive, replaces Initial as the base delay. Unset Initial or Max fall back
// to DefaultBackoff values, so the delay is always positive and bounded.
func (b Backoff) Delay(n int, hint time.Duration) time.Duration {
	def := DefaultBackoff()
	base := b.Initial
	if hint > 0 {
		base = hint
	}
	if base <= 0 {
		base = def.Initial
	}
	limit := b.Max
	if limit <= 0 {
		limit = def.Max
	}
	if n < 1 {
		n = 1
	}
	mult := b.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(base) * math.Pow(mult, float64(n-1))
	if math.IsInf(d, 0) || math.IsNaN(d) || d > float64(limit) {
		d = float64(limit)
	}
	return applyJitter(time.Duration(d), b.Jitter)
}

// Exhausted reports whether attempt n exceeds MaxAttempts.
func (b Backoff) Exhausted(n int) bool {
	return b.MaxAttempts > 0 && n > b.MaxAttempts
}

// applyJitter returns delay ± delay*factor*random(-1, 1).
func applyJitter(delay time.Duration, factor float64) time.Duration {
	if factor <= 0 {
		return delay
	}
	jitter := float64(delay) * factor * (rand.Float64()*2 - 1)
	return time.Duration(float64(delay) + jitter)
}
