package scholar

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

const (
	defaultBackoffBase = 2 * time.Second
	defaultBackoffMax  = 30 * time.Second

	jitterLow  = 0.8
	jitterHigh = 1.25
)

// Backoff computes jittered exponential delays between fetch attempts.
// Construct with NewBackoff; the zero value panics on use.
type Backoff struct {
	base time.Duration
	max  time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewBackoff builds a schedule from base delay and cap. A nil source seeds
// from the current time; tests inject a fixed source for determinism.
func NewBackoff(base, max time.Duration, src rand.Source) *Backoff {
	if base <= 0 {
		base = defaultBackoffBase
	}
	if max <= 0 {
		max = defaultBackoffMax
	}
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Backoff{base: base, max: max, rng: rand.New(src)}
}

// Delay returns the wait before retrying after the given zero-based
// attempt. The exponential delay is scaled by a factor drawn uniformly
// from [0.8, 1.25) and the product is capped at the configured maximum.
func (b *Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(b.base) * math.Pow(2, float64(attempt))
	b.mu.Lock()
	factor := jitterLow + b.rng.Float64()*(jitterHigh-jitterLow)
	b.mu.Unlock()
	d *= factor
	if d > float64(b.max) {
		d = float64(b.max)
	}
	return time.Duration(d)
}

// Wait blocks for d or until ctx is canceled, whichever comes first.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
