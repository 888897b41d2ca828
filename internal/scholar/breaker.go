package scholar

import (
	"sync"
	"time"
)

const (
	defaultBlockRetryLimit = 3
	defaultPauseDuration   = 60 * time.Second
)

// Breaker counts consecutive blocked fetches and signals when a worker
// should pause. Every tier of one worker shares one breaker; workers never
// share breakers with each other.
type Breaker struct {
	mu        sync.Mutex
	enabled   bool
	threshold int
	pause     time.Duration
	count     int
	reason    BlockKind
}

// NewBreaker returns a breaker that trips after threshold consecutive
// blocks. A disabled breaker still counts blocks but never trips.
func NewBreaker(threshold int, pause time.Duration, enabled bool) *Breaker {
	if threshold <= 0 {
		threshold = defaultBlockRetryLimit
	}
	if pause <= 0 {
		pause = defaultPauseDuration
	}
	return &Breaker{
		enabled:   enabled,
		threshold: threshold,
		pause:     pause,
	}
}

// Record notes one blocked fetch. Kinds that are not blocks are ignored.
func (b *Breaker) Record(kind BlockKind) {
	if !kind.Blocked() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count++
	b.reason = kind
}

// Reset clears the consecutive counter after a clean fetch.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count = 0
	b.reason = BlockNone
}

// Tripped reports whether the consecutive count reached the threshold.
func (b *Breaker) Tripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled && b.count >= b.threshold
}

// Count returns the current consecutive block count.
func (b *Breaker) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Reason returns the kind of the most recently recorded block.
func (b *Breaker) Reason() BlockKind {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reason
}

// PauseDuration returns how long a worker should pause once tripped.
func (b *Breaker) PauseDuration() time.Duration {
	return b.pause
}
