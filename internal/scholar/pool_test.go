package scholar

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestRunBoundedRunsEveryIndex executes all targets exactly once.
func TestRunBoundedRunsEveryIndex(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	results := runBounded(context.Background(), 10, 3, func(_ context.Context, i int) FetchResult {
		calls.Add(1)
		return FetchResult{Index: i, Tier: TierFast}
	})

	require.Len(t, results, 10)
	require.Equal(t, int64(10), calls.Load())
	for i, res := range results {
		require.Equal(t, i, res.Index)
		require.NoError(t, res.Err)
	}
}

// TestRunBoundedRespectsLimit tracks the high-water mark of concurrent calls.
func TestRunBoundedRespectsLimit(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int64
	runBounded(context.Background(), 12, 4, func(_ context.Context, i int) FetchResult {
		cur := inFlight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return FetchResult{Index: i}
	})

	require.LessOrEqual(t, peak.Load(), int64(4))
	require.Greater(t, peak.Load(), int64(1), "work should actually overlap")
}

// TestRunBoundedWallClock confirms targets overlap instead of serializing.
func TestRunBoundedWallClock(t *testing.T) {
	t.Parallel()

	const (
		n     = 6
		limit = 3
		unit  = 60 * time.Millisecond
	)
	start := time.Now()
	runBounded(context.Background(), n, limit, func(_ context.Context, i int) FetchResult {
		time.Sleep(unit)
		return FetchResult{Index: i}
	})
	elapsed := time.Since(start)

	// Two waves of three, not six serial units.
	require.GreaterOrEqual(t, elapsed, 2*unit)
	require.Less(t, elapsed, time.Duration(n)*unit)
}

// TestRunBoundedNoFailFast keeps running siblings after failures.
func TestRunBoundedNoFailFast(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	results := runBounded(context.Background(), 5, 2, func(_ context.Context, i int) FetchResult {
		if i%2 == 0 {
			return FetchResult{Index: i, Err: boom}
		}
		return FetchResult{Index: i}
	})

	var failed, ok int
	for _, res := range results {
		if res.Err != nil {
			failed++
		} else {
			ok++
		}
	}
	require.Equal(t, 3, failed)
	require.Equal(t, 2, ok)
}

// TestRunBoundedCanceledContext marks unstarted targets with the context error.
func TestRunBoundedCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := runBounded(ctx, 4, 1, func(ctx context.Context, i int) FetchResult {
		return FetchResult{Index: i, Err: ctx.Err()}
	})

	require.Len(t, results, 4)
	for _, res := range results {
		require.Error(t, res.Err)
	}
}

// TestRunBoundedZeroTargets returns nil without spawning goroutines.
func TestRunBoundedZeroTargets(t *testing.T) {
	t.Parallel()

	require.Nil(t, runBounded(context.Background(), 0, 3, func(_ context.Context, i int) FetchResult {
		t.Fatal("should not run")
		return FetchResult{}
	}))
}
