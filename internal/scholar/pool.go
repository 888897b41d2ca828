package scholar

import (
	"context"
	"sync"
)

// runBounded executes fn for each index in [0, n) on at most limit
// concurrent goroutines. Each index runs exactly once, a failure never
// cancels its siblings, and every outcome lands in a write-once per-index
// slot so no result ordering is imposed on callers.
func runBounded(ctx context.Context, n, limit int, fn func(ctx context.Context, i int) FetchResult) []FetchResult {
	if n <= 0 {
		return nil
	}
	if limit <= 0 {
		limit = 1
	}
	results := make([]FetchResult, n)
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] = FetchResult{Index: i, Err: ctx.Err()}
				return
			}
			defer func() { <-sem }()
			results[i] = fn(ctx, i)
		}(i)
	}
	wg.Wait()
	return results
}
