package scholar

import "context"

// Fetcher retrieves a URL and returns its final page. Implementations own
// their retry loop; a returned error means the attempt budget is spent.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// Browser is the minimal rendering session the profile loader needs.
// Implementations wrap one persistent browser tab.
type Browser interface {
	Navigate(ctx context.Context, rawURL string) error
	WaitReady(ctx context.Context, selector string) error
	Click(ctx context.Context, selector string) error
	Enabled(ctx context.Context, selector string) (bool, error)
	Content(ctx context.Context) (string, error)
	Close() error
}

// SessionSource opens rendering sessions on demand. Available lets callers
// fall back to the fast path instead of failing when no browser can run.
type SessionSource interface {
	Available() bool
	NewSession(ctx context.Context) (Browser, error)
}

// Parser turns raw profile and citation HTML into structured records.
// ParseDetail additionally reports whether anything usable was extracted.
type Parser interface {
	ParseProfile(body []byte) ([]Publication, error)
	ParseDetail(body []byte) (Detail, bool)
}
