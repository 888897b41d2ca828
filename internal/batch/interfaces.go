package batch

import (
	"context"
	"time"

	"github.com/dmfell/scholarscrape/internal/scholar"
)

// Scraper resolves one author profile into publication records. Each
// scheduler worker owns exactly one Scraper.
type Scraper interface {
	ScrapeAuthor(ctx context.Context, userID string) ([]scholar.Publication, error)
	Breaker() *scholar.Breaker
}

// Factory builds an isolated Scraper for one scheduler worker. Workers
// never share scrapers, so a browser session or breaker tripping in one
// worker cannot leak into another. The returned cleanup releases worker
// resources such as a browser process; it may be nil.
type Factory func(worker int) (Scraper, func(), error)

// BlobStore writes result artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Hasher computes digests for result integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
