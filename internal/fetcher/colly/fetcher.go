// Package collyfetcher implements the fast HTTP tier using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/dmfell/scholarscrape/internal/scholar"
)

const (
	defaultAttemptBudget = 3
	defaultTimeout       = 10 * time.Second

	acceptLanguage = "en-US,en;q=0.9"
)

// Config controls the attempt loop and collector behavior.
type Config struct {
	AttemptBudget int
	Timeout       time.Duration
}

// Fetcher implements scholar.Fetcher with a bounded retry loop. Every
// attempt runs on a fresh collector so the user agent and proxy rotated
// in for one attempt cannot leak into a concurrent fetch. Transport
// errors, timeouts, and non-200 statuses are retried after a jittered
// backoff; a 200 that classifies as a block page is recorded on the
// breaker and also retried, under a rotated identity.
type Fetcher struct {
	cfg      Config
	identity *scholar.Identity
	backoff  *scholar.Backoff
	breaker  *scholar.Breaker
	direct   http.RoundTripper
	logger   *zap.Logger
}

// New builds a Fetcher. Nil collaborators fall back to defaults: a
// built-in identity pool, default backoff, and a disabled breaker.
func New(cfg Config, identity *scholar.Identity, backoff *scholar.Backoff, breaker *scholar.Breaker, logger *zap.Logger) *Fetcher {
	if cfg.AttemptBudget <= 0 {
		cfg.AttemptBudget = defaultAttemptBudget
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if identity == nil {
		identity, _ = scholar.NewIdentity(nil, nil, nil)
	}
	if backoff == nil {
		backoff = scholar.NewBackoff(0, 0, nil)
	}
	if breaker == nil {
		breaker = scholar.NewBreaker(0, 0, false)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg:      cfg,
		identity: identity,
		backoff:  backoff,
		breaker:  breaker,
		direct:   newHTTPTransport(nil),
		logger:   logger,
	}
}

// Fetch retrieves rawURL, retrying through the attempt budget. It
// returns the first clean 200 page, otherwise the last failure wrapped
// in scholar.ErrExhausted.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (scholar.Page, error) {
	var lastErr error
	for attempt := 0; attempt < f.cfg.AttemptBudget; attempt++ {
		if attempt > 0 {
			if err := scholar.Wait(ctx, f.backoff.Delay(attempt-1)); err != nil {
				return scholar.Page{}, fmt.Errorf("backoff wait: %w", err)
			}
		}

		page, err := f.attempt(ctx, rawURL, attempt)
		if err != nil {
			if ctx.Err() != nil {
				return scholar.Page{}, err
			}
			lastErr = err
			f.logger.Warn("fetch attempt failed",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}

		lastErr = f.judge(page)
		if lastErr == nil {
			f.breaker.Reset()
			return page, nil
		}
		f.logger.Warn("fetch attempt rejected",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt),
			zap.Int("status", page.StatusCode),
			zap.Error(lastErr))
	}
	return scholar.Page{}, fmt.Errorf("%w after %d attempts: %w", scholar.ErrExhausted, f.cfg.AttemptBudget, lastErr)
}

// judge decides whether a completed response is usable. Block pages and
// rate limiting feed the breaker before being rejected.
func (f *Fetcher) judge(page scholar.Page) error {
	switch {
	case page.StatusCode == http.StatusTooManyRequests:
		f.breaker.Record(scholar.BlockRateLimited)
		return &scholar.BlockedError{Kind: scholar.BlockRateLimited}
	case page.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status %d", page.StatusCode)
	}
	if kind := scholar.Classify(page.Body); kind.Blocked() {
		f.breaker.Record(kind)
		return &scholar.BlockedError{Kind: kind}
	}
	return nil
}

// attempt performs one collector visit with the identity rotated in for
// this attempt number.
func (f *Fetcher) attempt(ctx context.Context, rawURL string, attempt int) (scholar.Page, error) {
	var (
		page     scholar.Page
		fetchErr error
	)
	start := time.Now()
	collector, err := f.buildCollector(attempt, start, &page, &fetchErr)
	if err != nil {
		return scholar.Page{}, err
	}
	if err := f.runCollector(ctx, collector, rawURL, &fetchErr); err != nil {
		return scholar.Page{}, err
	}
	return page, nil
}

func (f *Fetcher) buildCollector(attempt int, start time.Time, page *scholar.Page, fetchErr *error) (*colly.Collector, error) {
	collector := colly.NewCollector(
		colly.UserAgent(f.identity.UserAgent()),
		colly.IgnoreRobotsTxt(),
		colly.ParseHTTPErrorResponse(),
	)
	collector.SetRequestTimeout(f.cfg.Timeout)

	transport, err := f.transportFor(attempt)
	if err != nil {
		return nil, err
	}
	collector.WithTransport(transport)

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept-Language", acceptLanguage)
	})
	collector.OnResponse(func(r *colly.Response) {
		*page = scholar.Page{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
	return collector, nil
}

// transportFor returns the shared direct transport for attempt 0 and a
// proxied transport when the identity pool hands one out.
func (f *Fetcher) transportFor(attempt int) (http.RoundTripper, error) {
	proxy, ok := f.identity.Proxy(attempt)
	if !ok {
		return f.direct, nil
	}
	u, err := url.Parse(proxy)
	if err != nil {
		return nil, fmt.Errorf("parse proxy %q: %w", proxy, err)
	}
	return newHTTPTransport(u), nil
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, rawURL string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit %s: %w", rawURL, err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("response failed: %w", *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport(proxy *url.URL) *http.Transport {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
	if proxy != nil {
		t.Proxy = http.ProxyURL(proxy)
	}
	return t
}
