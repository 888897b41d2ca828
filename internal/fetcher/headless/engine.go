// Package headless drives real Chrome through chromedp for the pages
// the plain HTTP tier cannot crack. It supplies both one-shot rendered
// fetches and persistent tab sessions for the profile pagination loop.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dmfell/scholarscrape/internal/scholar"
)

const (
	defaultNavTimeout = 15 * time.Second
	settleDelay       = 500 * time.Millisecond
)

// stealthScript hides the webdriver flag before any page script runs.
const stealthScript = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`

// Config controls one engine instance.
type Config struct {
	MaxParallel int
	NavTimeout  time.Duration
}

// Engine owns a headless Chrome and hands out fetches and sessions on
// it. Each worker gets its own engine and breaker; the rate limiter is
// shared across engines so parallel workers observe one process-wide
// request rate.
type Engine struct {
	cfg      Config
	limiter  chan struct{}
	qps      *rate.Limiter
	breaker  *scholar.Breaker
	identity *scholar.Identity
	logger   *zap.Logger

	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// New builds an engine. The browser process starts lazily on the first
// fetch or session. MaxParallel 0 means unbounded; a nil limiter skips
// pacing and nil breaker/identity fall back to inert defaults.
func New(cfg Config, qps *rate.Limiter, breaker *scholar.Breaker, identity *scholar.Identity, logger *zap.Logger) (*Engine, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = defaultNavTimeout
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}
	if breaker == nil {
		breaker = scholar.NewBreaker(0, 0, false)
	}
	if identity == nil {
		identity, _ = scholar.NewIdentity(nil, nil, nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("use-automation-extension", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	return &Engine{
		cfg:           cfg,
		limiter:       limiter,
		qps:           qps,
		breaker:       breaker,
		identity:      identity,
		logger:        logger,
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Close tears down the browser and its allocator.
func (e *Engine) Close() {
	e.browserCancel()
	e.allocCancel()
}

// Fetch renders rawURL in a fresh tab and returns the final DOM as the
// page body. One attempt only: whether a failure escalates is the
// caller's decision.
func (e *Engine) Fetch(ctx context.Context, rawURL string) (scholar.Page, error) {
	if err := e.pace(ctx); err != nil {
		return scholar.Page{}, err
	}
	if err := e.acquire(ctx); err != nil {
		return scholar.Page{}, err
	}
	defer e.release()

	tabCtx, tabCancel := chromedp.NewContext(e.browserCtx)
	defer tabCancel()
	tabCtx, cancel := context.WithTimeout(tabCtx, e.cfg.NavTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	meta := newDocumentMeta()
	chromedp.ListenTarget(tabCtx, meta.captureEvent)

	start := time.Now()
	var html string
	actions := []chromedp.Action{
		e.prepareTab(),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(settleDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		return scholar.Page{}, fmt.Errorf("render %s: %w", rawURL, err)
	}

	pg := scholar.Page{
		URL:        meta.urlOr(rawURL),
		StatusCode: meta.statusOr(http.StatusOK),
		Body:       []byte(html),
		Duration:   time.Since(start),
	}
	if err := e.judge(pg); err != nil {
		return scholar.Page{}, err
	}
	e.breaker.Reset()
	return pg, nil
}

// judge decides whether a rendered page is usable. Block pages and rate
// limiting feed the breaker before being rejected.
func (e *Engine) judge(pg scholar.Page) error {
	switch {
	case pg.StatusCode == http.StatusTooManyRequests:
		e.breaker.Record(scholar.BlockRateLimited)
		return &scholar.BlockedError{Kind: scholar.BlockRateLimited}
	case pg.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status %d", pg.StatusCode)
	}
	if kind := scholar.Classify(pg.Body); kind.Blocked() {
		e.breaker.Record(kind)
		return &scholar.BlockedError{Kind: kind}
	}
	return nil
}

// prepareTab enables network events, rotates a user agent in, and
// installs the stealth script before any navigation.
func (e *Engine) prepareTab() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if err := emulation.SetUserAgentOverride(e.identity.UserAgent()).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		if _, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx); err != nil {
			return fmt.Errorf("install stealth script: %w", err)
		}
		return nil
	})
}

// pace blocks on the shared rate limiter when one is configured.
func (e *Engine) pace(ctx context.Context) error {
	if e.qps == nil {
		return nil
	}
	if err := e.qps.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

func (e *Engine) acquire(ctx context.Context) error {
	if e.limiter == nil {
		return nil
	}
	select {
	case e.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("browser slot wait canceled: %w", ctx.Err())
	}
}

func (e *Engine) release() {
	if e.limiter == nil {
		return
	}
	select {
	case <-e.limiter:
	default:
	}
}

// documentMeta captures the main document response out of the CDP event
// stream. Subresource responses are ignored.
type documentMeta struct {
	mu     sync.RWMutex
	status int
	url    string
}

func newDocumentMeta() *documentMeta {
	return &documentMeta{}
}

func (m *documentMeta) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	m.mu.Lock()
	m.status = int(resp.Response.Status)
	m.url = resp.Response.URL
	m.mu.Unlock()
}

// statusOr returns the captured document status, or fallback when no
// document response was observed.
func (m *documentMeta) statusOr(fallback int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.status == 0 {
		return fallback
	}
	return m.status
}

func (m *documentMeta) urlOr(fallback string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.url == "" {
		return fallback
	}
	return m.url
}
