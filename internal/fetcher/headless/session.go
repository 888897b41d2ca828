package headless

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/dmfell/scholarscrape/internal/scholar"
)

// probeTimeout bounds element state checks, which never need to wait
// for navigation.
const probeTimeout = 5 * time.Second

// enabledProbe checks element presence and enablement in one round
// trip. A missing element reads as disabled so pagination loops can
// terminate on the last page instead of erroring.
const enabledProbe = `(() => { const el = document.querySelector(%q); return !!el && !el.disabled; })()`

// Available reports that real browser sessions can be opened.
func (e *Engine) Available() bool { return true }

// NewSession opens a persistent tab prepared with the engine's identity
// and stealth setup. The session holds one parallel slot until closed.
func (e *Engine) NewSession(ctx context.Context) (scholar.Browser, error) {
	if err := e.acquire(ctx); err != nil {
		return nil, err
	}
	tabCtx, tabCancel := chromedp.NewContext(e.browserCtx)
	s := &Session{engine: e, ctx: tabCtx, cancel: tabCancel}

	openCtx, cancel := s.bound(ctx, e.cfg.NavTimeout)
	defer cancel()
	if err := chromedp.Run(openCtx, e.prepareTab()); err != nil {
		s.Close()
		return nil, fmt.Errorf("open session tab: %w", err)
	}
	return s, nil
}

// Session is one persistent Chrome tab implementing scholar.Browser.
// Methods are not safe for concurrent use; one session serves one
// profile load at a time.
type Session struct {
	engine    *Engine
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// Navigate loads rawURL in the tab, honoring the shared rate limiter.
func (s *Session) Navigate(ctx context.Context, rawURL string) error {
	if err := s.engine.pace(ctx); err != nil {
		return err
	}
	runCtx, cancel := s.bound(ctx, s.engine.cfg.NavTimeout)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.Navigate(rawURL)); err != nil {
		return fmt.Errorf("navigate %s: %w", rawURL, err)
	}
	return nil
}

// WaitReady blocks until the selector is present in the DOM.
func (s *Session) WaitReady(ctx context.Context, selector string) error {
	runCtx, cancel := s.bound(ctx, s.engine.cfg.NavTimeout)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	return nil
}

// Click clicks the first visible element matching the selector.
func (s *Session) Click(ctx context.Context, selector string) error {
	runCtx, cancel := s.bound(ctx, s.engine.cfg.NavTimeout)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// Enabled reports whether the selector matches an enabled element.
func (s *Session) Enabled(ctx context.Context, selector string) (bool, error) {
	runCtx, cancel := s.bound(ctx, probeTimeout)
	defer cancel()
	var enabled bool
	if err := chromedp.Run(runCtx, chromedp.Evaluate(fmt.Sprintf(enabledProbe, selector), &enabled)); err != nil {
		return false, fmt.Errorf("probe %s: %w", selector, err)
	}
	return enabled, nil
}

// Content returns the tab's current outer HTML.
func (s *Session) Content(ctx context.Context) (string, error) {
	runCtx, cancel := s.bound(ctx, s.engine.cfg.NavTimeout)
	defer cancel()
	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read page content: %w", err)
	}
	return html, nil
}

// Close releases the tab and its parallel slot. Safe to call twice.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.engine.release()
	})
	return nil
}

// bound derives a run context on the tab that also honors the caller's
// cancellation and the given timeout.
func (s *Session) bound(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(s.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(s.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}
