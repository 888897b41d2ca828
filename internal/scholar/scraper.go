package scholar

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Profile page selectors.
const (
	readySelector    = "body"
	loadMoreSelector = "#gsc_bpf_more"
)

const defaultLoadMoreSettle = 2 * time.Second

// Scraper resolves one author profile end to end: load the full listing,
// parse it, then run the tiered orchestrator over every citation page.
// One Scraper serves one batch worker and is not safe for concurrent use
// across authors.
type Scraper struct {
	sessions SessionSource
	fast     Fetcher
	parser   Parser
	orch     *Orchestrator
	breaker  *Breaker
	reporter Reporter
	logger   *zap.Logger
	settle   time.Duration
}

// NewScraper constructs a Scraper. sessions may be nil or unavailable, in
// which case profile listings load through the fast fetcher and pagination
// beyond the first page is skipped.
func NewScraper(
	sessions SessionSource,
	fast Fetcher,
	parser Parser,
	orch *Orchestrator,
	breaker *Breaker,
	reporter Reporter,
	settle time.Duration,
	logger *zap.Logger,
) *Scraper {
	if settle <= 0 {
		settle = defaultLoadMoreSettle
	}
	if breaker == nil {
		breaker = NewBreaker(0, 0, false)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		sessions: sessions,
		fast:     fast,
		parser:   parser,
		orch:     orch,
		breaker:  breaker,
		reporter: reporter,
		logger:   logger,
		settle:   settle,
	}
}

// Breaker exposes the worker's breaker so a scheduler can pause between
// jobs once it trips.
func (s *Scraper) Breaker() *Breaker {
	return s.breaker
}

// ScrapeAuthor fetches the complete publication list for a Scholar user
// ID, resolves the details of every publication, and returns the merged
// records. An existing profile with no publications returns an empty,
// non-nil slice.
func (s *Scraper) ScrapeAuthor(ctx context.Context, userID string) ([]Publication, error) {
	profileURL := ProfileURL(userID)
	reporter := s.reporter.WithAuthor(userID)
	s.logger.Info("scraping author profile", zap.String("user_id", userID))

	body, err := s.loadProfile(ctx, reporter, profileURL)
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", userID, err)
	}

	pubs, err := s.parser.ParseProfile(body)
	if err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", userID, err)
	}
	reporter.Profile(len(pubs))
	if len(pubs) == 0 {
		s.logger.Warn("no publications found on profile", zap.String("user_id", userID))
		return []Publication{}, nil
	}
	s.logger.Info("profile listing parsed",
		zap.String("user_id", userID),
		zap.Int("publications", len(pubs)))

	successful, failed := s.orch.Run(ctx, pubs)
	s.logger.Info("detail fetching completed",
		zap.String("user_id", userID),
		zap.Int("successful", successful),
		zap.Int("failed", failed))
	return pubs, nil
}

// loadProfile renders the listing with every page expanded when a browser
// session is available, and otherwise falls back to a single fast fetch of
// the first page.
func (s *Scraper) loadProfile(ctx context.Context, reporter Reporter, profileURL string) ([]byte, error) {
	if s.sessions != nil && s.sessions.Available() {
		body, err := s.loadProfileSession(ctx, reporter, profileURL)
		if err == nil || IsBlocked(err) {
			return body, err
		}
		s.logger.Warn("browser profile load failed, using fast path", zap.Error(err))
	}
	if s.fast == nil {
		return nil, ErrNoResult
	}
	page, err := s.fast.Fetch(ctx, profileURL)
	if err != nil {
		return nil, err
	}
	return page.Body, nil
}

func (s *Scraper) loadProfileSession(ctx context.Context, reporter Reporter, profileURL string) ([]byte, error) {
	session, err := s.sessions.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			s.logger.Warn("session close failed", zap.Error(cerr))
		}
	}()

	if err := session.Navigate(ctx, profileURL); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	if err := session.WaitReady(ctx, readySelector); err != nil {
		return nil, fmt.Errorf("wait for page: %w", err)
	}
	if err := s.expandAllPages(ctx, session); err != nil {
		return nil, err
	}

	content, err := session.Content(ctx)
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	body := []byte(content)
	if kind := Classify(body); kind.Blocked() {
		s.breaker.Record(kind)
		reporter.Blocked(kind, profileURL)
		return nil, &BlockedError{Kind: kind}
	}
	s.breaker.Reset()
	return body, nil
}

// expandAllPages clicks the show-more button until it reports disabled, so
// the listing holds every publication before parsing starts.
func (s *Scraper) expandAllPages(ctx context.Context, session Browser) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		enabled, err := session.Enabled(ctx, loadMoreSelector)
		if err != nil || !enabled {
			return nil
		}
		if err := session.Click(ctx, loadMoreSelector); err != nil {
			s.logger.Debug("show more click failed, assuming listing complete", zap.Error(err))
			return nil
		}
		if err := Wait(ctx, s.settle); err != nil {
			return err
		}
	}
}
