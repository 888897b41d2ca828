package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dmfell/scholarscrape/internal/database"
	"github.com/dmfell/scholarscrape/internal/queue"
	"github.com/dmfell/scholarscrape/internal/scholar"
)

// Config controls scheduler fan-out and result naming.
type Config struct {
	// AuthorConcurrency is the number of workers. One worker runs the
	// jobs in order with a randomized delay between them; more workers
	// share a jobs channel with no inter-job delay.
	AuthorConcurrency int
	// DelayMin and DelayMax bound the randomized pause between jobs in
	// sequential mode.
	DelayMin time.Duration
	DelayMax time.Duration
	// Label is an optional infix for result file names, so parallel
	// campaigns against the same roster do not overwrite each other.
	Label string
	// PathPrefix places result files under a directory or bucket prefix.
	PathPrefix string
	// ContentType stamps stored result objects.
	ContentType string
	// Rand seeds the inter-job jitter. Nil seeds from the current time.
	Rand rand.Source
}

const (
	defaultJobDelayMin = 2 * time.Second
	defaultJobDelayMax = 5 * time.Second
	defaultContentType = "application/json"
)

// Scheduler runs one scrape job per roster author and records every job's
// outcome. Jobs fail independently; the only whole-run stops are context
// cancellation and the per-worker breaker pause.
type Scheduler struct {
	cfg      Config
	runID    string
	factory  Factory
	blobs    BlobStore
	outcomes database.Provider
	notices  queue.Provider
	hasher   Hasher
	clock    Clock
	reporter scholar.Reporter
	logger   *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// New constructs a Scheduler. blobs, outcomes, notices, and hasher may be
// nil; the corresponding step is skipped.
func New(
	cfg Config,
	runID string,
	factory Factory,
	blobs BlobStore,
	outcomes database.Provider,
	notices queue.Provider,
	hasher Hasher,
	clk Clock,
	reporter scholar.Reporter,
	logger *zap.Logger,
) *Scheduler {
	if cfg.AuthorConcurrency <= 0 {
		cfg.AuthorConcurrency = 1
	}
	if cfg.DelayMin <= 0 {
		cfg.DelayMin = defaultJobDelayMin
	}
	if cfg.DelayMax <= 0 {
		cfg.DelayMax = defaultJobDelayMax
	}
	if cfg.DelayMax < cfg.DelayMin {
		cfg.DelayMax = cfg.DelayMin
	}
	if cfg.ContentType == "" {
		cfg.ContentType = defaultContentType
	}
	src := cfg.Rand
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	if clk == nil {
		clk = systemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cfg:      cfg,
		runID:    runID,
		factory:  factory,
		blobs:    blobs,
		outcomes: outcomes,
		notices:  notices,
		hasher:   hasher,
		clock:    clk,
		reporter: reporter,
		logger:   logger,
		rng:      rand.New(src),
	}
}

// Run scrapes every roster author and returns a success flag per user ID.
// A job that errors or yields no publications is recorded as false and the
// run continues. The returned error covers setup failures only; once
// scraping starts the run always completes (or stops at cancellation with
// the unattempted authors absent from the map).
func (s *Scheduler) Run(ctx context.Context, authors []Author) (map[string]bool, error) {
	results := make(map[string]bool, len(authors))
	if len(authors) == 0 {
		return results, nil
	}
	if s.factory == nil {
		return nil, errors.New("no scraper factory configured")
	}

	workers := s.cfg.AuthorConcurrency
	if workers > len(authors) {
		workers = len(authors)
	}

	scrapers := make([]Scraper, workers)
	for i := range scrapers {
		scraper, cleanup, err := s.factory(i)
		if err != nil {
			return nil, fmt.Errorf("build scraper for worker %d: %w", i, err)
		}
		if cleanup != nil {
			defer cleanup()
		}
		scrapers[i] = scraper
	}

	start := s.clock.Now()
	s.reporter.RunStart(fmt.Sprintf("%d authors, %d workers", len(authors), workers))
	s.logger.Info("batch run starting",
		zap.String("run_id", s.runID),
		zap.Int("authors", len(authors)),
		zap.Int("workers", workers))

	if workers == 1 {
		s.runSequential(ctx, scrapers[0], authors, results)
	} else {
		s.runParallel(ctx, scrapers, authors, results)
	}

	succeeded := 0
	for _, ok := range results {
		if ok {
			succeeded++
		}
	}
	dur := s.clock.Now().Sub(start)
	s.reporter.RunDone(dur)
	s.logger.Info("batch run finished",
		zap.String("run_id", s.runID),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", len(results)-succeeded),
		zap.Duration("dur", dur))
	return results, nil
}

// runSequential walks the roster with one scraper, pausing when its
// breaker trips and jittering the gap between jobs.
func (s *Scheduler) runSequential(ctx context.Context, scraper Scraper, authors []Author, results map[string]bool) {
	for i, author := range authors {
		if ctx.Err() != nil {
			s.logger.Warn("run canceled, skipping remaining authors",
				zap.Int("remaining", len(authors)-i))
			return
		}
		results[author.UserID] = s.runJob(ctx, scraper, author)
		if i == len(authors)-1 {
			return
		}
		s.pauseIfTripped(ctx, scraper.Breaker())
		if err := scholar.Wait(ctx, s.jobDelay()); err != nil {
			return
		}
	}
}

// runParallel feeds the roster to the workers over a channel. Each worker
// owns one scraper, so block state never crosses workers, and each pauses
// on its own breaker without holding the others up.
func (s *Scheduler) runParallel(ctx context.Context, scrapers []Scraper, authors []Author, results map[string]bool) {
	jobs := make(chan Author)
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for i, scraper := range scrapers {
		wg.Add(1)
		go func(id int, scraper Scraper) {
			defer wg.Done()
			for author := range jobs {
				ok := s.runJob(ctx, scraper, author)
				mu.Lock()
				results[author.UserID] = ok
				mu.Unlock()
				s.pauseIfTripped(ctx, scraper.Breaker())
			}
			s.logger.Debug("worker drained", zap.Int("worker", id))
		}(i, scraper)
	}

	go func() {
		defer close(jobs)
		for _, author := range authors {
			select {
			case jobs <- author:
			case <-ctx.Done():
				return
			}
		}
	}()
	wg.Wait()
}

// runJob scrapes one author and records the outcome everywhere it goes:
// blob store, outcome row, completion notice, progress events. The
// returned flag is the job's entry in the results map.
func (s *Scheduler) runJob(ctx context.Context, scraper Scraper, author Author) bool {
	reporter := s.reporter.WithAuthor(author.UserID)
	reporter.AuthorStart()
	startedAt := s.clock.Now()

	pubs, err := scraper.ScrapeAuthor(ctx, author.UserID)
	if err == nil && len(pubs) == 0 {
		err = fmt.Errorf("author %s: %w", author.UserID, scholar.ErrNoResult)
	}

	var uri, digest string
	if err == nil {
		uri, digest, err = s.persist(ctx, author, pubs)
	}

	finishedAt := s.clock.Now()
	dur := finishedAt.Sub(startedAt)

	outcome := database.Outcome{
		RunID:        s.runID,
		Author:       author.UserID,
		Succeeded:    err == nil,
		Publications: len(pubs),
		BlobURI:      uri,
		BlobHash:     digest,
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
	}
	if err != nil {
		outcome.Error = err.Error()
		reporter.AuthorError(err, dur)
		s.logger.Warn("author scrape failed",
			zap.String("author", author.UserID),
			zap.Duration("dur", dur),
			zap.Error(err))
	} else {
		reporter.AuthorDone(len(pubs), dur)
		s.logger.Info("author scrape completed",
			zap.String("author", author.UserID),
			zap.Int("publications", len(pubs)),
			zap.String("blob_uri", uri),
			zap.Duration("dur", dur))
	}

	s.recordOutcome(ctx, outcome)
	s.publishNotice(ctx, outcome)
	return err == nil
}

// persist stores the publication list as pretty-printed JSON and returns
// the blob URI plus content digest.
func (s *Scheduler) persist(ctx context.Context, author Author, pubs []scholar.Publication) (string, string, error) {
	if s.blobs == nil {
		return "", "", nil
	}
	data, err := json.MarshalIndent(pubs, "", "    ")
	if err != nil {
		return "", "", fmt.Errorf("marshal publications: %w", err)
	}
	digest := ""
	if s.hasher != nil {
		if digest, err = s.hasher.Hash(data); err != nil {
			return "", "", fmt.Errorf("hash result: %w", err)
		}
	}
	uri, err := s.blobs.PutObject(ctx, s.resultPath(author.UserID), s.cfg.ContentType, data)
	if err != nil {
		return "", "", fmt.Errorf("store result: %w", err)
	}
	return uri, digest, nil
}

// resultPath names one author's result file, with the optional label
// between the user ID and the suffix.
func (s *Scheduler) resultPath(userID string) string {
	name := fmt.Sprintf("%s_scholar_data.json", userID)
	if s.cfg.Label != "" {
		name = fmt.Sprintf("%s_%s_scholar_data.json", userID, s.cfg.Label)
	}
	prefix := strings.Trim(s.cfg.PathPrefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

func (s *Scheduler) recordOutcome(ctx context.Context, outcome database.Outcome) {
	if s.outcomes == nil {
		return
	}
	if err := s.outcomes.SaveOutcome(ctx, outcome); err != nil {
		s.logger.Warn("outcome row write failed",
			zap.String("author", outcome.Author),
			zap.Error(err))
	}
}

func (s *Scheduler) publishNotice(ctx context.Context, outcome database.Outcome) {
	if s.notices == nil {
		return
	}
	notice := queue.Notice{
		RunID:        outcome.RunID,
		Author:       outcome.Author,
		Succeeded:    outcome.Succeeded,
		Publications: outcome.Publications,
		BlobURI:      outcome.BlobURI,
	}
	if err := s.notices.Publish(ctx, notice); err != nil {
		s.logger.Warn("completion notice publish failed",
			zap.String("author", outcome.Author),
			zap.Error(err))
	}
}

// pauseIfTripped holds the worker for the breaker's pause once its
// consecutive block count crosses the threshold, then clears the count.
// Distinct from per-attempt backoff inside the fetchers.
func (s *Scheduler) pauseIfTripped(ctx context.Context, breaker *scholar.Breaker) {
	if breaker == nil || !breaker.Tripped() {
		return
	}
	pause := breaker.PauseDuration()
	s.reporter.Pause(pause)
	s.logger.Warn("breaker tripped, pausing before next job",
		zap.Int("consecutive_blocks", breaker.Count()),
		zap.String("reason", breaker.Reason().String()),
		zap.Duration("pause", pause))
	if err := scholar.Wait(ctx, pause); err != nil {
		return
	}
	breaker.Reset()
}

func (s *Scheduler) jobDelay() time.Duration {
	if s.cfg.DelayMax <= s.cfg.DelayMin {
		return s.cfg.DelayMin
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.DelayMin + time.Duration(s.rng.Int63n(int64(s.cfg.DelayMax-s.cfg.DelayMin)))
}
