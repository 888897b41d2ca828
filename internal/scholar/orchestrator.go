package scholar

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// OrchestratorConfig controls tier parallelism and sequential pacing.
type OrchestratorConfig struct {
	// Concurrency bounds the fast tier fan-out.
	Concurrency int
	// HeavyConcurrency bounds the heavy tier fan-out. It should stay well
	// below Concurrency since each slot holds a browser tab.
	HeavyConcurrency int
	// DelayMin and DelayMax bound the randomized pause between targets in
	// the sequential sweep.
	DelayMin time.Duration
	DelayMax time.Duration
	// Rand seeds the delay jitter. Nil seeds from the current time.
	Rand rand.Source
}

const (
	defaultConcurrency      = 5
	defaultHeavyConcurrency = 2
	defaultDelayMin         = 2 * time.Second
	defaultDelayMax         = 5 * time.Second
)

// Orchestrator resolves citation details for a publication list by walking
// the fetch tiers: a concurrent fast HTTP pass, a concurrent headless pass
// over the leftovers, and a paced sequential sweep for whatever remains.
// Parsed details merge into the publications in place.
type Orchestrator struct {
	fast     Fetcher
	heavy    Fetcher
	parser   Parser
	reporter Reporter
	logger   *zap.Logger
	cfg      OrchestratorConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// NewOrchestrator constructs an Orchestrator. heavy may be nil, in which
// case the heavy tier is skipped and the sequential sweep reuses the fast
// fetcher.
func NewOrchestrator(
	fast Fetcher,
	heavy Fetcher,
	parser Parser,
	reporter Reporter,
	cfg OrchestratorConfig,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.HeavyConcurrency <= 0 {
		cfg.HeavyConcurrency = defaultHeavyConcurrency
	}
	if cfg.DelayMin <= 0 {
		cfg.DelayMin = defaultDelayMin
	}
	if cfg.DelayMax <= 0 {
		cfg.DelayMax = defaultDelayMax
	}
	if cfg.DelayMax < cfg.DelayMin {
		cfg.DelayMax = cfg.DelayMin
	}
	src := cfg.Rand
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		fast:     fast,
		heavy:    heavy,
		parser:   parser,
		reporter: reporter,
		logger:   logger,
		cfg:      cfg,
		rng:      rand.New(src),
	}
}

// Run resolves details for every publication that carries a citation URL
// and reports how many targets succeeded and failed. Publications without
// a citation URL are left untouched and counted in neither total.
func (o *Orchestrator) Run(ctx context.Context, pubs []Publication) (successful, failed int) {
	targets := make([]Target, 0, len(pubs))
	for i := range pubs {
		if pubs[i].CitationURL != "" {
			targets = append(targets, Target{Index: i, URL: pubs[i].CitationURL})
		}
	}
	if len(targets) == 0 {
		return 0, 0
	}

	pending := o.runTier(ctx, TierFast, o.fast, o.cfg.Concurrency, pubs, targets)

	if len(pending) > 0 && o.heavy != nil {
		o.reporter.Escalation(TierHeavy, len(pending))
		o.logger.Info("escalating targets to headless tier", zap.Int("remaining", len(pending)))
		pending = o.runTier(ctx, TierHeavy, o.heavy, o.cfg.HeavyConcurrency, pubs, pending)
	}

	if len(pending) > 0 && ctx.Err() == nil {
		o.reporter.Escalation(TierSequential, len(pending))
		o.logger.Info("starting sequential sweep", zap.Int("remaining", len(pending)))
		pending = o.runSequential(ctx, pubs, pending)
	}

	failed = len(pending)
	successful = len(targets) - failed
	return successful, failed
}

// runTier fans the targets out over the bounded pool and returns the
// targets that still failed.
func (o *Orchestrator) runTier(
	ctx context.Context,
	tier Tier,
	fetcher Fetcher,
	limit int,
	pubs []Publication,
	targets []Target,
) []Target {
	results := runBounded(ctx, len(targets), limit, func(ctx context.Context, i int) FetchResult {
		return o.fetchTarget(ctx, tier, fetcher, pubs, targets[i])
	})
	var pending []Target
	for i, res := range results {
		if res.Err != nil {
			pending = append(pending, targets[i])
		}
	}
	return pending
}

// runSequential retries targets one at a time with a randomized pause
// between them. It prefers the heavy fetcher when one is configured.
func (o *Orchestrator) runSequential(ctx context.Context, pubs []Publication, targets []Target) []Target {
	fetcher := o.heavy
	if fetcher == nil {
		fetcher = o.fast
	}
	var pending []Target
	for i, t := range targets {
		if ctx.Err() != nil {
			pending = append(pending, targets[i:]...)
			return pending
		}
		if res := o.fetchTarget(ctx, TierSequential, fetcher, pubs, t); res.Err != nil {
			pending = append(pending, t)
		}
		if i == len(targets)-1 {
			break
		}
		if err := Wait(ctx, o.targetDelay()); err != nil {
			pending = append(pending, targets[i+1:]...)
			return pending
		}
	}
	return pending
}

// fetchTarget performs one fetch-then-parse on a single target and merges
// the parsed detail into its publication.
func (o *Orchestrator) fetchTarget(
	ctx context.Context,
	tier Tier,
	fetcher Fetcher,
	pubs []Publication,
	t Target,
) FetchResult {
	start := time.Now()
	page, err := fetcher.Fetch(ctx, t.URL)
	if err == nil {
		err = o.mergeDetail(pubs, t, page.Body)
	}
	o.reporter.FetchDone(tier, err, time.Since(start))
	if err != nil {
		if kind := BlockKindOf(err); kind.Blocked() {
			o.reporter.Blocked(kind, t.URL)
		}
		o.logger.Debug("target fetch failed",
			zap.String("tier", string(tier)),
			zap.String("url", t.URL),
			zap.Error(err))
		return FetchResult{Index: t.Index, Tier: tier, Err: err}
	}
	return FetchResult{Index: t.Index, Tier: tier}
}

func (o *Orchestrator) mergeDetail(pubs []Publication, t Target, body []byte) error {
	detail, ok := o.parser.ParseDetail(body)
	if !ok {
		return fmt.Errorf("parse detail %s: %w", t.URL, ErrNoResult)
	}
	pubs[t.Index].Merge(detail)
	return nil
}

func (o *Orchestrator) targetDelay() time.Duration {
	if o.cfg.DelayMax <= o.cfg.DelayMin {
		return o.cfg.DelayMin
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg.DelayMin + time.Duration(o.rng.Int63n(int64(o.cfg.DelayMax-o.cfg.DelayMin)))
}
