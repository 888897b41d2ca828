// Package main wires together the scholarscrape batch binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dmfell/scholarscrape/internal/api"
	"github.com/dmfell/scholarscrape/internal/batch"
	"github.com/dmfell/scholarscrape/internal/clock/system"
	"github.com/dmfell/scholarscrape/internal/config"
	"github.com/dmfell/scholarscrape/internal/database"
	collyfetcher "github.com/dmfell/scholarscrape/internal/fetcher/colly"
	"github.com/dmfell/scholarscrape/internal/fetcher/headless"
	"github.com/dmfell/scholarscrape/internal/hash/sha256"
	"github.com/dmfell/scholarscrape/internal/id/uuid"
	"github.com/dmfell/scholarscrape/internal/logging"
	"github.com/dmfell/scholarscrape/internal/parse"
	"github.com/dmfell/scholarscrape/internal/progress"
	"github.com/dmfell/scholarscrape/internal/progress/sinks"
	"github.com/dmfell/scholarscrape/internal/queue"
	"github.com/dmfell/scholarscrape/internal/scholar"
	gcsstore "github.com/dmfell/scholarscrape/internal/storage/gcs"
	"github.com/dmfell/scholarscrape/internal/storage/local"
	memorystorage "github.com/dmfell/scholarscrape/internal/storage/memory"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	authorsPath := flag.String("authors", "", "Path to the author roster CSV")
	singleUser := flag.String("user", "", "Scrape one Scholar user ID instead of a roster")
	label := flag.String("label", "", "Result file label, overrides scraper.label")
	flag.Parse()

	if *authorsPath == "" && *singleUser == "" {
		fmt.Fprintln(os.Stderr, "either -authors or -user is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	if *label != "" {
		cfg.Scraper.Label = *label
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	fatal := func(msg string, err error) {
		logger.Error(msg, zap.Error(err))
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rawRunID, err := uuid.NewUUIDGenerator().NewRawID()
	if err != nil {
		fatal("generate run id", err)
	}
	runID := rawRunID.String()
	logger = logging.WithRun(logger, runID)

	authors, err := loadRoster(*authorsPath, *singleUser)
	if err != nil {
		fatal("load author roster", err)
	}

	userAgents, err := loadPool(cfg.Scraper.UserAgents, cfg.Scraper.UserAgentsFile)
	if err != nil {
		fatal("load user agent pool", err)
	}
	proxies, err := loadPool(cfg.Scraper.Proxies, cfg.Scraper.ProxiesFile)
	if err != nil {
		fatal("load proxy pool", err)
	}
	identity, err := scholar.NewIdentity(userAgents, proxies, nil)
	if err != nil {
		fatal("build identity pool", err)
	}

	var blobs batch.BlobStore
	switch cfg.Storage.Backend {
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			fatal("create gcs client", err)
		}
		defer func() {
			if closeErr := client.Close(); closeErr != nil {
				logger.Warn("close gcs client", zap.Error(closeErr))
			}
		}()
		store, err := gcsstore.New(client, gcsstore.Config{Bucket: cfg.Storage.Bucket})
		if err != nil {
			fatal("build gcs blob store", err)
		}
		blobs = store
	case "memory":
		blobs = memorystorage.NewBlobStore()
	default:
		store, err := local.New(local.Config{BaseDir: cfg.Scraper.OutputDir})
		if err != nil {
			fatal("build local blob store", err)
		}
		blobs = store
	}

	var outcomes database.Provider = database.NoOpProvider{}
	if cfg.Database.Enabled {
		store, err := database.NewStore(ctx, database.StoreConfig{
			DSN:   cfg.Database.DSN,
			Table: cfg.Database.Table,
		})
		if err != nil {
			fatal("connect outcome store", err)
		}
		outcomes = store
	}
	defer outcomes.Close()

	var notices queue.Provider = queue.NoOpProvider{}
	if cfg.PubSub.Enabled {
		provider, err := queue.NewPubSubProvider(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicID, logger.Named("pubsub"))
		if err != nil {
			fatal("connect pubsub", err)
		}
		notices = provider
	}
	defer func() {
		if closeErr := notices.Close(); closeErr != nil {
			logger.Warn("close notice publisher", zap.Error(closeErr))
		}
	}()

	registry := prometheus.NewRegistry()
	tally := sinks.NewTallySink()
	sinkList := []progress.Sink{sinks.NewLogSink(logger.Named("progress")), tally}
	if cfg.Ops.Enabled {
		promSink, err := sinks.NewPrometheusSink(registry)
		if err != nil {
			fatal("register progress metrics", err)
		}
		sinkList = append(sinkList, promSink)
	}
	hub := progress.NewHub(progress.Config{Logger: logger.Named("progress")}, sinkList...)
	reporter := scholar.Reporter{Emitter: hub, RunID: progress.UUIDToBytes(rawRunID)}

	parser := parse.NewParser()
	var qps *rate.Limiter
	if cfg.Headless.Enabled && cfg.Headless.QPS > 0 {
		qps = rate.NewLimiter(rate.Limit(cfg.Headless.QPS), 1)
	}

	factory := func(worker int) (batch.Scraper, func(), error) {
		wlog := logger.Named("worker").With(zap.Int("index", worker))
		breaker := scholar.NewBreaker(cfg.Scraper.BlockRetryLimit, cfg.Scraper.PauseDuration, cfg.Scraper.PauseOnBlock)
		backoff := scholar.NewBackoff(cfg.Scraper.BackoffBase, cfg.Scraper.BackoffMax, nil)
		fast := collyfetcher.New(collyfetcher.Config{
			AttemptBudget: cfg.Scraper.AttemptBudget,
			Timeout:       cfg.Scraper.RequestTimeout,
		}, identity, backoff, breaker, wlog.Named("colly"))

		var (
			heavy    scholar.Fetcher
			sessions scholar.SessionSource = headless.NewDisabled()
			cleanup  func()
		)
		if cfg.Headless.Enabled {
			engine, err := headless.New(headless.Config{
				MaxParallel: cfg.Headless.MaxParallel,
				NavTimeout:  cfg.Headless.NavTimeout,
			}, qps, breaker, identity, wlog.Named("headless"))
			if err != nil {
				wlog.Warn("headless engine init failed, staying on fast tier", zap.Error(err))
			} else {
				heavy = engine
				sessions = engine
				cleanup = engine.Close
			}
		}

		orch := scholar.NewOrchestrator(fast, heavy, parser, reporter, scholar.OrchestratorConfig{
			Concurrency:      cfg.Scraper.Concurrency,
			HeavyConcurrency: cfg.Headless.MaxParallel,
			DelayMin:         cfg.Scraper.DelayMin,
			DelayMax:         cfg.Scraper.DelayMax,
		}, wlog.Named("orchestrator"))

		return scholar.NewScraper(sessions, fast, parser, orch, breaker, reporter, 0, wlog), cleanup, nil
	}

	sched := batch.New(batch.Config{
		AuthorConcurrency: cfg.Scraper.AuthorConcurrency,
		DelayMin:          cfg.Scraper.DelayMin,
		DelayMax:          cfg.Scraper.DelayMax,
		Label:             cfg.Scraper.Label,
		PathPrefix:        cfg.Storage.Prefix,
	}, runID, factory, blobs, outcomes, notices, sha256.New(), system.New(), reporter, logger.Named("batch"))

	var srv *http.Server
	if cfg.Ops.Enabled {
		apiServer := api.NewServer(tally, registry, runID, logger.Named("api"))
		srv = &http.Server{
			Addr:              cfg.Ops.Addr,
			Handler:           apiServer.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("ops server started", zap.String("addr", cfg.Ops.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("ops server error", zap.Error(err))
			}
		}()
	}

	logger.Info("scrape run starting",
		zap.String("run_id", runID),
		zap.Int("authors", len(authors)),
		zap.String("storage", cfg.Storage.Backend))

	results, runErr := sched.Run(ctx, authors)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("ops server shutdown error", zap.Error(err))
		}
		cancel()
	}
	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := hub.Close(closeCtx); err != nil {
		logger.Warn("progress hub close", zap.Error(err))
	}
	cancel()

	if runErr != nil {
		fatal("scrape run failed", runErr)
	}

	succeeded := 0
	for _, ok := range results {
		if ok {
			succeeded++
		}
	}
	logger.Info("run complete",
		zap.String("run_id", runID),
		zap.Int("authors", len(results)),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", len(results)-succeeded))
}

// loadRoster resolves the author list from the single-user flag or the
// roster CSV. The single-user form mirrors passing one Scholar ID on
// the command line.
func loadRoster(csvPath, singleUser string) ([]batch.Author, error) {
	if singleUser != "" {
		return []batch.Author{{UserID: singleUser}}, nil
	}
	return batch.LoadAuthors(csvPath)
}

// loadPool merges inline config entries with a pool file when one is
// configured. File entries extend the inline list rather than replace
// it, so small overrides never discard a maintained pool.
func loadPool(inline []string, path string) ([]string, error) {
	if path == "" {
		return inline, nil
	}
	lines, err := scholar.LoadLines(path)
	if err != nil {
		return nil, err
	}
	return append(append([]string(nil), inline...), lines...), nil
}
