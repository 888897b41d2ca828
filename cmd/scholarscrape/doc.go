// Package main hosts the scholarscrape batch entrypoint.
//
// Architecture overview:
//   - Roster & scheduling: the author roster comes from a CSV (or a single
//     -user flag) and feeds internal/batch.Scheduler, which runs authors
//     either one at a time with a randomized delay between jobs or across a
//     small worker pool. Each worker gets its own scraper from a factory so
//     breakers and browser engines are never shared across workers.
//   - Scrape pipeline: internal/scholar.Scraper loads the full profile
//     listing (a persistent Chromedp session clicks "show more" until the
//     button disables, falling back to a plain fetch when no browser is
//     available), parses it with goquery, then resolves every citation page
//     through the tiered orchestrator: a concurrent Colly pass, a concurrent
//     headless pass over the leftovers, and a paced sequential sweep.
//   - Block resilience: every fetched page is classified for CAPTCHA,
//     unusual-traffic, sorry-page, and rate-limit responses. Blocks retry
//     under a rotated user agent and proxy with jittered exponential
//     backoff; consecutive blocks trip a per-worker breaker that pauses the
//     schedule before the next author starts.
//   - Persistence & fanout: results are written as pretty-printed JSON per
//     author to the configured blob store (local/GCS/memory), hashed for
//     integrity, optionally recorded as outcome rows in Postgres, and
//     announced on Pub/Sub when a topic is configured. Progress events are
//     buffered by the hub and fanned out to log, tally, and Prometheus sinks.
//   - Configuration & plumbing: Viper populates config from file and
//     SCHOLAR_* env vars; zap provides structured logging; the optional ops
//     server exposes /healthz, /readyz, /metrics, and /api/run while a batch
//     is in flight.
//
// Operational notes:
//   - Concurrency model: author-level workers share one identity pool and
//     one process-wide headless QPS limiter; browser tab parallelism is
//     bounded per engine. Shutdown is coordinated by a signal-aware context
//     propagated from main through the scheduler into every fetch.
//   - Exit behavior: per-author failures are recorded in the results map and
//     the outcome store, not fatal; only configuration and setup errors
//     terminate the process non-zero.
//
// Quick checklist:
//   - Run locally: go run ./cmd/scholarscrape -authors authors.csv
//     -config config.yaml (or rely on SCHOLAR_* env overrides).
//   - Single profile: go run ./cmd/scholarscrape -user LsZIhbcAAAAJ.
//   - Watch a run: curl localhost:9090/api/run with ops.enabled set.
package main
