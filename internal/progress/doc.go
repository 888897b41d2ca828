// Package progress provides the event primitives, non-blocking hub, and
// emitter interfaces that scrape workers use to report run progress. Events
// are buffered on a background goroutine and fanned out in batches to
// pluggable sinks such as Prometheus collectors or structured logs, so a
// slow consumer can never stall a fetch.
package progress
