// Package batch runs author scrape jobs from a CSV roster. A Scheduler
// drives one scraper per worker, persists each author's publications as a
// JSON blob, records per-author outcome rows, and publishes completion
// notices. One job's failure never stops the run.
package batch
