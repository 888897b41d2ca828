// Package api hosts the HTTP server and middleware for operator access.
// Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /api/run for a JSON snapshot of the current run's progress.
package api
