// Package api hosts the HTTP server of serve mode. Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/runs runs one sync synchronously; 409 while another is active.
//   - GET /v1/runs/latest returns the outcome of the most recent run.
package api
