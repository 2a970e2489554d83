// Package api hosts the operator HTTP surface for the crawler. Routes:
//   - GET /healthz and /readyz for probes; readyz fails unless the pipeline
//     is running.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/status for pipeline state, queue depth and the last cycle.
//   - GET /v1/search?q= for full-text lookups when the index is enabled.
package api
