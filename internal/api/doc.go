// Package api hosts the operator HTTP server. Notable routes:
//   - GET /healthz and /readyz for Kubernetes health checks; readiness follows the
//     control channel connection.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/tasks for a snapshot of in-flight executions and queue depth.
package api
