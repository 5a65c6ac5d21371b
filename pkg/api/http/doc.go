// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Host status and the source registry
//   - Session discovery and lifecycle
//   - The session journal
//   - Health checks and Prometheus metrics
package http
