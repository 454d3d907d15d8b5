// Package server is the HTTP surface of the admission layer: a Gin engine
// behind an h2c-wrapped http.Server, the admission API handlers, and the
// standard middleware chain.
//
// # Middleware
//
// Built-in middleware (server/middleware):
//
//   - Recovery: panic recovery with structured logging
//   - RequestID: X-Request-Id generation and propagation
//   - CORS: cross-origin resource sharing configuration
//   - BodySize: request body size limits
//   - Logging: request logging with duration tracking
//   - Tenant: credential-to-tier resolution guarding the query route
//
// # Endpoints
//
// Admission API:
//
//   - POST /v1/query: admission-protected demo operation
//   - GET /v1/tiers: per-tier limiter, bulkhead, breaker, and pool snapshot
//
// Built-in endpoints (server/endpoint):
//
//   - /health: component health aggregation
//   - /ready: readiness probe backed by component health
//   - /alive: liveness probe
//   - /version: build version information
//   - /info: service and build information with uptime
//   - /metrics: runtime memory and goroutine counters
package server
