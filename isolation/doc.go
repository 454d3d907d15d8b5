// Package isolation composes the admission primitives into per-tier
// resource isolation.
//
// A Manager owns one rate limiter, one circuit breaker, one bulkhead, and
// one resource pool handle per tenant tier, built once at start-up from an
// immutable tier table. Handle runs the full admission chain for a request:
//
//	limiter -> bulkhead (FIFO queue) -> breaker -> operation
//
// and classifies how the call settled into an Outcome (success,
// rate-limited, circuit-open, queue-full, operation-failed) so the transport
// layer can map each to a distinct response. Tiers never share state: one
// tier's overload or breaker trips cannot affect another's admission.
//
// Snapshot exposes a read-only per-tier projection (pool occupancy, bulkhead
// occupancy, breaker state) for the metrics surface.
package isolation
