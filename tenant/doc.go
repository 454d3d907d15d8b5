// Package tenant resolves inbound requests to tenant tiers.
//
// Resolution runs before the admission core: a request that cannot be
// mapped to a configured tier is rejected at the transport layer and never
// consumes a limiter, bulkhead, or breaker resource. Three resolvers are
// provided, selected by configuration:
//
//   - static: X-API-Key checked against bcrypt hashes (plain keys for dev)
//   - jwt: Authorization Bearer token with a tier claim
//   - redis: api-key lookup in a Redis hash with an in-process TTL cache
//
// All credential failures surface as ErrUnresolved; infrastructure failures
// (e.g. Redis unreachable) are ordinary errors.
package tenant
