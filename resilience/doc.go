// Package resilience provides the admission primitives for tenant isolation.
//
// This package includes:
//   - RateLimiter: Caps requests per fixed window with a hard quota
//   - CircuitBreaker: Prevents cascading failures by failing fast
//   - Bulkhead: Bounds concurrency and queues overflow in FIFO order
//   - Retry: Retries failed operations with exponential backoff
//
// The primitives are designed to be stacked per tenant tier. The rate limiter
// gates admission, the bulkhead bounds how much admitted work runs at once,
// and the breaker guards the operation itself once the bulkhead schedules it:
//
//	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{Name: "pro", Quota: 1000})
//	cb := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("pro"))
//	bh := resilience.NewBulkhead(resilience.BulkheadConfig{Name: "pro", MaxConcurrent: 5})
//
//	if d := rl.Allow(); !d.Allowed {
//	    return resilience.ErrRateLimited
//	}
//	err := bh.Submit(ctx, func() error {
//	    return cb.Execute(func() error {
//	        return queryBackend(ctx)
//	    })
//	})
//
// Each primitive is safe for concurrent use and takes an optional clock for
// deterministic tests.
package resilience
