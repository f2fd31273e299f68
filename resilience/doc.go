// Package resilience provides the fault-tolerance primitives behind the
// runnable engine: a retry loop with exponential backoff, a bulkhead that
// doubles as the max-concurrency semaphore of batches and fan-outs, a
// circuit breaker and a token-bucket rate limiter.
//
// runnable.WithResilience stacks them around a unit that calls out to a
// remote model or tool:
//
//	guarded := runnable.WithResilience(model, runnable.ResilienceConfig{
//	    RateLimiter:    &resilience.RateLimiterConfig{Rate: 5, Burst: 10},
//	    Bulkhead:       &resilience.BulkheadConfig{MaxConcurrent: 4},
//	    CircuitBreaker: &resilience.CircuitBreakerConfig{MaxFailures: 5},
//	})
package resilience
