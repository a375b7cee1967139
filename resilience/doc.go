// Package resilience bounds how the storefront client talks to the API.
//
// Every request runs under a per-request [Timeout] and a [Bulkhead] that caps
// concurrent requests. A [RateLimiter] can smooth request bursts. None of
// these retry on their own: failures go straight back to the caller, which
// may opt into a [Retry] for operations it knows are safe to repeat.
//
//	exec := resilience.NewExecutor(
//	    resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 6})),
//	    resilience.WithTimeout(15*time.Second),
//	)
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    return doRequest(ctx)
//	})
package resilience
