// Package ratelimit paces calls to external collaborators such as the
// search API and the pages it returns.
//
//	limiter := ratelimit.NewMemoryLimiter()
//	limiter.SetCapacity(ratelimit.ResourceSearch, 30, time.Minute)
//
//	if err := limiter.Acquire(ctx, ratelimit.ResourceSearch); err != nil {
//	    return err // context ended
//	}
//
// When a resource answers 429, call Reduce to back the rate off by a
// quarter for the rest of the process lifetime.
package ratelimit
