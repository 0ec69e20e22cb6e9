// Package ratelimit paces outgoing requests to the marketplace.
//
//	limiter := ratelimit.PerMinute(30)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err // ctx was cancelled while waiting
//	}
//
// PerMinute returns nil for a non-positive rate, which callers treat as
// unlimited.
package ratelimit
