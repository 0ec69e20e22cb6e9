package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter blocks until another request may be sent
type Limiter interface {
	Wait(ctx context.Context) error
}

// PerMinute returns a limiter for n requests per minute, or nil when n is
// not positive. Up to n requests may go out back to back; after that they
// are spaced a minute/n apart.
func PerMinute(n int) Limiter {
	if n <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
}
