// Package ratelimit provides the per-client request window shared by all
// explain calls. The store behind Limiter is swappable: an in-process
// sliding window log or a Redis sorted set for multi-instance deployments.
package ratelimit

import (
	"context"
	"time"
)

// Defaults match the public explain endpoint: 12 calls per client per minute.
const (
	DefaultLimit  = 12
	DefaultWindow = time.Minute
)

// Decision is the result of one check-and-increment.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAt is when the oldest counted call leaves the window.
	ResetAt time.Time
	// RetryAfter is set when Allowed is false.
	RetryAfter time.Duration
}

// Limiter atomically checks whether key may make another call and, if so,
// counts it. Rejected calls are not counted.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Clock returns the current time. Tests inject a fake.
type Clock func() time.Time

// retryAfter rounds up to whole seconds, never below one.
func retryAfter(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Second
	}
	secs := (d + time.Second - 1) / time.Second
	return secs * time.Second
}
