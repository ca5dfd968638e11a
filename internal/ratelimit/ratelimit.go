// Package ratelimit implements sliding-window-log admission control. Each
// check removes events older than the window, records the current one, and
// counts what remains. When a shared backend is unavailable the limiter
// fails open: strict enforcement is traded for availability.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of one admission check.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"reset_time"`
}

// Limiter admits or rejects an event for an identifier against a limit over
// a trailing window.
type Limiter interface {
	Check(ctx context.Context, identifier string, limit int, window time.Duration) Result
}

func resultFromCount(count, limit int, now time.Time, window time.Duration) Result {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= limit,
		Remaining: remaining,
		ResetTime: now.Add(window),
	}
}

// openResult is returned when the backend fails: always allow.
func openResult(limit int, now time.Time, window time.Duration) Result {
	return Result{
		Allowed:   true,
		Remaining: limit,
		ResetTime: now.Add(window),
	}
}
