package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultCleanupInterval is how often stale identifiers are purged.
	DefaultCleanupInterval = 5 * time.Minute

	// staleAfter is how long an identifier may sit idle before its events
	// are dropped entirely.
	staleAfter = 24 * time.Hour
)

// MemoryLimiter runs the sliding-window-log algorithm over a local map, for
// environments without a shared backend. It owns its cleanup scheduler; call
// Start to run it and Stop to shut it down.
type MemoryLimiter struct {
	mu     sync.Mutex
	events map[string][]time.Time
	now    func() time.Time

	cleanupInterval time.Duration
	stop            chan struct{}
	done            chan struct{}
}

// NewMemoryLimiter creates an in-memory limiter. The cleanup scheduler is
// not started until Start is called.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		events:          make(map[string][]time.Time),
		now:             time.Now,
		cleanupInterval: DefaultCleanupInterval,
	}
}

// Check runs one admission check for identifier.
func (l *MemoryLimiter) Check(ctx context.Context, identifier string, limit int, window time.Duration) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-window)

	kept := l.events[identifier][:0]
	for _, ts := range l.events[identifier] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)
	l.events[identifier] = kept

	return resultFromCount(len(kept), limit, now, window)
}

// Cleanup drops identifiers whose newest event is older than 24 hours and
// returns how many were removed.
func (l *MemoryLimiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-staleAfter)
	removed := 0
	for id, events := range l.events {
		if len(events) == 0 || events[len(events)-1].Before(cutoff) {
			delete(l.events, id)
			removed++
		}
	}
	return removed
}

// Start launches the periodic cleanup loop.
func (l *MemoryLimiter) Start() {
	l.stop = make(chan struct{})
	l.done = make(chan struct{})

	go func() {
		defer close(l.done)
		ticker := time.NewTicker(l.cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-l.stop:
				return
			case <-ticker.C:
				if removed := l.Cleanup(); removed > 0 {
					log.Debug().Int("removed", removed).Msg("Rate limiter cleanup")
				}
			}
		}
	}()
}

// Stop halts the cleanup loop.
func (l *MemoryLimiter) Stop() {
	if l.stop == nil {
		return
	}
	close(l.stop)
	<-l.done
	l.stop = nil
}
