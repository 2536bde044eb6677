// Package ratelimit holds the sliding-window admission gate that paces page
// requests.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"profile_spider/internal/logger"
)

// DefaultEpsilon pads each computed wait so the oldest admission has fully
// left the window when the caller resumes.
const DefaultEpsilon = time.Second

// Gate admits at most maxRequests calls within any trailing window.
type Gate struct {
	maxRequests int
	window      time.Duration
	epsilon     time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)

	mu       sync.Mutex
	requests []time.Time
}

type Option func(*Gate)

// WithClock replaces the time source and sleeper, for tests.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration)) Option {
	return func(g *Gate) {
		g.now = now
		g.sleep = sleep
	}
}

func WithEpsilon(d time.Duration) Option {
	return func(g *Gate) {
		if d >= 0 {
			g.epsilon = d
		}
	}
}

// NewGate builds a gate. A non-positive maxRequests is treated as 1.
func NewGate(maxRequests int, window time.Duration, opts ...Option) *Gate {
	if maxRequests < 1 {
		maxRequests = 1
	}
	g := &Gate{
		maxRequests: maxRequests,
		window:      window,
		epsilon:     DefaultEpsilon,
		now:         time.Now,
		sleep:       Sleep,
		requests:    make([]time.Time, 0, maxRequests),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// PerMinute is the usual configuration: n requests per 60 seconds.
func PerMinute(n int, opts ...Option) *Gate {
	return NewGate(n, time.Minute, opts...)
}

// Admit blocks until one more request fits in the window, records it and
// returns how long the caller waited. It never fails; a cancelled context
// cuts the wait short and the admission is still recorded.
func (g *Gate) Admit(ctx context.Context) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.prune(now)

	var waited time.Duration
	if len(g.requests) >= g.maxRequests {
		oldest := g.requests[0]
		wait := g.window - now.Sub(oldest) + g.epsilon
		if wait > 0 {
			logger.Logger.Infow("rate limit reached, waiting",
				logger.FieldWaitMS, wait.Milliseconds(),
				logger.FieldCount, len(g.requests),
			)
			g.sleep(ctx, wait)
			waited = wait
		}
		now = g.now()
		g.prune(now)
	}

	g.requests = append(g.requests, now)
	return waited
}

// InWindow returns how many admissions currently count against the limit.
func (g *Gate) InWindow() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prune(g.now())
	return len(g.requests)
}

// prune drops admissions that are at least one window old. requests stays
// sorted because admissions are appended with a monotonic clock.
func (g *Gate) prune(now time.Time) {
	keep := 0
	for keep < len(g.requests) && now.Sub(g.requests[keep]) >= g.window {
		keep++
	}
	if keep > 0 {
		g.requests = append(g.requests[:0], g.requests[keep:]...)
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
