// Package ratelimit provides per-client token bucket rate limiting.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultMaxClients bounds how many client keys are tracked at once so a
	// flood of distinct addresses cannot exhaust memory.
	DefaultMaxClients = 10000

	defaultCleanupInterval = time.Minute
)

// Limiter limits requests per client key (usually the client address).
type Limiter struct {
	limiters   map[string]*rate.Limiter
	mu         sync.Mutex
	rate       rate.Limit
	burst      int
	maxClients int
	interval   time.Duration
	cleanup    *time.Ticker
	stopChan   chan struct{}
	stopOnce   sync.Once
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithMaxClients overrides DefaultMaxClients.
func WithMaxClients(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.maxClients = n
		}
	}
}

// WithCleanupInterval sets how often idle clients are forgotten.
func WithCleanupInterval(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.interval = d
		}
	}
}

// NewLimiter creates a new rate limiter and starts its cleanup goroutine.
//
// Parameters:
//   - requestsPerSecond: sustained requests per second per client
//   - burst: maximum burst size per client
//   - opts: optional capacity and cleanup settings
//
// Returns a new Limiter instance. Call Stop when done.
func NewLimiter(requestsPerSecond int, burst int, opts ...Option) *Limiter {
	l := &Limiter{
		limiters:   make(map[string]*rate.Limiter),
		rate:       rate.Limit(requestsPerSecond),
		burst:      burst,
		maxClients: DefaultMaxClients,
		interval:   defaultCleanupInterval,
		stopChan:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.cleanup = time.NewTicker(l.interval)
	go l.cleanupRoutine()

	return l
}

// Allow reports whether a request from key may proceed now.
//
// New keys are rejected while the limiter is tracking maxClients keys.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	limiter, exists := l.limiters[key]
	if !exists {
		if len(l.limiters) >= l.maxClients {
			l.mu.Unlock()
			return false
		}
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}

// RetryAfter is the whole number of seconds a rejected client should wait
// for one token to refill. Never less than 1.
func (l *Limiter) RetryAfter() int {
	if l.rate <= 0 {
		return 1
	}
	secs := int(math.Ceil(1 / float64(l.rate)))
	if secs < 1 {
		return 1
	}
	return secs
}

func (l *Limiter) cleanupRoutine() {
	for {
		select {
		case <-l.cleanup.C:
			l.cleanupOldEntries()
		case <-l.stopChan:
			return
		}
	}
}

// cleanupOldEntries forgets clients whose bucket is full again, which means
// they have been idle for at least burst/rate.
func (l *Limiter) cleanupOldEntries() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, limiter := range l.limiters {
		if limiter.Tokens() >= float64(l.burst) {
			delete(l.limiters, key)
		}
	}
}

// Stop stops the cleanup goroutine. Safe to call multiple times.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		l.cleanup.Stop()
		close(l.stopChan)
	})
}

// Tracked returns the number of client keys currently tracked.
func (l *Limiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
