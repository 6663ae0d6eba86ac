// Package ratelimit throttles requests per client key with a token bucket,
// either in process or shared through redis.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Result is the outcome of one Allow call. RetryAfter is set when denied.
type Result struct {
	Allowed    bool
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// Config describes a bucket that holds Requests tokens and refills them all
// over Window.
type Config struct {
	Requests int
	Window   time.Duration
}

func (c Config) perSecond() float64 {
	if c.Window <= 0 {
		return 0
	}
	return float64(c.Requests) / c.Window.Seconds()
}

type memoryEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps one x/time/rate bucket per key. Idle keys are swept
// once per window.
type MemoryLimiter struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	entries   map[string]*memoryEntry
	lastSweep time.Time
}

func NewMemoryLimiter(cfg Config, now func() time.Time) *MemoryLimiter {
	if now == nil {
		now = time.Now
	}
	return &MemoryLimiter{cfg: cfg, now: now, entries: make(map[string]*memoryEntry), lastSweep: now()}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	if m.cfg.Requests <= 0 || m.cfg.Window <= 0 {
		return Result{Allowed: true}, nil
	}

	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweep(now)

	e, ok := m.entries[key]
	if !ok {
		e = &memoryEntry{lim: rate.NewLimiter(rate.Limit(m.cfg.perSecond()), m.cfg.Requests)}
		m.entries[key] = e
	}
	e.lastSeen = now

	r := e.lim.ReserveN(now, 1)
	if !r.OK() {
		return Result{RetryAfter: m.cfg.Window}, nil
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return Result{RetryAfter: d}, nil
	}
	return Result{Allowed: true}, nil
}

func (m *MemoryLimiter) sweep(now time.Time) {
	if now.Sub(m.lastSweep) < m.cfg.Window {
		return
	}
	for k, e := range m.entries {
		if now.Sub(e.lastSeen) >= m.cfg.Window {
			delete(m.entries, k)
		}
	}
	m.lastSweep = now
}

// Len reports how many keys are currently tracked.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
