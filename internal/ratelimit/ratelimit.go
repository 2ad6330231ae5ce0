// Package ratelimit provides the per-caller request limiter. Each key gets
// both a token bucket (short bursts) and a sliding 60 second window (hard
// per-minute ceiling); a request must pass both.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

const (
	window        = 60 * time.Second
	sweepInterval = 5 * time.Minute
	idleEviction  = 10 * time.Minute
)

type entry struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
	hits       []time.Time
	lastSeen   time.Time
}

// Limiter tracks per-key request budgets. Safe for concurrent use.
type Limiter struct {
	rpm   int
	burst int

	entries *xsync.Map[string, *entry]

	// now is replaced in tests.
	now func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a limiter allowing rpm requests per minute per key with a
// bucket of burst tokens.
func New(rpm, burst int) *Limiter {
	return &Limiter{
		rpm:     rpm,
		burst:   burst,
		entries: xsync.NewMap[string, *entry](),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
}

// Consume takes one request slot for key. When denied, retryAfter is the
// whole number of seconds (at least 1) the caller should wait.
func (l *Limiter) Consume(key string) (allowed bool, retryAfter int) {
	now := l.now()
	e, _ := l.entries.LoadOrStore(key, &entry{
		tokens:     float64(l.burst),
		lastRefill: now,
	})

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSeen = now

	// Drop window hits older than 60 s.
	cutoff := now.Add(-window)
	kept := e.hits[:0]
	for _, ts := range e.hits {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	e.hits = kept

	if len(e.hits) >= l.rpm {
		wait := window - now.Sub(e.hits[0])
		return false, ceilSeconds(wait)
	}

	// Refill proportionally to elapsed time, capped at the burst size.
	elapsed := now.Sub(e.lastRefill)
	e.tokens = math.Min(float64(l.burst), e.tokens+elapsed.Seconds()*float64(l.rpm)/60)
	e.lastRefill = now

	if e.tokens < 1 {
		wait := time.Duration((1 - e.tokens) * 60 / float64(l.rpm) * float64(time.Second))
		return false, ceilSeconds(wait)
	}

	e.tokens--
	e.hits = append(e.hits, now)
	return true, 0
}

// Start launches the background sweep that evicts idle keys. Stop ends it.
func (l *Limiter) Start() {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-l.stopCh:
				return
			case <-ticker.C:
				l.sweep()
			}
		}
	}()
}

// Stop terminates the sweep loop. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *Limiter) sweep() {
	cutoff := l.now().Add(-idleEviction)
	l.entries.Range(func(key string, e *entry) bool {
		e.mu.Lock()
		idle := e.lastSeen.Before(cutoff)
		e.mu.Unlock()
		if idle {
			l.entries.Delete(key)
		}
		return true
	})
}

// Len reports the number of tracked keys.
func (l *Limiter) Len() int {
	return l.entries.Size()
}

func ceilSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
