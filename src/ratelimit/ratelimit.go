package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/campusware/school-admin-server/src/clock"
)

// idleWindow is how long a bucket may go untouched before Cleanup evicts it.
// A re-created bucket starts full again, which is an acceptable permissive
// reset for identifiers that have been idle this long.
const idleWindow = time.Hour

// secondsPerHour converts an hourly limit into a per-second refill rate.
const secondsPerHour = 3600

// bucket holds the token state for a single identifier. The mutex makes
// refill-then-consume a single critical section so concurrent callers can
// never overdraw below zero or overcount availability.
type bucket struct {
	mu         sync.Mutex
	capacity   float64
	available  float64
	lastRefill time.Time
}

// refill adds tokens for the whole seconds elapsed since the last refill,
// capped at capacity. Sub-second remainders are truncated; this matches the
// reference behavior and slightly under-refills under bursty traffic.
func (b *bucket) refill(now time.Time) {
	elapsed := math.Floor(now.Sub(b.lastRefill).Seconds())
	if elapsed <= 0 {
		return
	}
	rate := b.capacity / secondsPerHour
	b.available = math.Min(b.capacity, b.available+elapsed*rate)
	b.lastRefill = now
}

// Limiter is an in-memory, per-identifier token bucket. Buckets are created
// lazily on first use and start full, permitting an immediate burst up to the
// configured limit. All methods are safe for concurrent use; operations on
// distinct identifiers proceed in parallel.
type Limiter struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
	clk     clock.Clock
}

// New creates a Limiter using the given clock.
func New(clk clock.Clock) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		clk:     clk,
	}
}

// getBucket returns the bucket for identifier, creating a full one if absent.
// The map lock is held only for the lookup/insert, never while a bucket's own
// critical section runs.
func (l *Limiter) getBucket(identifier string, limit int) *bucket {
	l.mu.RLock()
	b, ok := l.buckets[identifier]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// Double-check under write lock
	if b, ok = l.buckets[identifier]; ok {
		return b
	}
	b = &bucket{
		capacity:   float64(limit),
		available:  float64(limit),
		lastRefill: l.clk.Now(),
	}
	l.buckets[identifier] = b
	return b
}

// TryConsume refills the identifier's bucket for elapsed time, then consumes
// one token if available. Returns true when the request is admitted.
func (l *Limiter) TryConsume(identifier string, limit int) bool {
	if limit <= 0 {
		return false
	}
	b := l.getBucket(identifier, limit)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.syncCapacity(float64(limit))
	b.refill(l.clk.Now())
	if b.available < 1 {
		return false
	}
	b.available--
	return true
}

// GetRemaining refills and reports the whole tokens currently available
// without consuming any.
func (l *Limiter) GetRemaining(identifier string, limit int) int {
	if limit <= 0 {
		return 0
	}
	b := l.getBucket(identifier, limit)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.syncCapacity(float64(limit))
	b.refill(l.clk.Now())
	return int(math.Floor(b.available))
}

// GetResetTime reports when the identifier's bucket returns to full capacity.
// A full (or absent) bucket resets now.
func (l *Limiter) GetResetTime(identifier string) time.Time {
	now := l.clk.Now()

	l.mu.RLock()
	b, ok := l.buckets[identifier]
	l.mu.RUnlock()
	if !ok {
		return now
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(now)
	if b.available >= b.capacity {
		return now
	}
	// Reference behavior: the deficit is divided by the hourly refill rate and
	// the result applied as seconds.
	secs := math.Ceil((b.capacity - b.available) / b.capacity)
	return now.Add(time.Duration(secs) * time.Second)
}

// Clear discards the bucket for identifier. The next use starts a fresh full
// bucket.
func (l *Limiter) Clear(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, identifier)
}

// Cleanup evicts buckets that have not been refilled within the idle window,
// bounding memory for identifiers no longer in use. Intended to be driven by
// an external periodic ticker, not by request traffic.
func (l *Limiter) Cleanup() int {
	cutoff := l.clk.Now().Add(-idleWindow)

	l.mu.Lock()
	defer l.mu.Unlock()

	evicted := 0
	for id, b := range l.buckets {
		b.mu.Lock()
		stale := b.lastRefill.Before(cutoff)
		b.mu.Unlock()
		if stale {
			delete(l.buckets, id)
			evicted++
		}
	}
	return evicted
}

// syncCapacity applies a changed hourly limit to an existing bucket, clamping
// available tokens to the new capacity. Must be called with b.mu held.
func (b *bucket) syncCapacity(capacity float64) {
	if b.capacity == capacity {
		return
	}
	b.capacity = capacity
	if b.available > capacity {
		b.available = capacity
	}
}
