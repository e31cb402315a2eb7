package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/campusware/school-admin-server/src/clock"
)

func testClock() *clock.Fake {
	return clock.NewFake(time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC))
}

// TestTryConsume_ColdStartBurst verifies a fresh bucket admits exactly the
// configured limit with no elapsed time, then denies.
func TestTryConsume_ColdStartBurst(t *testing.T) {
	clk := testClock()
	l := New(clk)

	for i := 0; i < 60; i++ {
		if !l.TryConsume("key-1", 60) {
			t.Fatalf("consume %d should succeed", i+1)
		}
	}

	if l.TryConsume("key-1", 60) {
		t.Error("61st consume should be denied")
	}
}

// TestTryConsume_RefillAfterDrain verifies one token per second refill at an
// hourly limit of 3600.
func TestTryConsume_RefillAfterDrain(t *testing.T) {
	clk := testClock()
	l := New(clk)

	for i := 0; i < 3600; i++ {
		if !l.TryConsume("key-1", 3600) {
			t.Fatalf("consume %d should succeed", i+1)
		}
	}
	if l.GetRemaining("key-1", 3600) != 0 {
		t.Fatalf("expected drained bucket, got %d remaining", l.GetRemaining("key-1", 3600))
	}

	clk.Advance(60 * time.Second)

	if got := l.GetRemaining("key-1", 3600); got != 60 {
		t.Errorf("expected 60 tokens after 60s, got %d", got)
	}
}

// TestRefill_TruncatesSubSecond verifies that sub-second elapsed time adds
// no tokens.
func TestRefill_TruncatesSubSecond(t *testing.T) {
	clk := testClock()
	l := New(clk)

	for i := 0; i < 3600; i++ {
		l.TryConsume("key-1", 3600)
	}

	clk.Advance(900 * time.Millisecond)
	if got := l.GetRemaining("key-1", 3600); got != 0 {
		t.Errorf("expected 0 tokens after 900ms, got %d", got)
	}

	clk.Advance(100 * time.Millisecond)
	if got := l.GetRemaining("key-1", 3600); got != 1 {
		t.Errorf("expected 1 token after a full second, got %d", got)
	}
}

// TestRefill_NeverExceedsCapacity verifies long idle periods cap at capacity.
func TestRefill_NeverExceedsCapacity(t *testing.T) {
	clk := testClock()
	l := New(clk)

	l.TryConsume("key-1", 100)
	clk.Advance(48 * time.Hour)

	if got := l.GetRemaining("key-1", 100); got != 100 {
		t.Errorf("expected capacity 100 after long idle, got %d", got)
	}
}

func TestGetResetTime(t *testing.T) {
	clk := testClock()
	l := New(clk)

	// Unknown identifier resets now
	if got := l.GetResetTime("missing"); !got.Equal(clk.Now()) {
		t.Errorf("expected now for unknown identifier, got %v", got)
	}

	// Full bucket resets now
	l.GetRemaining("key-1", 3600)
	if got := l.GetResetTime("key-1"); !got.Equal(clk.Now()) {
		t.Errorf("expected now for full bucket, got %v", got)
	}

	// Empty bucket at limit 3600 resets one second out
	for i := 0; i < 3600; i++ {
		l.TryConsume("key-1", 3600)
	}
	want := clk.Now().Add(time.Second)
	if got := l.GetResetTime("key-1"); !got.Equal(want) {
		t.Errorf("expected %v for empty bucket, got %v", want, got)
	}
}

func TestClear(t *testing.T) {
	clk := testClock()
	l := New(clk)

	for i := 0; i < 10; i++ {
		l.TryConsume("key-1", 10)
	}
	if l.TryConsume("key-1", 10) {
		t.Fatal("bucket should be drained")
	}

	l.Clear("key-1")

	if !l.TryConsume("key-1", 10) {
		t.Error("cleared identifier should start a fresh full bucket")
	}
}

func TestCleanup_EvictsIdleBuckets(t *testing.T) {
	clk := testClock()
	l := New(clk)

	l.TryConsume("stale", 10)
	clk.Advance(30 * time.Minute)
	l.TryConsume("fresh", 10)
	clk.Advance(31 * time.Minute)

	evicted := l.Cleanup()
	if evicted != 1 {
		t.Errorf("expected 1 eviction, got %d", evicted)
	}

	l.mu.RLock()
	_, staleOK := l.buckets["stale"]
	_, freshOK := l.buckets["fresh"]
	l.mu.RUnlock()
	if staleOK {
		t.Error("stale bucket should be evicted")
	}
	if !freshOK {
		t.Error("fresh bucket should survive cleanup")
	}
}

// TestTryConsume_NoDoubleSpend hammers one identifier from many goroutines
// with a frozen clock and verifies no more than the limit is admitted.
func TestTryConsume_NoDoubleSpend(t *testing.T) {
	clk := testClock()
	l := New(clk)

	const limit = 100
	const workers = 20
	const attempts = 50

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < attempts; i++ {
				if l.TryConsume("shared", limit) {
					mu.Lock()
					admitted++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if admitted != limit {
		t.Errorf("expected exactly %d admissions, got %d", limit, admitted)
	}
}

// TestLimiter_IndependentIdentifiers verifies draining one identifier does
// not affect another.
func TestLimiter_IndependentIdentifiers(t *testing.T) {
	clk := testClock()
	l := New(clk)

	for i := 0; i < 5; i++ {
		l.TryConsume("a", 5)
	}
	if l.TryConsume("a", 5) {
		t.Fatal("identifier a should be drained")
	}
	if !l.TryConsume("b", 5) {
		t.Error("identifier b should be unaffected")
	}
}

func TestTryConsume_NonPositiveLimit(t *testing.T) {
	l := New(testClock())
	if l.TryConsume("key-1", 0) {
		t.Error("zero limit should deny")
	}
	if l.TryConsume("key-1", -5) {
		t.Error("negative limit should deny")
	}
}
