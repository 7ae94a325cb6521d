package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestMemory_ThirteenthCallRejected(t *testing.T) {
	clock := newFakeClock()
	m := NewMemory(12, time.Minute, WithClock(clock.Now), WithCleanupInterval(0))
	defer m.Close()

	ctx := context.Background()
	for i := 1; i <= 12; i++ {
		d, err := m.Allow(ctx, "203.0.113.7")
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if !d.Allowed {
			t.Fatalf("call %d: expected allowed", i)
		}
		if d.Remaining != 12-i {
			t.Errorf("call %d: remaining = %d, want %d", i, d.Remaining, 12-i)
		}
		clock.Advance(time.Second)
	}

	d, _ := m.Allow(ctx, "203.0.113.7")
	if d.Allowed {
		t.Fatal("13th call should be rejected")
	}
	// Oldest call was 12s ago; it leaves the window in 48s.
	if d.RetryAfter != 48*time.Second {
		t.Errorf("RetryAfter = %v, want 48s", d.RetryAfter)
	}

	clock.Advance(61 * time.Second)
	d, _ = m.Allow(ctx, "203.0.113.7")
	if !d.Allowed {
		t.Fatal("call after window should be allowed")
	}
}

func TestMemory_SlidingWindow(t *testing.T) {
	clock := newFakeClock()
	m := NewMemory(2, time.Minute, WithClock(clock.Now), WithCleanupInterval(0))
	defer m.Close()

	ctx := context.Background()
	m.Allow(ctx, "k")
	clock.Advance(30 * time.Second)
	m.Allow(ctx, "k")

	if d, _ := m.Allow(ctx, "k"); d.Allowed {
		t.Fatal("expected rejection at limit")
	}

	// First call expires, second is still inside the window.
	clock.Advance(31 * time.Second)
	if d, _ := m.Allow(ctx, "k"); !d.Allowed {
		t.Fatal("expected one slot to free up")
	}
	if d, _ := m.Allow(ctx, "k"); d.Allowed {
		t.Fatal("expected rejection again")
	}
}

func TestMemory_KeysIndependent(t *testing.T) {
	m := NewMemory(1, time.Minute, WithCleanupInterval(0))
	defer m.Close()

	ctx := context.Background()
	if d, _ := m.Allow(ctx, "a"); !d.Allowed {
		t.Fatal("a should be allowed")
	}
	if d, _ := m.Allow(ctx, "b"); !d.Allowed {
		t.Fatal("b should be allowed")
	}
	if d, _ := m.Allow(ctx, "a"); d.Allowed {
		t.Fatal("a should be rejected")
	}
}

func TestMemory_Sweep(t *testing.T) {
	clock := newFakeClock()
	m := NewMemory(5, time.Minute, WithClock(clock.Now), WithCleanupInterval(0))
	defer m.Close()

	ctx := context.Background()
	m.Allow(ctx, "old")
	clock.Advance(45 * time.Second)
	m.Allow(ctx, "recent")
	clock.Advance(30 * time.Second)

	m.Sweep()
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
}

func TestMemory_Concurrent(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := NewMemory(50, time.Minute, WithCleanupInterval(10*time.Millisecond))
	defer m.Close()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, _ := m.Allow(context.Background(), fmt.Sprintf("k%d", i%2))
			if d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if allowed != 100 {
		t.Errorf("allowed = %d, want 100", allowed)
	}
}

func TestMemory_CloseIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := NewMemory(1, time.Second)
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
}
