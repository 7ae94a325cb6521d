package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryOption configures a Memory limiter.
type MemoryOption func(*Memory)

// WithClock overrides time.Now.
func WithClock(clock Clock) MemoryOption {
	return func(m *Memory) {
		m.now = clock
	}
}

// WithCleanupInterval sets how often idle keys are swept. Zero disables the
// background sweeper.
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(m *Memory) {
		m.cleanupInterval = d
	}
}

// Memory is an in-process sliding window log keyed by client.
type Memory struct {
	limit  int
	window time.Duration
	now    Clock

	mu   sync.Mutex
	hits map[string][]time.Time

	cleanupInterval time.Duration
	stop            chan struct{}
	done            chan struct{}
	closeOnce       sync.Once
}

// NewMemory creates a limiter allowing limit calls per window per key. Call
// Close to stop the background sweeper.
func NewMemory(limit int, window time.Duration, opts ...MemoryOption) *Memory {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}

	m := &Memory{
		limit:           limit,
		window:          window,
		now:             time.Now,
		hits:            make(map[string][]time.Time),
		cleanupInterval: window,
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.cleanupInterval > 0 {
		go m.janitor()
	} else {
		close(m.done)
	}
	return m
}

// Allow implements Limiter.
func (m *Memory) Allow(_ context.Context, key string) (Decision, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	hits := prune(m.hits[key], now.Add(-m.window))

	d := Decision{Limit: m.limit}
	if len(hits) < m.limit {
		hits = append(hits, now)
		d.Allowed = true
		d.Remaining = m.limit - len(hits)
	} else {
		d.RetryAfter = retryAfter(hits[0].Add(m.window).Sub(now))
	}
	d.ResetAt = hits[0].Add(m.window)

	m.hits[key] = hits
	return d, nil
}

// Len returns the number of tracked keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.hits)
}

// Sweep drops keys with no calls inside the window.
func (m *Memory) Sweep() {
	cutoff := m.now().Add(-m.window)

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, hits := range m.hits {
		if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
			delete(m.hits, key)
		}
	}
}

// Close stops the sweeper. It is safe to call more than once.
func (m *Memory) Close() error {
	m.closeOnce.Do(func() {
		close(m.stop)
	})
	<-m.done
	return nil
}

func (m *Memory) janitor() {
	defer close(m.done)

	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-m.stop:
			return
		}
	}
}

// prune drops hits at or before cutoff. hits is ordered oldest first.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return hits
	}
	return append(hits[:0], hits[i:]...)
}
