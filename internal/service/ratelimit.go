package service

import (
	"context"
	"sync"
	"time"
)

// SlidingWindowLimiter admits at most max calls per key within any window.
// Timestamps outside the window are dropped on each call for that key;
// rejected calls are not recorded.
type SlidingWindowLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	hits   map[string][]time.Time
	now    func() time.Time
}

func NewSlidingWindowLimiter(window time.Duration, max int) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

func (l *SlidingWindowLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.hits[key][:0]
	for _, ts := range l.hits[key] {
		if now.Sub(ts) <= l.window {
			recent = append(recent, ts)
		}
	}
	if len(recent) >= l.max {
		l.hits[key] = recent
		return false, nil
	}
	l.hits[key] = append(recent, now)
	return true, nil
}

// Reset forgets every key.
func (l *SlidingWindowLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.hits)
}
