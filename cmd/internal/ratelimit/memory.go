package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is a per-process sliding-window limiter.
type MemoryLimiter struct {
	policy Policy
	now    func() time.Time

	mu     sync.Mutex
	events map[string][]time.Time
	calls  int
}

func NewMemoryLimiter(p Policy) *MemoryLimiter {
	return &MemoryLimiter{
		policy: p.normalized(),
		now:    time.Now,
		events: make(map[string][]time.Time),
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	if key == "" {
		key = "unknown"
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	cut := now.Add(-l.policy.Window)
	kept := l.events[key][:0]
	for _, t := range l.events[key] {
		if t.After(cut) {
			kept = append(kept, t)
		}
	}

	l.calls++
	if l.calls%1024 == 0 {
		l.sweep(cut)
	}

	if len(kept) >= l.policy.Limit {
		l.events[key] = kept
		return Decision{
			Allowed:    false,
			RetryAfter: kept[0].Add(l.policy.Window).Sub(now),
		}, nil
	}

	kept = append(kept, now)
	l.events[key] = kept
	return Decision{Allowed: true, Remaining: l.policy.Limit - len(kept)}, nil
}

// sweep drops keys whose newest event has left the window.
func (l *MemoryLimiter) sweep(cut time.Time) {
	for k, evs := range l.events {
		if len(evs) == 0 || !evs[len(evs)-1].After(cut) {
			delete(l.events, k)
		}
	}
}

// Forget drops all events recorded for key.
func (l *MemoryLimiter) Forget(key string) {
	l.mu.Lock()
	delete(l.events, key)
	l.mu.Unlock()
}
