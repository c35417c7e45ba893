package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Keys idle this long are forgotten once the table grows past pruneAt.
const (
	idleTTL = 10 * time.Minute
	pruneAt = 1024
)

type memoryEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter is a per-process token bucket per key. Each key may burst up
// to limit requests and refills at limit per window.
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	every   rate.Limit
	burst   int
	now     func() time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	if limit <= 0 {
		limit = 1
	}
	return &MemoryLimiter{
		entries: make(map[string]*memoryEntry),
		every:   rate.Every(window / time.Duration(limit)),
		burst:   limit,
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.entries[key]
	if !ok {
		if len(l.entries) >= pruneAt {
			l.prune(now)
		}
		entry = &memoryEntry{limiter: rate.NewLimiter(l.every, l.burst)}
		l.entries[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1), nil
}

func (l *MemoryLimiter) prune(now time.Time) {
	for key, entry := range l.entries {
		if now.Sub(entry.lastSeen) > idleTTL {
			delete(l.entries, key)
		}
	}
}
