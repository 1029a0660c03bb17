package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter counts requests per key in fixed time windows.
type Limiter interface {
	// Allow records one request for key and reports whether it fits in limit
	// for the current window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// MemoryLimiter is a single-process Limiter used when redis is disabled.
type MemoryLimiter struct {
	mu      sync.Mutex
	now     func() time.Time
	buckets map[string]memoryBucket
}

type memoryBucket struct {
	window int64
	count  int
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{now: time.Now, buckets: make(map[string]memoryBucket)}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	bucket := windowBucket(l.now(), window)

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.buckets[key]
	if b.window != bucket {
		// Drop buckets of past windows so the map stays bounded by active keys.
		for k, v := range l.buckets {
			if v.window < bucket {
				delete(l.buckets, k)
			}
		}
		b = memoryBucket{window: bucket}
	}
	b.count++
	l.buckets[key] = b
	return b.count <= limit, nil
}

func windowBucket(now time.Time, window time.Duration) int64 {
	secs := int64(window.Seconds())
	if secs <= 0 {
		secs = 1
	}
	return now.Unix() / secs
}
