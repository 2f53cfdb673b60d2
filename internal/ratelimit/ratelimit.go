// Package ratelimit implements per-client fixed-window rate limiting
// for the badge endpoints.
package ratelimit

import (
	"sync"
	"time"
)

// Default per-endpoint limits, applied per client IP per window.
const (
	DefaultWindow        = 5 * time.Minute
	DefaultGenerateLimit = 10
	DefaultVerifyLimit   = 50
	DefaultRevokeLimit   = 5

	cleanupInterval = time.Minute
)

type window struct {
	start time.Time
	count int
}

// Limiter is a fixed-window counter keyed by client identity. Fixed
// windows are used instead of a token bucket because rejections must
// report how long the client should wait, which is the remainder of the
// current window.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window

	limit  int
	window time.Duration

	nowFunc  func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewLimiter creates a limiter allowing limit requests per key per
// window, with a background sweep of stale windows.
func NewLimiter(limit int, windowSize time.Duration) *Limiter {
	l := &Limiter{
		windows: make(map[string]*window),
		limit:   limit,
		window:  windowSize,
		nowFunc: time.Now,
		stopCh:  make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow reports whether the request identified by key may proceed. When
// it may not, retryAfter is the time until the current window resets.
func (l *Limiter) Allow(key string) (ok bool, retryAfter time.Duration) {
	now := l.nowFunc()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, exists := l.windows[key]
	if !exists || now.Sub(w.start) >= l.window {
		l.windows[key] = &window{start: now, count: 1}
		return true, 0
	}
	if w.count < l.limit {
		w.count++
		return true, 0
	}
	return false, w.start.Add(l.window).Sub(now)
}

// Stop terminates the background sweep.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCh:
			return
		}
	}
}

func (l *Limiter) cleanup() {
	now := l.nowFunc()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.windows {
		if now.Sub(w.start) >= l.window {
			delete(l.windows, key)
		}
	}
}
