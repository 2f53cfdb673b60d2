// Package replay enforces at-most-once acceptance of badge token nonces
// within their validity window. A valid signed token intercepted in
// transit could otherwise be redeemed indefinitely; the guard closes
// that gap without ever making a valid badge permanently invalid.
package replay

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Guard records token nonces on first redemption and rejects duplicates.
// Implementations must make RecordIfNew a single atomic check-and-insert:
// two concurrent redemptions of the same nonce must not both pass.
type Guard interface {
	// RecordIfNew atomically records the nonce with the given TTL and
	// returns true, or returns false if the nonce is already recorded
	// and not yet expired. An error indicates the backing store is
	// unavailable, never that the nonce is a replay.
	RecordIfNew(ctx context.Context, nonce string, ttl time.Duration) (bool, error)
}

// hashNonce hashes nonces before they become storage keys, so the guard's
// backing store never holds raw token material.
func hashNonce(nonce string) string {
	sum := sha256.Sum256([]byte(nonce))
	return hex.EncodeToString(sum[:])
}

// memoryEntry is a recorded nonce with its expiry.
type memoryEntry struct {
	expiresAt time.Time
}

// MemoryGuard is an in-process Guard backed by a mutex-protected map with
// TTL entries and a background sweep. Suitable for single-instance
// deployments and tests; multi-instance deployments should use RedisGuard.
type MemoryGuard struct {
	mu      sync.Mutex
	entries map[string]memoryEntry

	nowFunc  func() time.Time
	stopOnce sync.Once
	stopCh   chan struct{}
}

// cleanupInterval is how often the background sweep removes expired entries.
const cleanupInterval = time.Minute

// NewMemoryGuard creates a MemoryGuard and starts its background sweep.
// Call Stop to release the goroutine.
func NewMemoryGuard() *MemoryGuard {
	g := &MemoryGuard{
		entries: make(map[string]memoryEntry),
		nowFunc: time.Now,
		stopCh:  make(chan struct{}),
	}
	go g.cleanupLoop()
	return g
}

// RecordIfNew implements Guard.
func (g *MemoryGuard) RecordIfNew(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if ttl <= 0 {
		ttl = time.Minute
	}

	key := hashNonce(nonce)
	now := g.nowFunc()

	g.mu.Lock()
	defer g.mu.Unlock()

	if entry, ok := g.entries[key]; ok && now.Before(entry.expiresAt) {
		return false, nil
	}

	g.entries[key] = memoryEntry{expiresAt: now.Add(ttl)}
	return true, nil
}

// Stop shuts down the background sweep. Safe to call multiple times.
func (g *MemoryGuard) Stop() {
	g.stopOnce.Do(func() {
		close(g.stopCh)
	})
}

// Size returns the number of recorded nonces (for testing/monitoring).
func (g *MemoryGuard) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

func (g *MemoryGuard) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stopCh:
			return
		case <-ticker.C:
			g.cleanup()
		}
	}
}

func (g *MemoryGuard) cleanup() {
	now := g.nowFunc()
	g.mu.Lock()
	defer g.mu.Unlock()

	for key, entry := range g.entries {
		if !now.Before(entry.expiresAt) {
			delete(g.entries, key)
		}
	}
}
