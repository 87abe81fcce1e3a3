package core

import (
	"context"
	"math"
	"sync"
	"time"
)

// bruteEntry tracks failed logins for one client key. expiresAt is a sliding
// deadline: every failure while the entry lives pushes it out again.
type bruteEntry struct {
	failedAttempts int
	lockedUntil    time.Time
	expiresAt      time.Time
}

// BruteForceThrottle is a process-local failure counter keyed by client
// identifier. It locks a key out after a configured number of failures.
// State is intentionally not shared between instances of the service.
type BruteForceThrottle struct {
	mu      sync.Mutex
	entries map[string]*bruteEntry

	maxFailedAttempts int
	lockDuration      time.Duration

	now func() time.Time // injectable for tests
}

// NewBruteForceThrottle builds a throttle that locks a key for lockDuration
// once maxFailedAttempts consecutive failures are recorded for it.
func NewBruteForceThrottle(maxFailedAttempts int, lockDuration time.Duration) *BruteForceThrottle {
	return &BruteForceThrottle{
		entries:           make(map[string]*bruteEntry),
		maxFailedAttempts: maxFailedAttempts,
		lockDuration:      lockDuration,
		now:               time.Now,
	}
}

// IsLocked reports whether key is currently locked out and, if so, the whole
// minutes remaining (rounded up).
func (t *BruteForceThrottle) IsLocked(key string) (bool, int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	e := t.live(key, now)
	if e == nil || e.lockedUntil.IsZero() || !now.Before(e.lockedUntil) {
		return false, 0
	}
	minutes := int(math.Ceil(e.lockedUntil.Sub(now).Minutes()))
	return true, minutes
}

// RegisterFailure records one failed attempt for key. The increment and the
// threshold check happen under a single lock hold so concurrent failures on
// the same key cannot lose updates. Each failure refreshes the entry's
// sliding expiration to the lock duration.
func (t *BruteForceThrottle) RegisterFailure(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	e := t.live(key, now)
	if e == nil {
		e = &bruteEntry{}
		t.entries[key] = e
	}

	e.failedAttempts++
	if e.failedAttempts >= t.maxFailedAttempts {
		e.lockedUntil = now.Add(t.lockDuration)
	}
	e.expiresAt = now.Add(t.lockDuration)
}

// Clear removes any recorded failures for key.
func (t *BruteForceThrottle) Clear(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key)
}

// live returns the entry for key, dropping it first if its sliding
// expiration has passed. Caller must hold t.mu.
func (t *BruteForceThrottle) live(key string, now time.Time) *bruteEntry {
	e, ok := t.entries[key]
	if !ok {
		return nil
	}
	if !now.Before(e.expiresAt) {
		delete(t.entries, key)
		return nil
	}
	return e
}

// StartJanitor sweeps expired entries periodically until ctx is cancelled.
// Expiry is already enforced lazily on access; the sweep only bounds memory
// held by keys that never come back.
func (t *BruteForceThrottle) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.sweep()
			}
		}
	}()
}

func (t *BruteForceThrottle) sweep() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	for key, e := range t.entries {
		if !now.Before(e.expiresAt) {
			delete(t.entries, key)
		}
	}
}
