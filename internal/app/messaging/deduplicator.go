package messaging

import (
	"sync"
	"time"
)

const (
	defaultDedupWindow     = 2 * time.Second
	defaultCleanupInterval = 10 * time.Second
)

// RequestDeduplicator drops envelopes whose requestId was already seen within
// a time window. Page script retries (double clicks, re-posted events) reuse
// the same requestId.
type RequestDeduplicator struct {
	mu              sync.Mutex
	seen            map[string]time.Time
	window          time.Duration
	cleanupInterval time.Duration
	lastCleanup     time.Time
	now             func() time.Time
}

// NewRequestDeduplicator creates a deduplicator with the given window.
// A non-positive window uses the default.
func NewRequestDeduplicator(window time.Duration) *RequestDeduplicator {
	if window <= 0 {
		window = defaultDedupWindow
	}
	return &RequestDeduplicator{
		seen:            make(map[string]time.Time),
		window:          window,
		cleanupInterval: defaultCleanupInterval,
		lastCleanup:     time.Now(),
		now:             time.Now,
	}
}

// IsDuplicate records requestID and reports whether it was seen within the
// window. Empty IDs are never duplicates.
func (d *RequestDeduplicator) IsDuplicate(requestID string) bool {
	if requestID == "" {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if now.Sub(d.lastCleanup) > d.cleanupInterval {
		d.cleanup(now)
	}

	if at, ok := d.seen[requestID]; ok && now.Sub(at) < d.window {
		return true
	}
	d.seen[requestID] = now
	return false
}

// Forget removes requestID so it can be used again.
func (d *RequestDeduplicator) Forget(requestID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, requestID)
}

func (d *RequestDeduplicator) cleanup(now time.Time) {
	for id, at := range d.seen {
		if now.Sub(at) >= d.window {
			delete(d.seen, id)
		}
	}
	d.lastCleanup = now
}
