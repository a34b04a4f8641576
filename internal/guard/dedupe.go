package guard

import (
	"sync"
	"time"
)

// Deduper is an in-memory seen-set for consumer-side event deduplication.
// It is an optimization only: the settlement engine is idempotent without
// it, the deduper just skips redundant work on tight redeliveries.
type Deduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// NewDeduper creates a deduper whose entries expire after ttl.
func NewDeduper(ttl time.Duration) *Deduper {
	return &Deduper{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Seen marks the key and reports whether it was already present and fresh.
// An empty key is never deduplicated.
func (d *Deduper) Seen(key string) bool {
	if key == "" {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if at, ok := d.seen[key]; ok && now.Sub(at) < d.ttl {
		return true
	}
	d.seen[key] = now
	if len(d.seen) > 10_000 {
		d.evictLocked(now)
	}
	return false
}

// Forget removes a key so a retried event is processed again.
func (d *Deduper) Forget(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, key)
}

func (d *Deduper) evictLocked(now time.Time) {
	for key, at := range d.seen {
		if now.Sub(at) >= d.ttl {
			delete(d.seen, key)
		}
	}
}
