package wire

import (
	"sync"
	"time"
)

// nonceCache is a time-bounded set of handshake nonces seen from each peer,
// guarding against a captured HandshakeHello being replayed. Adapted from
// the teacher's peer.dedupeCache (mutex-guarded map with TTL-based pruning),
// repurposed from "have we seen this spot key" to "have we seen this nonce".
type nonceCache struct {
	mu    sync.Mutex
	items map[string]time.Time
	ttl   time.Duration
}

func newNonceCache(ttl time.Duration) *nonceCache {
	return &nonceCache{
		items: make(map[string]time.Time),
		ttl:   ttl,
	}
}

// markSeen records key as seen at now, returning false if it was already
// present and unexpired (a replay).
func (c *nonceCache) markSeen(key string, now time.Time) bool {
	if c == nil || key == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if seenAt, ok := c.items[key]; ok && now.Sub(seenAt) <= c.ttl {
		return false
	}
	c.items[key] = now
	return true
}

func (c *nonceCache) prune(now time.Time) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, ts := range c.items {
		if now.Sub(ts) > c.ttl {
			delete(c.items, k)
		}
	}
}
