package wire

import (
	"testing"
	"time"
)

func TestNonceCacheDetectsReplay(t *testing.T) {
	c := newNonceCache(time.Minute)
	now := time.Now()

	if !c.markSeen("n1", now) {
		t.Fatalf("expected first sighting to be accepted")
	}
	if c.markSeen("n1", now.Add(time.Second)) {
		t.Fatalf("expected replay within TTL to be rejected")
	}
}

func TestNonceCacheExpiresAfterTTL(t *testing.T) {
	c := newNonceCache(time.Second)
	now := time.Now()
	c.markSeen("n1", now)
	if !c.markSeen("n1", now.Add(2*time.Second)) {
		t.Fatalf("expected nonce to be reusable after TTL elapses")
	}
}

func TestNonceCachePrune(t *testing.T) {
	c := newNonceCache(time.Second)
	now := time.Now()
	c.markSeen("n1", now)
	c.prune(now.Add(2 * time.Second))
	if len(c.items) != 0 {
		t.Fatalf("expected expired entries pruned, got %d remaining", len(c.items))
	}
}

func TestNonceCacheNilRejects(t *testing.T) {
	var c *nonceCache
	if c.markSeen("n1", time.Now()) {
		t.Fatalf("nil cache should never accept a nonce; serverHandshake skips the cache entirely when nonces is nil")
	}
}
