// Package connstats tracks per-peer wire event and focus-transition
// counters for the status dashboard. Adapted from the teacher's stats.Tracker: identical sync.Map +
// atomic.Uint64 per-key counting technique, renamed from per-mode/
// per-source spot counts to per-peer event-tag/focus-transition counts.
package connstats

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/multishiva/multishiva/internal/event"
)

// Tracker accumulates wire-event and focus-transition counts per peer
// without a shared mutex: each peer's counters live behind their own
// atomics, so concurrent connections never contend with one another.
type Tracker struct {
	eventCounts sync.Map // peer string -> *sync.Map (tag string -> *atomic.Uint64)
	focusCounts sync.Map // peer string -> *atomic.Uint64 (focus-grant count)
	start       atomic.Int64
}

// NewTracker returns a ready-to-use Tracker with its uptime clock
// started.
func NewTracker() *Tracker {
	t := &Tracker{}
	t.start.Store(time.Now().UnixNano())
	return t
}

// IncrementEvent records one received or sent event of the given tag for
// peer.
func (t *Tracker) IncrementEvent(peer string, tag event.Tag) {
	if peer == "" {
		return
	}
	perPeer, _ := t.eventCounts.LoadOrStore(peer, &sync.Map{})
	counters := perPeer.(*sync.Map)
	incrementCounter(counters, tag.String())
}

// IncrementFocusGrant records one focus transition into Remote for peer.
func (t *Tracker) IncrementFocusGrant(peer string) {
	if peer == "" {
		return
	}
	counter, _ := t.focusCounts.LoadOrStore(peer, &atomic.Uint64{})
	counter.(*atomic.Uint64).Add(1)
}

// EventCounts returns a copy of peer -> tag -> count.
func (t *Tracker) EventCounts() map[string]map[string]uint64 {
	out := make(map[string]map[string]uint64)
	t.eventCounts.Range(func(peerKey, value any) bool {
		peer := peerKey.(string)
		counters := value.(*sync.Map)
		perTag := make(map[string]uint64)
		counters.Range(func(tagKey, v any) bool {
			perTag[tagKey.(string)] = v.(*atomic.Uint64).Load()
			return true
		})
		out[peer] = perTag
		return true
	})
	return out
}

// FocusGrantCounts returns a copy of peer -> focus-grant count.
func (t *Tracker) FocusGrantCounts() map[string]uint64 {
	out := make(map[string]uint64)
	t.focusCounts.Range(func(key, value any) bool {
		out[key.(string)] = value.(*atomic.Uint64).Load()
		return true
	})
	return out
}

// Uptime returns how long the tracker has been running.
func (t *Tracker) Uptime() time.Duration {
	return time.Since(time.Unix(0, t.start.Load()))
}

// Reset clears every counter and restarts the uptime clock.
func (t *Tracker) Reset() {
	t.eventCounts.Range(func(key, _ any) bool {
		t.eventCounts.Delete(key)
		return true
	})
	t.focusCounts.Range(func(key, _ any) bool {
		t.focusCounts.Delete(key)
		return true
	})
	t.start.Store(time.Now().UnixNano())
}

func incrementCounter(m *sync.Map, key string) {
	if value, ok := m.Load(key); ok {
		value.(*atomic.Uint64).Add(1)
		return
	}
	counter := &atomic.Uint64{}
	actual, loaded := m.LoadOrStore(key, counter)
	if loaded {
		actual.(*atomic.Uint64).Add(1)
		return
	}
	counter.Add(1)
}
