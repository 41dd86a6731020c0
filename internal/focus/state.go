// Package focus implements the owner-of-input state machine:
// Local/Pending/Remote with per-edge friction timers, a kill-switch
// escape hatch, and ring-buffered event replay across the moment focus
// actually changes hands. Grounded on the teacher's single-owner-task
// mutation discipline (seen throughout `peer`: state is touched only by
// the goroutine that owns it, observers get snapshots) and on
// peer.dedupeCache's mutex-guarded-map-with-TTL shape, adapted here from
// "have I seen this key" to "is this edge's friction timer still
// running".
package focus

import (
	"time"

	"github.com/multishiva/multishiva/internal/event"
)

// Phase names the three positions in the state machine.
type Phase int

const (
	Local Phase = iota
	Pending
	Remote
)

func (p Phase) String() string {
	switch p {
	case Local:
		return "local"
	case Pending:
		return "pending"
	case Remote:
		return "remote"
	default:
		return "unknown"
	}
}

// State is an immutable snapshot of the focus machine at one instant,
// safe to hand to observers.
type State struct {
	Phase       Phase
	Peer        string
	Since       time.Time
	EnteredEdge event.Edge
}
