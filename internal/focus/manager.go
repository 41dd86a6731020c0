package focus

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/multishiva/multishiva/internal/event"
)

// Config carries the focus manager's timing knobs: FrictionMS suppresses
// accidental edge crossings (a cursor grazing the screen edge shouldn't
// hand off focus), edge_threshold_px is topology's concern, not ours.
// RingCapacity/DrainMaxAge govern the replay buffer used while focus is
// still settling onto a new peer.
type Config struct {
	FrictionMS   time.Duration
	RingCapacity int
	DrainMaxAge  time.Duration
}

// DefaultConfig sets a drain age generous enough to survive ordinary
// network jitter but short enough that a stale backlog never replays as
// if it just happened, and a 64-entry ring; friction still needs a
// caller-supplied value from configuration.
func DefaultConfig() Config {
	return Config{
		RingCapacity: 64,
		DrainMaxAge:  100 * time.Millisecond,
	}
}

// Manager owns the focus state machine and is the only component that
// mutates focus state; everyone else observes via Snapshot. Not safe for
// concurrent Handle* calls from multiple goroutines — callers run it on a
// single owner task.
type Manager struct {
	cfg Config
	log *zap.Logger

	mu    sync.RWMutex
	state State

	pendingTimer  *time.Timer
	ring          *ringBuffer
	firstMoveSeen bool

	onGrant   func(peer string, edge event.Edge, entryX, entryY int32)
	onRelease func(peer string, exitEdge event.Edge)
}

// New builds a Manager starting in Local focus.
func New(cfg Config, log *zap.Logger, onGrant func(peer string, edge event.Edge, entryX, entryY int32), onRelease func(peer string, exitEdge event.Edge)) *Manager {
	if cfg.RingCapacity <= 0 {
		cfg.RingCapacity = 64
	}
	if cfg.DrainMaxAge <= 0 {
		cfg.DrainMaxAge = 100 * time.Millisecond
	}
	return &Manager{
		cfg:       cfg,
		log:       log,
		state:     State{Phase: Local},
		ring:      newRingBuffer(cfg.RingCapacity),
		onGrant:   onGrant,
		onRelease: onRelease,
	}
}

// Snapshot returns the current state, safe for concurrent readers.
func (m *Manager) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// HandleEdgeHit processes a local pointer crossing the edge mapped to
// peer, moving the machine from Local into Pending (or straight to Remote
// when FrictionMS is zero). entryX/entryY come
// from topology.HitTest + topology.EntryPoint and are carried through to
// the eventual FocusGrant so the peer can seat the cursor where it
// crossed.
func (m *Manager) HandleEdgeHit(peer string, edge event.Edge, entryX, entryY int32, now time.Time) {
	cur := m.Snapshot()
	switch cur.Phase {
	case Local:
		if m.cfg.FrictionMS <= 0 {
			m.enterRemote(peer, edge, entryX, entryY, now)
			return
		}
		m.setState(State{Phase: Pending, Peer: peer, Since: now, EnteredEdge: edge})
		m.armFrictionTimer(peer, edge, entryX, entryY)
	case Pending:
		if cur.Peer != peer || cur.EnteredEdge != edge {
			// A different edge/peer while still pending: restart the
			// friction window for the new target.
			m.cancelFrictionTimer()
			m.setState(State{Phase: Pending, Peer: peer, Since: now, EnteredEdge: edge})
			m.armFrictionTimer(peer, edge, entryX, entryY)
		}
	case Remote:
		// Already remote; ignore further local edge hits until focus
		// returns.
	}
}

// HandlePerpendicularMotion resets a running friction timer: a cursor
// sliding along the edge rather than committing across it shouldn't get
// credit toward the handoff, so motion parallel to the edge restarts the
// clock instead of letting it expire on stale dwell time.
func (m *Manager) HandlePerpendicularMotion(now time.Time) {
	cur := m.Snapshot()
	if cur.Phase != Pending {
		return
	}
	m.setState(State{Phase: Pending, Peer: cur.Peer, Since: now, EnteredEdge: cur.EnteredEdge})
	m.mu.Lock()
	if m.pendingTimer != nil {
		m.pendingTimer.Reset(m.cfg.FrictionMS)
	}
	m.mu.Unlock()
}

// HandleMovedAway cancels a pending transition before friction elapses:
// the cursor backed off the edge, so the handoff is abandoned and focus
// stays Local.
func (m *Manager) HandleMovedAway() {
	cur := m.Snapshot()
	if cur.Phase != Pending {
		return
	}
	m.cancelFrictionTimer()
	m.setState(State{Phase: Local})
}

func (m *Manager) armFrictionTimer(peer string, edge event.Edge, entryX, entryY int32) {
	m.mu.Lock()
	if m.pendingTimer != nil {
		m.pendingTimer.Stop()
	}
	m.pendingTimer = time.AfterFunc(m.cfg.FrictionMS, func() {
		cur := m.Snapshot()
		if cur.Phase == Pending && cur.Peer == peer && cur.EnteredEdge == edge {
			m.enterRemote(peer, edge, entryX, entryY, time.Now())
		}
	})
	m.mu.Unlock()
}

func (m *Manager) cancelFrictionTimer() {
	m.mu.Lock()
	if m.pendingTimer != nil {
		m.pendingTimer.Stop()
		m.pendingTimer = nil
	}
	m.mu.Unlock()
}

func (m *Manager) enterRemote(peer string, edge event.Edge, entryX, entryY int32, now time.Time) {
	m.cancelFrictionTimer()
	m.mu.Lock()
	m.firstMoveSeen = false
	m.ring = newRingBuffer(m.cfg.RingCapacity)
	m.mu.Unlock()
	m.setState(State{Phase: Remote, Peer: peer, Since: now, EnteredEdge: edge})
	if m.onGrant != nil {
		m.onGrant(peer, edge, entryX, entryY)
	}
}

// FirstMoveSeen reports whether the first outbound MouseMove since the
// last enterRemote has already gone out, i.e. whether Buffer would now be
// a no-op and callers should send events directly instead.
func (m *Manager) FirstMoveSeen() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.firstMoveSeen
}

// Buffer records a locally captured event while Remote. The peer's
// cursor isn't seated at the handoff point until the first outbound
// MouseMove lands, so anything captured before that move goes out rides
// the ring instead of racing ahead of it.
func (m *Manager) Buffer(e interface{}, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.firstMoveSeen {
		return
	}
	m.ring.Push(e, now)
}

// MarkFirstMoveSent signals the first outbound MouseMove has gone out,
// ending the window during which events are buffered instead of sent
// directly, and returns the drained backlog with anything stale enough
// to no longer reflect real user intent discarded.
func (m *Manager) MarkFirstMoveSent(now time.Time) []interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.firstMoveSeen {
		return nil
	}
	m.firstMoveSeen = true
	return m.ring.Drain(now, m.cfg.DrainMaxAge)
}

// HandleFocusReleaseReceived handles an inbound FocusRelease from the
// current remote peer: the peer is handing focus back, so the local
// machine ungrabs and returns to Local.
func (m *Manager) HandleFocusReleaseReceived(from string) {
	cur := m.Snapshot()
	if cur.Phase == Remote && cur.Peer == from {
		m.setState(State{Phase: Local})
	}
}

// HandleKillSwitch forces Local immediately, emitting FocusRelease to the
// peer that had focus so it doesn't keep believing it owns input.
func (m *Manager) HandleKillSwitch() {
	cur := m.Snapshot()
	if cur.Phase == Remote {
		m.setState(State{Phase: Local})
		if m.onRelease != nil {
			m.onRelease(cur.Peer, cur.EnteredEdge.Opposite())
		}
		return
	}
	if cur.Phase == Pending {
		m.cancelFrictionTimer()
		m.setState(State{Phase: Local})
	}
}

// HandleFocusReturnHotkey is the "bring focus back to me" escape hatch:
// same behavior as the kill switch, offered under a distinct name so
// orchestrators can bind it to a separate hotkey.
func (m *Manager) HandleFocusReturnHotkey() {
	m.HandleKillSwitch()
}

// HandleConnectionLost reverts to Local if peer was the current remote
// owner: input can't stay routed to a peer nothing is connected to.
func (m *Manager) HandleConnectionLost(peer string) {
	cur := m.Snapshot()
	if cur.Phase == Remote && cur.Peer == peer {
		m.setState(State{Phase: Local})
	}
	if cur.Phase == Pending && cur.Peer == peer {
		m.cancelFrictionTimer()
		m.setState(State{Phase: Local})
	}
}
