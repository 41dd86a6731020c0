// Package hostd implements the Host Orchestrator: it owns the
// set of authenticated agent connections, routes outbound events to
// whichever agent the Focus Manager has selected, and ingests inbound
// FocusRelease frames (heartbeats are consumed inside internal/wire). The
// Topology is fixed at construction; it is not changed as agents connect
// and disconnect. Grounded on the teacher's top-level main.go
// wiring style: components are constructed explicitly and wired with
// channels/callbacks, one goroutine per independent pipeline stage,
// rather than a framework-driven dependency graph.
package hostd

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/multishiva/multishiva/internal/config"
	"github.com/multishiva/multishiva/internal/connstats"
	"github.com/multishiva/multishiva/internal/event"
	"github.com/multishiva/multishiva/internal/fingerprint"
	"github.com/multishiva/multishiva/internal/focus"
	"github.com/multishiva/multishiva/internal/hotkey"
	"github.com/multishiva/multishiva/internal/input"
	"github.com/multishiva/multishiva/internal/journal"
	"github.com/multishiva/multishiva/internal/topology"
)

// Host binds topology, the fingerprint store, input capture, wire
// connections, and the focus manager into the host-side data flow:
// capture -> focus manager (blocked locally) -> wire protocol -> agent ->
// injector.
type Host struct {
	cfg    *config.Config
	log    *zap.Logger
	topo   *topology.Topology
	fps    *fingerprint.Store
	device input.Device
	jrnl   *journal.Journal
	stats  *connstats.Tracker

	ln listenerHandle

	focusMgr    *focus.Manager
	killSwitch  *hotkey.Combo
	focusReturn *hotkey.Combo

	mu          sync.RWMutex
	connections map[string]*connEntry
	remoteBounds map[string]topology.Bounds
	localBounds topology.Bounds
}

type connEntry struct {
	conn wireConn
	addr string
}

// wireConn/listenerHandle indirect internal/wire so this package's
// exported surface and tests don't need a live TCP listener; see wiring.go
// for the concrete adapter used by cmd/multishiva.
type wireConn interface {
	PeerName() string
	RemoteAddr() string
	Send(event.Event) error
	Recv() <-chan event.Event
	Run(context.Context) error
	Close() error
}

type listenerHandle interface {
	AcceptOne(context.Context) (wireConn, error)
	Close() error
}

// New builds a Host. killSwitch/focusReturn may be nil if unconfigured.
func New(cfg *config.Config, log *zap.Logger, topo *topology.Topology, fps *fingerprint.Store, device input.Device, jrnl *journal.Journal, stats *connstats.Tracker, killSwitch, focusReturn *hotkey.Combo, localBounds topology.Bounds) *Host {
	h := &Host{
		cfg:          cfg,
		log:          log,
		topo:         topo,
		fps:          fps,
		device:       device,
		jrnl:         jrnl,
		stats:        stats,
		killSwitch:   killSwitch,
		focusReturn:  focusReturn,
		connections:  make(map[string]*connEntry),
		remoteBounds: make(map[string]topology.Bounds),
		localBounds:  localBounds,
	}
	h.focusMgr = focus.New(focus.Config{
		FrictionMS:   cfg.Behavior.FrictionMS,
		RingCapacity: 64,
		DrainMaxAge:  100 * time.Millisecond,
	}, log, h.onFocusGrant, h.onFocusRelease)
	return h
}

// AttachListener installs the accept-loop source; split from New so unit
// tests can exercise focus/event routing without a real TCP listener.
func (h *Host) AttachListener(ln listenerHandle) { h.ln = ln }

func (h *Host) onFocusGrant(peer string, edge event.Edge, entryX, entryY int32) {
	h.mu.RLock()
	entry, ok := h.connections[peer]
	h.mu.RUnlock()
	if !ok {
		h.log.Warn("focus grant to disconnected peer, reverting to local", zap.String("peer", peer))
		h.focusMgr.HandleConnectionLost(peer)
		return
	}
	if err := h.device.Grab(); err != nil {
		h.log.Error("grab failed on focus grant", zap.Error(err))
	}
	grant := event.FocusGrant{From: h.cfg.SelfName, EnteredEdge: edge, EntryX: entryX, EntryY: entryY}
	if err := entry.conn.Send(grant); err != nil {
		h.log.Error("send focus grant failed", zap.String("peer", peer), zap.Error(err))
	}
	if h.stats != nil {
		h.stats.IncrementFocusGrant(peer)
	}
	if h.jrnl != nil {
		h.jrnl.RecordFocusEvent("remote", peer, edge.String(), time.Now())
	}
}

func (h *Host) onFocusRelease(peer string, exitEdge event.Edge) {
	h.mu.RLock()
	entry, ok := h.connections[peer]
	h.mu.RUnlock()
	if ok {
		if err := entry.conn.Send(event.FocusRelease{From: h.cfg.SelfName, ExitEdge: exitEdge}); err != nil {
			h.log.Warn("send focus release failed", zap.String("peer", peer), zap.Error(err))
		}
	}
	if err := h.device.Ungrab(); err != nil {
		h.log.Error("ungrab failed on focus release", zap.Error(err))
	}
	if h.jrnl != nil {
		h.jrnl.RecordFocusEvent("local", peer, exitEdge.String(), time.Now())
	}
}

// Run starts the accept loop, the local capture loop, and blocks until
// ctx is cancelled. On teardown, each connected agent is told to release
// focus before its connection closes, so nothing is left believing it
// still owns input; the local grab is released last.
func (h *Host) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.acceptLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		h.captureLoop(ctx)
	}()
	<-ctx.Done()
	wg.Wait()

	h.mu.RLock()
	conns := make([]*connEntry, 0, len(h.connections))
	for _, e := range h.connections {
		conns = append(conns, e)
	}
	h.mu.RUnlock()
	for _, e := range conns {
		e.conn.Send(event.FocusRelease{From: h.cfg.SelfName})
		e.conn.Close()
	}
	_ = h.device.Ungrab()
	return nil
}

func (h *Host) acceptLoop(ctx context.Context) {
	if h.ln == nil {
		return
	}
	for {
		conn, err := h.ln.AcceptOne(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			h.log.Warn("accept failed", zap.Error(err))
			if h.jrnl != nil {
				h.jrnl.RecordConnectionEvent("", journal.ConnectionAuthRejected, err.Error(), time.Now())
			}
			continue
		}
		go h.adopt(ctx, conn)
	}
}

func (h *Host) adopt(ctx context.Context, conn wireConn) {
	peer := conn.PeerName()
	h.mu.Lock()
	h.connections[peer] = &connEntry{conn: conn, addr: conn.RemoteAddr()}
	if _, ok := h.remoteBounds[peer]; !ok {
		h.remoteBounds[peer] = h.localBounds
	}
	h.mu.Unlock()

	h.log.Info("agent connected", zap.String("peer", peer))
	if h.jrnl != nil {
		h.jrnl.RecordConnectionEvent(peer, journal.ConnectionAuthenticated, "", time.Now())
	}

	go func() {
		for ev := range conn.Recv() {
			if h.stats != nil {
				h.stats.IncrementEvent(peer, event.TagOf(ev))
			}
			if fr, ok := ev.(event.FocusRelease); ok {
				before := h.focusMgr.Snapshot()
				h.focusMgr.HandleFocusReleaseReceived(fr.From)
				if before.Phase == focus.Remote && before.Peer == fr.From {
					if err := h.device.Ungrab(); err != nil {
						h.log.Error("ungrab failed on focus return", zap.Error(err))
					}
				}
			}
		}
	}()

	err := conn.Run(ctx)
	h.mu.Lock()
	delete(h.connections, peer)
	h.mu.Unlock()
	before := h.focusMgr.Snapshot()
	h.focusMgr.HandleConnectionLost(peer)
	if before.Phase == focus.Remote && before.Peer == peer {
		_ = h.device.Ungrab()
	}
	if h.jrnl != nil {
		detail := ""
		if err != nil {
			detail = err.Error()
		}
		h.jrnl.RecordConnectionEvent(peer, journal.ConnectionClosed, detail, time.Now())
	}
	h.log.Info("agent disconnected", zap.String("peer", peer), zap.Error(err))
}

func (h *Host) captureLoop(ctx context.Context) {
	onErr := func(e *input.DeviceError) {
		h.log.Error("input device error", zap.Bool("transient", e.Transient), zap.Error(e))
		if !e.Transient {
			h.focusMgr.HandleKillSwitch()
		}
	}
	onEvent := func(raw input.RawEvent) {
		h.handleCapturedEvent(raw)
	}
	if err := h.device.StartCapture(onEvent, onErr); err != nil {
		h.log.Error("start capture failed", zap.Error(err))
		return
	}
	<-ctx.Done()
	_ = h.device.StopCapture()
}

func (h *Host) handleCapturedEvent(raw input.RawEvent) {
	if raw.Kind == input.KindKey {
		if h.killSwitch != nil && raw.Pressed && h.killSwitch.Matches(raw.Code, raw.Modifiers) {
			h.focusMgr.HandleKillSwitch()
			return
		}
		if h.focusReturn != nil && raw.Pressed && h.focusReturn.Matches(raw.Code, raw.Modifiers) {
			h.focusMgr.HandleFocusReturnHotkey()
			return
		}
	}

	snap := h.focusMgr.Snapshot()
	switch snap.Phase {
	case focus.Local:
		h.maybeCrossEdge(raw)
	case focus.Pending:
		if raw.Kind == input.KindMouseMove {
			h.focusMgr.HandlePerpendicularMotion(time.Now())
		}
	case focus.Remote:
		h.forwardToRemote(snap.Peer, raw)
	}
}

func (h *Host) maybeCrossEdge(raw input.RawEvent) {
	if raw.Kind != input.KindMouseMove {
		return
	}
	pos := h.trackedPos(raw)
	hit, ok := topology.HitTest(pos, h.localBounds, h.cfg.Behavior.EdgeThresholdPx)
	if !ok {
		return
	}
	peer, ok := h.topo.Neighbor(hit.Edge)
	if !ok {
		return
	}
	h.mu.RLock()
	remote, known := h.remoteBounds[peer]
	h.mu.RUnlock()
	if !known {
		remote = h.localBounds
	}
	entry := topology.EntryPoint(hit.Edge, hit.Perp, h.localBounds, remote)
	h.focusMgr.HandleEdgeHit(peer, hit.Edge, entry.X, entry.Y, time.Now())
}

// trackedPos is a placeholder cursor-position accumulator: a full
// implementation tracks absolute position by integrating capture deltas
// against h.localBounds; exposed so callers/tests can inject a position
// directly via dx/dy without re-deriving OS cursor query logic here.
func (h *Host) trackedPos(raw input.RawEvent) topology.Point {
	return topology.Point{X: raw.DX, Y: raw.DY}
}

func (h *Host) forwardToRemote(peer string, raw input.RawEvent) {
	h.mu.RLock()
	entry, ok := h.connections[peer]
	h.mu.RUnlock()
	if !ok {
		h.focusMgr.HandleConnectionLost(peer)
		return
	}

	ev := toWireEvent(raw)
	if ev == nil {
		return
	}
	now := time.Now()
	if _, isMove := ev.(event.MouseMove); isMove {
		for _, d := range h.focusMgr.MarkFirstMoveSent(now) {
			if de, ok := d.(event.Event); ok {
				h.sendTo(entry, peer, de)
			}
		}
		h.sendTo(entry, peer, ev)
		return
	}
	if !h.focusMgr.FirstMoveSeen() {
		// Hold non-move events until the seating MouseMove has gone out,
		// so the agent never processes a button/key before the cursor is
		// positioned.
		h.focusMgr.Buffer(ev, now)
		return
	}
	h.sendTo(entry, peer, ev)
}

func (h *Host) sendTo(entry *connEntry, peer string, ev event.Event) {
	if err := entry.conn.Send(ev); err != nil {
		h.log.Warn("forward event failed", zap.String("peer", peer), zap.Error(err))
	}
}

func toWireEvent(raw input.RawEvent) event.Event {
	switch raw.Kind {
	case input.KindMouseMove:
		return event.MouseMove{DX: raw.DX, DY: raw.DY}
	case input.KindMouseButton:
		return event.MouseButton{Button: raw.Button, Pressed: raw.Pressed}
	case input.KindMouseScroll:
		return event.MouseScroll{DX: int16(raw.DX), DY: int16(raw.DY)}
	case input.KindKey:
		return event.KeyEvent{Code: raw.Code, Pressed: raw.Pressed, Modifiers: raw.Modifiers}
	default:
		return nil
	}
}

// FocusSnapshot exposes the current focus state for the status dashboard.
func (h *Host) FocusSnapshot() focus.State { return h.focusMgr.Snapshot() }

// SeedRemoteBounds records a peer's screen bounds for entry-point
// proportional mapping. Until a bounds-exchange wire message exists,
// callers seed this from whatever side channel they have, defaulting to
// the host's own bounds.
func (h *Host) SeedRemoteBounds(peer string, b topology.Bounds) {
	h.mu.Lock()
	h.remoteBounds[peer] = b
	h.mu.Unlock()
}

// Peers reports a connection-table snapshot for the status dashboard.
func (h *Host) Peers() []PeerSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]PeerSnapshot, 0, len(h.connections))
	for name, e := range h.connections {
		out = append(out, PeerSnapshot{Name: name, Addr: e.addr})
	}
	return out
}

// PeerSnapshot is one connection-table row for the status dashboard.
type PeerSnapshot struct {
	Name string
	Addr string
}
