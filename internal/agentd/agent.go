// Package agentd implements the Agent Orchestrator: dial the
// host (explicit address or mDNS discovery), complete the handshake, seat
// the cursor and inject events on FocusGrant, and detect the return edge
// locally to emit FocusRelease. Grounded on the teacher's rbn/client.go
// dial-with-reconnect loop, generalized the same way internal/wire's
// Reconnector already generalizes it for this domain.
package agentd

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/multishiva/multishiva/internal/config"
	"github.com/multishiva/multishiva/internal/connstats"
	"github.com/multishiva/multishiva/internal/discovery"
	"github.com/multishiva/multishiva/internal/event"
	"github.com/multishiva/multishiva/internal/fingerprint"
	"github.com/multishiva/multishiva/internal/input"
	"github.com/multishiva/multishiva/internal/journal"
	"github.com/multishiva/multishiva/internal/topology"
)

// wireConn is the slice of *wire.Connection the agent depends on,
// mirroring internal/hostd's indirection so routing logic is testable
// against an in-memory fake instead of a live socket.
type wireConn interface {
	PeerName() string
	Send(event.Event) error
	Recv() <-chan event.Event
	Run(context.Context) error
	Close() error
}

// dialer abstracts wire.Reconnector.Run for the same reason. A non-nil
// error means the dialer gave up after repeated authentication refusals
// rather than ctx being cancelled.
type dialer interface {
	Run(ctx context.Context, onConnected func(conn wireConn)) error
}

// Agent binds C3 (fingerprint store, via the dialer), C4 (discovery), C5
// (input injection), and C6 (wire connection) into the agent-side data
// flow: receive FocusGrant/events over the wire, inject them, and detect
// the local edge crossing back toward the host.
type Agent struct {
	cfg    *config.Config
	log    *zap.Logger
	topo   *topology.Topology
	device input.Device
	jrnl   *journal.Journal
	stats  *connstats.Tracker

	localBounds topology.Bounds
	threshold   int32

	mu          sync.RWMutex
	hostName    string
	remoteOwned bool
	pos         topology.Point
}

// New builds an Agent. topo should declare the edge(s) pointing back at
// the host, so ReverseLookup/Neighbor can recognize the return crossing.
func New(cfg *config.Config, log *zap.Logger, topo *topology.Topology, device input.Device, jrnl *journal.Journal, stats *connstats.Tracker, localBounds topology.Bounds) *Agent {
	return &Agent{
		cfg:         cfg,
		log:         log,
		topo:        topo,
		device:      device,
		jrnl:        jrnl,
		stats:       stats,
		localBounds: localBounds,
		threshold:   cfg.Behavior.EdgeThresholdPx,
	}
}

// resolveHostAddr returns cfg.HostAddress verbatim if set, otherwise
// browses for it.
func (a *Agent) resolveHostAddr(ctx context.Context) (string, error) {
	if a.cfg.HostAddress != "" {
		return a.cfg.HostAddress, nil
	}
	found, err := discovery.Browse(ctx, a.log, "")
	if err != nil {
		return "", fmt.Errorf("agentd: discover host: %w", err)
	}
	host := found.Host
	if len(found.Addresses) > 0 {
		host = found.Addresses[0]
	}
	return net.JoinHostPort(host, strconv.Itoa(found.Port)), nil
}

// Run resolves the host address, then redials forever via d until ctx is
// cancelled or the dialer gives up on repeated authentication failures.
// Split from a concrete wire.Reconnector so tests can supply a fake
// dialer.
func (a *Agent) Run(ctx context.Context, newDialer func(addr string) dialer) error {
	addr, err := a.resolveHostAddr(ctx)
	if err != nil {
		return err
	}
	d := newDialer(addr)
	err = d.Run(ctx, func(conn wireConn) {
		a.handleConnection(ctx, conn)
	})
	_ = a.device.Ungrab()
	return err
}

func (a *Agent) handleConnection(ctx context.Context, conn wireConn) {
	a.mu.Lock()
	a.hostName = conn.PeerName()
	a.mu.Unlock()

	if a.jrnl != nil {
		a.jrnl.RecordConnectionEvent(conn.PeerName(), journal.ConnectionAuthenticated, "", time.Now())
	}
	a.log.Info("connected to host", zap.String("host", conn.PeerName()))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.readLoop(conn)
	}()

	err := conn.Run(ctx)
	wg.Wait()

	a.mu.Lock()
	a.remoteOwned = false
	a.mu.Unlock()
	_ = a.device.Ungrab()

	if a.jrnl != nil {
		detail := ""
		if err != nil {
			detail = err.Error()
		}
		a.jrnl.RecordConnectionEvent(conn.PeerName(), journal.ConnectionClosed, detail, time.Now())
	}
	a.log.Info("disconnected from host", zap.String("host", conn.PeerName()), zap.Error(err))
}

func (a *Agent) readLoop(conn wireConn) {
	for ev := range conn.Recv() {
		if a.stats != nil {
			a.stats.IncrementEvent(conn.PeerName(), event.TagOf(ev))
		}
		switch e := ev.(type) {
		case event.FocusGrant:
			a.onFocusGrant(conn, e)
		case event.MouseMove:
			a.injectMove(conn, e)
		case event.MouseButton:
			a.injectIfOwned(input.RawEvent{Kind: input.KindMouseButton, Button: e.Button, Pressed: e.Pressed})
		case event.MouseScroll:
			a.injectIfOwned(input.RawEvent{Kind: input.KindMouseScroll, DX: int32(e.DX), DY: int32(e.DY)})
		case event.KeyEvent:
			a.injectIfOwned(input.RawEvent{Kind: input.KindKey, Code: e.Code, Pressed: e.Pressed, Modifiers: e.Modifiers})
		default:
			// FocusRelease/Heartbeat/handshake frames are host-directed or
			// filtered by internal/wire already; nothing to do here.
		}
	}
}

func (a *Agent) onFocusGrant(conn wireConn, g event.FocusGrant) {
	a.mu.Lock()
	a.remoteOwned = true
	a.pos = topology.Point{X: g.EntryX, Y: g.EntryY}
	a.mu.Unlock()

	if err := a.device.Grab(); err != nil {
		a.log.Error("grab failed on focus grant", zap.Error(err))
	}
	if err := a.device.Inject(input.RawEvent{Kind: input.KindMouseWarp, DX: g.EntryX, DY: g.EntryY}); err != nil {
		a.log.Warn("cursor warp failed", zap.Error(err))
	}
	if a.jrnl != nil {
		a.jrnl.RecordFocusEvent("remote", conn.PeerName(), g.EnteredEdge.String(), time.Now())
	}
}

func (a *Agent) injectIfOwned(raw input.RawEvent) {
	a.mu.RLock()
	owned := a.remoteOwned
	a.mu.RUnlock()
	if !owned {
		return
	}
	if err := a.device.Inject(raw); err != nil {
		a.log.Warn("inject failed", zap.String("op", "inject"), zap.Error(err))
	}
}

// injectMove injects a relative MouseMove and, because the agent is the
// only party that now knows where its injected cursor sits, tracks the
// accumulated position to detect a crossing back toward the host.
func (a *Agent) injectMove(conn wireConn, e event.MouseMove) {
	a.mu.Lock()
	if !a.remoteOwned {
		a.mu.Unlock()
		return
	}
	a.pos.X = clamp(a.pos.X+e.DX, 0, a.localBounds.Width-1)
	a.pos.Y = clamp(a.pos.Y+e.DY, 0, a.localBounds.Height-1)
	pos := a.pos
	a.mu.Unlock()

	if err := a.device.Inject(input.RawEvent{Kind: input.KindMouseMove, DX: e.DX, DY: e.DY}); err != nil {
		a.log.Warn("inject move failed", zap.Error(err))
	}

	hit, ok := topology.HitTest(pos, a.localBounds, a.threshold)
	if !ok {
		return
	}
	a.mu.RLock()
	host := a.hostName
	a.mu.RUnlock()
	if neighbor, found := a.topo.Neighbor(hit.Edge); found && neighbor == host {
		a.releaseFocus(conn, hit.Edge)
	}
}

func (a *Agent) releaseFocus(conn wireConn, edge event.Edge) {
	a.mu.Lock()
	a.remoteOwned = false
	a.mu.Unlock()

	if err := conn.Send(event.FocusRelease{From: a.cfg.SelfName, ExitEdge: edge}); err != nil {
		a.log.Warn("send focus release failed", zap.Error(err))
	}
	if err := a.device.Ungrab(); err != nil {
		a.log.Error("ungrab failed on focus release", zap.Error(err))
	}
	if a.jrnl != nil {
		a.jrnl.RecordFocusEvent("local", conn.PeerName(), edge.String(), time.Now())
	}
}

// RemoteOwned reports whether this agent currently owns injected input,
// for the status dashboard.
func (a *Agent) RemoteOwned() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.remoteOwned
}

// HostName reports the currently (or most recently) connected host name.
func (a *Agent) HostName() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.hostName
}

func clamp(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
