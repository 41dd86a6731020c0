// Package wire implements the connection lifecycle: framed
// transport, handshake, heartbeat-driven degrade/close, and jittered
// exponential-backoff reconnection. Grounded on the teacher's peer
// package: backoff.go and dedupe.go are adapted almost as-is (see their
// own doc comments); the steady-state connection shape (dial/reader/
// writer goroutines coordinated by a shutdown channel and a sync.Once)
// follows the now-deleted-but-read rbn/client.go connection struct.
package wire

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/multishiva/multishiva/internal/event"
	"github.com/multishiva/multishiva/internal/fingerprint"
)

const (
	// HandshakeBudget is the total time a handshake may take before the
	// socket is closed.
	HandshakeBudget = 5 * time.Second
	// HeartbeatInterval is how often each side emits a Heartbeat.
	HeartbeatInterval = 1 * time.Second
	// degradedMultiplier/closeMultiplier are multiples of HeartbeatInterval
	// with no inbound frame of any tag: three missed beats means the link
	// is probably congested or half-dead, five means it's gone.
	degradedMultiplier = 3
	closeMultiplier    = 5
	// SendQueueDepth is the per-direction channel capacity: large enough to
	// absorb a burst without a slow writer stalling the capture path.
	SendQueueDepth = 256
)

// netFrameIO adapts a net.Conn to frameIO using internal/event's framing.
type netFrameIO struct {
	conn net.Conn
}

func (n netFrameIO) writeEvent(e event.Event) error {
	return event.WriteFrame(n.conn, e)
}

func (n netFrameIO) readEvent() (event.Event, error) {
	return event.ReadFrame(n.conn)
}

// Connection is a transport session to one peer. PeerName is empty until
// the handshake completes.
type Connection struct {
	log *zap.Logger

	mu         sync.RWMutex
	PeerName   string
	RemoteAddr string
	Fingerprint fingerprint.Digest
	state      State
	lastHeartbeat time.Time

	conn net.Conn
	send chan event.Event
	recv chan event.Event

	closeOnce sync.Once
	closed    chan struct{}
}

// Accept completes the listener (host) side of a new connection: reads
// the hello, verifies the PSK proof, and responds with an accept. nonces
// guards against a captured hello being replayed and is shared across
// every connection a Listener accepts. The caller owns starting Run
// afterward.
func Accept(ctx context.Context, log *zap.Logger, conn net.Conn, selfName string, secret []byte, nonces *nonceCache) (*Connection, error) {
	ctx, cancel := context.WithTimeout(ctx, HandshakeBudget)
	defer cancel()
	_ = conn.SetDeadline(deadlineFrom(ctx))

	peerName, err := serverHandshake(ctx, netFrameIO{conn}, selfName, secret, nonces)
	if err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	c := newConnection(log, conn, peerName, fingerprint.Compute(secret, peerName))
	return c, nil
}

// Dial completes the dialing (agent) side of a new connection: sends the
// hello, verifies version and the server's pinned fingerprint.
func Dial(ctx context.Context, log *zap.Logger, addr string, selfName string, secret []byte, fps *fingerprint.Store) (*Connection, error) {
	dialCtx, cancel := context.WithTimeout(ctx, HandshakeBudget)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("wire: dial %s: %w", addr, err)
	}
	_ = conn.SetDeadline(deadlineFrom(dialCtx))

	peerName, err := clientHandshake(dialCtx, netFrameIO{conn}, selfName, secret, fps, time.Now())
	if err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	c := newConnection(log, conn, peerName, fingerprint.Compute(secret, peerName))
	c.RemoteAddr = addr
	return c, nil
}

func deadlineFrom(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		return dl
	}
	return time.Now().Add(HandshakeBudget)
}

func newConnection(log *zap.Logger, conn net.Conn, peerName string, fp fingerprint.Digest) *Connection {
	return &Connection{
		log:           log,
		PeerName:      peerName,
		RemoteAddr:    conn.RemoteAddr().String(),
		Fingerprint:   fp,
		state:         Authenticated,
		lastHeartbeat: time.Now(),
		conn:          conn,
		send:          make(chan event.Event, SendQueueDepth),
		recv:          make(chan event.Event, SendQueueDepth),
		closed:        make(chan struct{}),
	}
}

// State returns the connection's current lifecycle state.
func (c *Connection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Connection) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Send enqueues an event for transmission, preserving program order.
// Never blocks past the connection closing.
func (c *Connection) Send(e event.Event) error {
	select {
	case c.send <- e:
		return nil
	case <-c.closed:
		return fmt.Errorf("wire: connection to %s closed", c.PeerName)
	}
}

// Recv is the inbound event stream, in wire order.
func (c *Connection) Recv() <-chan event.Event {
	return c.recv
}

// Run drives the connection's steady state: a writer
// goroutine draining Send, a reader goroutine filling Recv, and a
// heartbeat monitor that demotes to Degraded/Closed on silence. Returns
// when the connection closes, for any reason.
func (c *Connection) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.writeLoop(ctx) })
	g.Go(func() error { return c.readLoop(ctx) })
	g.Go(func() error { return c.heartbeatLoop(ctx) })

	err := g.Wait()
	c.Close()
	return err
}

func (c *Connection) writeLoop(ctx context.Context) error {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()
	var seq uint32
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.closed:
			return nil
		case e := <-c.send:
			if err := event.WriteFrame(c.conn, e); err != nil {
				return fmt.Errorf("wire: write: %w", err)
			}
		case <-ticker.C:
			seq++
			hb := event.Heartbeat{Seq: seq, MonotonicMS: uint64(time.Now().UnixMilli())}
			if err := event.WriteFrame(c.conn, hb); err != nil {
				return fmt.Errorf("wire: heartbeat write: %w", err)
			}
		}
	}
}

func (c *Connection) readLoop(ctx context.Context) error {
	for {
		e, err := event.ReadFrame(c.conn)
		if err != nil {
			return fmt.Errorf("wire: read: %w", err)
		}
		c.mu.Lock()
		c.lastHeartbeat = time.Now()
		c.mu.Unlock()

		if _, ok := e.(event.Heartbeat); ok {
			continue
		}
		select {
		case c.recv <- e:
		case <-ctx.Done():
			return nil
		case <-c.closed:
			return nil
		}
	}
}

func (c *Connection) heartbeatLoop(ctx context.Context) error {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.closed:
			return nil
		case <-ticker.C:
			c.mu.RLock()
			silence := time.Since(c.lastHeartbeat)
			c.mu.RUnlock()

			switch {
			case silence >= closeMultiplier*HeartbeatInterval:
				c.log.Warn("connection silent past close threshold, closing", zap.String("peer", c.PeerName), zap.Duration("silence", silence))
				return fmt.Errorf("wire: %s silent for %s, closing", c.PeerName, silence)
			case silence >= degradedMultiplier*HeartbeatInterval:
				if c.State() != Degraded {
					c.log.Warn("connection degraded", zap.String("peer", c.PeerName), zap.Duration("silence", silence))
					c.setState(Degraded)
				}
			default:
				if c.State() == Degraded {
					c.setState(Authenticated)
				}
			}
		}
	}
}

// Close idempotently tears down the connection: any in-flight send is
// abandoned, the receive side is drained by the reader simply stopping.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.setState(Closed)
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}
