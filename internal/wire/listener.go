package wire

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
)

// nonceCacheTTL bounds how long a handshake nonce is remembered for
// replay detection; well past the 5s handshake budget is enough.
const nonceCacheTTL = 2 * time.Minute

// Listener accepts inbound connections on behalf of the host orchestrator,
// sharing one replay-guard nonce cache across every
// handshake it completes.
type Listener struct {
	log    *zap.Logger
	ln     net.Listener
	self   string
	secret []byte
	nonces *nonceCache
}

// Listen binds addr and returns a Listener ready to Accept.
func Listen(log *zap.Logger, addr, selfName string, secret []byte) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("wire: listen %s: %w", addr, err)
	}
	return &Listener{
		log:    log,
		ln:     ln,
		self:   selfName,
		secret: secret,
		nonces: newNonceCache(nonceCacheTTL),
	}, nil
}

// Addr returns the bound local address, useful when addr was ":0".
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// AcceptOne blocks for the next inbound TCP connection and runs the
// handshake on it. A failed handshake closes the raw socket and returns
// an error; callers should log and keep calling AcceptOne, not exit the
// accept loop — one bad actor or stale fingerprint shouldn't take the
// host offline for every other peer.
func (l *Listener) AcceptOne(ctx context.Context) (*Connection, error) {
	raw, err := l.ln.Accept()
	if err != nil {
		return nil, fmt.Errorf("wire: accept: %w", err)
	}
	l.nonces.prune(time.Now())
	return Accept(ctx, l.log, raw, l.self, l.secret, l.nonces)
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	return l.ln.Close()
}
