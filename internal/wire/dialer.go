package wire

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/multishiva/multishiva/internal/fingerprint"
)

// MaxConsecutiveAuthErrors is the agent's give-up ceiling. A run of this
// many consecutive *AuthError dial failures, with no successful
// connection in between, ends Run with an error instead of retrying
// forever — a misconfigured secret or a permanently unrecognized
// fingerprint should surface to the operator, not retry silently until
// killed.
const MaxConsecutiveAuthErrors = 5

// Reconnector redials one peer forever, honoring ctx cancellation, with
// jittered exponential backoff starting at reconnectDelay.
// Each successful dial's Connection is handed to onConnected, which
// should run it (via Connection.Run) and return when it drops so
// Reconnector can schedule the next attempt.
type Reconnector struct {
	log            *zap.Logger
	addr           string
	selfName       string
	secret         []byte
	fps            *fingerprint.Store
	reconnectDelay time.Duration
}

// NewReconnector builds a Reconnector for one peer address.
func NewReconnector(log *zap.Logger, addr, selfName string, secret []byte, fps *fingerprint.Store, reconnectDelay time.Duration) *Reconnector {
	return &Reconnector{
		log:            log,
		addr:           addr,
		selfName:       selfName,
		secret:         secret,
		fps:            fps,
		reconnectDelay: reconnectDelay,
	}
}

// Run dials, hands the connection to onConnected, and on disconnect waits
// out a jittered backoff before redialing. Returns nil when ctx is
// cancelled, or the last *AuthError once MaxConsecutiveAuthErrors
// consecutive dial attempts are all refused on authentication grounds.
func (r *Reconnector) Run(ctx context.Context, onConnected func(*Connection)) error {
	b := newBackoff(r.reconnectDelay)
	var consecutiveAuthErrors int
	for {
		if ctx.Err() != nil {
			return nil
		}
		conn, err := Dial(ctx, r.log, r.addr, r.selfName, r.secret, r.fps)
		if err != nil {
			var authErr *AuthError
			if errors.As(err, &authErr) {
				consecutiveAuthErrors++
				if consecutiveAuthErrors >= MaxConsecutiveAuthErrors {
					return authErr
				}
			} else {
				consecutiveAuthErrors = 0
			}
			r.log.Warn("dial failed, backing off", zap.String("addr", r.addr), zap.Error(err))
			select {
			case <-time.After(b.Next()):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		consecutiveAuthErrors = 0
		b.Reset(r.reconnectDelay)
		r.log.Info("connected", zap.String("peer", conn.PeerName), zap.String("addr", r.addr))
		onConnected(conn)
		select {
		case <-time.After(b.Next()):
		case <-ctx.Done():
			return nil
		}
	}
}
