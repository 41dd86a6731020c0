// wiring.go adapts internal/wire's concrete Reconnector/Connection to the
// small interfaces agent.go depends on, the same pattern internal/hostd
// uses on the listener side.
package agentd

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/multishiva/multishiva/internal/event"
	"github.com/multishiva/multishiva/internal/fingerprint"
	"github.com/multishiva/multishiva/internal/wire"
)

// wireConnAdapter implements agentd's wireConn over a real *wire.Connection.
type wireConnAdapter struct{ c *wire.Connection }

func (a wireConnAdapter) PeerName() string              { return a.c.PeerName }
func (a wireConnAdapter) Send(e event.Event) error      { return a.c.Send(e) }
func (a wireConnAdapter) Recv() <-chan event.Event      { return a.c.Recv() }
func (a wireConnAdapter) Run(ctx context.Context) error { return a.c.Run(ctx) }
func (a wireConnAdapter) Close() error                  { return a.c.Close() }

// reconnectorAdapter implements agentd's dialer over a real
// *wire.Reconnector.
type reconnectorAdapter struct{ r *wire.Reconnector }

func (a reconnectorAdapter) Run(ctx context.Context, onConnected func(wireConn)) error {
	return a.r.Run(ctx, func(conn *wire.Connection) {
		onConnected(wireConnAdapter{conn})
	})
}

// NewDialerFactory returns the newDialer func Agent.Run expects, backed by
// a real wire.Reconnector constructed per resolved address.
func NewDialerFactory(log *zap.Logger, selfName string, secret []byte, fps *fingerprint.Store, reconnectDelay time.Duration) func(addr string) dialer {
	return func(addr string) dialer {
		return reconnectorAdapter{r: wire.NewReconnector(log, addr, selfName, secret, fps, reconnectDelay)}
	}
}
