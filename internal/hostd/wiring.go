// wiring.go adapts the concrete internal/wire types to the small
// interfaces host.go depends on, so host.go's routing logic can be
// exercised against fakes in tests without a live TCP socket.
package hostd

import (
	"context"

	"github.com/multishiva/multishiva/internal/event"
	"github.com/multishiva/multishiva/internal/wire"
)

// listenerAdapter satisfies listenerHandle for a real *wire.Listener.
type listenerAdapter struct{ l *wire.Listener }

// NewListenerAdapter wraps a live wire.Listener for use with AttachListener.
func NewListenerAdapter(l *wire.Listener) listenerHandle {
	return listenerAdapter{l: l}
}

func (a listenerAdapter) AcceptOne(ctx context.Context) (wireConn, error) {
	conn, err := a.l.AcceptOne(ctx)
	if err != nil {
		return nil, err
	}
	return wireConnAdapter{conn}, nil
}

func (a listenerAdapter) Close() error { return a.l.Close() }

// wireConnAdapter implements hostd's wireConn interface over a real
// *wire.Connection.
type wireConnAdapter struct{ c *wire.Connection }

func (a wireConnAdapter) PeerName() string              { return a.c.PeerName }
func (a wireConnAdapter) RemoteAddr() string            { return a.c.RemoteAddr }
func (a wireConnAdapter) Send(e event.Event) error      { return a.c.Send(e) }
func (a wireConnAdapter) Recv() <-chan event.Event      { return a.c.Recv() }
func (a wireConnAdapter) Run(ctx context.Context) error { return a.c.Run(ctx) }
func (a wireConnAdapter) Close() error                  { return a.c.Close() }
