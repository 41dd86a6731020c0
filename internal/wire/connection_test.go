package wire

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/multishiva/multishiva/internal/event"
)

// TestMain checks that the accept/dial/Run goroutines this package spawns
// always wind down, the same leak-detection discipline
// dantte-lp-gobfd's bfd package tests apply to its session goroutines.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDialAcceptHandshakeOverTCP(t *testing.T) {
	log := zap.NewNop()
	secret := []byte("shared-secret")

	ln, err := Listen(log, "127.0.0.1:0", "host", secret)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan *Connection, 1)
	acceptErr := make(chan error, 1)
	go func() {
		conn, err := ln.AcceptOne(context.Background())
		accepted <- conn
		acceptErr <- err
	}()

	fps := openFingerprintStore(t)
	client, err := Dial(context.Background(), log, ln.Addr().String(), "agent", secret, fps)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	if err := <-acceptErr; err != nil {
		t.Fatalf("AcceptOne: %v", err)
	}
	server := <-accepted
	defer server.Close()

	if client.PeerName != "host" {
		t.Fatalf("client sees peer %q, want host", client.PeerName)
	}
	if server.PeerName != "agent" {
		t.Fatalf("server sees peer %q, want agent", server.PeerName)
	}
	if client.State() != Authenticated || server.State() != Authenticated {
		t.Fatalf("expected both sides Authenticated, got %s / %s", client.State(), server.State())
	}
}

func TestConnectionSendRecvAfterRun(t *testing.T) {
	log := zap.NewNop()
	secret := []byte("shared-secret")

	ln, err := Listen(log, "127.0.0.1:0", "host", secret)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	serverCh := make(chan *Connection, 1)
	go func() {
		conn, err := ln.AcceptOne(context.Background())
		if err == nil {
			serverCh <- conn
		}
	}()

	fps := openFingerprintStore(t)
	client, err := Dial(context.Background(), log, ln.Addr().String(), "agent", secret, fps)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	server := <-serverCh

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)
	go server.Run(ctx)
	defer client.Close()
	defer server.Close()

	want := event.KeyEvent{Code: 42, Pressed: true}
	if err := client.Send(want); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case got := <-server.Recv():
		if got != event.Event(want) {
			t.Fatalf("got %#v, want %#v", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
}
