// Handshake authenticates a new connection: a PSK-derived proof authenticates the
// dialer to the listener, then the dialer pins the listener's name against
// the fingerprint store (trust-on-first-use). Grounded on the now-deleted
// teacher protocol handshake shape (single hello/accept exchange) and
// generalized with an HMAC proof plus a nonce carried over the wire to
// block replay; nonces are generated with the teacher's dependency
// github.com/google/uuid rather than crypto/rand directly, since a UUIDv4
// already is 16 bytes of crypto/rand under the hood and the pack uses it
// elsewhere for exactly this "opaque 128-bit value" role.
package wire

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/multishiva/multishiva/internal/event"
	"github.com/multishiva/multishiva/internal/fingerprint"
)

// ProtocolVersion is this build's offered handshake version.
const ProtocolVersion uint16 = 1

func buildProof(secret []byte, claimedName string) []byte {
	nonce := uuid.New()
	mac := hmac.New(sha256.New, secret)
	mac.Write(nonce[:])
	mac.Write([]byte(claimedName))
	sum := mac.Sum(nil)
	return append(nonce[:], sum...)
}

func verifyProof(secret []byte, claimedName string, proof []byte) bool {
	if len(proof) < 16 {
		return false
	}
	nonce, sum := proof[:16], proof[16:]
	mac := hmac.New(sha256.New, secret)
	mac.Write(nonce)
	mac.Write([]byte(claimedName))
	return hmac.Equal(mac.Sum(nil), sum)
}

// negotiateVersion picks the lower of the two offered versions; 0 on
// either side means incompatible.
func negotiateVersion(a, b uint16) (uint16, bool) {
	lower := a
	if b < lower {
		lower = b
	}
	if lower == 0 {
		return 0, false
	}
	return lower, true
}

// frameIO is the minimal transport the handshake needs: write one event,
// read one event. *Connection's underlying net.Conn satisfies this via
// event.WriteFrame/ReadFrame.
type frameIO interface {
	writeEvent(event.Event) error
	readEvent() (event.Event, error)
}

// clientHandshake is run by the dialing side: send the proof, check the
// server's offered version, then pin its fingerprint.
func clientHandshake(ctx context.Context, io frameIO, selfName string, secret []byte, fps *fingerprint.Store, now time.Time) (peerName string, err error) {
	hello := event.HandshakeHello{
		MachineName:     selfName,
		ProtocolVersion: ProtocolVersion,
		AuthProof:       buildProof(secret, selfName),
	}
	if err := io.writeEvent(hello); err != nil {
		return "", fmt.Errorf("wire: send hello: %w", err)
	}

	ev, err := io.readEvent()
	if err != nil {
		return "", fmt.Errorf("wire: read accept: %w", err)
	}
	accept, ok := ev.(event.HandshakeAccept)
	if !ok {
		return "", fmt.Errorf("wire: expected HandshakeAccept, got %T", ev)
	}
	if _, ok := negotiateVersion(ProtocolVersion, accept.ProtocolVersion); !ok {
		return "", &AuthError{Kind: VersionIncompatible, Peer: accept.MachineName}
	}

	digest := fingerprint.Compute(secret, accept.MachineName)
	verdict, ferr := fps.Verify(accept.MachineName, digest, now)
	if ferr != nil {
		return "", fmt.Errorf("wire: fingerprint store: %w", ferr)
	}
	if verdict == fingerprint.Mismatch {
		return "", &AuthError{Kind: FingerprintMismatch, Peer: accept.MachineName}
	}
	return accept.MachineName, nil
}

// serverHandshake is run by the listening side: verify the proof and
// reject a replayed nonce, then negotiate a version and accept. nonces
// may be nil (no replay guard, used in tests); in production it's a
// listener-wide cache shared across every inbound handshake.
func serverHandshake(ctx context.Context, io frameIO, selfName string, secret []byte, nonces *nonceCache) (peerName string, err error) {
	ev, err := io.readEvent()
	if err != nil {
		return "", fmt.Errorf("wire: read hello: %w", err)
	}
	hello, ok := ev.(event.HandshakeHello)
	if !ok {
		return "", fmt.Errorf("wire: expected HandshakeHello, got %T", ev)
	}
	if !verifyProof(secret, hello.MachineName, hello.AuthProof) {
		return "", &AuthError{Kind: BadSecret, Peer: hello.MachineName}
	}
	if nonces != nil && len(hello.AuthProof) >= 16 && !nonces.markSeen(string(hello.AuthProof[:16]), time.Now()) {
		return "", &AuthError{Kind: BadSecret, Peer: hello.MachineName}
	}
	version, ok := negotiateVersion(ProtocolVersion, hello.ProtocolVersion)
	if !ok {
		return "", &AuthError{Kind: VersionIncompatible, Peer: hello.MachineName}
	}
	if err := io.writeEvent(event.HandshakeAccept{MachineName: selfName, ProtocolVersion: version}); err != nil {
		return "", fmt.Errorf("wire: send accept: %w", err)
	}
	return hello.MachineName, nil
}
