package event

import (
	"encoding/binary"
	"fmt"
	"io"
)

// WriteFrame writes e to w as a 4-byte big-endian length prefix followed by
// its encoded body.
func WriteFrame(w io.Writer, e Event) error {
	body, err := Encode(e)
	if err != nil {
		return err
	}
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(body)))
	if _, err := w.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("wire: write length prefix: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("wire: write body: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r and decodes it. A body
// larger than MaxBodySize is a fatal FrameTooLarge error; the caller must
// close the connection rather than attempt to resynchronize.
func ReadFrame(r io.Reader) (Event, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return nil, fmt.Errorf("wire: read length prefix: %w", err)
	}
	n := binary.BigEndian.Uint32(lenPrefix[:])
	if n > MaxBodySize {
		return nil, newProtocolError(FrameTooLarge, fmt.Errorf("declared body %d bytes exceeds %d", n, MaxBodySize))
	}
	body := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, newProtocolError(TruncatedFrame, err)
		}
	}
	return Decode(body)
}
