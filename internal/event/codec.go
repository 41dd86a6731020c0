package event

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// MaxBodySize is the maximum encoded event body: a frame larger than this
// is a fatal FrameTooLarge protocol error.
const MaxBodySize = 64 * 1024

// Encode renders e as a tag byte followed by its fields, all integers
// big-endian. It does not include the 4-byte length prefix;
// see WriteFrame/ReadFrame for the on-wire framing.
func Encode(e Event) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(e.tag()))

	switch v := e.(type) {
	case MouseMove:
		writeI32(&buf, v.DX)
		writeI32(&buf, v.DY)
	case MouseAbs:
		writeI32(&buf, v.X)
		writeI32(&buf, v.Y)
	case MouseButton:
		buf.WriteByte(v.Button)
		writeBool(&buf, v.Pressed)
	case MouseScroll:
		writeI16(&buf, v.DX)
		writeI16(&buf, v.DY)
	case KeyEvent:
		writeU32(&buf, v.Code)
		writeBool(&buf, v.Pressed)
		buf.WriteByte(v.Modifiers)
	case FocusGrant:
		if err := writeString(&buf, v.From); err != nil {
			return nil, err
		}
		buf.WriteByte(byte(v.EnteredEdge))
		writeI32(&buf, v.EntryX)
		writeI32(&buf, v.EntryY)
	case FocusRelease:
		if err := writeString(&buf, v.From); err != nil {
			return nil, err
		}
		buf.WriteByte(byte(v.ExitEdge))
	case Heartbeat:
		writeU32(&buf, v.Seq)
		writeU64(&buf, v.MonotonicMS)
	case HandshakeHello:
		if err := writeString(&buf, v.MachineName); err != nil {
			return nil, err
		}
		writeU16(&buf, v.ProtocolVersion)
		if err := writeBytes(&buf, v.AuthProof); err != nil {
			return nil, err
		}
	case HandshakeAccept:
		if err := writeString(&buf, v.MachineName); err != nil {
			return nil, err
		}
		writeU16(&buf, v.ProtocolVersion)
	default:
		return nil, fmt.Errorf("event: unencodable type %T", e)
	}

	if buf.Len() > MaxBodySize {
		return nil, newProtocolError(FrameTooLarge, fmt.Errorf("body %d bytes exceeds %d", buf.Len(), MaxBodySize))
	}
	return buf.Bytes(), nil
}

// Decode parses a body (as produced by Encode, without the length prefix)
// back into an Event. Unknown tags return an UnknownTag *ProtocolError,
// which is recoverable: the caller may skip the frame and continue.
func Decode(body []byte) (Event, error) {
	if len(body) < 1 {
		return nil, newProtocolError(TruncatedFrame, fmt.Errorf("empty body"))
	}
	r := bytes.NewReader(body[1:])
	switch Tag(body[0]) {
	case TagMouseMove:
		dx, dy, err := readI32Pair(r)
		return MouseMove{DX: dx, DY: dy}, err
	case TagMouseAbs:
		x, y, err := readI32Pair(r)
		return MouseAbs{X: x, Y: y}, err
	case TagMouseButton:
		button, err := readByte(r)
		if err != nil {
			return nil, truncated(err)
		}
		pressed, err := readBool(r)
		return MouseButton{Button: button, Pressed: pressed}, err
	case TagMouseScroll:
		dx, err := readI16(r)
		if err != nil {
			return nil, truncated(err)
		}
		dy, err := readI16(r)
		return MouseScroll{DX: dx, DY: dy}, err
	case TagKeyEvent:
		code, err := readU32(r)
		if err != nil {
			return nil, truncated(err)
		}
		pressed, err := readBool(r)
		if err != nil {
			return nil, truncated(err)
		}
		mods, err := readByte(r)
		return KeyEvent{Code: code, Pressed: pressed, Modifiers: mods}, err
	case TagFocusGrant:
		from, err := readString(r)
		if err != nil {
			return nil, truncated(err)
		}
		edgeB, err := readByte(r)
		if err != nil {
			return nil, truncated(err)
		}
		x, y, err := readI32Pair(r)
		return FocusGrant{From: from, EnteredEdge: Edge(edgeB), EntryX: x, EntryY: y}, err
	case TagFocusRelease:
		from, err := readString(r)
		if err != nil {
			return nil, truncated(err)
		}
		edgeB, err := readByte(r)
		return FocusRelease{From: from, ExitEdge: Edge(edgeB)}, err
	case TagHeartbeat:
		seq, err := readU32(r)
		if err != nil {
			return nil, truncated(err)
		}
		mono, err := readU64(r)
		return Heartbeat{Seq: seq, MonotonicMS: mono}, err
	case TagHandshakeHello:
		name, err := readString(r)
		if err != nil {
			return nil, truncated(err)
		}
		ver, err := readU16(r)
		if err != nil {
			return nil, truncated(err)
		}
		proof, err := readBytes(r)
		return HandshakeHello{MachineName: name, ProtocolVersion: ver, AuthProof: proof}, err
	case TagHandshakeAccept:
		name, err := readString(r)
		if err != nil {
			return nil, truncated(err)
		}
		ver, err := readU16(r)
		return HandshakeAccept{MachineName: name, ProtocolVersion: ver}, err
	default:
		return nil, newProtocolError(UnknownTag, fmt.Errorf("tag %d", body[0]))
	}
}

func truncated(err error) error {
	if err == nil {
		return nil
	}
	return newProtocolError(TruncatedFrame, err)
}

func writeBool(buf *bytes.Buffer, b bool) {
	if b {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func writeI16(buf *bytes.Buffer, v int16)  { writeU16(buf, uint16(v)) }
func writeU16(buf *bytes.Buffer, v uint16) { _ = binary.Write(buf, binary.BigEndian, v) }
func writeI32(buf *bytes.Buffer, v int32)  { writeU32(buf, uint32(v)) }
func writeU32(buf *bytes.Buffer, v uint32) { _ = binary.Write(buf, binary.BigEndian, v) }
func writeU64(buf *bytes.Buffer, v uint64) { _ = binary.Write(buf, binary.BigEndian, v) }

func writeString(buf *bytes.Buffer, s string) error {
	return writeBytes(buf, []byte(s))
}

func writeBytes(buf *bytes.Buffer, b []byte) error {
	if len(b) > 0xFFFF {
		return newProtocolError(FrameTooLarge, fmt.Errorf("field of %d bytes exceeds 65535", len(b)))
	}
	writeU16(buf, uint16(len(b)))
	buf.Write(b)
	return nil
}

func readByte(r *bytes.Reader) (uint8, error) { return r.ReadByte() }

func readBool(r *bytes.Reader) (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, truncated(err)
	}
	return b != 0, nil
}

func readI16(r *bytes.Reader) (int16, error) {
	v, err := readU16(r)
	return int16(v), err
}

func readU16(r *bytes.Reader) (uint16, error) {
	var v uint16
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, truncated(err)
	}
	return v, nil
}

func readI32Pair(r *bytes.Reader) (int32, int32, error) {
	a, err := readU32(r)
	if err != nil {
		return 0, 0, truncated(err)
	}
	b, err := readU32(r)
	if err != nil {
		return 0, 0, truncated(err)
	}
	return int32(a), int32(b), nil
}

func readU32(r *bytes.Reader) (uint32, error) {
	var v uint32
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, truncated(err)
	}
	return v, nil
}

func readU64(r *bytes.Reader) (uint64, error) {
	var v uint64
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, truncated(err)
	}
	return v, nil
}

func readString(r *bytes.Reader) (string, error) {
	b, err := readBytes(r)
	return string(b), err
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := readU16(r)
	if err != nil {
		return nil, truncated(err)
	}
	b := make([]byte, n)
	if n > 0 {
		if _, err := readFull(r, b); err != nil {
			return nil, truncated(err)
		}
	}
	return b, nil
}

func readFull(r *bytes.Reader, b []byte) (int, error) {
	read := 0
	for read < len(b) {
		n, err := r.Read(b[read:])
		read += n
		if err != nil {
			return read, err
		}
	}
	return read, nil
}
