// Package codec frames kernel system calls and upcalls for transport
// over a byte stream. Frames are fixed-size little-endian records; only
// memory grants carry a variable payload.
package codec

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Kind identifies a frame.
type Kind uint8

// Frame kinds. Subscribe, Command and Allow flow toward the kernel;
// Reply and Upcall flow back. The kernel also emits Allow frames to
// mirror grants it wrote into back to their owner.
const (
	KindSubscribe Kind = iota + 1
	KindCommand
	KindAllow
	KindReply
	KindUpcall
)

var kindNames = map[Kind]string{
	KindSubscribe: "subscribe",
	KindCommand:   "command",
	KindAllow:     "allow",
	KindReply:     "reply",
	KindUpcall:    "upcall",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind %d", uint8(k))
}

// FrameSize is the fixed record length; an Allow frame is followed by
// Words[2] payload bytes.
const FrameSize = 28

// MaxPayload bounds grant payloads; larger grants indicate a corrupt or
// hostile stream.
const MaxPayload = 1 << 24

// Frame is one record on the wire. Word meaning per kind:
//
//	subscribe  driver, sub, active
//	command    driver, op, arg1, arg2
//	allow      driver, slot, payload length, active
//	reply      status, value            (Seq echoes the request)
//	upcall     driver, sub, status, data1, data2
//
// The active word is 1 to register and 0 to revoke.
//
// Status words carry two's-complement kernel statuses.
type Frame struct {
	Kind    Kind
	Seq     uint32
	Words   [5]uint32
	Payload []byte
}

// Write encodes f onto w as one contiguous record.
func Write(w io.Writer, f *Frame) error {
	if f.Kind == KindAllow && len(f.Payload) > MaxPayload {
		return fmt.Errorf("codec: grant of %d bytes exceeds limit", len(f.Payload))
	}

	var buf [FrameSize]byte
	buf[0] = byte(f.Kind)
	binary.LittleEndian.PutUint32(buf[4:], f.Seq)
	for i, word := range f.Words {
		binary.LittleEndian.PutUint32(buf[8+i*4:], word)
	}
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	if f.Kind == KindAllow && len(f.Payload) > 0 {
		if _, err := w.Write(f.Payload); err != nil {
			return err
		}
	}
	return nil
}

// Read decodes the next record from r into f, allocating the payload
// for Allow frames.
func Read(r io.Reader, f *Frame) error {
	var buf [FrameSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}

	f.Kind = Kind(buf[0])
	if _, ok := kindNames[f.Kind]; !ok {
		return fmt.Errorf("codec: unknown frame %s", f.Kind)
	}
	f.Seq = binary.LittleEndian.Uint32(buf[4:])
	for i := range f.Words {
		f.Words[i] = binary.LittleEndian.Uint32(buf[8+i*4:])
	}

	f.Payload = nil
	if f.Kind == KindAllow {
		n := f.Words[2]
		if n > MaxPayload {
			return fmt.Errorf("codec: grant of %d bytes exceeds limit", n)
		}
		if n > 0 {
			f.Payload = make([]byte, n)
			if _, err := io.ReadFull(r, f.Payload); err != nil {
				return err
			}
		}
	}
	return nil
}
