package kernel

import (
	"bytes"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/BeatGlow/screen/internal/codec"
)

// A Target is a kernel-side Conn whose grant contents can be inspected,
// so a serving session can mirror kernel writes back to remote clients.
// Conns that embed Registry satisfy it.
type Target interface {
	Conn

	// Grant returns the granted buffer for (driver, slot), or nil.
	Grant(driver, slot uint32) []byte
}

// Serve accepts connections on l and lets each drive k over the frame
// protocol, the counterpart of Dial. Sessions share the target's single
// set of subscriptions and grants; run one client at a time.
func Serve(l net.Listener, k Target) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			return err
		}
		go ServeConn(conn, k)
	}
}

// ServeConn runs one client session on rwc until the stream fails or
// closes, then revokes the session's subscriptions and grants.
func ServeConn(rwc io.ReadWriteCloser, k Target) {
	s := &session{
		k:      k,
		rwc:    rwc,
		shadow: make(map[capKey][]byte),
		subs:   make(map[capKey]bool),
	}
	s.run()
}

// capKey addresses one subscription or grant of one driver.
type capKey struct {
	driver, index uint32
}

// session bridges one remote client onto a kernel-side conn. Grants
// degrade to kernel-side copies of the client's buffers; when the
// kernel writes into a grant, the session mirrors the new contents back
// to the client before the upcall that exposes them.
type session struct {
	k   Target
	rwc io.ReadWriteCloser

	wmu sync.Mutex // one frame on the wire at a time

	mu     sync.Mutex        // upcalls race the read loop
	shadow map[capKey][]byte // grant contents the client last saw
	subs   map[capKey]bool
}

func (s *session) run() {
	defer s.rwc.Close()
	defer s.cleanup()

	var f codec.Frame
	for {
		if err := codec.Read(s.rwc, &f); err != nil {
			return
		}
		switch f.Kind {
		case codec.KindSubscribe:
			s.subscribe(&f)
		case codec.KindCommand:
			value, err := s.k.Command(f.Words[0], f.Words[1], f.Words[2], f.Words[3])
			s.reply(f.Seq, err, value)
		case codec.KindAllow:
			s.allow(&f)
		default:
			return
		}
	}
}

func (s *session) subscribe(f *codec.Frame) {
	driver, sub, active := f.Words[0], f.Words[1], f.Words[2]
	key := capKey{driver, sub}

	var fn Upcall
	if active != 0 {
		fn = s.forwarder(driver, sub)
	}
	err := s.k.Subscribe(driver, sub, fn)

	s.mu.Lock()
	if active != 0 && err == nil {
		s.subs[key] = true
	} else if active == 0 {
		delete(s.subs, key)
	}
	s.mu.Unlock()

	s.reply(f.Seq, err, 0)
}

func (s *session) allow(f *codec.Frame) {
	driver, slot, active := f.Words[0], f.Words[1], f.Words[3]
	key := capKey{driver, slot}

	if active == 0 {
		err := s.k.Allow(driver, slot, nil)
		s.mu.Lock()
		delete(s.shadow, key)
		s.mu.Unlock()
		s.reply(f.Seq, err, 0)
		return
	}

	// The kernel side owns a copy of the client's buffer; the shadow
	// tracks what the client has seen of it.
	buf := append([]byte(nil), f.Payload...)
	err := s.k.Allow(driver, slot, buf)
	s.mu.Lock()
	if err == nil {
		s.shadow[key] = append([]byte(nil), buf...)
	}
	s.mu.Unlock()

	s.reply(f.Seq, err, 0)
}

// forwarder returns an upcall that mirrors kernel-written grants back to
// the client, then forwards the completion. Both frames travel the same
// stream, so the mirrored contents arrive before the upcall does.
func (s *session) forwarder(driver, sub uint32) Upcall {
	return func(status Status, data1, data2 uint32) {
		s.mirror(driver)
		s.write(&codec.Frame{
			Kind:  codec.KindUpcall,
			Words: [5]uint32{driver, sub, uint32(status), data1, data2},
		})
	}
}

// mirror sends the driver's grants whose contents changed since the
// client last saw them.
func (s *session) mirror(driver uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, shadow := range s.shadow {
		if key.driver != driver {
			continue
		}
		buf := s.k.Grant(key.driver, key.index)
		if buf == nil || bytes.Equal(buf, shadow) {
			continue
		}
		s.shadow[key] = append(shadow[:0], buf...)
		s.write(&codec.Frame{
			Kind:    codec.KindAllow,
			Words:   [5]uint32{key.driver, key.index, uint32(len(buf)), 1},
			Payload: s.shadow[key],
		})
	}
}

func (s *session) reply(seq uint32, err error, value uint32) {
	status := StatusOK
	if err != nil {
		var ks Status
		if !errors.As(err, &ks) {
			ks = StatusFail
		}
		status = ks
	}
	s.write(&codec.Frame{
		Kind:  codec.KindReply,
		Seq:   seq,
		Words: [5]uint32{uint32(status), value},
	})
}

// write serializes frames onto the stream. Write errors surface as read
// errors in run, which ends the session.
func (s *session) write(f *codec.Frame) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_ = codec.Write(s.rwc, f)
}

func (s *session) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.subs {
		_ = s.k.Subscribe(key.driver, key.index, nil)
	}
	for key := range s.shadow {
		_ = s.k.Allow(key.driver, key.index, nil)
	}
}
