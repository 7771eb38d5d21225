package kernel

import (
	"bytes"
	"io"
	"log"
	"net"
	"os"
	"sync"

	"github.com/BeatGlow/screen/internal/codec"
)

var debug bool

func init() {
	debug = os.Getenv("SCREEN_DEBUG") != ""
}

// StreamConn is a Conn that speaks the codec frame protocol over a byte
// stream, typically a TCP socket or a serial bridge to a board running
// the kernel. Calls carry sequence numbers; a reader goroutine matches
// replies and dispatches upcall frames to subscribed handlers.
//
// Granted buffers cannot be shared across a stream, so StreamConn copies
// them: a grant's contents travel with the Allow call, commands re-send
// grants the caller mutated since the last sync, and grants the kernel
// writes to are mirrored back before the upcall that exposes them.
//
// Upcall handlers run on the reader goroutine and must not issue calls
// on the same StreamConn.
type StreamConn struct {
	rwc io.ReadWriteCloser

	wmu sync.Mutex // one frame on the wire at a time

	mu      sync.Mutex
	seq     uint32
	pending map[uint32]chan streamReply
	upcalls map[subKey]Upcall
	live    map[subKey][]byte // grants, caller-owned
	shadow  map[subKey][]byte // grant contents at last sync
	err     error             // reason the conn is down, nil while up

	closer sync.Once
}

type streamReply struct {
	status Status
	value  uint32
}

// Interface checks
var (
	_ Conn      = (*StreamConn)(nil)
	_ io.Closer = (*StreamConn)(nil)
)

// Dial connects to a kernel serving the frame protocol on a TCP address.
func Dial(addr string) (*StreamConn, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewStreamConn(conn), nil
}

// NewStreamConn wraps an established stream. The conn owns rwc and
// closes it on Close.
func NewStreamConn(rwc io.ReadWriteCloser) *StreamConn {
	c := &StreamConn{
		rwc:     rwc,
		pending: make(map[uint32]chan streamReply),
		upcalls: make(map[subKey]Upcall),
		live:    make(map[subKey][]byte),
		shadow:  make(map[subKey][]byte),
	}
	go c.read()
	return c
}

// Subscribe registers fn for (driver, sub) and informs the kernel so it
// forwards matching upcalls. A nil fn revokes.
func (c *StreamConn) Subscribe(driver, sub uint32, fn Upcall) error {
	c.mu.Lock()
	if fn == nil {
		delete(c.upcalls, subKey{driver, sub})
	} else {
		c.upcalls[subKey{driver, sub}] = fn
	}
	c.mu.Unlock()

	var active uint32
	if fn != nil {
		active = 1
	}
	reply, err := c.call(&codec.Frame{
		Kind:  codec.KindSubscribe,
		Words: [5]uint32{driver, sub, active},
	})
	if err != nil {
		return err
	}
	return reply.status.Err()
}

// Command syncs mutated grants for the driver, then issues the numbered
// operation.
func (c *StreamConn) Command(driver, op, arg1, arg2 uint32) (uint32, error) {
	if err := c.syncGrants(driver); err != nil {
		return 0, err
	}
	reply, err := c.call(&codec.Frame{
		Kind:  codec.KindCommand,
		Words: [5]uint32{driver, op, arg1, arg2},
	})
	if err != nil {
		return 0, err
	}
	if err := reply.status.Err(); err != nil {
		return 0, err
	}
	return reply.value, nil
}

// Allow grants buf to (driver, slot), sending a copy of its contents.
// The local grant table is only updated once the kernel accepts.
func (c *StreamConn) Allow(driver, slot uint32, buf []byte) error {
	frame := &codec.Frame{Kind: codec.KindAllow, Words: [5]uint32{driver, slot, 0, 0}}
	if buf != nil {
		frame.Words[2] = uint32(len(buf))
		frame.Words[3] = 1
		frame.Payload = buf
	}
	reply, err := c.call(frame)
	if err != nil {
		return err
	}
	if err = reply.status.Err(); err != nil {
		return err
	}

	key := subKey{driver, slot}
	c.mu.Lock()
	if buf == nil {
		delete(c.live, key)
		delete(c.shadow, key)
	} else {
		c.live[key] = buf
		c.shadow[key] = append([]byte(nil), buf...)
	}
	c.mu.Unlock()
	return nil
}

// Close tears the connection down. Pending calls fail with StatusCancel.
func (c *StreamConn) Close() error {
	c.closer.Do(func() {
		c.fail(StatusCancel)
		c.rwc.Close()
	})
	return nil
}

// syncGrants re-sends the driver's grants whose contents changed since
// the last sync, so kernel-side capsules observe current buffer
// contents at command time.
func (c *StreamConn) syncGrants(driver uint32) error {
	type grant struct {
		slot uint32
		data []byte
	}
	var dirty []grant

	c.mu.Lock()
	for key, buf := range c.live {
		if key.driver != driver || bytes.Equal(buf, c.shadow[key]) {
			continue
		}
		dirty = append(dirty, grant{key.sub, append([]byte(nil), buf...)})
	}
	c.mu.Unlock()

	for _, g := range dirty {
		reply, err := c.call(&codec.Frame{
			Kind:    codec.KindAllow,
			Words:   [5]uint32{driver, g.slot, uint32(len(g.data)), 1},
			Payload: g.data,
		})
		if err != nil {
			return err
		}
		if err = reply.status.Err(); err != nil {
			return err
		}
		c.mu.Lock()
		c.shadow[subKey{driver, g.slot}] = g.data
		c.mu.Unlock()
	}
	return nil
}

// call writes one request frame and blocks until its reply arrives or
// the conn goes down.
func (c *StreamConn) call(frame *codec.Frame) (streamReply, error) {
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return streamReply{}, err
	}
	c.seq++
	seq := c.seq
	ch := make(chan streamReply, 1)
	c.pending[seq] = ch
	c.mu.Unlock()

	frame.Seq = seq
	if debug {
		log.Printf("kernel: > %s seq=%d words=%v +%d", frame.Kind, frame.Seq, frame.Words, len(frame.Payload))
	}

	c.wmu.Lock()
	err := codec.Write(c.rwc, frame)
	c.wmu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, seq)
		c.mu.Unlock()
		c.fail(err)
		return streamReply{}, err
	}

	reply, ok := <-ch
	if !ok {
		return streamReply{}, c.downErr()
	}
	return reply, nil
}

// read is the reader loop. It exits when the stream errors or is
// closed, failing all pending calls.
func (c *StreamConn) read() {
	var frame codec.Frame
	for {
		if err := codec.Read(c.rwc, &frame); err != nil {
			c.fail(err)
			return
		}
		if debug {
			log.Printf("kernel: < %s seq=%d words=%v +%d", frame.Kind, frame.Seq, frame.Words, len(frame.Payload))
		}

		switch frame.Kind {
		case codec.KindReply:
			c.mu.Lock()
			ch := c.pending[frame.Seq]
			delete(c.pending, frame.Seq)
			c.mu.Unlock()
			if ch != nil {
				ch <- streamReply{Status(int32(frame.Words[0])), frame.Words[1]}
			}

		case codec.KindUpcall:
			c.mu.Lock()
			fn := c.upcalls[subKey{frame.Words[0], frame.Words[1]}]
			c.mu.Unlock()
			if fn != nil {
				fn(Status(int32(frame.Words[2])), frame.Words[3], frame.Words[4])
			}

		case codec.KindAllow:
			// The kernel wrote into a grant; mirror it into the
			// caller's buffer before any upcall that follows.
			key := subKey{frame.Words[0], frame.Words[1]}
			c.mu.Lock()
			if buf := c.live[key]; buf != nil {
				copy(buf, frame.Payload)
				c.shadow[key] = append(c.shadow[key][:0], buf...)
			}
			c.mu.Unlock()
		}
	}
}

// fail marks the conn down with err, once, and releases every pending
// caller.
func (c *StreamConn) fail(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	for seq, ch := range c.pending {
		delete(c.pending, seq)
		close(ch)
	}
	c.mu.Unlock()
}

func (c *StreamConn) downErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	return StatusCancel
}
