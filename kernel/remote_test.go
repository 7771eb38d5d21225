package kernel

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/BeatGlow/screen/internal/codec"
)

const testDriver = 0x90001

// fakeKernel answers requests on one end of a pipe with canned replies
// and records every frame it saw.
type fakeKernel struct {
	conn   net.Conn
	frames chan codec.Frame
	reply  func(*codec.Frame) (Status, uint32, bool)
}

func runFakeKernel(t *testing.T, reply func(*codec.Frame) (Status, uint32, bool)) (*StreamConn, *fakeKernel) {
	t.Helper()
	client, server := net.Pipe()
	k := &fakeKernel{conn: server, frames: make(chan codec.Frame, 16), reply: reply}
	go k.loop()
	c := NewStreamConn(client)
	t.Cleanup(func() {
		c.Close()
		server.Close()
	})
	return c, k
}

func (k *fakeKernel) loop() {
	for {
		var frame codec.Frame
		if err := codec.Read(k.conn, &frame); err != nil {
			close(k.frames)
			return
		}
		k.frames <- frame

		status, value, ok := StatusOK, uint32(0), true
		if k.reply != nil {
			status, value, ok = k.reply(&frame)
		}
		if !ok {
			continue
		}
		reply := codec.Frame{Kind: codec.KindReply, Seq: frame.Seq, Words: [5]uint32{uint32(status), value}}
		if err := codec.Write(k.conn, &reply); err != nil {
			return
		}
	}
}

func (k *fakeKernel) send(t *testing.T, frame *codec.Frame) {
	t.Helper()
	if err := codec.Write(k.conn, frame); err != nil {
		t.Fatal(err)
	}
}

func (k *fakeKernel) next(t *testing.T) codec.Frame {
	t.Helper()
	select {
	case frame, ok := <-k.frames:
		if !ok {
			t.Fatal("peer closed")
		}
		return frame
	case <-time.After(time.Second):
		t.Fatal("no frame within deadline")
	}
	panic("unreachable")
}

func TestStreamCommand(t *testing.T) {
	c, k := runFakeKernel(t, func(*codec.Frame) (Status, uint32, bool) {
		return StatusOK, 7, true
	})

	value, err := c.Command(testDriver, 23, 0x00a00032, 0x014000f0)
	if err != nil {
		t.Fatal(err)
	}
	if value != 7 {
		t.Fatalf("expected value 7, got %d", value)
	}

	frame := k.next(t)
	if frame.Kind != codec.KindCommand {
		t.Fatalf("expected command frame, got %s", frame.Kind)
	}
	want := [5]uint32{testDriver, 23, 0x00a00032, 0x014000f0}
	if frame.Words != want {
		t.Fatalf("expected words %v, got %v", want, frame.Words)
	}
}

func TestStreamCommandError(t *testing.T) {
	c, _ := runFakeKernel(t, func(*codec.Frame) (Status, uint32, bool) {
		return StatusNoSupport, 0, true
	})

	if _, err := c.Command(testDriver, 26, 0, 0); !errors.Is(err, StatusNoSupport) {
		t.Fatalf("expected %v, got %v", StatusNoSupport, err)
	}
}

func TestStreamSubscribeUpcall(t *testing.T) {
	c, k := runFakeKernel(t, nil)

	got := make(chan [3]uint32, 1)
	err := c.Subscribe(testDriver, 0, func(status Status, data1, data2 uint32) {
		got <- [3]uint32{uint32(status), data1, data2}
	})
	if err != nil {
		t.Fatal(err)
	}

	frame := k.next(t)
	if frame.Kind != codec.KindSubscribe || frame.Words[2] != 1 {
		t.Fatalf("expected active subscribe frame, got %s %v", frame.Kind, frame.Words)
	}

	k.send(t, &codec.Frame{Kind: codec.KindUpcall, Words: [5]uint32{testDriver, 0, uint32(StatusOK), 128, 160}})

	select {
	case up := <-got:
		if up != [3]uint32{0, 128, 160} {
			t.Fatalf("expected upcall (0, 128, 160), got %v", up)
		}
	case <-time.After(time.Second):
		t.Fatal("no upcall within deadline")
	}

	// Revoking informs the kernel too.
	if err := c.Subscribe(testDriver, 0, nil); err != nil {
		t.Fatal(err)
	}
	frame = k.next(t)
	if frame.Kind != codec.KindSubscribe || frame.Words[2] != 0 {
		t.Fatalf("expected revoke subscribe frame, got %s %v", frame.Kind, frame.Words)
	}
}

func TestStreamGrantSync(t *testing.T) {
	c, k := runFakeKernel(t, nil)

	buf := []byte{1, 2, 3, 4}
	if err := c.Allow(testDriver, 0, buf); err != nil {
		t.Fatal(err)
	}
	frame := k.next(t)
	if frame.Kind != codec.KindAllow || !bytes.Equal(frame.Payload, buf) {
		t.Fatalf("expected grant payload % x, got %s % x", buf, frame.Kind, frame.Payload)
	}

	// Clean grant: a command goes out alone.
	if _, err := c.Command(testDriver, 1, 0, 0); err != nil {
		t.Fatal(err)
	}
	if frame = k.next(t); frame.Kind != codec.KindCommand {
		t.Fatalf("expected command frame, got %s", frame.Kind)
	}

	// Mutated grant: the command is preceded by a fresh copy.
	buf[0] = 9
	if _, err := c.Command(testDriver, 1, 0, 0); err != nil {
		t.Fatal(err)
	}
	if frame = k.next(t); frame.Kind != codec.KindAllow || !bytes.Equal(frame.Payload, []byte{9, 2, 3, 4}) {
		t.Fatalf("expected synced grant, got %s % x", frame.Kind, frame.Payload)
	}
	if frame = k.next(t); frame.Kind != codec.KindCommand {
		t.Fatalf("expected command frame, got %s", frame.Kind)
	}
}

func TestStreamGrantRejected(t *testing.T) {
	c, k := runFakeKernel(t, func(frame *codec.Frame) (Status, uint32, bool) {
		if frame.Kind == codec.KindAllow {
			return StatusNoMem, 0, true
		}
		return StatusOK, 0, true
	})

	buf := []byte{1, 2, 3, 4}
	if err := c.Allow(testDriver, 0, buf); !errors.Is(err, StatusNoMem) {
		t.Fatalf("expected %v, got %v", StatusNoMem, err)
	}
	k.next(t)

	// The rejected grant is not tracked, so commands do not sync it.
	buf[0] = 9
	if _, err := c.Command(testDriver, 1, 0, 0); err != nil {
		t.Fatal(err)
	}
	if frame := k.next(t); frame.Kind != codec.KindCommand {
		t.Fatalf("expected command frame, got %s", frame.Kind)
	}
}

func TestStreamGrantMirror(t *testing.T) {
	c, k := runFakeKernel(t, nil)

	buf := []byte{0}
	if err := c.Allow(1, 1, buf); err != nil {
		t.Fatal(err)
	}
	k.next(t)

	done := make(chan struct{})
	if err := c.Subscribe(1, 2, func(Status, uint32, uint32) { close(done) }); err != nil {
		t.Fatal(err)
	}
	k.next(t)

	// The kernel writes into the grant, then completes: the mirror must
	// be visible by the time the upcall runs.
	k.send(t, &codec.Frame{Kind: codec.KindAllow, Words: [5]uint32{1, 1, 1, 1}, Payload: []byte{'x'}})
	k.send(t, &codec.Frame{Kind: codec.KindUpcall, Words: [5]uint32{1, 2, uint32(StatusOK), 1, 0}})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("no upcall within deadline")
	}
	if buf[0] != 'x' {
		t.Fatalf("expected mirrored grant 'x', got %q", buf[0])
	}
}

func TestStreamCloseFailsPending(t *testing.T) {
	c, k := runFakeKernel(t, func(*codec.Frame) (Status, uint32, bool) {
		return 0, 0, false // never reply
	})

	errs := make(chan error, 1)
	go func() {
		_, err := c.Command(testDriver, 1, 0, 0)
		errs <- err
	}()
	k.next(t)

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-errs:
		if !errors.Is(err, StatusCancel) {
			t.Fatalf("expected %v, got %v", StatusCancel, err)
		}
	case <-time.After(time.Second):
		t.Fatal("pending call not released")
	}

	// Later calls fail immediately.
	if _, err := c.Command(testDriver, 1, 0, 0); !errors.Is(err, StatusCancel) {
		t.Fatalf("expected %v, got %v", StatusCancel, err)
	}
}
