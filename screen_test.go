package screen

import (
	"context"
	"errors"
	"testing"

	"github.com/BeatGlow/screen/kernel"
	"github.com/BeatGlow/screen/pixel"
)

// stubConn is a scripted kernel.Conn. Commands complete synchronously
// through the subscribed upcall unless noUpcall is set.
type stubConn struct {
	value    uint32 // immediate result for synchronous commands
	status   kernel.Status
	data1    uint32
	data2    uint32
	reply    func(op, arg1, arg2 uint32) (kernel.Status, uint32, uint32)
	subErr   error
	cmdErr   error
	allowErr error
	noUpcall bool

	subs     int
	commands [][4]uint32
	grants   map[uint32][]byte
	upcall   kernel.Upcall
}

func (c *stubConn) Subscribe(driver, sub uint32, fn kernel.Upcall) error {
	if c.subErr != nil {
		return c.subErr
	}
	c.subs++
	c.upcall = fn
	return nil
}

func (c *stubConn) Command(driver, op, arg1, arg2 uint32) (uint32, error) {
	if c.cmdErr != nil {
		return 0, c.cmdErr
	}
	c.commands = append(c.commands, [4]uint32{driver, op, arg1, arg2})
	if op == 1 {
		return c.value, nil
	}
	if c.noUpcall || c.upcall == nil {
		return 0, nil
	}
	status, data1, data2 := c.status, c.data1, c.data2
	if c.reply != nil {
		status, data1, data2 = c.reply(op, arg1, arg2)
	}
	c.upcall(status, data1, data2)
	return 0, nil
}

func (c *stubConn) Allow(driver, slot uint32, buf []byte) error {
	if c.allowErr != nil {
		return c.allowErr
	}
	if c.grants == nil {
		c.grants = make(map[uint32][]byte)
	}
	if buf == nil {
		delete(c.grants, slot)
		return nil
	}
	c.grants[slot] = buf
	return nil
}

func (c *stubConn) Close() error { return nil }

func TestSubscribeFailureShortCircuits(t *testing.T) {
	conn := &stubConn{subErr: kernel.StatusNoMem}
	d := New(conn)

	err := d.SetBrightness(context.Background(), 100)
	if !errors.Is(err, kernel.StatusNoMem) {
		t.Fatalf("expected %v, got %v", kernel.StatusNoMem, err)
	}
	if len(conn.commands) != 0 {
		t.Fatalf("expected no command after failed subscribe, got %v", conn.commands)
	}
}

func TestCommandFailureShortCircuits(t *testing.T) {
	conn := &stubConn{cmdErr: kernel.StatusNoDevice}
	d := New(conn)

	// The error must come back without waiting for an upcall that will
	// never fire.
	err := d.SetInvert(context.Background(), true)
	if !errors.Is(err, kernel.StatusNoDevice) {
		t.Fatalf("expected %v, got %v", kernel.StatusNoDevice, err)
	}
}

func TestDriverStatusPropagates(t *testing.T) {
	conn := &stubConn{status: kernel.StatusNoSupport}
	d := New(conn)

	err := d.SetRotation(context.Background(), Rotate90)
	if !errors.Is(err, kernel.StatusNoSupport) {
		t.Fatalf("expected %v, got %v", kernel.StatusNoSupport, err)
	}
}

func TestContextCancelsWait(t *testing.T) {
	conn := &stubConn{noUpcall: true}
	d := New(conn)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.SetBrightness(ctx, 50)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected %v, got %v", context.Canceled, err)
	}
}

func TestSetupEnabled(t *testing.T) {
	conn := &stubConn{value: 1}
	d := New(conn)

	enabled, err := d.SetupEnabled()
	if err != nil {
		t.Fatal(err)
	}
	if !enabled {
		t.Fatal("expected setup to be enabled")
	}
	if conn.subs != 0 {
		t.Fatalf("expected no subscription for a synchronous command, got %d", conn.subs)
	}
	if want := [4]uint32{DriverNum, 1, 0, 0}; conn.commands[0] != want {
		t.Fatalf("expected command %v, got %v", want, conn.commands[0])
	}
}

func TestSetFramePacking(t *testing.T) {
	conn := &stubConn{}
	d := New(conn)

	if err := d.SetFrame(context.Background(), 0x00A0, 0x0032, 0x0140, 0x00F0); err != nil {
		t.Fatal(err)
	}
	want := [4]uint32{DriverNum, 100, 0x00A00032, 0x014000F0}
	if conn.commands[0] != want {
		t.Fatalf("expected command %v, got %v", want, conn.commands[0])
	}
}

func TestSetInvert(t *testing.T) {
	conn := &stubConn{}
	d := New(conn)

	if err := d.SetInvert(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	if err := d.SetInvert(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	if conn.commands[0][1] != 4 || conn.commands[1][1] != 5 {
		t.Fatalf("expected opcodes 4 then 5, got %d then %d", conn.commands[0][1], conn.commands[1][1])
	}
}

func TestResolution(t *testing.T) {
	conn := &stubConn{data1: 128, data2: 160}
	d := New(conn)

	w, h, err := d.Resolution(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if w != 128 || h != 160 {
		t.Fatalf("expected 128x160, got %dx%d", w, h)
	}
	if conn.commands[0][1] != 23 {
		t.Fatalf("expected opcode 23, got %d", conn.commands[0][1])
	}
}

func TestSupportedResolutionArgs(t *testing.T) {
	conn := &stubConn{data1: 96, data2: 96}
	d := New(conn)

	w, h, err := d.SupportedResolution(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if w != 96 || h != 96 {
		t.Fatalf("expected 96x96, got %dx%d", w, h)
	}
	if want := [4]uint32{DriverNum, 12, 2, 0}; conn.commands[0] != want {
		t.Fatalf("expected command %v, got %v", want, conn.commands[0])
	}
}

func TestPixelFormatSentinelOnFailure(t *testing.T) {
	conn := &stubConn{status: kernel.StatusFail}
	d := New(conn)

	format, err := d.SupportedPixelFormat(context.Background(), 9)
	if err == nil {
		t.Fatal("expected an error")
	}
	if format != pixel.FormatError {
		t.Fatalf("expected %v, got %v", pixel.FormatError, format)
	}

	format, err = d.PixelFormat(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	if format != pixel.FormatError {
		t.Fatalf("expected %v, got %v", pixel.FormatError, format)
	}
}

func TestPixelFormat(t *testing.T) {
	conn := &stubConn{data1: uint32(pixel.FormatRGB565)}
	d := New(conn)

	format, err := d.PixelFormat(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if format != pixel.FormatRGB565 {
		t.Fatalf("expected %v, got %v", pixel.FormatRGB565, format)
	}
}

func TestRotationRoundTrip(t *testing.T) {
	conn := &stubConn{data1: uint32(Rotate180)}
	d := New(conn)

	r, err := d.Rotation(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r != Rotate180 {
		t.Fatalf("expected %v, got %v", Rotate180, r)
	}

	if err := d.SetRotation(context.Background(), Rotate270); err != nil {
		t.Fatal(err)
	}
	if want := [4]uint32{DriverNum, 22, 3, 0}; conn.commands[1] != want {
		t.Fatalf("expected command %v, got %v", want, conn.commands[1])
	}
}

func TestRotationString(t *testing.T) {
	tests := []struct {
		rotation Rotation
		want     string
	}{
		{NoRotation, "0°"},
		{Rotate90, "90°"},
		{Rotate180, "180°"},
		{Rotate270, "270°"},
		{Rotation(5), "90°"},
	}
	for _, test := range tests {
		if v := test.rotation.String(); v != test.want {
			t.Errorf("expected %q, got %q", test.want, v)
		}
	}
}
