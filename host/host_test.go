package host

import (
	"bytes"
	"context"
	"errors"
	"image"
	"testing"
	"time"

	screen "github.com/BeatGlow/screen"
	"github.com/BeatGlow/screen/kernel"
	"github.com/BeatGlow/screen/pixel"
)

type writeCall struct {
	frame  image.Rectangle
	format pixel.Format
	data   []byte
	n      int
}

// fakePanel records hardware calls and fails them all once err is set.
type fakePanel struct {
	err        error
	brightness []uint32
	inverts    []bool
	rotations  []screen.Rotation
	writes     []writeCall
	fills      []writeCall
	closed     bool
}

func (p *fakePanel) String() string { return "fake 128x160" }

func (p *fakePanel) setBrightness(level uint32) error {
	p.brightness = append(p.brightness, level)
	return p.err
}

func (p *fakePanel) setInvert(on bool) error {
	p.inverts = append(p.inverts, on)
	return p.err
}

func (p *fakePanel) setRotation(r screen.Rotation) error {
	p.rotations = append(p.rotations, r)
	return p.err
}

func (p *fakePanel) write(frame image.Rectangle, format pixel.Format, buf []byte, n int) error {
	p.writes = append(p.writes, writeCall{frame, format, append([]byte(nil), buf...), n})
	return p.err
}

func (p *fakePanel) fill(frame image.Rectangle, format pixel.Format, buf []byte) error {
	p.fills = append(p.fills, writeCall{frame, format, append([]byte(nil), buf...), 0})
	return p.err
}

func (p *fakePanel) close() error {
	p.closed = true
	return p.err
}

func newFakeConn(p *fakePanel) *Conn {
	return newConn(p, image.Pt(128, 160), []pixel.Format{pixel.FormatRGB565}, screen.NoRotation)
}

func TestConnDelegates(t *testing.T) {
	p := &fakePanel{}
	c := newFakeConn(p)
	defer c.Close()

	ctx := context.Background()
	d := screen.New(c)

	if err := d.SetBrightness(ctx, 100); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(p.brightness) != 1 || p.brightness[0] != 100 {
		t.Fatalf("expected brightness [100], got %v", p.brightness)
	}

	if err := d.SetInvert(ctx, true); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := d.SetInvert(ctx, false); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(p.inverts) != 2 || !p.inverts[0] || p.inverts[1] {
		t.Fatalf("expected inverts [true false], got %v", p.inverts)
	}

	if err := d.SetRotation(ctx, screen.Rotate90); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(p.rotations) != 1 || p.rotations[0] != screen.Rotate90 {
		t.Fatalf("expected rotations [90°], got %v", p.rotations)
	}
	if r, err := d.Rotation(ctx); err != nil || r != screen.Rotate90 {
		t.Fatalf("expected 90°, got (%v, %v)", r, err)
	}

	if err := d.Init(64); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := d.SetFrame(ctx, 10, 20, 4, 2); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := d.Fill(ctx, 0xf800); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(p.fills) != 1 {
		t.Fatalf("expected one fill, got %d", len(p.fills))
	}
	if want := image.Rect(10, 20, 14, 22); p.fills[0].frame != want {
		t.Fatalf("expected frame %v, got %v", want, p.fills[0].frame)
	}
	if got := p.fills[0].data[:2]; !bytes.Equal(got, []byte{0xf8, 0x00}) {
		t.Fatalf("expected staged color f800, got %x", got)
	}

	if err := d.Write(ctx, 16); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(p.writes) != 1 || p.writes[0].n != 16 {
		t.Fatalf("expected one write of 16 bytes, got %+v", p.writes)
	}
	if p.writes[0].format != pixel.FormatRGB565 {
		t.Fatalf("expected %v, got %v", pixel.FormatRGB565, p.writes[0].format)
	}
}

func TestConnValidation(t *testing.T) {
	p := &fakePanel{}
	c := newFakeConn(p)
	defer c.Close()

	for _, tc := range []struct {
		name       string
		driver, op uint32
		arg1, arg2 uint32
		want       kernel.Status
	}{
		{"unknown driver", 0xbeef, cmdSetupEnabled, 0, 0, kernel.StatusNoDevice},
		{"resolution index", screen.DriverNum, cmdResolutionAt, 1, 0, kernel.StatusInvalid},
		{"format index", screen.DriverNum, cmdFormatAt, 1, 0, kernel.StatusInvalid},
		{"rotation value", screen.DriverNum, cmdSetRotation, 7, 0, kernel.StatusInvalid},
		{"resolution switch", screen.DriverNum, cmdSetResolution, 64, 64, kernel.StatusNoSupport},
		{"format switch", screen.DriverNum, cmdSetFormat, uint32(pixel.FormatMono), 0, kernel.StatusNoSupport},
		{"frame out of bounds", screen.DriverNum, cmdSetFrame, 120 << 16, 20<<16 | 20, kernel.StatusInvalid},
		{"write without buffer", screen.DriverNum, cmdWrite, 2, 0, kernel.StatusNoMem},
		{"fill without buffer", screen.DriverNum, cmdFill, 0, 0, kernel.StatusNoMem},
		{"unknown op", screen.DriverNum, 777, 0, 0, kernel.StatusNoSupport},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := c.Command(tc.driver, tc.op, tc.arg1, tc.arg2); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if len(p.writes)+len(p.fills)+len(p.rotations) != 0 {
		t.Fatalf("expected no hardware calls, got %+v", p)
	}
}

func TestConnHardwareFault(t *testing.T) {
	p := &fakePanel{err: errors.New("spi: transfer failed")}
	c := newFakeConn(p)
	defer c.Close()

	d := screen.New(c)
	err := d.SetBrightness(context.Background(), 50)
	if !errors.Is(err, kernel.StatusFail) {
		t.Fatalf("expected %v, got %v", kernel.StatusFail, err)
	}

	// The fault releases the capsule for the next command.
	p.err = nil
	if err := d.SetBrightness(context.Background(), 50); err != nil {
		t.Fatalf("expected no error after fault, got %v", err)
	}
}

func TestConnBusy(t *testing.T) {
	c := newFakeConn(&fakePanel{})
	defer c.Close()

	// Park the pump in the first command's upcall. The next accepted
	// command then stays in flight until the gate opens.
	gate := make(chan struct{})
	if err := c.Subscribe(screen.DriverNum, 0, func(kernel.Status, uint32, uint32) {
		<-gate
	}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, err := c.Command(screen.DriverNum, cmdGetRotation, 0, 0); err != nil {
		t.Fatalf("expected first command accepted, got %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for {
		_, err := c.Command(screen.DriverNum, cmdGetRotation, 0, 0)
		if err == nil {
			break
		}
		if !errors.Is(err, kernel.StatusBusy) {
			t.Fatalf("expected %v, got %v", kernel.StatusBusy, err)
		}
		if time.Now().After(deadline) {
			t.Fatal("first command never released the conn")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := c.Command(screen.DriverNum, cmdGetRotation, 0, 0); !errors.Is(err, kernel.StatusBusy) {
		t.Fatalf("expected %v while a command is in flight, got %v", kernel.StatusBusy, err)
	}
	close(gate)

	deadline = time.Now().Add(time.Second)
	for {
		if _, err := c.Command(screen.DriverNum, cmdGetRotation, 0, 0); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("conn never became idle")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRGB565Wire(t *testing.T) {
	t.Run("passthrough", func(t *testing.T) {
		buf := []byte{0xf8, 0x00, 0x07, 0xe0, 0x00}
		if got := rgb565Wire(pixel.FormatRGB565, buf, 5, 4); !bytes.Equal(got, buf[:4]) {
			t.Fatalf("expected odd byte trimmed, got %x", got)
		}
		if got := rgb565Wire(pixel.FormatRGB565, buf, 4, 1); !bytes.Equal(got, buf[:2]) {
			t.Fatalf("expected window cap at one pixel, got %x", got)
		}
	})

	t.Run("mono", func(t *testing.T) {
		got := rgb565Wire(pixel.FormatMono, []byte{0b0000_0101}, 1, 8)
		want := []byte{0xff, 0xff, 0x00, 0x00, 0xff, 0xff, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
		if !bytes.Equal(got, want) {
			t.Fatalf("expected %x, got %x", want, got)
		}
	})

	t.Run("rgb888", func(t *testing.T) {
		got := rgb565Wire(pixel.FormatRGB888, []byte{0xff, 0x00, 0x00}, 3, 1)
		if !bytes.Equal(got, []byte{0xf8, 0x00}) {
			t.Fatalf("expected f800, got %x", got)
		}
	})
}
