package screen

import (
	"context"
	"encoding/binary"
	"image"

	"github.com/BeatGlow/screen/kernel"
	"github.com/BeatGlow/screen/pixel"
)

// Init allocates a frame buffer of n zero-filled bytes and grants the
// driver read access to it. A Device holds at most one frame buffer:
// Init fails with kernel.StatusAlready while one exists, leaving the
// existing buffer untouched. If the driver refuses the grant nothing is
// retained, so a later Init can succeed.
func (d *Device) Init(n int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.buf != nil {
		return kernel.StatusAlready
	}
	if n < 0 {
		return kernel.StatusInvalid
	}

	buf := make([]byte, n)
	if err := d.conn.Allow(DriverNum, slotFrame, buf); err != nil {
		return err
	}
	d.buf = buf
	return nil
}

// Buffer returns the shared frame buffer, or nil before Init. The
// driver reads it at command time; callers write pixels directly
// between commands.
func (d *Device) Buffer() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf
}

// SetColor writes a 16-bit color at a pixel position in the frame
// buffer, high byte first. The write is local until Write or Fill
// pushes the buffer to the screen.
func (d *Device) SetColor(position int, color uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setColorLocked(position, color)
}

func (d *Device) setColorLocked(position int, color uint16) error {
	if position < 0 || (position+1)*2 > len(d.buf) {
		return kernel.StatusSize
	}
	d.buf[position*2] = byte(color >> 8)
	d.buf[position*2+1] = byte(color)
	return nil
}

// Write pushes the first n frame buffer bytes to the current viewport.
func (d *Device) Write(ctx context.Context, n int) error {
	if n < 0 {
		return kernel.StatusInvalid
	}
	_, err := d.call(ctx, opWrite, uint32(n), 0)
	return err
}

// Fill floods the current viewport with one 16-bit color. The color is
// staged at position 0 of the frame buffer for the driver to expand.
func (d *Device) Fill(ctx context.Context, color uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.setColorLocked(0, color); err != nil {
		return err
	}
	_, err := d.callLocked(ctx, opFill, 0, 0)
	return err
}

// Image wraps the frame buffer in a drawable image matching the
// screen's current resolution and pixel format. The image writes
// straight into the granted memory; follow up with Write to push it.
func (d *Device) Image(ctx context.Context) (pixel.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, err := d.callLocked(ctx, opGetResolution, 0, 0)
	if err != nil {
		return nil, err
	}
	width, height := int(r.data1), int(r.data2)

	r, err = d.callLocked(ctx, opGetFormat, 0, 0)
	if err != nil {
		return nil, err
	}
	format := pixel.Format(int32(r.data1))

	// The image views are row aligned, so a mono view needs whole bytes
	// per row, slightly more than the packed wire size.
	var img pixel.Image
	var need int
	rect := image.Rect(0, 0, width, height)
	switch format {
	case pixel.FormatMono:
		stride := (width + 7) / 8
		need = stride * height
		img = &pixel.MonoImage{
			Buffer: pixel.Buffer{Rect: rect, Pix: d.buf, Stride: stride},
		}
	case pixel.FormatRGB233:
		need = width * height
		img = &pixel.RGB233Image{
			Buffer: pixel.Buffer{Rect: rect, Pix: d.buf, Stride: width},
		}
	case pixel.FormatRGB565:
		need = width * 2 * height
		img = &pixel.RGB565Image{
			Buffer: pixel.Buffer{Rect: rect, Pix: d.buf, Stride: width * 2},
			Order:  binary.BigEndian,
		}
	case pixel.FormatRGB888:
		need = width * 3 * height
		img = &pixel.RGB888Image{
			Buffer: pixel.Buffer{Rect: rect, Pix: d.buf, Stride: width * 3},
		}
	case pixel.FormatARGB8888:
		need = width * 4 * height
		img = &pixel.ARGB8888Image{
			Buffer: pixel.Buffer{Rect: rect, Pix: d.buf, Stride: width * 4},
			Order:  binary.BigEndian,
		}
	default:
		return nil, kernel.StatusNoSupport
	}

	if d.buf == nil || len(d.buf) < need {
		return nil, kernel.StatusSize
	}
	return img, nil
}
