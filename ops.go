package screen

import (
	"context"
	"fmt"
	"log"

	"github.com/BeatGlow/screen/kernel"
	"github.com/BeatGlow/screen/pixel"
)

// opcode numbers an operation on the wire. The public API speaks in
// types; the numbers never leave this file.
type opcode uint32

const (
	opSetupEnabled    opcode = 1
	opSetBrightness   opcode = 3
	opInvertOn        opcode = 4
	opInvertOff       opcode = 5
	opResolutionCount opcode = 11
	opResolutionAt    opcode = 12
	opFormatCount     opcode = 13
	opFormatAt        opcode = 14
	opGetRotation     opcode = 21
	opSetRotation     opcode = 22
	opGetResolution   opcode = 23
	opSetResolution   opcode = 24
	opGetFormat       opcode = 25
	opSetFormat       opcode = 26
	opSetFrame        opcode = 100
	opWrite           opcode = 200
	opFill            opcode = 300
)

var opcodeNames = map[opcode]string{
	opSetupEnabled:    "setup enabled",
	opSetBrightness:   "set brightness",
	opInvertOn:        "invert on",
	opInvertOff:       "invert off",
	opResolutionCount: "supported resolutions",
	opResolutionAt:    "supported resolution",
	opFormatCount:     "supported pixel formats",
	opFormatAt:        "supported pixel format",
	opGetRotation:     "get rotation",
	opSetRotation:     "set rotation",
	opGetResolution:   "get resolution",
	opSetResolution:   "set resolution",
	opGetFormat:       "get pixel format",
	opSetFormat:       "set pixel format",
	opSetFrame:        "set frame",
	opWrite:           "write",
	opFill:            "fill",
}

func (op opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("op %d", uint32(op))
}

// result is one completion as reported by the driver.
type result struct {
	status kernel.Status
	data1  uint32
	data2  uint32
}

// call performs one rendezvous: subscribe for the completion, issue the
// command, wait for the upcall or the context. A failed subscribe
// returns before any command is issued; a failed command returns before
// the wait. Driver-reported failures come back as kernel.Status errors.
func (d *Device) call(ctx context.Context, op opcode, arg1, arg2 uint32) (result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.callLocked(ctx, op, arg1, arg2)
}

func (d *Device) callLocked(ctx context.Context, op opcode, arg1, arg2 uint32) (result, error) {
	done := make(chan result, 1)
	err := d.conn.Subscribe(DriverNum, subDone, func(status kernel.Status, data1, data2 uint32) {
		select {
		case done <- result{status, data1, data2}:
		default:
		}
	})
	if err != nil {
		return result{}, err
	}

	if _, err = d.conn.Command(DriverNum, uint32(op), arg1, arg2); err != nil {
		return result{}, err
	}

	select {
	case r := <-done:
		if debug {
			log.Printf("screen: %s(%#x, %#x) = %s (%#x, %#x)", op, arg1, arg2, r.status, r.data1, r.data2)
		}
		return r, r.status.Err()
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
}

// SetupEnabled reports whether the driver exposes the screen setup
// operations (resolution and format switching). This is the one
// synchronous command: it answers without an upcall.
func (d *Device) SetupEnabled() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.conn.Command(DriverNum, uint32(opSetupEnabled), 0, 0)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// SetBrightness adjusts the backlight or pixel intensity.
func (d *Device) SetBrightness(ctx context.Context, level int) error {
	_, err := d.call(ctx, opSetBrightness, uint32(level), 0)
	return err
}

// SetInvert toggles color inversion.
func (d *Device) SetInvert(ctx context.Context, invert bool) error {
	op := opInvertOff
	if invert {
		op = opInvertOn
	}
	_, err := d.call(ctx, op, 0, 0)
	return err
}

// SupportedResolutions returns the number of resolutions the screen can
// switch between.
func (d *Device) SupportedResolutions(ctx context.Context) (int, error) {
	r, err := d.call(ctx, opResolutionCount, 0, 0)
	if err != nil {
		return 0, err
	}
	return int(r.data1), nil
}

// SupportedResolution returns the width and height of the numbered
// resolution.
func (d *Device) SupportedResolution(ctx context.Context, index int) (width, height int, err error) {
	r, err := d.call(ctx, opResolutionAt, uint32(index), 0)
	if err != nil {
		return 0, 0, err
	}
	return int(r.data1), int(r.data2), nil
}

// SupportedPixelFormats returns the number of pixel formats the screen
// can switch between.
func (d *Device) SupportedPixelFormats(ctx context.Context) (int, error) {
	r, err := d.call(ctx, opFormatCount, 0, 0)
	if err != nil {
		return 0, err
	}
	return int(r.data1), nil
}

// SupportedPixelFormat returns the numbered pixel format. On failure
// the returned format is pixel.FormatError.
func (d *Device) SupportedPixelFormat(ctx context.Context, index int) (pixel.Format, error) {
	r, err := d.call(ctx, opFormatAt, uint32(index), 0)
	if err != nil {
		return pixel.FormatError, err
	}
	return pixel.Format(int32(r.data1)), nil
}

// Rotation returns the current pixel rotation.
func (d *Device) Rotation(ctx context.Context) (Rotation, error) {
	r, err := d.call(ctx, opGetRotation, 0, 0)
	if err != nil {
		return NoRotation, err
	}
	return Rotation(r.data1), nil
}

// SetRotation adjusts the pixel rotation.
func (d *Device) SetRotation(ctx context.Context, rotation Rotation) error {
	_, err := d.call(ctx, opSetRotation, uint32(rotation), 0)
	return err
}

// Resolution returns the current resolution in pixels.
func (d *Device) Resolution(ctx context.Context) (width, height int, err error) {
	r, err := d.call(ctx, opGetResolution, 0, 0)
	if err != nil {
		return 0, 0, err
	}
	return int(r.data1), int(r.data2), nil
}

// SetResolution switches the screen to width by height pixels.
func (d *Device) SetResolution(ctx context.Context, width, height int) error {
	_, err := d.call(ctx, opSetResolution, uint32(width), uint32(height))
	return err
}

// PixelFormat returns the current pixel format. On failure the returned
// format is pixel.FormatError.
func (d *Device) PixelFormat(ctx context.Context) (pixel.Format, error) {
	r, err := d.call(ctx, opGetFormat, 0, 0)
	if err != nil {
		return pixel.FormatError, err
	}
	return pixel.Format(int32(r.data1)), nil
}

// SetPixelFormat switches the screen to another pixel encoding.
func (d *Device) SetPixelFormat(ctx context.Context, format pixel.Format) error {
	_, err := d.call(ctx, opSetFormat, uint32(int32(format)), 0)
	return err
}

// SetFrame selects the viewport: the screen rectangle targeted by Write
// and Fill. Values are clipped to 16 bits and packed two per argument
// word.
func (d *Device) SetFrame(ctx context.Context, x, y, width, height int) error {
	_, err := d.call(ctx, opSetFrame,
		uint32(x&0xFFFF)<<16|uint32(y&0xFFFF),
		uint32(width&0xFFFF)<<16|uint32(height&0xFFFF))
	return err
}
