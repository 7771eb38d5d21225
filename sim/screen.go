package sim

import (
	"image"
	"sync"

	screen "github.com/BeatGlow/screen"
	"github.com/BeatGlow/screen/kernel"
	"github.com/BeatGlow/screen/pixel"
)

// Screen capsule command numbers, the counterpart of the client's
// opcode table.
const (
	cmdSetupEnabled    = 1
	cmdSetBrightness   = 3
	cmdInvertOn        = 4
	cmdInvertOff       = 5
	cmdResolutionCount = 11
	cmdResolutionAt    = 12
	cmdFormatCount     = 13
	cmdFormatAt        = 14
	cmdGetRotation     = 21
	cmdSetRotation     = 22
	cmdGetResolution   = 23
	cmdSetResolution   = 24
	cmdGetFormat       = 25
	cmdSetFormat       = 26
	cmdSetFrame        = 100
	cmdWrite           = 200
	cmdFill            = 300
)

const slotFrame = 0

// screenCapsule models a display driver: one command in flight at a
// time, validation errors immediately, accepted commands completing
// through the pump.
type screenCapsule struct {
	mu   sync.Mutex
	busy bool

	resolutions []image.Point
	formats     []pixel.Format

	resolution image.Point
	format     pixel.Format
	rotation   screen.Rotation
	brightness uint32
	inverted   bool
	frame      image.Rectangle

	panel *pixel.RGB565Image
}

func newScreenCapsule(resolutions []image.Point, formats []pixel.Format) *screenCapsule {
	s := &screenCapsule{
		resolutions: resolutions,
		formats:     formats,
	}
	s.setResolution(resolutions[0].X, resolutions[0].Y)
	s.format = formats[0]
	return s
}

// command validates and executes one operation. Validation failures
// return immediately; accepted commands complete through the upcall
// pump, holding the capsule busy until delivery.
func (s *screenCapsule) command(k *Kernel, op, arg1, arg2 uint32) (uint32, error) {
	if op == cmdSetupEnabled {
		// The one synchronous query: setup commands are implemented.
		return 1, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy {
		return 0, kernel.StatusBusy
	}

	var data1, data2 uint32
	switch op {
	case cmdSetBrightness:
		s.brightness = arg1

	case cmdInvertOn:
		s.inverted = true
	case cmdInvertOff:
		s.inverted = false

	case cmdResolutionCount:
		data1 = uint32(len(s.resolutions))
	case cmdResolutionAt:
		if int(arg1) >= len(s.resolutions) {
			return 0, kernel.StatusInvalid
		}
		data1 = uint32(s.resolutions[arg1].X)
		data2 = uint32(s.resolutions[arg1].Y)

	case cmdFormatCount:
		data1 = uint32(len(s.formats))
	case cmdFormatAt:
		if int(arg1) >= len(s.formats) {
			return 0, kernel.StatusInvalid
		}
		data1 = uint32(int32(s.formats[arg1]))

	case cmdGetRotation:
		data1 = uint32(s.rotation)
	case cmdSetRotation:
		if arg1 > uint32(screen.Rotate270) {
			return 0, kernel.StatusInvalid
		}
		s.rotation = screen.Rotation(arg1)

	case cmdGetResolution:
		data1 = uint32(s.resolution.X)
		data2 = uint32(s.resolution.Y)
	case cmdSetResolution:
		if !s.supportedResolution(int(arg1), int(arg2)) {
			return 0, kernel.StatusNoSupport
		}
		s.setResolution(int(arg1), int(arg2))

	case cmdGetFormat:
		data1 = uint32(int32(s.format))
	case cmdSetFormat:
		f := pixel.Format(int32(arg1))
		if !s.supportedFormat(f) {
			return 0, kernel.StatusNoSupport
		}
		s.format = f

	case cmdSetFrame:
		x, y := int(arg1>>16), int(arg1&0xFFFF)
		w, h := int(arg2>>16), int(arg2&0xFFFF)
		frame := image.Rect(x, y, x+w, y+h)
		if !frame.In(s.panel.Bounds()) {
			return 0, kernel.StatusInvalid
		}
		s.frame = frame

	case cmdWrite:
		if err := s.write(k, int(arg1)); err != nil {
			return 0, err
		}

	case cmdFill:
		if err := s.fill(k); err != nil {
			return 0, err
		}

	default:
		return 0, kernel.StatusNoSupport
	}

	s.busy = true
	k.complete(completion{
		driver:  screen.DriverNum,
		status:  kernel.StatusOK,
		data1:   data1,
		data2:   data2,
		release: s.release,
	})
	return 0, nil
}

func (s *screenCapsule) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

func (s *screenCapsule) supportedResolution(width, height int) bool {
	for _, p := range s.resolutions {
		if p.X == width && p.Y == height {
			return true
		}
	}
	return false
}

func (s *screenCapsule) supportedFormat(format pixel.Format) bool {
	for _, f := range s.formats {
		if f == format {
			return true
		}
	}
	return false
}

// setResolution replaces the panel and resets the frame to cover it.
func (s *screenCapsule) setResolution(width, height int) {
	s.resolution = image.Pt(width, height)
	s.frame = image.Rect(0, 0, width, height)
	s.panel = pixel.NewRGB565Image(width, height)
}

// write blits the granted buffer into the frame, row major from the
// frame origin. n caps the bytes consumed, like the length word of the
// write command.
func (s *screenCapsule) write(k *Kernel, n int) error {
	buf := k.Grant(screen.DriverNum, slotFrame)
	if buf == nil {
		return kernel.StatusNoMem
	}
	if n > len(buf) {
		n = len(buf)
	}
	width := s.frame.Dx()
	bpp := s.format.BitsPerPixel()
	if width == 0 || bpp == 0 {
		return nil
	}
	pixels := n * 8 / bpp
	for p := 0; p < pixels; p++ {
		y := s.frame.Min.Y + p/width
		if y >= s.frame.Max.Y {
			break
		}
		s.panel.Set(s.frame.Min.X+p%width, y, s.format.Pixel(buf, p))
	}
	return nil
}

// fill floods the frame with the first pixel of the granted buffer.
func (s *screenCapsule) fill(k *Kernel) error {
	buf := k.Grant(screen.DriverNum, slotFrame)
	if buf == nil {
		return kernel.StatusNoMem
	}
	if s.format.BufferSize(1, 1) > len(buf) {
		return kernel.StatusSize
	}
	c := s.format.Pixel(buf, 0)
	for y := s.frame.Min.Y; y < s.frame.Max.Y; y++ {
		for x := s.frame.Min.X; x < s.frame.Max.X; x++ {
			s.panel.Set(x, y, c)
		}
	}
	return nil
}

// snapshot copies the panel, applying inversion.
func (s *screenCapsule) snapshot() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()

	img := pixel.NewRGB565Image(s.resolution.X, s.resolution.Y)
	copy(img.Pix, s.panel.Pix)
	if s.inverted {
		for i := range img.Pix {
			img.Pix[i] = ^img.Pix[i]
		}
	}
	return img
}
