// Package host drives real panels as kernel screen drivers.
//
// The Open functions probe a panel over SPI through periph.io and
// return a Conn serving the screen driver number, so the same client
// code runs against the simulator, a remote kernel, or hardware wired
// to this machine. Initialize periph's host drivers first:
//
//	if _, err := periphhost.Init(); err != nil {
//		log.Fatal(err)
//	}
//	conn, err := host.OpenST7735(nil)
//
// Pass the Conn to kernel.Serve to expose the panel to remote clients.
package host

import (
	"fmt"
	"image"
	"log"
	"os"
	"sync"

	screen "github.com/BeatGlow/screen"
	"github.com/BeatGlow/screen/kernel"
	"github.com/BeatGlow/screen/pixel"
)

var debug bool

func init() {
	debug = os.Getenv("SCREEN_DEBUG") != ""
}

// Screen driver command numbers, the counterpart of the client's
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

// Config selects the bus and pins of a panel. The zero value works on
// the usual Raspberry Pi rig; Open functions fill in defaults.
type Config struct {
	// Port is the SPI port name for spireg.Open. Empty selects the
	// first available port.
	Port string

	// Hz overrides the driver's default SPI clock.
	Hz int

	// DC names the data/command GPIO pin. Default GPIO24.
	DC string

	// Reset names the reset GPIO pin. Default GPIO25.
	Reset string

	// Backlight names the backlight PWM pin, on panels that have one.
	Backlight string

	// Width and Height override the driver's default panel size.
	Width, Height int

	// Rotation mounts the panel rotated.
	Rotation screen.Rotation
}

// DefaultConfig wires the pins of the usual test rig.
var DefaultConfig = Config{
	DC:    "GPIO24",
	Reset: "GPIO25",
}

// panel is the hardware behind a Conn. Calls arrive serialized, already
// validated against the panel's advertised modes.
type panel interface {
	fmt.Stringer

	setBrightness(level uint32) error
	setInvert(on bool) error
	setRotation(r screen.Rotation) error

	// write blits n bytes of the packed buffer into the frame.
	write(frame image.Rectangle, format pixel.Format, buf []byte, n int) error

	// fill floods the frame with the buffer's first pixel.
	fill(frame image.Rectangle, format pixel.Format, buf []byte) error

	close() error
}

// Conn adapts a panel to the kernel driver contract: numbered commands
// with one in flight, validation errors immediately, completions
// delivered by a pump goroutine. Hardware faults on accepted commands
// surface in the completion status.
type Conn struct {
	kernel.Registry

	panel panel

	mu   sync.Mutex
	busy bool

	resolutions []image.Point
	formats     []pixel.Format
	resolution  image.Point
	format      pixel.Format
	rotation    screen.Rotation
	frame       image.Rectangle

	queue  chan completion
	done   chan struct{}
	closer sync.Once
}

// release runs before the upcall is delivered, so a client resumed by
// the completion never finds the conn still busy.
type completion struct {
	status       kernel.Status
	data1, data2 uint32
	release      func()
}

var _ kernel.Target = (*Conn)(nil)

func newConn(p panel, resolution image.Point, formats []pixel.Format, rotation screen.Rotation) *Conn {
	c := &Conn{
		panel:       p,
		resolutions: []image.Point{resolution},
		formats:     formats,
		resolution:  resolution,
		format:      formats[0],
		rotation:    rotation,
		frame:       image.Rect(0, 0, resolution.X, resolution.Y),
		queue:       make(chan completion, 16),
		done:        make(chan struct{}),
	}
	go c.pump()
	return c
}

func (c *Conn) String() string {
	return c.panel.String()
}

// Close stops the pump and powers the panel down.
func (c *Conn) Close() error {
	c.closer.Do(func() { close(c.done) })
	return c.panel.close()
}

// Command validates and executes one screen operation.
func (c *Conn) Command(driver, op, arg1, arg2 uint32) (uint32, error) {
	if driver != screen.DriverNum {
		return 0, kernel.StatusNoDevice
	}
	if op == cmdSetupEnabled {
		return 1, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busy {
		return 0, kernel.StatusBusy
	}

	var (
		data1, data2 uint32
		hwErr        error
	)
	switch op {
	case cmdSetBrightness:
		hwErr = c.panel.setBrightness(arg1)

	case cmdInvertOn:
		hwErr = c.panel.setInvert(true)
	case cmdInvertOff:
		hwErr = c.panel.setInvert(false)

	case cmdResolutionCount:
		data1 = uint32(len(c.resolutions))
	case cmdResolutionAt:
		if int(arg1) >= len(c.resolutions) {
			return 0, kernel.StatusInvalid
		}
		data1 = uint32(c.resolutions[arg1].X)
		data2 = uint32(c.resolutions[arg1].Y)

	case cmdFormatCount:
		data1 = uint32(len(c.formats))
	case cmdFormatAt:
		if int(arg1) >= len(c.formats) {
			return 0, kernel.StatusInvalid
		}
		data1 = uint32(int32(c.formats[arg1]))

	case cmdGetRotation:
		data1 = uint32(c.rotation)
	case cmdSetRotation:
		if arg1 > uint32(screen.Rotate270) {
			return 0, kernel.StatusInvalid
		}
		if hwErr = c.panel.setRotation(screen.Rotation(arg1)); hwErr == nil {
			c.rotation = screen.Rotation(arg1)
		}

	case cmdGetResolution:
		data1 = uint32(c.resolution.X)
		data2 = uint32(c.resolution.Y)
	case cmdSetResolution:
		// Panels are fixed size; only the current mode is accepted.
		if int(arg1) != c.resolution.X || int(arg2) != c.resolution.Y {
			return 0, kernel.StatusNoSupport
		}

	case cmdGetFormat:
		data1 = uint32(int32(c.format))
	case cmdSetFormat:
		if !c.supportedFormat(pixel.Format(int32(arg1))) {
			return 0, kernel.StatusNoSupport
		}
		c.format = pixel.Format(int32(arg1))

	case cmdSetFrame:
		x, y := int(arg1>>16), int(arg1&0xFFFF)
		w, h := int(arg2>>16), int(arg2&0xFFFF)
		frame := image.Rect(x, y, x+w, y+h)
		if !frame.In(image.Rect(0, 0, c.resolution.X, c.resolution.Y)) {
			return 0, kernel.StatusInvalid
		}
		c.frame = frame

	case cmdWrite:
		buf := c.Grant(screen.DriverNum, slotFrame)
		if buf == nil {
			return 0, kernel.StatusNoMem
		}
		n := int(arg1)
		if n > len(buf) {
			n = len(buf)
		}
		hwErr = c.panel.write(c.frame, c.format, buf, n)

	case cmdFill:
		buf := c.Grant(screen.DriverNum, slotFrame)
		if buf == nil {
			return 0, kernel.StatusNoMem
		}
		if c.format.BufferSize(1, 1) > len(buf) {
			return 0, kernel.StatusSize
		}
		hwErr = c.panel.fill(c.frame, c.format, buf)

	default:
		return 0, kernel.StatusNoSupport
	}

	status := kernel.StatusOK
	if hwErr != nil {
		log.Printf("host: %s command %d: %v", c.panel, op, hwErr)
		status = kernel.StatusFail
	}

	c.busy = true
	c.complete(completion{
		status:  status,
		data1:   data1,
		data2:   data2,
		release: c.release,
	})
	return 0, nil
}

func (c *Conn) supportedFormat(format pixel.Format) bool {
	for _, f := range c.formats {
		if f == format {
			return true
		}
	}
	return false
}

func (c *Conn) release() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

func (c *Conn) complete(cpl completion) {
	select {
	case c.queue <- cpl:
	case <-c.done:
	}
}

func (c *Conn) pump() {
	for {
		select {
		case cpl := <-c.queue:
			if cpl.release != nil {
				cpl.release()
			}
			if fn := c.Upcall(screen.DriverNum, 0); fn != nil {
				fn(cpl.status, cpl.data1, cpl.data2)
			}
		case <-c.done:
			return
		}
	}
}
