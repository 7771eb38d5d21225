// Package sim provides an in-process kernel with screen and console
// capsules, for tests, demos and development without hardware.
//
// The simulated kernel implements kernel.Conn directly. Completions are
// delivered from a single pump goroutine, the analog of the cooperative
// scheduler on a real target, with optional artificial latency. The
// screen capsule renders into an in-memory panel whose contents are
// available as an image snapshot; the console capsule feeds reads from
// a configurable io.Reader. kernel.Serve exposes the kernel to remote
// clients over the frame protocol.
package sim

import (
	"image"
	"io"
	"sync"
	"time"

	screen "github.com/BeatGlow/screen"
	"github.com/BeatGlow/screen/console"
	"github.com/BeatGlow/screen/kernel"
	"github.com/BeatGlow/screen/pixel"
)

// Config configures the simulated kernel. The zero value is usable; New
// fills in defaults.
type Config struct {
	// Resolutions the screen capsule can switch between, the first one
	// active at start. Default 128x160.
	Resolutions []image.Point

	// Formats the screen capsule can switch between, the first one
	// active at start. Default RGB 5-6-5.
	Formats []pixel.Format

	// Latency delays every completion, modeling hardware time.
	Latency time.Duration

	// Console feeds the console capsule. Without one, console reads
	// fail with kernel.StatusNoDevice.
	Console io.Reader
}

// Kernel is an in-process kernel. It implements kernel.Conn.
type Kernel struct {
	kernel.Registry

	screen  *screenCapsule
	console *consoleCapsule
	latency time.Duration

	queue  chan completion
	done   chan struct{}
	closer sync.Once
}

// completion is one queued upcall. release unblocks the issuing capsule
// and runs before delivery, so a client resumed by the upcall never
// finds the capsule still busy.
type completion struct {
	driver, sub  uint32
	status       kernel.Status
	data1, data2 uint32
	release      func()
}

var _ kernel.Conn = (*Kernel)(nil)

// New returns a simulated kernel.
func New(config *Config) *Kernel {
	if config == nil {
		config = &Config{}
	}
	resolutions := config.Resolutions
	if len(resolutions) == 0 {
		resolutions = []image.Point{image.Pt(128, 160)}
	}
	formats := config.Formats
	if len(formats) == 0 {
		formats = []pixel.Format{pixel.FormatRGB565}
	}

	k := &Kernel{
		latency: config.Latency,
		queue:   make(chan completion, 16),
		done:    make(chan struct{}),
	}
	k.screen = newScreenCapsule(resolutions, formats)
	k.console = &consoleCapsule{r: config.Console}
	go k.pump()
	return k
}

// Command dispatches to the capsule behind the driver number.
func (k *Kernel) Command(driver, op, arg1, arg2 uint32) (uint32, error) {
	switch driver {
	case screen.DriverNum:
		return k.screen.command(k, op, arg1, arg2)
	case console.DriverNum:
		return k.console.command(k, op, arg1, arg2)
	}
	return 0, kernel.StatusNoDevice
}

// Close stops the upcall pump. Queued completions may be dropped.
func (k *Kernel) Close() error {
	k.closer.Do(func() { close(k.done) })
	return nil
}

// Panel returns a snapshot of the simulated panel, inversion applied.
func (k *Kernel) Panel() image.Image {
	return k.screen.snapshot()
}

// complete queues an upcall for delivery.
func (k *Kernel) complete(c completion) {
	select {
	case k.queue <- c:
	case <-k.done:
	}
}

func (k *Kernel) pump() {
	for {
		select {
		case c := <-k.queue:
			if k.latency > 0 {
				time.Sleep(k.latency)
			}
			if c.release != nil {
				c.release()
			}
			if fn := k.Upcall(c.driver, c.sub); fn != nil {
				fn(c.status, c.data1, c.data2)
			}
		case <-k.done:
			return
		}
	}
}
