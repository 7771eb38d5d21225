// Package screen is a userspace client for a screen peripheral managed
// by a kernel driver.
//
// The kernel exposes the screen as a numbered driver: every operation
// is a command with up to two argument words, completing asynchronously
// through an upcall that carries a status and up to two result words.
// A [Device] hides that rendezvous behind synchronous methods: each
// call subscribes for the completion, issues its command, and waits for
// the upcall or for the caller's context, whichever comes first.
//
// Pixels travel through a frame buffer allocated by [Device.Init] and
// granted to the driver; see [Device.Buffer], [Device.Write] and
// [Device.Fill]. Wrap the buffer with [Device.Image] to use the
// standard library image and draw packages on it.
package screen

import (
	"os"
	"sync"

	"github.com/BeatGlow/screen/kernel"
)

// DriverNum identifies the screen driver on the kernel boundary.
const DriverNum = 0x90001

const (
	subDone   = 0 // completion upcall
	slotFrame = 0 // frame buffer grant
)

var debug bool

func init() {
	debug = os.Getenv("SCREEN_DEBUG") != ""
}

// Rotation defines pixel rotation.
type Rotation uint32

// Supported rotations.
const (
	NoRotation Rotation = iota
	Rotate90            // Rotate 90° clock wise
	Rotate180           // Rotate 180°
	Rotate270           // Rotate 270° clock wise
)

func (r Rotation) String() string {
	switch r % 4 {
	case Rotate90:
		return "90°"
	case Rotate180:
		return "180°"
	case Rotate270:
		return "270°"
	default:
		return "0°"
	}
}

// Device is a handle to one screen.
//
// A mutex keeps a single request outstanding per Device, so a Device is
// safe for use from multiple goroutines; calls are served in lock
// acquisition order.
type Device struct {
	conn kernel.Conn

	mu  sync.Mutex
	buf []byte
}

// New returns a Device driving the screen behind c. The Device borrows
// the conn; closing the conn invalidates the Device.
func New(c kernel.Conn) *Device {
	return &Device{conn: c}
}
