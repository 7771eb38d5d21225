// Package console reads characters from the kernel console driver.
//
// Reads follow the same rendezvous as the screen operations: grant a
// receive buffer, subscribe the read-done upcall, issue the read
// command, wait. The package exists mostly to serve the console echo
// demo, but any client needing key input over a kernel conn can use it.
package console

import (
	"context"
	"sync"

	"github.com/BeatGlow/screen/kernel"
)

// DriverNum identifies the console driver on the kernel boundary.
const DriverNum = 1

const (
	subRead  = 2 // read completion upcall
	slotRead = 1 // receive buffer grant
	cmdRead  = 2 // read n bytes
)

// Device is a handle to the console. A mutex keeps a single read
// outstanding per Device.
type Device struct {
	conn kernel.Conn

	mu  sync.Mutex
	buf []byte // 1-byte receive grant, established on first read
}

// New returns a Device reading the console behind c.
func New(c kernel.Conn) *Device {
	return &Device{conn: c}
}

// Getch reads one character, blocking until the console delivers a byte
// or ctx is done.
func (d *Device) Getch(ctx context.Context) (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.buf == nil {
		buf := make([]byte, 1)
		if err := d.conn.Allow(DriverNum, slotRead, buf); err != nil {
			return 0, err
		}
		d.buf = buf
	}

	done := make(chan kernel.Status, 1)
	err := d.conn.Subscribe(DriverNum, subRead, func(status kernel.Status, n, _ uint32) {
		select {
		case done <- status:
		default:
		}
	})
	if err != nil {
		return 0, err
	}

	if _, err = d.conn.Command(DriverNum, cmdRead, uint32(len(d.buf)), 0); err != nil {
		return 0, err
	}

	select {
	case status := <-done:
		if err := status.Err(); err != nil {
			return 0, err
		}
		return d.buf[0], nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
