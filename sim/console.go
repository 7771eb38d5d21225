package sim

import (
	"io"
	"sync"

	"github.com/BeatGlow/screen/console"
	"github.com/BeatGlow/screen/kernel"
)

// Console capsule numbers, the counterpart of package console.
const (
	cmdConsoleRead  = 2
	subConsoleRead  = 2
	slotConsoleRead = 1
)

// consoleCapsule feeds console reads from an io.Reader. Each accepted
// read blocks on the reader in its own goroutine and completes through
// the pump; a drained reader completes with kernel.StatusFail.
type consoleCapsule struct {
	r io.Reader

	mu   sync.Mutex
	busy bool
}

func (c *consoleCapsule) command(k *Kernel, op, arg1, _ uint32) (uint32, error) {
	if op != cmdConsoleRead {
		return 0, kernel.StatusNoSupport
	}
	if c.r == nil {
		return 0, kernel.StatusNoDevice
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return 0, kernel.StatusBusy
	}

	buf := k.Grant(console.DriverNum, slotConsoleRead)
	if buf == nil {
		return 0, kernel.StatusNoMem
	}
	n := int(arg1)
	if n <= 0 || n > len(buf) {
		return 0, kernel.StatusSize
	}

	c.busy = true
	go c.read(k, buf[:n])
	return 0, nil
}

// read blocks on the reader off the command path, then completes.
func (c *consoleCapsule) read(k *Kernel, buf []byte) {
	n, err := c.r.Read(buf)
	status := kernel.StatusOK
	if err != nil && n == 0 {
		status = kernel.StatusFail
	}
	k.complete(completion{
		driver:  console.DriverNum,
		sub:     subConsoleRead,
		status:  status,
		data1:   uint32(n),
		release: c.release,
	})
}

func (c *consoleCapsule) release() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}
