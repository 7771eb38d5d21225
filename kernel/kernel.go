// Package kernel defines the system-call boundary between userspace
// driver clients and a kernel that exposes peripherals as numbered
// drivers.
//
// Each driver understands three calls: Subscribe registers an upcall for
// completion notifications, Command issues a numbered operation with two
// argument words, and Allow grants the driver read access to a span of
// caller memory. Commands return immediately; work that touches hardware
// completes later through the subscribed upcall. Client packages such as
// [github.com/BeatGlow/screen] wrap this boundary in synchronous calls.
//
// Two connections ship with this module: the in-process simulator in
// package sim, and the stream transport returned by [Dial] or
// [NewStreamConn] which speaks to a kernel at the far end of a socket or
// serial bridge. Package host adds connections backed by real panels,
// and [Serve] exposes any kernel-side connection to remote clients.
package kernel

// Upcall is a completion notification delivered by a driver. The first
// word is the driver-reported status; the meaning of the remaining two
// words is operation specific.
type Upcall func(status Status, data1, data2 uint32)

// Conn is a connection to a kernel. A single Conn is shared by all
// driver clients in a process, mirroring the single system-call
// interface of the deployment target.
//
// Implementations must be safe for use from multiple goroutines, and
// must deliver upcalls sequentially: at most one upcall runs at a time.
type Conn interface {
	// Subscribe registers fn as the upcall for the driver's numbered
	// subscription, replacing any previous registration. A nil fn
	// revokes.
	Subscribe(driver, sub uint32, fn Upcall) error

	// Command issues the driver's numbered operation with two argument
	// words. The returned word is the immediate result for synchronous
	// operations and zero otherwise. A driver that rejects the command
	// reports why through a Status error.
	Command(driver, op, arg1, arg2 uint32) (uint32, error)

	// Allow grants the driver read access to buf until replaced. A nil
	// buf revokes the grant. The kernel reads the slice contents at
	// command time; the caller keeps ownership and may mutate it
	// between commands.
	Allow(driver, slot uint32, buf []byte) error

	// Close tears the connection down. Pending waits fail with
	// StatusCancel.
	Close() error
}
