package kernel

import "fmt"

// Status is a kernel status code. Zero and positive values indicate
// success, negative values indicate failure. Drivers report these codes
// verbatim and this package never remaps them.
type Status int32

// Kernel status codes.
const (
	StatusOK          Status = 0   // operation completed
	StatusFail        Status = -1  // generic failure
	StatusBusy        Status = -2  // driver has a command in flight
	StatusAlready     Status = -3  // state already exists
	StatusOff         Status = -4  // device is powered down
	StatusReserve     Status = -5  // reservation required
	StatusInvalid     Status = -6  // invalid argument
	StatusSize        Status = -7  // out of bounds or wrong length
	StatusCancel      Status = -8  // operation was canceled
	StatusNoMem       Status = -9  // out of memory
	StatusNoSupport   Status = -10 // operation not supported
	StatusNoDevice    Status = -11 // no such device
	StatusUninstalled Status = -12 // device present but not installed
	StatusNoAck       Status = -13 // no acknowledgement
)

var statusNames = map[Status]string{
	StatusOK:          "ok",
	StatusFail:        "fail",
	StatusBusy:        "busy",
	StatusAlready:     "already",
	StatusOff:         "off",
	StatusReserve:     "reserve",
	StatusInvalid:     "invalid",
	StatusSize:        "size",
	StatusCancel:      "cancel",
	StatusNoMem:       "no memory",
	StatusNoSupport:   "no support",
	StatusNoDevice:    "no device",
	StatusUninstalled: "uninstalled",
	StatusNoAck:       "no ack",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status %d", int32(s))
}

// Error makes failure statuses usable as errors; see Err.
func (s Status) Error() string {
	return "kernel: " + s.String()
}

// Err returns s as an error, or nil if s indicates success. Callers can
// match specific codes with errors.Is(err, kernel.StatusBusy).
func (s Status) Err() error {
	if s >= StatusOK {
		return nil
	}
	return s
}
