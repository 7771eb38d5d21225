package host

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
)

// spiBatch caps single transfers; spidev buffers are commonly 4 KiB.
const spiBatch = 4096

// spiBus drives a panel's 4-wire SPI interface. A data/command pin
// selects how the panel interprets traffic; reset is a separate pin.
type spiBus struct {
	port    spi.PortCloser
	conn    spi.Conn
	dc      gpio.PinOut
	dcLevel gpio.Level
	reset   gpio.PinOut
	batch   int
}

func openSPI(config *Config, mode spi.Mode, freq physic.Frequency) (*spiBus, error) {
	if config.Hz > 0 {
		freq = physic.Frequency(config.Hz) * physic.Hertz
	}

	port, err := spireg.Open(config.Port)
	if err != nil {
		return nil, err
	}
	c, err := port.Connect(freq, mode, 8)
	if err != nil {
		port.Close()
		return nil, err
	}

	b := &spiBus{port: port, conn: c, batch: spiBatch}
	if lim, ok := c.(conn.Limits); ok {
		if n := lim.MaxTxSize(); n > 0 && n < b.batch {
			b.batch = n
		}
	}

	if b.dc = gpioreg.ByName(config.DC); b.dc == nil {
		port.Close()
		return nil, fmt.Errorf("host: no data/command pin %q", config.DC)
	}
	if b.reset = gpioreg.ByName(config.Reset); b.reset == nil {
		port.Close()
		return nil, fmt.Errorf("host: no reset pin %q", config.Reset)
	}

	// Known pin states before the first command.
	if err := b.dc.Out(gpio.Low); err != nil {
		port.Close()
		return nil, err
	}
	if err := b.reset.Out(gpio.High); err != nil {
		port.Close()
		return nil, err
	}
	return b, nil
}

// hardReset pulses the reset pin.
func (b *spiBus) hardReset() error {
	for _, level := range []gpio.Level{gpio.High, gpio.Low, gpio.High} {
		if err := b.reset.Out(level); err != nil {
			return err
		}
		time.Sleep(100 * time.Millisecond)
	}
	return nil
}

func (b *spiBus) setDC(level gpio.Level) error {
	if b.dcLevel == level {
		return nil
	}
	if err := b.dc.Out(level); err != nil {
		return err
	}
	b.dcLevel = level
	return nil
}

// command sends a command byte with optional arguments.
func (b *spiBus) command(cmd byte, args ...byte) error {
	if err := b.setDC(gpio.Low); err != nil {
		return err
	}
	if err := b.tx([]byte{cmd}); err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}
	if err := b.setDC(gpio.High); err != nil {
		return err
	}
	return b.tx(args)
}

func (b *spiBus) commands(commands ...[]byte) error {
	for _, c := range commands {
		if err := b.command(c[0], c[1:]...); err != nil {
			return err
		}
	}
	return nil
}

// data sends display RAM bytes.
func (b *spiBus) data(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := b.setDC(gpio.High); err != nil {
		return err
	}
	return b.tx(data)
}

func (b *spiBus) tx(data []byte) error {
	for len(data) > b.batch {
		if err := b.conn.Tx(data[:b.batch], nil); err != nil {
			return err
		}
		data = data[b.batch:]
	}
	return b.conn.Tx(data, nil)
}

func (b *spiBus) close() error {
	return b.port.Close()
}
