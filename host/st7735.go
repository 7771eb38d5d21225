package host

import (
	"fmt"
	"image"
	"log"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	screen "github.com/BeatGlow/screen"
	"github.com/BeatGlow/screen/pixel"
)

const (
	st7735DefaultWidth  = 128
	st7735DefaultHeight = 160
)

// Registers (from st7735.pdf).
const (
	st7735SWRESET = 0x01
	st7735SLPOUT  = 0x11
	st7735NORON   = 0x13
	st7735INVOFF  = 0x20
	st7735INVON   = 0x21
	st7735DISPOFF = 0x28
	st7735DISPON  = 0x29
	st7735CASET   = 0x2A
	st7735RASET   = 0x2B
	st7735RAMWR   = 0x2C
	st7735MADCTL  = 0x36
	st7735COLMOD  = 0x3A
	st7735FRMCTR1 = 0xB1
	st7735FRMCTR2 = 0xB2
	st7735FRMCTR3 = 0xB3
	st7735INVCTR  = 0xB4
	st7735PWCTR1  = 0xC0
	st7735PWCTR2  = 0xC1
	st7735PWCTR3  = 0xC2
	st7735PWCTR4  = 0xC3
	st7735PWCTR5  = 0xC4
	st7735VMCTR1  = 0xC5
	st7735GMCTRP1 = 0xE0
	st7735GMCTRN1 = 0xE1
)

// Memory Data Access Control (MADCTL) bit fields.
const (
	_                        byte = 1 << iota // D0: reserved
	_                                         // D1: reserved
	st7735DataLatchOrder                      // D2: MH
	st7735RGBOrder                            // D3: RGB
	st7735LineAddressOrder                    // D4: ML
	st7735PageColumnOrder                     // D5: MV
	st7735ColumnAddressOrder                  // D6: MX
	st7735PageAddressOrder                    // D7: MY
)

// st7735 is a TFT panel with a 16-bit interface: frames stream into a
// CASET/RASET window in big endian RGB 5-6-5, matching the wire layout
// of the shared frame buffer.
type st7735 struct {
	bus       *spiBus
	backlight gpio.PinOut
	width     int
	height    int
}

// OpenST7735 initializes an ST7735 TFT panel and returns a Conn serving
// it as the screen driver.
func OpenST7735(config *Config) (*Conn, error) {
	if config == nil {
		config = new(Config)
		*config = DefaultConfig
	}
	if config.DC == "" {
		config.DC = DefaultConfig.DC
	}
	if config.Reset == "" {
		config.Reset = DefaultConfig.Reset
	}

	width, height := config.Width, config.Height
	rotated := config.Rotation == screen.Rotate90 || config.Rotation == screen.Rotate270
	if width == 0 {
		if width = st7735DefaultWidth; rotated {
			width = st7735DefaultHeight
		}
	}
	if height == 0 {
		if height = st7735DefaultHeight; rotated {
			height = st7735DefaultWidth
		}
	}

	bus, err := openSPI(config, spi.Mode3, 40*physic.MegaHertz)
	if err != nil {
		return nil, err
	}

	p := &st7735{bus: bus, width: width, height: height}
	if config.Backlight != "" {
		if p.backlight = gpioreg.ByName(config.Backlight); p.backlight == nil {
			bus.close()
			return nil, fmt.Errorf("host: no backlight pin %q", config.Backlight)
		}
	} else {
		log.Println("st7735: no backlight control")
	}

	if err := p.init(config.Rotation); err != nil {
		bus.close()
		return nil, err
	}
	return newConn(p, image.Pt(width, height), []pixel.Format{pixel.FormatRGB565}, config.Rotation), nil
}

func (p *st7735) String() string {
	return fmt.Sprintf("ST7735 %dx%d", p.width, p.height)
}

func (p *st7735) init(rotation screen.Rotation) error {
	if p.backlight != nil {
		if err := p.backlight.PWM(gpio.DutyMax, 2*physic.KiloHertz); err != nil {
			return err
		}
	}

	if err := p.bus.hardReset(); err != nil {
		return err
	}
	time.Sleep(10 * time.Millisecond)
	if err := p.bus.command(st7735SWRESET); err != nil {
		return err
	}
	time.Sleep(150 * time.Millisecond)
	if err := p.bus.command(st7735SLPOUT); err != nil {
		return err
	}
	time.Sleep(150 * time.Millisecond)

	if err := p.bus.commands(
		[]byte{st7735FRMCTR1, 0x01, 0x2C, 0x2D},
		[]byte{st7735FRMCTR2, 0x01, 0x2C, 0x2D},
		[]byte{st7735FRMCTR3, 0x01, 0x2C, 0x2D, 0x01, 0x2C, 0x2D},
		[]byte{st7735INVCTR, 0x07},
		[]byte{st7735PWCTR1, 0xA2, 0x02, 0x84},
		[]byte{st7735PWCTR2, 0xC5},
		[]byte{st7735PWCTR3, 0x0A, 0x00},
		[]byte{st7735PWCTR4, 0x8A, 0x2A},
		[]byte{st7735PWCTR5, 0x8A, 0xEE},
		[]byte{st7735VMCTR1, 0x0E},
		[]byte{st7735COLMOD, 0x05}, // 16 bits per pixel
		[]byte{st7735GMCTRP1, 0x02, 0x1C, 0x07, 0x12, 0x37, 0x32, 0x29, 0x2D, 0x29, 0x25, 0x2B, 0x39, 0x00, 0x01, 0x03, 0x10},
		[]byte{st7735GMCTRN1, 0x03, 0x1D, 0x07, 0x06, 0x2E, 0x2C, 0x29, 0x2D, 0x2E, 0x2E, 0x37, 0x3F, 0x00, 0x00, 0x02, 0x10},
		[]byte{st7735NORON},
		[]byte{st7735DISPON},
	); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)

	return p.setRotation(rotation)
}

func (p *st7735) setRotation(rotation screen.Rotation) error {
	var madctl byte
	switch rotation {
	case screen.Rotate90:
		madctl = st7735ColumnAddressOrder | st7735PageColumnOrder
	case screen.Rotate180:
		madctl = st7735ColumnAddressOrder | st7735PageAddressOrder
	case screen.Rotate270:
		madctl = st7735PageAddressOrder | st7735PageColumnOrder
	}
	if debug {
		log.Printf("st7735: madctl %s -> %#02x", rotation, madctl)
	}
	return p.bus.command(st7735MADCTL, madctl)
}

// setBrightness maps the driver's 0-255 scale onto the backlight duty
// cycle. Panels without backlight control accept and ignore it.
func (p *st7735) setBrightness(level uint32) error {
	if p.backlight == nil {
		return nil
	}
	if level > 0xFF {
		level = 0xFF
	}
	const step = gpio.DutyMax / 0xFF
	return p.backlight.PWM(step*gpio.Duty(level), 2*physic.KiloHertz)
}

func (p *st7735) setInvert(on bool) error {
	if on {
		return p.bus.command(st7735INVON)
	}
	return p.bus.command(st7735INVOFF)
}

// setWindow opens frame for RAM writes.
func (p *st7735) setWindow(frame image.Rectangle) error {
	x0, y0 := frame.Min.X, frame.Min.Y
	x1, y1 := frame.Max.X-1, frame.Max.Y-1
	return p.bus.commands(
		[]byte{st7735CASET, byte(x0 >> 8), byte(x0), byte(x1 >> 8), byte(x1)},
		[]byte{st7735RASET, byte(y0 >> 8), byte(y0), byte(y1 >> 8), byte(y1)},
		[]byte{st7735RAMWR},
	)
}

func (p *st7735) write(frame image.Rectangle, format pixel.Format, buf []byte, n int) error {
	data := rgb565Wire(format, buf, n, frame.Dx()*frame.Dy())
	if len(data) == 0 {
		return nil
	}
	if err := p.setWindow(frame); err != nil {
		return err
	}
	return p.bus.data(data)
}

func (p *st7735) fill(frame image.Rectangle, format pixel.Format, buf []byte) error {
	area := frame.Dx() * frame.Dy()
	if area == 0 {
		return nil
	}
	c := pixel.RGB565Model.Convert(format.Pixel(buf, 0)).(pixel.RGB565)
	data := make([]byte, area*2)
	for i := 0; i < len(data); i += 2 {
		data[i] = byte(c.V >> 8)
		data[i+1] = byte(c.V)
	}
	if err := p.setWindow(frame); err != nil {
		return err
	}
	return p.bus.data(data)
}

func (p *st7735) close() error {
	if err := p.bus.command(st7735DISPOFF); err != nil {
		_ = p.bus.close()
		return err
	}
	return p.bus.close()
}

// rgb565Wire returns frame data as big endian RGB 5-6-5, the panel's
// stream format. RGB 5-6-5 buffers pass through; other formats are
// converted pixel by pixel. maxPixels caps the stream at the window
// area so the panel's write pointer does not wrap.
func rgb565Wire(format pixel.Format, buf []byte, n, maxPixels int) []byte {
	if format == pixel.FormatRGB565 {
		if n > maxPixels*2 {
			n = maxPixels * 2
		}
		return buf[:n&^1]
	}

	bpp := format.BitsPerPixel()
	if bpp == 0 {
		return nil
	}
	pixels := n * 8 / bpp
	if pixels > maxPixels {
		pixels = maxPixels
	}
	data := make([]byte, 0, pixels*2)
	for i := 0; i < pixels; i++ {
		c := pixel.RGB565Model.Convert(format.Pixel(buf, i)).(pixel.RGB565)
		data = append(data, byte(c.V>>8), byte(c.V))
	}
	return data
}
