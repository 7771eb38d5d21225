package host

import (
	"fmt"
	"image"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	screen "github.com/BeatGlow/screen"
	"github.com/BeatGlow/screen/pixel"
)

const (
	ssd1306DefaultWidth  = 128
	ssd1306DefaultHeight = 64
)

// Registers (from ssd1306.pdf).
const (
	ssd1306SetMemoryMode         = 0x20
	ssd1306SetColumnAddr         = 0x21
	ssd1306SetPageAddr           = 0x22
	ssd1306SetStartLine          = 0x40
	ssd1306SetContrast           = 0x81
	ssd1306SetChargePump         = 0x8D
	ssd1306SetRemap              = 0xA0
	ssd1306SetSegmentRemap       = 0xA1
	ssd1306SetDisplayAllOnResume = 0xA4
	ssd1306SetNormalDisplay      = 0xA6
	ssd1306SetInvertDisplay      = 0xA7
	ssd1306SetMultiplexRatio     = 0xA8
	ssd1306SetDisplayOff         = 0xAE
	ssd1306SetDisplayOn          = 0xAF
	ssd1306SetComScanInc         = 0xC0
	ssd1306SetComScanDec         = 0xC8
	ssd1306SetDisplayOffset      = 0xD3
	ssd1306SetDisplayClockDiv    = 0xD5
	ssd1306SetPrecharge          = 0xD9
	ssd1306SetComPins            = 0xDA
	ssd1306SetVCOMDeselect       = 0xDB
)

// ssd1306 is a monochrome OLED with page-addressed RAM: each page holds
// eight rows, one byte per column, LSB on top. The driver keeps a RAM
// copy in that layout and refreshes the pages a command touched.
type ssd1306 struct {
	bus      *spiBus
	img      *pixel.MonoVerticalLSBImage
	width    int
	height   int
	colStart byte
}

// OpenSSD1306 initializes an SSD1306 OLED panel and returns a Conn
// serving it as the screen driver. The panel speaks the monochrome
// frame buffer format.
func OpenSSD1306(config *Config) (*Conn, error) {
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
	if width == 0 {
		width = ssd1306DefaultWidth
	}
	if height == 0 {
		height = ssd1306DefaultHeight
	}

	bus, err := openSPI(config, spi.Mode0, 8*physic.MegaHertz)
	if err != nil {
		return nil, err
	}

	p := &ssd1306{
		bus:    bus,
		img:    pixel.NewMonoVerticalLSBImage(width, height),
		width:  width,
		height: height,
	}
	if err := p.init(config.Rotation); err != nil {
		bus.close()
		return nil, err
	}
	return newConn(p, image.Pt(width, height), []pixel.Format{pixel.FormatMono}, config.Rotation), nil
}

func (p *ssd1306) String() string {
	return fmt.Sprintf("SSD1306 OLED %dx%d", p.width, p.height)
}

func (p *ssd1306) init(rotation screen.Rotation) error {
	var displayClockDiv, comPins, colStart byte
	switch {
	case p.width == 64 && p.height == 32:
		displayClockDiv, comPins, colStart = 0x80, 0x12, 32
	case p.width == 64 && p.height == 48:
		displayClockDiv, comPins, colStart = 0x80, 0x12, 32
	case p.width == 96 && p.height == 16:
		displayClockDiv, comPins, colStart = 0x60, 0x02, 0
	case p.width == 128 && p.height == 32:
		displayClockDiv, comPins, colStart = 0x80, 0x02, 0
	case p.width == 128 && p.height == 64:
		displayClockDiv, comPins, colStart = 0x80, 0x12, 0
	default:
		return fmt.Errorf("host: SSD1306 unsupported size %dx%d", p.width, p.height)
	}
	p.colStart = colStart

	if err := p.bus.hardReset(); err != nil {
		return err
	}
	if err := p.bus.command(
		ssd1306SetDisplayOff,
		ssd1306SetDisplayClockDiv, displayClockDiv,
		ssd1306SetMultiplexRatio, byte(p.height-1),
		ssd1306SetDisplayOffset, 0x00,
		ssd1306SetStartLine,
		ssd1306SetChargePump, 0x14,
		ssd1306SetMemoryMode, 0x00,
		ssd1306SetComPins, comPins,
		ssd1306SetPrecharge, 0xF1,
		ssd1306SetVCOMDeselect, 0x40,
		ssd1306SetDisplayAllOnResume,
		ssd1306SetNormalDisplay,
	); err != nil {
		return err
	}
	if err := p.setRotation(rotation); err != nil {
		return err
	}
	if err := p.setBrightness(0xCF); err != nil {
		return err
	}
	if err := p.refresh(p.img.Bounds()); err != nil {
		return err
	}
	return p.bus.command(ssd1306SetDisplayOn)
}

// setBrightness drives the contrast register; the panel has no
// backlight.
func (p *ssd1306) setBrightness(level uint32) error {
	if level > 0xFF {
		level = 0xFF
	}
	return p.bus.command(ssd1306SetContrast, byte(level))
}

func (p *ssd1306) setInvert(on bool) error {
	if on {
		return p.bus.command(ssd1306SetInvertDisplay)
	}
	return p.bus.command(ssd1306SetNormalDisplay)
}

// setRotation flips segment and COM scan order. The panel cannot rotate
// by 90 degrees.
func (p *ssd1306) setRotation(rotation screen.Rotation) error {
	switch rotation {
	case screen.NoRotation:
		return p.bus.command(ssd1306SetSegmentRemap, ssd1306SetComScanDec)
	case screen.Rotate180:
		return p.bus.command(ssd1306SetRemap, ssd1306SetComScanInc)
	}
	return fmt.Errorf("host: SSD1306 cannot rotate %s", rotation)
}

func (p *ssd1306) write(frame image.Rectangle, format pixel.Format, buf []byte, n int) error {
	width := frame.Dx()
	bpp := format.BitsPerPixel()
	if width == 0 || bpp == 0 {
		return nil
	}
	pixels := n * 8 / bpp
	for i := 0; i < pixels; i++ {
		y := frame.Min.Y + i/width
		if y >= frame.Max.Y {
			break
		}
		p.img.Set(frame.Min.X+i%width, y, format.Pixel(buf, i))
	}
	return p.refresh(frame)
}

func (p *ssd1306) fill(frame image.Rectangle, format pixel.Format, buf []byte) error {
	c := format.Pixel(buf, 0)
	for y := frame.Min.Y; y < frame.Max.Y; y++ {
		for x := frame.Min.X; x < frame.Max.X; x++ {
			p.img.Set(x, y, c)
		}
	}
	return p.refresh(frame)
}

// refresh pushes the pages covering r from the RAM copy to the panel.
func (p *ssd1306) refresh(r image.Rectangle) error {
	if r.Empty() {
		return nil
	}
	first := r.Min.Y / 8
	last := (r.Max.Y - 1) / 8
	col0 := p.colStart + byte(r.Min.X)
	col1 := p.colStart + byte(r.Max.X-1)

	for page := first; page <= last; page++ {
		if err := p.bus.command(
			ssd1306SetColumnAddr, col0, col1,
			ssd1306SetPageAddr, byte(page), byte(page),
		); err != nil {
			return err
		}
		off := page*p.width + r.Min.X
		if err := p.bus.data(p.img.Pix[off : off+r.Dx()]); err != nil {
			return err
		}
	}
	return nil
}

func (p *ssd1306) close() error {
	if err := p.bus.command(ssd1306SetDisplayOff); err != nil {
		_ = p.bus.close()
		return err
	}
	return p.bus.close()
}
