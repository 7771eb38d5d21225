package pixel

import "image/color"

// Models for the driver color types.
var (
	MonoModel     color.Model = color.ModelFunc(monoModel)
	RGB233Model   color.Model = color.ModelFunc(rgb233Model)
	RGB565Model   color.Model = color.ModelFunc(rgb565Model)
	RGB888Model   color.Model = color.ModelFunc(rgb888Model)
	ARGB8888Model color.Model = color.ModelFunc(argb8888Model)
)

var (
	Off = Mono{false}
	On  = Mono{true}
)

// Mono represents a 1-bit monochrome color.
type Mono struct {
	On bool
}

func (c Mono) RGBA() (r, g, b, a uint32) {
	if c.On {
		return 0xffff, 0xffff, 0xffff, 0xffff
	}
	return 0, 0, 0, 0xffff
}

func monoModel(c color.Color) color.Color {
	if _, ok := c.(Mono); ok {
		return c
	}
	r, g, b, _ := c.RGBA()

	// JFIF luma coefficients, as used by RGBToYCbCr; the shift by 31
	// instead of 16 leaves a single bit.
	y := (19595*r + 38470*g + 7471*b + 1<<15) >> 31

	return Mono{On: y != 0}
}

// RGB233 represents an 8-bit 2-3-3 RGB color.
type RGB233 struct {
	// CRed, 2, CGreen, 3, CBlue, 3
	V uint8
}

func (c RGB233) RGBA() (r, g, b, a uint32) {
	red := uint32(c.V >> 6)
	grn := uint32(c.V >> 3 & 0x7)
	blu := uint32(c.V & 0x7)
	// Widen 2 bits by duplication.
	red |= red << 2
	red |= red << 4
	red |= red << 8
	// Widen 3 bits to 8, then duplicate into the high byte.
	grn = grn<<5 | grn<<2 | grn>>1
	grn |= grn << 8
	blu = blu<<5 | blu<<2 | blu>>1
	blu |= blu << 8
	return red, grn, blu, 0xffff
}

func rgb233Model(c color.Color) color.Color {
	if _, ok := c.(RGB233); ok {
		return c
	}
	r, g, b, _ := c.RGBA()
	return RGB233{uint8(r>>14<<6 | g>>13<<3 | b>>13)}
}

// RGB565 represents a 16-bit 5-6-5 RGB color.
type RGB565 struct {
	// CRed, 5, CGreen, 6, CBlue, 5
	V uint16
}

func (c RGB565) RGBA() (r, g, b, a uint32) {
	// Build a 5- or 6-bit value at the top of the low byte of each component.
	red := (c.V & 0xF800) >> 8
	grn := (c.V & 0x07E0) >> 3
	blu := (c.V & 0x001F) << 3
	// Duplicate the high bits in the low bits.
	red |= red >> 5
	grn |= grn >> 6
	blu |= blu >> 5
	// Duplicate the whole value in the high byte.
	red |= red << 8
	grn |= grn << 8
	blu |= blu << 8
	return uint32(red), uint32(grn), uint32(blu), 0xffff
}

func rgb565Model(c color.Color) color.Color {
	switch c := c.(type) {
	case RGB565:
		return c
	case Mono:
		if c.On {
			return RGB565{0xffff}
		}
		return RGB565{}
	default:
		r, g, b, _ := c.RGBA()
		r = r & 0xF800
		g = (g & 0xFC00) >> 5
		b = (b & 0xF800) >> 11
		return RGB565{uint16(r | g | b)}
	}
}

// RGB888 represents a 24-bit 8-8-8 RGB color.
type RGB888 struct {
	R, G, B uint8
}

func (c RGB888) RGBA() (r, g, b, a uint32) {
	r = uint32(c.R)
	r |= r << 8
	g = uint32(c.G)
	g |= g << 8
	b = uint32(c.B)
	b |= b << 8
	return r, g, b, 0xffff
}

func rgb888Model(c color.Color) color.Color {
	if _, ok := c.(RGB888); ok {
		return c
	}
	r, g, b, _ := c.RGBA()
	return RGB888{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)}
}

// ARGB8888 represents a 32-bit 8-8-8-8 ARGB color. The channels are
// not alpha-premultiplied.
type ARGB8888 struct {
	A, R, G, B uint8
}

func (c ARGB8888) RGBA() (r, g, b, a uint32) {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}.RGBA()
}

func argb8888Model(c color.Color) color.Color {
	if _, ok := c.(ARGB8888); ok {
		return c
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return ARGB8888{A: n.A, R: n.R, G: n.G, B: n.B}
}
