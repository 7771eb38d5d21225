package pixel

import (
	"encoding/binary"
	"fmt"
	"image/color"
)

// Format identifies a pixel encoding. The values match what screen
// drivers report, so a Format travels through commands and upcalls
// unchanged.
type Format int32

// Pixel formats, ordered by driver value.
const (
	FormatMono     Format = iota // 1 bit per pixel monochrome
	FormatRGB233                 // 8 bits per pixel, 2-3-3 RGB
	FormatRGB565                 // 16 bits per pixel, 5-6-5 RGB
	FormatRGB888                 // 24 bits per pixel, 8-8-8 RGB
	FormatARGB8888               // 32 bits per pixel, 8-8-8-8 ARGB
)

// FormatError is reported by drivers that cannot name their format.
const FormatError Format = -1

func (f Format) String() string {
	switch f {
	case FormatMono:
		return "mono"
	case FormatRGB233:
		return "RGB 2-3-3"
	case FormatRGB565:
		return "RGB 5-6-5"
	case FormatRGB888:
		return "RGB 8-8-8"
	case FormatARGB8888:
		return "ARGB 8-8-8-8"
	}
	return fmt.Sprintf("format %d", int32(f))
}

// BitsPerPixel returns the storage size of one pixel, or 0 for unknown
// formats.
func (f Format) BitsPerPixel() int {
	switch f {
	case FormatMono:
		return 1
	case FormatRGB233:
		return 8
	case FormatRGB565:
		return 16
	case FormatRGB888:
		return 24
	case FormatARGB8888:
		return 32
	}
	return 0
}

// BufferSize returns the number of bytes a w by h frame occupies in
// this format, rounded up to whole bytes.
func (f Format) BufferSize(w, h int) int {
	return (w*h*f.BitsPerPixel() + 7) / 8
}

// Pixel decodes pixel i of a continuous packed buffer in wire order:
// no row padding, mono bits LSB first, multi-byte pixels big endian.
// This is the layout of the shared frame buffer behind write and fill
// commands. Unknown formats decode as transparent.
func (f Format) Pixel(buf []byte, i int) color.Color {
	switch f {
	case FormatMono:
		if buf[i/8]&(1<<(i%8)) != 0 {
			return On
		}
		return Off
	case FormatRGB233:
		return RGB233{V: buf[i]}
	case FormatRGB565:
		return RGB565{V: binary.BigEndian.Uint16(buf[i*2:])}
	case FormatRGB888:
		return RGB888{R: buf[i*3], G: buf[i*3+1], B: buf[i*3+2]}
	case FormatARGB8888:
		v := binary.BigEndian.Uint32(buf[i*4:])
		return ARGB8888{
			A: uint8(v >> 24),
			R: uint8(v >> 16),
			G: uint8(v >> 8),
			B: uint8(v),
		}
	}
	return color.Transparent
}

// NewImage returns an empty image in this format, or nil for unknown
// formats.
func (f Format) NewImage(w, h int) Image {
	switch f {
	case FormatMono:
		return NewMonoImage(w, h)
	case FormatRGB233:
		return NewRGB233Image(w, h)
	case FormatRGB565:
		return NewRGB565Image(w, h)
	case FormatRGB888:
		return NewRGB888Image(w, h)
	case FormatARGB8888:
		return NewARGB8888Image(w, h)
	}
	return nil
}
