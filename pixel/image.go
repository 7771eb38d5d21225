package pixel

import (
	"encoding/binary"
	"image"
	"image/color"

	"github.com/BeatGlow/screen/draw"
)

type Image interface {
	draw.Image

	// Clear the image.
	Clear()

	// Fill the image with a single color.
	Fill(color.Color)
}

// Buffer holds the pixel values and is the container embedded by the
// image types in this package. Wrapping an existing byte slice, such as
// a granted frame buffer, is a matter of filling in the fields.
type Buffer struct {
	// Rect is the image bounding box.
	Rect image.Rectangle

	// Pix are the image pixels.
	Pix []byte

	// Stride is the Pix stride (in bytes) between vertically adjacent pixels.
	Stride int
}

func (p *Buffer) Bounds() image.Rectangle {
	return p.Rect
}

func (p *Buffer) Clear() {
	for i := range p.Pix {
		p.Pix[i] = 0x00
	}
}

func makeBuffer(w, h, stride, size int) Buffer {
	return Buffer{
		Rect:   image.Rect(0, 0, w, h),
		Pix:    make([]byte, size),
		Stride: stride,
	}
}

// MonoImage is a 1-bit per pixel monochrome image, eight horizontally
// adjacent pixels per byte, least significant bit first.
type MonoImage struct {
	Buffer
}

func NewMonoImage(w, h int) *MonoImage {
	stride := ((w + 7) & ^7) / 8 // round up to whole bytes
	return &MonoImage{
		Buffer: makeBuffer(w, h, stride, stride*h),
	}
}

func (p *MonoImage) ColorModel() color.Model {
	return MonoModel
}

func (p *MonoImage) At(x, y int) color.Color {
	if !(image.Point{x, y}).In(p.Rect) {
		return color.Transparent
	}

	index := y*p.Stride + x/8
	if p.Pix[index]&(1<<uint(x%8)) != 0 {
		return On
	}
	return Off
}

func (p *MonoImage) Set(x, y int, c color.Color) {
	if !(image.Point{x, y}).In(p.Rect) {
		return
	}

	index := y*p.Stride + x/8
	if monoModel(c).(Mono).On {
		p.Pix[index] |= (1 << uint(x%8))
	} else {
		p.Pix[index] &^= (1 << uint(x%8))
	}
}

func (p *MonoImage) Fill(c color.Color) {
	var value byte
	if monoModel(c).(Mono).On {
		value = 0xff
	}
	for i := range p.Pix {
		p.Pix[i] = value
	}
}

// MonoVerticalLSBImage is a 1-bit per pixel monochrome image with
// vertical banding.
//
// This is mostly used by SSD1xxx OLED displays.
type MonoVerticalLSBImage struct {
	Buffer
}

func NewMonoVerticalLSBImage(w, h int) *MonoVerticalLSBImage {
	bands := ((h + 7) & ^7) / 8 // round up to whole bytes
	return &MonoVerticalLSBImage{
		Buffer: makeBuffer(w, h, w, bands*w),
	}
}

func (p *MonoVerticalLSBImage) ColorModel() color.Model {
	return MonoModel
}

func (p *MonoVerticalLSBImage) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}).In(p.Rect) {
		return color.Transparent
	}

	var (
		pos = y/8*p.Stride + x
		bit = byte(1) << uint(y&7)
	)
	return Mono{
		On: p.Pix[pos]&bit != 0,
	}
}

func (p *MonoVerticalLSBImage) Set(x, y int, c color.Color) {
	if !(image.Point{X: x, Y: y}).In(p.Rect) {
		return
	}

	var (
		pos = y/8*p.Stride + x
		bit = byte(1) << uint(y&7)
	)
	if monoModel(c).(Mono).On {
		p.Pix[pos] |= bit
	} else {
		p.Pix[pos] &^= bit
	}
}

func (p *MonoVerticalLSBImage) Fill(c color.Color) {
	var value byte
	if monoModel(c).(Mono).On {
		value = 0xff
	}
	for i := range p.Pix {
		p.Pix[i] = value
	}
}

// RGB233Image is an 8-bits per pixel 2-3-3-bit RGB image.
type RGB233Image struct {
	Buffer
}

func NewRGB233Image(w, h int) *RGB233Image {
	return &RGB233Image{
		Buffer: makeBuffer(w, h, w, w*h),
	}
}

func (p *RGB233Image) ColorModel() color.Model {
	return RGB233Model
}

func (p *RGB233Image) At(x, y int) color.Color {
	if !(image.Point{x, y}).In(p.Rect) {
		return color.Transparent
	}

	return RGB233{p.Pix[y*p.Stride+x]}
}

func (p *RGB233Image) Set(x, y int, c color.Color) {
	if !(image.Point{x, y}).In(p.Rect) {
		return
	}

	p.Pix[y*p.Stride+x] = rgb233Model(c).(RGB233).V
}

func (p *RGB233Image) Fill(c color.Color) {
	value := rgb233Model(c).(RGB233).V
	for i := range p.Pix {
		p.Pix[i] = value
	}
}

// RGB565Image is a 16-bits per pixel 5-6-5-bit RGB image. The default
// byte order is big endian, matching the order pixels travel to the
// screen driver.
type RGB565Image struct {
	Buffer
	Order binary.ByteOrder
}

func NewRGB565Image(w, h int) *RGB565Image {
	return &RGB565Image{
		Buffer: makeBuffer(w, h, w*2, w*2*h),
		Order:  binary.BigEndian,
	}
}

func (p *RGB565Image) ColorModel() color.Model {
	return RGB565Model
}

func (p *RGB565Image) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}).In(p.Rect) {
		return color.Transparent
	}

	v := p.Order.Uint16(p.Pix[x*2+y*p.Stride:])
	return RGB565{v}
}

func (p *RGB565Image) Set(x, y int, c color.Color) {
	if !(image.Point{X: x, Y: y}).In(p.Rect) {
		return
	}

	v := rgb565Model(c).(RGB565).V
	p.Order.PutUint16(p.Pix[x*2+y*p.Stride:], v)
}

func (p *RGB565Image) Fill(c color.Color) {
	value := rgb565Model(c).(RGB565).V
	bytes := make([]byte, 2)
	p.Order.PutUint16(bytes, value)
	for i, l := 0, len(p.Pix); i < l; i += 2 {
		copy(p.Pix[i:], bytes)
	}
}

// RGB888Image is a 24-bits per pixel 8-8-8-bit RGB image, one byte per
// channel in red, green, blue order.
type RGB888Image struct {
	Buffer
}

func NewRGB888Image(w, h int) *RGB888Image {
	return &RGB888Image{
		Buffer: makeBuffer(w, h, w*3, w*3*h),
	}
}

func (p *RGB888Image) ColorModel() color.Model {
	return RGB888Model
}

func (p *RGB888Image) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}).In(p.Rect) {
		return color.Transparent
	}

	index := y*p.Stride + x*3
	return RGB888{p.Pix[index], p.Pix[index+1], p.Pix[index+2]}
}

func (p *RGB888Image) Set(x, y int, c color.Color) {
	if !(image.Point{X: x, Y: y}).In(p.Rect) {
		return
	}

	v := rgb888Model(c).(RGB888)
	index := y*p.Stride + x*3
	p.Pix[index], p.Pix[index+1], p.Pix[index+2] = v.R, v.G, v.B
}

func (p *RGB888Image) Fill(c color.Color) {
	v := rgb888Model(c).(RGB888)
	bytes := []byte{v.R, v.G, v.B}
	for i, l := 0, len(p.Pix); i < l; i += 3 {
		copy(p.Pix[i:], bytes)
	}
}

// ARGB8888Image is a 32-bits per pixel 8-8-8-8-bit ARGB image. The
// default byte order is big endian, alpha in the leading byte.
type ARGB8888Image struct {
	Buffer
	Order binary.ByteOrder
}

func NewARGB8888Image(w, h int) *ARGB8888Image {
	return &ARGB8888Image{
		Buffer: makeBuffer(w, h, w*4, w*4*h),
		Order:  binary.BigEndian,
	}
}

func (p *ARGB8888Image) ColorModel() color.Model {
	return ARGB8888Model
}

func (p *ARGB8888Image) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}).In(p.Rect) {
		return color.Transparent
	}

	v := p.Order.Uint32(p.Pix[x*4+y*p.Stride:])
	return ARGB8888{
		A: uint8(v >> 24),
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
	}
}

func (p *ARGB8888Image) Set(x, y int, c color.Color) {
	if !(image.Point{X: x, Y: y}).In(p.Rect) {
		return
	}

	v := argb8888Model(c).(ARGB8888)
	word := uint32(v.A)<<24 | uint32(v.R)<<16 | uint32(v.G)<<8 | uint32(v.B)
	p.Order.PutUint32(p.Pix[x*4+y*p.Stride:], word)
}

func (p *ARGB8888Image) Fill(c color.Color) {
	v := argb8888Model(c).(ARGB8888)
	bytes := make([]byte, 4)
	p.Order.PutUint32(bytes, uint32(v.A)<<24|uint32(v.R)<<16|uint32(v.G)<<8|uint32(v.B))
	for i, l := 0, len(p.Pix); i < l; i += 4 {
		copy(p.Pix[i:], bytes)
	}
}

// Interface checks.
var (
	_ Image = (*MonoImage)(nil)
	_ Image = (*MonoVerticalLSBImage)(nil)
	_ Image = (*RGB233Image)(nil)
	_ Image = (*RGB565Image)(nil)
	_ Image = (*RGB888Image)(nil)
	_ Image = (*ARGB8888Image)(nil)
)
