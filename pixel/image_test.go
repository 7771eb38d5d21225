package pixel

import (
	"encoding/binary"
	"image"
	"image/color"
	"math/rand"
	"testing"
)

func TestMonoImage(t *testing.T) {
	testImage(t, func(size image.Point) Image {
		return NewMonoImage(size.X, size.Y)
	}, MonoModel)
}

func TestMonoVerticalLSBImage(t *testing.T) {
	testImage(t, func(size image.Point) Image {
		return NewMonoVerticalLSBImage(size.X, size.Y)
	}, MonoModel)
}

func TestRGB233Image(t *testing.T) {
	testImage(t, func(size image.Point) Image {
		return NewRGB233Image(size.X, size.Y)
	}, RGB233Model)
}

func TestRGB565Image(t *testing.T) {
	testImage(t, func(size image.Point) Image {
		return NewRGB565Image(size.X, size.Y)
	}, RGB565Model)
}

func TestRGB888Image(t *testing.T) {
	testImage(t, func(size image.Point) Image {
		return NewRGB888Image(size.X, size.Y)
	}, RGB888Model)
}

func TestARGB8888Image(t *testing.T) {
	testImage(t, func(size image.Point) Image {
		return NewARGB8888Image(size.X, size.Y)
	}, ARGB8888Model)
}

func testRandomColor() color.Color {
	return color.RGBA{
		R: uint8(rand.Intn(0x100)),
		G: uint8(rand.Intn(0x100)),
		B: uint8(rand.Intn(0x100)),
		A: 0xff,
	}
}

func testImage(t *testing.T, f func(image.Point) Image, model color.Model) {
	t.Helper()
	testCases := []image.Point{
		image.Point{},
		image.Pt(1, 1),
		image.Pt(2, 2),
		image.Pt(128, 160),
		image.Pt(256, 64),
	}
	for _, test := range testCases {
		t.Run(test.String(), func(it *testing.T) {
			i := f(test)

			if v := i.Bounds().Size(); !v.Eq(test) {
				it.Errorf("expected image size %s, got %s", test, v)
			}

			if v := i.ColorModel(); v != model {
				it.Errorf("expected color model %T, got %T", model, v)
			}

			it.Run("in-bounds", func(itt *testing.T) {
				for y := 0; y < test.Y; y++ {
					for x := 0; x < test.X; x++ {
						c := testRandomColor()
						i.Set(x, y, c)
						if v := i.ColorModel().Convert(c); i.At(x, y) != v {
							itt.Fatalf("pixel (%d,%d) is %#+v, expected %#+v (%v)", x, y, i.At(x, y), v, c)
							return
						}
					}
				}
			})

			it.Run("in-bounds-matching-model", func(itt *testing.T) {
				for y := 0; y < test.Y; y++ {
					for x := 0; x < test.X; x++ {
						c := model.Convert(testRandomColor())
						i.Set(x, y, c)
						if i.At(x, y) != c {
							itt.Fatalf("pixel (%d,%d) is %#+v, expected %#+v", x, y, i.At(x, y), c)
							return
						}
					}
				}
			})

			it.Run("out-bounds", func(itt *testing.T) {
				for y := -test.Y; y < test.Y*2; y++ {
					for x := -test.X; x < test.X*2; x++ {
						i.Set(x, y, testRandomColor())
						if x < 0 || y < 0 {
							if v := i.At(x, y); v != color.Transparent {
								itt.Fatalf("pixel (%d,%d) is %#+v, expected transparent", x, y, v)
								return
							}
						}
					}
				}
			})

			it.Run("fill", func(itt *testing.T) {
				c := testRandomColor()
				i.Fill(c)
				if test.X > 0 && test.Y > 0 {
					x := rand.Intn(test.X)
					y := rand.Intn(test.Y)
					if v := i.ColorModel().Convert(c); i.At(x, y) != v {
						itt.Fatalf("pixel (%d,%d) is %#+v, expected %#+v (%v)", x, y, i.At(x, y), v, c)
						return
					}
				}
			})

			it.Run("clear", func(itt *testing.T) {
				i.Clear()
				if test.X > 0 && test.Y > 0 {
					x := rand.Intn(test.X)
					y := rand.Intn(test.Y)
					if v := monoModel(i.At(x, y)); v != Off {
						itt.Fatalf("pixel (%d,%d) is not black", x, y)
					}
				}
			})
		})
	}
}

func TestRGB565ImageWireOrder(t *testing.T) {
	i := NewRGB565Image(2, 1)
	i.Set(0, 0, RGB565{0xa632})

	// High byte first, as pushed to the driver.
	if i.Pix[0] != 0xa6 || i.Pix[1] != 0x32 {
		t.Fatalf("expected big endian a6 32, got %#02x %#02x", i.Pix[0], i.Pix[1])
	}
}

func TestBufferReuse(t *testing.T) {
	pix := make([]byte, 4*4*2)
	i := &RGB565Image{
		Buffer: Buffer{Rect: image.Rect(0, 0, 4, 4), Pix: pix, Stride: 8},
		Order:  binary.BigEndian,
	}

	i.Set(1, 2, RGB565{0x1234})
	if pix[2*8+1*2] != 0x12 || pix[2*8+1*2+1] != 0x34 {
		t.Fatalf("expected write-through into the wrapped buffer, got % x", pix[16:20])
	}
}
