package draw

import (
	"image"
	"image/color"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/math/fixed"
)

// Face7x13 is a monospaced bitmap face that renders crisply on small
// panels without anti-aliasing.
var Face7x13 font.Face = basicfont.Face7x13

// TrueTypeFace parses TTF data and returns a face at size points,
// rendered for a 72 dpi destination.
func TrueTypeFace(data []byte, size float64) (font.Face, error) {
	f, err := truetype.Parse(data)
	if err != nil {
		return nil, err
	}
	return truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	}), nil
}

// GoMonoFace returns the embedded Go Mono face at size points.
func GoMonoFace(size float64) (font.Face, error) {
	return TrueTypeFace(gomono.TTF, size)
}

// Text draws s onto dst with the baseline origin at p. It returns the
// position after the last glyph, so calls can be chained.
func Text(dst Image, p image.Point, s string, face font.Face, c color.Color) image.Point {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(p.X, p.Y),
	}
	d.DrawString(s)
	return image.Pt(d.Dot.X.Ceil(), p.Y)
}

// TextWidth returns the advance of s in pixels.
func TextWidth(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}
