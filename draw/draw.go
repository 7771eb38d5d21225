// Package draw renders primitives onto draw.Image destinations, which
// includes every frame buffer image in package pixel. Shapes use
// integer midpoint algorithms so they run well without floating point;
// Text rasterizes through font faces from x/image.
package draw

import (
	"image"
	"image/draw"
)

// Drawer is an alias for [image/draw.Drawer].
type Drawer = draw.Drawer

// Image is an alias for [image/draw.Image].
type Image = draw.Image

// Op is an alias for [image/draw.Op].
type Op = draw.Op

// Porter-Duff compositing operators.
const (
	Over Op = iota // (src in mask) over dst
	Src            // src in mask
)

// Draw calls [DrawMask] with a nil mask.
func Draw(dst Image, r image.Rectangle, src image.Image, sp image.Point, op Op) {
	draw.Draw(dst, r, src, sp, op)
}

// DrawMask aligns r.Min in dst with sp in src and mp in mask, then
// replaces the rectangle r in dst with the result of a Porter-Duff
// composition. A nil mask is treated as opaque.
func DrawMask(dst Image, r image.Rectangle, src image.Image, sp image.Point, mask image.Image, mp image.Point, op Op) {
	draw.DrawMask(dst, r, src, sp, mask, mp, op)
}
