package draw

import (
	"image"
	"image/color"
)

// Line draws a line between two points, endpoints included.
func Line(dst Image, a, b image.Point, c color.Color) {
	switch {
	case a.Y == b.Y:
		if a.X > b.X {
			a, b = b, a
		}
		HorizontalLine(dst, a.X, a.Y, b.X-a.X+1, c)
	case a.X == b.X:
		if a.Y > b.Y {
			a, b = b, a
		}
		VerticalLine(dst, a.X, a.Y, b.Y-a.Y+1, c)
	default:
		bresenham(dst, a.X, a.Y, b.X, b.Y, c)
	}
}

// HorizontalLine draws a line from (x,y) to (x+w-1,y).
func HorizontalLine(dst Image, x, y, w int, c color.Color) {
	for i := 0; i < w; i++ {
		dst.Set(x+i, y, c)
	}
}

// VerticalLine draws a line from (x,y) to (x,y+h-1).
func VerticalLine(dst Image, x, y, h int, c color.Color) {
	for i := 0; i < h; i++ {
		dst.Set(x, y+i, c)
	}
}

// Rectangle draws the outline of r, following image.Rectangle
// conventions: Max is excluded.
func Rectangle(dst Image, r image.Rectangle, c color.Color) {
	r = r.Canon()
	if r.Empty() {
		return
	}
	HorizontalLine(dst, r.Min.X, r.Min.Y, r.Dx(), c)
	if r.Dy() > 1 {
		HorizontalLine(dst, r.Min.X, r.Max.Y-1, r.Dx(), c)
	}
	if r.Dy() > 2 {
		VerticalLine(dst, r.Min.X, r.Min.Y+1, r.Dy()-2, c)
		if r.Dx() > 1 {
			VerticalLine(dst, r.Max.X-1, r.Min.Y+1, r.Dy()-2, c)
		}
	}
}

// Box fills r.
func Box(dst Image, r image.Rectangle, c color.Color) {
	r = r.Canon()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		HorizontalLine(dst, r.Min.X, y, r.Dx(), c)
	}
}

// RoundedRectangle draws the outline of r with corners rounded by
// radius pixels.
func RoundedRectangle(dst Image, r image.Rectangle, radius int, c color.Color) {
	r = r.Canon()
	if radius = clampRadius(r, radius); radius == 0 {
		Rectangle(dst, r, c)
		return
	}
	var (
		x, y = r.Min.X, r.Min.Y
		w, h = r.Dx(), r.Dy()
	)
	HorizontalLine(dst, x+radius, y, w-2*radius, c)
	HorizontalLine(dst, x+radius, y+h-1, w-2*radius, c)
	VerticalLine(dst, x, y+radius, h-2*radius, c)
	VerticalLine(dst, x+w-1, y+radius, h-2*radius, c)
	arc(dst, x+radius, y+radius, radius, quadTopLeft, c)
	arc(dst, x+w-radius-1, y+radius, radius, quadTopRight, c)
	arc(dst, x+w-radius-1, y+h-radius-1, radius, quadBottomRight, c)
	arc(dst, x+radius, y+h-radius-1, radius, quadBottomLeft, c)
}

// RoundedBox fills r with corners rounded by radius pixels.
func RoundedBox(dst Image, r image.Rectangle, radius int, c color.Color) {
	r = r.Canon()
	if radius = clampRadius(r, radius); radius == 0 {
		Box(dst, r, c)
		return
	}
	var (
		x, y = r.Min.X, r.Min.Y
		w, h = r.Dx(), r.Dy()
	)
	Box(dst, image.Rect(x, y+radius, x+w, y+h-radius), c)
	for i := 0; i < radius; i++ {
		inset := radius - arcSpan(radius, i)
		HorizontalLine(dst, x+inset, y+i, w-2*inset, c)
		HorizontalLine(dst, x+inset, y+h-1-i, w-2*inset, c)
	}
}

// Circle draws the outline of a circle.
func Circle(dst Image, center image.Point, radius int, c color.Color) {
	if radius < 0 {
		return
	}
	arc(dst, center.X, center.Y, radius, quadTopLeft|quadTopRight|quadBottomRight|quadBottomLeft, c)
	dst.Set(center.X+radius, center.Y, c)
	dst.Set(center.X-radius, center.Y, c)
	dst.Set(center.X, center.Y+radius, c)
	dst.Set(center.X, center.Y-radius, c)
}

// Disc draws a filled circle.
func Disc(dst Image, center image.Point, radius int, c color.Color) {
	if radius < 0 {
		return
	}
	for dy := -radius; dy <= radius; dy++ {
		dx := isqrt(radius*radius - dy*dy)
		HorizontalLine(dst, center.X-dx, center.Y+dy, 2*dx+1, c)
	}
}

// Corner quadrants, counter clockwise from top right.
const (
	quadTopRight = 1 << iota
	quadTopLeft
	quadBottomLeft
	quadBottomRight
)

// arc draws quarter circles around (x0,y0) with the midpoint circle
// algorithm, the selected quadrants only.
func arc(dst Image, x0, y0, radius, quadrants int, c color.Color) {
	var (
		f    = 1 - radius
		ddFx = 1
		ddFy = -2 * radius
		x    = 0
		y    = radius
	)
	for x < y {
		if f >= 0 {
			y--
			ddFy += 2
			f += ddFy
		}
		x++
		ddFx += 2
		f += ddFx

		if quadrants&quadTopRight != 0 {
			dst.Set(x0+x, y0-y, c)
			dst.Set(x0+y, y0-x, c)
		}
		if quadrants&quadTopLeft != 0 {
			dst.Set(x0-x, y0-y, c)
			dst.Set(x0-y, y0-x, c)
		}
		if quadrants&quadBottomLeft != 0 {
			dst.Set(x0-x, y0+y, c)
			dst.Set(x0-y, y0+x, c)
		}
		if quadrants&quadBottomRight != 0 {
			dst.Set(x0+x, y0+y, c)
			dst.Set(x0+y, y0+x, c)
		}
	}
}

// arcSpan returns how far row i of a radius r corner extends from the
// circle's vertical axis, for filled rounded corners.
func arcSpan(r, i int) int {
	dy := r - i
	if dy < 0 {
		dy = 0
	}
	return isqrt(r*r - dy*dy)
}

func clampRadius(r image.Rectangle, radius int) int {
	if radius < 0 {
		radius = 0
	}
	if max := r.Dx() / 2; radius > max {
		radius = max
	}
	if max := r.Dy() / 2; radius > max {
		radius = max
	}
	return radius
}

// isqrt is the integer square root, rounded down.
func isqrt(n int) int {
	if n <= 0 {
		return 0
	}
	x := n
	for y := (x + 1) / 2; y < x; {
		x = y
		y = (x + n/x) / 2
	}
	return x
}

// bresenham draws a sloped line with the integer error form of
// Bresenham's algorithm.
func bresenham(dst Image, x0, y0, x1, y1 int, c color.Color) {
	dx := x1 - x0
	if dx < 0 {
		dx = -dx
	}
	dy := y1 - y0
	if dy > 0 {
		dy = -dy
	}
	sx := 1
	if x0 > x1 {
		sx = -1
	}
	sy := 1
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy

	for {
		dst.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}
