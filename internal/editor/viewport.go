package editor

import "math"

// Point is a 2D coordinate, in screen or content space depending on
// context.
type Point struct {
	X float64
	Y float64
}

// Viewport maps page content coordinates onto the editing surface:
// screen = content*Zoom - Scroll.
type Viewport struct {
	Zoom    float64
	ScrollX float64
	ScrollY float64
	MinZoom float64
	MaxZoom float64
}

// NewViewport returns a viewport at 1:1 with the given zoom clamp.
func NewViewport(minZoom, maxZoom float64) Viewport {
	return Viewport{Zoom: 1, MinZoom: minZoom, MaxZoom: maxZoom}
}

// ToContent converts a screen point to content coordinates.
func (v Viewport) ToContent(p Point) Point {
	return Point{
		X: (p.X + v.ScrollX) / v.Zoom,
		Y: (p.Y + v.ScrollY) / v.Zoom,
	}
}

// ToScreen converts a content point to screen coordinates.
func (v Viewport) ToScreen(p Point) Point {
	return Point{
		X: p.X*v.Zoom - v.ScrollX,
		Y: p.Y*v.Zoom - v.ScrollY,
	}
}

// Pan translates the scroll offset by the drag delta in screen units.
func (v *Viewport) Pan(dx, dy float64) {
	v.ScrollX -= dx
	v.ScrollY -= dy
}

// SetZoomAnchored sets the zoom factor, clamped to the viewport's
// range, adjusting the scroll offset so the content coordinate under
// the given screen anchor stays put.
func (v *Viewport) SetZoomAnchored(zoom float64, anchor Point) {
	if zoom < v.MinZoom {
		zoom = v.MinZoom
	}
	if zoom > v.MaxZoom {
		zoom = v.MaxZoom
	}
	c := v.ToContent(anchor)
	v.Zoom = zoom
	v.ScrollX = c.X*zoom - anchor.X
	v.ScrollY = c.Y*zoom - anchor.Y
}

func dist(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

func mid(a, b Point) Point {
	return Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}
