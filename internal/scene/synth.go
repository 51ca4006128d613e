package scene

import (
	"fmt"

	"github.com/inkveil/inkveil/internal/layout"
)

// DefaultRectPad is the stock inflation applied on all sides of a
// synthesized rectangle so the fill safely overshoots glyph edges.
const DefaultRectPad = 2.0

// CoverRange synthesizes an auto rectangle over the fragments of ln
// whose character spans intersect [start, end) and appends it to the
// page, inflated by pad on every side. The rectangle id
// deterministically encodes the page, line and range indices;
// uniqueness is scoped to the page. A range with no intersecting
// fragments is a no-op and reports false.
func (p *Page) CoverRange(pageIdx, lineIdx int, ln *layout.Line, start, end int, pad float64) bool {
	frags := ln.FragmentsIn(start, end)
	if len(frags) == 0 {
		return false
	}

	minX := frags[0].X
	minY := frags[0].Y
	maxRight := frags[0].X + frags[0].Width
	maxH := frags[0].Height
	for _, f := range frags[1:] {
		if f.X < minX {
			minX = f.X
		}
		if f.Y < minY {
			minY = f.Y
		}
		if f.X+f.Width > maxRight {
			maxRight = f.X + f.Width
		}
		if f.Height > maxH {
			maxH = f.Height
		}
	}

	// Fragment Y marks the renderer's transform-projected baseline, so
	// the box top sits one glyph height above it.
	p.AddRect(Rect{
		ID:     p.uniqueID(fmt.Sprintf("auto-p%d-l%d-r%d-%d", pageIdx, lineIdx, start, end)),
		X:      minX - pad,
		Y:      minY - maxH - pad,
		Width:  maxRight - minX + 2*pad,
		Height: maxH + 2*pad,
		Source: SourceAuto,
	})
	return true
}

// uniqueID suffixes id with a counter when the page already holds it.
// Two rules matching the identical range otherwise collide.
func (p *Page) uniqueID(id string) string {
	if p.FindRect(id) == nil {
		return id
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s-%d", id, n)
		if p.FindRect(candidate) == nil {
			return candidate
		}
	}
}

// CoverLine synthesizes an auto rectangle over the entire line.
func (p *Page) CoverLine(pageIdx, lineIdx int, ln *layout.Line, pad float64) bool {
	return p.CoverRange(pageIdx, lineIdx, ln, 0, len(ln.Text), pad)
}
