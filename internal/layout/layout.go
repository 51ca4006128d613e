// Package layout reconstructs lines of text from positioned fragments
// produced by a page renderer.
package layout

import (
	"sort"
	"strings"
)

const (
	// DefaultTolerance is the vertical distance in pixels within which
	// fragments are considered part of the same line.
	DefaultTolerance = 3.0

	// spaceGapFactor scales a fragment's height into the horizontal gap
	// beyond which a synthetic space is inserted between fragments.
	spaceGapFactor = 0.3
)

// Fragment is one positioned run of text as laid out on a rendered page.
// Coordinates are page-raster units with the origin at the top-left and
// y increasing downward. Y is the transform-projected vertical position
// reported by the renderer; Height is the nominal glyph height.
type Fragment struct {
	Text   string
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// span records which character positions of the concatenated line text a
// fragment is responsible for. Synthetic spaces between fragments consume
// one position without backing geometry.
type span struct {
	start, end int // half-open range into Line.Text
	frag       int // index into Line.Fragments
}

// Line is an ordered sequence of fragments whose vertical positions lie
// within tolerance of each other, concatenated with inferred spacing.
type Line struct {
	Fragments []Fragment
	Text      string

	spans  []span
	sumY   float64
	count  int
	sorted bool
}

// avgY is the running average vertical position used during clustering.
func (l *Line) avgY() float64 {
	if l.count == 0 {
		return 0
	}
	return l.sumY / float64(l.count)
}

// Y returns the smallest fragment Y on the line.
func (l *Line) Y() float64 {
	y := 0.0
	for i, f := range l.Fragments {
		if i == 0 || f.Y < y {
			y = f.Y
		}
	}
	return y
}

// Height returns the tallest fragment height on the line.
func (l *Line) Height() float64 {
	h := 0.0
	for _, f := range l.Fragments {
		if f.Height > h {
			h = f.Height
		}
	}
	return h
}

// Top returns the top edge of the line's bounding box. Fragment Y marks
// the renderer-projected baseline, so the top sits one glyph height
// above the smallest Y.
func (l *Line) Top() float64 {
	return l.Y() - l.Height()
}

// FragmentsIn returns the fragments whose character spans intersect the
// half-open range [start, end) of the line text. An empty or inverted
// range intersects nothing.
func (l *Line) FragmentsIn(start, end int) []Fragment {
	if start >= end {
		return nil
	}
	var out []Fragment
	for _, sp := range l.spans {
		if sp.start < end && start < sp.end {
			out = append(out, l.Fragments[sp.frag])
		}
	}
	return out
}

// Reconstruct groups fragments into lines using the default tolerance.
// Fragments must be supplied in the order the renderer produced them:
// the clustering is greedy and order-dependent, and a fragment once
// assigned to a line is never reassigned.
func Reconstruct(fragments []Fragment) []*Line {
	return ReconstructWithTolerance(fragments, DefaultTolerance)
}

// ReconstructWithTolerance groups fragments into lines, assigning each
// fragment to the first existing line whose running average vertical
// position is within tolerance, or starting a new line otherwise.
func ReconstructWithTolerance(fragments []Fragment, tolerance float64) []*Line {
	var lines []*Line
	for _, f := range fragments {
		if f.Text == "" {
			continue
		}
		assigned := false
		for _, ln := range lines {
			d := ln.avgY() - f.Y
			if d < 0 {
				d = -d
			}
			if d <= tolerance {
				ln.Fragments = append(ln.Fragments, f)
				ln.sumY += f.Y
				ln.count++
				assigned = true
				break
			}
		}
		if !assigned {
			lines = append(lines, &Line{
				Fragments: []Fragment{f},
				sumY:      f.Y,
				count:     1,
			})
		}
	}
	for _, ln := range lines {
		ln.finalize()
	}
	return lines
}

// finalize sorts the line's fragments left-to-right and builds the
// concatenated text together with the character-range index.
func (l *Line) finalize() {
	if l.sorted {
		return
	}
	sort.SliceStable(l.Fragments, func(i, j int) bool {
		return l.Fragments[i].X < l.Fragments[j].X
	})

	var b strings.Builder
	l.spans = l.spans[:0]
	for i, f := range l.Fragments {
		if i > 0 {
			prev := l.Fragments[i-1]
			gap := f.X - (prev.X + prev.Width)
			if gap > prev.Height*spaceGapFactor {
				// Synthetic space: one character position, no geometry.
				b.WriteByte(' ')
			}
		}
		start := b.Len()
		b.WriteString(f.Text)
		l.spans = append(l.spans, span{start: start, end: b.Len(), frag: i})
	}
	l.Text = b.String()
	l.sorted = true
}
