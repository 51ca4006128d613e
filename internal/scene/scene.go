// Package scene holds the live redaction state for one editing session:
// per-page base images plus ordered redaction rectangles, together with
// the snapshot history that drives undo/redo.
package scene

import (
	"errors"
	"fmt"
	"image"
)

// Source distinguishes heuristic rectangles from user-drawn ones.
type Source string

const (
	SourceAuto   Source = "auto"
	SourceManual Source = "manual"
)

// ErrLastPage is returned when deleting a page would leave the document
// empty.
var ErrLastPage = errors.New("document must retain at least one page")

// Rect is an axis-aligned redaction box in page-raster coordinates.
// Source is fixed at creation time.
type Rect struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Source Source  `json:"source"`
}

// Contains reports whether the point lies within the rectangle bounds.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// Page is one source page: an immutable base image plus the ordered
// rectangle list layered over it. The base image never contains baked
// redactions; rectangles are composited only at export time.
type Page struct {
	Base   image.Image
	Width  float64
	Height float64
	Rects  []Rect

	manualSeq int
}

// AddRect appends a rectangle to the page.
func (p *Page) AddRect(r Rect) {
	p.Rects = append(p.Rects, r)
}

// AddManualRect appends a user-drawn rectangle with a page-unique id and
// returns it.
func (p *Page) AddManualRect(x, y, w, h float64) Rect {
	p.manualSeq++
	r := Rect{
		ID:     fmt.Sprintf("manual-%d", p.manualSeq),
		X:      x,
		Y:      y,
		Width:  w,
		Height: h,
		Source: SourceManual,
	}
	p.Rects = append(p.Rects, r)
	return r
}

// EraseAt removes the topmost (last-inserted) rectangle containing the
// point and returns it. It reports false when no rectangle contains the
// point.
func (p *Page) EraseAt(x, y float64) (Rect, bool) {
	for i := len(p.Rects) - 1; i >= 0; i-- {
		if p.Rects[i].Contains(x, y) {
			removed := p.Rects[i]
			p.Rects = append(p.Rects[:i], p.Rects[i+1:]...)
			return removed, true
		}
	}
	return Rect{}, false
}

// RemoveByID removes the rectangle with the given id and reports whether
// one was found.
func (p *Page) RemoveByID(id string) bool {
	for i := range p.Rects {
		if p.Rects[i].ID == id {
			p.Rects = append(p.Rects[:i], p.Rects[i+1:]...)
			return true
		}
	}
	return false
}

// FindRect returns a pointer into the live rectangle list, for in-place
// move/resize mutation during a gesture.
func (p *Page) FindRect(id string) *Rect {
	for i := range p.Rects {
		if p.Rects[i].ID == id {
			return &p.Rects[i]
		}
	}
	return nil
}

// Clear removes every rectangle from the page.
func (p *Page) Clear() {
	p.Rects = p.Rects[:0]
}

// clone deep-copies the page state. The base image handle is shared:
// it is immutable for the lifetime of the session.
func (p *Page) clone() *Page {
	cp := &Page{
		Base:      p.Base,
		Width:     p.Width,
		Height:    p.Height,
		manualSeq: p.manualSeq,
	}
	if p.Rects != nil {
		cp.Rects = make([]Rect, len(p.Rects))
		copy(cp.Rects, p.Rects)
	}
	return cp
}

// Document is the ordered list of pages for one editing session. Pages
// may be deleted but never reordered or appended after creation.
type Document struct {
	Pages []*Page
}

// NewDocument wraps the given pages.
func NewDocument(pages []*Page) *Document {
	return &Document{Pages: pages}
}

// Clone deep-copies the document so history snapshots never alias live
// state.
func (d *Document) Clone() *Document {
	cp := &Document{Pages: make([]*Page, len(d.Pages))}
	for i, p := range d.Pages {
		cp.Pages[i] = p.clone()
	}
	return cp
}

// Page returns the i-th page, or nil when out of range.
func (d *Document) Page(i int) *Page {
	if i < 0 || i >= len(d.Pages) {
		return nil
	}
	return d.Pages[i]
}

// DeletePage removes the i-th page. The document always retains at
// least one page.
func (d *Document) DeletePage(i int) error {
	if i < 0 || i >= len(d.Pages) {
		return fmt.Errorf("page index %d out of range", i)
	}
	if len(d.Pages) == 1 {
		return ErrLastPage
	}
	d.Pages = append(d.Pages[:i], d.Pages[i+1:]...)
	return nil
}

// RectCount returns the total number of rectangles across all pages.
func (d *Document) RectCount() int {
	n := 0
	for _, p := range d.Pages {
		n += len(p.Rects)
	}
	return n
}
