// Package editor drives the interactive redaction surface: a tool-mode
// state machine that maps pointer and touch input onto scene mutations,
// viewport changes, and explicit history commits.
//
// The machine is pure with respect to its host: every event handler
// returns the Effects the surface should apply (redraw, history commit)
// instead of performing side effects of its own.
package editor

import (
	"math"

	"github.com/inkveil/inkveil/internal/scene"
)

// Tool identifies the active editing mode. Exactly one tool is active
// at a time, switchable only between gestures.
type Tool string

const (
	ToolDraw   Tool = "draw"
	ToolErase  Tool = "erase"
	ToolSelect Tool = "select"
	ToolPan    Tool = "pan"
)

const (
	// MinRectSize is the minimum committed rectangle dimension. Draw
	// releases below it are discarded; resizes clamp to it.
	MinRectSize = 4.0

	// HandleTolerance is the corner hit-test radius in content units.
	HandleTolerance = 10.0
)

// Effects tells the host surface what a handled event changed. A
// history commit is an explicit output, never an implicit side effect.
type Effects struct {
	SceneChanged    bool
	ViewportChanged bool
	CommitHistory   bool
}

type gestureKind int

const (
	gestureNone gestureKind = iota
	gestureDraw
	gestureMove
	gestureResize
	gesturePan
	gesturePinch
)

// Editor owns the live scene, its history, and the in-progress gesture
// state for one editing session.
type Editor struct {
	doc      *scene.Document
	history  *scene.History
	page     int
	tool     Tool
	viewport Viewport

	minRect float64

	gesture   gestureKind
	anchor    Point // content-space anchor: draw origin or move grab point
	fixed     Point // content-space fixed corner during a resize
	lastPan   Point // screen-space previous position during a pan
	overlay   *scene.Rect
	selected  string
	activeID  string
	startRect scene.Rect
	mutated   bool

	pinchStartDist float64
	pinchStartZoom float64
}

// New creates an editor over the document with history seeded from its
// initial state. A nonpositive minRect falls back to MinRectSize.
func New(doc *scene.Document, minZoom, maxZoom, minRect float64) *Editor {
	if minRect <= 0 {
		minRect = MinRectSize
	}
	return &Editor{
		doc:      doc,
		history:  scene.NewHistory(doc),
		tool:     ToolDraw,
		viewport: NewViewport(minZoom, maxZoom),
		minRect:  minRect,
	}
}

// Document returns the live scene.
func (e *Editor) Document() *scene.Document { return e.doc }

// History returns the snapshot stack.
func (e *Editor) History() *scene.History { return e.history }

// Viewport returns the current view transform.
func (e *Editor) Viewport() Viewport { return e.viewport }

// Overlay returns the live draw rectangle, or nil outside a draw drag.
// It is never part of the scene.
func (e *Editor) Overlay() *scene.Rect { return e.overlay }

// Selected returns the id of the selected rectangle, or "".
func (e *Editor) Selected() string { return e.selected }

// Tool returns the active tool.
func (e *Editor) Tool() Tool { return e.tool }

// SetTool switches the active tool. Switches are refused mid-gesture.
func (e *Editor) SetTool(t Tool) bool {
	if e.gesture != gestureNone {
		return false
	}
	e.tool = t
	return true
}

// CurrentPage returns the index of the page being edited.
func (e *Editor) CurrentPage() int { return e.page }

// SetPage moves editing to another page. Refused mid-gesture.
func (e *Editor) SetPage(i int) bool {
	if e.gesture != gestureNone || e.doc.Page(i) == nil {
		return false
	}
	e.page = i
	e.selected = ""
	return true
}

func (e *Editor) currentPage() *scene.Page { return e.doc.Page(e.page) }

// PointerDown begins a gesture at the given screen point.
func (e *Editor) PointerDown(p Point) Effects {
	if e.gesture != gestureNone {
		return Effects{}
	}
	c := e.viewport.ToContent(p)

	switch e.tool {
	case ToolDraw:
		e.gesture = gestureDraw
		e.anchor = c
		e.overlay = &scene.Rect{X: c.X, Y: c.Y, Source: scene.SourceManual}
		return Effects{SceneChanged: true}

	case ToolErase:
		if _, ok := e.currentPage().EraseAt(c.X, c.Y); ok {
			e.history.Commit(e.doc)
			return Effects{SceneChanged: true, CommitHistory: true}
		}
		return Effects{}

	case ToolSelect:
		return e.beginSelect(c)

	case ToolPan:
		e.gesture = gesturePan
		e.lastPan = p
		return Effects{}
	}
	return Effects{}
}

// beginSelect hit-tests corner handles first, then interiors, both in
// reverse (topmost-last) insertion order; a miss clears the selection.
func (e *Editor) beginSelect(c Point) Effects {
	page := e.currentPage()

	for i := len(page.Rects) - 1; i >= 0; i-- {
		r := page.Rects[i]
		if fixed, ok := oppositeCorner(r, c); ok {
			e.gesture = gestureResize
			e.activeID = r.ID
			e.selected = r.ID
			e.startRect = r
			e.fixed = fixed
			e.mutated = false
			return Effects{SceneChanged: true}
		}
	}
	for i := len(page.Rects) - 1; i >= 0; i-- {
		r := page.Rects[i]
		if r.Contains(c.X, c.Y) {
			e.gesture = gestureMove
			e.activeID = r.ID
			e.selected = r.ID
			e.startRect = r
			e.anchor = c
			e.mutated = false
			return Effects{SceneChanged: true}
		}
	}
	if e.selected != "" {
		e.selected = ""
		return Effects{SceneChanged: true}
	}
	return Effects{}
}

// oppositeCorner returns the corner diagonally opposite the handle hit
// at c, if any handle of r is within tolerance.
func oppositeCorner(r scene.Rect, c Point) (Point, bool) {
	corners := [4]Point{
		{r.X, r.Y},
		{r.X + r.Width, r.Y},
		{r.X, r.Y + r.Height},
		{r.X + r.Width, r.Y + r.Height},
	}
	for i, h := range corners {
		if math.Abs(h.X-c.X) <= HandleTolerance && math.Abs(h.Y-c.Y) <= HandleTolerance {
			return corners[3-i], true
		}
	}
	return Point{}, false
}

// PointerMove updates the gesture in progress. Draw updates only the
// overlay; move and resize live-mutate the scene without committing.
func (e *Editor) PointerMove(p Point) Effects {
	c := e.viewport.ToContent(p)

	switch e.gesture {
	case gestureDraw:
		x, y, w, h := normalizedRect(e.anchor, c)
		e.overlay.X, e.overlay.Y = x, y
		e.overlay.Width, e.overlay.Height = w, h
		return Effects{SceneChanged: true}

	case gestureMove:
		r := e.currentPage().FindRect(e.activeID)
		if r == nil {
			return Effects{}
		}
		r.X = e.startRect.X + (c.X - e.anchor.X)
		r.Y = e.startRect.Y + (c.Y - e.anchor.Y)
		e.mutated = true
		return Effects{SceneChanged: true}

	case gestureResize:
		r := e.currentPage().FindRect(e.activeID)
		if r == nil {
			return Effects{}
		}
		r.X, r.Y, r.Width, r.Height = resizeFrom(e.fixed, c, e.minRect)
		e.mutated = true
		return Effects{SceneChanged: true}

	case gesturePan:
		e.viewport.Pan(p.X-e.lastPan.X, p.Y-e.lastPan.Y)
		e.lastPan = p
		return Effects{ViewportChanged: true}
	}
	return Effects{}
}

// PointerUp completes the gesture. Draw commits a manual rectangle only
// when both dimensions meet the minimum; completed move/resize drags
// commit one snapshot.
func (e *Editor) PointerUp(p Point) Effects {
	c := e.viewport.ToContent(p)
	defer e.resetGesture()

	switch e.gesture {
	case gestureDraw:
		x, y, w, h := normalizedRect(e.anchor, c)
		if w < e.minRect || h < e.minRect {
			return Effects{SceneChanged: true} // overlay disappears
		}
		e.currentPage().AddManualRect(x, y, w, h)
		e.history.Commit(e.doc)
		return Effects{SceneChanged: true, CommitHistory: true}

	case gestureMove, gestureResize:
		if e.mutated {
			e.history.Commit(e.doc)
			return Effects{SceneChanged: true, CommitHistory: true}
		}
		return Effects{}
	}
	return Effects{}
}

// PointerCancel aborts the gesture: any uncommitted overlay is
// discarded and no snapshot is committed. A move or resize that was
// already live-mutating the scene keeps its partial mutation.
func (e *Editor) PointerCancel() Effects {
	wasDraw := e.gesture == gestureDraw
	e.resetGesture()
	if wasDraw {
		return Effects{SceneChanged: true}
	}
	return Effects{}
}

func (e *Editor) resetGesture() {
	e.gesture = gestureNone
	e.overlay = nil
	e.activeID = ""
	e.mutated = false
}

// PinchBegin starts a two-contact zoom gesture. It takes over from any
// single-contact pan in progress.
func (e *Editor) PinchBegin(a, b Point) Effects {
	if e.gesture != gestureNone && e.gesture != gesturePan {
		return Effects{}
	}
	e.gesture = gesturePinch
	e.pinchStartDist = dist(a, b)
	e.pinchStartZoom = e.viewport.Zoom
	return Effects{}
}

// PinchMove rescales the viewport by the ratio of the current to the
// initial inter-contact distance, keeping the contact midpoint anchored
// to the same content coordinate.
func (e *Editor) PinchMove(a, b Point) Effects {
	if e.gesture != gesturePinch || e.pinchStartDist == 0 {
		return Effects{}
	}
	factor := dist(a, b) / e.pinchStartDist
	e.viewport.SetZoomAnchored(e.pinchStartZoom*factor, mid(a, b))
	return Effects{ViewportChanged: true}
}

// PinchEnd completes the zoom gesture. Zoom commits no history.
func (e *Editor) PinchEnd() Effects {
	if e.gesture == gesturePinch {
		e.resetGesture()
	}
	return Effects{}
}

// Undo restores the previous snapshot as the live scene.
func (e *Editor) Undo() Effects {
	restored, ok := e.history.Undo()
	if !ok {
		return Effects{}
	}
	e.adoptDocument(restored)
	return Effects{SceneChanged: true}
}

// Redo restores the next snapshot as the live scene.
func (e *Editor) Redo() Effects {
	restored, ok := e.history.Redo()
	if !ok {
		return Effects{}
	}
	e.adoptDocument(restored)
	return Effects{SceneChanged: true}
}

func (e *Editor) adoptDocument(d *scene.Document) {
	e.doc = d
	if e.page >= len(d.Pages) {
		e.page = len(d.Pages) - 1
	}
	e.selected = ""
}

// DeleteSelected removes the selected rectangle and commits.
func (e *Editor) DeleteSelected() Effects {
	if e.selected == "" {
		return Effects{}
	}
	if !e.currentPage().RemoveByID(e.selected) {
		e.selected = ""
		return Effects{}
	}
	e.selected = ""
	e.history.Commit(e.doc)
	return Effects{SceneChanged: true, CommitHistory: true}
}

// ClearPage removes every rectangle on the current page and commits.
func (e *Editor) ClearPage() Effects {
	page := e.currentPage()
	if len(page.Rects) == 0 {
		return Effects{}
	}
	page.Clear()
	e.selected = ""
	e.history.Commit(e.doc)
	return Effects{SceneChanged: true, CommitHistory: true}
}

// ClearAll removes every rectangle on every page and commits.
func (e *Editor) ClearAll() Effects {
	changed := false
	for _, p := range e.doc.Pages {
		if len(p.Rects) > 0 {
			p.Clear()
			changed = true
		}
	}
	if !changed {
		return Effects{}
	}
	e.selected = ""
	e.history.Commit(e.doc)
	return Effects{SceneChanged: true, CommitHistory: true}
}

// DeletePage removes the current page and commits. The document always
// retains at least one page.
func (e *Editor) DeletePage() (Effects, error) {
	if err := e.doc.DeletePage(e.page); err != nil {
		return Effects{}, err
	}
	if e.page >= len(e.doc.Pages) {
		e.page = len(e.doc.Pages) - 1
	}
	e.selected = ""
	e.history.Commit(e.doc)
	return Effects{SceneChanged: true, CommitHistory: true}, nil
}

// Command is a discrete keyboard/shortcut action.
type Command string

const (
	CommandUndo           Command = "undo"
	CommandRedo           Command = "redo"
	CommandDeleteSelected Command = "delete-selected"
)

// Exec dispatches a keyboard command onto the same scene and history
// the pointer gestures use.
func (e *Editor) Exec(cmd Command) Effects {
	switch cmd {
	case CommandUndo:
		return e.Undo()
	case CommandRedo:
		return e.Redo()
	case CommandDeleteSelected:
		return e.DeleteSelected()
	}
	return Effects{}
}

// normalizedRect converts two drag points into a min-corner rectangle
// with non-negative dimensions.
func normalizedRect(a, b Point) (x, y, w, h float64) {
	x = math.Min(a.X, b.X)
	y = math.Min(a.Y, b.Y)
	w = math.Abs(a.X - b.X)
	h = math.Abs(a.Y - b.Y)
	return x, y, w, h
}

// resizeFrom recomputes rectangle bounds from the fixed corner and the
// dragged point. Crossing the fixed corner flips the anchor side so
// dimensions stay non-negative; both are clamped to the minimum.
func resizeFrom(fixed, c Point, minRect float64) (x, y, w, h float64) {
	w = math.Abs(c.X - fixed.X)
	h = math.Abs(c.Y - fixed.Y)
	if w < minRect {
		w = minRect
	}
	if h < minRect {
		h = minRect
	}
	if c.X < fixed.X {
		x = fixed.X - w
	} else {
		x = fixed.X
	}
	if c.Y < fixed.Y {
		y = fixed.Y - h
	} else {
		y = fixed.Y
	}
	return x, y, w, h
}
