package scene

// History is a linear snapshot stack over the document. Every discrete
// edit commits one deep-copied snapshot; undo and redo move the cursor
// without mutating stored snapshots.
type History struct {
	snapshots []*Document
	cursor    int
}

// NewHistory seeds the stack with a snapshot of the initial document.
func NewHistory(initial *Document) *History {
	return &History{snapshots: []*Document{initial.Clone()}}
}

// Commit truncates any redo tail past the cursor, appends a deep copy of
// the post-action document, and advances the cursor to the new end.
func (h *History) Commit(d *Document) {
	h.snapshots = append(h.snapshots[:h.cursor+1], d.Clone())
	h.cursor = len(h.snapshots) - 1
}

// Undo moves the cursor back one snapshot and returns a copy of it as
// the new live document. It reports false at the start of history.
func (h *History) Undo() (*Document, bool) {
	if h.cursor == 0 {
		return nil, false
	}
	h.cursor--
	return h.snapshots[h.cursor].Clone(), true
}

// Redo moves the cursor forward one snapshot and returns a copy of it as
// the new live document. It reports false at the end of history.
func (h *History) Redo() (*Document, bool) {
	if h.cursor >= len(h.snapshots)-1 {
		return nil, false
	}
	h.cursor++
	return h.snapshots[h.cursor].Clone(), true
}

// CanUndo reports whether an earlier snapshot exists.
func (h *History) CanUndo() bool { return h.cursor > 0 }

// CanRedo reports whether a later snapshot exists.
func (h *History) CanRedo() bool { return h.cursor < len(h.snapshots)-1 }

// Len returns the number of stored snapshots.
func (h *History) Len() int { return len(h.snapshots) }
