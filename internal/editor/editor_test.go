package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkveil/inkveil/internal/scene"
)

func testEditor(t *testing.T, pages int) *Editor {
	t.Helper()
	ps := make([]*scene.Page, pages)
	for i := range ps {
		ps[i] = &scene.Page{Width: 800, Height: 1000}
	}
	return New(scene.NewDocument(ps), 0.1, 4.0, MinRectSize)
}

func TestDrawCommitsRect(t *testing.T) {
	e := testEditor(t, 1)

	e.PointerDown(Point{X: 10, Y: 20})
	e.PointerMove(Point{X: 60, Y: 50})
	fx := e.PointerUp(Point{X: 60, Y: 50})

	assert.True(t, fx.CommitHistory)
	require.Len(t, e.Document().Page(0).Rects, 1)

	r := e.Document().Page(0).Rects[0]
	assert.Equal(t, scene.SourceManual, r.Source)
	assert.InDelta(t, 10.0, r.X, 1e-9)
	assert.InDelta(t, 20.0, r.Y, 1e-9)
	assert.InDelta(t, 50.0, r.Width, 1e-9)
	assert.InDelta(t, 30.0, r.Height, 1e-9)
	assert.Nil(t, e.Overlay())
}

func TestDrawNormalizesReversedDrag(t *testing.T) {
	e := testEditor(t, 1)

	e.PointerDown(Point{X: 60, Y: 50})
	e.PointerUp(Point{X: 10, Y: 20})

	require.Len(t, e.Document().Page(0).Rects, 1)
	r := e.Document().Page(0).Rects[0]
	assert.InDelta(t, 10.0, r.X, 1e-9)
	assert.InDelta(t, 20.0, r.Y, 1e-9)
	assert.InDelta(t, 50.0, r.Width, 1e-9)
	assert.InDelta(t, 30.0, r.Height, 1e-9)
}

func TestDrawBelowMinimumDiscarded(t *testing.T) {
	e := testEditor(t, 1)

	e.PointerDown(Point{X: 10, Y: 10})
	e.PointerMove(Point{X: 13, Y: 13})
	fx := e.PointerUp(Point{X: 13, Y: 13})

	assert.False(t, fx.CommitHistory)
	assert.Empty(t, e.Document().Page(0).Rects)
	assert.False(t, e.History().CanUndo())
}

func TestDrawRespectsViewportTransform(t *testing.T) {
	e := testEditor(t, 1)
	e.viewport.Zoom = 2.0
	e.viewport.ScrollX = 100
	e.viewport.ScrollY = 40

	// Screen (100, 60) maps to content ((100+100)/2, (60+40)/2).
	e.PointerDown(Point{X: 100, Y: 60})
	e.PointerUp(Point{X: 140, Y: 100})

	require.Len(t, e.Document().Page(0).Rects, 1)
	r := e.Document().Page(0).Rects[0]
	assert.InDelta(t, 100.0, r.X, 1e-9)
	assert.InDelta(t, 50.0, r.Y, 1e-9)
	assert.InDelta(t, 20.0, r.Width, 1e-9)
	assert.InDelta(t, 20.0, r.Height, 1e-9)
}

func TestCancelDiscardsDrawWithoutCommit(t *testing.T) {
	e := testEditor(t, 1)

	e.PointerDown(Point{X: 10, Y: 10})
	e.PointerMove(Point{X: 200, Y: 200})
	fx := e.PointerCancel()

	assert.False(t, fx.CommitHistory)
	assert.Nil(t, e.Overlay())
	assert.Empty(t, e.Document().Page(0).Rects)
	assert.False(t, e.History().CanUndo())
}

func TestEraseRemovesTopmostAndCommits(t *testing.T) {
	e := testEditor(t, 1)
	page := e.Document().Page(0)
	page.AddRect(scene.Rect{ID: "a", X: 0, Y: 0, Width: 10, Height: 10})
	page.AddRect(scene.Rect{ID: "b", X: 5, Y: 5, Width: 10, Height: 10})
	e.History().Commit(e.Document())

	require.True(t, e.SetTool(ToolErase))
	fx := e.PointerDown(Point{X: 7, Y: 7})

	assert.True(t, fx.CommitHistory)
	require.Len(t, page.Rects, 1)
	assert.Equal(t, "a", page.Rects[0].ID)
}

func TestEraseMissIsNoOp(t *testing.T) {
	e := testEditor(t, 1)
	e.Document().Page(0).AddRect(scene.Rect{ID: "a", X: 0, Y: 0, Width: 10, Height: 10})

	require.True(t, e.SetTool(ToolErase))
	fx := e.PointerDown(Point{X: 500, Y: 500})

	assert.False(t, fx.CommitHistory)
	assert.Len(t, e.Document().Page(0).Rects, 1)
}

func TestSelectAndMoveCommitsOnce(t *testing.T) {
	e := testEditor(t, 1)
	e.Document().Page(0).AddRect(scene.Rect{ID: "a", X: 100, Y: 100, Width: 40, Height: 30})

	require.True(t, e.SetTool(ToolSelect))
	e.PointerDown(Point{X: 120, Y: 115})
	assert.Equal(t, "a", e.Selected())

	e.PointerMove(Point{X: 150, Y: 145})
	e.PointerMove(Point{X: 170, Y: 125})
	fx := e.PointerUp(Point{X: 170, Y: 125})

	assert.True(t, fx.CommitHistory)
	r := e.Document().Page(0).FindRect("a")
	require.NotNil(t, r)
	assert.InDelta(t, 150.0, r.X, 1e-9)
	assert.InDelta(t, 110.0, r.Y, 1e-9)
	assert.InDelta(t, 40.0, r.Width, 1e-9)
	assert.InDelta(t, 30.0, r.Height, 1e-9)
}

func TestSelectTapWithoutMoveDoesNotCommit(t *testing.T) {
	e := testEditor(t, 1)
	e.Document().Page(0).AddRect(scene.Rect{ID: "a", X: 100, Y: 100, Width: 40, Height: 30})

	require.True(t, e.SetTool(ToolSelect))
	e.PointerDown(Point{X: 120, Y: 115})
	fx := e.PointerUp(Point{X: 120, Y: 115})

	assert.False(t, fx.CommitHistory)
	assert.Equal(t, "a", e.Selected())
}

func TestSelectMissClearsSelection(t *testing.T) {
	e := testEditor(t, 1)
	e.Document().Page(0).AddRect(scene.Rect{ID: "a", X: 100, Y: 100, Width: 40, Height: 30})

	require.True(t, e.SetTool(ToolSelect))
	e.PointerDown(Point{X: 120, Y: 115})
	e.PointerUp(Point{X: 120, Y: 115})
	require.Equal(t, "a", e.Selected())

	e.PointerDown(Point{X: 500, Y: 500})
	e.PointerUp(Point{X: 500, Y: 500})
	assert.Equal(t, "", e.Selected())
}

func TestSelectPicksTopmostOverlap(t *testing.T) {
	e := testEditor(t, 1)
	page := e.Document().Page(0)
	page.AddRect(scene.Rect{ID: "under", X: 100, Y: 100, Width: 100, Height: 100})
	page.AddRect(scene.Rect{ID: "over", X: 150, Y: 150, Width: 100, Height: 100})

	require.True(t, e.SetTool(ToolSelect))
	e.PointerDown(Point{X: 175, Y: 175})
	e.PointerUp(Point{X: 175, Y: 175})

	assert.Equal(t, "over", e.Selected())
}

func TestResizeByCornerHandle(t *testing.T) {
	e := testEditor(t, 1)
	e.Document().Page(0).AddRect(scene.Rect{ID: "a", X: 100, Y: 100, Width: 40, Height: 30})

	require.True(t, e.SetTool(ToolSelect))
	// Grab within handle tolerance of the south-east corner (140, 130).
	e.PointerDown(Point{X: 145, Y: 134})
	e.PointerMove(Point{X: 200, Y: 180})
	fx := e.PointerUp(Point{X: 200, Y: 180})

	assert.True(t, fx.CommitHistory)
	r := e.Document().Page(0).FindRect("a")
	require.NotNil(t, r)
	assert.InDelta(t, 100.0, r.X, 1e-9)
	assert.InDelta(t, 100.0, r.Y, 1e-9)
	assert.InDelta(t, 100.0, r.Width, 1e-9)
	assert.InDelta(t, 80.0, r.Height, 1e-9)
}

func TestResizeCornerFlipNormalizes(t *testing.T) {
	e := testEditor(t, 1)
	e.Document().Page(0).AddRect(scene.Rect{ID: "a", X: 100, Y: 100, Width: 40, Height: 30})

	require.True(t, e.SetTool(ToolSelect))
	// Drag the south-east handle past the north-west corner.
	e.PointerDown(Point{X: 140, Y: 130})
	e.PointerMove(Point{X: 60, Y: 40})
	e.PointerUp(Point{X: 60, Y: 40})

	r := e.Document().Page(0).FindRect("a")
	require.NotNil(t, r)
	assert.InDelta(t, 60.0, r.X, 1e-9)
	assert.InDelta(t, 40.0, r.Y, 1e-9)
	assert.InDelta(t, 40.0, r.Width, 1e-9)
	assert.InDelta(t, 60.0, r.Height, 1e-9)
	assert.GreaterOrEqual(t, r.Width, 0.0)
	assert.GreaterOrEqual(t, r.Height, 0.0)
}

func TestResizeFlipThereAndBackRestoresBounds(t *testing.T) {
	e := testEditor(t, 1)
	e.Document().Page(0).AddRect(scene.Rect{ID: "a", X: 100, Y: 100, Width: 40, Height: 30})

	require.True(t, e.SetTool(ToolSelect))
	e.PointerDown(Point{X: 140, Y: 130})
	e.PointerMove(Point{X: 60, Y: 40})
	e.PointerMove(Point{X: 140, Y: 130})
	e.PointerUp(Point{X: 140, Y: 130})

	r := e.Document().Page(0).FindRect("a")
	require.NotNil(t, r)
	assert.InDelta(t, 100.0, r.X, 1e-9)
	assert.InDelta(t, 100.0, r.Y, 1e-9)
	assert.InDelta(t, 40.0, r.Width, 1e-9)
	assert.InDelta(t, 30.0, r.Height, 1e-9)
}

func TestResizeClampsToMinimum(t *testing.T) {
	e := testEditor(t, 1)
	e.Document().Page(0).AddRect(scene.Rect{ID: "a", X: 100, Y: 100, Width: 40, Height: 30})

	require.True(t, e.SetTool(ToolSelect))
	e.PointerDown(Point{X: 140, Y: 130})
	e.PointerMove(Point{X: 101, Y: 101})
	e.PointerUp(Point{X: 101, Y: 101})

	r := e.Document().Page(0).FindRect("a")
	require.NotNil(t, r)
	assert.InDelta(t, MinRectSize, r.Width, 1e-9)
	assert.InDelta(t, MinRectSize, r.Height, 1e-9)
	// The opposite corner stays anchored while the dragged side clamps.
	assert.InDelta(t, 100.0, r.X, 1e-9)
	assert.InDelta(t, 100.0, r.Y, 1e-9)
}

func TestToolSwitchBlockedMidGesture(t *testing.T) {
	e := testEditor(t, 1)

	e.PointerDown(Point{X: 10, Y: 10})
	assert.False(t, e.SetTool(ToolErase))
	assert.Equal(t, ToolDraw, e.Tool())

	e.PointerUp(Point{X: 100, Y: 100})
	assert.True(t, e.SetTool(ToolErase))
}

func TestPanMovesViewportOnly(t *testing.T) {
	e := testEditor(t, 1)
	require.True(t, e.SetTool(ToolPan))

	e.PointerDown(Point{X: 100, Y: 100})
	fx := e.PointerMove(Point{X: 130, Y: 110})
	assert.True(t, fx.ViewportChanged)
	assert.False(t, fx.SceneChanged)
	up := e.PointerUp(Point{X: 130, Y: 110})
	assert.False(t, up.CommitHistory)

	assert.InDelta(t, -30.0, e.Viewport().ScrollX, 1e-9)
	assert.InDelta(t, -10.0, e.Viewport().ScrollY, 1e-9)
	assert.False(t, e.History().CanUndo())
}

func TestPinchZoomKeepsMidpointFixed(t *testing.T) {
	e := testEditor(t, 1)
	mid := Point{X: 300, Y: 200}
	before := e.Viewport().ToContent(mid)

	e.PinchBegin(Point{X: 250, Y: 200}, Point{X: 350, Y: 200})
	// Doubling the contact spread doubles zoom from 1.0 to 2.0.
	e.PinchMove(Point{X: 200, Y: 200}, Point{X: 400, Y: 200})
	e.PinchEnd()

	assert.InDelta(t, 2.0, e.Viewport().Zoom, 1e-9)
	after := e.Viewport().ToContent(mid)
	assert.InDelta(t, before.X, after.X, 1e-9)
	assert.InDelta(t, before.Y, after.Y, 1e-9)
	assert.False(t, e.History().CanUndo())
}

func TestUndoRedoThroughEditor(t *testing.T) {
	e := testEditor(t, 1)

	e.PointerDown(Point{X: 10, Y: 10})
	e.PointerUp(Point{X: 60, Y: 60})
	require.Len(t, e.Document().Page(0).Rects, 1)

	fx := e.Exec(CommandUndo)
	assert.True(t, fx.SceneChanged)
	assert.Empty(t, e.Document().Page(0).Rects)

	fx = e.Exec(CommandRedo)
	assert.True(t, fx.SceneChanged)
	assert.Len(t, e.Document().Page(0).Rects, 1)

	assert.Equal(t, Effects{}, e.Exec(CommandRedo))
}

func TestDeleteSelectedCommand(t *testing.T) {
	e := testEditor(t, 1)
	e.Document().Page(0).AddRect(scene.Rect{ID: "a", X: 100, Y: 100, Width: 40, Height: 30})

	require.True(t, e.SetTool(ToolSelect))
	e.PointerDown(Point{X: 120, Y: 115})
	e.PointerUp(Point{X: 120, Y: 115})

	fx := e.Exec(CommandDeleteSelected)
	assert.True(t, fx.CommitHistory)
	assert.Empty(t, e.Document().Page(0).Rects)
	assert.Equal(t, "", e.Selected())

	assert.Equal(t, Effects{}, e.Exec(CommandDeleteSelected))
}

func TestClearPageAndClearAll(t *testing.T) {
	e := testEditor(t, 2)
	e.Document().Page(0).AddRect(scene.Rect{ID: "a", X: 0, Y: 0, Width: 10, Height: 10})
	e.Document().Page(1).AddRect(scene.Rect{ID: "b", X: 0, Y: 0, Width: 10, Height: 10})

	fx := e.ClearPage()
	assert.True(t, fx.CommitHistory)
	assert.Empty(t, e.Document().Page(0).Rects)
	assert.Len(t, e.Document().Page(1).Rects, 1)

	assert.Equal(t, Effects{}, e.ClearPage())

	fx = e.ClearAll()
	assert.True(t, fx.CommitHistory)
	assert.Zero(t, e.Document().RectCount())

	assert.Equal(t, Effects{}, e.ClearAll())
}

func TestDeletePage(t *testing.T) {
	e := testEditor(t, 2)
	require.True(t, e.SetPage(1))

	fx, err := e.DeletePage()
	require.NoError(t, err)
	assert.True(t, fx.CommitHistory)
	assert.Len(t, e.Document().Pages, 1)
	assert.Equal(t, 0, e.CurrentPage())

	_, err = e.DeletePage()
	assert.ErrorIs(t, err, scene.ErrLastPage)
}

func TestSetPageBounds(t *testing.T) {
	e := testEditor(t, 2)

	assert.True(t, e.SetPage(1))
	assert.False(t, e.SetPage(2))
	assert.False(t, e.SetPage(-1))
	assert.Equal(t, 1, e.CurrentPage())
}
