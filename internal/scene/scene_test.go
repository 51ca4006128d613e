package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDocument(pages int) *Document {
	ps := make([]*Page, pages)
	for i := range ps {
		ps[i] = &Page{Width: 600, Height: 800}
	}
	return NewDocument(ps)
}

func TestRectContains(t *testing.T) {
	r := Rect{X: 10, Y: 10, Width: 20, Height: 20}

	assert.True(t, r.Contains(10, 10), "edges are inclusive")
	assert.True(t, r.Contains(30, 30))
	assert.True(t, r.Contains(20, 15))
	assert.False(t, r.Contains(9.9, 15))
	assert.False(t, r.Contains(20, 30.1))
}

func TestEraseRemovesTopmostOnly(t *testing.T) {
	p := &Page{}
	p.AddRect(Rect{ID: "a", X: 0, Y: 0, Width: 10, Height: 10})
	p.AddRect(Rect{ID: "b", X: 5, Y: 5, Width: 10, Height: 10})

	removed, ok := p.EraseAt(7, 7)
	require.True(t, ok)
	assert.Equal(t, "b", removed.ID, "last-inserted rectangle wins")
	require.Len(t, p.Rects, 1)
	assert.Equal(t, "a", p.Rects[0].ID)
}

func TestEraseMissIsNoop(t *testing.T) {
	p := &Page{}
	p.AddRect(Rect{ID: "a", X: 0, Y: 0, Width: 10, Height: 10})

	_, ok := p.EraseAt(50, 50)
	assert.False(t, ok)
	assert.Len(t, p.Rects, 1)
}

func TestAddManualRectIDsAreUniquePerPage(t *testing.T) {
	p := &Page{}
	r1 := p.AddManualRect(0, 0, 10, 10)
	r2 := p.AddManualRect(5, 5, 10, 10)

	assert.NotEqual(t, r1.ID, r2.ID)
	assert.Equal(t, SourceManual, r1.Source)
}

func TestManualIDsSurviveEraseWithoutReuse(t *testing.T) {
	p := &Page{}
	r1 := p.AddManualRect(0, 0, 10, 10)
	p.EraseAt(5, 5)
	r2 := p.AddManualRect(0, 0, 10, 10)

	assert.NotEqual(t, r1.ID, r2.ID)
}

func TestDeletePage(t *testing.T) {
	d := testDocument(2)
	require.NoError(t, d.DeletePage(0))
	assert.Len(t, d.Pages, 1)

	err := d.DeletePage(0)
	assert.ErrorIs(t, err, ErrLastPage)
	assert.Len(t, d.Pages, 1, "document retains at least one page")
}

func TestDeletePageOutOfRange(t *testing.T) {
	d := testDocument(2)
	assert.Error(t, d.DeletePage(5))
	assert.Error(t, d.DeletePage(-1))
}

func TestCloneIsDeep(t *testing.T) {
	d := testDocument(1)
	d.Pages[0].AddRect(Rect{ID: "a", X: 1, Y: 2, Width: 3, Height: 4})

	cp := d.Clone()
	cp.Pages[0].Rects[0].X = 99
	cp.Pages[0].AddManualRect(0, 0, 10, 10)

	assert.InDelta(t, 1, d.Pages[0].Rects[0].X, 0.001)
	assert.Len(t, d.Pages[0].Rects, 1)
}

func TestFindRectReturnsLivePointer(t *testing.T) {
	p := &Page{}
	p.AddRect(Rect{ID: "a", X: 1, Y: 1, Width: 5, Height: 5})

	r := p.FindRect("a")
	require.NotNil(t, r)
	r.X = 42
	assert.InDelta(t, 42, p.Rects[0].X, 0.001)

	assert.Nil(t, p.FindRect("missing"))
}
