package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkveil/inkveil/internal/layout"
)

var _ Renderer = (*PDFRenderer)(nil)

func TestRenderFileValidation(t *testing.T) {
	tempDir := t.TempDir()

	nonPDFPath := filepath.Join(tempDir, "statement.txt")
	require.NoError(t, os.WriteFile(nonPDFPath, []byte("not a pdf"), 0o644))

	emptyPath := filepath.Join(tempDir, "empty.pdf")
	require.NoError(t, os.WriteFile(emptyPath, nil, 0o644))

	largePath := filepath.Join(tempDir, "large.pdf")
	require.NoError(t, os.WriteFile(largePath, make([]byte, 2048), 0o644))

	tests := []struct {
		name string
		path string
	}{
		{name: "empty path", path: ""},
		{name: "non-existent file", path: filepath.Join(tempDir, "missing.pdf")},
		{name: "directory", path: tempDir + string(os.PathSeparator) + "dir.pdf"},
		{name: "wrong extension", path: nonPDFPath},
		{name: "empty file", path: emptyPath},
		{name: "file too large", path: largePath},
	}

	r := NewPDFRenderer(1024)
	require.NoError(t, os.Mkdir(tests[2].path, 0o755))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.RenderFile(tt.path, "")
			assert.ErrorIs(t, err, ErrInvalidDocument)
		})
	}
}

func TestRenderFileCorruptDocument(t *testing.T) {
	tempDir := t.TempDir()
	garbagePath := filepath.Join(tempDir, "garbage.pdf")
	require.NoError(t, os.WriteFile(garbagePath, []byte("%PDF-1.7 but nothing else here"), 0o644))

	r := NewPDFRenderer(1024 * 1024)
	_, err := r.RenderFile(garbagePath, "")
	assert.ErrorIs(t, err, ErrCorruptDocument)
}

func TestErrorClassesAreDistinct(t *testing.T) {
	assert.NotErrorIs(t, ErrPasswordRequired, ErrInvalidDocument)
	assert.NotErrorIs(t, ErrPasswordRequired, ErrCorruptDocument)
	assert.NotErrorIs(t, ErrInvalidDocument, ErrCorruptDocument)
}

func TestRasterizePaintsFragments(t *testing.T) {
	frags := []layout.Fragment{
		{Text: "HELLO", X: 20, Y: 50, Width: 35, Height: 13},
	}

	img := rasterize(200, 100, frags)
	require.Equal(t, 200, img.Bounds().Dx())
	require.Equal(t, 100, img.Bounds().Dy())

	// Somewhere in the glyph box above the baseline there is ink.
	inked := false
	for y := 37; y <= 51 && !inked; y++ {
		for x := 20; x <= 60; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if r != 0xffff || g != 0xffff || b != 0xffff {
				inked = true
				break
			}
		}
	}
	assert.True(t, inked, "fragment text should leave non-white pixels")

	// Far from any fragment the canvas stays white.
	r, g, b, _ := img.At(190, 90).RGBA()
	assert.Equal(t, []uint32{0xffff, 0xffff, 0xffff}, []uint32{r, g, b})
}

func TestRasterizeEmptyPageIsBlank(t *testing.T) {
	img := rasterize(50, 40, nil)
	for y := 0; y < 40; y++ {
		for x := 0; x < 50; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			require.Equal(t, uint32(0xffff), r)
			require.Equal(t, uint32(0xffff), g)
			require.Equal(t, uint32(0xffff), b)
		}
	}
}
