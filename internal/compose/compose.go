// Package compose flattens a redaction scene into final bitmaps. Each
// page bakes its base render and every rectangle, auto and manual
// alike, into a single opaque image so no covered pixel survives.
package compose

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/inkveil/inkveil/internal/scene"
)

// fillColor is the redaction ink. Rectangles are painted fully opaque.
var fillColor = color.NRGBA{R: 0, G: 0, B: 0, A: 255}

// BakePage flattens one page. The base render is drawn over an opaque
// white canvas, then each rectangle is painted in insertion order.
// Rectangle bounds are expanded outward to whole pixels so fractional
// edges never leave a sliver of covered content visible.
func BakePage(p *scene.Page) *image.NRGBA {
	w := int(math.Ceil(p.Width))
	h := int(math.Ceil(p.Height))
	if p.Base != nil {
		b := p.Base.Bounds()
		w, h = b.Dx(), b.Dy()
	}
	canvas := imaging.New(w, h, color.White)
	if p.Base != nil {
		canvas = imaging.Overlay(canvas, p.Base, image.Pt(0, 0), 1.0)
	}
	for _, r := range p.Rects {
		draw.Draw(canvas, pixelBounds(r), image.NewUniform(fillColor), image.Point{}, draw.Src)
	}
	return canvas
}

// pixelBounds converts a content rectangle to integer pixel bounds,
// flooring the origin and ceiling the far edge.
func pixelBounds(r scene.Rect) image.Rectangle {
	x0 := int(math.Floor(r.X))
	y0 := int(math.Floor(r.Y))
	x1 := int(math.Ceil(r.X + r.Width))
	y1 := int(math.Ceil(r.Y + r.Height))
	return image.Rect(x0, y0, x1, y1)
}

// BakeDocument flattens every page concurrently. Results are returned
// in page order regardless of completion order. A cancelled context
// aborts outstanding work and returns the context error.
func BakeDocument(ctx context.Context, d *scene.Document, workers int) ([]*image.NRGBA, error) {
	if workers < 1 {
		workers = 1
	}
	results := make([]*image.NRGBA, len(d.Pages))
	sem := make(chan struct{}, workers)

	var wg sync.WaitGroup
	for i, p := range d.Pages {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, ctx.Err()
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(i int, p *scene.Page) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = BakePage(p)
		}(i, p)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// EncodePNG serializes a baked page for export or extraction upload.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode page image: %w", err)
	}
	return buf.Bytes(), nil
}
