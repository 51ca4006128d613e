// Package session owns the single editing session: it walks an
// uploaded statement through rendering, line reconstruction, PII
// detection, and rectangle synthesis, then hands the resulting scene
// to the editor and, on export, to the compositor and extractor.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/inkveil/inkveil/internal/bridge"
	"github.com/inkveil/inkveil/internal/compose"
	"github.com/inkveil/inkveil/internal/detect"
	"github.com/inkveil/inkveil/internal/editor"
	"github.com/inkveil/inkveil/internal/export"
	"github.com/inkveil/inkveil/internal/extract"
	"github.com/inkveil/inkveil/internal/layout"
	"github.com/inkveil/inkveil/internal/render"
	"github.com/inkveil/inkveil/internal/scene"
)

// ErrNoDocument means an operation needing an open document ran while
// the session was idle.
var ErrNoDocument = errors.New("no document open")

// Phase is the session lifecycle state.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseEditing Phase = "editing"
)

// PageSummary reports what detection found on one page.
type PageSummary struct {
	Number    int `json:"number"`
	Lines     int `json:"lines"`
	Matches   int `json:"matches"`
	AutoRects int `json:"auto_rects"`
}

// Options are the tunables the session threads into its collaborators.
type Options struct {
	LineTolerance  float64
	MinZoom        float64
	MaxZoom        float64
	MinRectSize    float64
	ComposeWorkers int
}

func (o Options) withDefaults() Options {
	if o.LineTolerance <= 0 {
		o.LineTolerance = layout.DefaultTolerance
	}
	if o.MinZoom <= 0 {
		o.MinZoom = 0.1
	}
	if o.MaxZoom <= o.MinZoom {
		o.MaxZoom = 4.0
	}
	if o.MinRectSize <= 0 {
		o.MinRectSize = editor.MinRectSize
	}
	if o.ComposeWorkers < 1 {
		o.ComposeWorkers = 3
	}
	return o
}

// Session drives one document through the redaction pipeline.
type Session struct {
	mu sync.Mutex

	renderer render.Renderer
	detector *detect.Detector
	opts     Options
	logger   *zap.Logger

	phase     Phase
	path      string
	editor    *editor.Editor
	summaries []PageSummary
}

// NewSession creates an idle session.
func NewSession(renderer render.Renderer, detector *detect.Detector, opts Options, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		renderer: renderer,
		detector: detector,
		opts:     opts.withDefaults(),
		logger:   logger,
		phase:    PhaseIdle,
	}
}

// Phase returns the lifecycle state.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Path returns the open document path, or "" when idle.
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Editor returns the live editor, or nil when no document is open.
func (s *Session) Editor() *editor.Editor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor
}

// Summaries returns the per-page detection summary of the open
// document.
func (s *Session) Summaries() []PageSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PageSummary, len(s.summaries))
	copy(out, s.summaries)
	return out
}

// Open renders the document and runs detection page by page, in page
// order. ErrPasswordRequired is returned untouched so the caller can
// re-prompt and call Open again with credentials; any other failure
// resets the session to its pre-upload state.
func (s *Session) Open(path, password string) ([]PageSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pages, err := s.renderer.RenderFile(path, password)
	if err != nil {
		s.resetLocked()
		if errors.Is(err, render.ErrPasswordRequired) {
			return nil, err
		}
		return nil, fmt.Errorf("upload failed: %w", err)
	}

	scenePages := make([]*scene.Page, 0, len(pages))
	summaries := make([]PageSummary, 0, len(pages))

	for i, p := range pages {
		sp := &scene.Page{Base: p.Base, Width: p.Width, Height: p.Height}

		lines := layout.ReconstructWithTolerance(p.Fragments, s.opts.LineTolerance)
		matches := s.detector.DetectPage(lines, p.Height)
		covered := s.detector.Apply(sp, i, lines, matches)

		scenePages = append(scenePages, sp)
		summaries = append(summaries, PageSummary{
			Number:    p.Number,
			Lines:     len(lines),
			Matches:   len(matches),
			AutoRects: covered,
		})
	}

	doc := scene.NewDocument(scenePages)
	s.editor = editor.New(doc, s.opts.MinZoom, s.opts.MaxZoom, s.opts.MinRectSize)
	s.summaries = summaries
	s.path = path
	s.phase = PhaseEditing

	s.logger.Info("document opened",
		zap.String("path", path),
		zap.Int("pages", len(scenePages)),
		zap.Int("auto_rects", doc.RectCount()))

	// Hand the caller its own copy; s.mu is still held here.
	out := make([]PageSummary, len(summaries))
	copy(out, summaries)
	return out, nil
}

// Reset discards the open document and returns to the pre-upload
// state.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Session) resetLocked() {
	s.phase = PhaseIdle
	s.path = ""
	s.editor = nil
	s.summaries = nil
}

// BakePages flattens the current scene into PNG pages in page order.
func (s *Session) BakePages(ctx context.Context) ([][]byte, error) {
	s.mu.Lock()
	ed := s.editor
	s.mu.Unlock()
	if ed == nil {
		return nil, ErrNoDocument
	}

	images, err := compose.BakeDocument(ctx, ed.Document(), s.opts.ComposeWorkers)
	if err != nil {
		return nil, fmt.Errorf("composition failed: %w", err)
	}

	pngs := make([][]byte, len(images))
	for i, img := range images {
		if pngs[i], err = compose.EncodePNG(img); err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
	}
	return pngs, nil
}

// Extractor turns baked page images into transaction rows.
type Extractor interface {
	Extract(ctx context.Context, pages [][]byte) ([]extract.Record, error)
}

// Extract bakes the redacted pages and sends them for transaction
// extraction. Only baked bitmaps leave the session.
func (s *Session) Extract(ctx context.Context, extractor Extractor) ([]extract.Record, error) {
	pngs, err := s.BakePages(ctx)
	if err != nil {
		return nil, err
	}
	return extractor.Extract(ctx, pngs)
}

// Export runs the full pipeline: bake, extract, write the spreadsheet,
// and hand the rows to the host bridge. A missing host downgrades the
// handoff to a log line; it never fails the export.
func (s *Session) Export(ctx context.Context, extractor Extractor, b *bridge.Bridge, w io.Writer) ([]extract.Record, error) {
	records, err := s.Extract(ctx, extractor)
	if err != nil {
		return nil, err
	}

	if err := export.WriteXLSX(w, records); err != nil {
		return nil, fmt.Errorf("spreadsheet export failed: %w", err)
	}

	if b != nil {
		if err := b.Deliver(ctx, records); err != nil {
			if errors.Is(err, bridge.ErrNoHost) {
				s.logger.Debug("no host attached, keeping results local")
			} else {
				s.logger.Warn("host delivery failed", zap.Error(err))
			}
		}
	}

	return records, nil
}
