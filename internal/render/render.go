// Package render turns an uploaded statement document into positioned
// text fragments and page dimensions for the locator and the editor.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/inkveil/inkveil/internal/layout"
)

// Classification of upload failures. Password-required is recoverable
// by re-prompting; the other two are terminal for the upload.
var (
	ErrPasswordRequired = errors.New("document requires a password")
	ErrInvalidDocument  = errors.New("not a valid document")
	ErrCorruptDocument  = errors.New("document is corrupt")
)

// Page is one rendered page: its dimensions in content units, the base
// bitmap the redaction rectangles are layered over, and the positioned
// text fragments found on it, in renderer emission order. Coordinates
// are top-left origin; fragment Y is the text baseline.
type Page struct {
	Number    int
	Width     float64
	Height    float64
	Base      image.Image
	Fragments []layout.Fragment
}

// Renderer converts a document file into pages. Implementations return
// ErrPasswordRequired, ErrInvalidDocument, or ErrCorruptDocument
// (possibly wrapped) so callers can branch on the failure class.
type Renderer interface {
	RenderFile(path, password string) ([]Page, error)
}

// PDFRenderer renders PDF statements using positioned text extraction.
type PDFRenderer struct {
	maxFileSize int64
}

// NewPDFRenderer creates a renderer with the specified file size limit.
func NewPDFRenderer(maxFileSize int64) *PDFRenderer {
	return &PDFRenderer{
		maxFileSize: maxFileSize,
	}
}

// RenderFile validates, decrypts, and renders every page of the PDF at
// path. An empty password is valid for unencrypted documents.
func (r *PDFRenderer) RenderFile(path, password string) ([]Page, error) {
	if err := r.validateFile(path); err != nil {
		return nil, err
	}
	if err := r.probeDocument(path, password); err != nil {
		return nil, err
	}
	return r.extractPages(path, password)
}

// validateFile performs basic checks before any parsing.
func (r *PDFRenderer) validateFile(path string) error {
	if path == "" {
		return fmt.Errorf("%w: path cannot be empty", ErrInvalidDocument)
	}

	fileInfo, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: file does not exist: %s", ErrInvalidDocument, path)
	}
	if err != nil {
		return fmt.Errorf("%w: cannot access file: %v", ErrInvalidDocument, err)
	}

	if fileInfo.IsDir() {
		return fmt.Errorf("%w: path is a directory, not a file: %s", ErrInvalidDocument, path)
	}
	if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return fmt.Errorf("%w: file is not a PDF: %s", ErrInvalidDocument, path)
	}
	if fileInfo.Size() == 0 {
		return fmt.Errorf("%w: file is empty: %s", ErrInvalidDocument, path)
	}
	if fileInfo.Size() > r.maxFileSize {
		return fmt.Errorf("%w: file too large: %d bytes (max: %d bytes)",
			ErrInvalidDocument, fileInfo.Size(), r.maxFileSize)
	}

	return nil
}

// probeDocument parses the document structure and checks encryption.
// A wrong password surfaces as ErrPasswordRequired so the caller can
// re-prompt.
func (r *PDFRenderer) probeDocument(path, password string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: cannot open file: %v", ErrInvalidDocument, err)
	}
	defer file.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(file, conf)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return fmt.Errorf("%w: failed to resolve page count: %v", ErrCorruptDocument, err)
	}

	if ctx.Encrypt == nil {
		return nil
	}
	if password == "" {
		return ErrPasswordRequired
	}

	// Re-read with credentials to verify the password actually opens
	// the document.
	if _, err := file.Seek(0, 0); err != nil {
		return fmt.Errorf("%w: cannot rewind file: %v", ErrCorruptDocument, err)
	}
	conf = model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.UserPW = password
	conf.OwnerPW = password
	if _, err := api.ReadContext(file, conf); err != nil {
		return fmt.Errorf("%w: password rejected", ErrPasswordRequired)
	}

	return nil
}

// extractPages walks every page collecting positioned text runs.
func (r *PDFRenderer) extractPages(path, password string) ([]Page, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open file: %v", ErrInvalidDocument, err)
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: cannot stat file: %v", ErrInvalidDocument, err)
	}

	pdfReader, err := pdf.NewReaderEncrypted(file, fileInfo.Size(), func() string {
		return password
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}

	pages := make([]Page, 0, pdfReader.NumPage())
	for pageNum := 1; pageNum <= pdfReader.NumPage(); pageNum++ {
		pages = append(pages, r.extractPage(pdfReader, pageNum))
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: document has no pages", ErrCorruptDocument)
	}

	return pages, nil
}

// Default US Letter dimensions used when a page has no usable MediaBox.
const (
	defaultPageWidth  = 612.0
	defaultPageHeight = 792.0
)

// extractPage renders a single page. Parse panics in the underlying
// library are contained here; a page that cannot be parsed yields its
// dimensions with no fragments.
func (r *PDFRenderer) extractPage(pdfReader *pdf.Reader, pageNum int) (result Page) {
	result = Page{Number: pageNum, Width: defaultPageWidth, Height: defaultPageHeight}

	defer func() {
		if recover() != nil {
			result.Fragments = nil
			result.Base = rasterize(result.Width, result.Height, nil)
		}
	}()

	page := pdfReader.Page(pageNum)
	if page.V.IsNull() {
		return result
	}

	llx, lly, urx, ury, ok := mediaBox(page)
	if ok {
		result.Width = urx - llx
		result.Height = ury - lly
	} else {
		llx, ury = 0, defaultPageHeight
	}

	content := page.Content()
	fragments := make([]layout.Fragment, 0, len(content.Text))
	for _, t := range content.Text {
		if t.S == "" {
			continue
		}
		// PDF text coordinates are bottom-left origin with Y at the
		// baseline; flip to the top-left raster space the scene uses.
		fragments = append(fragments, layout.Fragment{
			Text:   t.S,
			X:      t.X - llx,
			Y:      ury - t.Y,
			Width:  t.W,
			Height: t.FontSize,
		})
	}
	result.Fragments = fragments
	result.Base = rasterize(result.Width, result.Height, fragments)

	return result
}

// rasterize paints the positioned text runs onto a white page canvas at
// their baselines. With no pure-Go PDF rasterizer available the base
// render approximates the page typography with a fixed bitmap face; the
// fragment positions, which drive every rectangle, stay exact.
func rasterize(width, height float64, fragments []layout.Fragment) *image.NRGBA {
	canvas := imaging.New(int(math.Ceil(width)), int(math.Ceil(height)), color.White)
	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.NRGBA{A: 255}),
		Face: basicfont.Face7x13,
	}
	for _, f := range fragments {
		d.Dot = fixed.P(int(math.Round(f.X)), int(math.Round(f.Y)))
		d.DrawString(f.Text)
	}
	return canvas
}

// mediaBox reads the page MediaBox, walking up the page tree when the
// entry is inherited.
func mediaBox(page pdf.Page) (llx, lly, urx, ury float64, ok bool) {
	v := page.V.Key("MediaBox")
	for parent := page.V.Key("Parent"); v.IsNull() && !parent.IsNull(); parent = parent.Key("Parent") {
		v = parent.Key("MediaBox")
	}
	if v.IsNull() || v.Kind() != pdf.Array || v.Len() != 4 {
		return 0, 0, 0, 0, false
	}

	coords := make([]float64, 4)
	for i := 0; i < 4; i++ {
		val := v.Index(i)
		switch val.Kind() {
		case pdf.Integer:
			coords[i] = float64(val.Int64())
		case pdf.Real:
			coords[i] = val.Float64()
		default:
			return 0, 0, 0, 0, false
		}
	}

	llx, lly, urx, ury = coords[0], coords[1], coords[2], coords[3]
	if urx <= llx || ury <= lly {
		return 0, 0, 0, 0, false
	}
	return llx, lly, urx, ury, true
}
