// Package preview renders generated vouchers back into images and text so
// operators can look at a voucher before downloading a whole batch.
package preview

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// DefaultDPI is a screen-friendly resolution for an A4 page
const DefaultDPI = 96.0

var (
	// ErrEmptyDocument is returned for empty input
	ErrEmptyDocument = errors.New("document is empty")
	// ErrNoPages is returned for documents without pages
	ErrNoPages = errors.New("document has no pages")
)

// PageInfo describes a rendered document
type PageInfo struct {
	Pages   int
	Title   string
	Subject string
	Creator string
	Text    string // text of the first page
}

// Renderer renders PDF pages using MuPDF
type Renderer struct {
	dpi    float64
	logger *zap.Logger
}

// NewRenderer creates a new Renderer. A non-positive dpi uses DefaultDPI.
func NewRenderer(dpi float64, logger *zap.Logger) *Renderer {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{dpi: dpi, logger: logger}
}

// RenderPNG renders the first page of a PDF document as PNG
func (r *Renderer) RenderPNG(pdf []byte) ([]byte, error) {
	doc, err := open(pdf)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	img, err := doc.ImageDPI(0, r.dpi)
	if err != nil {
		return nil, fmt.Errorf("failed to render page: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}

	r.logger.Debug("Rendered voucher preview",
		zap.Float64("dpi", r.dpi),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()),
		zap.Int("size", buf.Len()))

	return buf.Bytes(), nil
}

// Inspect returns page count, document metadata and first-page text
func (r *Renderer) Inspect(pdf []byte) (*PageInfo, error) {
	doc, err := open(pdf)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	text, err := doc.Text(0)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}
	meta := doc.Metadata()

	return &PageInfo{
		Pages:   doc.NumPage(),
		Title:   meta["title"],
		Subject: meta["subject"],
		Creator: meta["creator"],
		Text:    text,
	}, nil
}

func open(pdf []byte) (*fitz.Document, error) {
	if len(pdf) == 0 {
		return nil, ErrEmptyDocument
	}
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	if doc.NumPage() == 0 {
		doc.Close()
		return nil, ErrNoPages
	}
	return doc, nil
}
