package voucher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"

	"github.com/tamima/evoucher/internal/models"
)

const (
	fontFamily = "Helvetica"
	logoImage  = "logo"
	codeImage  = "code"
	pngType    = "PNG"
)

// ComposedDocument is one rendered voucher
type ComposedDocument struct {
	OrderID   string
	GuestName string
	FileName  string // single-mode download name
	Payload   string
	Bytes     []byte
	Warnings  []string
}

// ComposerOptions customizes page content that is not derived from records
type ComposerOptions struct {
	Theme   Theme
	Creator string
	Encoder CodeEncoder
	Now     func() time.Time
}

// Composer lays out one voucher per record on a fixed A4 page.
// It holds no per-record state and is safe for concurrent use.
type Composer struct {
	theme   Theme
	text    themeText
	creator string
	encoder CodeEncoder
	now     func() time.Time
	logger  *zap.Logger
}

// themeText is the theme converted to the page font encoding
type themeText struct {
	title, subtitle, caption, footerHeading string
	labels                                  [fieldCount]string
	terms                                   [footerTermCount]string
}

// page is everything needed to draw one voucher
type page struct {
	record  *models.VoucherRecord
	values  [fieldCount]string
	payload string
	code    []byte
}

// NewComposer creates a Composer. Zero-valued options fall back to the
// default theme, the QR encoder and the wall clock.
func NewComposer(opts ComposerOptions, logger *zap.Logger) (*Composer, error) {
	theme := opts.Theme
	if theme.Title == "" {
		theme = DefaultTheme()
	}
	if err := theme.Validate(); err != nil {
		return nil, err
	}
	text, err := encodeTheme(&theme)
	if err != nil {
		return nil, err
	}

	c := &Composer{
		theme:   theme,
		text:    text,
		creator: opts.Creator,
		encoder: opts.Encoder,
		now:     opts.Now,
		logger:  logger,
	}
	if c.creator == "" {
		c.creator = "Tamima E-Voucher Generator"
	}
	if c.encoder == nil {
		c.encoder = QRCodeEncoder{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c, nil
}

func encodeTheme(t *Theme) (themeText, error) {
	var out themeText
	var err error
	enc := func(s string) string {
		if err != nil {
			return ""
		}
		var v string
		v, err = winAnsi(s)
		return v
	}
	out.title = enc(t.Title)
	out.subtitle = enc(t.Subtitle)
	out.caption = enc(t.CodeCaption)
	out.footerHeading = enc(t.FooterHeading)
	for i := range t.Labels {
		out.labels[i] = enc(t.Labels[i] + ":")
	}
	for i := range t.FooterTerms {
		out.terms[i] = enc(t.FooterTerms[i])
	}
	return out, err
}

// Compose renders record as a single-page PDF.
// A logo that cannot be embedded is dropped with a warning; any problem with
// the record itself is returned as a *CompositionError.
func (c *Composer) Compose(ctx context.Context, record *models.VoucherRecord, logo *LogoAsset) (doc *ComposedDocument, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Voucher composition panicked",
				zap.String("order_id", record.OrderID),
				zap.Any("panic", r))
			doc = nil
			err = &CompositionError{OrderID: record.OrderID, GuestName: record.GuestName, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	p, err := c.prepare(record)
	if err != nil {
		return nil, err
	}

	var warnings []string
	data, err := c.render(p, logo)
	if err != nil && logo != nil && errors.Is(err, ErrLogoDraw) {
		c.logger.Warn("Logo could not be embedded, composing without logo",
			zap.String("order_id", record.OrderID),
			zap.String("logo_source", logo.Source()),
			zap.Error(err))
		warnings = append(warnings, fmt.Sprintf("voucher %s composed without logo: %v", record.OrderID, err))
		data, err = c.render(p, nil)
	}
	if err != nil {
		return nil, &CompositionError{OrderID: record.OrderID, GuestName: record.GuestName, Err: err}
	}

	c.logger.Debug("Voucher composed",
		zap.String("order_id", record.OrderID),
		zap.Int("size", len(data)),
		zap.Bool("logo", logo != nil && len(warnings) == 0))

	return &ComposedDocument{
		OrderID:   record.OrderID,
		GuestName: record.GuestName,
		FileName:  SingleFileName(record.OrderID),
		Payload:   p.payload,
		Bytes:     data,
		Warnings:  warnings,
	}, nil
}

// prepare converts record text and builds the verification code
func (c *Composer) prepare(record *models.VoucherRecord) (*page, error) {
	p := &page{record: record}

	for i, f := range Fields(record, &c.theme) {
		v, err := winAnsi(f.Value)
		if err != nil {
			return nil, &CompositionError{OrderID: record.OrderID, GuestName: record.GuestName, Field: f.Name, Err: err}
		}
		p.values[i] = v
	}

	p.payload = BuildPayload(record)
	code, err := c.encoder.EncodePNG(p.payload)
	if err != nil {
		return nil, &CompositionError{
			OrderID:   record.OrderID,
			GuestName: record.GuestName,
			Err:       &EncodingError{Payload: p.payload, Err: err},
		}
	}
	p.code = code
	return p, nil
}

// render draws the page in layout order and serializes it
func (c *Composer) render(p *page, logo *LogoAsset) ([]byte, error) {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: PageWidth, Ht: PageHeight},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.SetCompression(true)
	pdf.SetCatalogSort(true)
	pdf.SetCreator(c.creator, true)
	pdf.SetTitle(c.theme.Title+" "+p.record.OrderID, true)
	pdf.SetSubject(p.payload, true)
	now := c.now()
	pdf.SetCreationDate(now)
	pdf.SetModificationDate(now)
	pdf.AddPage()

	if logo != nil {
		if err := c.drawLogo(pdf, logo); err != nil {
			return nil, err
		}
	}
	c.drawHeader(pdf)
	c.drawFields(pdf, p)
	if err := c.drawCode(pdf, p); err != nil {
		return nil, err
	}
	c.drawFooter(pdf)

	if pdf.Err() {
		return nil, fmt.Errorf("render page: %w", pdf.Error())
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("serialize page: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Composer) drawLogo(pdf *fpdf.Fpdf, logo *LogoAsset) error {
	data, err := logo.PNG()
	if err != nil {
		return err
	}
	opts := fpdf.ImageOptions{ImageType: pngType}
	pdf.RegisterImageOptionsReader(logoImage, opts, bytes.NewReader(data))
	if pdf.Err() {
		return fmt.Errorf("%w: %v", ErrLogoDraw, pdf.Error())
	}

	box := FitLogo(logo.Size())
	pdf.ImageOptions(logoImage, box.X, flipY(box.Y+box.H), box.W, box.H, false, opts, 0, "")
	return nil
}

func (c *Composer) drawHeader(pdf *fpdf.Fpdf) {
	accent := c.theme.Accent
	pdf.SetTextColor(accent.R, accent.G, accent.B)
	pdf.SetFont(fontFamily, "B", titleSize)
	pdf.Text(headerX, flipY(titleY), c.text.title)
	pdf.SetFont(fontFamily, "", subtitleSize)
	pdf.Text(headerX, flipY(subtitleY), c.text.subtitle)

	pdf.SetDrawColor(accent.R, accent.G, accent.B)
	pdf.SetLineWidth(headerRuleWidth)
	pdf.Line(marginX, flipY(headerRuleY), PageWidth-marginX, flipY(headerRuleY))
}

func (c *Composer) drawFields(pdf *fpdf.Fpdf, p *page) {
	body := c.theme.Body
	pdf.SetTextColor(body.R, body.G, body.B)
	for i := 0; i < fieldCount; i++ {
		y := flipY(rowY(i))
		pdf.SetFont(fontFamily, "B", bodySize)
		pdf.Text(labelX, y, c.text.labels[i])

		value, size := fitText(pdf, p.values[i], "", bodySize, maxValueWidth)
		pdf.SetFont(fontFamily, "", size)
		pdf.Text(valueX, y, value)
	}
}

func (c *Composer) drawCode(pdf *fpdf.Fpdf, p *page) error {
	opts := fpdf.ImageOptions{ImageType: pngType}
	pdf.RegisterImageOptionsReader(codeImage, opts, bytes.NewReader(p.code))
	if pdf.Err() {
		return &EncodingError{Payload: p.payload, Err: pdf.Error()}
	}
	pdf.ImageOptions(codeImage, codeX, flipY(codeY+codeSize), codeSize, codeSize, false, opts, 0, "")

	body := c.theme.Body
	pdf.SetTextColor(body.R, body.G, body.B)
	pdf.SetFont(fontFamily, "I", smallSize)
	w := pdf.GetStringWidth(c.text.caption)
	pdf.Text(codeX+codeSize/2-w/2, flipY(codeY-captionDrop), c.text.caption)
	return nil
}

func (c *Composer) drawFooter(pdf *fpdf.Fpdf) {
	rule := c.theme.Rule
	pdf.SetDrawColor(rule.R, rule.G, rule.B)
	pdf.SetLineWidth(footerRuleWidth)
	pdf.Line(marginX, flipY(footerRuleY), PageWidth-marginX, flipY(footerRuleY))

	muted := c.theme.Muted
	pdf.SetTextColor(muted.R, muted.G, muted.B)
	pdf.SetFont(fontFamily, "I", smallSize)
	pdf.Text(marginX, flipY(footerY(0)), c.text.footerHeading)
	for i, term := range c.text.terms {
		pdf.Text(marginX, flipY(footerY(i+1)), term)
	}
}

// fitText shrinks s down to minValueSize and then truncates it so that it
// is no wider than maxWidth. It returns the text and the font size to use.
func fitText(pdf *fpdf.Fpdf, s, style string, size, maxWidth float64) (string, float64) {
	for ; size >= minValueSize; size -= 0.5 {
		pdf.SetFont(fontFamily, style, size)
		if pdf.GetStringWidth(s) <= maxWidth {
			return s, size
		}
	}
	size = minValueSize
	pdf.SetFont(fontFamily, style, size)
	// s is single-byte encoded at this point
	for len(s) > 0 && pdf.GetStringWidth(strings.TrimRight(s, " ")+ellipsis) > maxWidth {
		s = s[:len(s)-1]
	}
	return strings.TrimRight(s, " ") + ellipsis, size
}

// flipY converts a bottom-origin layout coordinate to the PDF writer's
// top-origin coordinate
func flipY(y float64) float64 {
	return PageHeight - y
}
