package voucher

import (
	"fmt"

	"golang.org/x/text/encoding/charmap"

	"github.com/tamima/evoucher/internal/models"
)

// Page geometry in PDF points. Y coordinates are measured from the bottom
// edge of the page; the composer flips them for the PDF writer.
const (
	PageWidth  = 595.28
	PageHeight = 841.89

	marginX = 50.0

	// logo box, lower-left corner and size
	logoX = marginX
	logoY = PageHeight - 100
	logoW = 100.0
	logoH = 80.0

	headerX      = 160.0
	titleY       = PageHeight - 80
	subtitleY    = PageHeight - 100
	titleSize    = 20.0
	subtitleSize = 12.0

	headerRuleY     = PageHeight - 115
	headerRuleWidth = 2.0

	labelX       = 60.0
	valueX       = 150.0
	tableTopY    = PageHeight - 150
	linePitch    = 25.0
	bodySize     = 11.0
	minValueSize = 7.0
	columnGap    = 10.0
	ellipsis     = "..."
	fieldCount   = 7

	codeSize    = 120.0
	codeX       = PageWidth - 200
	codeY       = PageHeight - 250
	captionDrop = 15.0
	smallSize   = 9.0

	footerRuleY     = 80.0
	footerRuleWidth = 1.0
	footerHeadingY  = 60.0
	footerPitch     = 15.0
	footerTermCount = 3
)

// maxValueWidth keeps field values clear of the code box
const maxValueWidth = codeX - columnGap - valueX

// Box is an axis-aligned rectangle in page coordinates
type Box struct {
	X, Y, W, H float64
}

// LogoBox is where the logo is fitted
var LogoBox = Box{X: logoX, Y: logoY, W: logoW, H: logoH}

// CodeBox is where the verification code is drawn
var CodeBox = Box{X: codeX, Y: codeY, W: codeSize, H: codeSize}

// FitLogo places an image of the given natural size (one pixel per point)
// inside the logo box. The image is shrunk to fit, never enlarged, and
// centred in the box.
func FitLogo(width, height int) Box {
	if width <= 0 || height <= 0 {
		return Box{}
	}
	w, h := float64(width), float64(height)
	scale := 1.0
	if s := logoW / w; s < scale {
		scale = s
	}
	if s := logoH / h; s < scale {
		scale = s
	}
	w, h = w*scale, h*scale
	return Box{
		X: logoX + (logoW-w)/2,
		Y: logoY + (logoH-h)/2,
		W: w,
		H: h,
	}
}

// Field is one row of the field table
type Field struct {
	Name  string
	Label string
	Value string
}

// Fields returns the table rows for record in page order
func Fields(record *models.VoucherRecord, theme *Theme) []Field {
	names := [fieldCount]string{"order_id", "guest_name", "property_name", "service_name", "check_in", "check_out", "status"}
	values := [fieldCount]string{
		record.OrderID,
		record.GuestName,
		record.PropertyName,
		record.ServiceName,
		record.CheckIn,
		record.CheckOut,
		record.Status,
	}

	fields := make([]Field, fieldCount)
	for i := range fields {
		fields[i] = Field{Name: names[i], Label: theme.Labels[i], Value: values[i]}
	}
	return fields
}

// rowY is the baseline of table row i
func rowY(i int) float64 {
	return tableTopY - float64(i)*linePitch
}

// footerY is the baseline of footer line i, the heading being line 0
func footerY(i int) float64 {
	return footerHeadingY - float64(i)*footerPitch
}

// winAnsi converts UTF-8 text to the single-byte encoding of the standard
// PDF fonts. Runes outside that encoding are reported instead of replaced.
func winAnsi(s string) (string, error) {
	out, err := charmap.Windows1252.NewEncoder().String(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnencodableText, s)
	}
	return out, nil
}
