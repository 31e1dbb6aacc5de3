package voucher

import (
	"fmt"
	"strconv"
	"strings"
)

// RGB is an 8-bit colour used on the page
type RGB struct {
	R, G, B int
}

// ParseHexColor parses "#RRGGBB" or "RRGGBB"
func ParseHexColor(s string) (RGB, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return RGB{}, fmt.Errorf("invalid colour %q: want #RRGGBB", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return RGB{R: int(v >> 16 & 0xff), G: int(v >> 8 & 0xff), B: int(v & 0xff)}, nil
}

// Theme holds the static text and colours of a voucher page.
// Geometry is fixed by the layout and is not part of the theme.
type Theme struct {
	Title    string
	Subtitle string

	// Labels for the field table, in table order:
	// order id, guest, property, service, check-in, check-out, status
	Labels [fieldCount]string

	CodeCaption string

	FooterHeading string
	FooterTerms   [footerTermCount]string

	Accent RGB // header text and header separator
	Body   RGB // field table and code caption
	Muted  RGB // footer text
	Rule   RGB // footer separator
}

// DefaultTheme returns the Tamima branding
func DefaultTheme() Theme {
	return Theme{
		Title:    "E-VOUCHER TAMIMA",
		Subtitle: "Hajj & Umrah Service",
		Labels: [fieldCount]string{
			"Order ID",
			"Nama Tamu",
			"Properti",
			"Layanan",
			"Check-in",
			"Check-out",
			"Status",
		},
		CodeCaption:   "Scan untuk verifikasi",
		FooterHeading: "Syarat & Ketentuan:",
		FooterTerms: [footerTermCount]string{
			"1. Voucher berlaku 6 bulan sejak tanggal pembelian.",
			"2. Tidak dapat digabung dengan promo lainnya.",
			"3. Tunjukkan voucher ini saat check-in.",
		},
		Accent: RGB{R: 0x1E, G: 0x3A, B: 0x8A},
		Body:   RGB{R: 0, G: 0, B: 0},
		Muted:  RGB{R: 169, G: 169, B: 169},
		Rule:   RGB{R: 211, G: 211, B: 211},
	}
}

// Validate checks that every static string can be rendered
func (t *Theme) Validate() error {
	texts := map[string]string{
		"title":          t.Title,
		"subtitle":       t.Subtitle,
		"code caption":   t.CodeCaption,
		"footer heading": t.FooterHeading,
	}
	for i, l := range t.Labels {
		texts[fmt.Sprintf("label %d", i+1)] = l
	}
	for i, l := range t.FooterTerms {
		texts[fmt.Sprintf("footer term %d", i+1)] = l
	}
	for name, s := range texts {
		if _, err := winAnsi(s); err != nil {
			return fmt.Errorf("theme %s: %w", name, err)
		}
	}
	return nil
}
