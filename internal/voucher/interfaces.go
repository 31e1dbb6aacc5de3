package voucher

import (
	"context"

	"github.com/tamima/evoucher/internal/models"
	"github.com/tamima/evoucher/internal/qrcode"
)

// CodeEncoder turns a verification payload into an embeddable PNG
type CodeEncoder interface {
	EncodePNG(payload string) ([]byte, error)
}

// ComposerInterface defines the contract for composing one voucher page
type ComposerInterface interface {
	// Compose renders record as a single-page PDF. A nil logo leaves the
	// logo box blank.
	Compose(ctx context.Context, record *models.VoucherRecord, logo *LogoAsset) (*ComposedDocument, error)
}

// PackagerInterface defines the contract for batch packaging
type PackagerInterface interface {
	// PackageAll composes every record and collects the successes into one
	// ZIP archive. Per-record failures are reported in the result, never
	// as the returned error.
	PackageAll(ctx context.Context, records []models.VoucherRecord, logo *LogoAsset, onProgress ProgressFunc) (*BatchResult, error)
}

// QRCodeEncoder is the production CodeEncoder
type QRCodeEncoder struct{}

// EncodePNG implements CodeEncoder
func (QRCodeEncoder) EncodePNG(payload string) ([]byte, error) {
	return qrcode.EncodePNG(payload)
}
