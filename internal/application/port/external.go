package port

import (
	"io"

	"github.com/tamima/evoucher/internal/models"
)

// RecordReader turns an uploaded workbook into voucher records
type RecordReader interface {
	Read(src io.Reader, source string) ([]models.VoucherRecord, error)
}

// PreviewRenderer rasterizes the first page of a PDF document
type PreviewRenderer interface {
	RenderPNG(pdf []byte) ([]byte, error)
}
