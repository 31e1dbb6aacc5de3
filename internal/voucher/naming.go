package voucher

import (
	"fmt"
	"strings"

	"github.com/tamima/evoucher/internal/models"
)

// Output naming
const (
	PDFMediaType       = "application/pdf"
	ZIPMediaType       = "application/zip"
	DefaultArchiveName = "Tamima_Vouchers.zip"
	voucherFilePrefix  = "Voucher_"
	voucherFileExt     = ".pdf"
)

var pathSeparatorReplacer = strings.NewReplacer("/", "_", "\\", "_")

// SanitizeName replaces path separators so the value is safe inside a flat
// archive entry or file name
func SanitizeName(name string) string {
	return pathSeparatorReplacer.Replace(name)
}

// SingleFileName returns the download name of a voucher generated on its own
func SingleFileName(orderID string) string {
	return voucherFilePrefix + SanitizeName(orderID) + voucherFileExt
}

// EntryName returns the archive entry name of a voucher inside a batch
func EntryName(record *models.VoucherRecord) string {
	return fmt.Sprintf("%s%s_%s%s",
		voucherFilePrefix,
		SanitizeName(record.OrderID),
		SanitizeName(record.GuestName),
		voucherFileExt)
}

// AssignEntryNames names every record in input order. A name already taken
// by an earlier record gets a numeric suffix, so the result is deterministic
// and free of collisions regardless of completion order.
func AssignEntryNames(records []models.VoucherRecord) []string {
	names := make([]string, len(records))
	used := make(map[string]bool, len(records))

	for i := range records {
		base := EntryName(&records[i])
		name := base
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s_%d%s", strings.TrimSuffix(base, voucherFileExt), n, voucherFileExt)
		}
		used[name] = true
		names[i] = name
	}
	return names
}
