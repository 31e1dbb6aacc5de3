package voucher

import (
	"strings"

	"github.com/tamima/evoucher/internal/models"
)

// Verification payload layout. Scanners parse this exact format, so the
// field order and delimiters must never change.
const (
	payloadFieldSep = "|"
	payloadKeySep   = ":"
)

// BuildPayload returns the verification string embedded in the voucher code:
// OrderID:{orderId}|Guest:{guestName}|Status:{status}
func BuildPayload(record *models.VoucherRecord) string {
	pairs := [][2]string{
		{"OrderID", record.OrderID},
		{"Guest", record.GuestName},
		{"Status", record.Status},
	}

	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteString(payloadFieldSep)
		}
		b.WriteString(p[0])
		b.WriteString(payloadKeySep)
		b.WriteString(p[1])
	}
	return b.String()
}
