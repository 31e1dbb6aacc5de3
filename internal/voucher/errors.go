package voucher

import (
	"errors"
	"fmt"
)

// Domain errors for voucher composition and packaging

var (
	// Record errors
	ErrUnencodableText = errors.New("text cannot be rendered with the page font")
	ErrEncoding        = errors.New("verification code could not be encoded")

	// Logo errors (recoverable: the voucher is composed without a logo)
	ErrLogoDecode = errors.New("logo image could not be decoded")
	ErrLogoDraw   = errors.New("logo image could not be embedded")

	// Batch errors
	ErrPackaging = errors.New("voucher archive could not be finalized")
)

// CompositionError reports a record that could not be turned into a voucher.
// It is fatal for that record only.
type CompositionError struct {
	OrderID   string
	GuestName string
	Field     string // empty when the failure is not tied to one field
	Err       error
}

func (e *CompositionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("voucher %s (%s): field %s: %v", e.OrderID, e.GuestName, e.Field, e.Err)
	}
	return fmt.Sprintf("voucher %s (%s): %v", e.OrderID, e.GuestName, e.Err)
}

func (e *CompositionError) Unwrap() error { return e.Err }

// EncodingError reports a payload the code encoder rejected.
// It always reaches callers wrapped in a CompositionError.
type EncodingError struct {
	Payload string
	Err     error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode payload %q: %v", e.Payload, e.Err)
}

func (e *EncodingError) Unwrap() []error { return []error{ErrEncoding, e.Err} }

// LogoDecodeError reports an unusable logo source.
// Callers degrade to vouchers without a logo.
type LogoDecodeError struct {
	Source string
	Err    error
}

func (e *LogoDecodeError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("decode logo %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("decode logo: %v", e.Err)
}

func (e *LogoDecodeError) Unwrap() []error { return []error{ErrLogoDecode, e.Err} }

// PackagingError reports a failure of the archive container itself.
// It aborts the whole batch.
type PackagingError struct {
	Op  string
	Err error
}

func (e *PackagingError) Error() string {
	return fmt.Sprintf("package vouchers: %s: %v", e.Op, e.Err)
}

func (e *PackagingError) Unwrap() []error { return []error{ErrPackaging, e.Err} }
