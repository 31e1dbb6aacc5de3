package service

import "errors"

var (
	// ErrOrderNotFound is returned when no record has the requested order id
	ErrOrderNotFound = errors.New("order id not found")
	// ErrLedgerDisabled is returned by run queries when no ledger is configured
	ErrLedgerDisabled = errors.New("batch run ledger is not configured")
	// ErrPreviewDisabled is returned when no preview renderer is configured
	ErrPreviewDisabled = errors.New("preview renderer is not configured")
)
