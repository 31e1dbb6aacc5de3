package ingest

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnreadable     = errors.New("workbook could not be read")
	ErrSheetNotFound  = errors.New("sheet not found")
	ErrMissingColumns = errors.New("required columns are missing")
	ErrNoRows         = errors.New("sheet has no data rows")
	ErrTooManyRows    = errors.New("sheet has too many rows")
)

// IngestionError reports a record source that cannot be turned into records.
// Nothing is generated from a source that fails ingestion.
type IngestionError struct {
	Source         string
	MissingColumns []string
	Err            error
}

func (e *IngestionError) Error() string {
	var b strings.Builder
	b.WriteString("ingest")
	if e.Source != "" {
		b.WriteString(" ")
		b.WriteString(e.Source)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	if len(e.MissingColumns) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(e.MissingColumns, ", "))
	}
	return b.String()
}

func (e *IngestionError) Unwrap() error { return e.Err }
