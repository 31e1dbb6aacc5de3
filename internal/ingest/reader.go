// Package ingest reads voucher records from xlsx workbooks.
//
// The first row of the sheet is the header. Columns are matched by name,
// extra columns are ignored and every cell is taken as its displayed text.
package ingest

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/tamima/evoucher/internal/models"
)

// Column names of the record sheet, in record field order
const (
	ColumnOrderID  = "Order_ID"
	ColumnGuest    = "Nama_Tamu"
	ColumnProperty = "Properti"
	ColumnService  = "Layanan"
	ColumnCheckIn  = "Check_in"
	ColumnCheckOut = "Check_out"
	ColumnStatus   = "Status"
)

// RequiredColumns lists every column a record sheet must have
var RequiredColumns = []string{
	ColumnOrderID,
	ColumnGuest,
	ColumnProperty,
	ColumnService,
	ColumnCheckIn,
	ColumnCheckOut,
	ColumnStatus,
}

// Options configures a Reader
type Options struct {
	// SheetName selects the sheet; empty means the first sheet
	SheetName string
	// MaxRecords rejects larger sheets; zero means unlimited
	MaxRecords int
}

// Reader turns xlsx workbooks into voucher records
type Reader struct {
	opts   Options
	logger *zap.Logger
}

// NewReader creates a new Reader
func NewReader(opts Options, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{opts: opts, logger: logger}
}

// ReadFile reads the workbook stored at path
func (r *Reader) ReadFile(path string) ([]models.VoucherRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IngestionError{Source: path, Err: fmt.Errorf("%w: %v", ErrUnreadable, err)}
	}
	defer f.Close()
	return r.Read(f, path)
}

// Read parses a workbook. source only labels errors and logs.
func (r *Reader) Read(src io.Reader, source string) ([]models.VoucherRecord, error) {
	wb, err := excelize.OpenReader(src)
	if err != nil {
		return nil, &IngestionError{Source: source, Err: fmt.Errorf("%w: %v", ErrUnreadable, err)}
	}
	defer wb.Close()

	sheet, err := r.sheet(wb)
	if err != nil {
		return nil, &IngestionError{Source: source, Err: err}
	}

	rows, err := wb.GetRows(sheet)
	if err != nil {
		return nil, &IngestionError{Source: source, Err: fmt.Errorf("%w: %v", ErrUnreadable, err)}
	}
	if len(rows) == 0 {
		return nil, &IngestionError{Source: source, Err: ErrNoRows}
	}

	index, missing := columnIndex(rows[0])
	if len(missing) > 0 {
		return nil, &IngestionError{Source: source, MissingColumns: missing, Err: ErrMissingColumns}
	}

	records := make([]models.VoucherRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		if r.opts.MaxRecords > 0 && len(records) == r.opts.MaxRecords {
			return nil, &IngestionError{
				Source: source,
				Err:    fmt.Errorf("%w: limit is %d", ErrTooManyRows, r.opts.MaxRecords),
			}
		}
		records = append(records, toRecord(row, index))
	}
	if len(records) == 0 {
		return nil, &IngestionError{Source: source, Err: ErrNoRows}
	}

	r.logger.Info("Records ingested",
		zap.String("source", source),
		zap.String("sheet", sheet),
		zap.Int("records", len(records)))

	return records, nil
}

func (r *Reader) sheet(wb *excelize.File) (string, error) {
	sheets := wb.GetSheetList()
	if r.opts.SheetName == "" {
		if len(sheets) == 0 {
			return "", ErrNoRows
		}
		return sheets[0], nil
	}
	for _, s := range sheets {
		if s == r.opts.SheetName {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrSheetNotFound, r.opts.SheetName)
}

// columnIndex maps each required column to its position in header
func columnIndex(header []string) (map[string]int, []string) {
	index := make(map[string]int, len(RequiredColumns))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	return index, missing
}

func toRecord(row []string, index map[string]int) models.VoucherRecord {
	cell := func(col string) string {
		i := index[col]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	return models.VoucherRecord{
		OrderID:      cell(ColumnOrderID),
		GuestName:    cell(ColumnGuest),
		PropertyName: cell(ColumnProperty),
		ServiceName:  cell(ColumnService),
		CheckIn:      cell(ColumnCheckIn),
		CheckOut:     cell(ColumnCheckOut),
		Status:       cell(ColumnStatus),
	}
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Find returns the first record with the given order id
func Find(records []models.VoucherRecord, orderID string) (*models.VoucherRecord, bool) {
	orderID = strings.TrimSpace(orderID)
	for i := range records {
		if records[i].OrderID == orderID {
			return &records[i], true
		}
	}
	return nil, false
}

// OrderIDs lists the order ids in input order
func OrderIDs(records []models.VoucherRecord) []string {
	ids := make([]string, len(records))
	for i := range records {
		ids[i] = records[i].OrderID
	}
	return ids
}
