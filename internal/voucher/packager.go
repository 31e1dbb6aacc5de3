package voucher

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tamima/evoucher/internal/models"
)

// DefaultWorkers bounds how many vouchers are composed at the same time
const DefaultWorkers = 4

// ArchiveEntry is one voucher stored in the batch archive
type ArchiveEntry struct {
	Name    string
	OrderID string
	Size    int
}

// RecordFailure is one record that could not be composed
type RecordFailure struct {
	Index     int // position in the input
	OrderID   string
	GuestName string
	Err       error
}

// Progress is emitted after every record, successful or not
type Progress struct {
	Completed int
	Total     int
	OrderID   string
	GuestName string
	Err       error // non-nil when this record failed
}

// ProgressFunc observes batch progress. It is called from worker goroutines
// but never concurrently, and Completed increases by one on every call.
type ProgressFunc func(Progress)

// BatchResult is the outcome of one PackageAll run
type BatchResult struct {
	Total     int
	Completed int
	Entries   []ArchiveEntry  // completion order
	Failures  []RecordFailure // completion order
	Warnings  []string
	Archive   []byte
	Cancelled bool
	Skipped   int // records never dispatched because the run was abandoned
	Duration  time.Duration
}

// Succeeded returns the number of vouchers in the archive
func (r *BatchResult) Succeeded() int {
	return len(r.Entries)
}

// PackagerOptions tunes batch execution
type PackagerOptions struct {
	Workers int
}

// Packager composes a record set and collects the vouchers into a ZIP archive
type Packager struct {
	composer ComposerInterface
	workers  int
	logger   *zap.Logger
}

// NewPackager creates a new Packager
func NewPackager(composer ComposerInterface, opts PackagerOptions, logger *zap.Logger) *Packager {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Packager{
		composer: composer,
		workers:  workers,
		logger:   logger,
	}
}

// batchRun is the accumulator of one PackageAll call
type batchRun struct {
	mu         sync.Mutex
	zw         *zip.Writer
	result     *BatchResult
	onProgress ProgressFunc
	zipErr     error
}

// PackageAll composes every record and writes the successes into one ZIP.
//
// A record that fails is reported in BatchResult.Failures and the batch goes
// on. Only a failure of the archive itself is returned as a *PackagingError.
// When ctx is cancelled no further records are dispatched; the vouchers
// already composed are still archived and the partial result is returned
// together with the context error.
func (p *Packager) PackageAll(ctx context.Context, records []models.VoucherRecord, logo *LogoAsset, onProgress ProgressFunc) (*BatchResult, error) {
	start := time.Now()
	names := AssignEntryNames(records)

	var buf bytes.Buffer
	run := &batchRun{
		zw:         zip.NewWriter(&buf),
		result:     &BatchResult{Total: len(records)},
		onProgress: onProgress,
	}

	p.logger.Info("Starting voucher batch",
		zap.Int("total", len(records)),
		zap.Int("workers", p.workers),
		zap.Bool("logo", logo != nil))

	// Workers never return errors: per-record failures are data. The group
	// is only used to bound concurrency.
	var g errgroup.Group
	g.SetLimit(p.workers)

	dispatched := 0
	for i := range records {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			p.composeOne(ctx, run, i, &records[i], names[i], logo)
			return nil
		})
		dispatched++
	}
	_ = g.Wait()

	result := run.result
	result.Skipped += len(records) - dispatched
	if result.Skipped > 0 {
		result.Cancelled = true
	}

	if run.zipErr != nil {
		p.logger.Error("Voucher archive write failed", zap.Error(run.zipErr))
		return result, &PackagingError{Op: "write entry", Err: run.zipErr}
	}
	if err := run.zw.Close(); err != nil {
		p.logger.Error("Voucher archive finalize failed", zap.Error(err))
		return result, &PackagingError{Op: "finalize archive", Err: err}
	}
	result.Archive = buf.Bytes()
	result.Duration = time.Since(start)

	p.logger.Info("Voucher batch finished",
		zap.Int("total", result.Total),
		zap.Int("succeeded", result.Succeeded()),
		zap.Int("failed", len(result.Failures)),
		zap.Int("skipped", result.Skipped),
		zap.Int("archive_size", len(result.Archive)),
		zap.Duration("duration", result.Duration))

	if result.Cancelled {
		return result, ctx.Err()
	}
	return result, nil
}

// composeOne runs in a worker goroutine. A record whose worker slot frees
// up only after cancellation is counted as skipped, not failed.
func (p *Packager) composeOne(ctx context.Context, run *batchRun, index int, record *models.VoucherRecord, name string, logo *LogoAsset) {
	var doc *ComposedDocument
	err := ctx.Err()
	if err == nil {
		doc, err = p.composer.Compose(ctx, record, logo)
	}

	run.mu.Lock()
	defer run.mu.Unlock()

	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		run.result.Skipped++
		return
	}
	if err == nil {
		err = run.add(name, doc)
	}

	result := run.result
	if err != nil {
		p.logger.Warn("Voucher failed, continuing batch",
			zap.Int("index", index),
			zap.String("order_id", record.OrderID),
			zap.Error(err))
		result.Failures = append(result.Failures, RecordFailure{
			Index:     index,
			OrderID:   record.OrderID,
			GuestName: record.GuestName,
			Err:       err,
		})
	} else {
		result.Entries = append(result.Entries, ArchiveEntry{Name: name, OrderID: record.OrderID, Size: len(doc.Bytes)})
		result.Warnings = append(result.Warnings, doc.Warnings...)
	}

	result.Completed++
	if run.onProgress != nil {
		run.onProgress(Progress{
			Completed: result.Completed,
			Total:     result.Total,
			OrderID:   record.OrderID,
			GuestName: record.GuestName,
			Err:       err,
		})
	}
}

// add writes one voucher into the archive; the caller holds run.mu.
// After the first container error the archive is unusable, so later
// vouchers are not written either.
func (r *batchRun) add(name string, doc *ComposedDocument) error {
	if r.zipErr != nil {
		return fmt.Errorf("%w: archive already failed", ErrPackaging)
	}
	w, err := r.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		r.zipErr = err
		return fmt.Errorf("%w: %v", ErrPackaging, err)
	}
	if _, err := w.Write(doc.Bytes); err != nil {
		r.zipErr = err
		return fmt.Errorf("%w: %v", ErrPackaging, err)
	}
	return nil
}
