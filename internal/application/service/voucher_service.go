package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tamima/evoucher/internal/application/port"
	"github.com/tamima/evoucher/internal/ingest"
	"github.com/tamima/evoucher/internal/models"
	"github.com/tamima/evoucher/internal/voucher"
)

// Options configures a VoucherService
type Options struct {
	DefaultLogoPath string
	ArchiveName     string
}

// SingleResult is one generated voucher
type SingleResult struct {
	Document *voucher.ComposedDocument
	Warnings []string
}

// BatchOutcome is one generated archive together with its ledger entry
type BatchOutcome struct {
	RunID       string
	ArchiveName string
	Result      *voucher.BatchResult
	Warnings    []string
}

// VoucherService runs the generation use cases shared by the HTTP API and
// the CLI
type VoucherService struct {
	reader   port.RecordReader
	composer voucher.ComposerInterface
	packager voucher.PackagerInterface
	runs     port.RunRepository
	renderer port.PreviewRenderer
	opts     Options
	logger   *zap.Logger

	logoMu sync.Mutex
	logo   *voucher.LogoAsset
}

// NewVoucherService creates a new VoucherService. runs and renderer may be
// nil, which disables the ledger and previews.
func NewVoucherService(
	reader port.RecordReader,
	composer voucher.ComposerInterface,
	packager voucher.PackagerInterface,
	runs port.RunRepository,
	renderer port.PreviewRenderer,
	opts Options,
	logger *zap.Logger,
) *VoucherService {
	if opts.ArchiveName == "" {
		opts.ArchiveName = voucher.DefaultArchiveName
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VoucherService{
		reader:   reader,
		composer: composer,
		packager: packager,
		runs:     runs,
		renderer: renderer,
		opts:     opts,
		logger:   logger,
	}
}

// LoadRecords parses an uploaded workbook
func (s *VoucherService) LoadRecords(src io.Reader, source string) ([]models.VoucherRecord, error) {
	records, err := s.reader.Read(src, source)
	if err != nil {
		s.logger.Warn("Workbook rejected", zap.String("source", source), zap.Error(err))
		return nil, err
	}
	return records, nil
}

// GenerateSingle composes the voucher of one order
func (s *VoucherService) GenerateSingle(ctx context.Context, records []models.VoucherRecord, orderID string, logo *voucher.LogoAsset) (*SingleResult, error) {
	record, ok := ingest.Find(records, orderID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}

	doc, err := s.composer.Compose(ctx, record, logo)
	if err != nil {
		s.logger.Error("Failed to compose voucher",
			zap.String("order_id", record.OrderID),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Voucher generated",
		zap.String("order_id", doc.OrderID),
		zap.Int("size", len(doc.Bytes)))

	return &SingleResult{Document: doc, Warnings: doc.Warnings}, nil
}

// Preview composes the voucher of one order and renders it as PNG
func (s *VoucherService) Preview(ctx context.Context, records []models.VoucherRecord, orderID string, logo *voucher.LogoAsset) ([]byte, []string, error) {
	if s.renderer == nil {
		return nil, nil, ErrPreviewDisabled
	}
	single, err := s.GenerateSingle(ctx, records, orderID, logo)
	if err != nil {
		return nil, nil, err
	}
	img, err := s.renderer.RenderPNG(single.Document.Bytes)
	if err != nil {
		return nil, single.Warnings, fmt.Errorf("failed to render preview: %w", err)
	}
	return img, single.Warnings, nil
}

// GenerateBatch composes every record into one archive and records the run.
// A cancelled run still returns its partial outcome together with the
// context error.
func (s *VoucherService) GenerateBatch(ctx context.Context, records []models.VoucherRecord, logo *voucher.LogoAsset, source string, onProgress voucher.ProgressFunc) (*BatchOutcome, error) {
	started := time.Now()

	result, err := s.packager.PackageAll(ctx, records, logo, onProgress)
	var pkgErr *voucher.PackagingError
	if errors.As(err, &pkgErr) {
		s.logger.Error("Voucher batch aborted", zap.String("source", source), zap.Error(err))
		return nil, err
	}
	if result == nil {
		return nil, err
	}

	outcome := &BatchOutcome{
		ArchiveName: s.opts.ArchiveName,
		Result:      result,
		Warnings:    append([]string(nil), result.Warnings...),
	}

	run := newBatchRun(source, started, result, logo != nil)
	if s.runs != nil {
		// the ledger write must not be lost when the request context is gone
		if lerr := s.runs.Create(context.WithoutCancel(ctx), run); lerr != nil {
			s.logger.Error("Failed to record batch run", zap.Error(lerr))
			outcome.Warnings = append(outcome.Warnings, "batch run could not be recorded")
		}
	}
	outcome.RunID = run.ID

	s.logger.Info("Voucher batch generated",
		zap.String("run_id", run.ID),
		zap.String("source", source),
		zap.String("status", run.Status()),
		zap.Int("succeeded", run.Succeeded),
		zap.Int("failed", run.Failed))

	return outcome, err
}

// ListRuns returns the most recent batch runs
func (s *VoucherService) ListRuns(ctx context.Context, limit int) ([]*models.BatchRun, error) {
	if s.runs == nil {
		return nil, ErrLedgerDisabled
	}
	return s.runs.ListRecent(ctx, limit)
}

// GetRun returns one batch run with its failures
func (s *VoucherService) GetRun(ctx context.Context, id string) (*models.BatchRun, error) {
	if s.runs == nil {
		return nil, ErrLedgerDisabled
	}
	return s.runs.GetByID(ctx, id)
}

func newBatchRun(source string, started time.Time, result *voucher.BatchResult, logoUsed bool) *models.BatchRun {
	run := &models.BatchRun{
		ID:          uuid.NewString(),
		Source:      source,
		Total:       result.Total,
		Succeeded:   result.Succeeded(),
		Failed:      len(result.Failures),
		Skipped:     result.Skipped,
		Cancelled:   result.Cancelled,
		ArchiveSize: int64(len(result.Archive)),
		LogoUsed:    logoUsed,
		StartedAt:   started,
		FinishedAt:  time.Now(),
	}
	for _, f := range result.Failures {
		run.Failures = append(run.Failures, models.BatchRunFailure{
			OrderID:   f.OrderID,
			GuestName: f.GuestName,
			Reason:    f.Err.Error(),
		})
	}
	return run
}
