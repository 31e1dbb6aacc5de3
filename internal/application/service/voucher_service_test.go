package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tamima/evoucher/internal/models"
	"github.com/tamima/evoucher/internal/voucher"
)

type mockReader struct {
	records []models.VoucherRecord
	err     error
}

func (m *mockReader) Read(io.Reader, string) ([]models.VoucherRecord, error) {
	return m.records, m.err
}

type mockComposer struct {
	err      error
	lastLogo *voucher.LogoAsset
}

func (m *mockComposer) Compose(_ context.Context, record *models.VoucherRecord, logo *voucher.LogoAsset) (*voucher.ComposedDocument, error) {
	m.lastLogo = logo
	if m.err != nil {
		return nil, m.err
	}
	return &voucher.ComposedDocument{
		OrderID:  record.OrderID,
		FileName: voucher.SingleFileName(record.OrderID),
		Bytes:    []byte("%PDF " + record.OrderID),
		Warnings: []string{"composed " + record.OrderID},
	}, nil
}

type mockPackager struct {
	result *voucher.BatchResult
	err    error
}

func (m *mockPackager) PackageAll(context.Context, []models.VoucherRecord, *voucher.LogoAsset, voucher.ProgressFunc) (*voucher.BatchResult, error) {
	return m.result, m.err
}

type mockRunRepo struct {
	created []*models.BatchRun
	err     error
}

func (m *mockRunRepo) Create(_ context.Context, run *models.BatchRun) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, run)
	return nil
}

func (m *mockRunRepo) GetByID(_ context.Context, id string) (*models.BatchRun, error) {
	for _, r := range m.created {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, errors.New("not found")
}

func (m *mockRunRepo) ListRecent(context.Context, int) ([]*models.BatchRun, error) {
	return m.created, nil
}

type mockRenderer struct {
	got []byte
}

func (m *mockRenderer) RenderPNG(pdf []byte) ([]byte, error) {
	m.got = pdf
	return []byte("PNG"), nil
}

var testRecords = []models.VoucherRecord{
	{OrderID: "A1", GuestName: "Jane", Status: "Paid"},
	{OrderID: "A2", GuestName: "Ali", Status: "Paid"},
}

func writeLogo(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 20, 10))
	img.Set(1, 1, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(t.TempDir(), "logo.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestVoucherService_LoadRecords(t *testing.T) {
	svc := NewVoucherService(&mockReader{records: testRecords}, nil, nil, nil, nil, Options{}, zap.NewNop())
	records, err := svc.LoadRecords(strings.NewReader("x"), "orders.xlsx")
	require.NoError(t, err)
	assert.Len(t, records, 2)

	cause := errors.New("bad workbook")
	svc = NewVoucherService(&mockReader{err: cause}, nil, nil, nil, nil, Options{}, zap.NewNop())
	_, err = svc.LoadRecords(strings.NewReader("x"), "orders.xlsx")
	assert.ErrorIs(t, err, cause)
}

func TestVoucherService_AcquireLogo(t *testing.T) {
	logoPath := writeLogo(t)

	tests := []struct {
		name         string
		defaultPath  string
		req          func() LogoRequest
		wantLogo     bool
		wantWarnings int
	}{
		{
			name:        "default logo",
			defaultPath: logoPath,
			req:         func() LogoRequest { return LogoRequest{Mode: LogoDefault} },
			wantLogo:    true,
		},
		{
			name:         "default logo missing",
			defaultPath:  filepath.Join(t.TempDir(), "missing.png"),
			req:          func() LogoRequest { return LogoRequest{Mode: LogoDefault} },
			wantWarnings: 1,
		},
		{
			name:         "no default logo configured",
			req:          func() LogoRequest { return LogoRequest{Mode: LogoDefault} },
			wantWarnings: 1,
		},
		{
			name:        "no logo requested",
			defaultPath: logoPath,
			req:         func() LogoRequest { return LogoRequest{Mode: LogoNone} },
		},
		{
			name: "custom upload",
			req: func() LogoRequest {
				data, err := os.ReadFile(logoPath)
				require.NoError(t, err)
				return LogoRequest{Mode: LogoCustom, Upload: bytes.NewReader(data), Name: "brand.png"}
			},
			wantLogo: true,
		},
		{
			name: "custom upload undecodable",
			req: func() LogoRequest {
				return LogoRequest{Mode: LogoCustom, Upload: strings.NewReader("GIF89a?"), Name: "bad.gif"}
			},
			wantWarnings: 1,
		},
		{
			name:         "custom without upload",
			defaultPath:  logoPath,
			req:          func() LogoRequest { return LogoRequest{Mode: LogoCustom} },
			wantWarnings: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewVoucherService(nil, nil, nil, nil, nil, Options{DefaultLogoPath: tt.defaultPath}, zap.NewNop())

			logo, warnings := svc.AcquireLogo(tt.req())
			assert.Equal(t, tt.wantLogo, logo != nil)
			assert.Len(t, warnings, tt.wantWarnings)
		})
	}
}

func TestVoucherService_DefaultLogoIsCached(t *testing.T) {
	path := writeLogo(t)
	svc := NewVoucherService(nil, nil, nil, nil, nil, Options{DefaultLogoPath: path}, zap.NewNop())

	first, _ := svc.AcquireLogo(LogoRequest{Mode: LogoDefault})
	require.NotNil(t, first)
	require.NoError(t, os.Remove(path))

	second, warnings := svc.AcquireLogo(LogoRequest{Mode: LogoDefault})
	assert.Same(t, first, second)
	assert.Empty(t, warnings)
}

func TestParseLogoMode(t *testing.T) {
	for in, want := range map[string]LogoMode{"": LogoDefault, "Default": LogoDefault, "custom": LogoCustom, " NONE ": LogoNone} {
		got, err := ParseLogoMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseLogoMode("upload")
	assert.Error(t, err)
}

func TestVoucherService_GenerateSingle(t *testing.T) {
	ctx := context.Background()

	t.Run("known order", func(t *testing.T) {
		composer := &mockComposer{}
		svc := NewVoucherService(nil, composer, nil, nil, nil, Options{}, zap.NewNop())
		logo := voucher.NewLogoAsset(image.NewRGBA(image.Rect(0, 0, 1, 1)), "x")

		result, err := svc.GenerateSingle(ctx, testRecords, "A2", logo)
		require.NoError(t, err)
		assert.Equal(t, "A2", result.Document.OrderID)
		assert.Equal(t, "Voucher_A2.pdf", result.Document.FileName)
		assert.Equal(t, []string{"composed A2"}, result.Warnings)
		assert.Same(t, logo, composer.lastLogo)
	})

	t.Run("unknown order", func(t *testing.T) {
		svc := NewVoucherService(nil, &mockComposer{}, nil, nil, nil, Options{}, zap.NewNop())

		_, err := svc.GenerateSingle(ctx, testRecords, "Z9", nil)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("composition failure", func(t *testing.T) {
		compErr := &voucher.CompositionError{OrderID: "A1", Field: "guest_name", Err: voucher.ErrUnencodableText}
		svc := NewVoucherService(nil, &mockComposer{err: compErr}, nil, nil, nil, Options{}, zap.NewNop())

		_, err := svc.GenerateSingle(ctx, testRecords, "A1", nil)
		var target *voucher.CompositionError
		assert.ErrorAs(t, err, &target)
	})
}

func TestVoucherService_Preview(t *testing.T) {
	ctx := context.Background()

	renderer := &mockRenderer{}
	svc := NewVoucherService(nil, &mockComposer{}, nil, nil, renderer, Options{}, zap.NewNop())

	img, warnings, err := svc.Preview(ctx, testRecords, "A1", nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("PNG"), img)
	assert.Equal(t, []byte("%PDF A1"), renderer.got)
	assert.Len(t, warnings, 1)

	svc = NewVoucherService(nil, &mockComposer{}, nil, nil, nil, Options{}, zap.NewNop())
	_, _, err = svc.Preview(ctx, testRecords, "A1", nil)
	assert.ErrorIs(t, err, ErrPreviewDisabled)
}

func TestVoucherService_GenerateBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("records the run", func(t *testing.T) {
		result := &voucher.BatchResult{
			Total:     3,
			Completed: 3,
			Entries:   []voucher.ArchiveEntry{{Name: "a"}, {Name: "b"}},
			Failures:  []voucher.RecordFailure{{Index: 1, OrderID: "A2", GuestName: "Ali", Err: errors.New("broken")}},
			Warnings:  []string{"w"},
			Archive:   []byte("PK"),
		}
		runs := &mockRunRepo{}
		svc := NewVoucherService(nil, nil, &mockPackager{result: result}, runs, nil, Options{ArchiveName: "batch.zip"}, zap.NewNop())

		outcome, err := svc.GenerateBatch(ctx, testRecords, nil, "orders.xlsx", nil)
		require.NoError(t, err)
		assert.NotEmpty(t, outcome.RunID)
		assert.Equal(t, "batch.zip", outcome.ArchiveName)
		assert.Equal(t, []string{"w"}, outcome.Warnings)

		require.Len(t, runs.created, 1)
		run := runs.created[0]
		assert.Equal(t, outcome.RunID, run.ID)
		assert.Equal(t, "orders.xlsx", run.Source)
		assert.Equal(t, 2, run.Succeeded)
		assert.Equal(t, 1, run.Failed)
		assert.Equal(t, int64(2), run.ArchiveSize)
		assert.False(t, run.LogoUsed)
		require.Len(t, run.Failures, 1)
		assert.Equal(t, "broken", run.Failures[0].Reason)
		assert.Equal(t, models.RunStatusPartialFailure, run.Status())
	})

	t.Run("cancelled run is recorded and returned with the context error", func(t *testing.T) {
		result := &voucher.BatchResult{Total: 5, Completed: 2, Entries: []voucher.ArchiveEntry{{}, {}}, Cancelled: true, Skipped: 3}
		runs := &mockRunRepo{}
		svc := NewVoucherService(nil, nil, &mockPackager{result: result, err: context.Canceled}, runs, nil, Options{}, zap.NewNop())

		outcome, err := svc.GenerateBatch(ctx, testRecords, nil, "cli", nil)
		assert.ErrorIs(t, err, context.Canceled)
		require.NotNil(t, outcome)
		assert.Equal(t, voucher.DefaultArchiveName, outcome.ArchiveName)
		require.Len(t, runs.created, 1)
		assert.Equal(t, models.RunStatusCancelled, runs.created[0].Status())
	})

	t.Run("packaging failure aborts without a ledger entry", func(t *testing.T) {
		runs := &mockRunRepo{}
		pkgErr := &voucher.PackagingError{Op: "finalize archive", Err: errors.New("disk full")}
		svc := NewVoucherService(nil, nil, &mockPackager{result: &voucher.BatchResult{}, err: pkgErr}, runs, nil, Options{}, zap.NewNop())

		outcome, err := svc.GenerateBatch(ctx, testRecords, nil, "cli", nil)
		assert.Nil(t, outcome)
		assert.ErrorIs(t, err, voucher.ErrPackaging)
		assert.Empty(t, runs.created)
	})

	t.Run("ledger failure becomes a warning", func(t *testing.T) {
		runs := &mockRunRepo{err: errors.New("database locked")}
		svc := NewVoucherService(nil, nil, &mockPackager{result: &voucher.BatchResult{Total: 1, Entries: []voucher.ArchiveEntry{{}}}}, runs, nil, Options{}, zap.NewNop())

		outcome, err := svc.GenerateBatch(ctx, testRecords, nil, "cli", nil)
		require.NoError(t, err)
		assert.Contains(t, outcome.Warnings, "batch run could not be recorded")
	})

	t.Run("without ledger", func(t *testing.T) {
		svc := NewVoucherService(nil, nil, &mockPackager{result: &voucher.BatchResult{}}, nil, nil, Options{}, zap.NewNop())

		outcome, err := svc.GenerateBatch(ctx, nil, nil, "cli", nil)
		require.NoError(t, err)
		assert.NotEmpty(t, outcome.RunID)

		_, err = svc.ListRuns(ctx, 10)
		assert.ErrorIs(t, err, ErrLedgerDisabled)
		_, err = svc.GetRun(ctx, outcome.RunID)
		assert.ErrorIs(t, err, ErrLedgerDisabled)
	})
}
