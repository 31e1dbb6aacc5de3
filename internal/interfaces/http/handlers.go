package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tamima/evoucher/internal/application/service"
	"github.com/tamima/evoucher/internal/ingest"
	"github.com/tamima/evoucher/internal/models"
	"github.com/tamima/evoucher/internal/repository"
	"github.com/tamima/evoucher/internal/voucher"
	"github.com/tamima/evoucher/pkg/utils"
)

// Response headers of generation endpoints
const (
	HeaderRunID     = "X-Batch-Run-ID"
	HeaderSucceeded = "X-Vouchers-Succeeded"
	HeaderFailed    = "X-Vouchers-Failed"
	HeaderWarnings  = "X-Voucher-Warnings"
)

// VoucherService is the part of the application service used by the API
type VoucherService interface {
	LoadRecords(src io.Reader, source string) ([]models.VoucherRecord, error)
	AcquireLogo(req service.LogoRequest) (*voucher.LogoAsset, []string)
	GenerateSingle(ctx context.Context, records []models.VoucherRecord, orderID string, logo *voucher.LogoAsset) (*service.SingleResult, error)
	Preview(ctx context.Context, records []models.VoucherRecord, orderID string, logo *voucher.LogoAsset) ([]byte, []string, error)
	GenerateBatch(ctx context.Context, records []models.VoucherRecord, logo *voucher.LogoAsset, source string, onProgress voucher.ProgressFunc) (*service.BatchOutcome, error)
	ListRuns(ctx context.Context, limit int) ([]*models.BatchRun, error)
	GetRun(ctx context.Context, id string) (*models.BatchRun, error)
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	service     VoucherService
	version     string
	healthCheck func(ctx context.Context) error
	logger      *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(svc VoucherService, version string, logger *zap.Logger) *Handlers {
	return &Handlers{
		service: svc,
		version: version,
		logger:  logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Error     string `json:"error,omitempty"`
}

// RecordsResponse lists the records parsed from a workbook
type RecordsResponse struct {
	Count    int                    `json:"count"`
	OrderIDs []string               `json:"order_ids"`
	Records  []models.VoucherRecord `json:"records"`
}

// RunResponse represents a batch run in API responses
type RunResponse struct {
	ID          string                   `json:"id"`
	Source      string                   `json:"source"`
	Status      string                   `json:"status"`
	Total       int                      `json:"total"`
	Succeeded   int                      `json:"succeeded"`
	Failed      int                      `json:"failed"`
	Skipped     int                      `json:"skipped"`
	ArchiveSize int64                    `json:"archive_size"`
	LogoUsed    bool                     `json:"logo_used"`
	StartedAt   string                   `json:"started_at"`
	FinishedAt  string                   `json:"finished_at"`
	Failures    []models.BatchRunFailure `json:"failures,omitempty"`
}

// ListRunsRequest represents query parameters for listing runs
type ListRunsRequest struct {
	Limit int `form:"limit"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.version,
	}
	if h.healthCheck != nil {
		if err := h.healthCheck(c.Request.Context()); err != nil {
			h.logger.Warn("Health check failed", zap.Error(err))
			resp.Status = "unhealthy"
			resp.Error = err.Error()
			c.JSON(http.StatusServiceUnavailable, Response{Success: false, Data: resp})
			return
		}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: resp})
}

// InspectRecords handles POST /api/records/inspect
func (h *Handlers) InspectRecords(c *gin.Context) {
	records, _, ok := h.loadRecords(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: RecordsResponse{
			Count:    len(records),
			OrderIDs: ingest.OrderIDs(records),
			Records:  records,
		},
	})
}

// GenerateSingle handles POST /api/vouchers/single
func (h *Handlers) GenerateSingle(c *gin.Context) {
	records, _, ok := h.loadRecords(c)
	if !ok {
		return
	}
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}
	logo, warnings, ok := h.acquireLogo(c)
	if !ok {
		return
	}

	result, err := h.service.GenerateSingle(c.Request.Context(), records, orderID, logo)
	if err != nil {
		h.fail(c, err)
		return
	}

	warnings = append(warnings, result.Warnings...)
	c.Header(HeaderWarnings, strconv.Itoa(len(warnings)))
	c.Header("Content-Disposition", attachment(result.Document.FileName))
	c.Data(http.StatusOK, voucher.PDFMediaType, result.Document.Bytes)
}

// PreviewVoucher handles POST /api/vouchers/preview
func (h *Handlers) PreviewVoucher(c *gin.Context) {
	records, _, ok := h.loadRecords(c)
	if !ok {
		return
	}
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}
	logo, warnings, ok := h.acquireLogo(c)
	if !ok {
		return
	}

	img, docWarnings, err := h.service.Preview(c.Request.Context(), records, orderID, logo)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header(HeaderWarnings, strconv.Itoa(len(warnings)+len(docWarnings)))
	c.Data(http.StatusOK, "image/png", img)
}

// GenerateBatch handles POST /api/vouchers/batch
func (h *Handlers) GenerateBatch(c *gin.Context) {
	records, source, ok := h.loadRecords(c)
	if !ok {
		return
	}
	logo, warnings, ok := h.acquireLogo(c)
	if !ok {
		return
	}

	onProgress := func(p voucher.Progress) {
		h.logger.Debug("Batch progress",
			zap.Int("completed", p.Completed),
			zap.Int("total", p.Total),
			zap.String("order_id", p.OrderID),
			zap.Bool("failed", p.Err != nil))
	}

	outcome, err := h.service.GenerateBatch(c.Request.Context(), records, logo, source, onProgress)
	if err != nil {
		if outcome != nil && errors.Is(err, context.Canceled) {
			// client went away, nobody is left to receive the archive
			h.logger.Warn("Batch request cancelled",
				zap.String("run_id", outcome.RunID),
				zap.Int("skipped", outcome.Result.Skipped))
			c.Status(499)
			return
		}
		h.fail(c, err)
		return
	}

	result := outcome.Result
	warnings = append(warnings, outcome.Warnings...)
	c.Header(HeaderRunID, outcome.RunID)
	c.Header(HeaderSucceeded, strconv.Itoa(result.Succeeded()))
	c.Header(HeaderFailed, strconv.Itoa(len(result.Failures)))
	c.Header(HeaderWarnings, strconv.Itoa(len(warnings)))
	c.Header("Content-Disposition", attachment(outcome.ArchiveName))
	c.Data(http.StatusOK, voucher.ZIPMediaType, result.Archive)
}

// ListRuns handles GET /api/runs
func (h *Handlers) ListRuns(c *gin.Context) {
	var req ListRunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Invalid query parameters", zap.Error(err))
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid query parameters",
		})
		return
	}

	// Set defaults
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = repository.DefaultListLimit
	}

	runs, err := h.service.ListRuns(c.Request.Context(), req.Limit)
	if err != nil {
		h.fail(c, err)
		return
	}

	data := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		data = append(data, toRunResponse(run))
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// GetRun handles GET /api/runs/:id
func (h *Handlers) GetRun(c *gin.Context) {
	run, err := h.service.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: toRunResponse(run)})
}

// loadRecords reads the uploaded workbook in the "file" form field
func (h *Handlers) loadRecords(c *gin.Context) ([]models.VoucherRecord, string, bool) {
	header, err := c.FormFile("file")
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.fail(c, err)
		return nil, "", false
	}
	if err != nil {
		h.badRequest(c, fmt.Sprintf("workbook upload is required in field \"file\": %v", err))
		return nil, "", false
	}
	f, err := header.Open()
	if err != nil {
		h.badRequest(c, fmt.Sprintf("failed to read upload: %v", err))
		return nil, "", false
	}
	defer f.Close()

	records, err := h.service.LoadRecords(f, header.Filename)
	if err != nil {
		h.fail(c, err)
		return nil, "", false
	}
	return records, header.Filename, true
}

func (h *Handlers) orderID(c *gin.Context) (string, bool) {
	id := utils.SanitizeString(c.PostForm("order_id"))
	if id == "" {
		h.badRequest(c, "order_id is required")
		return "", false
	}
	return id, true
}

// acquireLogo resolves logo_mode and the optional "logo" upload. An upload
// without an explicit mode selects the custom mode.
func (h *Handlers) acquireLogo(c *gin.Context) (*voucher.LogoAsset, []string, bool) {
	var upload multipart.File
	var name string
	if header, err := c.FormFile("logo"); err == nil {
		f, err := header.Open()
		if err != nil {
			h.badRequest(c, fmt.Sprintf("failed to read logo upload: %v", err))
			return nil, nil, false
		}
		defer f.Close()
		upload, name = f, header.Filename
	}

	rawMode := c.PostForm("logo_mode")
	if rawMode == "" && upload != nil {
		rawMode = string(service.LogoCustom)
	}
	mode, err := service.ParseLogoMode(rawMode)
	if err != nil {
		h.badRequest(c, err.Error())
		return nil, nil, false
	}

	req := service.LogoRequest{Mode: mode, Name: name}
	if upload != nil {
		req.Upload = upload
	}
	logo, warnings := h.service.AcquireLogo(req)
	return logo, warnings, true
}

func (h *Handlers) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

// fail maps service errors to status codes
func (h *Handlers) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	} else {
		h.logger.Warn("Request rejected", zap.String("path", c.Request.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, Response{Success: false, Error: err.Error()})
}

func statusFor(err error) int {
	var (
		ingErr  *ingest.IngestionError
		compErr *voucher.CompositionError
		pkgErr  *voucher.PackagingError
		bodyErr *http.MaxBytesError
	)
	switch {
	case errors.As(err, &bodyErr):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &ingErr):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrOrderNotFound), errors.Is(err, repository.ErrRunNotFound):
		return http.StatusNotFound
	case errors.As(err, &compErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &pkgErr):
		return http.StatusInternalServerError
	case errors.Is(err, service.ErrLedgerDisabled), errors.Is(err, service.ErrPreviewDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func attachment(name string) string {
	return fmt.Sprintf("attachment; filename=%q", name)
}

func toRunResponse(run *models.BatchRun) RunResponse {
	return RunResponse{
		ID:          run.ID,
		Source:      run.Source,
		Status:      run.Status(),
		Total:       run.Total,
		Succeeded:   run.Succeeded,
		Failed:      run.Failed,
		Skipped:     run.Skipped,
		ArchiveSize: run.ArchiveSize,
		LogoUsed:    run.LogoUsed,
		StartedAt:   run.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt:  run.FinishedAt.UTC().Format(time.RFC3339),
		Failures:    run.Failures,
	}
}
