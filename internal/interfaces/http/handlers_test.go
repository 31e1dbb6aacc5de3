package http

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/tamima/evoucher/internal/application/service"
	"github.com/tamima/evoucher/internal/ingest"
	"github.com/tamima/evoucher/internal/models"
	"github.com/tamima/evoucher/internal/repository"
	"github.com/tamima/evoucher/internal/voucher"
)

type memoryRuns struct {
	runs []*models.BatchRun
}

func (m *memoryRuns) Create(_ context.Context, run *models.BatchRun) error {
	m.runs = append(m.runs, run)
	return nil
}

func (m *memoryRuns) GetByID(_ context.Context, id string) (*models.BatchRun, error) {
	for _, r := range m.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", repository.ErrRunNotFound, id)
}

func (m *memoryRuns) ListRecent(_ context.Context, limit int) ([]*models.BatchRun, error) {
	if len(m.runs) > limit {
		return m.runs[:limit], nil
	}
	return m.runs, nil
}

type pngRenderer struct{}

func (pngRenderer) RenderPNG([]byte) ([]byte, error) {
	var buf bytes.Buffer
	err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4)))
	return buf.Bytes(), err
}

func newTestServer(t *testing.T, maxUploadMB int64) (*Server, *memoryRuns) {
	t.Helper()
	logger := zap.NewNop()
	composer, err := voucher.NewComposer(voucher.ComposerOptions{}, logger)
	require.NoError(t, err)
	runs := &memoryRuns{}
	svc := service.NewVoucherService(
		ingest.NewReader(ingest.Options{}, logger),
		composer,
		voucher.NewPackager(composer, voucher.PackagerOptions{Workers: 2}, logger),
		runs,
		pngRenderer{},
		service.Options{},
		logger,
	)

	cfg := DefaultServerConfig()
	cfg.Mode = gin.TestMode
	cfg.Version = "test"
	cfg.MaxUploadMB = maxUploadMB
	return NewServer(cfg, svc, logger), runs
}

func workbook(t *testing.T, rows ...[]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	header := []interface{}{"Order_ID", "Nama_Tamu", "Properti", "Layanan", "Check_in", "Check_out", "Status"}
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &header))
	for i, row := range rows {
		require.NoError(t, f.SetSheetRow("Sheet1", "A"+strconv.Itoa(i+2), &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func defaultWorkbook(t *testing.T) []byte {
	return workbook(t,
		[]interface{}{"A1", "Jane Doe", "Hilton Makkah", "Umrah Plus", "2024-07-01", "2024-07-09", "Paid"},
		[]interface{}{"A2", "王小明", "Swissotel", "Hajj", "2024-06-01", "2024-06-20", "Paid"},
		[]interface{}{"A3", "Ali/Hasan", "Swissotel", "Hajj", "2024-06-01", "2024-06-20", "Pending"},
	)
}

// upload builds a multipart request; files maps field name to content
func upload(t *testing.T, path string, files map[string][]byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for field, content := range files {
		fw, err := w.CreateFormFile(field, field+".bin")
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthCheck_Unhealthy(t *testing.T) {
	logger := zap.NewNop()
	cfg := DefaultServerConfig()
	cfg.Mode = gin.TestMode
	cfg.HealthCheck = func(context.Context) error { return errors.New("database: ping failed") }
	s := NewServer(cfg, nil, logger)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decode(t, rec)
	assert.False(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "unhealthy", data["status"])
	assert.Equal(t, "database: ping failed", data["error"])
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t, 0)

	rec := serve(s, httptest.NewRequest(http.MethodOptions, "/api/vouchers/batch", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), HeaderRunID)
}

func TestHealthCheck(t *testing.T) {
	s, _ := newTestServer(t, 0)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "test", resp.Data.(map[string]interface{})["version"])
}

func TestInspectRecords(t *testing.T) {
	s, _ := newTestServer(t, 0)

	t.Run("valid workbook", func(t *testing.T) {
		rec := serve(s, upload(t, "/api/records/inspect", map[string][]byte{"file": defaultWorkbook(t)}, nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Data RecordsResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 3, resp.Data.Count)
		assert.Equal(t, []string{"A1", "A2", "A3"}, resp.Data.OrderIDs)
		assert.Equal(t, "Hilton Makkah", resp.Data.Records[0].PropertyName)
	})

	t.Run("missing columns", func(t *testing.T) {
		f := excelize.NewFile()
		row := []interface{}{"Order_ID", "Status"}
		require.NoError(t, f.SetSheetRow("Sheet1", "A1", &row))
		buf, err := f.WriteToBuffer()
		require.NoError(t, err)

		rec := serve(s, upload(t, "/api/records/inspect", map[string][]byte{"file": buf.Bytes()}, nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decode(t, rec)
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Error, "Nama_Tamu")
	})

	t.Run("no file", func(t *testing.T) {
		rec := serve(s, upload(t, "/api/records/inspect", nil, map[string]string{"order_id": "A1"}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGenerateSingle(t *testing.T) {
	s, _ := newTestServer(t, 0)

	t.Run("pdf download", func(t *testing.T) {
		rec := serve(s, upload(t, "/api/vouchers/single",
			map[string][]byte{"file": defaultWorkbook(t)},
			map[string]string{"order_id": "A1", "logo_mode": "none"}))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, voucher.PDFMediaType, rec.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="Voucher_A1.pdf"`, rec.Header().Get("Content-Disposition"))
		assert.Equal(t, "0", rec.Header().Get(HeaderWarnings))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
	})

	t.Run("missing default logo is a warning", func(t *testing.T) {
		rec := serve(s, upload(t, "/api/vouchers/single",
			map[string][]byte{"file": defaultWorkbook(t)},
			map[string]string{"order_id": "A1"}))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "1", rec.Header().Get(HeaderWarnings))
	})

	t.Run("custom logo upload", func(t *testing.T) {
		var logo bytes.Buffer
		require.NoError(t, png.Encode(&logo, image.NewRGBA(image.Rect(0, 0, 50, 20))))

		rec := serve(s, upload(t, "/api/vouchers/single",
			map[string][]byte{"file": defaultWorkbook(t), "logo": logo.Bytes()},
			map[string]string{"order_id": "A1"}))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "0", rec.Header().Get(HeaderWarnings))
	})

	t.Run("unknown order id", func(t *testing.T) {
		rec := serve(s, upload(t, "/api/vouchers/single",
			map[string][]byte{"file": defaultWorkbook(t)},
			map[string]string{"order_id": "Z9", "logo_mode": "none"}))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("record that cannot be composed", func(t *testing.T) {
		rec := serve(s, upload(t, "/api/vouchers/single",
			map[string][]byte{"file": defaultWorkbook(t)},
			map[string]string{"order_id": "A2", "logo_mode": "none"}))

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, decode(t, rec).Error, "A2")
	})

	t.Run("order id required", func(t *testing.T) {
		rec := serve(s, upload(t, "/api/vouchers/single",
			map[string][]byte{"file": defaultWorkbook(t)}, nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid logo mode", func(t *testing.T) {
		rec := serve(s, upload(t, "/api/vouchers/single",
			map[string][]byte{"file": defaultWorkbook(t)},
			map[string]string{"order_id": "A1", "logo_mode": "fancy"}))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPreviewVoucher(t *testing.T) {
	s, _ := newTestServer(t, 0)

	rec := serve(s, upload(t, "/api/vouchers/preview",
		map[string][]byte{"file": defaultWorkbook(t)},
		map[string]string{"order_id": "A3", "logo_mode": "none"}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	_, err := png.DecodeConfig(bytes.NewReader(rec.Body.Bytes()))
	assert.NoError(t, err)
}

func TestGenerateBatch(t *testing.T) {
	s, runs := newTestServer(t, 0)

	rec := serve(s, upload(t, "/api/vouchers/batch",
		map[string][]byte{"file": defaultWorkbook(t)},
		map[string]string{"logo_mode": "none"}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, voucher.ZIPMediaType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Tamima_Vouchers.zip"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "2", rec.Header().Get(HeaderSucceeded))
	assert.Equal(t, "1", rec.Header().Get(HeaderFailed))

	runID := rec.Header().Get(HeaderRunID)
	require.NotEmpty(t, runID)
	require.Len(t, runs.runs, 1)
	assert.Equal(t, runID, runs.runs[0].ID)

	body := rec.Body.Bytes()
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"Voucher_A1_Jane Doe.pdf", "Voucher_A3_Ali_Hasan.pdf"}, names)

	t.Run("run is listed", func(t *testing.T) {
		rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/runs?limit=5", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Data []RunResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 1)
		assert.Equal(t, models.RunStatusPartialFailure, resp.Data[0].Status)
	})

	t.Run("run detail includes failures", func(t *testing.T) {
		rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/runs/"+runID, nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Data RunResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Data.Failures, 1)
		assert.Equal(t, "A2", resp.Data.Failures[0].OrderID)
	})

	t.Run("unknown run", func(t *testing.T) {
		rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/runs/missing", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid limit", func(t *testing.T) {
		rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/runs?limit=abc", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestUploadLimit(t *testing.T) {
	s, _ := newTestServer(t, 1)

	big := bytes.Repeat([]byte("x"), 2<<20)
	rec := serve(s, upload(t, "/api/records/inspect", map[string][]byte{"file": big}, nil))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
