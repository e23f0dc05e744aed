package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/orderimport/internal/config"
	"github.com/JonMunkholm/orderimport/internal/core"
	"github.com/JonMunkholm/orderimport/internal/store/memory"
)

const header = "OrderDate,CustomerName,CustomerEmail,ProductName,CategoryName,Quantity,UnitPrice,Status"

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Upload.MaxFileSize = 1 << 20
	cfg.Upload.MaxConcurrent = 2
	cfg.Upload.MaxWaitTime = time.Second
	cfg.Upload.Timeout = time.Minute
	cfg.Server.RequestTimeout = 30 * time.Second
	cfg.Security.TenantHeader = "X-Tenant-ID"
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	svc := core.NewService(memory.New(), cfg)
	return NewServer(svc, cfg)
}

func multipartBody(t *testing.T, name, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if name != "" {
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("note", "no file here"))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func do(t *testing.T, s *Server, method, path, tenant string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, body)
		req.Header.Set("Content-Type", contentType)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if tenant != "" {
		req.Header.Set("X-Tenant-ID", tenant)
	}
	req.Header.Set("User-Agent", "web-test")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func upload(t *testing.T, s *Server, tenant, name, content string) (*httptest.ResponseRecorder, core.ImportResult) {
	t.Helper()
	body, ct := multipartBody(t, name, content)
	rec := do(t, s, http.MethodPost, "/api/import/orders", tenant, body, ct)
	var res core.ImportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res), rec.Body.String())
	return rec, res
}

const validCSV = header + "\n2024-03-15 10:30,Ada,ada@example.com,Laptop,Electronics,2,100.00,Pending\n"

func TestImportEndpoint(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec, res := upload(t, s, "tenant-a", "orders.csv", validCSV)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.OrdersCount)
	assert.Equal(t, 1, res.ItemsCount)
	require.NotNil(t, res.SessionID)
	assert.Empty(t, res.Errors)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec, res = upload(t, s, "tenant-a", "again.csv", validCSV)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "File", res.Errors[0].Column)
	assert.Contains(t, res.Errors[0].Message, "already been imported")
}

func TestImportEndpointRejections(t *testing.T) {
	s := newTestServer(t, testConfig())

	t.Run("unsupported format", func(t *testing.T) {
		rec, res := upload(t, s, "tenant-a", "orders.txt", validCSV)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, "File format '.txt' is not supported. Supported formats: .csv, .xlsx", res.Errors[0].Message)
	})

	t.Run("no file field", func(t *testing.T) {
		rec, res := upload(t, s, "tenant-a", "", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, []core.ValidationError{{Row: 0, Column: "File", Message: "No file uploaded"}}, res.Errors)
	})

	t.Run("empty file", func(t *testing.T) {
		rec, res := upload(t, s, "tenant-a", "orders.csv", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, "No file uploaded", res.Errors[0].Message)
	})

	t.Run("not multipart", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/api/import/orders", "tenant-a", bytes.NewBufferString("{}"), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "No file uploaded")
	})

	t.Run("missing tenant", func(t *testing.T) {
		body, ct := multipartBody(t, "orders.csv", validCSV)
		rec := do(t, s, http.MethodPost, "/api/import/orders", "", body, ct)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "AUTH001")
	})

	t.Run("row errors", func(t *testing.T) {
		bad := header + "\n2024-03-15,Ada,not-an-email,Laptop,Electronics,0,10,Pending\n"
		rec, res := upload(t, s, "tenant-a", "bad.csv", bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, res.Success)
		assert.NotEmpty(t, res.Errors)
		assert.Nil(t, res.SessionID)
	})
}

func TestImportEndpointTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.MaxFileSize = 64
	s := newTestServer(t, cfg)

	body, ct := multipartBody(t, "orders.csv", validCSV+strings.Repeat("x", 256))
	rec := do(t, s, http.MethodPost, "/api/import/orders", "tenant-a", body, ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "FILE001", resp.Code)
}

// unreachableStore fails every session lookup as if the database were down.
type unreachableStore struct{ core.Store }

type unreachableUnit struct{ core.UnitOfWork }

type unreachableSessions struct{ core.SessionRepository }

func (s unreachableStore) Begin(ctx context.Context) (core.UnitOfWork, error) {
	uow, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return unreachableUnit{uow}, nil
}

func (u unreachableUnit) Sessions() core.SessionRepository {
	return unreachableSessions{u.UnitOfWork.Sessions()}
}

func (unreachableSessions) FindActive(context.Context, string, string) (core.ImportSession, error) {
	return core.ImportSession{}, errors.New("dial tcp 127.0.0.1:5432: connection refused")
}

func TestImportEndpointStorageFailure(t *testing.T) {
	cfg := testConfig()
	s := NewServer(core.NewService(unreachableStore{memory.New()}, cfg), cfg)

	rec, res := upload(t, s, "tenant-a", "orders.csv", validCSV)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, res.Success)
	assert.Nil(t, res.SessionID)
	assert.Equal(t, []core.ValidationError{{
		Row:     0,
		Column:  "Database",
		Message: "Unexpected error during hash: Unable to connect to database",
	}}, res.Errors)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestHistoryAndRollback(t *testing.T) {
	s := newTestServer(t, testConfig())

	_, res := upload(t, s, "tenant-a", "orders.csv", validCSV)
	require.True(t, res.Success)

	rec := do(t, s, http.MethodGet, "/api/import/history", "tenant-a", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history []core.ImportSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, *res.SessionID, history[0].ID)
	assert.False(t, history[0].RolledBack)

	rec = do(t, s, http.MethodGet, "/api/import/history", "tenant-b", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	path := "/api/import/rollback/" + res.SessionID.String()

	rec = do(t, s, http.MethodPost, path, "tenant-b", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "other tenant sees 404")

	// Audit timestamps have wall-clock resolution; keep the order unambiguous.
	time.Sleep(5 * time.Millisecond)
	rec = do(t, s, http.MethodPost, path, "tenant-a", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var session core.ImportSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.True(t, session.RolledBack)

	rec = do(t, s, http.MethodPost, "/api/import/rollback/not-a-uuid", "tenant-a", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "IMP002", resp.Code)

	rec = do(t, s, http.MethodGet, "/api/audit-log", "tenant-a", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var logs []core.AuditLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	require.Len(t, logs, 2)
	assert.Equal(t, core.ActionRolledBack, logs[0].Action, "newest first")
	assert.Equal(t, "web-test", logs[0].UserAgent)
	assert.Equal(t, "192.0.2.1", logs[0].IPAddress)

	rec = do(t, s, http.MethodGet, "/api/audit-log?limit=1", "tenant-a", nil, "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	assert.Len(t, logs, 1)
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	s := newTestServer(t, cfg)

	rec := do(t, s, http.MethodGet, "/api/import/history", "tenant-a", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/import/history", nil)
	req.Header.Set("X-Tenant-ID", "tenant-a")
	req.Header.Set("X-API-Key", "secret")
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestUploadRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate.Enabled = true
	cfg.Rate.RequestsPerMinute = 100
	cfg.Rate.UploadLimit = 1
	s := newTestServer(t, cfg)

	rec, _ := upload(t, s, "tenant-a", "orders.csv", validCSV)
	assert.Equal(t, http.StatusOK, rec.Code)

	body, ct := multipartBody(t, "second.csv", validCSV)
	rec = do(t, s, http.MethodPost, "/api/import/orders", "tenant-a", body, ct)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "RATE001")

	rec = do(t, s, http.MethodGet, "/api/import/history", "tenant-a", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code, "reads use the general limit")
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := do(t, s, http.MethodGet, "/health", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"maxConcurrent":2`)

	_, res := upload(t, s, "tenant-a", "orders.csv", validCSV)
	require.True(t, res.Success)

	rec = do(t, s, http.MethodGet, "/metrics", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "orderimport_")
}
