package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/smt-log-parser/internal/application/service"
	"github.com/garyjia/smt-log-parser/internal/models"
	"github.com/garyjia/smt-log-parser/internal/repository"
	"github.com/garyjia/smt-log-parser/pkg/database"
)

const trace = "[tool-version] Z3 4.12.1\n[mk-app] #1 f #9\n[push] 1\n[eof]\n"

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newServer(t *testing.T, withStore bool, maxBody int64) *Server {
	t.Helper()
	logger := zap.NewNop()

	var svc service.TraceService
	if withStore {
		db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "runs.db")}, logger)
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		require.NoError(t, database.NewMigrator(db, logger).RunMigrations())
		svc = service.NewTraceService(
			repository.NewRunRepository(db.DB, logger),
			repository.NewDiagnosticRepository(db.DB, logger),
			service.Options{PersistDiagnostics: true},
			logger,
		)
	} else {
		svc = service.NewTraceService(nil, nil, service.Options{}, logger)
	}

	cfg := DefaultServerConfig()
	cfg.MaxBodyBytes = maxBody
	return NewServer(cfg, svc, nopLogger{})
}

func do(t *testing.T, s *Server, req *http.Request) (int, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestHealthCheck(t *testing.T) {
	s := newServer(t, false, 0)

	code, env := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(env.Data, &health))
	assert.Equal(t, "healthy", health.Status)
}

func TestAnalyzeTrace_RawBody(t *testing.T) {
	s := newServer(t, false, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/traces?source=run.log", strings.NewReader(trace))
	code, env := do(t, s, req)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	var report service.Report
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, "run.log", report.Source)
	assert.Equal(t, models.RunStatusCompleted, report.Status)
	assert.Equal(t, 4, report.Lines)
	assert.Equal(t, 1, report.DiagnosticCount)
	assert.Equal(t, "4.12.1", report.Summary.Version.Version)
	assert.Nil(t, report.Run)
}

func TestAnalyzeTrace_Multipart(t *testing.T) {
	s := newServer(t, false, 0)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "z3.log")
	require.NoError(t, err)
	_, err = part.Write([]byte(trace))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/traces", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	code, env := do(t, s, req)
	require.Equal(t, http.StatusOK, code)

	var report service.Report
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, "z3.log", report.Source)
	assert.True(t, report.Terminated)
}

func TestAnalyzeTrace_MultipartWithoutFile(t *testing.T) {
	s := newServer(t, false, 0)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "nothing here"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/traces", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	code, env := do(t, s, req)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)
}

func TestAnalyzeTrace_TooLarge(t *testing.T) {
	s := newServer(t, false, 16)

	req := httptest.NewRequest(http.MethodPost, "/api/traces", strings.NewReader(strings.Repeat("[push] 1\n", 10)))
	code, env := do(t, s, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)
	assert.False(t, env.Success)
}

func TestRuns_StoreDisabled(t *testing.T) {
	s := newServer(t, false, 0)

	for _, path := range []string{"/api/runs", "/api/runs/1", "/api/runs/1/diagnostics"} {
		code, env := do(t, s, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusServiceUnavailable, code, path)
		assert.Equal(t, service.ErrStoreDisabled.Error(), env.Error, path)
	}
}

func TestRuns_WithStore(t *testing.T) {
	s := newServer(t, true, 0)

	code, env := do(t, s, httptest.NewRequest(http.MethodPost, "/api/traces?source=a.log", strings.NewReader(trace)))
	require.Equal(t, http.StatusOK, code)
	var report service.Report
	require.NoError(t, json.Unmarshal(env.Data, &report))
	require.NotNil(t, report.Run)
	id := report.Run.ID

	t.Run("get", func(t *testing.T) {
		code, env := do(t, s, httptest.NewRequest(http.MethodGet, "/api/runs/"+itoa(id), nil))
		require.Equal(t, http.StatusOK, code)
		var run models.TraceRun
		require.NoError(t, json.Unmarshal(env.Data, &run))
		assert.Equal(t, "a.log", run.Source)
		assert.Equal(t, models.RunStatusCompleted, run.Status)
		assert.Equal(t, 1, run.Diagnostics)
	})

	t.Run("list", func(t *testing.T) {
		code, env := do(t, s, httptest.NewRequest(http.MethodGet, "/api/runs?limit=5", nil))
		require.Equal(t, http.StatusOK, code)
		var runs []models.TraceRun
		require.NoError(t, json.Unmarshal(env.Data, &runs))
		require.Len(t, runs, 1)
	})

	t.Run("diagnostics", func(t *testing.T) {
		code, env := do(t, s, httptest.NewRequest(http.MethodGet, "/api/runs/"+itoa(id)+"/diagnostics", nil))
		require.Equal(t, http.StatusOK, code)
		var records []models.DiagnosticRecord
		require.NoError(t, json.Unmarshal(env.Data, &records))
		require.Len(t, records, 1)
		assert.Equal(t, 2, records[0].LineNo)
		assert.Equal(t, "[mk-app]", records[0].Opcode)
	})

	t.Run("unknown run", func(t *testing.T) {
		code, _ := do(t, s, httptest.NewRequest(http.MethodGet, "/api/runs/999", nil))
		assert.Equal(t, http.StatusNotFound, code)
		code, _ = do(t, s, httptest.NewRequest(http.MethodGet, "/api/runs/999/diagnostics", nil))
		assert.Equal(t, http.StatusNotFound, code)
	})

	t.Run("bad id", func(t *testing.T) {
		code, env := do(t, s, httptest.NewRequest(http.MethodGet, "/api/runs/abc", nil))
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "invalid run ID", env.Error)
	})

	t.Run("bad limit", func(t *testing.T) {
		code, _ := do(t, s, httptest.NewRequest(http.MethodGet, "/api/runs?limit=many", nil))
		assert.Equal(t, http.StatusBadRequest, code)
	})
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
