package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/smt-log-parser/internal/application/service"
	"github.com/garyjia/smt-log-parser/internal/repository"
)

// Version is reported by the health check
var Version = "dev"

// Handlers contains all HTTP request handlers
type Handlers struct {
	traceService service.TraceService
	maxBodyBytes int64
	logger       Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(traceService service.TraceService, maxBodyBytes int64, logger Logger) *Handlers {
	return &Handlers{
		traceService: traceService,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
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
}

// ListRunsRequest represents query parameters for listing runs
type ListRunsRequest struct {
	Limit int `form:"limit"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   Version,
		},
	})
}

// AnalyzeTrace handles POST /api/traces. The trace is either the raw
// request body or the "file" part of a multipart form.
func (h *Handlers) AnalyzeTrace(c *gin.Context) {
	if h.maxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
	}

	source := c.Query("source")
	var body io.Reader = c.Request.Body

	if c.ContentType() == "multipart/form-data" {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			h.logger.Error("Invalid trace upload", "error", err)
			status := http.StatusBadRequest
			if isTooLarge(err) {
				status = http.StatusRequestEntityTooLarge
			}
			c.JSON(status, Response{
				Success: false,
				Error:   "multipart upload requires a file field",
			})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			h.logger.Error("Failed to open uploaded trace", "error", err)
			c.JSON(http.StatusInternalServerError, Response{
				Success: false,
				Error:   "failed to open uploaded trace",
			})
			return
		}
		defer file.Close()
		body = file
		if source == "" {
			source = fileHeader.Filename
		}
	}
	if source == "" {
		source = "upload"
	}

	report, err := h.traceService.Analyze(c.Request.Context(), source, body)
	if err != nil {
		h.logger.Error("Trace analysis failed", "source", source, "error", err)
		switch {
		case isTooLarge(err):
			c.JSON(http.StatusRequestEntityTooLarge, Response{
				Success: false,
				Data:    report,
				Error:   "trace exceeds the upload limit",
			})
		case report != nil:
			c.JSON(http.StatusUnprocessableEntity, Response{
				Success: false,
				Data:    report,
				Error:   err.Error(),
			})
		default:
			c.JSON(http.StatusInternalServerError, Response{
				Success: false,
				Error:   "failed to analyze trace",
			})
		}
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    report,
	})
}

// ListRuns handles GET /api/runs
func (h *Handlers) ListRuns(c *gin.Context) {
	var req ListRunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid query parameters",
		})
		return
	}

	// Set defaults
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}

	runs, err := h.traceService.ListRuns(c.Request.Context(), req.Limit)
	if err != nil {
		h.logger.Error("Failed to list runs", "error", err)
		h.storeError(c, err, "failed to retrieve runs")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    runs,
	})
}

// GetRun handles GET /api/runs/:id
func (h *Handlers) GetRun(c *gin.Context) {
	id, ok := h.runID(c)
	if !ok {
		return
	}

	run, err := h.traceService.GetRun(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get run", "id", id, "error", err)
		h.storeError(c, err, "failed to retrieve run")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    run,
	})
}

// GetRunDiagnostics handles GET /api/runs/:id/diagnostics
func (h *Handlers) GetRunDiagnostics(c *gin.Context) {
	id, ok := h.runID(c)
	if !ok {
		return
	}

	records, err := h.traceService.RunDiagnostics(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get run diagnostics", "id", id, "error", err)
		h.storeError(c, err, "failed to retrieve diagnostics")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    records,
	})
}

func (h *Handlers) runID(c *gin.Context) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		h.logger.Error("Invalid run ID", "id", idStr, "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid run ID",
		})
		return 0, false
	}
	return id, true
}

// storeError maps run store errors to responses
func (h *Handlers) storeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, Response{
			Success: false,
			Error:   "run not found",
		})
	case errors.Is(err, service.ErrStoreDisabled):
		c.JSON(http.StatusServiceUnavailable, Response{
			Success: false,
			Error:   err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   fallback,
		})
	}
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
