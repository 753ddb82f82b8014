package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		apiError *APIError
		want     string
	}{
		{
			name: "simple message",
			apiError: &APIError{
				StatusCode: http.StatusBadRequest,
				ErrorCode:  "INVALID_REQUEST",
				Message:    "Invalid request format",
			},
			want: "Invalid request format",
		},
		{
			name: "empty message",
			apiError: &APIError{
				StatusCode: http.StatusInternalServerError,
				ErrorCode:  "INTERNAL_ERROR",
				Message:    "",
			},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.apiError.Error()
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew(t *testing.T) {
	got := New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")

	want := &APIError{
		StatusCode: http.StatusBadRequest,
		ErrorCode:  "INVALID_REQUEST",
		Message:    "Invalid request format",
		Details:    nil,
	}
	assert.Equal(t, want, got)
}

func TestNewWithDetails(t *testing.T) {
	got := NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", "field 'variant' is unknown")

	assert.Equal(t, http.StatusBadRequest, got.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", got.ErrorCode)
	assert.Equal(t, "field 'variant' is unknown", got.Details)
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *APIError
		wantStatus int
		wantCode   string
	}{
		{"invalid request", ErrInvalidRequest, http.StatusBadRequest, "INVALID_REQUEST"},
		{"schema invalid", ErrSchemaInvalid, http.StatusUnprocessableEntity, "SCHEMA_INVALID"},
		{"run not found", ErrRunNotFound, http.StatusNotFound, "RUN_NOT_FOUND"},
		{"report not found", ErrReportNotFound, http.StatusNotFound, "REPORT_NOT_FOUND"},
		{"upload too large", ErrUploadTooLarge, http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE"},
		{"unsupported file type", ErrUnsupportedFileType, http.StatusUnsupportedMediaType, "UNSUPPORTED_FILE_TYPE"},
		{"rate limit exceeded", ErrRateLimitExceeded, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED"},
		{"run failed", ErrRunFailed, http.StatusInternalServerError, "RUN_FAILED"},
		{"export failed", ErrExportFailed, http.StatusInternalServerError, "EXPORT_FAILED"},
		{"market data unavailable", ErrMarketDataUnavailable, http.StatusServiceUnavailable, "MARKET_DATA_UNAVAILABLE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, tt.err.StatusCode)
			assert.Equal(t, tt.wantCode, tt.err.ErrorCode)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestErrValidation(t *testing.T) {
	err := ErrValidation("variant", "must be one of base, dashboard, saindo_hoje")

	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", err.ErrorCode)

	details, ok := err.Details.(ValidationError)
	require.True(t, ok)
	assert.Equal(t, "variant", details.Field)
	assert.Equal(t, "must be one of base, dashboard, saindo_hoje", details.Message)
}

func TestNotFoundError(t *testing.T) {
	err := NotFoundError("Report")

	assert.Equal(t, http.StatusNotFound, err.StatusCode)
	assert.Equal(t, "NOT_FOUND", err.ErrorCode)
	assert.Equal(t, "Report not found", err.Message)
	assert.Equal(t, "Report", err.Details)
}

func TestRunNotFoundError(t *testing.T) {
	err := RunNotFoundError("8a4251dc")

	assert.Equal(t, http.StatusNotFound, err.StatusCode)
	assert.Equal(t, "RUN_NOT_FOUND", err.ErrorCode)
	assert.Equal(t, "Run 8a4251dc not found", err.Message)
	assert.Equal(t, "8a4251dc", err.Details)
}

func TestReportNotFoundError(t *testing.T) {
	err := ReportNotFoundError("8a4251dc")

	assert.Equal(t, http.StatusNotFound, err.StatusCode)
	assert.Equal(t, "REPORT_NOT_FOUND", err.ErrorCode)
	assert.Equal(t, "Report for run 8a4251dc not found", err.Message)
}

func TestSchemaInvalidError(t *testing.T) {
	cause := fmt.Errorf("operations: missing required columns: Ativo, Conta")
	err := SchemaInvalidError(cause)

	assert.Equal(t, http.StatusUnprocessableEntity, err.StatusCode)
	assert.Equal(t, "SCHEMA_INVALID", err.ErrorCode)
	assert.Equal(t, cause.Error(), err.Details)
}

func TestErrRunExecution(t *testing.T) {
	err := ErrRunExecution(fmt.Errorf("aggregate: boom"))

	assert.Equal(t, http.StatusInternalServerError, err.StatusCode)
	assert.Equal(t, "RUN_FAILED", err.ErrorCode)
	assert.Equal(t, "aggregate: boom", err.Details)
}

func TestUploadTooLargeError(t *testing.T) {
	err := UploadTooLargeError(30_000_000, 26_214_400)

	assert.Equal(t, http.StatusRequestEntityTooLarge, err.StatusCode)
	assert.Equal(t, "UPLOAD_TOO_LARGE", err.ErrorCode)
	assert.Contains(t, err.Message, "30000000")
	assert.Contains(t, err.Message, "26214400")
}

func TestUnsupportedFileTypeError(t *testing.T) {
	err := UnsupportedFileTypeError(".xls")

	assert.Equal(t, http.StatusUnsupportedMediaType, err.StatusCode)
	assert.Equal(t, "UNSUPPORTED_FILE_TYPE", err.ErrorCode)
	assert.Contains(t, err.Message, `".xls"`)
}

func TestFileSystemError(t *testing.T) {
	err := FileSystemError("export", fmt.Errorf("disk full"))

	assert.Equal(t, http.StatusInternalServerError, err.StatusCode)
	assert.Equal(t, "FILESYSTEM_ERROR", err.ErrorCode)
	assert.Equal(t, "File system error during export", err.Message)
	assert.Equal(t, "disk full", err.Details)
}

func TestNewValidationErrors(t *testing.T) {
	err := NewValidationErrors([]ValidationError{
		{Field: "operations", Message: "file is required"},
		{Field: "advisors", Message: "file is required"},
	})

	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", err.ErrorCode)

	details, ok := err.Details.(ValidationErrors)
	require.True(t, ok)
	assert.Len(t, details.Errors, 2)
	assert.Equal(t, "operations", details.Errors[0].Field)
}

func TestErrPanic(t *testing.T) {
	err := ErrPanic("runtime error: index out of range")

	assert.Equal(t, http.StatusInternalServerError, err.StatusCode)
	assert.Equal(t, "INTERNAL_SERVER_ERROR", err.ErrorCode)

	details, ok := err.Details.(PanicRecovery)
	require.True(t, ok)
	assert.Equal(t, "runtime error: index out of range", details.Message)
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteError(w, RunNotFoundError("missing"))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "RUN_NOT_FOUND", resp.Error.ErrorCode)
	assert.Equal(t, "Run missing not found", resp.Error.Message)
}

func TestNewValidationErrorAndInternalError(t *testing.T) {
	ve := NewValidationError("delimiter must be a single character")
	assert.Equal(t, http.StatusBadRequest, ve.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", ve.ErrorCode)

	ie := NewInternalError("store unavailable")
	assert.Equal(t, http.StatusInternalServerError, ie.StatusCode)
	assert.Equal(t, "INTERNAL_SERVER_ERROR", ie.ErrorCode)
}
