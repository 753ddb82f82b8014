package operations

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunErrorError(t *testing.T) {
	withStep := &RunError{Type: ErrorTypeValidation, Step: "validate", Message: "missing columns"}
	assert.Equal(t, "[validation] validate: missing columns", withStep.Error())

	withoutStep := &RunError{Type: ErrorTypeFatal, Message: "no steps registered"}
	assert.Equal(t, "[fatal] no steps registered", withoutStep.Error())

	var nilErr *RunError
	assert.Equal(t, "unknown run error", nilErr.Error())
}

func TestRunErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewExecutionError("join", cause, false)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, cause, errors.Unwrap(err))

	var nilErr *RunError
	assert.Nil(t, nilErr.Unwrap())
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name      string
		err       *RunError
		wantType  ErrorType
		retryable bool
	}{
		{"validation", NewValidationError("validate", "bad schema"), ErrorTypeValidation, false},
		{"execution retryable", NewExecutionError("parse", errors.New("io"), true), ErrorTypeExecution, true},
		{"execution permanent", NewExecutionError("parse", errors.New("io"), false), ErrorTypeExecution, false},
		{"timeout", NewTimeoutError("export", "5m"), ErrorTypeTimeout, true},
		{"cancellation", NewCancellationError("join"), ErrorTypeCancellation, false},
		{"fatal", NewFatalError("broken", nil), ErrorTypeFatal, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.retryable, tt.err.Retryable)
		})
	}
}

func TestNewTimeoutErrorContext(t *testing.T) {
	err := NewTimeoutError("export", "30s")

	assert.Contains(t, err.Error(), "30s")
	assert.Equal(t, "30s", err.Context["timeout"])
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.True(t, IsRetryable(NewTimeoutError("s", "1s")))
	assert.False(t, IsRetryable(NewValidationError("s", "bad")))
}

func TestGetErrorType(t *testing.T) {
	assert.Equal(t, ErrorType(""), GetErrorType(nil))
	assert.Equal(t, ErrorTypeExecution, GetErrorType(errors.New("plain")))
	assert.Equal(t, ErrorTypeCancellation, GetErrorType(NewCancellationError("s")))
}

func TestWrapErrorPlainError(t *testing.T) {
	cause := errors.New("disk full")
	wrapped := WrapError(cause, "export", "failed to deliver result")

	assert.Equal(t, ErrorTypeExecution, wrapped.Type)
	assert.Equal(t, "export", wrapped.Step)
	assert.Equal(t, "failed to deliver result", wrapped.Message)
	assert.ErrorIs(t, wrapped, cause)
	assert.False(t, wrapped.Retryable)
}

func TestWrapErrorEnhancesRunError(t *testing.T) {
	original := NewValidationError("", "missing columns")
	wrapped := WrapError(original, "validate", "step execution failed")

	require.Same(t, original, wrapped, "existing run errors are enhanced in place")
	assert.Equal(t, ErrorTypeValidation, wrapped.Type)
	assert.Equal(t, "validate", wrapped.Step)
	assert.Equal(t, "step execution failed: missing columns", wrapped.Message)
}

func TestWrapErrorKeepsExistingStep(t *testing.T) {
	original := NewCancellationError("join")
	wrapped := WrapError(original, "manager", "")

	assert.Equal(t, "join", wrapped.Step)
	assert.Equal(t, ErrorTypeCancellation, wrapped.Type)
}

func TestWrapErrorNil(t *testing.T) {
	assert.Nil(t, WrapError(nil, "step", "message"))
}

func TestWrapErrorPreservesErrorsAs(t *testing.T) {
	cause := fmt.Errorf("read table: %w", context.DeadlineExceeded)
	wrapped := WrapError(cause, "parse", "failed to parse input")

	assert.ErrorIs(t, wrapped, context.DeadlineExceeded)

	var runErr *RunError
	require.True(t, errors.As(wrapped, &runErr))
	assert.Equal(t, "parse", runErr.Step)
}

func TestCommonErrors(t *testing.T) {
	assert.Equal(t, ErrorTypeNotFound, ErrRunNotFound.Type)
	assert.Equal(t, ErrorTypeInvalidState, ErrRunCompleted.Type)
	assert.Equal(t, ErrorTypeInvalidState, ErrRunNotRunning.Type)
	assert.ErrorIs(t, fmt.Errorf("lookup: %w", ErrRunNotFound), ErrRunNotFound)
}
