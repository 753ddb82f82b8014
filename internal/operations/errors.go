package operations

import (
	"fmt"
)

// ErrorType represents the type of run error
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeExecution    ErrorType = "execution"
	ErrorTypeTimeout      ErrorType = "timeout"
	ErrorTypeCancellation ErrorType = "cancellation"
	ErrorTypeFatal        ErrorType = "fatal"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeInvalidState ErrorType = "invalid_state"
)

// RunError represents a pipeline-run error tied to the step that raised it
type RunError struct {
	Type      ErrorType              `json:"type"`
	Step      string                 `json:"step,omitempty"`
	Message   string                 `json:"message"`
	Cause     error                  `json:"cause,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Retryable bool                   `json:"retryable"`
}

// Error implements the error interface
func (e *RunError) Error() string {
	if e == nil {
		return "unknown run error"
	}
	if e.Step != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Type, e.Step, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *RunError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewValidationError creates a new validation error
func NewValidationError(step, message string) *RunError {
	return &RunError{
		Type:      ErrorTypeValidation,
		Step:      step,
		Message:   message,
		Retryable: false,
	}
}

// NewExecutionError creates a new execution error
func NewExecutionError(step string, cause error, retryable bool) *RunError {
	return &RunError{
		Type:      ErrorTypeExecution,
		Step:      step,
		Message:   "step execution failed",
		Cause:     cause,
		Retryable: retryable,
	}
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(step string, timeout string) *RunError {
	return &RunError{
		Type:    ErrorTypeTimeout,
		Step:    step,
		Message: fmt.Sprintf("step exceeded timeout of %s", timeout),
		Context: map[string]interface{}{
			"timeout": timeout,
		},
		Retryable: true,
	}
}

// NewCancellationError creates a new cancellation error
func NewCancellationError(step string) *RunError {
	return &RunError{
		Type:      ErrorTypeCancellation,
		Step:      step,
		Message:   "run was cancelled",
		Retryable: false,
	}
}

// NewFatalError creates a new fatal error
func NewFatalError(message string, cause error) *RunError {
	return &RunError{
		Type:      ErrorTypeFatal,
		Message:   message,
		Cause:     cause,
		Retryable: false,
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if rErr, ok := err.(*RunError); ok {
		return rErr.Retryable
	}
	return false
}

// GetErrorType returns the type of the error
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ""
	}
	if rErr, ok := err.(*RunError); ok {
		return rErr.Type
	}
	return ErrorTypeExecution
}

// WrapError wraps an error with run context
func WrapError(err error, step string, message string) *RunError {
	if err == nil {
		return nil
	}

	// If it's already a RunError, enhance it
	if rErr, ok := err.(*RunError); ok {
		if rErr.Step == "" {
			rErr.Step = step
		}
		if message != "" {
			rErr.Message = fmt.Sprintf("%s: %s", message, rErr.Message)
		}
		return rErr
	}

	return &RunError{
		Type:      ErrorTypeExecution,
		Step:      step,
		Message:   message,
		Cause:     err,
		Retryable: false,
	}
}

// Common run errors
var (
	// ErrRunNotFound is returned when a run cannot be found
	ErrRunNotFound = &RunError{
		Type:    ErrorTypeNotFound,
		Message: "run not found",
	}

	// ErrRunCompleted is returned when trying to modify a completed run
	ErrRunCompleted = &RunError{
		Type:    ErrorTypeInvalidState,
		Message: "run has already completed",
	}

	// ErrRunNotRunning is returned when trying to stop a run that's not running
	ErrRunNotRunning = &RunError{
		Type:    ErrorTypeInvalidState,
		Message: "run is not running",
	}
)
