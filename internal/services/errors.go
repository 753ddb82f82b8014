package services

import "errors"

// Service errors
var (
	// Run errors
	ErrRunNotFound   = errors.New("run not found")
	ErrRunNotRunning = errors.New("run is not running")
	ErrTooManyRuns   = errors.New("too many concurrent runs")

	// Report errors
	ErrReportNotFound = errors.New("report not found")

	// Quote errors
	ErrQuotesDisabled = errors.New("quote lookup is disabled")
	ErrNoSymbols      = errors.New("no symbols requested")
	ErrBatchTooLarge  = errors.New("too many symbols requested")

	// General errors
	ErrInvalidInput       = errors.New("invalid input")
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
)
