package operations

import (
	"context"
	"log/slog"
)

// WebSocketHub interface for sending WebSocket messages
type WebSocketHub interface {
	BroadcastUpdate(eventType, subtype, action string, data interface{})
}

// ResultSink receives the final result table of a run. The export step
// delivers to it exactly once per successful run.
type ResultSink interface {
	Deliver(ctx context.Context, result RunResult) error
}

// StepOptions contains optional dependencies for pipeline steps
type StepOptions struct {
	Logger            *slog.Logger
	EnableProgress    bool
	StatusBroadcaster *StatusBroadcaster
	// CSVDelimiter is the field separator for CSV inputs; zero means the
	// default semicolon.
	CSVDelimiter rune
}
