package operations

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// StatusBroadcaster is the single authority for run status updates. It keeps
// the complete snapshot of every run and broadcasts the whole snapshot on
// each change, so clients never have to stitch partial events together.
type StatusBroadcaster struct {
	mu      sync.RWMutex
	runs    map[string]*RunSnapshot
	hub     WebSocketHub
	logger  *slog.Logger
	updates chan updateRequest
	stop    chan struct{}
}

// RunSnapshot is the complete state of a run at a point in time. It is the
// only structure broadcast to clients.
type RunSnapshot struct {
	RunID       string         `json:"run_id"`
	Status      string         `json:"status"`       // pending|running|completed|failed|cancelled
	Progress    int            `json:"progress"`     // 0-100
	CurrentStep string         `json:"current_step"` // Name of the active step
	Steps       []StepSnapshot `json:"steps"`
	StartedAt   time.Time      `json:"started_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Error       string         `json:"error,omitempty"`
	Message     string         `json:"message,omitempty"`
}

// StepSnapshot is the state of a single step within a run snapshot
type StepSnapshot struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Status   string                 `json:"status"`   // pending|active|completed|failed
	Progress int                    `json:"progress"` // 0-100
	Message  string                 `json:"message,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// StepInfo seeds one step entry of a new run snapshot
type StepInfo struct {
	ID   string
	Name string
}

type updateRequest struct {
	runID      string
	updateFunc func(*RunSnapshot)
	done       chan struct{}
}

// NewStatusBroadcaster creates a new status broadcaster
func NewStatusBroadcaster(hub WebSocketHub, logger *slog.Logger) *StatusBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}

	sb := &StatusBroadcaster{
		runs:    make(map[string]*RunSnapshot),
		hub:     hub,
		logger:  logger,
		updates: make(chan updateRequest, 100),
		stop:    make(chan struct{}),
	}

	// Start the update processor
	go sb.processUpdates()

	return sb
}

// processUpdates handles all updates sequentially to avoid race conditions
func (sb *StatusBroadcaster) processUpdates() {
	for {
		select {
		case <-sb.stop:
			return
		case req := <-sb.updates:
			sb.handleUpdate(req)
		}
	}
}

// handleUpdate processes a single update request
func (sb *StatusBroadcaster) handleUpdate(req updateRequest) {
	defer close(req.done)

	sb.mu.Lock()
	defer sb.mu.Unlock()

	snapshot, exists := sb.runs[req.runID]
	if !exists {
		snapshot = &RunSnapshot{
			RunID:     req.runID,
			Status:    string(RunStatusPending),
			Progress:  0,
			StartedAt: time.Now(),
			UpdatedAt: time.Now(),
			Steps:     []StepSnapshot{},
		}
		sb.runs[req.runID] = snapshot
	}

	req.updateFunc(snapshot)
	snapshot.UpdatedAt = time.Now()

	// Overall progress is the average of step progress
	if len(snapshot.Steps) > 0 {
		totalProgress := 0
		for _, step := range snapshot.Steps {
			totalProgress += step.Progress
		}
		snapshot.Progress = totalProgress / len(snapshot.Steps)
	}

	if isTerminalRunStatus(snapshot.Status) && snapshot.CompletedAt == nil {
		now := time.Now()
		snapshot.CompletedAt = &now
	}

	sb.broadcast(snapshot)
}

func isTerminalRunStatus(status string) bool {
	return status == string(RunStatusCompleted) ||
		status == string(RunStatusFailed) ||
		status == string(RunStatusCancelled)
}

// broadcast sends the complete snapshot to all connected clients
func (sb *StatusBroadcaster) broadcast(snapshot *RunSnapshot) {
	if sb.hub == nil {
		return
	}

	sb.logger.Debug("broadcasting run snapshot",
		slog.String("run_id", snapshot.RunID),
		slog.String("status", snapshot.Status),
		slog.Int("progress", snapshot.Progress),
		slog.String("current_step", snapshot.CurrentStep),
		slog.Int("steps", len(snapshot.Steps)),
	)

	sb.hub.BroadcastUpdate("run:snapshot", snapshot.RunID, "update", snapshot)
}

// UpdateStatus applies an update to a run snapshot and broadcasts the result.
// It blocks until the update has been processed, so callers observe their own
// writes.
func (sb *StatusBroadcaster) UpdateStatus(runID string, updateFunc func(*RunSnapshot)) {
	req := updateRequest{
		runID:      runID,
		updateFunc: updateFunc,
		done:       make(chan struct{}),
	}

	sb.updates <- req
	<-req.done
}

// CreateRun initializes a new run snapshot with the given steps
func (sb *StatusBroadcaster) CreateRun(runID string, steps []StepInfo) {
	sb.UpdateStatus(runID, func(snapshot *RunSnapshot) {
		snapshot.Status = string(RunStatusPending)
		snapshot.Progress = 0
		snapshot.Steps = make([]StepSnapshot, len(steps))
		for i, step := range steps {
			snapshot.Steps[i] = StepSnapshot{
				ID:       step.ID,
				Name:     step.Name,
				Status:   string(StepStatusPending),
				Progress: 0,
			}
		}
		snapshot.Message = "Run created"
	})
}

// StartRun marks a run as running
func (sb *StatusBroadcaster) StartRun(runID string) {
	sb.UpdateStatus(runID, func(snapshot *RunSnapshot) {
		snapshot.Status = string(RunStatusRunning)
		snapshot.Message = "Run started"
	})
}

// StartStep marks a step as active and makes it the run's current step
func (sb *StatusBroadcaster) StartStep(runID, stepID string) {
	sb.UpdateStatus(runID, func(snapshot *RunSnapshot) {
		for i := range snapshot.Steps {
			if snapshot.Steps[i].ID == stepID {
				snapshot.Steps[i].Status = string(StepStatusActive)
				snapshot.Steps[i].Progress = 0
				snapshot.Steps[i].Message = "Step started"
				snapshot.CurrentStep = snapshot.Steps[i].Name
				break
			}
		}
	})
}

// UpdateStepProgress updates a specific step's progress
func (sb *StatusBroadcaster) UpdateStepProgress(runID, stepID string, progress int, message string) {
	sb.UpdateStepWithMetadata(runID, stepID, progress, message, nil)
}

// UpdateStepWithMetadata updates a specific step's progress with metadata
func (sb *StatusBroadcaster) UpdateStepWithMetadata(runID, stepID string, progress int, message string, metadata map[string]interface{}) {
	sb.UpdateStatus(runID, func(snapshot *RunSnapshot) {
		for i := range snapshot.Steps {
			if snapshot.Steps[i].ID != stepID {
				continue
			}
			// Step progress is monotonic while the step is active; late
			// events must not rewind it.
			if progress >= snapshot.Steps[i].Progress || snapshot.Steps[i].Status != string(StepStatusActive) {
				snapshot.Steps[i].Progress = min(max(progress, 0), 100)
			}
			snapshot.Steps[i].Message = message
			if metadata != nil {
				snapshot.Steps[i].Metadata = metadata
			}
			if progress > 0 && progress < 100 {
				snapshot.Steps[i].Status = string(StepStatusActive)
				snapshot.CurrentStep = snapshot.Steps[i].Name
			} else if progress >= 100 {
				snapshot.Steps[i].Status = string(StepStatusCompleted)
				snapshot.Steps[i].Progress = 100
			}
			return
		}

		// Unknown step ID: append a minimal entry so progress keeps flowing
		status := string(StepStatusActive)
		if progress >= 100 {
			status = string(StepStatusCompleted)
		}
		snapshot.Steps = append(snapshot.Steps, StepSnapshot{
			ID:       stepID,
			Name:     stepID,
			Status:   status,
			Progress: min(max(progress, 0), 100),
			Message:  message,
			Metadata: metadata,
		})
		if progress > 0 && progress < 100 {
			snapshot.CurrentStep = stepID
		}
	})
}

// CompleteStep marks a step as completed
func (sb *StatusBroadcaster) CompleteStep(runID, stepID string, message string) {
	sb.UpdateStatus(runID, func(snapshot *RunSnapshot) {
		for i := range snapshot.Steps {
			if snapshot.Steps[i].ID == stepID {
				snapshot.Steps[i].Status = string(StepStatusCompleted)
				snapshot.Steps[i].Progress = 100
				snapshot.Steps[i].Message = message
				break
			}
		}
	})
}

// FailStep marks a step as failed
func (sb *StatusBroadcaster) FailStep(runID, stepID string, err error) {
	sb.UpdateStatus(runID, func(snapshot *RunSnapshot) {
		for i := range snapshot.Steps {
			if snapshot.Steps[i].ID == stepID {
				snapshot.Steps[i].Status = string(StepStatusFailed)
				snapshot.Steps[i].Error = err.Error()
				break
			}
		}
	})
}

// CompleteRun marks a run as completed
func (sb *StatusBroadcaster) CompleteRun(runID string, message string) {
	sb.UpdateStatus(runID, func(snapshot *RunSnapshot) {
		snapshot.Status = string(RunStatusCompleted)
		snapshot.Progress = 100
		snapshot.CurrentStep = ""
		snapshot.Message = message
		// A completed run has no half-done steps left
		for i := range snapshot.Steps {
			if snapshot.Steps[i].Status == string(StepStatusActive) || snapshot.Steps[i].Status == string(StepStatusPending) {
				snapshot.Steps[i].Status = string(StepStatusCompleted)
				snapshot.Steps[i].Progress = 100
			}
		}
	})
}

// FailRun marks a run as failed
func (sb *StatusBroadcaster) FailRun(runID string, err error) {
	sb.UpdateStatus(runID, func(snapshot *RunSnapshot) {
		snapshot.Status = string(RunStatusFailed)
		snapshot.Error = err.Error()
		snapshot.CurrentStep = ""
	})
}

// CancelRun marks a run as cancelled
func (sb *StatusBroadcaster) CancelRun(runID string) {
	sb.UpdateStatus(runID, func(snapshot *RunSnapshot) {
		snapshot.Status = string(RunStatusCancelled)
		snapshot.CurrentStep = ""
		snapshot.Message = "Run cancelled"
	})
}

// GetSnapshot returns the current snapshot for a run
func (sb *StatusBroadcaster) GetSnapshot(runID string) (*RunSnapshot, bool) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	snapshot, exists := sb.runs[runID]
	if !exists {
		return nil, false
	}

	// Return a copy to prevent external modification
	copied := *snapshot
	copied.Steps = append([]StepSnapshot(nil), snapshot.Steps...)
	return &copied, true
}

// GetAllSnapshots returns all current run snapshots
func (sb *StatusBroadcaster) GetAllSnapshots() []*RunSnapshot {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	snapshots := make([]*RunSnapshot, 0, len(sb.runs))
	for _, snapshot := range sb.runs {
		copied := *snapshot
		copied.Steps = append([]StepSnapshot(nil), snapshot.Steps...)
		snapshots = append(snapshots, &copied)
	}

	return snapshots
}

// CleanupOldRuns removes terminal runs older than maxAge
func (sb *StatusBroadcaster) CleanupOldRuns(ctx context.Context, maxAge time.Duration) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	now := time.Now()
	for id, snapshot := range sb.runs {
		if !isTerminalRunStatus(snapshot.Status) {
			continue
		}
		if snapshot.CompletedAt != nil && now.Sub(*snapshot.CompletedAt) > maxAge {
			delete(sb.runs, id)
			sb.logger.InfoContext(ctx, "cleaned up old run",
				slog.String("run_id", id),
				slog.String("status", snapshot.Status),
				slog.Duration("age", now.Sub(*snapshot.CompletedAt)),
			)
		}
	}
}

// Stop gracefully shuts down the broadcaster
func (sb *StatusBroadcaster) Stop() {
	close(sb.stop)
}
