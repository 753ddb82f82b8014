package operations

import (
	"context"
	"sync"
	"time"
)

// Step is a single unit of work in a pipeline run. Steps are registered with
// a Manager and executed in dependency order; each step reads the artifacts
// of its predecessors from the run state and stores its own output there.
type Step interface {
	// ID returns the unique identifier for this step
	ID() string

	// Name returns the human-readable name for this step
	Name() string

	// Dependencies returns the IDs of steps that must complete before this step
	Dependencies() []string

	// Execute runs the step with the given context and run state
	Execute(ctx context.Context, state *RunState) error
}

// StepStatus represents the current status of a step
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusActive    StepStatus = "active"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
)

// StepState represents the runtime state of a step
type StepState struct {
	mu        sync.RWMutex
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Status    StepStatus             `json:"status"`
	StartTime *time.Time             `json:"start_time,omitempty"`
	EndTime   *time.Time             `json:"end_time,omitempty"`
	Progress  float64                `json:"progress"`
	Message   string                 `json:"message"`
	Error     error                  `json:"error,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewStepState creates a new step state with default values
func NewStepState(id, name string) *StepState {
	return &StepState{
		ID:       id,
		Name:     name,
		Status:   StepStatusPending,
		Progress: 0,
		Metadata: make(map[string]interface{}),
	}
}

// Start marks the step as active and sets the start time
func (s *StepState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.StartTime = &now
	s.Status = StepStatusActive
	s.Progress = 0
}

// Complete marks the step as completed and sets the end time
func (s *StepState) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StepStatusCompleted
	s.Progress = 100
}

// Fail marks the step as failed with the given error
func (s *StepState) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StepStatusFailed
	s.Error = err
}

// UpdateProgress updates the step progress and message
func (s *StepState) UpdateProgress(progress float64, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Progress = progress
	s.Message = message
}

// SetMetadata records a metadata entry on the step state
func (s *StepState) SetMetadata(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Metadata == nil {
		s.Metadata = make(map[string]interface{})
	}
	s.Metadata[key] = value
}

// Duration returns the duration of the step execution
func (s *StepState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.StartTime == nil {
		return 0
	}
	if s.EndTime != nil {
		return s.EndTime.Sub(*s.StartTime)
	}
	return time.Since(*s.StartTime)
}

// BaseStep provides common functionality for Step implementations
type BaseStep struct {
	id           string
	name         string
	dependencies []string
}

// NewBaseStep creates a new base step
func NewBaseStep(id, name string, dependencies []string) BaseStep {
	if dependencies == nil {
		dependencies = []string{}
	}
	return BaseStep{
		id:           id,
		name:         name,
		dependencies: dependencies,
	}
}

// ID returns the step ID
func (b *BaseStep) ID() string {
	if b == nil {
		return ""
	}
	return b.id
}

// Name returns the step name
func (b *BaseStep) Name() string {
	if b == nil {
		return ""
	}
	return b.name
}

// Dependencies returns the step dependencies
func (b *BaseStep) Dependencies() []string {
	if b == nil {
		return nil
	}
	return b.dependencies
}
