package operations

import (
	"sync"
	"time"
)

// RunStatus represents the overall status of a pipeline run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// RunState represents the complete state of one pipeline run
type RunState struct {
	mu sync.RWMutex

	// Basic run information
	ID        string     `json:"id"`
	Status    RunStatus  `json:"status"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// Step states
	Steps map[string]*StepState `json:"steps"`

	// Run context for passing artifacts between steps
	Context map[string]interface{} `json:"context"`

	// Configuration passed from the request
	Config map[string]interface{} `json:"config"`

	// Error if the run failed
	Error error `json:"error,omitempty"`
}

// NewRunState creates a new run state
func NewRunState(id string) *RunState {
	return &RunState{
		ID:        id,
		Status:    RunStatusPending,
		StartTime: time.Now(),
		Steps:     make(map[string]*StepState),
		Context:   make(map[string]interface{}),
		Config:    make(map[string]interface{}),
	}
}

// Start marks the run as running
func (r *RunState) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = RunStatusRunning
	r.StartTime = time.Now()
}

// Complete marks the run as completed
func (r *RunState) Complete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.EndTime = &now
	r.Status = RunStatusCompleted
}

// Fail marks the run as failed
func (r *RunState) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.EndTime = &now
	r.Status = RunStatusFailed
	r.Error = err
}

// Cancel marks the run as cancelled
func (r *RunState) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.EndTime = &now
	r.Status = RunStatusCancelled
}

// GetStep returns the state of a specific step
func (r *RunState) GetStep(stepID string) *StepState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Steps[stepID]
}

// SetStep updates the state of a specific step
func (r *RunState) SetStep(stepID string, state *StepState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Steps[stepID] = state
}

// GetContext retrieves an artifact from the run context
func (r *RunState) GetContext(key string) (interface{}, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	val, ok := r.Context[key]
	return val, ok
}

// SetContext stores an artifact in the run context
func (r *RunState) SetContext(key string, value interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Context[key] = value
}

// GetConfig retrieves a configuration value
func (r *RunState) GetConfig(key string) (interface{}, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	val, ok := r.Config[key]
	return val, ok
}

// SetConfig sets a configuration value
func (r *RunState) SetConfig(key string, value interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Config[key] = value
}

// Duration returns the duration of the run execution
func (r *RunState) Duration() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.EndTime != nil {
		return r.EndTime.Sub(r.StartTime)
	}
	return time.Since(r.StartTime)
}

// GetActiveSteps returns all currently active steps
func (r *RunState) GetActiveSteps() []*StepState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var active []*StepState
	for _, step := range r.Steps {
		if step.Status == StepStatusActive {
			active = append(active, step)
		}
	}
	return active
}

// GetCompletedSteps returns all completed steps
func (r *RunState) GetCompletedSteps() []*StepState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var completed []*StepState
	for _, step := range r.Steps {
		if step.Status == StepStatusCompleted {
			completed = append(completed, step)
		}
	}
	return completed
}

// GetFailedSteps returns all failed steps
func (r *RunState) GetFailedSteps() []*StepState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var failed []*StepState
	for _, step := range r.Steps {
		if step.Status == StepStatusFailed {
			failed = append(failed, step)
		}
	}
	return failed
}

// IsComplete returns true if no step is pending or active
func (r *RunState) IsComplete() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, step := range r.Steps {
		if step.Status == StepStatusPending || step.Status == StepStatusActive {
			return false
		}
	}
	return true
}

// HasFailures returns true if any step has failed
func (r *RunState) HasFailures() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, step := range r.Steps {
		if step.Status == StepStatusFailed {
			return true
		}
	}
	return false
}

// Clone creates a deep copy of the run state. Step states are copied field
// by field; context and config values are shared.
func (r *RunState) Clone() *RunState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clone := &RunState{
		ID:        r.ID,
		Status:    r.Status,
		StartTime: r.StartTime,
		Steps:     make(map[string]*StepState),
		Context:   make(map[string]interface{}),
		Config:    make(map[string]interface{}),
		Error:     r.Error,
	}

	if r.EndTime != nil {
		endTime := *r.EndTime
		clone.EndTime = &endTime
	}

	for k, v := range r.Steps {
		v.mu.RLock()
		stepCopy := &StepState{
			ID:        v.ID,
			Name:      v.Name,
			Status:    v.Status,
			StartTime: v.StartTime,
			EndTime:   v.EndTime,
			Progress:  v.Progress,
			Message:   v.Message,
			Error:     v.Error,
			Metadata:  make(map[string]interface{}),
		}
		for mk, mv := range v.Metadata {
			stepCopy.Metadata[mk] = mv
		}
		v.mu.RUnlock()
		clone.Steps[k] = stepCopy
	}

	for k, v := range r.Context {
		clone.Context[k] = v
	}

	for k, v := range r.Config {
		clone.Config[k] = v
	}

	return clone
}
