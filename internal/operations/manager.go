package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"opsunify/internal/dataprocessing"
)

// Manager orchestrates pipeline runs
type Manager struct {
	registry    *Registry
	config      *Config
	hub         WebSocketHub
	broadcaster *StatusBroadcaster

	// Active runs
	mu   sync.RWMutex
	runs map[string]*RunState
}

// NewManager creates a new run manager with dependency injection
func NewManager(hub WebSocketHub, registry *Registry, config *Config) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	if config == nil {
		config = NewConfig()
	}

	broadcaster := NewStatusBroadcaster(hub, slog.Default())

	return &Manager{
		registry:    registry,
		config:      config,
		hub:         hub,
		broadcaster: broadcaster,
		runs:        make(map[string]*RunState),
	}
}

// RegisterStep registers a step with the manager
func (m *Manager) RegisterStep(step Step) error {
	return m.registry.Register(step)
}

// SetConfig updates the run configuration
func (m *Manager) SetConfig(config *Config) {
	if config != nil {
		m.config = config
	}
}

// GetRegistry returns the registry for accessing registered steps
func (m *Manager) GetRegistry() *Registry {
	return m.registry
}

// GetBroadcaster returns the status broadcaster for centralized status updates
func (m *Manager) GetBroadcaster() *StatusBroadcaster {
	return m.broadcaster
}

// Execute runs the unification pipeline for the given request. Steps run
// sequentially in dependency order; the first failure stops the run and no
// partial result is produced.
func (m *Manager) Execute(ctx context.Context, req RunRequest) (*RunResponse, error) {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	m.logRunStart(ctx, req.ID, req)

	state := NewRunState(req.ID)
	if req.Variant != "" {
		state.SetConfig(ConfigKeyVariant, string(req.Variant))
	}
	state.SetContext(ContextKeyInputs, req.Inputs)
	state.SetContext(ContextKeyStats, &dataprocessing.Stats{})

	m.storeRun(state)
	defer m.removeRun(req.ID)

	steps, err := m.registry.GetDependencyOrder()
	if err != nil {
		err = NewFatalError("failed to resolve step order", err)
		m.logRunError(ctx, req.ID, err)
		state.Fail(err)
		return m.createResponse(state), err
	}
	if len(steps) == 0 {
		err = NewFatalError("no steps registered", nil)
		m.logRunError(ctx, req.ID, err)
		state.Fail(err)
		return m.createResponse(state), err
	}

	stepInfos := make([]StepInfo, len(steps))
	for i, step := range steps {
		state.SetStep(step.ID(), NewStepState(step.ID(), step.Name()))
		stepInfos[i] = StepInfo{ID: step.ID(), Name: step.Name()}
	}
	m.broadcaster.CreateRun(req.ID, stepInfos)

	tracer := GetRunTracer()
	var runSpan trace.Span
	if tracer != nil {
		ctx, runSpan = tracer.TraceRunExecution(ctx, req.ID, string(req.Variant))
		defer runSpan.End()
	}

	startTime := time.Now()
	state.Start()
	m.broadcaster.StartRun(req.ID)

	execErr := m.executeSequential(ctx, state, steps)

	switch {
	case execErr == nil:
		state.Complete()
		m.broadcaster.CompleteRun(req.ID, "Run completed")
	case isCancellation(execErr):
		state.Cancel()
		m.broadcaster.CancelRun(req.ID)
		if tracer != nil {
			tracer.RecordRunCancellation(ctx, req.ID, execErr.Error())
		}
	default:
		state.Fail(execErr)
		m.broadcaster.FailRun(req.ID, execErr)
		if tracer != nil {
			tracer.RecordRunError(ctx, req.ID, execErr)
		}
	}

	resp := m.createResponse(state)

	if tracer != nil {
		tracer.RecordRunCompletion(ctx, runSpan, req.ID, time.Since(startTime), string(resp.Status), int64(resp.Stats.RowsOut))
	}

	if execErr != nil {
		m.logRunError(ctx, req.ID, execErr)
	} else {
		m.logRunComplete(ctx, req.ID, resp.Duration, string(resp.Status))
	}

	return resp, execErr
}

// isCancellation reports whether the error represents a cancelled run rather
// than a failed one
func isCancellation(err error) bool {
	return GetErrorType(err) == ErrorTypeCancellation || errors.Is(err, context.Canceled)
}

// executeSequential executes steps one by one, stopping at the first failure
func (m *Manager) executeSequential(ctx context.Context, state *RunState, steps []Step) error {
	for i, step := range steps {
		select {
		case <-ctx.Done():
			slog.WarnContext(ctx, "run_cancelled",
				slog.String("run_id", state.ID),
				slog.String("step", step.ID()))
			return NewCancellationError(step.ID())
		default:
		}

		slog.InfoContext(ctx, "executing_step",
			slog.String("run_id", state.ID),
			slog.String("step", step.ID()),
			slog.Int("step_number", i+1),
			slog.Int("total_steps", len(steps)))

		if err := m.executeStep(ctx, state, step); err != nil {
			return err
		}
	}
	return nil
}

// executeStep executes a single step with timeout and retry handling
func (m *Manager) executeStep(ctx context.Context, state *RunState, step Step) error {
	m.logStepStart(ctx, state.ID, step.ID())

	stepState := state.GetStep(step.ID())
	if stepState == nil {
		return NewFatalError(fmt.Sprintf("step state not found: %s", step.ID()), nil)
	}

	timeout := m.config.GetStepTimeout(step.ID())
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tracer := GetRunTracer()
	var span trace.Span
	if tracer != nil {
		stepCtx, span = tracer.TraceStepExecution(stepCtx, state.ID, step.ID())
		defer span.End()
	}

	retryConfig := m.config.RetryConfig
	maxAttempts := max(retryConfig.MaxAttempts, 1)

	var lastErr error
	stepStart := time.Now()

retry:
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		stepState.Start()
		m.broadcaster.StartStep(state.ID, step.ID())

		attemptStart := time.Now()
		err := step.Execute(stepCtx, state)
		duration := time.Since(attemptStart)

		if err == nil {
			stepState.Complete()
			m.broadcaster.CompleteStep(state.ID, step.ID(), "Step completed")
			m.logStepComplete(ctx, state.ID, step.ID(), duration)
			if tracer != nil {
				tracer.RecordStepCompletion(stepCtx, span, state.ID, step.ID(), duration, true)
			}
			return nil
		}

		lastErr = err
		slog.ErrorContext(ctx, "step_execution_failed",
			slog.String("run_id", state.ID),
			slog.String("step", step.ID()),
			slog.Int("attempt", attempt),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))

		if !IsRetryable(err) || attempt == maxAttempts {
			break
		}

		delay := m.calculateRetryDelay(attempt, retryConfig)
		slog.WarnContext(ctx, "step_retry",
			slog.String("run_id", state.ID),
			slog.String("step", step.ID()),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.Duration("delay", delay))

		select {
		case <-time.After(delay):
		case <-stepCtx.Done():
			if ctx.Err() != nil {
				lastErr = NewCancellationError(step.ID())
			} else {
				lastErr = NewTimeoutError(step.ID(), timeout.String())
			}
			break retry
		}
	}

	wrapped := WrapError(lastErr, step.ID(), "step execution failed")
	stepState.Fail(wrapped)
	m.broadcaster.FailStep(state.ID, step.ID(), wrapped)
	m.logStepError(ctx, state.ID, step.ID(), wrapped)
	if tracer != nil {
		tracer.RecordStepError(stepCtx, state.ID, step.ID(), wrapped)
		tracer.RecordStepCompletion(stepCtx, span, state.ID, step.ID(), time.Since(stepStart), false)
	}
	return wrapped
}

// calculateRetryDelay calculates the delay before the next retry attempt
func (m *Manager) calculateRetryDelay(attempt int, config RetryConfig) time.Duration {
	delay := config.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * config.Multiplier)
	}
	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}
	return delay
}

// createResponse creates a run response from state
func (m *Manager) createResponse(state *RunState) *RunResponse {
	resp := &RunResponse{
		ID:       state.ID,
		Status:   state.Status,
		Variant:  variantFromState(state),
		Duration: state.Duration(),
		Steps:    state.Steps,
	}

	stats := statsFromState(state)
	stats.Duration = resp.Duration
	resp.Stats = *stats

	if result, err := resultFromState(state); err == nil {
		resp.Result = result
	}

	if state.Error != nil {
		resp.Error = state.Error.Error()
	}

	return resp
}

// GetRun retrieves the state of an active run
func (m *Manager) GetRun(id string) (*RunState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, exists := m.runs[id]
	if !exists {
		return nil, ErrRunNotFound
	}

	return state.Clone(), nil
}

// ListRuns returns all active runs
func (m *Manager) ListRuns() []*RunState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	runs := make([]*RunState, 0, len(m.runs))
	for _, state := range m.runs {
		runs = append(runs, state.Clone())
	}

	return runs
}

// CancelRun cancels an active run
func (m *Manager) CancelRun(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, exists := m.runs[id]
	if !exists {
		return ErrRunNotFound
	}

	state.Cancel()
	m.broadcaster.CancelRun(id)
	return nil
}

// storeRun stores a run state
func (m *Manager) storeRun(state *RunState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[state.ID] = state
}

// removeRun removes a run state
func (m *Manager) removeRun(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.runs, id)
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *Config {
	return m.config
}
