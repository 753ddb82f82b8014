package operations

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStep is a scriptable step for manager tests. Without a custom execute
// func it fails its first `failures` attempts and then succeeds.
type fakeStep struct {
	BaseStep
	mu       sync.Mutex
	calls    int
	failures int
	failWith error
	execute  func(ctx context.Context, state *RunState) error
}

func newFakeStep(id string, deps ...string) *fakeStep {
	return &fakeStep{BaseStep: NewBaseStep(id, "Step "+id, deps)}
}

func (s *fakeStep) Execute(ctx context.Context, state *RunState) error {
	s.mu.Lock()
	s.calls++
	calls := s.calls
	execute := s.execute
	failures := s.failures
	failWith := s.failWith
	s.mu.Unlock()

	if execute != nil {
		return execute(ctx, state)
	}
	if calls <= failures {
		if failWith != nil {
			return failWith
		}
		return NewExecutionError(s.ID(), errors.New("transient failure"), true)
	}
	return nil
}

func (s *fakeStep) executeCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestManager(t *testing.T, hub WebSocketHub) *Manager {
	t.Helper()
	m := NewManager(hub, nil, nil)
	t.Cleanup(m.GetBroadcaster().Stop)
	return m
}

func fastRetries(maxAttempts int) *Config {
	return NewConfigBuilder().
		WithRetryConfig(RetryConfig{
			MaxAttempts:  maxAttempts,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Multiplier:   2.0,
		}).
		Build()
}

func TestNewManagerDefaults(t *testing.T) {
	m := newTestManager(t, nil)

	assert.NotNil(t, m.GetRegistry())
	assert.NotNil(t, m.GetConfig())
	assert.NotNil(t, m.GetBroadcaster())
	assert.Empty(t, m.ListRuns())
}

func TestManagerRegisterStep(t *testing.T) {
	m := newTestManager(t, nil)

	require.NoError(t, m.RegisterStep(newFakeStep("one")))
	assert.True(t, m.GetRegistry().Has("one"))

	assert.Error(t, m.RegisterStep(newFakeStep("one")), "duplicate registration must fail")
}

func TestManagerSetConfig(t *testing.T) {
	m := newTestManager(t, nil)
	original := m.GetConfig()

	m.SetConfig(nil)
	assert.Same(t, original, m.GetConfig(), "nil config must be ignored")

	custom := NewConfigBuilder().WithStepTimeout("one", time.Minute).Build()
	m.SetConfig(custom)
	assert.Equal(t, time.Minute, m.GetConfig().GetStepTimeout("one"))
}

func TestManagerExecuteRunsStepsInDependencyOrder(t *testing.T) {
	hub := newMockHub()
	m := newTestManager(t, hub)

	var mu sync.Mutex
	var order []string
	record := func(id string) func(context.Context, *RunState) error {
		return func(context.Context, *RunState) error {
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			return nil
		}
	}

	third := newFakeStep("third", "second")
	third.execute = record("third")
	first := newFakeStep("first")
	first.execute = record("first")
	second := newFakeStep("second", "first")
	second.execute = record("second")

	// Registration order differs from dependency order on purpose
	require.NoError(t, m.RegisterStep(third))
	require.NoError(t, m.RegisterStep(first))
	require.NoError(t, m.RegisterStep(second))

	resp, err := m.Execute(context.Background(), RunRequest{ID: "run-order"})
	require.NoError(t, err)

	assert.Equal(t, RunStatusCompleted, resp.Status)
	assert.Equal(t, []string{"first", "second", "third"}, order)
	for _, id := range []string{"first", "second", "third"} {
		assert.Equal(t, StepStatusCompleted, resp.Steps[id].Status)
	}

	events := hub.events()
	require.NotEmpty(t, events)
	for _, ev := range events {
		assert.Equal(t, "run:snapshot", ev.eventType)
	}
}

func TestManagerExecuteAssignsRunID(t *testing.T) {
	m := newTestManager(t, nil)
	require.NoError(t, m.RegisterStep(newFakeStep("one")))

	resp, err := m.Execute(context.Background(), RunRequest{})
	require.NoError(t, err)
	assert.Len(t, resp.ID, 36, "expected a UUID run id")
}

func TestManagerExecuteNoStepsRegistered(t *testing.T) {
	m := newTestManager(t, nil)

	resp, err := m.Execute(context.Background(), RunRequest{ID: "run-empty"})
	require.Error(t, err)
	assert.Equal(t, ErrorTypeFatal, GetErrorType(err))
	assert.Equal(t, RunStatusFailed, resp.Status)
}

func TestManagerExecuteStopsOnFirstFailure(t *testing.T) {
	m := newTestManager(t, nil)

	failing := newFakeStep("failing")
	failing.failures = 1
	failing.failWith = &RunError{Type: ErrorTypeExecution, Step: "failing", Message: "boom"}
	after := newFakeStep("after", "failing")

	require.NoError(t, m.RegisterStep(failing))
	require.NoError(t, m.RegisterStep(after))

	resp, err := m.Execute(context.Background(), RunRequest{ID: "run-fail"})
	require.Error(t, err)

	assert.Equal(t, RunStatusFailed, resp.Status)
	assert.Equal(t, 1, failing.executeCalls())
	assert.Equal(t, 0, after.executeCalls())
	assert.Equal(t, StepStatusFailed, resp.Steps["failing"].Status)
	assert.Equal(t, StepStatusPending, resp.Steps["after"].Status)
	assert.Contains(t, resp.Error, "boom")
}

func TestManagerExecuteRetriesRetryableErrors(t *testing.T) {
	m := newTestManager(t, nil)
	m.SetConfig(fastRetries(3))

	flaky := newFakeStep("flaky")
	flaky.failures = 2
	require.NoError(t, m.RegisterStep(flaky))

	resp, err := m.Execute(context.Background(), RunRequest{ID: "run-retry"})
	require.NoError(t, err)

	assert.Equal(t, RunStatusCompleted, resp.Status)
	assert.Equal(t, 3, flaky.executeCalls())
	assert.Equal(t, StepStatusCompleted, resp.Steps["flaky"].Status)
}

func TestManagerExecuteRetriesExhausted(t *testing.T) {
	m := newTestManager(t, nil)
	m.SetConfig(fastRetries(2))

	hopeless := newFakeStep("hopeless")
	hopeless.failures = 10
	require.NoError(t, m.RegisterStep(hopeless))

	resp, err := m.Execute(context.Background(), RunRequest{ID: "run-exhaust"})
	require.Error(t, err)

	assert.Equal(t, RunStatusFailed, resp.Status)
	assert.Equal(t, 2, hopeless.executeCalls())
	assert.Equal(t, StepStatusFailed, resp.Steps["hopeless"].Status)
}

func TestManagerExecuteNonRetryableErrorNotRetried(t *testing.T) {
	m := newTestManager(t, nil)
	m.SetConfig(fastRetries(3))

	fatal := newFakeStep("fatal")
	fatal.failures = 10
	fatal.failWith = NewValidationError("fatal", "bad schema")
	require.NoError(t, m.RegisterStep(fatal))

	resp, err := m.Execute(context.Background(), RunRequest{ID: "run-noretry"})
	require.Error(t, err)

	assert.Equal(t, 1, fatal.executeCalls())
	assert.Equal(t, ErrorTypeValidation, GetErrorType(err))
	assert.Equal(t, RunStatusFailed, resp.Status)
}

func TestManagerExecuteStepTimeout(t *testing.T) {
	m := newTestManager(t, nil)
	m.SetConfig(NewConfigBuilder().WithStepTimeout("slow", 20*time.Millisecond).Build())

	slow := newFakeStep("slow")
	slow.execute = func(ctx context.Context, _ *RunState) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	require.NoError(t, m.RegisterStep(slow))

	resp, err := m.Execute(context.Background(), RunRequest{ID: "run-timeout"})
	require.Error(t, err)

	assert.Equal(t, RunStatusFailed, resp.Status)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestManagerExecuteCancelledBeforeStart(t *testing.T) {
	m := newTestManager(t, nil)
	step := newFakeStep("one")
	require.NoError(t, m.RegisterStep(step))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := m.Execute(ctx, RunRequest{ID: "run-precancel"})
	require.Error(t, err)

	assert.Equal(t, RunStatusCancelled, resp.Status)
	assert.Equal(t, ErrorTypeCancellation, GetErrorType(err))
	assert.Equal(t, 0, step.executeCalls())
}

func TestManagerExecuteCancelledMidRun(t *testing.T) {
	m := newTestManager(t, nil)

	started := make(chan struct{})
	blocking := newFakeStep("blocking")
	blocking.execute = func(ctx context.Context, _ *RunState) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}
	after := newFakeStep("after", "blocking")
	require.NoError(t, m.RegisterStep(blocking))
	require.NoError(t, m.RegisterStep(after))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	resp, err := m.Execute(ctx, RunRequest{ID: "run-midcancel"})
	require.Error(t, err)

	assert.Equal(t, RunStatusCancelled, resp.Status)
	assert.Equal(t, 0, after.executeCalls())
}

func TestManagerGetRunWhileActive(t *testing.T) {
	m := newTestManager(t, nil)

	started := make(chan struct{})
	release := make(chan struct{})
	hold := newFakeStep("hold")
	hold.execute = func(context.Context, *RunState) error {
		close(started)
		<-release
		return nil
	}
	require.NoError(t, m.RegisterStep(hold))

	done := make(chan *RunResponse, 1)
	go func() {
		resp, _ := m.Execute(context.Background(), RunRequest{ID: "run-active"})
		done <- resp
	}()

	<-started
	state, err := m.GetRun("run-active")
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, state.Status)
	assert.Len(t, m.ListRuns(), 1)

	close(release)
	resp := <-done
	assert.Equal(t, RunStatusCompleted, resp.Status)

	_, err = m.GetRun("run-active")
	assert.ErrorIs(t, err, ErrRunNotFound, "finished runs are evicted")
}

func TestManagerGetRunNotFound(t *testing.T) {
	m := newTestManager(t, nil)

	_, err := m.GetRun("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestManagerCancelRun(t *testing.T) {
	m := newTestManager(t, nil)

	started := make(chan struct{})
	release := make(chan struct{})
	hold := newFakeStep("hold")
	hold.execute = func(context.Context, *RunState) error {
		close(started)
		<-release
		return nil
	}
	require.NoError(t, m.RegisterStep(hold))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = m.Execute(context.Background(), RunRequest{ID: "run-cancel"})
	}()

	<-started
	require.NoError(t, m.CancelRun("run-cancel"))

	state, err := m.GetRun("run-cancel")
	require.NoError(t, err)
	assert.Equal(t, RunStatusCancelled, state.Status)

	snapshot, ok := m.GetBroadcaster().GetSnapshot("run-cancel")
	require.True(t, ok)
	assert.Equal(t, string(RunStatusCancelled), snapshot.Status)

	close(release)
	<-done
}

func TestManagerCancelRunNotFound(t *testing.T) {
	m := newTestManager(t, nil)
	assert.ErrorIs(t, m.CancelRun("missing"), ErrRunNotFound)
}

func TestCalculateRetryDelay(t *testing.T) {
	m := newTestManager(t, nil)
	config := RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}

	assert.Equal(t, time.Second, m.calculateRetryDelay(1, config))
	assert.Equal(t, 2*time.Second, m.calculateRetryDelay(2, config))
	assert.Equal(t, 4*time.Second, m.calculateRetryDelay(3, config))
	assert.Equal(t, 5*time.Second, m.calculateRetryDelay(4, config), "delay is capped at MaxDelay")
}

func TestIsCancellation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"cancellation error", NewCancellationError("step"), true},
		{"wrapped context.Canceled", WrapError(context.Canceled, "step", "stopped"), true},
		{"execution error", NewExecutionError("step", errors.New("boom"), false), false},
		{"deadline exceeded", WrapError(context.DeadlineExceeded, "step", "too slow"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isCancellation(tt.err))
		})
	}
}
