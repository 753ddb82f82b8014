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

type hubEvent struct {
	eventType string
	subtype   string
	action    string
	data      interface{}
}

// mockHub captures every broadcast for assertions.
type mockHub struct {
	mu  sync.Mutex
	evs []hubEvent
}

func newMockHub() *mockHub {
	return &mockHub{}
}

func (h *mockHub) BroadcastUpdate(eventType, subtype, action string, data interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.evs = append(h.evs, hubEvent{eventType: eventType, subtype: subtype, action: action, data: data})
}

func (h *mockHub) events() []hubEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]hubEvent(nil), h.evs...)
}

func newTestBroadcaster(t *testing.T, hub WebSocketHub) *StatusBroadcaster {
	t.Helper()
	sb := NewStatusBroadcaster(hub, nil)
	t.Cleanup(sb.Stop)
	return sb
}

func pipelineStepInfos() []StepInfo {
	return []StepInfo{
		{ID: "parse", Name: "Input Parsing"},
		{ID: "validate", Name: "Schema Validation"},
	}
}

func TestStatusBroadcasterCreateRun(t *testing.T) {
	sb := newTestBroadcaster(t, nil)

	sb.CreateRun("run-1", pipelineStepInfos())

	snapshot, ok := sb.GetSnapshot("run-1")
	require.True(t, ok)
	assert.Equal(t, "run-1", snapshot.RunID)
	assert.Equal(t, string(RunStatusPending), snapshot.Status)
	assert.Equal(t, 0, snapshot.Progress)
	require.Len(t, snapshot.Steps, 2)
	assert.Equal(t, "parse", snapshot.Steps[0].ID)
	assert.Equal(t, "Input Parsing", snapshot.Steps[0].Name)
	assert.Equal(t, string(StepStatusPending), snapshot.Steps[0].Status)
	assert.Nil(t, snapshot.CompletedAt)
}

func TestStatusBroadcasterRunLifecycle(t *testing.T) {
	sb := newTestBroadcaster(t, nil)

	sb.CreateRun("run-1", pipelineStepInfos())
	sb.StartRun("run-1")

	snapshot, _ := sb.GetSnapshot("run-1")
	assert.Equal(t, string(RunStatusRunning), snapshot.Status)

	sb.StartStep("run-1", "parse")
	snapshot, _ = sb.GetSnapshot("run-1")
	assert.Equal(t, string(StepStatusActive), snapshot.Steps[0].Status)
	assert.Equal(t, "Input Parsing", snapshot.CurrentStep)

	sb.UpdateStepProgress("run-1", "parse", 50, "halfway")
	snapshot, _ = sb.GetSnapshot("run-1")
	assert.Equal(t, 50, snapshot.Steps[0].Progress)
	assert.Equal(t, "halfway", snapshot.Steps[0].Message)
	assert.Equal(t, 25, snapshot.Progress)

	sb.CompleteStep("run-1", "parse", "done")
	sb.CompleteStep("run-1", "validate", "done")
	sb.CompleteRun("run-1", "Run completed")

	snapshot, _ = sb.GetSnapshot("run-1")
	assert.Equal(t, string(RunStatusCompleted), snapshot.Status)
	assert.Equal(t, 100, snapshot.Progress)
	assert.Empty(t, snapshot.CurrentStep)
	require.NotNil(t, snapshot.CompletedAt)
	for _, step := range snapshot.Steps {
		assert.Equal(t, string(StepStatusCompleted), step.Status)
		assert.Equal(t, 100, step.Progress)
	}
}

func TestStatusBroadcasterBroadcastsRunSnapshots(t *testing.T) {
	hub := newMockHub()
	sb := newTestBroadcaster(t, hub)

	sb.CreateRun("run-1", pipelineStepInfos())
	sb.StartRun("run-1")
	sb.StartStep("run-1", "parse")
	sb.CompleteStep("run-1", "parse", "done")
	sb.CompleteRun("run-1", "finished")

	events := hub.events()
	require.Len(t, events, 5)
	for _, ev := range events {
		assert.Equal(t, "run:snapshot", ev.eventType)
		assert.Equal(t, "run-1", ev.subtype)
		assert.Equal(t, "update", ev.action)
		_, ok := ev.data.(*RunSnapshot)
		assert.True(t, ok)
	}

	final := events[4].data.(*RunSnapshot)
	assert.Equal(t, string(RunStatusCompleted), final.Status)
}

func TestStatusBroadcasterProgressIsMonotonicWhileActive(t *testing.T) {
	sb := newTestBroadcaster(t, nil)

	sb.CreateRun("run-1", pipelineStepInfos())
	sb.StartStep("run-1", "parse")
	sb.UpdateStepProgress("run-1", "parse", 60, "ahead")
	sb.UpdateStepProgress("run-1", "parse", 30, "late event")

	snapshot, _ := sb.GetSnapshot("run-1")
	assert.Equal(t, 60, snapshot.Steps[0].Progress)
	assert.Equal(t, "late event", snapshot.Steps[0].Message)
}

func TestStatusBroadcasterProgressClamped(t *testing.T) {
	sb := newTestBroadcaster(t, nil)

	sb.CreateRun("run-1", pipelineStepInfos())
	sb.StartStep("run-1", "parse")
	sb.UpdateStepProgress("run-1", "parse", 150, "overflow")

	snapshot, _ := sb.GetSnapshot("run-1")
	assert.Equal(t, 100, snapshot.Steps[0].Progress)
	assert.Equal(t, string(StepStatusCompleted), snapshot.Steps[0].Status)
}

func TestStatusBroadcasterUnknownStepAppended(t *testing.T) {
	sb := newTestBroadcaster(t, nil)

	sb.CreateRun("run-1", pipelineStepInfos())
	sb.UpdateStepProgress("run-1", "surprise", 40, "unplanned work")

	snapshot, _ := sb.GetSnapshot("run-1")
	require.Len(t, snapshot.Steps, 3)
	assert.Equal(t, "surprise", snapshot.Steps[2].ID)
	assert.Equal(t, 40, snapshot.Steps[2].Progress)
	assert.Equal(t, string(StepStatusActive), snapshot.Steps[2].Status)
}

func TestStatusBroadcasterStepMetadata(t *testing.T) {
	sb := newTestBroadcaster(t, nil)

	sb.CreateRun("run-1", pipelineStepInfos())
	sb.UpdateStepWithMetadata("run-1", "parse", 100, "done", map[string]interface{}{
		"rows": 42,
	})

	snapshot, _ := sb.GetSnapshot("run-1")
	require.NotNil(t, snapshot.Steps[0].Metadata)
	assert.Equal(t, 42, snapshot.Steps[0].Metadata["rows"])
	assert.Equal(t, string(StepStatusCompleted), snapshot.Steps[0].Status)
}

func TestStatusBroadcasterFailRun(t *testing.T) {
	sb := newTestBroadcaster(t, nil)

	sb.CreateRun("run-1", pipelineStepInfos())
	sb.StartRun("run-1")
	sb.StartStep("run-1", "parse")
	sb.FailStep("run-1", "parse", errors.New("bad input"))
	sb.FailRun("run-1", errors.New("bad input"))

	snapshot, _ := sb.GetSnapshot("run-1")
	assert.Equal(t, string(RunStatusFailed), snapshot.Status)
	assert.Equal(t, "bad input", snapshot.Error)
	assert.Equal(t, string(StepStatusFailed), snapshot.Steps[0].Status)
	assert.Equal(t, "bad input", snapshot.Steps[0].Error)
	require.NotNil(t, snapshot.CompletedAt)
}

func TestStatusBroadcasterCancelRun(t *testing.T) {
	sb := newTestBroadcaster(t, nil)

	sb.CreateRun("run-1", pipelineStepInfos())
	sb.StartRun("run-1")
	sb.CancelRun("run-1")

	snapshot, _ := sb.GetSnapshot("run-1")
	assert.Equal(t, string(RunStatusCancelled), snapshot.Status)
	require.NotNil(t, snapshot.CompletedAt)
}

func TestStatusBroadcasterGetSnapshotReturnsCopy(t *testing.T) {
	sb := newTestBroadcaster(t, nil)

	sb.CreateRun("run-1", pipelineStepInfos())

	first, _ := sb.GetSnapshot("run-1")
	first.Status = "tampered"
	first.Steps[0].Progress = 99

	second, _ := sb.GetSnapshot("run-1")
	assert.Equal(t, string(RunStatusPending), second.Status)
	assert.Equal(t, 0, second.Steps[0].Progress)
}

func TestStatusBroadcasterGetSnapshotMissing(t *testing.T) {
	sb := newTestBroadcaster(t, nil)

	snapshot, ok := sb.GetSnapshot("nope")
	assert.False(t, ok)
	assert.Nil(t, snapshot)
}

func TestStatusBroadcasterGetAllSnapshots(t *testing.T) {
	sb := newTestBroadcaster(t, nil)

	sb.CreateRun("run-1", pipelineStepInfos())
	sb.CreateRun("run-2", pipelineStepInfos())

	snapshots := sb.GetAllSnapshots()
	assert.Len(t, snapshots, 2)
}

func TestStatusBroadcasterCleanupOldRuns(t *testing.T) {
	sb := newTestBroadcaster(t, nil)

	sb.CreateRun("run-done", pipelineStepInfos())
	sb.CompleteRun("run-done", "finished")
	sb.CreateRun("run-live", pipelineStepInfos())
	sb.StartRun("run-live")

	time.Sleep(5 * time.Millisecond)
	sb.CleanupOldRuns(context.Background(), time.Millisecond)

	_, ok := sb.GetSnapshot("run-done")
	assert.False(t, ok, "terminal run past maxAge should be removed")
	_, ok = sb.GetSnapshot("run-live")
	assert.True(t, ok, "active run must survive cleanup")
}

func TestStatusBroadcasterNilHub(t *testing.T) {
	sb := newTestBroadcaster(t, nil)

	// Must not panic without a hub
	sb.CreateRun("run-1", pipelineStepInfos())
	sb.CompleteRun("run-1", "done")

	snapshot, ok := sb.GetSnapshot("run-1")
	require.True(t, ok)
	assert.Equal(t, string(RunStatusCompleted), snapshot.Status)
}

func TestStatusBroadcasterConcurrentUpdates(t *testing.T) {
	sb := newTestBroadcaster(t, newMockHub())

	sb.CreateRun("run-1", pipelineStepInfos())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sb.UpdateStepProgress("run-1", "parse", n*5, "racing")
		}(i)
	}
	wg.Wait()

	snapshot, ok := sb.GetSnapshot("run-1")
	require.True(t, ok)
	assert.LessOrEqual(t, snapshot.Steps[0].Progress, 100)
	assert.GreaterOrEqual(t, snapshot.Steps[0].Progress, 0)
}
