package websocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsConnections(t *testing.T) {
	m := NewMetrics()

	m.RecordConnection()
	m.RecordConnection()
	m.RecordConnection()
	assert.Equal(t, int64(3), m.TotalConnections)
	assert.Equal(t, int64(3), m.ActiveConnections)
	assert.Equal(t, int64(3), m.MaxConcurrent)

	m.RecordDisconnection(2 * time.Second)
	assert.Equal(t, int64(2), m.ActiveConnections)
	assert.Equal(t, int64(3), m.MaxConcurrent)
	assert.Equal(t, 2*time.Second, m.AvgConnectionTime)

	m.RecordDisconnection(4 * time.Second)
	assert.Equal(t, 3*time.Second, m.AvgConnectionTime)
}

func TestMetricsMessages(t *testing.T) {
	m := NewMetrics()

	m.RecordMessage("sent", 100, true)
	m.RecordMessage("sent", 200, true)
	m.RecordMessage("received", 50, false)

	assert.Equal(t, int64(2), m.MessagesSent)
	assert.Equal(t, int64(300), m.BytesSent)
	assert.Equal(t, int64(1), m.MessagesReceived)
	assert.Equal(t, int64(50), m.BytesReceived)
	assert.Equal(t, int64(1), m.MessageErrors)
}

func TestMetricsQueueDepth(t *testing.T) {
	m := NewMetrics()

	m.RecordQueueDepth(10)
	assert.Equal(t, int64(10), m.MaxQueueDepth)
	assert.Equal(t, int64(10), m.AvgQueueDepth)

	m.RecordQueueDepth(20)
	assert.Equal(t, int64(20), m.MaxQueueDepth)

	m.RecordQueueDepth(5)
	assert.Equal(t, int64(20), m.MaxQueueDepth)
}

func TestMetricsErrorsByType(t *testing.T) {
	m := NewMetrics()

	m.RecordError("write_failure")
	m.RecordError("write_failure")
	m.RecordError("upgrade_failure")

	assert.Equal(t, int64(2), m.ErrorsByType["write_failure"])
	assert.Equal(t, int64(1), m.ErrorsByType["upgrade_failure"])
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordConnection()
	m.RecordMessage("sent", 128, true)
	m.RecordDroppedMessage()

	snapshot := m.GetSnapshot()

	connections, ok := snapshot["connections"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, int64(1), connections["total"])

	messages, ok := snapshot["messages"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, int64(1), messages["sent"])
	assert.Equal(t, int64(128), messages["bytes_sent"])
	assert.Equal(t, int64(1), messages["dropped"])
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.RecordConnection()
	m.RecordMessage("sent", 100, true)
	m.RecordError("some_error")

	m.Reset()

	assert.Equal(t, int64(0), m.TotalConnections)
	assert.Equal(t, int64(0), m.MessagesSent)
	assert.Empty(t, m.ErrorsByType)
}

func TestGlobalMetrics(t *testing.T) {
	assert.NotNil(t, GetMetrics())
	assert.Same(t, GetMetrics(), GetMetrics())
}
