package services

import (
	"github.com/stretchr/testify/mock"
)

// MockWebSocketHub is a mock for the operations.WebSocketHub interface
type MockWebSocketHub struct {
	mock.Mock
}

func (m *MockWebSocketHub) BroadcastUpdate(eventType, subtype, action string, data interface{}) {
	m.Called(eventType, subtype, action, data)
}
