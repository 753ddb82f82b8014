package websocket

import (
	"errors"
	"sync"
	"time"
)

// MockConnection is an in-memory Connection implementation for tests
type MockConnection struct {
	mu sync.Mutex

	WrittenMessages []MockMessage

	ReadMessages []MockMessage
	ReadIndex    int

	Closed bool

	ReadDeadline  time.Time
	WriteDeadline time.Time

	PongHandler  func(string) error
	PingHandler  func(string) error
	CloseHandler func(code int, text string) error

	RemoteAddress string
	ReadLimit     int64
}

// MockMessage represents a message for mocking
type MockMessage struct {
	Type int
	Data []byte
	Err  error
}

// NewMockConnection creates a new mock connection
func NewMockConnection() *MockConnection {
	return &MockConnection{
		WrittenMessages: make([]MockMessage, 0),
		ReadMessages:    make([]MockMessage, 0),
		RemoteAddress:   "127.0.0.1:8080",
	}
}

// WriteMessage stores the message for later inspection
func (m *MockConnection) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Closed {
		return errors.New("connection closed")
	}

	m.WrittenMessages = append(m.WrittenMessages, MockMessage{
		Type: messageType,
		Data: data,
	})

	return nil
}

// ReadMessage returns queued messages, then an error once drained
func (m *MockConnection) ReadMessage() (messageType int, p []byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Closed {
		return 0, nil, errors.New("connection closed")
	}

	if m.ReadIndex < len(m.ReadMessages) {
		msg := m.ReadMessages[m.ReadIndex]
		m.ReadIndex++
		return msg.Type, msg.Data, msg.Err
	}

	return 0, nil, errors.New("no more messages")
}

func (m *MockConnection) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Closed = true
	return nil
}

func (m *MockConnection) SetReadDeadline(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ReadDeadline = t
	return nil
}

func (m *MockConnection) SetWriteDeadline(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteDeadline = t
	return nil
}

func (m *MockConnection) SetReadLimit(limit int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ReadLimit = limit
}

func (m *MockConnection) SetPongHandler(h func(string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PongHandler = h
}

func (m *MockConnection) SetPingHandler(h func(string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PingHandler = h
}

func (m *MockConnection) SetCloseHandler(h func(code int, text string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CloseHandler = h
}

func (m *MockConnection) RemoteAddr() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.RemoteAddress
}

// AddReadMessage queues a message to be returned by ReadMessage
func (m *MockConnection) AddReadMessage(messageType int, data []byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ReadMessages = append(m.ReadMessages, MockMessage{
		Type: messageType,
		Data: data,
		Err:  err,
	})
}

// GetWrittenMessages returns a copy of all messages written to the connection
func (m *MockConnection) GetWrittenMessages() []MockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]MockMessage, len(m.WrittenMessages))
	copy(result, m.WrittenMessages)
	return result
}
