package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"opsunify/internal/infrastructure"
	"opsunify/pkg/contracts/events"
)

// Message type constants shared with the frontend protocol
const (
	TypeConnection  = string(events.MessageTypeConnection)
	TypeRunSnapshot = string(events.MessageTypeRunSnapshot)
	TypeError       = string(events.MessageTypeError)
)

// Hub maintains the set of active clients and broadcasts messages to the clients
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Inbound messages from the clients
	broadcast chan []byte

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Mutex for thread-safe operations
	mu sync.RWMutex

	// Logger instance
	logger *slog.Logger

	// Metrics, guarded by mu
	totalConnections int64
	activConnections int64
	messagesSent     int64
	connectionErrors int64

	// Control
	quit        chan struct{}
	running     bool
	metricsQuit chan struct{}
}

// NewHub creates a new Hub instance with dependency injection
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger = logger.With(slog.String("component", "websocket.hub"))

	hub := &Hub{
		broadcast:   make(chan []byte),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		clients:     make(map[*Client]bool),
		logger:      logger,
		quit:        make(chan struct{}),
		metricsQuit: make(chan struct{}),
	}

	return hub
}

// Start starts the hub's goroutines
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	// Start the main hub loop
	go h.Run()

	// Start metrics reporting
	go h.reportMetrics()
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.logger.Info("Hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.totalConnections++
			h.activConnections = int64(count)
			h.mu.Unlock()

			ctx := context.Background()
			if client.traceID != "" {
				ctx = infrastructure.WithTraceID(ctx, client.traceID)
			}

			h.logger.InfoContext(ctx, "Client registered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))

			// Update metrics
			metrics := GetMetrics()
			metrics.RecordConnection()

			// Record OpenTelemetry metrics
			if otelMetrics := GetOTelMetrics(); otelMetrics != nil {
				otelMetrics.RecordConnection(ctx, client.id, client.remoteAddr)
				otelMetrics.RecordClientCount(ctx, int64(count))
			}

			// Send connection success message to the newly connected client
			connMsg := events.NewMessage(events.MessageTypeConnection, events.ConnectionPayload{
				Status:   "connected",
				Message:  "Connected to opsunify",
				ClientID: client.id,
			})
			connMsg.TraceID = client.traceID

			jsonData, err := json.Marshal(connMsg)
			if err == nil {
				select {
				case client.send <- jsonData:
					h.logger.DebugContext(ctx, "Sent connection message to client",
						slog.String("client_id", client.id))
				default:
					h.logger.WarnContext(ctx, "Failed to send connection message - client buffer full",
						slog.String("client_id", client.id))
				}
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				count := len(h.clients)
				h.activConnections = int64(count)
				h.mu.Unlock()

				ctx := context.Background()
				if client.traceID != "" {
					ctx = infrastructure.WithTraceID(ctx, client.traceID)
				}

				h.logger.InfoContext(ctx, "Client unregistered",
					slog.Int("total_clients", count),
					slog.String("client_id", client.id),
					slog.Duration("connection_duration", time.Since(client.connectedAt)))

				// Update metrics
				metrics := GetMetrics()
				metrics.RecordDisconnection(time.Since(client.connectedAt))

				// Record OpenTelemetry metrics
				if otelMetrics := GetOTelMetrics(); otelMetrics != nil {
					otelMetrics.RecordDisconnection(ctx, client.id, time.Since(client.connectedAt), "normal")
					otelMetrics.RecordClientCount(ctx, int64(count))
				}
			} else {
				h.mu.Unlock()
			}

		case message := <-h.broadcast:
			h.mu.RLock()
			// Create a copy of clients to avoid holding lock during send
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			h.logger.Debug("Broadcasting message to clients",
				slog.Int("client_count", len(clients)),
				slog.Int("message_size", len(message)))

			successCount := 0
			failCount := 0

			// Send to all clients
			for _, client := range clients {
				select {
				case client.send <- message:
					successCount++
				default:
					failCount++
					// Client's send channel is full, close it
					h.mu.Lock()
					close(client.send)
					delete(h.clients, client)
					h.connectionErrors++
					h.mu.Unlock()

					ctx := context.Background()
					if client.traceID != "" {
						ctx = infrastructure.WithTraceID(ctx, client.traceID)
					}
					h.logger.WarnContext(ctx, "Client send buffer full, disconnecting",
						slog.String("client_id", client.id))
				}
			}

			h.mu.Lock()
			h.messagesSent += int64(successCount)
			h.mu.Unlock()

			if failCount > 0 {
				h.logger.Warn("Some clients failed to receive broadcast",
					slog.Int("success_count", successCount),
					slog.Int("fail_count", failCount))
			}

			// Record OpenTelemetry metrics for broadcast
			if otelMetrics := GetOTelMetrics(); otelMetrics != nil {
				ctx := context.Background()
				otelMetrics.RecordBroadcast(ctx, "broadcast", int64(len(clients)), int64(successCount), int64(failCount))
			}
		}
	}
}

// BroadcastUpdate sends a data update message to all connected clients
func (h *Hub) BroadcastUpdate(updateType, subtype, action string, data interface{}) {
	h.BroadcastUpdateWithTrace(updateType, subtype, action, data, "")
}

// BroadcastUpdateWithTrace sends a data update message with trace ID to all connected clients
func (h *Hub) BroadcastUpdateWithTrace(updateType, subtype, action string, data interface{}, traceID string) {
	message := events.NewMessage(events.MessageType(updateType), data)
	message.TraceID = traceID

	// For run:snapshot, the data already carries the complete run state.
	// Other event types keep the subtype/action envelope fields.
	if updateType != TypeRunSnapshot && updateType != "" {
		message.Subtype = subtype
		message.Action = action
	}

	h.broadcastJSON(message)
}

// broadcastJSON is a helper method to send JSON messages
func (h *Hub) broadcastJSON(message events.Message) {
	jsonData, err := json.Marshal(message)
	if err != nil {
		ctx := context.Background()
		if message.TraceID != "" {
			ctx = infrastructure.WithTraceID(ctx, message.TraceID)
		}
		h.logger.ErrorContext(ctx, "Error marshaling message",
			slog.String("error", err.Error()),
			slog.String("message_type", string(message.Type)))
		return
	}

	h.broadcast <- jsonData
}

// BroadcastError sends a structured error message
func (h *Hub) BroadcastError(code, message, details, step string, recoverable bool) {
	errorMsg := events.NewMessage(events.MessageTypeError, events.ErrorPayload{
		Code:        code,
		Message:     message,
		Details:     details,
		Step:        step,
		Recoverable: recoverable,
	})

	jsonData, err := json.Marshal(errorMsg)
	if err != nil {
		h.logger.Error("Error marshaling error message", slog.String("error", err.Error()))
		return
	}

	h.broadcast <- jsonData
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast implements the services.WebSocketHub interface
func (h *Hub) Broadcast(messageType string, data interface{}) {
	h.BroadcastUpdate(messageType, "", "", data)
}

// Stop gracefully stops the hub
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	// Signal goroutines to stop
	close(h.quit)
	close(h.metricsQuit)

	// Close all client connections
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// reportMetrics periodically reports hub metrics
func (h *Hub) reportMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.metricsQuit:
			h.logger.Info("Metrics reporting shutting down")
			return

		case <-ticker.C:
			h.mu.RLock()
			activeClients := len(h.clients)
			totalConnections := h.totalConnections
			messagesSent := h.messagesSent
			h.mu.RUnlock()

			metrics := GetMetrics()
			metrics.RecordQueueDepth(int64(len(h.broadcast)))

			// Log current metrics
			h.logger.Info("WebSocket hub metrics",
				slog.Int("active_clients", activeClients),
				slog.Int64("total_connections", totalConnections),
				slog.Int64("messages_sent", messagesSent),
				slog.Int("broadcast_queue", len(h.broadcast)),
			)
		}
	}
}

// GetHubMetrics returns current hub metrics
func (h *Hub) GetHubMetrics() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return map[string]interface{}{
		"active_clients":    len(h.clients),
		"total_connections": h.totalConnections,
		"messages_sent":     h.messagesSent,
		"connection_errors": h.connectionErrors,
	}
}
