package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog"
	"github.com/tuneedit/api/internal/log"
	"github.com/tuneedit/api/internal/model"
)

// Client represents a WebSocket client
type Client struct {
	SessionID string
	Conn      *websocket.Conn
	Send      chan []byte
}

// Hub maintains active WebSocket connections
type Hub struct {
	// Clients grouped by session ID
	clients map[string]map[*Client]bool

	// Register requests
	register chan registration

	// Unregister requests
	unregister chan *Client

	// Broadcast messages to session subscribers
	broadcast chan *BroadcastMessage

	mu     sync.RWMutex
	logger zerolog.Logger
}

type registration struct {
	client *Client
	done   chan struct{}
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	SessionID string
	Message   []byte
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan registration),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
		logger:     log.WithComponent("ws_hub"),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case reg := <-h.register:
			client := reg.client
			h.mu.Lock()
			if h.clients[client.SessionID] == nil {
				h.clients[client.SessionID] = make(map[*Client]bool)
			}
			h.clients[client.SessionID][client] = true
			h.mu.Unlock()
			close(reg.done)
			h.logger.Debug().Str("session_id", client.SessionID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			h.logger.Debug().Str("session_id", client.SessionID).Msg("client unregistered")

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[msg.SessionID] {
				select {
				case client.Send <- msg.Message:
				default:
					// slow reader
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with mu held.
func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.SessionID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.clients, client.SessionID)
	}
}

// Register adds a new client. It returns once the client is visible to
// ClientCount and broadcasts.
func (h *Hub) Register(client *Client) {
	done := make(chan struct{})
	h.register <- registration{client: client, done: done}
	<-done
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// ClientCount returns the number of pages attached to a session.
func (h *Hub) ClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

func (h *Hub) send(sessionID string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal websocket message")
		return
	}

	h.broadcast <- &BroadcastMessage{
		SessionID: sessionID,
		Message:   data,
	}
}

// BroadcastBridge asks every page of the session to run a host bridge command
func (h *Hub) BroadcastBridge(sessionID, command string) {
	h.send(sessionID, model.WSBridgeMessage{
		Type:    model.WSMessageTypeBridge,
		Command: command,
	})
}

// BroadcastProgress sends a submission status change
func (h *Hub) BroadcastProgress(sessionID, jobID string, status model.JobStatus) {
	h.send(sessionID, model.WSProgressMessage{
		Type:   model.WSMessageTypeProgress,
		JobID:  jobID,
		Status: status,
	})
}

// BroadcastComplete sends a completion message
func (h *Hub) BroadcastComplete(sessionID, jobID string) {
	h.send(sessionID, model.WSCompleteMessage{
		Type:  model.WSMessageTypeComplete,
		JobID: jobID,
	})
}

// BroadcastError sends an error message
func (h *Hub) BroadcastError(sessionID, jobID, code, message string) {
	h.send(sessionID, model.WSErrorMessage{
		Type:  model.WSMessageTypeError,
		JobID: jobID,
		Error: model.WSError{
			Code:    code,
			Message: message,
		},
	})
}

// HandleConnection handles a WebSocket connection. onAttach runs once the
// client is registered, so anything it broadcasts reaches this page. It
// returns only after the writer has stopped using the connection.
func (h *Hub) HandleConnection(c *websocket.Conn, sessionID string, onAttach func()) {
	client := &Client{
		SessionID: sessionID,
		Conn:      c,
		Send:      make(chan []byte, 256),
	}

	h.Register(client)

	if onAttach != nil {
		onAttach()
	}

	writerDone := make(chan struct{})
	go writePump(c, client.Send, pingInterval, writerDone)

	// Reader loop
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Str("session_id", sessionID).Msg("websocket error")
			}
			break
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == model.WSMessageTypePing {
			h.send(sessionID, model.WSMessage{Type: model.WSMessageTypePong})
		}
	}

	h.Unregister(client)
	<-writerDone
}

const pingInterval = 30 * time.Second

// messageWriter is the write side of a websocket connection.
type messageWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// writePump forwards queued messages and keep-alive pings to w until send is
// closed or a write fails. done is closed when it stops.
func writePump(w messageWriter, send <-chan []byte, interval time.Duration, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-send:
			if !ok {
				_ = w.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := w.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := w.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
