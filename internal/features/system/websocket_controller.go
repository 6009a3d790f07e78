package system

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

// Event is pushed to every connected websocket client.
type Event struct {
	Type      string    `json:"type"`
	Config    string    `json:"config,omitempty"`
	Script    string    `json:"script,omitempty"`
	Success   *bool     `json:"success,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// WebSocketController keeps the open connections and fans events out to them.
type WebSocketController struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
	logger  *zap.Logger
}

func NewWebSocketController(logger *zap.Logger) *WebSocketController {
	return &WebSocketController{
		clients: make(map[*websocket.Conn]chan []byte),
		logger:  logger.Named("ws"),
	}
}

// Broadcast queues the event for every client. Slow clients drop events.
func (h *WebSocketController) Broadcast(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	msg, err := json.Marshal(e)
	if err != nil {
		h.logger.Error("Failed to encode event", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, out := range h.clients {
		select {
		case out <- msg:
		default:
			h.logger.Warn("Dropping event for slow client", zap.String("remote", conn.RemoteAddr().String()))
		}
	}
}

func (h *WebSocketController) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *WebSocketController) HandleWebSocket(c *websocket.Conn) {
	out := make(chan []byte, 32)
	h.mu.Lock()
	h.clients[c] = out
	h.mu.Unlock()

	done := make(chan struct{})
	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		close(done)
	}()

	go func() {
		for {
			select {
			case msg := <-out:
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					h.logger.Debug("write", zap.Error(err))
					return
				}
			case <-done:
				return
			}
		}
	}()

	// Clients only listen; reading detects the close.
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			h.logger.Debug("read", zap.Error(err))
			return
		}
	}
}
