package stream

import (
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Event is a single message pushed to stream subscribers.
type Event struct {
	Type string      `json:"type"`
	Time int64       `json:"time"`
	Data interface{} `json:"data"`
}

// HubConfig holds hub configuration.
type HubConfig struct {
	// BufferSize is the per-client send queue depth. Clients that
	// fall more than a full buffer behind are disconnected.
	BufferSize int
	Logger     *zap.Logger
}

// Hub fans committed events out to websocket subscribers. Slow
// consumers are dropped rather than allowed to backpressure trading.
type Hub struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader
	buffer   int

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a new event hub.
func NewHub(cfg *HubConfig) *Hub {
	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = 256
	}

	return &Hub{
		logger: cfg.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		buffer:  buffer,
		clients: make(map[*client]struct{}),
	}
}

// HandleWS upgrades an HTTP request to a websocket subscription.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("stream-upgrade-failed", zap.Error(err))
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, h.buffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	streamClients.Set(float64(count))
	h.logger.Info("stream-client-connected",
		zap.String("remote-addr", r.RemoteAddr),
		zap.Int("clients", count))

	go h.writePump(c)
	go h.readPump(c)
}

// Publish broadcasts an event to every connected subscriber.
func (h *Hub) Publish(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("stream-marshal-failed",
			zap.String("event-type", event.Type),
			zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	eventsPublished.WithLabelValues(event.Type).Inc()

	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// Queue full: the client cannot keep up.
			eventsDropped.Inc()
			delete(h.clients, c)
			close(c.send)
		}
	}
	streamClients.Set(float64(len(h.clients)))
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every subscriber and rejects new connections.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	streamClients.Set(0)

	h.logger.Info("stream-hub-closed")
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	streamClients.Set(float64(count))
	c.conn.Close()
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains inbound frames so pong handlers fire and close
// frames are detected. Subscribers never send application data.
func (h *Hub) readPump(c *client) {
	defer h.remove(c)

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
