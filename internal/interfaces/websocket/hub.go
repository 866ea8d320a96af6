// Package websocket pushes workflow notifications to dashboard clients
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/aibymlMelissa/aibyml-business/internal/domain/event"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// TypeConnectionEstablished is the greeting sent to every new subscriber
const TypeConnectionEstablished = "connection_established"

// TimestampFormat is ISO8601 with millisecond precision in UTC
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

const (
	defaultSendBuffer   = 64
	defaultWriteTimeout = 10 * time.Second
	defaultPingInterval = 30 * time.Second
	maxMessageSize      = 4096
)

// ErrHubClosed is returned when subscribing to a closed hub
var ErrHubClosed = errors.New("notification hub closed")

// Message is the frame delivered to subscribers
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// Config holds hub settings
type Config struct {
	SendBuffer   int
	WriteTimeout time.Duration
	PingInterval time.Duration
	// CheckOrigin decides which browser origins may connect; all when nil
	CheckOrigin func(r *http.Request) bool
}

// Hub fans notifications out to every connected subscriber. Each subscriber
// has a bounded send queue; a subscriber that falls behind or whose
// connection fails is dropped without affecting the broadcaster.
type Hub struct {
	cfg      Config
	upgrader websocket.Upgrader
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub creates an empty hub
func NewHub(cfg Config, logger *zap.Logger) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Hub{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger:  logger,
		now:     time.Now,
		clients: make(map[*client]struct{}),
	}
}

// Broadcast sends one message to every current subscriber. It never blocks
// on a subscriber and never reports delivery failures.
func (h *Hub) Broadcast(eventType string, data interface{}) {
	frame, err := h.encode(eventType, data)
	if err != nil {
		h.logger.Error("Failed to encode notification",
			zap.String("type", eventType),
			zap.Error(err))
		return
	}

	var dropped []*client

	h.mu.Lock()
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			delete(h.clients, c)
			dropped = append(dropped, c)
		}
	}
	h.mu.Unlock()

	for _, c := range dropped {
		h.logger.Info("Dropping slow subscriber", zap.String("client_id", c.id))
		c.close()
	}
}

// HandleEvent forwards a domain event; it is meant to be subscribed on the dispatcher
func (h *Hub) HandleEvent(_ context.Context, evt *event.Event) error {
	h.Broadcast(evt.Type.String(), evt.Data)
	return nil
}

// SubscriberCount returns the number of connected subscribers
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and registers the connection as a subscriber
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, h.cfg.SendBuffer),
	}

	greeting, err := h.encode(TypeConnectionEstablished, nil)
	if err != nil {
		_ = conn.Close()
		return
	}
	cl.send <- greeting

	if err := h.register(cl); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(h.cfg.WriteTimeout))
		_ = conn.Close()
		return
	}

	h.logger.Info("WebSocket connection established",
		zap.String("client_id", cl.id),
		zap.String("remote_addr", c.Request.RemoteAddr))

	go h.writePump(cl)
	go h.readPump(cl)
}

// Close disconnects every subscriber and refuses new ones
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
	return nil
}

func (h *Hub) register(c *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	h.clients[c] = struct{}{}
	return nil
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if ok {
		h.logger.Info("WebSocket connection closed", zap.String("client_id", c.id))
	}
	c.close()
}

func (h *Hub) encode(eventType string, data interface{}) ([]byte, error) {
	return json.Marshal(Message{
		Type:      eventType,
		Data:      data,
		Timestamp: h.now().UTC().Format(TimestampFormat),
	})
}

// readPump discards client frames and unregisters the client once the
// connection fails or closes
func (h *Hub) readPump(c *client) {
	defer h.unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	pongWait := h.cfg.PingInterval * 2
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump drains the send queue and pings; it owns every write on conn
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.unregister(c)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(c)
				return
			}
		}
	}
}
