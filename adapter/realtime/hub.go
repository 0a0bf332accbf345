// Package realtime pushes committed project updates to websocket clients.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/felixgeelhaar/slate/internal/projects/application/commands"
	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/slate/pkg/observability"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096
)

// Subscription actions a client may send.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// ClientMessage is what clients send to change their subscriptions.
type ClientMessage struct {
	Action    string    `json:"action"`
	ProjectID uuid.UUID `json:"projectId"`
}

// HubConfig tunes the hub.
type HubConfig struct {
	// SendBuffer is the per-client queue length. A client whose queue is
	// full is disconnected.
	SendBuffer int
	// CheckOrigin overrides the upgrader origin check. Nil allows any origin.
	CheckOrigin func(r *http.Request) bool
}

// Hub fans project_updated events out to connected websocket clients. It is
// registered as an eventbus consumer for every project topic, and serves the
// websocket endpoint.
type Hub struct {
	upgrader websocket.Upgrader
	config   HubConfig
	logger   *slog.Logger
	metrics  observability.Metrics

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates an empty hub.
func NewHub(cfg HubConfig, logger *slog.Logger, metrics observability.Metrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		config:  cfg,
		logger:  logger,
		metrics: metrics,
		clients: make(map[*client]struct{}),
	}
}

// Topics implements eventbus.Consumer.
func (h *Hub) Topics() []string {
	return []string{commands.TopicPrefix + "*"}
}

// Handle implements eventbus.Consumer. The payload is forwarded verbatim to
// every client watching the project.
func (h *Hub) Handle(_ context.Context, d eventbus.Delivery) error {
	projectID, ok := commands.ProjectIDFromTopic(d.Topic)
	if !ok {
		return nil
	}

	h.mu.RLock()
	var slow []*client
	for c := range h.clients {
		if !c.watches(projectID) {
			continue
		}
		select {
		case c.send <- d.Payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow websocket client", observability.ProjectIDKey, projectID, "remote", c.remote)
		h.unregister(c)
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request. Repeated ?project=<id> parameters
// subscribe to those projects; without any the client receives every
// project's updates until it subscribes explicitly.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var initial []uuid.UUID
	for _, raw := range r.URL.Query()["project"] {
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid project id", http.StatusBadRequest)
			return
		}
		initial = append(initial, id)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", observability.ErrorKey, err)
		return
	}

	c := newClient(conn, h.config.SendBuffer, r.RemoteAddr)
	for _, id := range initial {
		c.subscribe(id)
	}
	h.register(c)

	go c.writePump()
	c.readPump(h.logger)
	h.unregister(c)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
	h.metrics.Gauge(observability.MetricWebsocketClients, 0)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.metrics.Gauge(observability.MetricWebsocketClients, float64(n))
	h.logger.Debug("websocket client connected", "remote", c.remote, "clients", n)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	c.close()
	h.metrics.Gauge(observability.MetricWebsocketClients, float64(n))
	h.logger.Debug("websocket client disconnected", "remote", c.remote, "clients", n)
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	remote string

	mu sync.RWMutex
	// unfiltered holds until the first subscription; after that an empty
	// set watches nothing.
	unfiltered bool
	projects   map[uuid.UUID]struct{}

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(conn *websocket.Conn, buffer int, remote string) *client {
	return &client{
		conn:       conn,
		send:       make(chan []byte, buffer),
		remote:     remote,
		unfiltered: true,
		projects:   make(map[uuid.UUID]struct{}),
		done:       make(chan struct{}),
	}
}

// watches reports whether the client wants updates for id. A client that
// never subscribed watches everything.
func (c *client) watches(id uuid.UUID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.unfiltered {
		return true
	}
	_, ok := c.projects[id]
	return ok
}

func (c *client) subscribe(id uuid.UUID) {
	c.mu.Lock()
	c.unfiltered = false
	c.projects[id] = struct{}{}
	c.mu.Unlock()
}

func (c *client) unsubscribe(id uuid.UUID) {
	c.mu.Lock()
	delete(c.projects, id)
	c.mu.Unlock()
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *client) readPump(logger *slog.Logger) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("websocket read failed", "remote", c.remote, observability.ErrorKey, err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.ProjectID == uuid.Nil {
			continue
		}
		switch msg.Action {
		case ActionSubscribe:
			c.subscribe(msg.ProjectID)
		case ActionUnsubscribe:
			c.unsubscribe(msg.ProjectID)
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}
