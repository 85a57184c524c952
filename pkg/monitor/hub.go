package monitor

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	plog "github.com/player-project/playerd/pkg/log"
)

// Hub buffer and timing limits.
const (
	clientBuffer = 256
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
	pongTimeout  = 60 * time.Second
)

// EventView is the JSON form of a protocol event.
type EventView struct {
	Time       time.Time `json:"time"`
	Connection string    `json:"connection,omitempty"`
	Direction  string    `json:"direction"`
	Layer      string    `json:"layer"`
	Category   string    `json:"category"`
	Remote     string    `json:"remote,omitempty"`
	Device     string    `json:"device,omitempty"`
	Driver     string    `json:"driver,omitempty"`

	Type    string `json:"type,omitempty"`
	Subtype *uint8 `json:"subtype,omitempty"`
	Size    uint32 `json:"size,omitempty"`

	Entity   string `json:"entity,omitempty"`
	OldState string `json:"old_state,omitempty"`
	NewState string `json:"new_state,omitempty"`
	Reason   string `json:"reason,omitempty"`

	Error string `json:"error,omitempty"`
}

// NewEventView flattens e for JSON clients.
func NewEventView(e plog.Event) EventView {
	v := EventView{
		Time:       e.Timestamp,
		Connection: e.ConnectionID,
		Direction:  e.Direction.String(),
		Layer:      e.Layer.String(),
		Category:   e.Category.String(),
		Remote:     e.RemoteAddr,
		Device:     e.Device,
		Driver:     e.Driver,
	}
	switch {
	case e.Message != nil:
		st := e.Message.Subtype
		v.Type = e.Message.Type.String()
		v.Subtype = &st
		v.Size = e.Message.Size
	case e.Frame != nil:
		v.Size = uint32(e.Frame.Size)
	case e.StateChange != nil:
		v.Entity = e.StateChange.Entity.String()
		v.OldState = e.StateChange.OldState
		v.NewState = e.StateChange.NewState
		v.Reason = e.StateChange.Reason
	case e.Error != nil:
		v.Error = e.Error.Message
		if e.Error.Context != "" {
			v.Reason = e.Error.Context
		}
	}
	return v
}

type hubClient struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// Hub streams protocol events to websocket clients. It implements
// log.Logger; slow clients lose events instead of blocking the server.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[*hubClient]struct{}
	closed  bool

	sent    atomic.Uint64
	dropped atomic.Uint64
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[*hubClient]struct{}),
	}
}

// Log fans e out to every connected client.
func (h *Hub) Log(e plog.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return
	}

	data, err := json.Marshal(NewEventView(e))
	if err != nil {
		return
	}
	for c := range h.clients {
		select {
		case c.send <- data:
			h.sent.Add(1)
		default:
			h.dropped.Add(1)
		}
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many events slow clients lost.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// ServeHTTP upgrades the request and streams events until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.debugLog("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &hubClient{conn: conn, send: make(chan []byte, clientBuffer), done: make(chan struct{})}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.debugLog("event client connected", "remote", r.RemoteAddr)

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop discards client input and notices disconnects.
func (h *Hub) readLoop(c *hubClient) {
	defer h.remove(c)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *hubClient) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer h.remove(c)

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(c *hubClient) {
	c.closeOnce.Do(func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = c.conn.Close()
	})
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*hubClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.remove(c)
	}
}

func (h *Hub) debugLog(msg string, args ...any) {
	if h.logger != nil {
		h.logger.Debug(msg, args...)
	}
}

var _ plog.Logger = (*Hub)(nil)
