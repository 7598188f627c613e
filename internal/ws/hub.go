package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	replacedReason = "replaced by a newer connection"
)

// ErrConnectionGone is returned when the addressed connection is no longer held.
var ErrConnectionGone = errors.New("connection gone")

// Conn is the part of *websocket.Conn the hub writes through.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client is one live connection. Writes are serialized because a websocket connection
// supports a single concurrent writer.
type Client struct {
	conn Conn
	info ConnInfo
	mu   sync.Mutex
}

func (c *Client) Info() ConnInfo {
	return c.info
}

func (c *Client) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// CloseWith sends a close frame with code and reason, then closes the socket.
func (c *Client) CloseWith(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
	_ = c.conn.Close()
}

// Hub holds the connections of this instance. Each user has at most one.
type Hub struct {
	byUser map[string]*Client
	byConn map[string]*Client
	mu     sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		byUser: make(map[string]*Client),
		byConn: make(map[string]*Client),
	}
}

// Register adds a connection for info.UserID. A previous connection of the same user is
// detached and returned so the caller can close it.
func (h *Hub) Register(info ConnInfo, conn Conn) (client *Client, replaced *Client) {
	client = &Client{conn: conn, info: info}
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.byUser[info.UserID]; ok {
		delete(h.byConn, old.info.ConnID)
		replaced = old
	}
	h.byUser[info.UserID] = client
	h.byConn[info.ConnID] = client
	return client, replaced
}

// Unregister removes the user's connection only if it is still connID.
func (h *Hub) Unregister(userID, connID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	current, ok := h.byUser[userID]
	if !ok || current.info.ConnID != connID {
		return false
	}
	delete(h.byUser, userID)
	delete(h.byConn, connID)
	return true
}

// Evict detaches connID and returns its client so the caller can close it.
func (h *Hub) Evict(connID string) (*Client, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.byConn[connID]
	if !ok {
		return nil, false
	}
	delete(h.byConn, connID)
	if h.byUser[c.info.UserID] == c {
		delete(h.byUser, c.info.UserID)
	}
	return c, true
}

func (h *Hub) Lookup(connID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.byConn[connID]
	return c, ok
}

// SendTo writes payload to the connection. A failed write drops the connection.
func (h *Hub) SendTo(connID string, payload []byte) error {
	c, ok := h.Lookup(connID)
	if !ok {
		return ErrConnectionGone
	}
	if err := c.Send(payload); err != nil {
		_ = c.conn.Close()
		h.Unregister(c.info.UserID, connID)
		return err
	}
	return nil
}

// Broadcast writes payload to every connection and returns how many accepted it.
func (h *Hub) Broadcast(payload []byte) int {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.byConn))
	for _, c := range h.byConn {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range clients {
		if err := c.Send(payload); err != nil {
			_ = c.conn.Close()
			h.Unregister(c.info.UserID, c.info.ConnID)
			continue
		}
		sent++
	}
	return sent
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byConn)
}

// CloseAll closes every connection, used on shutdown.
func (h *Hub) CloseAll(reason string) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.byConn))
	for _, c := range h.byConn {
		clients = append(clients, c)
	}
	h.byUser = make(map[string]*Client)
	h.byConn = make(map[string]*Client)
	h.mu.Unlock()

	for _, c := range clients {
		c.CloseWith(websocket.CloseGoingAway, reason)
	}
}
