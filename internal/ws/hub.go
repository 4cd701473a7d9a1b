// Package ws manages the websocket connections that deliver realtime
// activity events to browser clients, grouped by organization.
package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Connection wraps a websocket.Conn with membership metadata.
type Connection struct {
	Conn           *websocket.Conn
	OrganizationID string

	// lastSeen is written by the reader goroutine and read by Heartbeat.
	mu       sync.Mutex
	lastSeen time.Time
}

// Touch records pong activity on the connection.
func (c *Connection) Touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

func (c *Connection) idleFor() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.lastSeen)
}

// Hub tracks connections per organization.
type Hub struct {
	logger *zap.Logger

	mu          sync.RWMutex
	connections map[string]map[*Connection]struct{}
}

// NewHub constructs an empty Hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:      logger,
		connections: make(map[string]map[*Connection]struct{}),
	}
}

// Add registers a connection under its organization.
func (h *Hub) Add(organizationID string, conn *websocket.Conn) *Connection {
	c := &Connection{Conn: conn, OrganizationID: organizationID, lastSeen: time.Now()}

	h.mu.Lock()
	if _, ok := h.connections[organizationID]; !ok {
		h.connections[organizationID] = make(map[*Connection]struct{})
	}
	h.connections[organizationID][c] = struct{}{}
	total := len(h.connections[organizationID])
	h.mu.Unlock()

	h.logger.Info("websocket connected",
		zap.String("organization_id", organizationID), zap.Int("connections", total))
	return c
}

// Remove disconnects and forgets a connection.
func (h *Hub) Remove(c *Connection) {
	h.mu.Lock()
	if conns, ok := h.connections[c.OrganizationID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.connections, c.OrganizationID)
		}
	}
	h.mu.Unlock()

	_ = c.Conn.Close()
	h.logger.Info("websocket disconnected", zap.String("organization_id", c.OrganizationID))
}

// Send writes a JSON message to every connection of one organization.
func (h *Hub) Send(organizationID string, message interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.connections[organizationID] {
		if err := c.Conn.WriteJSON(message); err != nil {
			h.logger.Warn("websocket send failed",
				zap.String("organization_id", organizationID), zap.Error(err))
			go h.Remove(c)
		}
	}
}

// Heartbeat pings connections periodically and drops the ones that stopped
// answering. Blocks until the ticker is stopped by process exit.
func (h *Hub) Heartbeat(interval time.Duration) {
	ticker := time.NewTicker(interval)
	for range ticker.C {
		h.mu.RLock()
		for _, conns := range h.connections {
			for c := range conns {
				if c.idleFor() > 2*interval {
					go h.Remove(c)
					continue
				}
				_ = c.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second))
			}
		}
		h.mu.RUnlock()
	}
}
