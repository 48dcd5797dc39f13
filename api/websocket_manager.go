package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tagtint/logger"
)

// writeWait bounds every websocket write so a client that stops reading is
// dropped instead of holding its writer forever.
const writeWait = 10 * time.Second

// wsClient owns one connection. Only its writer goroutine writes to conn.
// pending holds the newest undelivered message; older ones are replaced.
type wsClient struct {
	id   string
	conn *websocket.Conn

	mu      sync.Mutex
	pending any
	queued  bool

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

// offer queues message for delivery without blocking.
func (c *wsClient) offer(message any) {
	c.mu.Lock()
	c.pending = message
	c.queued = true
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *wsClient) take() (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	message, ok := c.pending, c.queued
	c.pending, c.queued = nil, false
	return message, ok
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// WSConnectionManager tracks front-end connections that receive style updates.
type WSConnectionManager struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]*wsClient
	log     *logger.Logger
}

// NewWSConnectionManager creates an empty manager.
func NewWSConnectionManager(log *logger.Logger) *WSConnectionManager {
	return &WSConnectionManager{
		clients: make(map[*websocket.Conn]*wsClient),
		log:     log,
	}
}

// Add registers conn under id and starts its writer.
func (m *WSConnectionManager) Add(id string, conn *websocket.Conn) {
	c := &wsClient{
		id:   id,
		conn: conn,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}

	m.mu.Lock()
	m.clients[conn] = c
	m.mu.Unlock()

	go m.writeLoop(c)
}

// Remove forgets conn and closes it.
func (m *WSConnectionManager) Remove(conn *websocket.Conn) {
	m.mu.Lock()
	c, ok := m.clients[conn]
	delete(m.clients, conn)
	m.mu.Unlock()

	if ok {
		c.close()
	}
}

// CloseAll drops every connection.
func (m *WSConnectionManager) CloseAll() {
	m.mu.Lock()
	clients := m.clients
	m.clients = make(map[*websocket.Conn]*wsClient)
	m.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

// Len returns the number of open connections.
func (m *WSConnectionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Broadcast queues message for every connection and returns immediately.
// A client that has not yet received an earlier message only gets the newest.
func (m *WSConnectionManager) Broadcast(message any) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.clients {
		c.offer(message)
	}
}

// Send queues message for a single connection.
func (m *WSConnectionManager) Send(conn *websocket.Conn, message any) bool {
	m.mu.RLock()
	c, ok := m.clients[conn]
	m.mu.RUnlock()

	if ok {
		c.offer(message)
	}
	return ok
}

func (m *WSConnectionManager) writeLoop(c *wsClient) {
	for {
		select {
		case <-c.done:
			return
		case <-c.wake:
		}

		message, ok := c.take()
		if !ok {
			continue
		}
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(message); err != nil {
			m.log.WithFields(map[string]any{"client": c.id}).Debug("dropped websocket client")
			m.Remove(c.conn)
			return
		}
	}
}
