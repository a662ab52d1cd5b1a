// ABOUTME: Single WebSocket connection wrapper with serialized writes.
// ABOUTME: Tracks which agent name, if any, the connection is logged in as.

package hub

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// writeWait bounds how long a single write may block on a slow peer. A
// connection that cannot drain within this window gets a write error and
// is dropped by its read loop. Variable so tests can shorten it.
var writeWait = 10 * time.Second

// Conn wraps one WebSocket connection. gorilla/websocket allows only one
// concurrent writer, so all sends go through the mutex.
type Conn struct {
	id string
	ws *websocket.Conn

	writeMu sync.Mutex

	mu        sync.Mutex
	agentName string
}

func newConn(ws *websocket.Conn) *Conn {
	return &Conn{id: uuid.New().String(), ws: ws}
}

// ID returns the connection's session identifier.
func (c *Conn) ID() string {
	return c.id
}

// Send marshals the payload into an envelope and writes it.
func (c *Conn) Send(event string, payload any) error {
	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding %s payload: %w", event, err)
		}
		env.Data = data
	}

	msg, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding %s envelope: %w", event, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, msg)
}

// AgentName returns the name this connection logged in as, or "".
func (c *Conn) AgentName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agentName
}

func (c *Conn) setAgentName(name string) {
	c.mu.Lock()
	c.agentName = name
	c.mu.Unlock()
}

func (c *Conn) close() error {
	return c.ws.Close()
}
