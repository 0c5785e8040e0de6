package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	readWait  = 5 * time.Minute
)

// Conn serializes writes: controller events and action replies are sent from
// different goroutines, and gorilla allows one concurrent writer.
type Conn struct {
	*websocket.Conn
	mu sync.Mutex
}

func Wrap(conn *websocket.Conn) *Conn {
	return &Conn{Conn: conn}
}

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func (c *Conn) WriteTyped(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.SetWriteDeadline(time.Now().Add(writeWait))
	return c.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func (c *Conn) WriteError(code, errMsg string) error {
	return c.WriteTyped(ErrorResponse{
		Event: EventError,
		Code:  code,
		Error: errMsg,
	})
}

// ReadRequest reads and decodes the next action. It sets a read deadline.
func (c *Conn) ReadRequest() (RequestPayload, error) {
	var msg RequestPayload
	_ = c.SetReadDeadline(time.Now().Add(readWait))
	err := c.ReadJSON(&msg)
	return msg, err
}
