// Package ws is the gorilla/websocket transport for the hub. It owns the
// connection lifecycle (upgrade, pumps, close) and the boundary validation
// of every inbound event payload; the hub behind it only sees typed calls.
package ws

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/campuslink/realtime/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

// wsConn pairs the socket with a buffered outbound queue. TrySend never
// blocks: a full buffer is reported as backpressure and the hub's policy
// decides what happens to the frame.
type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsConn(conn *websocket.Conn, buffer int) *wsConn {
	return &wsConn{
		conn: conn,
		send: make(chan core.Frame, buffer),
	}
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}
