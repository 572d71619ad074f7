package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeDeadline = 5 * time.Second

// WSConn adapts a gorilla websocket connection to Conn.
// Writes are serialized; reads belong to the connection's own handler loop.
type WSConn struct {
	id     string
	conn   *websocket.Conn
	wmu    sync.Mutex
	once   sync.Once
	closed chan struct{}
}

// NewWSConn wraps conn with a fresh client ID.
func NewWSConn(conn *websocket.Conn) *WSConn {
	return &WSConn{id: uuid.NewString(), conn: conn, closed: make(chan struct{})}
}

// ID returns the client ID.
func (c *WSConn) ID() string { return c.id }

// Send writes one text message.
func (c *WSConn) Send(msg []byte) error {
	select {
	case <-c.closed:
		return ErrClientClosed
	default:
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

// Read blocks for the next inbound message.
func (c *WSConn) Read() ([]byte, error) {
	_, b, err := c.conn.ReadMessage()
	return b, err
}

// Close closes the underlying connection once.
func (c *WSConn) Close() error {
	err := ErrClientClosed
	c.once.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}
