package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSDevice implements Device over a websocket client connection.
// Each websocket text message is one line.
type WSDevice struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

// NewWSDialer returns a Dialer that connects to the driver websocket at url.
func NewWSDialer(url string) Dialer {
	return DialFunc(func(ctx context.Context) (Device, error) {
		return DialWS(ctx, url)
	})
}

// DialWS connects to url.
func DialWS(ctx context.Context, url string) (*WSDevice, error) {
	d := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := d.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial driver %s: %w", url, err)
	}
	return &WSDevice{conn: conn}, nil
}

// NewWSDevice wraps an already established connection, such as one accepted
// by a websocket server.
func NewWSDevice(conn *websocket.Conn) *WSDevice {
	return &WSDevice{conn: conn}
}

// ReadLine reads one websocket message.
func (w *WSDevice) ReadLine(timeout time.Duration) (string, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := w.conn.SetReadDeadline(deadline); err != nil {
		return "", err
	}
	_, b, err := w.conn.ReadMessage()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteLine sends s as one text message.
func (w *WSDevice) WriteLine(s string) error {
	w.wmu.Lock()
	defer w.wmu.Unlock()
	if err := w.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.TextMessage, []byte(s))
}

// Close closes the websocket connection.
func (w *WSDevice) Close() error {
	return w.conn.Close()
}
