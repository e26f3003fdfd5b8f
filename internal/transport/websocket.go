// ABOUTME: WebSocket channel implementation
// ABOUTME: Carries the byte stream as binary messages over gorilla/websocket
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/Resonate-Protocol/micstream/pkg/stream"
	"github.com/gorilla/websocket"
)

// WSChannel is a stream.Channel over a WebSocket. Each WriteAll is one
// binary message; Read flattens incoming messages back into a byte stream.
type WSChannel struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	readMu  sync.Mutex
	pending io.Reader

	closeOnce sync.Once
	closeErr  error
}

// DialWebSocket connects to ws://address/stream.
func DialWebSocket(ctx context.Context, address string) (*WSChannel, error) {
	u := url.URL{Scheme: "ws", Host: address, Path: WebSocketPath}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, stream.Wrap(stream.ErrConnection, "dial ws", fmt.Errorf("dial failed: %w", err))
	}
	return NewWSChannel(conn), nil
}

// NewWSChannel wraps an established WebSocket connection.
func NewWSChannel(conn *websocket.Conn) *WSChannel {
	return &WSChannel{conn: conn}
}

// WriteAll sends p as a single binary message.
func (c *WSChannel) WriteAll(p []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, p)
}

// Read returns bytes from the current message, advancing to the next one
// when it is exhausted. A normal close from the peer reads as io.EOF.
func (c *WSChannel) Read(p []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	for {
		if c.pending == nil {
			_, r, err := c.conn.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			c.pending = r
		}

		n, err := c.pending.Read(p)
		if errors.Is(err, io.EOF) {
			c.pending = nil
			if n == 0 {
				continue
			}
			return n, nil
		}
		return n, err
	}
}

// CancelRead unblocks a pending Read.
func (c *WSChannel) CancelRead() error {
	return c.conn.SetReadDeadline(pastDeadline)
}

// Close sends a close frame and closes the connection.
func (c *WSChannel) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		// WriteControl may run concurrently with a stuck WriteAll.
		err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeTimeout))
		if err != nil && !errors.Is(err, websocket.ErrCloseSent) && !errors.Is(err, net.ErrClosed) {
			log.Printf("Warning: websocket close frame failed: %v", err)
		}
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// RemoteAddr returns the peer address.
func (c *WSChannel) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

var _ stream.Channel = (*WSChannel)(nil)
