// ABOUTME: TCP channel implementation
// ABOUTME: Plain byte stream over net.Conn
package transport

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/Resonate-Protocol/micstream/pkg/stream"
)

// TCPChannel is a stream.Channel over a TCP connection.
type TCPChannel struct {
	conn net.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// DialTCP connects to address.
func DialTCP(ctx context.Context, address string) (*TCPChannel, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, stream.Wrap(stream.ErrConnection, "dial tcp", fmt.Errorf("dial failed: %w", err))
	}
	log.Printf("Connected to %s (tcp)", conn.RemoteAddr())
	return NewTCPChannel(conn), nil
}

// NewTCPChannel wraps an established connection.
func NewTCPChannel(conn net.Conn) *TCPChannel {
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
	}
	return &TCPChannel{conn: conn}
}

// WriteAll writes p in full. net.Conn.Write only returns early on error.
func (c *TCPChannel) WriteAll(p []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.conn.Write(p); err != nil {
		return err
	}
	return nil
}

// Read reads whatever bytes are available.
func (c *TCPChannel) Read(p []byte) (int, error) {
	return c.conn.Read(p)
}

// CancelRead unblocks a pending Read.
func (c *TCPChannel) CancelRead() error {
	return c.conn.SetReadDeadline(pastDeadline)
}

// Close closes the connection. Later calls return the first result.
func (c *TCPChannel) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// RemoteAddr returns the peer address.
func (c *TCPChannel) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

var _ stream.Channel = (*TCPChannel)(nil)
