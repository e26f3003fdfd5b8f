// ABOUTME: Serializes blocking driver reads against stream teardown
// ABOUTME: Close aborts an in-flight read and waits for it before closing
package capture

import (
	"log"
	"sync"
)

// blockingStream is a driver stream whose Read blocks for one device buffer.
// Abort must make a pending Read return.
type blockingStream interface {
	Read() error
	Abort() error
	Close() error
}

// readGuard keeps Close from releasing a stream while another goroutine is
// still inside its Read.
type readGuard struct {
	stream blockingStream

	readMu sync.Mutex // held across stream.Read

	mu     sync.Mutex
	closed bool
}

func newReadGuard(s blockingStream) *readGuard {
	return &readGuard{stream: s}
}

// read performs one blocking Read. It returns errClosed once close has begun.
func (g *readGuard) read() error {
	g.readMu.Lock()
	defer g.readMu.Unlock()

	if g.isClosed() {
		return errClosed
	}
	return g.stream.Read()
}

func (g *readGuard) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// close aborts the stream if it is running, waits for any in-flight read to
// return, then closes the stream. Only the first call has any effect.
func (g *readGuard) close(running bool) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	g.mu.Unlock()

	if running {
		if err := g.stream.Abort(); err != nil {
			log.Printf("Warning: stream abort error: %v", err)
		}
	}

	g.readMu.Lock()
	defer g.readMu.Unlock()
	return g.stream.Close()
}
