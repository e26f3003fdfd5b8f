// ABOUTME: Byte ring buffer between a capture callback and a blocking reader
// ABOUTME: Writers never block; readers wait for a full frame
package capture

import (
	"errors"
	"sync"
)

var errOverflow = errors.New("input overflowed")

// RingBuffer carries PCM bytes from a device callback to ReadFull. If the
// reader falls behind and the buffer fills, the next read reports an
// overflow instead of silently skipping audio.
type RingBuffer struct {
	buffer   []byte
	readPos  int
	writePos int
	size     int
	count    int

	overflowed bool
	closed     bool

	mu   sync.Mutex
	cond *sync.Cond
}

// NewRingBuffer creates a ring buffer holding capacity bytes.
func NewRingBuffer(capacity int) *RingBuffer {
	rb := &RingBuffer{
		buffer: make([]byte, capacity),
		size:   capacity,
	}
	rb.cond = sync.NewCond(&rb.mu)
	return rb
}

// Write appends p and returns the number of bytes stored. Bytes that do not
// fit are discarded and mark the buffer as overflowed.
func (rb *RingBuffer) Write(p []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.closed {
		return 0
	}

	written := 0
	for i := 0; i < len(p) && rb.count < rb.size; i++ {
		rb.buffer[rb.writePos] = p[i]
		rb.writePos = (rb.writePos + 1) % rb.size
		rb.count++
		written++
	}
	if written < len(p) {
		rb.overflowed = true
	}

	rb.cond.Broadcast()
	return written
}

// ReadFull blocks until len(p) bytes are available and copies them out. It
// fails with errOverflow once data has been lost, or errClosed after Close.
func (rb *RingBuffer) ReadFull(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	for rb.count < len(p) && !rb.closed && !rb.overflowed {
		rb.cond.Wait()
	}
	if rb.overflowed {
		return 0, errOverflow
	}
	if rb.closed {
		return 0, errClosed
	}

	for i := range p {
		p[i] = rb.buffer[rb.readPos]
		rb.readPos = (rb.readPos + 1) % rb.size
	}
	rb.count -= len(p)
	return len(p), nil
}

// Available returns the number of buffered bytes.
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Close wakes any waiting reader. Further writes are dropped.
func (rb *RingBuffer) Close() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.closed = true
	rb.cond.Broadcast()
}
