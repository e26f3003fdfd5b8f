// ABOUTME: Capture and Channel contracts consumed by the pumps
// ABOUTME: Backends live in pkg/audio/capture and internal/transport
package stream

import "context"

// Capture is an opened capture device producing mono 16-bit PCM.
type Capture interface {
	// Start begins hardware capture.
	Start() error

	// ReadFrame blocks until buf is full of the next contiguous samples and
	// returns len(buf). On failure it returns the number of bytes that were
	// filled before the error, which may be zero.
	ReadFrame(buf []byte) (int, error)

	// Close stops and releases the device. It is idempotent and unblocks a
	// pending ReadFrame.
	Close() error
}

// CaptureOpener acquires a capture device configured for cfg. It fails with
// ErrDeviceUnavailable when there is no input device and ErrDriver when the
// device rejects the requested format.
type CaptureOpener func(cfg Config) (Capture, error)

// Channel is a connected, ordered, reliable byte stream.
type Channel interface {
	// WriteAll writes all of p or fails. Partial writes are never visible.
	WriteAll(p []byte) error

	// Read blocks until some bytes arrive, the peer closes the stream
	// (io.EOF) or the read is cancelled.
	Read(p []byte) (int, error)

	// CancelRead makes a pending and every future Read return promptly.
	CancelRead() error

	// Close is idempotent and safe to call concurrently with WriteAll or Read.
	Close() error
}

// Dialer resolves address and returns a connected Channel. Failures are
// ErrConnection and are not retried.
type Dialer func(ctx context.Context, address string) (Channel, error)

// Consumer receives inbound payloads. p is only valid for the duration of
// the call.
type Consumer interface {
	Consume(p []byte)
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(p []byte)

// Consume calls f(p).
func (f ConsumerFunc) Consume(p []byte) { f(p) }
