// ABOUTME: Byte-stream transports for the microphone stream
// ABOUTME: Selects TCP or WebSocket and adapts them to stream.Channel
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Resonate-Protocol/micstream/pkg/stream"
)

// Kind names a transport.
type Kind string

const (
	KindTCP       Kind = "tcp"
	KindWebSocket Kind = "ws"
)

// WebSocketPath is the HTTP path the server upgrades on.
const WebSocketPath = "/stream"

// closeTimeout bounds the WebSocket close handshake.
const closeTimeout = time.Second

var errClosed = errors.New("channel closed")

// ParseKind validates a transport name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case "":
		return KindTCP, nil
	case KindTCP, KindWebSocket:
		return k, nil
	default:
		return "", stream.Wrap(stream.ErrConfig, "parse transport", fmt.Errorf("unknown transport %q (want tcp or ws)", s))
	}
}

// Dial opens a channel of the given kind to address ("host:port").
func Dial(ctx context.Context, kind Kind, address string) (stream.Channel, error) {
	switch kind {
	case KindTCP, "":
		return DialTCP(ctx, address)
	case KindWebSocket:
		return DialWebSocket(ctx, address)
	default:
		return nil, stream.Wrap(stream.ErrConfig, "dial", fmt.Errorf("unsupported transport: %s", kind))
	}
}

// Dialer adapts Dial to stream.Dialer.
func Dialer(kind Kind) stream.Dialer {
	return func(ctx context.Context, address string) (stream.Channel, error) {
		return Dial(ctx, kind, address)
	}
}

// pastDeadline wakes a blocked read immediately.
var pastDeadline = time.Unix(1, 0)
