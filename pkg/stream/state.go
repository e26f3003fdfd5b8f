// ABOUTME: State enums for the connection and both pumps
// ABOUTME: Each state machine only moves forward
package stream

import "fmt"

// ConnectionState tracks the Transport Channel. Closed is terminal.
type ConnectionState int32

const (
	Unconnected ConnectionState = iota
	Connected
	Closed
)

func (s ConnectionState) String() string {
	switch s {
	case Unconnected:
		return "unconnected"
	case Connected:
		return "connected"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("ConnectionState(%d)", int32(s))
	}
}

// SendState is the SendPump state machine: Idle, Running, Draining, Stopped.
type SendState int32

const (
	SendIdle SendState = iota
	SendRunning
	SendDraining
	SendStopped
)

func (s SendState) String() string {
	switch s {
	case SendIdle:
		return "idle"
	case SendRunning:
		return "running"
	case SendDraining:
		return "draining"
	case SendStopped:
		return "stopped"
	default:
		return fmt.Sprintf("SendState(%d)", int32(s))
	}
}

// ReceiveState is the ReceivePump state machine: Idle, Armed, Stopped.
type ReceiveState int32

const (
	ReceiveIdle ReceiveState = iota
	ReceiveArmed
	ReceiveStopped
)

func (s ReceiveState) String() string {
	switch s {
	case ReceiveIdle:
		return "idle"
	case ReceiveArmed:
		return "armed"
	case ReceiveStopped:
		return "stopped"
	default:
		return fmt.Sprintf("ReceiveState(%d)", int32(s))
	}
}
