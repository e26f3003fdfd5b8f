// ABOUTME: Receive pump forwarding inbound payloads to a consumer
// ABOUTME: Re-arms after every read until EOF, error or cancellation
package stream

import (
	"errors"
	"io"
	"log"
	"sync/atomic"
)

// ReceivePump issues reads on a Channel and hands each payload to a Consumer.
// It never closes the Channel; the send path may still be using it.
type ReceivePump struct {
	channel   Channel
	consumer  Consumer
	receiving *atomic.Bool
	stats     *counters

	buf   []byte
	state atomic.Int32
}

// NewReceivePump returns an idle pump with a read buffer of size bytes. The
// pump runs while receiving is true.
func NewReceivePump(channel Channel, consumer Consumer, size int, receiving *atomic.Bool) *ReceivePump {
	return newReceivePump(channel, consumer, size, receiving, &counters{})
}

func newReceivePump(channel Channel, consumer Consumer, size int, receiving *atomic.Bool, stats *counters) *ReceivePump {
	return &ReceivePump{
		channel:   channel,
		consumer:  consumer,
		receiving: receiving,
		stats:     stats,
		buf:       make([]byte, size),
	}
}

// State returns the current pump state.
func (p *ReceivePump) State() ReceiveState {
	return ReceiveState(p.state.Load())
}

// Stats returns the pump's counters.
func (p *ReceivePump) Stats() Stats {
	return p.stats.snapshot()
}

// Run reads until end of stream, a channel error or a cleared flag. EOF and
// cancellation return nil; any other read failure returns an ErrConnection
// error. The consumer is never called once the flag is cleared.
func (p *ReceivePump) Run() error {
	if !p.state.CompareAndSwap(int32(ReceiveIdle), int32(ReceiveArmed)) {
		return errPumpUsed
	}
	defer p.state.Store(int32(ReceiveStopped))

	for p.receiving.Load() {
		n, err := p.channel.Read(p.buf)
		if n > 0 && p.receiving.Load() {
			p.stats.bytesReceived.Add(int64(n))
			p.stats.payloadsReceived.Add(1)
			p.consumer.Consume(p.buf[:n])
		}
		if err == nil {
			continue
		}

		switch {
		case !p.receiving.Load():
			return nil
		case errors.Is(err, io.EOF):
			log.Printf("stream: peer closed the receive side")
			return nil
		default:
			return Wrap(ErrConnection, "receive", err)
		}
	}
	return nil
}
