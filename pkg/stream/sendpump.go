// ABOUTME: Send pump moving captured frames onto the channel
// ABOUTME: Strictly sequential read-then-write loop with a single drain write
package stream

import (
	"errors"
	"log"
	"sync/atomic"
)

var errPumpUsed = errors.New("pump already started")

// SendPump reads one frame from a Capture and writes it to a Channel until
// its flag is cleared or either side fails. A pump runs once.
type SendPump struct {
	capture Capture
	channel Channel
	sending *atomic.Bool
	drain   DrainPolicy
	stats   *counters

	// buf is touched only by the goroutine running Run.
	buf      []byte
	captured int // bytes filled by the most recent read
	pending  int // bytes of buf not yet written

	state atomic.Int32
}

// NewSendPump returns an idle pump with a frame buffer of
// cfg.FrameBufferBytes(). The pump runs while sending is true.
func NewSendPump(capture Capture, channel Channel, cfg Config, sending *atomic.Bool) *SendPump {
	return newSendPump(capture, channel, cfg, sending, &counters{})
}

func newSendPump(capture Capture, channel Channel, cfg Config, sending *atomic.Bool, stats *counters) *SendPump {
	return &SendPump{
		capture: capture,
		channel: channel,
		sending: sending,
		drain:   cfg.Drain,
		stats:   stats,
		buf:     make([]byte, cfg.FrameBufferBytes()),
	}
}

// State returns the current pump state.
func (p *SendPump) State() SendState {
	return SendState(p.state.Load())
}

// Stats returns the pump's counters.
func (p *SendPump) Stats() Stats {
	return p.stats.snapshot()
}

// Run blocks until the flag is cleared or a capture or network error occurs,
// then performs the drain write and returns. The returned error is the fault
// that ended the loop; a cleared flag returns nil.
func (p *SendPump) Run() error {
	if !p.state.CompareAndSwap(int32(SendIdle), int32(SendRunning)) {
		return errPumpUsed
	}

	fault := p.loop()

	p.state.Store(int32(SendDraining))
	p.flush()
	p.state.Store(int32(SendStopped))

	return fault
}

func (p *SendPump) loop() error {
	for p.sending.Load() {
		n, err := p.capture.ReadFrame(p.buf)
		if n > 0 {
			p.captured = n
			p.pending = n
		}
		if err != nil {
			return Wrap(ErrDriver, "read frame", err)
		}
		p.stats.framesCaptured.Add(1)

		if err := p.channel.WriteAll(p.buf[:n]); err != nil {
			return Wrap(ErrConnection, "write frame", err)
		}
		p.pending = 0
		p.stats.framesSent.Add(1)
		p.stats.bytesSent.Add(int64(n))
	}
	return nil
}

// flush is best effort; failures are logged and swallowed.
func (p *SendPump) flush() {
	var n int
	switch p.drain {
	case DrainPending:
		n = p.pending
	case DrainLastFrame:
		n = p.captured
	}
	if n == 0 {
		return
	}

	if err := p.channel.WriteAll(p.buf[:n]); err != nil {
		log.Printf("stream: drain write of %d bytes failed: %v", n, err)
		return
	}
	p.pending = 0
	p.stats.drainBytes.Add(int64(n))
	p.stats.bytesSent.Add(int64(n))
}
