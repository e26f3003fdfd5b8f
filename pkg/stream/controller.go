// ABOUTME: Lifecycle controller for capture, transport and both pumps
// ABOUTME: Owns startup, the blocking stream loop and ordered shutdown
package stream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Options configures a Controller.
type Options struct {
	Config  Config
	Open    CaptureOpener
	Dial    Dialer
	Address string

	// Consumer enables the receive path. Nil runs send-only.
	Consumer Consumer

	// DrainTimeout bounds how long Stop waits for the send pump to finish
	// its in-flight frame and drain write before closing the channel under
	// it. Zero uses DefaultDrainTimeout.
	DrainTimeout time.Duration
}

// Controller runs one capture-to-network stream. It is single use: once
// stopped, a new Controller is needed to stream again.
type Controller struct {
	opts Options
	id   string

	// Streaming flags, written only by the controller.
	sending   atomic.Bool
	receiving atomic.Bool

	mu       sync.Mutex
	capture  Capture
	channel  Channel
	started  bool
	stopped  bool
	pumpDone chan struct{}
	recv     errgroup.Group

	// Set by Initialize; closed once it has returned.
	initCancel context.CancelFunc
	initDone   chan struct{}

	conn     atomic.Int32 // ConnectionState
	stats    counters
	stopping atomic.Bool
	stopOnce sync.Once
}

// NewController validates opts and returns an idle controller.
func NewController(opts Options) (*Controller, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.Open == nil {
		return nil, Wrap(ErrConfig, "new controller", errors.New("capture opener is required"))
	}
	if opts.Dial == nil {
		return nil, Wrap(ErrConfig, "new controller", errors.New("dialer is required"))
	}
	if opts.Address == "" {
		return nil, Wrap(ErrConfig, "new controller", errors.New("server address is required"))
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = DefaultDrainTimeout
	}

	return &Controller{
		opts: opts,
		id:   uuid.New().String(),
	}, nil
}

// ID returns the session identifier used in logs.
func (c *Controller) ID() string { return c.id }

// Duplex reports whether the receive path is enabled.
func (c *Controller) Duplex() bool { return c.opts.Consumer != nil }

// State returns the connection state.
func (c *Controller) State() ConnectionState {
	return ConnectionState(c.conn.Load())
}

// Stats returns the pipeline counters.
func (c *Controller) Stats() Stats {
	return c.stats.snapshot()
}

// Initialize opens the capture device and connects the channel. On failure
// everything acquired so far is released. It may be called once; a Stop that
// arrives meanwhile cancels the dial and waits for Initialize to release
// what it holds.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrStopped
	}
	if c.initDone != nil {
		c.mu.Unlock()
		return errors.New("stream: initialize already called")
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.initCancel, c.initDone = cancel, done
	c.mu.Unlock()

	defer close(done)
	defer cancel()

	capture, err := c.opts.Open(c.opts.Config)
	if err != nil {
		return Wrap(ErrDriver, "open capture", err)
	}

	channel, err := c.opts.Dial(ctx, c.opts.Address)
	if err != nil {
		closeCapture(capture)
		if c.isStopped() {
			return ErrStopped
		}
		return Wrap(ErrConnection, "connect", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		// Stop is waiting on done; it will find nothing to release.
		closeChannel(channel)
		closeCapture(capture)
		return ErrStopped
	}
	c.capture = capture
	c.channel = channel
	c.conn.Store(int32(Connected))

	log.Printf("stream %s: connected to %s (%dHz, %d-byte frames, duplex=%v)",
		c.id, c.opts.Address, c.opts.Config.SampleRate, c.opts.Config.FrameBufferBytes(), c.Duplex())
	return nil
}

func (c *Controller) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// Start begins capture, launches the receive pump when enabled and runs the
// send pump on the calling goroutine. It returns after the stream has been
// fully shut down, either by Stop or by a send-path fault. The returned error
// is that fault; a clean Stop returns nil.
func (c *Controller) Start() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrStopped
	}
	if c.started {
		c.mu.Unlock()
		return errors.New("stream: already started")
	}
	if c.capture == nil {
		c.mu.Unlock()
		return errors.New("stream: not initialized")
	}

	c.sending.Store(true)
	c.receiving.Store(c.Duplex())

	if err := c.capture.Start(); err != nil {
		c.sending.Store(false)
		c.receiving.Store(false)
		c.mu.Unlock()
		c.Stop()
		return Wrap(ErrDriver, "start capture", err)
	}

	if c.Duplex() {
		rp := newReceivePump(c.channel, c.opts.Consumer, c.opts.Config.ReceiveBufferSize, &c.receiving, &c.stats)
		c.recv.Go(func() error {
			if err := rp.Run(); err != nil {
				log.Printf("stream %s: receive path stopped: %v", c.id, err)
				return err
			}
			return nil
		})
	}

	sp := newSendPump(c.capture, c.channel, c.opts.Config, &c.sending, &c.stats)
	c.pumpDone = make(chan struct{})
	c.started = true
	done := c.pumpDone
	c.mu.Unlock()

	log.Printf("stream %s: streaming", c.id)
	fault := sp.Run()
	close(done)

	if fault != nil && c.stopping.Load() {
		// Stop closed the devices under an in-flight call.
		fault = nil
	}
	if fault != nil {
		log.Printf("stream %s: send path stopped: %v", c.id, fault)
	}
	c.Stop()
	return fault
}

// Stop halts both pumps, lets the send pump drain, then releases the channel
// and the capture device. It is idempotent, safe to call from any goroutine,
// and returns once no further bytes will be sent or received.
func (c *Controller) Stop() {
	c.stopOnce.Do(c.shutdown)
}

func (c *Controller) shutdown() {
	c.stopping.Store(true)
	c.mu.Lock()
	c.stopped = true
	c.sending.Store(false)
	c.receiving.Store(false)
	initCancel, initDone := c.initCancel, c.initDone
	c.mu.Unlock()

	// An in-flight Initialize releases its own resources once it sees stopped.
	if initDone != nil {
		initCancel()
		<-initDone
	}

	c.mu.Lock()
	capture, channel := c.capture, c.channel
	started, done := c.started, c.pumpDone
	c.mu.Unlock()

	if started {
		select {
		case <-done:
		case <-time.After(c.opts.DrainTimeout):
			log.Printf("stream %s: send pump still busy after %v, closing under it", c.id, c.opts.DrainTimeout)
		}
	}

	if channel != nil {
		if err := channel.CancelRead(); err != nil {
			log.Printf("stream %s: cancel read: %v", c.id, err)
		}
	}
	// The receive goroutine must be gone before anything is released.
	_ = c.recv.Wait()

	if channel != nil {
		closeChannel(channel)
	}
	c.conn.Store(int32(Closed))

	if capture != nil {
		closeCapture(capture)
	}

	if started {
		<-done
	}

	s := c.stats.snapshot()
	log.Printf("stream %s: stopped (frames sent: %d, bytes sent: %d, bytes received: %d)",
		c.id, s.FramesSent, s.BytesSent, s.BytesReceived)
}

func closeChannel(ch Channel) {
	if err := ch.Close(); err != nil {
		log.Printf("stream: close channel: %v", err)
	}
}

func closeCapture(cp Capture) {
	if err := cp.Close(); err != nil {
		log.Printf("stream: close capture: %v", err)
	}
}

// String describes the controller for logs.
func (c *Controller) String() string {
	return fmt.Sprintf("stream %s -> %s [%s]", c.id, c.opts.Address, c.State())
}
