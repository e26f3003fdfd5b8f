// ABOUTME: Streaming client orchestration
// ABOUTME: Wires settings, capture, transport, discovery, metrics and UI around a stream.Controller
package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/Resonate-Protocol/micstream/internal/config"
	"github.com/Resonate-Protocol/micstream/internal/discovery"
	"github.com/Resonate-Protocol/micstream/internal/observe"
	"github.com/Resonate-Protocol/micstream/internal/transport"
	"github.com/Resonate-Protocol/micstream/internal/ui"
	"github.com/Resonate-Protocol/micstream/internal/version"
	"github.com/Resonate-Protocol/micstream/pkg/audio/capture"
	"github.com/Resonate-Protocol/micstream/pkg/stream"
	"go.opentelemetry.io/otel/metric"
)

// statsInterval is how often counters are pushed to the UI.
const statsInterval = 500 * time.Millisecond

// Options holds what the client needs beyond Settings. Zero values pick the
// production implementations.
type Options struct {
	Settings *config.Settings

	// Open and Dial override the backends chosen by Settings.
	Open stream.CaptureOpener
	Dial stream.Dialer

	// Consumer receives server data when Settings.Duplex is set.
	Consumer stream.Consumer

	// UI, if set, receives ui.StatusMsg and ui.StatsMsg updates.
	UI ui.Sender

	// MeterProvider, if set, gets the client counters.
	MeterProvider metric.MeterProvider

	// Find looks up a server when Settings.Discover is set and no address
	// was given. Defaults to an mDNS browse.
	Find func(ctx context.Context) (*discovery.ServerInfo, error)
}

// Client runs one streaming session.
type Client struct {
	opts     Options
	settings *config.Settings
	ctrl     *stream.Controller
}

// New checks opts and fills in defaults.
func New(opts Options) (*Client, error) {
	s := opts.Settings
	if s == nil {
		return nil, stream.Wrap(stream.ErrConfig, "new client", errors.New("settings are required"))
	}
	if opts.Open == nil {
		opts.Open = capture.Opener(s.CaptureBackend(), s.CaptureOptions())
	}
	if opts.Find == nil {
		opts.Find = findServer
	}
	return &Client{opts: opts, settings: s}, nil
}

// Run streams until ctx is cancelled or the stream fails. A stop caused by
// ctx returns nil.
func (c *Client) Run(ctx context.Context) error {
	address, kind, err := c.resolve(ctx)
	if err != nil {
		return err
	}

	dial := c.opts.Dial
	if dial == nil {
		dial = transport.Dialer(kind)
	}

	var consumer stream.Consumer
	if c.settings.Duplex {
		consumer = c.opts.Consumer
	}

	ctrl, err := stream.NewController(stream.Options{
		Config:       c.settings.Stream,
		Open:         c.opts.Open,
		Dial:         dial,
		Address:      address,
		Consumer:     consumer,
		DrainTimeout: c.settings.DrainTimeout,
	})
	if err != nil {
		return err
	}
	c.ctrl = ctrl

	log.Printf("Starting %s session %s -> %s (%s)", version.String(), ctrl.ID(), address, kind)

	if c.opts.MeterProvider != nil {
		met, err := observe.NewClientMetrics(c.opts.MeterProvider, ctrl)
		if err != nil {
			log.Printf("Failed to register metrics: %v", err)
		} else {
			defer met.Unregister()
		}
	}

	duplex := ctrl.Duplex()
	cfg := c.settings.Stream
	c.updateUI(ui.StatusMsg{
		State:      "connecting",
		ServerAddr: address,
		Transport:  string(kind),
		SessionID:  ctrl.ID(),
		SampleRate: cfg.SampleRate,
		BufferMs:   cfg.BufferMs,
		FrameBytes: cfg.FrameBufferBytes(),
		Duplex:     &duplex,
	})

	// Stop is safe before, during and after Start.
	stopDone := make(chan struct{})
	defer close(stopDone)
	go func() {
		select {
		case <-ctx.Done():
			log.Printf("Shutdown signal received")
			ctrl.Stop()
		case <-stopDone:
		}
	}()

	if err := ctrl.Initialize(ctx); err != nil {
		c.setDisconnected("failed")
		if ctx.Err() != nil {
			log.Printf("Startup interrupted: %v", err)
			return nil
		}
		return err
	}

	connected := true
	c.updateUI(ui.StatusMsg{Connected: &connected})
	log.Printf("Connected to server: %s", address)

	go c.statsUpdateLoop(stopDone)

	err = ctrl.Start()
	c.updateUI(ui.StatsMsg{Stats: ctrl.Stats()})
	c.setDisconnected(ctrl.State().String())

	if errors.Is(err, stream.ErrStopped) {
		return nil
	}
	return err
}

// Stop stops a running session.
func (c *Client) Stop() {
	if c.ctrl != nil {
		c.ctrl.Stop()
	}
}

// resolve picks the server address, browsing for it if asked to.
func (c *Client) resolve(ctx context.Context) (string, transport.Kind, error) {
	s := c.settings
	if !s.Discover || s.Address != "" {
		return s.ServerAddress(), s.TransportKind(), nil
	}

	c.updateUI(ui.StatusMsg{State: "discovering"})
	log.Printf("Starting server discovery...")

	findCtx, cancel := context.WithTimeout(ctx, s.DiscoverTimeout)
	defer cancel()

	server, err := c.opts.Find(findCtx)
	if err != nil {
		return "", "", stream.Wrap(stream.ErrConnection, "discover", err)
	}

	kind, err := transport.ParseKind(server.Transport)
	if err != nil {
		log.Printf("Server %s advertises unknown transport %q, using %s", server.Name, server.Transport, s.TransportKind())
		kind = s.TransportKind()
	}
	log.Printf("Discovered server at %s", server.Address())
	return server.Address(), kind, nil
}

func findServer(ctx context.Context) (*discovery.ServerInfo, error) {
	mgr := discovery.NewManager(discovery.Config{})
	defer mgr.Stop()
	return mgr.FindServer(ctx)
}

// statsUpdateLoop periodically updates the UI with pipeline counters
func (c *Client) statsUpdateLoop(done <-chan struct{}) {
	if c.opts.UI == nil {
		return
	}

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.updateUI(ui.StatsMsg{Stats: c.ctrl.Stats()})
		}
	}
}

func (c *Client) setDisconnected(state string) {
	connected := false
	c.updateUI(ui.StatusMsg{Connected: &connected, State: state})
}

func (c *Client) updateUI(msg any) {
	if c.opts.UI != nil {
		c.opts.UI.Send(msg)
	}
}

// ExitCode maps the result of Run to a process exit status: 0 for a clean or
// signal-driven stop, 1 for everything else.
func ExitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, stream.ErrStopped), errors.Is(err, flag.ErrHelp):
		return 0
	default:
		return 1
	}
}

// Describe renders err for the operator, naming its kind when known.
func Describe(err error) string {
	switch kind := stream.KindOf(err); {
	case errors.Is(kind, stream.ErrDeviceUnavailable):
		return fmt.Sprintf("no usable capture device: %v", err)
	case errors.Is(kind, stream.ErrDriver):
		return fmt.Sprintf("audio driver failure: %v", err)
	case errors.Is(kind, stream.ErrConnection):
		return fmt.Sprintf("connection failure: %v", err)
	case errors.Is(kind, stream.ErrConfig):
		return fmt.Sprintf("invalid configuration: %v", err)
	default:
		return err.Error()
	}
}
