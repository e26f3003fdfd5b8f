// ABOUTME: Client settings from flags, positional arguments and an optional YAML file
// ABOUTME: Produces the stream configuration and backend choices for the app
package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/Resonate-Protocol/micstream/internal/transport"
	"github.com/Resonate-Protocol/micstream/pkg/audio/capture"
	"github.com/Resonate-Protocol/micstream/pkg/stream"
	"gopkg.in/yaml.v3"
)

// DefaultDiscoverTimeout bounds the mDNS search for a server.
const DefaultDiscoverTimeout = 10 * time.Second

const usageLine = "usage: micstream [flags] <server_address> <server_port> [buffer_ms]\n" +
	"       micstream -discover [flags] [buffer_ms]"

// Settings is everything the client needs to run. Fields carry yaml tags so a
// settings file can preset them; flags and positional arguments override it.
type Settings struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`

	Transport     string  `yaml:"transport"`
	Backend       string  `yaml:"backend"`
	Input         string  `yaml:"input"`
	ToneFrequency float64 `yaml:"tone_frequency"`
	Duplex        bool    `yaml:"duplex"`
	Drain         string  `yaml:"drain"`

	Stream       stream.Config `yaml:"stream"`
	DrainTimeout time.Duration `yaml:"drain_timeout"`

	Discover        bool          `yaml:"discover"`
	DiscoverTimeout time.Duration `yaml:"discover_timeout"`

	LogFile     string `yaml:"log_file"`
	NoTUI       bool   `yaml:"no_tui"`
	MetricsAddr string `yaml:"metrics_addr"`

	transport transport.Kind
	backend   capture.Backend
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		Transport:       string(transport.KindTCP),
		Backend:         string(capture.BackendAuto),
		Duplex:          true,
		Drain:           stream.DrainPending.String(),
		Stream:          stream.DefaultConfig(),
		DrainTimeout:    stream.DefaultDrainTimeout,
		DiscoverTimeout: DefaultDiscoverTimeout,
		LogFile:         "micstream.log",
	}
}

// Parse builds Settings from command-line arguments (without the program
// name). Any problem is reported as a stream.ErrConfig error; -h yields an
// error wrapping flag.ErrHelp.
func Parse(args []string) (*Settings, error) {
	// First pass only locates -config so the file can sit underneath flags.
	var path string
	scratch := Default()
	if err := newFlagSet(&scratch, &path).Parse(args); err != nil {
		return nil, stream.Wrap(stream.ErrConfig, "parse flags", err)
	}

	s := Default()
	if path != "" {
		if err := LoadFile(path, &s); err != nil {
			return nil, err
		}
	}

	fs := newFlagSet(&s, &path)
	if err := fs.Parse(args); err != nil {
		return nil, stream.Wrap(stream.ErrConfig, "parse flags", err)
	}

	if err := s.applyPositional(fs.Args()); err != nil {
		return nil, stream.Wrap(stream.ErrConfig, "parse args", fmt.Errorf("%w\n%s", err, usageLine))
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func newFlagSet(s *Settings, configPath *string) *flag.FlagSet {
	fs := flag.NewFlagSet("micstream", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), usageLine)
		fs.PrintDefaults()
	}

	fs.StringVar(configPath, "config", *configPath, "YAML settings file")
	fs.StringVar(&s.Transport, "transport", s.Transport, "Transport: tcp or ws")
	fs.StringVar(&s.Backend, "backend", s.Backend, "Capture backend: auto, portaudio, malgo, tone, file")
	fs.StringVar(&s.Input, "input", s.Input, "Audio file for the file backend (.mp3, .flac)")
	fs.Float64Var(&s.ToneFrequency, "tone-frequency", s.ToneFrequency, "Tone backend frequency in Hz (default 440)")
	fs.BoolVar(&s.Duplex, "duplex", s.Duplex, "Also receive and display data from the server")
	fs.StringVar(&s.Drain, "drain", s.Drain, "Final flush on stop: pending, last-frame or none")
	fs.DurationVar(&s.DrainTimeout, "drain-timeout", s.DrainTimeout, "How long stop waits for the final flush")
	fs.IntVar(&s.Stream.SampleRate, "sample-rate", s.Stream.SampleRate, "Capture sample rate in Hz")
	fs.IntVar(&s.Stream.FrameSize, "frame-size", s.Stream.FrameSize, "Samples per device period")
	fs.IntVar(&s.Stream.ReceiveBufferSize, "receive-buffer", s.Stream.ReceiveBufferSize, "Receive buffer size in bytes")
	fs.BoolVar(&s.Discover, "discover", s.Discover, "Find the server via mDNS instead of positional address/port")
	fs.DurationVar(&s.DiscoverTimeout, "discover-timeout", s.DiscoverTimeout, "How long to search for a server")
	fs.StringVar(&s.LogFile, "log-file", s.LogFile, "Log file path")
	fs.BoolVar(&s.NoTUI, "no-tui", s.NoTUI, "Disable TUI, use streaming logs instead")
	fs.StringVar(&s.MetricsAddr, "metrics-addr", s.MetricsAddr, "Serve Prometheus metrics on this address (e.g. :9464)")
	return fs
}

// applyPositional consumes <server_address> <server_port> [buffer_ms]. With
// -discover, or when the settings file names a server, only [buffer_ms] may
// be given.
func (s *Settings) applyPositional(args []string) error {
	presetServer := s.Discover || (s.Address != "" && s.Port != 0)

	switch {
	case len(args) == 2 || len(args) == 3:
		s.Address = args[0]
		port, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid server_port %q", args[1])
		}
		s.Port = port
		if len(args) == 3 {
			return s.setBufferMs(args[2])
		}
		return nil
	case presetServer && len(args) == 1:
		return s.setBufferMs(args[0])
	case presetServer && len(args) == 0:
		return nil
	default:
		return fmt.Errorf("expected 2 or 3 arguments, got %d", len(args))
	}
}

func (s *Settings) setBufferMs(arg string) error {
	ms, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("invalid buffer_ms %q", arg)
	}
	s.Stream.BufferMs = ms
	return nil
}

// LoadFile overlays the YAML file at path onto s.
func LoadFile(path string, s *Settings) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return stream.Wrap(stream.ErrConfig, "load settings", err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return stream.Wrap(stream.ErrConfig, "load settings", fmt.Errorf("%s: %w", path, err))
	}
	return nil
}

// Validate checks every field and resolves the typed choices.
func (s *Settings) Validate() error {
	kind, err := transport.ParseKind(s.Transport)
	if err != nil {
		return err
	}
	backend, err := capture.ParseBackend(s.Backend)
	if err != nil {
		return err
	}
	if backend == capture.BackendFile && s.Input == "" {
		return stream.Wrap(stream.ErrConfig, "validate", errors.New("-backend file requires -input"))
	}
	drain, err := stream.ParseDrainPolicy(s.Drain)
	if err != nil {
		return err
	}
	s.Stream.Drain = drain

	if !s.Discover {
		if s.Address == "" {
			return stream.Wrap(stream.ErrConfig, "validate", errors.New("server address is empty"))
		}
		if s.Port < 1 || s.Port > 65535 {
			return stream.Wrap(stream.ErrConfig, "validate", fmt.Errorf("server_port must be 1-65535, got %d", s.Port))
		}
	}
	if s.DrainTimeout < 0 {
		return stream.Wrap(stream.ErrConfig, "validate", fmt.Errorf("drain timeout must not be negative, got %v", s.DrainTimeout))
	}
	if err := s.Stream.Validate(); err != nil {
		return err
	}

	s.transport = kind
	s.backend = backend
	return nil
}

// ServerAddress returns host:port.
func (s *Settings) ServerAddress() string {
	return net.JoinHostPort(s.Address, strconv.Itoa(s.Port))
}

// TransportKind returns the validated transport.
func (s *Settings) TransportKind() transport.Kind {
	if s.transport == "" {
		return transport.KindTCP
	}
	return s.transport
}

// CaptureBackend returns the validated capture backend.
func (s *Settings) CaptureBackend() capture.Backend {
	if s.backend == "" {
		return capture.BackendAuto
	}
	return s.backend
}

// CaptureOptions returns backend specific options.
func (s *Settings) CaptureOptions() capture.Options {
	return capture.Options{Input: s.Input, ToneFrequency: s.ToneFrequency}
}
