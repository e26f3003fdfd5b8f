// ABOUTME: Capture backend selection
// ABOUTME: Maps backend names to constructors and adapts them to stream.CaptureOpener
package capture

import (
	"errors"
	"fmt"
	"log"

	"github.com/Resonate-Protocol/micstream/pkg/stream"
)

// Backend names a capture implementation.
type Backend string

const (
	BackendAuto      Backend = "auto"
	BackendPortAudio Backend = "portaudio"
	BackendMalgo     Backend = "malgo"
	BackendTone      Backend = "tone"
	BackendFile      Backend = "file"
)

var (
	errClosed     = errors.New("capture closed")
	errNotStarted = errors.New("capture not started")
)

// Options carries backend specific settings.
type Options struct {
	// Input is the file path for BackendFile.
	Input string

	// ToneFrequency in Hz for BackendTone. Zero means 440.
	ToneFrequency float64
}

// ParseBackend validates a backend name.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(s); b {
	case "":
		return BackendAuto, nil
	case BackendAuto, BackendPortAudio, BackendMalgo, BackendTone, BackendFile:
		return b, nil
	default:
		return "", stream.Wrap(stream.ErrConfig, "parse backend", fmt.Errorf("unknown capture backend %q", s))
	}
}

// Open acquires a capture device for cfg using backend.
func Open(backend Backend, cfg stream.Config, opts Options) (stream.Capture, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if backend == BackendAuto {
		backend = detectBestBackend()
	}

	log.Printf("Opening capture backend %s (%dHz, %d-byte frames)", backend, cfg.SampleRate, cfg.FrameBufferBytes())

	switch backend {
	case BackendPortAudio:
		return openPortAudio(cfg)
	case BackendMalgo:
		return openMalgo(cfg)
	case BackendTone:
		return NewTone(cfg, opts.ToneFrequency), nil
	case BackendFile:
		return OpenFile(cfg, opts.Input)
	default:
		return nil, stream.Wrap(stream.ErrConfig, "open capture", fmt.Errorf("unsupported backend: %s", backend))
	}
}

// Opener adapts Open to stream.CaptureOpener.
func Opener(backend Backend, opts Options) stream.CaptureOpener {
	return func(cfg stream.Config) (stream.Capture, error) {
		return Open(backend, cfg, opts)
	}
}

// detectBestBackend prefers PortAudio when it was compiled in.
func detectBestBackend() Backend {
	if portAudioEnabled {
		return BackendPortAudio
	}
	return BackendMalgo
}

// AvailableBackends lists the backends usable in this build.
func AvailableBackends() []Backend {
	backends := []Backend{BackendMalgo, BackendTone, BackendFile}
	if portAudioEnabled {
		backends = append([]Backend{BackendPortAudio}, backends...)
	}
	return backends
}
