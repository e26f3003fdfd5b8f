//go:build portaudio

// ABOUTME: PortAudio microphone capture
// ABOUTME: Blocking-read input stream on the default input device
package capture

import (
	"fmt"
	"log"
	"sync"

	"github.com/Resonate-Protocol/micstream/pkg/audio"
	"github.com/Resonate-Protocol/micstream/pkg/stream"
	"github.com/gordonklaus/portaudio"
)

const portAudioEnabled = true

// PortAudio captures 16-bit PCM using a blocking PortAudio stream.
type PortAudio struct {
	stream *portaudio.Stream
	guard  *readGuard
	buffer []int16

	// pending holds samples of the last device buffer not yet returned.
	pending []int16

	mu      sync.Mutex
	started bool
	closed  bool
}

func openPortAudio(cfg stream.Config) (stream.Capture, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, stream.Wrap(stream.ErrDriver, "open portaudio", fmt.Errorf("failed to initialize portaudio: %w", err))
	}

	input, err := portaudio.DefaultInputDevice()
	if err != nil {
		portaudio.Terminate()
		return nil, stream.Wrap(stream.ErrDeviceUnavailable, "open portaudio", fmt.Errorf("no input device: %w", err))
	}

	params := portaudio.LowLatencyParameters(input, nil)
	params.Input.Channels = cfg.Channels
	params.Output.Device = nil
	params.Output.Channels = 0
	params.SampleRate = float64(cfg.SampleRate)
	params.FramesPerBuffer = cfg.FrameSize

	p := &PortAudio{buffer: make([]int16, cfg.FrameSize*cfg.Channels)}
	s, err := portaudio.OpenStream(params, p.buffer)
	if err != nil {
		portaudio.Terminate()
		return nil, stream.Wrap(stream.ErrDeviceUnavailable, "open portaudio", fmt.Errorf("failed to open stream: %w", err))
	}
	p.stream = s
	p.guard = newReadGuard(s)

	log.Printf("Capture device ready: %s (portaudio)", input.Name)
	return p, nil
}

// Start starts the input stream.
func (p *PortAudio) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return stream.Wrap(stream.ErrDriver, "start portaudio", errClosed)
	}
	if p.started {
		return nil
	}
	if err := p.stream.Start(); err != nil {
		return stream.Wrap(stream.ErrDriver, "start portaudio", err)
	}
	p.started = true
	return nil
}

// ReadFrame fills buf from successive device buffers, carrying any
// remainder over to the next call.
func (p *PortAudio) ReadFrame(buf []byte) (int, error) {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return 0, stream.Wrap(stream.ErrDriver, "read portaudio", errNotStarted)
	}

	n := 0
	for n < len(buf) {
		if len(p.pending) == 0 {
			if err := p.guard.read(); err != nil {
				return n, stream.Wrap(stream.ErrDriver, "read portaudio", err)
			}
			p.pending = p.buffer
		}
		k := audio.PutInt16LE(buf[n:], p.pending)
		if k == 0 {
			break
		}
		p.pending = p.pending[k/2:]
		n += k
	}
	return n, nil
}

// Close aborts the stream, waits for an in-flight ReadFrame to return and
// terminates PortAudio.
func (p *PortAudio) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	started := p.started
	p.mu.Unlock()

	if err := p.guard.close(started); err != nil {
		log.Printf("Warning: portaudio close error: %v", err)
	}
	return portaudio.Terminate()
}
