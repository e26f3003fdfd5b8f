// ABOUTME: Test tone capture source
// ABOUTME: Generates a paced sine wave in place of a microphone
package capture

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/Resonate-Protocol/micstream/pkg/audio"
	"github.com/Resonate-Protocol/micstream/pkg/stream"
)

// Tone generates a sine wave at the configured rate.
type Tone struct {
	sampleRate int
	frequency  float64
	pacer      *pacer

	mu          sync.Mutex
	sampleIndex uint64
	samples     []int16

	started atomic.Bool
	closed  atomic.Bool
}

// NewTone creates a tone source. frequency 0 means 440Hz (A4).
func NewTone(cfg stream.Config, frequency float64) *Tone {
	if frequency <= 0 {
		frequency = 440.0
	}
	return &Tone{
		sampleRate: cfg.SampleRate,
		frequency:  frequency,
		pacer:      newPacer(cfg.FrameDuration()),
	}
}

// Start arms the generator.
func (s *Tone) Start() error {
	if s.closed.Load() {
		return stream.Wrap(stream.ErrDriver, "start tone", errClosed)
	}
	s.started.Store(true)
	return nil
}

// ReadFrame waits one frame period and fills buf with the next samples.
func (s *Tone) ReadFrame(buf []byte) (int, error) {
	if !s.started.Load() {
		return 0, stream.Wrap(stream.ErrDriver, "read tone", errNotStarted)
	}
	if err := s.pacer.wait(); err != nil {
		return 0, stream.Wrap(stream.ErrDriver, "read tone", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(buf) / 2
	if cap(s.samples) < n {
		s.samples = make([]int16, n)
	}
	samples := s.samples[:n]
	for i := range samples {
		t := float64(s.sampleIndex+uint64(i)) / float64(s.sampleRate)
		// 50% volume
		samples[i] = int16(math.Sin(2*math.Pi*s.frequency*t) * 32767.0 * 0.5)
	}
	s.sampleIndex += uint64(n)

	return audio.PutInt16LE(buf, samples), nil
}

// Close stops the generator and unblocks a pending read.
func (s *Tone) Close() error {
	s.closed.Store(true)
	s.pacer.close()
	return nil
}

var _ stream.Capture = (*Tone)(nil)
