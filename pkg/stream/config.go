// ABOUTME: Stream configuration and frame buffer sizing
// ABOUTME: Fixed-format linear PCM parameters plus buffering policy
package stream

import (
	"fmt"
	"time"
)

const (
	DefaultSampleRate        = 16000
	DefaultFrameSize         = 1024
	DefaultSampleWidth       = 2 // 16-bit linear PCM
	DefaultChannels          = 1
	DefaultBufferMs          = 200
	DefaultReceiveBufferSize = 1024
	DefaultDrainTimeout      = 2 * time.Second
)

// DrainPolicy selects what the send pump writes after it stops capturing.
type DrainPolicy int

const (
	// DrainPending writes only bytes captured but not yet sent.
	DrainPending DrainPolicy = iota
	// DrainLastFrame re-sends the whole last captured frame even if it
	// already went out.
	DrainLastFrame
	// DrainNone skips the final write.
	DrainNone
)

func (d DrainPolicy) String() string {
	switch d {
	case DrainPending:
		return "pending"
	case DrainLastFrame:
		return "last-frame"
	case DrainNone:
		return "none"
	default:
		return fmt.Sprintf("DrainPolicy(%d)", int(d))
	}
}

// ParseDrainPolicy maps a policy name to its value.
func ParseDrainPolicy(s string) (DrainPolicy, error) {
	switch s {
	case "", "pending":
		return DrainPending, nil
	case "last-frame":
		return DrainLastFrame, nil
	case "none":
		return DrainNone, nil
	default:
		return 0, Wrap(ErrConfig, "parse drain policy", fmt.Errorf("unknown policy %q", s))
	}
}

// Config is immutable once handed to a Controller.
type Config struct {
	// SampleRate in Hz.
	SampleRate int `yaml:"sample_rate"`

	// FrameSize is the number of samples the device delivers per hardware
	// callback. It only tunes device latency; the unit of transfer is the
	// frame buffer.
	FrameSize int `yaml:"frame_size"`

	// SampleWidth in bytes. Only 2 (16-bit) is supported.
	SampleWidth int `yaml:"sample_width"`

	// Channels. Only 1 (mono) is supported.
	Channels int `yaml:"channels"`

	// BufferMs is the target duration of one frame buffer.
	BufferMs int `yaml:"buffer_ms"`

	// ReceiveBufferSize is the size of each read on the inbound path.
	ReceiveBufferSize int `yaml:"receive_buffer_size"`

	// Drain selects the final write policy.
	Drain DrainPolicy `yaml:"-"`
}

// DefaultConfig returns 16kHz mono 16-bit capture with a 200ms buffer.
func DefaultConfig() Config {
	return Config{
		SampleRate:        DefaultSampleRate,
		FrameSize:         DefaultFrameSize,
		SampleWidth:       DefaultSampleWidth,
		Channels:          DefaultChannels,
		BufferMs:          DefaultBufferMs,
		ReceiveBufferSize: DefaultReceiveBufferSize,
		Drain:             DrainPending,
	}
}

// FrameBufferBytes is sampleRate * sampleWidth * bufferMs / 1000.
func (c Config) FrameBufferBytes() int {
	return c.SampleRate * c.SampleWidth * c.BufferMs / 1000
}

// FrameSamples returns the number of samples held by one frame buffer.
func (c Config) FrameSamples() int {
	if c.SampleWidth == 0 {
		return 0
	}
	return c.FrameBufferBytes() / c.SampleWidth
}

// FrameDuration returns the wall-clock length of one frame buffer.
func (c Config) FrameDuration() time.Duration {
	return time.Duration(c.BufferMs) * time.Millisecond
}

// Validate reports an ErrConfig error if the configuration cannot be used.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return Wrap(ErrConfig, "validate", fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate))
	}
	if c.FrameSize <= 0 {
		return Wrap(ErrConfig, "validate", fmt.Errorf("frame_size must be positive, got %d", c.FrameSize))
	}
	if c.SampleWidth != 2 {
		return Wrap(ErrConfig, "validate", fmt.Errorf("sample_width must be 2, got %d", c.SampleWidth))
	}
	if c.Channels != 1 {
		return Wrap(ErrConfig, "validate", fmt.Errorf("channels must be 1, got %d", c.Channels))
	}
	if c.BufferMs <= 0 {
		return Wrap(ErrConfig, "validate", fmt.Errorf("buffer_ms must be positive, got %d", c.BufferMs))
	}
	if c.ReceiveBufferSize <= 0 {
		return Wrap(ErrConfig, "validate", fmt.Errorf("receive_buffer_size must be positive, got %d", c.ReceiveBufferSize))
	}
	n := c.FrameBufferBytes()
	if n <= 0 {
		return Wrap(ErrConfig, "validate", fmt.Errorf("frame buffer of %d bytes at %dHz/%dms is empty", n, c.SampleRate, c.BufferMs))
	}
	if n%c.SampleWidth != 0 {
		return Wrap(ErrConfig, "validate", fmt.Errorf("frame buffer of %d bytes is not a whole number of samples", n))
	}
	switch c.Drain {
	case DrainPending, DrainLastFrame, DrainNone:
	default:
		return Wrap(ErrConfig, "validate", fmt.Errorf("unknown drain policy %d", int(c.Drain)))
	}
	return nil
}
