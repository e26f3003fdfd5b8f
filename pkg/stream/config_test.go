// ABOUTME: Tests for stream configuration
// ABOUTME: Frame buffer sizing, validation and drain policy parsing
package stream

import (
	"errors"
	"testing"
	"time"
)

func TestFrameBufferBytes(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate int
		bufferMs   int
		expected   int
	}{
		{"default 16kHz 200ms", 16000, 200, 6400},
		{"16kHz 20ms", 16000, 20, 640},
		{"48kHz 10ms", 48000, 10, 960},
		{"8kHz 1s", 8000, 1000, 16000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.SampleRate = tt.sampleRate
			cfg.BufferMs = tt.bufferMs
			if got := cfg.FrameBufferBytes(); got != tt.expected {
				t.Errorf("expected %d bytes, got %d", tt.expected, got)
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("expected valid config, got %v", err)
			}
		})
	}
}

func TestFrameBufferBytesIsWholeSamples(t *testing.T) {
	for _, rate := range []int{8000, 11025, 16000, 22050, 24000, 44100, 48000} {
		for ms := 1; ms <= 1000; ms++ {
			if rate*2*ms%1000 != 0 {
				continue
			}
			cfg := DefaultConfig()
			cfg.SampleRate = rate
			cfg.BufferMs = ms
			n := cfg.FrameBufferBytes()
			if n <= 0 || n%2 != 0 {
				t.Fatalf("rate=%d ms=%d: expected positive even size, got %d", rate, ms, n)
			}
			if again := cfg.FrameBufferBytes(); again != n {
				t.Fatalf("rate=%d ms=%d: size not deterministic (%d then %d)", rate, ms, n, again)
			}
			if cfg.FrameSamples()*2 != n {
				t.Fatalf("rate=%d ms=%d: expected %d samples, got %d", rate, ms, n/2, cfg.FrameSamples())
			}
		}
	}
}

func TestFrameDuration(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.FrameDuration() != 200*time.Millisecond {
		t.Errorf("expected 200ms, got %v", cfg.FrameDuration())
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }},
		{"negative buffer", func(c *Config) { c.BufferMs = -5 }},
		{"zero frame size", func(c *Config) { c.FrameSize = 0 }},
		{"24-bit", func(c *Config) { c.SampleWidth = 3 }},
		{"stereo", func(c *Config) { c.Channels = 2 }},
		{"no receive buffer", func(c *Config) { c.ReceiveBufferSize = 0 }},
		{"buffer rounds to zero", func(c *Config) { c.SampleRate = 100; c.BufferMs = 1 }},
		{"odd byte count", func(c *Config) { c.SampleRate = 1500; c.BufferMs = 1 }},
		{"unknown drain policy", func(c *Config) { c.Drain = DrainPolicy(42) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrConfig) {
				t.Errorf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestParseDrainPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    DrainPolicy
		wantErr bool
	}{
		{"", DrainPending, false},
		{"pending", DrainPending, false},
		{"last-frame", DrainLastFrame, false},
		{"none", DrainNone, false},
		{"everything", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseDrainPolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("%q: unexpected error state: %v", tt.in, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("%q: expected %v, got %v", tt.in, tt.want, got)
		}
		if !tt.wantErr && tt.in != "" && got.String() != tt.in {
			t.Errorf("%q: String() returned %q", tt.in, got.String())
		}
	}
}
