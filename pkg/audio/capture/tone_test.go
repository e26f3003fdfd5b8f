// ABOUTME: Tests for the synthetic tone capture
// ABOUTME: Verifies samples, pacing and close behavior
package capture

import (
	"errors"
	"testing"
	"time"

	"github.com/Resonate-Protocol/micstream/pkg/audio"
	"github.com/Resonate-Protocol/micstream/pkg/stream"
)

func toneConfig() stream.Config {
	cfg := stream.DefaultConfig()
	cfg.BufferMs = 10
	return cfg
}

func TestToneReadFrame(t *testing.T) {
	cfg := toneConfig()
	src := NewTone(cfg, 0)
	defer src.Close()

	if err := src.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	buf := make([]byte, cfg.FrameBufferBytes())
	n, err := src.ReadFrame(buf)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if n != len(buf) {
		t.Errorf("expected %d bytes, got %d", len(buf), n)
	}

	samples := audio.Int16LE(buf)
	if samples[0] != 0 {
		t.Errorf("expected first sample 0, got %d", samples[0])
	}

	nonZero := false
	for _, s := range samples {
		if s > 16384 || s < -16384 {
			t.Fatalf("sample %d exceeds 50%% volume", s)
		}
		if s != 0 {
			nonZero = true
		}
	}
	if !nonZero {
		t.Error("expected non-zero samples")
	}
}

func TestToneIsPaced(t *testing.T) {
	cfg := toneConfig()
	src := NewTone(cfg, 0)
	defer src.Close()
	src.Start()

	buf := make([]byte, cfg.FrameBufferBytes())
	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := src.ReadFrame(buf); err != nil {
			t.Fatalf("ReadFrame failed: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Errorf("expected about 30ms for 3 frames, got %v", elapsed)
	}
}

func TestToneReadBeforeStart(t *testing.T) {
	src := NewTone(toneConfig(), 0)
	defer src.Close()

	_, err := src.ReadFrame(make([]byte, 320))
	if !errors.Is(err, stream.ErrDriver) {
		t.Errorf("expected driver error, got %v", err)
	}
}

func TestToneCloseUnblocksRead(t *testing.T) {
	cfg := toneConfig()
	cfg.BufferMs = 1000
	src := NewTone(cfg, 0)
	src.Start()

	done := make(chan error, 1)
	go func() {
		_, err := src.ReadFrame(make([]byte, cfg.FrameBufferBytes()))
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	src.Close()

	select {
	case err := <-done:
		if !errors.Is(err, stream.ErrDriver) {
			t.Errorf("expected driver error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock ReadFrame")
	}

	if err := src.Start(); err == nil {
		t.Error("expected Start after Close to fail")
	}
}
