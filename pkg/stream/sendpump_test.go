// ABOUTME: Tests for the send pump
// ABOUTME: Write sizes, fault handling, drain policies and single use
package stream

import (
	"errors"
	"sync/atomic"
	"testing"
)

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.BufferMs = 10 // 320 bytes at 16kHz
	return cfg
}

func runningFlag() *atomic.Bool {
	var b atomic.Bool
	b.Store(true)
	return &b
}

func TestSendPumpWritesFullFramesUntilDriverError(t *testing.T) {
	cfg := smallConfig()
	const n = 5
	capture := &fakeCapture{frames: n}
	channel := newFakeChannel()

	pump := NewSendPump(capture, channel, cfg, runningFlag())
	err := pump.Run()

	if !errors.Is(err, ErrDriver) {
		t.Fatalf("expected ErrDriver, got %v", err)
	}
	if pump.State() != SendStopped {
		t.Errorf("expected stopped, got %s", pump.State())
	}

	writes := channel.Writes()
	if len(writes) != n {
		t.Fatalf("expected %d writes, got %d", n, len(writes))
	}
	for i, w := range writes {
		if len(w) != cfg.FrameBufferBytes() {
			t.Errorf("write %d: expected %d bytes, got %d", i, cfg.FrameBufferBytes(), len(w))
		}
		if w[0] != byte(i+1) {
			t.Errorf("write %d: expected frame %d content, got %d", i, i+1, w[0])
		}
	}

	stats := pump.Stats()
	if stats.FramesSent != n || stats.BytesSent != int64(n*cfg.FrameBufferBytes()) {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestSendPumpDrainLastFrameResendsLastCapture(t *testing.T) {
	cfg := smallConfig()
	cfg.Drain = DrainLastFrame
	const n = 3
	channel := newFakeChannel()

	pump := NewSendPump(&fakeCapture{frames: n}, channel, cfg, runningFlag())
	_ = pump.Run()

	writes := channel.Writes()
	if len(writes) != n+1 {
		t.Fatalf("expected %d writes including drain, got %d", n+1, len(writes))
	}
	last := writes[n]
	if len(last) > cfg.FrameBufferBytes() {
		t.Errorf("drain write of %d bytes exceeds frame buffer", len(last))
	}
	if last[0] != byte(n) {
		t.Errorf("expected drain to repeat frame %d, got %d", n, last[0])
	}
	if pump.Stats().DrainBytes != int64(len(last)) {
		t.Errorf("expected drain bytes %d, got %d", len(last), pump.Stats().DrainBytes)
	}
}

func TestSendPumpDrainsPartialRead(t *testing.T) {
	cfg := smallConfig()
	const n = 2
	channel := newFakeChannel()

	pump := NewSendPump(&fakeCapture{frames: n, partial: 100}, channel, cfg, runningFlag())
	_ = pump.Run()

	writes := channel.Writes()
	if len(writes) != n+1 {
		t.Fatalf("expected %d writes, got %d", n+1, len(writes))
	}
	if len(writes[n]) != 100 {
		t.Errorf("expected 100-byte drain write, got %d", len(writes[n]))
	}
	if writes[n][0] != 0xEE {
		t.Errorf("expected drain to carry the partial capture")
	}
}

func TestSendPumpDrainNone(t *testing.T) {
	cfg := smallConfig()
	cfg.Drain = DrainNone
	channel := newFakeChannel()

	pump := NewSendPump(&fakeCapture{frames: 2, partial: 64}, channel, cfg, runningFlag())
	_ = pump.Run()

	if got := len(channel.Writes()); got != 2 {
		t.Errorf("expected 2 writes, got %d", got)
	}
}

func TestSendPumpWriteFailureRetriesOnceInDrain(t *testing.T) {
	cfg := smallConfig()
	channel := newFakeChannel()
	channel.failWritesAfter = 2

	pump := NewSendPump(&fakeCapture{frames: -1}, channel, cfg, runningFlag())
	err := pump.Run()

	if !errors.Is(err, ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
	// Two good writes, the failing write and the failing drain attempt.
	if got := len(channel.Writes()); got != 4 {
		t.Errorf("expected 4 write attempts, got %d", got)
	}
	if pump.Stats().FramesSent != 2 {
		t.Errorf("expected 2 frames sent, got %d", pump.Stats().FramesSent)
	}
}

func TestSendPumpClearedFlag(t *testing.T) {
	var sending atomic.Bool
	channel := newFakeChannel()
	capture := &fakeCapture{frames: -1}

	pump := NewSendPump(capture, channel, smallConfig(), &sending)
	if err := pump.Run(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if capture.reads.Load() != 0 {
		t.Errorf("expected no reads, got %d", capture.reads.Load())
	}
	if len(channel.Writes()) != 0 {
		t.Errorf("expected no writes, got %d", len(channel.Writes()))
	}
}

func TestSendPumpRunsOnce(t *testing.T) {
	pump := NewSendPump(&fakeCapture{frames: 0}, newFakeChannel(), smallConfig(), runningFlag())
	_ = pump.Run()
	if err := pump.Run(); err == nil {
		t.Error("expected second Run to fail")
	}
	if pump.State() != SendStopped {
		t.Errorf("expected stopped, got %s", pump.State())
	}
}
