// ABOUTME: Tests for the capture ring buffer
// ABOUTME: Covers blocking reads, overflow and close
package capture

import (
	"errors"
	"testing"
	"time"
)

func TestRingBufferReadFull(t *testing.T) {
	rb := NewRingBuffer(8)

	if n := rb.Write([]byte{1, 2, 3, 4, 5, 6}); n != 6 {
		t.Fatalf("expected 6 bytes written, got %d", n)
	}

	p := make([]byte, 4)
	if _, err := rb.ReadFull(p); err != nil {
		t.Fatalf("ReadFull failed: %v", err)
	}
	if p[0] != 1 || p[3] != 4 {
		t.Errorf("unexpected bytes %v", p)
	}
	if rb.Available() != 2 {
		t.Errorf("expected 2 bytes available, got %d", rb.Available())
	}

	// wraps around the end of the backing array
	rb.Write([]byte{7, 8, 9, 10})
	p = make([]byte, 6)
	if _, err := rb.ReadFull(p); err != nil {
		t.Fatalf("ReadFull failed: %v", err)
	}
	want := []byte{5, 6, 7, 8, 9, 10}
	for i := range want {
		if p[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, p)
		}
	}
}

func TestRingBufferBlocksUntilFull(t *testing.T) {
	rb := NewRingBuffer(16)
	done := make(chan error, 1)

	go func() {
		_, err := rb.ReadFull(make([]byte, 4))
		done <- err
	}()

	rb.Write([]byte{1, 2})
	select {
	case <-done:
		t.Fatal("ReadFull returned before enough data arrived")
	case <-time.After(20 * time.Millisecond):
	}

	rb.Write([]byte{3, 4})
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("ReadFull did not return")
	}
}

func TestRingBufferOverflow(t *testing.T) {
	rb := NewRingBuffer(4)

	if n := rb.Write([]byte{1, 2, 3, 4, 5}); n != 4 {
		t.Errorf("expected 4 bytes written, got %d", n)
	}
	if _, err := rb.ReadFull(make([]byte, 2)); !errors.Is(err, errOverflow) {
		t.Errorf("expected overflow error, got %v", err)
	}
}

func TestRingBufferCloseWakesReader(t *testing.T) {
	rb := NewRingBuffer(4)
	done := make(chan error, 1)

	go func() {
		_, err := rb.ReadFull(make([]byte, 4))
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	rb.Close()

	select {
	case err := <-done:
		if !errors.Is(err, errClosed) {
			t.Errorf("expected errClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not wake reader")
	}

	if n := rb.Write([]byte{1}); n != 0 {
		t.Errorf("expected write after close to be dropped, got %d", n)
	}
}
