// ABOUTME: In-memory Capture and Channel doubles for pipeline tests
// ABOUTME: Record every write and script reads, failures and blocking
package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var errFake = errors.New("fake failure")

// fakeCapture yields frames filled with the frame index. After frames reads
// it fails; frames < 0 never fails.
type fakeCapture struct {
	frames  int
	partial int // bytes filled on the failing read
	delay   time.Duration

	startErr error

	reads   atomic.Int64
	started atomic.Bool
	closed  atomic.Bool
	closeN  atomic.Int64
}

func (f *fakeCapture) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started.Store(true)
	return nil
}

func (f *fakeCapture) ReadFrame(buf []byte) (int, error) {
	if f.closed.Load() {
		return 0, errors.New("capture closed")
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	i := f.reads.Add(1)
	if f.frames >= 0 && i > int64(f.frames) {
		for j := 0; j < f.partial && j < len(buf); j++ {
			buf[j] = 0xEE
		}
		return f.partial, errFake
	}
	for j := range buf {
		buf[j] = byte(i)
	}
	return len(buf), nil
}

func (f *fakeCapture) Close() error {
	f.closeN.Add(1)
	f.closed.Store(true)
	return nil
}

// fakeChannel records writes and serves scripted payloads.
type fakeChannel struct {
	mu     sync.Mutex
	writes [][]byte

	failWritesAfter int // 0 never fails
	payloads        chan []byte
	readErr         error // returned once payloads is drained and closed

	cancelOnce sync.Once
	cancel     chan struct{}
	closeOnce  sync.Once
	done       chan struct{}
	closed     atomic.Bool
	closeN     atomic.Int64
}

func newFakeChannel(payloads ...string) *fakeChannel {
	ch := make(chan []byte, len(payloads))
	for _, p := range payloads {
		ch <- []byte(p)
	}
	return &fakeChannel{
		payloads: ch,
		cancel:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// endWith closes the payload script so reads return err after the last one.
func (f *fakeChannel) endWith(err error) *fakeChannel {
	f.readErr = err
	close(f.payloads)
	return f
}

func (f *fakeChannel) WriteAll(p []byte) error {
	if f.closed.Load() {
		return errors.New("channel closed")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWritesAfter > 0 && len(f.writes) >= f.failWritesAfter {
		f.writes = append(f.writes, nil) // record the attempt
		return errFake
	}
	f.writes = append(f.writes, append([]byte(nil), p...))
	return nil
}

func (f *fakeChannel) Read(p []byte) (int, error) {
	select {
	case payload, ok := <-f.payloads:
		if !ok {
			return 0, f.readErr
		}
		return copy(p, payload), nil
	case <-f.cancel:
		return 0, errors.New("read cancelled")
	case <-f.done:
		return 0, errors.New("channel closed")
	}
}

func (f *fakeChannel) CancelRead() error {
	f.cancelOnce.Do(func() { close(f.cancel) })
	return nil
}

func (f *fakeChannel) Close() error {
	f.closeN.Add(1)
	f.closed.Store(true)
	f.closeOnce.Do(func() { close(f.done) })
	return nil
}

func (f *fakeChannel) Writes() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.writes))
	copy(out, f.writes)
	return out
}

// sink collects consumed payloads.
type sink struct {
	mu  sync.Mutex
	got []string
}

func (s *sink) Consume(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, string(p))
}

func (s *sink) Got() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.got...)
}

func openerFor(c Capture) CaptureOpener {
	return func(Config) (Capture, error) { return c, nil }
}

func dialerFor(ch Channel) Dialer {
	return func(context.Context, string) (Channel, error) { return ch, nil }
}

var _ io.Reader = (*fakeChannel)(nil)
