// ABOUTME: Tests for the companion server
// ABOUTME: Streams PCM over TCP and WebSocket and checks replies and summaries
package server

import (
	"context"
	"io"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/Resonate-Protocol/micstream/internal/transport"
	"github.com/Resonate-Protocol/micstream/pkg/stream"
)

// onceRecognizer answers only the first chunk, so the client can read every
// reply before closing.
type onceRecognizer struct {
	text string
	once sync.Once
}

func (o *onceRecognizer) Recognize([]byte) string {
	reply := ""
	o.once.Do(func() { reply = o.text })
	return reply
}

func startServer(t *testing.T, cfg Config) (*Server, <-chan Summary) {
	t.Helper()
	summaries := make(chan Summary, 4)
	cfg.OnSessionEnd = func(s Summary) { summaries <- s }

	srv := New(cfg)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-srv.Ready():
	case err := <-errCh:
		t.Fatalf("Start failed: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not become ready")
	}

	t.Cleanup(func() {
		srv.Stop()
		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("Start returned error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return srv, summaries
}

func waitSummary(t *testing.T, summaries <-chan Summary) Summary {
	t.Helper()
	select {
	case s := <-summaries:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no session summary")
	}
	return Summary{}
}

func TestServerTCPStream(t *testing.T) {
	srv, summaries := startServer(t, Config{
		Addr:       "127.0.0.1:0",
		Recognizer: &onceRecognizer{text: "ok\n"},
	})

	ch, err := transport.Dial(context.Background(), transport.KindTCP, srv.TCPAddr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	frame := make([]byte, 6400)
	if err := ch.WriteAll(frame); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}

	reply := make([]byte, 3)
	if _, err := io.ReadFull(ch, reply); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(reply) != "ok\n" {
		t.Errorf("expected reply ok, got %q", reply)
	}
	ch.Close()

	s := waitSummary(t, summaries)
	if s.Bytes != 6400 {
		t.Errorf("expected 6400 bytes, got %d", s.Bytes)
	}
	if s.Audio != 200*time.Millisecond {
		t.Errorf("expected 200ms of audio, got %v", s.Audio)
	}
	if s.Transport != transport.KindTCP {
		t.Errorf("expected tcp, got %s", s.Transport)
	}
	if s.Replies != 1 {
		t.Errorf("expected one reply, got %d", s.Replies)
	}
	if s.ID == "" {
		t.Error("expected session ID")
	}
}

func TestServerWebSocketStream(t *testing.T) {
	srv, summaries := startServer(t, Config{WSAddr: "127.0.0.1:0"})

	ch, err := transport.Dial(context.Background(), transport.KindWebSocket, srv.WSAddr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := ch.WriteAll(make([]byte, 320)); err != nil {
			t.Fatalf("WriteAll failed: %v", err)
		}
	}
	ch.Close()

	s := waitSummary(t, summaries)
	if s.Bytes != 960 {
		t.Errorf("expected 960 bytes, got %d", s.Bytes)
	}
	if s.Transport != transport.KindWebSocket {
		t.Errorf("expected ws, got %s", s.Transport)
	}
	if s.Replies != 0 {
		t.Errorf("expected no replies without recognizer, got %d", s.Replies)
	}
}

func TestServerStopClosesSessions(t *testing.T) {
	srv := New(Config{Addr: "127.0.0.1:0"})
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	<-srv.Ready()

	ch, err := transport.DialTCP(context.Background(), srv.TCPAddr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer ch.Close()
	ch.WriteAll([]byte{0, 0})

	srv.Stop()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("expected clean stop, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not end Start")
	}

	if _, err := ch.Read(make([]byte, 8)); err == nil {
		t.Error("expected client read to fail after server stop")
	}
}

func TestServerRequiresAddress(t *testing.T) {
	if err := New(Config{}).Start(); err == nil {
		t.Error("expected error without listen address")
	}
}

func TestAudioDuration(t *testing.T) {
	if d := audioDuration(32000, stream.DefaultSampleRate); d != time.Second {
		t.Errorf("expected 1s, got %v", d)
	}
	if d := audioDuration(0, 16000); d != 0 {
		t.Errorf("expected 0, got %v", d)
	}
}

func TestSimulatedRecognizer(t *testing.T) {
	never := NewSimulatedRecognizer(0, 1)
	always := NewSimulatedRecognizer(1, 1)
	chunk := []byte{1, 2}

	for i := 0; i < 50; i++ {
		if got := never.Recognize(chunk); got != "" {
			t.Fatalf("expected no reply at rate 0, got %q", got)
		}
		got := always.Recognize(chunk)
		if !slices.Contains(simulatedWords, got) {
			t.Fatalf("unexpected word %q", got)
		}
	}

	if got := always.Recognize(nil); got != "" {
		t.Errorf("expected no reply for empty chunk, got %q", got)
	}
}

func TestSimulatedRecognizerRate(t *testing.T) {
	r := NewSimulatedRecognizer(DefaultReplyRate, 42)
	replies := 0
	for i := 0; i < 1000; i++ {
		if r.Recognize([]byte{0}) != "" {
			replies++
		}
	}
	if replies < 200 || replies > 400 {
		t.Errorf("expected about 300 replies, got %d", replies)
	}
}

func TestSimulatedRecognizerSeeded(t *testing.T) {
	a := NewSimulatedRecognizer(0.5, 7)
	b := NewSimulatedRecognizer(0.5, 7)
	for i := 0; i < 20; i++ {
		if a.Recognize([]byte{0}) != b.Recognize([]byte{0}) {
			t.Fatal("expected identical sequences for identical seeds")
		}
	}
}

func TestTrackSessionRejectedAfterShutdown(t *testing.T) {
	srv := New(Config{Addr: "127.0.0.1:0"})

	if !srv.trackSession() {
		t.Fatal("expected session to be tracked before shutdown")
	}
	srv.wg.Done()

	done := make(chan struct{})
	go func() {
		srv.shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not return")
	}

	if srv.trackSession() {
		srv.wg.Done()
		t.Error("expected session to be rejected after shutdown")
	}
}
