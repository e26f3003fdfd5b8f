// ABOUTME: Companion server that receives microphone streams
// ABOUTME: Accepts TCP and WebSocket streams, counts audio and sends simulated recognition text
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Resonate-Protocol/micstream/internal/discovery"
	"github.com/Resonate-Protocol/micstream/internal/observe"
	"github.com/Resonate-Protocol/micstream/internal/transport"
	"github.com/Resonate-Protocol/micstream/pkg/stream"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DefaultReadSize is how much is read from a stream at a time.
const DefaultReadSize = 4096

// Config holds server configuration
type Config struct {
	// Addr is the TCP listen address. Empty disables TCP.
	Addr string

	// WSAddr is the WebSocket listen address. Empty disables WebSocket.
	WSAddr string

	Name       string
	EnableMDNS bool

	// SampleRate is used only to report received audio as a duration.
	SampleRate int

	ReadSize int

	// Recognizer answers chunks. Nil means never reply.
	Recognizer Recognizer

	// Metrics is optional.
	Metrics *observe.ServerMetrics

	// OnSessionEnd, if set, is called after each stream closes.
	OnSessionEnd func(Summary)
}

// Summary describes a finished stream.
type Summary struct {
	ID        string
	Transport transport.Kind
	Remote    string
	Bytes     int64
	Replies   int64
	Duration  time.Duration
	Audio     time.Duration
}

// conn is the part of a transport channel a session needs.
type conn interface {
	Read(p []byte) (int, error)
	WriteAll(p []byte) error
	Close() error
	RemoteAddr() net.Addr
}

// Server accepts microphone streams.
type Server struct {
	config   Config
	upgrader websocket.Upgrader

	tcpListener net.Listener
	wsListener  net.Listener
	httpServer  *http.Server
	mdnsManager *discovery.Manager

	sessions   map[string]conn
	sessionsMu sync.Mutex
	isShutdown bool

	ready    chan struct{}
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a new server instance
func New(config Config) *Server {
	if config.ReadSize <= 0 {
		config.ReadSize = DefaultReadSize
	}
	if config.SampleRate <= 0 {
		config.SampleRate = stream.DefaultSampleRate
	}

	return &Server{
		config: config,
		upgrader: websocket.Upgrader{
			// Streams come from native clients, not browsers.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions: make(map[string]conn),
		ready:    make(chan struct{}),
		stopChan: make(chan struct{}),
	}
}

// Ready is closed once all listeners are bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// TCPAddr returns the bound TCP address, or nil. Valid after Ready.
func (s *Server) TCPAddr() net.Addr {
	if s.tcpListener == nil {
		return nil
	}
	return s.tcpListener.Addr()
}

// WSAddr returns the bound WebSocket address, or nil. Valid after Ready.
func (s *Server) WSAddr() net.Addr {
	if s.wsListener == nil {
		return nil
	}
	return s.wsListener.Addr()
}

// Start binds the listeners and serves until Stop.
func (s *Server) Start() error {
	if s.config.Addr == "" && s.config.WSAddr == "" {
		return errors.New("no listen address configured")
	}

	if s.config.Addr != "" {
		ln, err := net.Listen("tcp", s.config.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
		}
		s.tcpListener = ln
		log.Printf("TCP stream listener on %s", ln.Addr())
	}

	if s.config.WSAddr != "" {
		ln, err := net.Listen("tcp", s.config.WSAddr)
		if err != nil {
			if s.tcpListener != nil {
				s.tcpListener.Close()
			}
			return fmt.Errorf("failed to listen on %s: %w", s.config.WSAddr, err)
		}
		s.wsListener = ln

		mux := http.NewServeMux()
		mux.HandleFunc(transport.WebSocketPath, s.handleWebSocket)
		s.httpServer = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		log.Printf("WebSocket stream listener on ws://%s%s", ln.Addr(), transport.WebSocketPath)
	}

	if s.config.EnableMDNS {
		s.startMDNS()
	}

	errChan := make(chan error, 2)
	if s.tcpListener != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.acceptLoop(); err != nil {
				errChan <- err
			}
		}()
	}
	if s.httpServer != nil {
		go func() {
			if err := s.httpServer.Serve(s.wsListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()
	}

	close(s.ready)

	var serverErr error
	select {
	case <-s.stopChan:
		log.Printf("Server shutting down...")
	case err := <-errChan:
		log.Printf("Listener error: %v", err)
		serverErr = err
	}

	s.shutdown()

	if serverErr != nil {
		return fmt.Errorf("server failed: %w", serverErr)
	}
	return nil
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

func (s *Server) shutdown() {
	// Reject new sessions, then close the live ones.
	s.sessionsMu.Lock()
	s.isShutdown = true
	for _, c := range s.sessions {
		c.Close()
	}
	s.sessionsMu.Unlock()

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}
	if s.tcpListener != nil {
		s.tcpListener.Close()
	}
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}

	s.wg.Wait()
	log.Printf("Server stopped cleanly")
}

func (s *Server) startMDNS() {
	port, kind := 0, transport.KindTCP
	if addr, ok := s.TCPAddr().(*net.TCPAddr); ok {
		port = addr.Port
	} else if addr, ok := s.WSAddr().(*net.TCPAddr); ok {
		port, kind = addr.Port, transport.KindWebSocket
	}

	s.mdnsManager = discovery.NewManager(discovery.Config{
		ServiceName: s.config.Name,
		Port:        port,
		Transport:   string(kind),
	})
	if err := s.mdnsManager.Advertise(); err != nil {
		log.Printf("Failed to start mDNS advertisement: %v", err)
	} else {
		log.Printf("mDNS advertisement started")
	}
}

func (s *Server) acceptLoop() error {
	for {
		c, err := s.tcpListener.Accept()
		if err != nil {
			select {
			case <-s.stopChan:
				return nil
			default:
			}
			return err
		}

		log.Printf("Client connected from: %s", c.RemoteAddr())
		if !s.trackSession() {
			c.Close()
			continue
		}
		go func() {
			defer s.wg.Done()
			s.handleSession(transport.NewTCPChannel(c), transport.KindTCP)
		}()
	}
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	c, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("New WebSocket connection from %s", r.RemoteAddr)
	if !s.trackSession() {
		log.Printf("Rejecting connection during shutdown")
		c.Close()
		return
	}
	defer s.wg.Done()
	s.handleSession(transport.NewWSChannel(c), transport.KindWebSocket)
}

// handleSession reads one stream until the client disconnects.
func (s *Server) handleSession(c conn, kind transport.Kind) {
	id := uuid.New().String()
	defer c.Close()

	if !s.addSession(id, c) {
		log.Printf("Rejecting connection during shutdown")
		return
	}
	defer s.removeSession(id)

	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("transport", string(kind)))
	if m := s.config.Metrics; m != nil {
		m.Sessions.Add(ctx, 1, attrs)
		m.ActiveSessions.Add(ctx, 1, attrs)
		defer m.ActiveSessions.Add(ctx, -1, attrs)
	}

	summary := Summary{ID: id, Transport: kind, Remote: c.RemoteAddr().String()}
	started := time.Now()
	buf := make([]byte, s.config.ReadSize)

	for {
		n, err := c.Read(buf)
		if n > 0 {
			summary.Bytes += int64(n)
			if m := s.config.Metrics; m != nil {
				m.BytesReceived.Add(ctx, int64(n), attrs)
			}
			if s.reply(c, buf[:n]) {
				summary.Replies++
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Printf("Error handling client %s: %v", summary.Remote, err)
			}
			break
		}
	}

	summary.Duration = time.Since(started)
	summary.Audio = audioDuration(summary.Bytes, s.config.SampleRate)
	log.Printf("Client %s disconnected (session %s): %d bytes, %.1fs of audio, %d replies",
		summary.Remote, id, summary.Bytes, summary.Audio.Seconds(), summary.Replies)

	if s.config.OnSessionEnd != nil {
		s.config.OnSessionEnd(summary)
	}
}

// reply sends recognition text for chunk, if any. It reports whether a
// reply was sent.
func (s *Server) reply(c conn, chunk []byte) bool {
	if s.config.Recognizer == nil {
		return false
	}
	text := s.config.Recognizer.Recognize(chunk)
	if text == "" {
		return false
	}
	if err := c.WriteAll([]byte(text)); err != nil {
		log.Printf("Failed to send reply: %v", err)
		return false
	}
	if m := s.config.Metrics; m != nil {
		m.RepliesSent.Add(context.Background(), 1)
	}
	return true
}

// trackSession adds a session goroutine to wg unless shutdown has begun.
// It takes the lock shutdown holds while setting isShutdown, before Wait.
func (s *Server) trackSession() bool {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	if s.isShutdown {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Server) addSession(id string, c conn) bool {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	if s.isShutdown {
		return false
	}
	s.sessions[id] = c
	return true
}

func (s *Server) removeSession(id string) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	delete(s.sessions, id)
}

// audioDuration converts 16-bit mono byte counts to playback time.
func audioDuration(bytes int64, sampleRate int) time.Duration {
	samples := bytes / stream.DefaultSampleWidth
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
