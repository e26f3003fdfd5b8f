// ABOUTME: Bubbletea model for the streaming client TUI
// ABOUTME: Defines application state and update logic
package ui

import (
	"fmt"
	"strings"

	"github.com/Resonate-Protocol/micstream/pkg/stream"
	tea "github.com/charmbracelet/bubbletea"
)

// maxLines is how many received text lines the view keeps.
const maxLines = 6

// Model represents the TUI state
type Model struct {
	// Connection
	connected  bool
	state      string
	serverAddr string
	transport  string
	sessionID  string

	// Stream
	sampleRate int
	bufferMs   int
	frameBytes int
	duplex     bool

	// Stats
	stats stream.Stats

	// Received text
	lines   []string
	partial string

	// Debug
	showDebug bool

	// Dimensions
	width  int
	height int

	controls *Controls
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	case StatsMsg:
		m.stats = msg.Stats
	case ReceivedMsg:
		m.appendText(msg.Text)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderStreamInfo()
	s += m.renderStats()
	if m.duplex {
		s += m.renderReceived()
	}
	if m.showDebug {
		s += m.renderDebug()
	}
	s += m.renderHelp()

	return s
}

// renderHeader renders connection status
func (m Model) renderHeader() string {
	connStatus := "Disconnected"
	if m.connected {
		connStatus = fmt.Sprintf("Streaming to %s (%s)", m.serverAddr, m.transport)
	} else if m.state != "" {
		connStatus = strings.ToUpper(m.state[:1]) + m.state[1:]
	}

	return fmt.Sprintf(`┌─ Mic Stream ─────────────────────────────────────────┐
│ Status: %-45s │
├──────────────────────────────────────────────────────┤
`, truncate(connStatus, 45))
}

// renderStreamInfo renders the capture format
func (m Model) renderStreamInfo() string {
	if m.sampleRate == 0 {
		return "│ No stream                                            │\n"
	}
	format := fmt.Sprintf("%dHz mono s16le, %dms / %d bytes", m.sampleRate, m.bufferMs, m.frameBytes)
	return fmt.Sprintf("│ Format: %-45s │\n", truncate(format, 45))
}

// renderStats renders pipeline counters
func (m Model) renderStats() string {
	sent := fmt.Sprintf("TX: %d frames, %s", m.stats.FramesSent, formatBytes(m.stats.BytesSent))
	recv := fmt.Sprintf("RX: %d payloads, %s", m.stats.PayloadsReceived, formatBytes(m.stats.BytesReceived))
	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ Stats:  %-45s │
│         %-45s │
`, truncate(sent, 45), truncate(recv, 45))
}

// renderReceived renders the text the server sent back
func (m Model) renderReceived() string {
	s := "├──────────────────────────────────────────────────────┤\n"
	s += "│ Received:                                            │\n"

	lines := m.lines
	if m.partial != "" {
		lines = append(append([]string(nil), lines...), m.partial)
	}
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	if len(lines) == 0 {
		s += "│   (nothing yet)                                      │\n"
	}
	for _, line := range lines {
		s += fmt.Sprintf("│   %-50s │\n", truncate(line, 50))
	}
	return s
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ d:Debug  q:Quit                                      │
└──────────────────────────────────────────────────────┘
`
}

// renderDebug renders debug information
func (m Model) renderDebug() string {
	return fmt.Sprintf(`│ DEBUG:                                               │
│   Session:  %-40s │
│   Captured: %-40d │
│   Drained:  %-40s │
`, truncate(m.sessionID, 40), m.stats.FramesCaptured, formatBytes(m.stats.DrainBytes))
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.controls.requestQuit()
		return m, tea.Quit
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Connected != nil {
		m.connected = *msg.Connected
	}
	if msg.State != "" {
		m.state = msg.State
	}
	if msg.ServerAddr != "" {
		m.serverAddr = msg.ServerAddr
	}
	if msg.Transport != "" {
		m.transport = msg.Transport
	}
	if msg.SessionID != "" {
		m.sessionID = msg.SessionID
	}
	if msg.SampleRate != 0 {
		m.sampleRate = msg.SampleRate
		m.bufferMs = msg.BufferMs
		m.frameBytes = msg.FrameBytes
	}
	if msg.Duplex != nil {
		m.duplex = *msg.Duplex
	}
}

// appendText splits received text into lines, keeping an unterminated tail.
func (m *Model) appendText(text string) {
	text = strings.ToValidUTF8(m.partial+text, "?")
	parts := strings.Split(text, "\n")
	m.partial = parts[len(parts)-1]
	for _, line := range parts[:len(parts)-1] {
		m.lines = append(m.lines, strings.TrimRight(line, "\r"))
	}
	if len(m.lines) > maxLines {
		m.lines = m.lines[len(m.lines)-maxLines:]
	}
}

// StatusMsg updates TUI state
type StatusMsg struct {
	Connected  *bool
	State      string
	ServerAddr string
	Transport  string
	SessionID  string
	SampleRate int
	BufferMs   int
	FrameBytes int
	Duplex     *bool
}

// StatsMsg carries a fresh counter snapshot
type StatsMsg struct {
	Stats stream.Stats
}

// ReceivedMsg carries text received from the server
type ReceivedMsg struct {
	Text string
}

// Utility functions
func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
