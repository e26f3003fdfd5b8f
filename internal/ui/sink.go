// ABOUTME: Diagnostic consumers for data received from the server
// ABOUTME: Forward payloads to the TUI or print them as text
package ui

import (
	"io"
	"log"
	"sync"

	"github.com/Resonate-Protocol/micstream/pkg/stream"
	tea "github.com/charmbracelet/bubbletea"
)

// Sender is satisfied by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

// TUIConsumer delivers received payloads to the TUI as ReceivedMsg.
type TUIConsumer struct {
	prog Sender
}

// NewTUIConsumer creates a consumer that sends to prog.
func NewTUIConsumer(prog Sender) *TUIConsumer {
	return &TUIConsumer{prog: prog}
}

// Consume copies p before handing it to the UI goroutine.
func (c *TUIConsumer) Consume(p []byte) {
	c.prog.Send(ReceivedMsg{Text: string(p)})
}

// WriterConsumer writes received payloads verbatim, for non-TUI mode.
type WriterConsumer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterConsumer creates a consumer writing to w.
func NewWriterConsumer(w io.Writer) *WriterConsumer {
	return &WriterConsumer{w: w}
}

// Consume writes p to the underlying writer.
func (c *WriterConsumer) Consume(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.w.Write(p); err != nil {
		log.Printf("Failed to write received data: %v", err)
	}
}

var (
	_ stream.Consumer = (*TUIConsumer)(nil)
	_ stream.Consumer = (*WriterConsumer)(nil)
)
