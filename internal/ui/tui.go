// ABOUTME: TUI initialization and control
// ABOUTME: Wraps bubbletea program for the streaming client UI
package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// Controls lets the app observe user actions in the TUI.
type Controls struct {
	Quit chan struct{}
	once sync.Once
}

// NewControls creates a new control handler
func NewControls() *Controls {
	return &Controls{Quit: make(chan struct{})}
}

func (c *Controls) requestQuit() {
	if c == nil {
		return
	}
	c.once.Do(func() { close(c.Quit) })
}

// NewModel creates a new TUI model
func NewModel(controls *Controls) Model {
	return Model{
		state:    "connecting",
		controls: controls,
	}
}

// Run creates the TUI program. The caller starts it with Program.Run.
func Run(controls *Controls) *tea.Program {
	return tea.NewProgram(NewModel(controls), tea.WithAltScreen())
}
