package ui

import (
	"fmt"
)

// Spinner prints a message while a blocking action runs and a mark when it ends
type Spinner struct {
	message string
	done    bool
}

// NewSpinner creates a new spinner
func NewSpinner(message string) *Spinner {
	return &Spinner{message: message}
}

// Start prints the message
func (s *Spinner) Start() {
	std.mu.Lock()
	defer std.mu.Unlock()
	fmt.Fprintf(std.out, "  %s...", s.message)
}

// Stop ends the line with a check mark, or a cross when err is set
func (s *Spinner) Stop(err error) {
	if s.done {
		return
	}
	s.done = true

	std.mu.Lock()
	defer std.mu.Unlock()
	m := marks[levelSuccess]
	if err != nil {
		m = marks[levelError]
	}
	fmt.Fprintf(std.out, " %s\n", std.paint(m.plain, m.color))
}

// ShowSpinner runs fn between Start and Stop
func ShowSpinner(message string, fn func() error) error {
	spinner := NewSpinner(message)
	spinner.Start()

	err := fn()

	spinner.Stop(err)
	return err
}
