// Package ui prints human-facing CLI output: status lines, tables and
// spinners. Diagnostics go through internal/logging instead.
package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

// Terminal color codes
const (
	Reset  = "\033[0m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Purple = "\033[35m"
	Cyan   = "\033[36m"
	White  = "\033[37m"
)

type level int

const (
	levelDebug level = iota
	levelInfo
	levelSuccess
	levelWarn
	levelError
)

var marks = map[level]struct {
	plain string
	color string
}{
	levelDebug:   {"·", Cyan},
	levelInfo:    {"i", Blue},
	levelSuccess: {"✓", Green},
	levelWarn:    {"!", Yellow},
	levelError:   {"✗", Red},
}

// console is the process-wide output sink. All writes hold mu so lines
// from concurrent goroutines never interleave.
type console struct {
	mu       sync.Mutex
	out      io.Writer
	verbose  bool
	useColor bool
}

var std = &console{out: os.Stdout, useColor: colorTerminal(os.Stdout)}

// colorTerminal reports whether f is a terminal and NO_COLOR is unset
func colorTerminal(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return isatty.IsTerminal(f.Fd())
}

// Colorize wraps text with a color code
func Colorize(text string, color string) string {
	return color + text + Reset
}

// SetVerbose shows or hides Debug output
func SetVerbose(v bool) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.verbose = v
}

// SetOutput redirects all output and returns the previous writer
func SetOutput(w io.Writer) io.Writer {
	std.mu.Lock()
	defer std.mu.Unlock()
	prev := std.out
	std.out = w
	return prev
}

// SetColor turns colors on or off and returns the previous setting
func SetColor(c bool) bool {
	std.mu.Lock()
	defer std.mu.Unlock()
	prev := std.useColor
	std.useColor = c
	return prev
}

func colorEnabled() bool {
	std.mu.Lock()
	defer std.mu.Unlock()
	return std.useColor
}

// paint colors text when colors are on. Callers hold std.mu.
func (c *console) paint(text, color string) string {
	if !c.useColor {
		return text
	}
	return Colorize(text, color)
}

func (c *console) printf(lvl level, format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if lvl == levelDebug && !c.verbose {
		return
	}
	m := marks[lvl]
	fmt.Fprintf(c.out, "%s %s\n", c.paint(m.plain, m.color), fmt.Sprintf(format, args...))
}

// Debug prints a message only shown with --verbose
func Debug(format string, args ...any) { std.printf(levelDebug, format, args...) }

// Infof prints an informational message
func Infof(format string, args ...any) { std.printf(levelInfo, format, args...) }

// Successf prints a completed action
func Successf(format string, args ...any) { std.printf(levelSuccess, format, args...) }

// Warnf prints a problem that did not stop the command
func Warnf(format string, args ...any) { std.printf(levelWarn, format, args...) }

// Errorf prints the error that ended the command
func Errorf(format string, args ...any) { std.printf(levelError, format, args...) }

// Step prints one step of a longer action
func Step(format string, args ...any) {
	std.mu.Lock()
	defer std.mu.Unlock()
	fmt.Fprintf(std.out, "  %s %s\n", std.paint("→", Cyan), fmt.Sprintf(format, args...))
}

// SubStep prints an indented detail under a step
func SubStep(format string, args ...any) {
	std.mu.Lock()
	defer std.mu.Unlock()
	fmt.Fprintf(std.out, "    %s %s\n", std.paint("•", Purple), fmt.Sprintf(format, args...))
}

// Header prints a section title followed by a rule
func Header(format string, args ...any) {
	std.mu.Lock()
	defer std.mu.Unlock()
	title := fmt.Sprintf(format, args...)
	fmt.Fprintf(std.out, "\n%s\n%s\n", std.paint(title, White), std.paint("────────────────────────────────────────", Purple))
}

// TunnelStatus prints a status dot, the tunnel name and its state. color
// tints the dot and the state.
func TunnelStatus(name, status, color string) {
	std.mu.Lock()
	defer std.mu.Unlock()
	fmt.Fprintf(std.out, "  %s %-16s %s\n", std.paint("●", color), name, std.paint(status, color))
}
