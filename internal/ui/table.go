package ui

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/vivekkundariya/wgtunnel/internal/domain/tunnel"
)

var stateColors = map[tunnel.Kind]text.Color{
	tunnel.KindUp:           text.FgGreen,
	tunnel.KindBringingUp:   text.FgYellow,
	tunnel.KindBringingDown: text.FgYellow,
	tunnel.KindFailed:       text.FgRed,
	tunnel.KindUnmanaged:    text.FgMagenta,
}

// NewTable returns a rounded table that renders to w
func NewTable(w io.Writer, header ...interface{}) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	if len(header) > 0 {
		t.AppendHeader(table.Row(header))
	}
	return t
}

// State renders a state for a table cell, colored unless color output is off
func State(s tunnel.State) string {
	label := s.String()
	if !colorEnabled() {
		return label
	}
	color, ok := stateColors[s.Kind]
	if !ok {
		return label
	}
	return color.Sprint(label)
}

// staleAfter is how long a session lives without a new handshake
const staleAfter = 3 * time.Minute

// Handshake renders a peer's latest handshake, in yellow once the session
// has gone stale
func Handshake(t, now time.Time) string {
	since := Since(t, now)
	if colorEnabled() && !t.IsZero() && now.Sub(t) > staleAfter {
		return text.FgYellow.Sprint(since)
	}
	return since
}
