package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/vivekkundariya/wgtunnel/internal/domain/tunnel"
)

func TestTable_RenderAlignsColoredCells(t *testing.T) {
	defer SetColor(SetColor(true))

	var buf bytes.Buffer
	table := NewTable(&buf, "Name", "State")
	table.AppendRow([]interface{}{"office", State(tunnel.State{Kind: tunnel.KindUp})})
	table.AppendRow([]interface{}{"home-lab", State(tunnel.Down())})
	table.Render()

	out := buf.String()
	if !strings.HasPrefix(out, "╭") {
		t.Errorf("Expected a rounded table, got:\n%s", out)
	}
	if !strings.Contains(out, text.FgGreen.Sprint("up")) {
		t.Errorf("Expected a green up state, got %q", out)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 6 {
		t.Fatalf("Expected 6 lines, got %d:\n%s", len(lines), out)
	}
	want := text.StringWidthWithoutEscSequences(lines[0])
	for _, l := range lines[1:] {
		if got := text.StringWidthWithoutEscSequences(l); got != want {
			t.Errorf("Row %q is %d wide, want %d", l, got, want)
		}
	}
}

func TestState(t *testing.T) {
	defer SetColor(SetColor(false))

	if got := State(tunnel.Failed("wg-quick up timed out after 30s")); got != "failed(wg-quick up timed out after 30s)" {
		t.Errorf("State() = %q", got)
	}
	if StateColor(tunnel.KindUp) != Green || StateColor(tunnel.KindFailed) != Red {
		t.Error("Unexpected state colors")
	}
}

func TestBytes(t *testing.T) {
	tests := map[int64]string{
		0:           "0 B",
		1023:        "1023 B",
		1024:        "1.00 KiB",
		1536:        "1.50 KiB",
		5 << 20:     "5.00 MiB",
		3 << 30 / 2: "1.50 GiB",
	}
	for n, want := range tests {
		if got := Bytes(n); got != want {
			t.Errorf("Bytes(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestSince(t *testing.T) {
	now := time.Now()
	if got := Since(time.Time{}, now); got != "never" {
		t.Errorf("Since(zero) = %q", got)
	}
	if got := Since(now.Add(-90*time.Second), now); got != "1m30s ago" {
		t.Errorf("Since(90s) = %q", got)
	}
}

func TestShowSpinner(t *testing.T) {
	var buf bytes.Buffer
	defer SetOutput(SetOutput(&buf))
	defer SetColor(SetColor(false))

	_ = ShowSpinner("Bringing up office", func() error { return nil })
	err := ShowSpinner("Bringing up home", func() error { return errors.New("denied") })

	if err == nil {
		t.Error("ShowSpinner should return the action's error")
	}
	out := buf.String()
	if !strings.Contains(out, "Bringing up office... ✓") || !strings.Contains(out, "Bringing up home... ✗") {
		t.Errorf("Unexpected output:\n%s", out)
	}
}

func TestMessages(t *testing.T) {
	var buf bytes.Buffer
	defer SetOutput(SetOutput(&buf))
	defer SetColor(SetColor(false))

	Debug("hidden")
	SetVerbose(true)
	Debug("shown %d", 1)
	SetVerbose(false)
	Successf("Saved %s", "office")
	Errorf("boom")

	want := "· shown 1\n✓ Saved office\n✗ boom\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestTunnelStatus_Colored(t *testing.T) {
	var buf bytes.Buffer
	defer SetOutput(SetOutput(&buf))
	defer SetColor(SetColor(true))

	TunnelStatus("office", "up", Green)
	if !strings.Contains(buf.String(), Colorize("up", Green)) {
		t.Errorf("expected a green state, got %q", buf.String())
	}
}
