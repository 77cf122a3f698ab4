package ui

import (
	"fmt"
	"time"

	"github.com/vivekkundariya/wgtunnel/internal/domain/tunnel"
)

// StateColor is the color a tunnel state is shown in
func StateColor(kind tunnel.Kind) string {
	switch kind {
	case tunnel.KindUp:
		return Green
	case tunnel.KindBringingUp, tunnel.KindBringingDown:
		return Yellow
	case tunnel.KindFailed:
		return Red
	case tunnel.KindUnmanaged:
		return Purple
	default:
		return White
	}
}

// Bytes formats a byte count the way wg show does
func Bytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Since formats how long ago t was, "never" for the zero time
func Since(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := now.Sub(t).Round(time.Second)
	if d < 0 {
		d = 0
	}
	return d.String() + " ago"
}
