package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/vivekkundariya/wgtunnel/internal/domain/tunnel"
	"github.com/vivekkundariya/wgtunnel/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow tunnel events",
	Long: `Print tunnel events as they happen: state changes, refreshed
statistics, configs added, changed or removed on disk, and live interfaces
without a config. Runs until interrupted.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().Bool("stats", false, "Also print statistics refreshes")
}

func runWatch(cmd *cobra.Command, args []string) error {
	stats, _ := cmd.Flags().GetBool("stats")

	events, cancel := container.Tunnels.Subscribe()
	defer cancel()

	ui.Infof("Watching %s (Ctrl+C to stop)", settings.ConfigsPath())
	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Type == tunnel.EventStatsUpdated && !stats {
				continue
			}
			fmt.Println(formatEvent(ev))
		}
	}
}

// formatEvent renders one event as a single line
func formatEvent(ev tunnel.Event) string {
	ts := ev.Time.Format(time.TimeOnly)
	switch ev.Type {
	case tunnel.EventStateChanged:
		return fmt.Sprintf("%s  %-16s %s: %s -> %s", ts, ev.Type, ev.Tunnel, ev.Previous, ui.State(ev.Snapshot.State))
	case tunnel.EventStatsUpdated:
		var rx, tx int64
		for _, p := range ev.Snapshot.State.Peers {
			rx += p.RxBytes
			tx += p.TxBytes
		}
		return fmt.Sprintf("%s  %-16s %s: %s received, %s sent", ts, ev.Type, ev.Tunnel, ui.Bytes(rx), ui.Bytes(tx))
	case tunnel.EventLoadFailed:
		return fmt.Sprintf("%s  %-16s %s: %v", ts, ev.Type, ev.Tunnel, ev.Err)
	default:
		line := fmt.Sprintf("%s  %-16s %s", ts, ev.Type, ev.Tunnel)
		if ev.Err != nil {
			line += fmt.Sprintf(": %v", ev.Err)
		}
		return line
	}
}
