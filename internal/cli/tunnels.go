package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/vivekkundariya/wgtunnel/internal/application/commands"
	"github.com/vivekkundariya/wgtunnel/internal/application/queries"
	"github.com/vivekkundariya/wgtunnel/internal/domain/tunnel"
	"github.com/vivekkundariya/wgtunnel/internal/ui"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tunnels and their state",
	Long: `List every tunnel with a saved config, plus live WireGuard interfaces
that have none (shown as unmanaged).`,
	RunE: runList,
}

var statusCmd = &cobra.Command{
	Use:   "status <name>",
	Short: "Show the live status of a tunnel",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var upCmd = &cobra.Command{
	Use:   "up <name>...",
	Short: "Bring tunnels up",
	Long: `Bring one or more tunnels up with wg-quick.

Each tunnel is authorized through the system authority first. Several
tunnels come up concurrently.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUp,
}

var downCmd = &cobra.Command{
	Use:   "down [name]...",
	Short: "Bring tunnels down",
	RunE:  runDown,
}

func init() {
	listCmd.Flags().Bool("active", false, "Only show tunnels that are up or coming up")
	listCmd.Flags().Bool("managed", false, "Hide interfaces without a saved config")
	statusCmd.Flags().Bool("no-refresh", false, "Show the last polled status instead of querying now")
	downCmd.Flags().Bool("all", false, "Bring every managed tunnel that is up down")
}

func runList(cmd *cobra.Command, args []string) error {
	active, _ := cmd.Flags().GetBool("active")
	managed, _ := cmd.Flags().GetBool("managed")

	snaps := container.ListQueryHandler.Handle(queries.ListQuery{ActiveOnly: active, ManagedOnly: managed})
	if len(snaps) == 0 {
		ui.Infof("No tunnels found in %s", settings.ConfigsPath())
		return nil
	}

	printList(os.Stdout, snaps)
	return nil
}

func printList(w io.Writer, snaps []tunnel.Snapshot) {
	t := ui.NewTable(w, "Name", "State", "Address", "Peers", "Description")
	for _, s := range snaps {
		peers := fmt.Sprintf("%d", s.Peers)
		if !s.Managed {
			peers = "-"
		}
		t.AppendRow(table.Row{s.Name, ui.State(s.State), strings.Join(s.Address, ", "), peers, s.FriendlyName})
	}
	t.Render()
}

func runStatus(cmd *cobra.Command, args []string) error {
	noRefresh, _ := cmd.Flags().GetBool("no-refresh")

	snap, err := container.StatusQueryHandler.Handle(cmd.Context(), queries.StatusQuery{
		TunnelName: args[0],
		Refresh:    !noRefresh,
	})
	if err != nil {
		return err
	}
	printStatus(os.Stdout, snap, time.Now())
	return nil
}

func printStatus(w io.Writer, s tunnel.Snapshot, now time.Time) {
	ui.Header("Tunnel %s", s.Name)
	ui.TunnelStatus(s.Name, s.State.String(), ui.StateColor(s.State.Kind))

	t := ui.NewTable(w, "Field", "Value")
	t.AppendRow(table.Row{"Since", ui.Since(s.State.Since, now)})
	if s.FriendlyName != "" {
		t.AppendRow(table.Row{"Description", s.FriendlyName})
	}
	if len(s.Address) > 0 {
		t.AppendRow(table.Row{"Address", strings.Join(s.Address, ", ")})
	}
	if s.PublicKey != "" {
		t.AppendRow(table.Row{"Public Key", s.PublicKey})
	}
	if !s.Managed {
		t.AppendRow(table.Row{"Config", "none (unmanaged)"})
	}
	t.Render()

	if len(s.State.Peers) == 0 {
		return
	}
	fmt.Fprintln(w)
	peers := ui.NewTable(w, "Peer", "Endpoint", "Allowed IPs", "Handshake", "Received", "Sent")
	for _, p := range s.State.Peers {
		endpoint := p.Endpoint
		if endpoint == "" {
			endpoint = "-"
		}
		peers.AppendRow(table.Row{
			p.PublicKey,
			endpoint,
			strings.Join(p.AllowedIPs, ", "),
			ui.Handshake(p.LatestHandshake, now),
			ui.Bytes(p.RxBytes),
			ui.Bytes(p.TxBytes),
		})
	}
	peers.Render()
}

func runUp(cmd *cobra.Command, args []string) error {
	up := func() error {
		return container.UpCommandHandler.Handle(cmd.Context(), commands.UpCommand{TunnelNames: args})
	}

	if len(args) == 1 {
		return ui.ShowSpinner(fmt.Sprintf("Bringing up %s", args[0]), up)
	}

	ui.Step("Bringing up %s", strings.Join(args, ", "))
	if err := up(); err != nil {
		return err
	}
	ui.Successf("All tunnels are up")
	return nil
}

func runDown(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	if !all && len(args) == 0 {
		return fmt.Errorf("name at least one tunnel, or use --all")
	}

	down := commands.DownCommand{TunnelNames: args, All: all}
	if len(args) == 1 && !all {
		return ui.ShowSpinner(fmt.Sprintf("Bringing down %s", args[0]), func() error {
			return container.DownCommandHandler.Handle(cmd.Context(), down)
		})
	}

	ui.Step("Bringing tunnels down")
	if err := container.DownCommandHandler.Handle(cmd.Context(), down); err != nil {
		return err
	}
	ui.Successf("Tunnels are down")
	return nil
}
