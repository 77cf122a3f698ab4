package cli

import (
	"fmt"
	"io"
	"net/netip"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/vivekkundariya/wgtunnel/internal/application/commands"
	"github.com/vivekkundariya/wgtunnel/internal/application/queries"
	"github.com/vivekkundariya/wgtunnel/internal/ui"
	"github.com/vivekkundariya/wgtunnel/internal/wgconf"
)

var showCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a tunnel's config",
	Long: `Print a tunnel's config as tables of interface settings and peers, or
with --raw as the wg-quick file it is stored as. Private and preshared keys
are hidden unless --show-keys is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		showKeys, _ := cmd.Flags().GetBool("show-keys")
		raw, _ := cmd.Flags().GetBool("raw")
		query := queries.ConfigQuery{TunnelName: args[0], ShowKeys: showKeys}

		if raw {
			text, err := container.ConfigQueryHandler.Handle(query)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(text)
			return err
		}

		cfg, err := container.ConfigQueryHandler.Redacted(query)
		if err != nil {
			return err
		}
		printConfig(os.Stdout, cfg)
		return nil
	},
}

var saveCmd = &cobra.Command{
	Use:   "save <name> <file>",
	Short: "Create or replace a tunnel's config from a file",
	Long: `Parse <file> and store it as the config of tunnel <name>. The stored
file is only replaced when the new config is valid. A tunnel that is up keeps
running with its old config until it is restarted.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		err := container.SaveCommandHandler.Handle(cmd.Context(), commands.SaveCommand{
			TunnelName: args[0],
			Source:     args[1],
		})
		if err != nil {
			return err
		}
		ui.Successf("Saved %s", args[0])
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a tunnel's config",
	Long: `Delete a tunnel's config. A tunnel that is up is brought down first.

You are asked to confirm unless --yes is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := confirmed(cmd, fmt.Sprintf("Delete tunnel %s?", args[0]), "The config file is removed and cannot be recovered.")
		if err != nil {
			return err
		}
		if !ok {
			ui.Infof("Kept %s", args[0])
			return nil
		}
		if err := container.DeleteCommandHandler.Handle(cmd.Context(), commands.DeleteCommand{TunnelName: args[0]}); err != nil {
			return err
		}
		ui.Successf("Deleted %s", args[0])
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Import a wg-quick config file as a new tunnel",
	Long: `Import a wg-quick config file. The tunnel is named after the file
without its .conf extension and must not exist yet.

PreUp, PostUp, PreDown and PostDown commands are removed from imported
files; add them back with 'wgtunnel save' once reviewed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := container.ImportCommandHandler.Handle(cmd.Context(), commands.ImportCommand{Path: args[0]})
		if err != nil {
			return err
		}
		ui.Successf("Imported %s", name)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <name> <target>",
	Short: "Write a tunnel's config to a file or S3 object",
	Long: `Write a tunnel's config to <target>.

A local target must be an absolute path under the export root (default
/home) whose directory exists. The file is written with mode 0600.

An s3://bucket/key target uploads the config with server-side encryption,
using the region and credentials from the settings file or the AWS
environment.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		err := container.ExportCommandHandler.Handle(cmd.Context(), commands.ExportCommand{
			TunnelName: args[0],
			Target:     args[1],
		})
		if err != nil {
			return err
		}
		ui.Successf("Exported %s to %s", args[0], args[1])
		return nil
	},
}

func init() {
	showCmd.Flags().Bool("show-keys", false, "Include private and preshared keys")
	showCmd.Flags().Bool("raw", false, "Print the config file instead of tables")
	deleteCmd.Flags().BoolP("yes", "y", false, "Delete without asking")
}

// printConfig renders the interface settings and peers of cfg as tables
func printConfig(w io.Writer, cfg *wgconf.Config) {
	iface := cfg.Interface
	t := ui.NewTable(w, "Setting", "Value")
	t.AppendRow(table.Row{"Name", cfg.Name})
	if iface.FriendlyName != "" {
		t.AppendRow(table.Row{"Description", iface.FriendlyName})
	}
	t.AppendRow(table.Row{"Address", joinPrefixes(iface.Address)})
	t.AppendRow(table.Row{"PrivateKey", iface.PrivateKey})
	if pub, err := iface.PublicKey(); err == nil {
		t.AppendRow(table.Row{"PublicKey", pub})
	}
	if iface.ListenPort != 0 {
		t.AppendRow(table.Row{"ListenPort", iface.ListenPort})
	}
	if len(iface.DNS) > 0 {
		t.AppendRow(table.Row{"DNS", strings.Join(iface.DNS, ", ")})
	}
	if iface.MTU != 0 {
		t.AppendRow(table.Row{"MTU", iface.MTU})
	}
	if iface.Table != "" {
		t.AppendRow(table.Row{"Table", iface.Table})
	}
	for _, hook := range []struct {
		key   string
		lines []string
	}{{"PreUp", iface.PreUp}, {"PostUp", iface.PostUp}, {"PreDown", iface.PreDown}, {"PostDown", iface.PostDown}} {
		for _, l := range hook.lines {
			t.AppendRow(table.Row{hook.key, l})
		}
	}
	t.Render()

	if len(cfg.Peers) == 0 {
		return
	}
	fmt.Fprintln(w)
	peers := ui.NewTable(w, "Peer", "Public Key", "Endpoint", "Allowed IPs", "Keepalive")
	for i, p := range cfg.Peers {
		name := p.FriendlyName
		if name == "" {
			name = fmt.Sprintf("#%d", i+1)
		}
		keepalive := "-"
		if p.PersistentKeepalive > 0 {
			keepalive = fmt.Sprintf("%ds", p.PersistentKeepalive)
		}
		peers.AppendRow(table.Row{name, p.PublicKey, orDash(p.Endpoint), orDash(joinPrefixes(p.AllowedIPs)), keepalive})
	}
	peers.Render()
}

func joinPrefixes(prefixes []netip.Prefix) string {
	parts := make([]string, len(prefixes))
	for i, p := range prefixes {
		parts[i] = p.String()
	}
	return strings.Join(parts, ", ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
