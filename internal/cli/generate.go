package cli

import (
	"fmt"
	"net/netip"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vivekkundariya/wgtunnel/internal/application/commands"
	"github.com/vivekkundariya/wgtunnel/internal/infrastructure/keygen"
	"github.com/vivekkundariya/wgtunnel/internal/ui"
	"github.com/vivekkundariya/wgtunnel/internal/wgconf"
)

// generateFlags holds the raw generate flags before they are parsed
type generateFlags struct {
	cidr        string
	listenPort  int
	clients     int
	allowedIPs  []string
	endpoint    string
	postUp      string
	postDown    string
	saveClients bool
	outDir      string
}

var genFlags generateFlags

var generateCmd = &cobra.Command{
	Use:   "generate <name>",
	Short: "Generate a host tunnel and its client configs",
	Long: `Generate a host tunnel named <name> and configs for its clients.

Keys come from 'wg genkey' and 'wg pubkey'. The host takes the first usable
address of --cidr and each client the next one. The host config is saved;
client configs are printed, written to --out-dir (a directory under the
export root or an s3://bucket/prefix), or saved as tunnels with
--save-clients.

Examples:
  wgtunnel generate office --cidr 10.8.0.0/24 --clients 3 --endpoint vpn.example.com:51820
  wgtunnel generate lab --cidr 10.9.0.0/24 --out-dir s3://backups/wg`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&genFlags.cidr, "cidr", "10.8.0.0/24", "Tunnel network")
	f.IntVar(&genFlags.listenPort, "listen-port", keygen.DefaultListenPort, "Port the host listens on")
	f.IntVar(&genFlags.clients, "clients", 1, fmt.Sprintf("Number of clients (1-%d)", keygen.MaxClients))
	f.StringSliceVar(&genFlags.allowedIPs, "allowed-ips", []string{"0.0.0.0/0"}, "Networks each client routes through the host")
	f.StringVar(&genFlags.endpoint, "endpoint", "", "host:port clients connect to")
	f.StringVar(&genFlags.postUp, "post-up", "", "Command the host runs after coming up")
	f.StringVar(&genFlags.postDown, "post-down", "", "Command the host runs after going down")
	f.BoolVar(&genFlags.saveClients, "save-clients", false, "Also save the client configs as tunnels")
	f.StringVar(&genFlags.outDir, "out-dir", "", "Write client configs to this directory or s3:// prefix")
}

// settings converts the flags into generator settings for host name
func (f generateFlags) settings(name string) (keygen.Settings, error) {
	cidr, err := netip.ParsePrefix(strings.TrimSpace(f.cidr))
	if err != nil {
		return keygen.Settings{}, fmt.Errorf("invalid --cidr %q: %w", f.cidr, err)
	}

	var allowed []netip.Prefix
	for _, s := range f.allowedIPs {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return keygen.Settings{}, fmt.Errorf("invalid --allowed-ips entry %q: %w", s, err)
		}
		allowed = append(allowed, p)
	}

	return keygen.Settings{
		Name:             name,
		CIDR:             cidr,
		ListenPort:       f.listenPort,
		Clients:          f.clients,
		ClientAllowedIPs: allowed,
		Endpoint:         strings.TrimSpace(f.endpoint),
		PostUp:           f.postUp,
		PostDown:         f.postDown,
	}, nil
}

// clientTarget is where a client config goes inside dir. dir may be a local
// directory or an s3:// prefix.
func clientTarget(dir, name string) string {
	if strings.HasPrefix(dir, "s3://") {
		return strings.TrimSuffix(dir, "/") + "/" + wgconf.FileName(name)
	}
	return strings.TrimSuffix(dir, string(os.PathSeparator)) + string(os.PathSeparator) + wgconf.FileName(name)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	s, err := genFlags.settings(args[0])
	if err != nil {
		return err
	}

	var configs []*wgconf.Config
	err = ui.ShowSpinner(fmt.Sprintf("Generating %s with %d client(s)", s.Name, s.Clients), func() error {
		var gerr error
		configs, gerr = container.GenerateCommandHandler.Handle(cmd.Context(), commands.GenerateCommand{
			Settings:    s,
			SaveClients: genFlags.saveClients,
		})
		return gerr
	})
	if err != nil {
		return err
	}

	host, clients := configs[0], configs[1:]
	ui.Successf("Saved host tunnel %s (%s)", host.Name, strings.Join(host.Interface.AddressStrings(), ", "))
	if genFlags.saveClients {
		for _, c := range clients {
			ui.SubStep("Saved client tunnel %s", c.Name)
		}
	}

	switch {
	case genFlags.outDir != "":
		for _, c := range clients {
			target := clientTarget(genFlags.outDir, c.Name)
			if err := container.Exporter.Export(cmd.Context(), target, wgconf.Marshal(c)); err != nil {
				return fmt.Errorf("failed to write client %s: %w", c.Name, err)
			}
			ui.SubStep("Wrote %s", target)
		}
	case !genFlags.saveClients:
		for _, c := range clients {
			fmt.Printf("\n# %s\n", wgconf.FileName(c.Name))
			os.Stdout.Write(wgconf.Marshal(c))
		}
	}
	return nil
}
