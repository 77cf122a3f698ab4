package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/vivekkundariya/wgtunnel/internal/application/wiring"
	"github.com/vivekkundariya/wgtunnel/internal/cli/prompts"
	"github.com/vivekkundariya/wgtunnel/internal/config"
	"github.com/vivekkundariya/wgtunnel/internal/logging"
	"github.com/vivekkundariya/wgtunnel/internal/ui"
)

var (
	container *wiring.Container
	settings  *config.Settings

	// CLI flags
	configFile string
	verbose    bool
	logLevel   string
	logOutput  string
	appDir     string
	configsDir string
)

var rootCmd = &cobra.Command{
	Use:   "wgtunnel",
	Short: "wgtunnel - WireGuard tunnel manager",
	Long: `wgtunnel manages WireGuard tunnels defined by wg-quick config files.
It brings tunnels up and down through wg-quick after asking the system's
authorization service, keeps the config files, and reports live status.

Settings:
  1. --config flag (explicit path)
  2. WGTUNNEL_CONFIG environment variable
  3. Default: ~/.wgtunnel/config.yaml

Examples:
  wgtunnel list                       Show every tunnel and its state
  wgtunnel up office                  Bring a tunnel up
  wgtunnel status office              Show peers and traffic
  wgtunnel import ~/Downloads/lab.conf
  wgtunnel export office s3://backups/wg/office.conf`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.SetVerbose(verbose)

		// Skip initialization for help, version and completion commands
		switch cmd.Name() {
		case "help", "version", "completion", "setup":
			return nil
		}

		return initContainer(cmd)
	},
}

// Execute runs the root command with ctx, which is cancelled on interrupt
func Execute(ctx context.Context) error {
	defer closeContainer()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.Errorf("%v", err)
		return err
	}
	return nil
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"Path to settings file (default: ~/.wgtunnel/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logOutput, "log-output", "",
		"Log output: stderr, stdout or syslog")
	rootCmd.PersistentFlags().StringVar(&appDir, "app-dir", "",
		"WireGuard directory; configs are read from <app-dir>/configs")
	rootCmd.PersistentFlags().StringVar(&configsDir, "configs-dir", "",
		"Directory holding the tunnel configs (overrides --app-dir)")

	// Add subcommands
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(downCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(newSetupCmd())
}

// initContainer resolves settings, configures logging, wires the container
// and loads the configs directory
func initContainer(cmd *cobra.Command) error {
	var err error
	settings, err = config.NewResolver(configFile).Resolve()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if err := applyFlags(settings); err != nil {
		return err
	}

	if err := logging.Configure(settings.Logging.LoggingOptions()); err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	ui.Debug("Using configs directory: %s", settings.ConfigsPath())

	container, err = wiring.NewContainer(settings, wiring.Options{Watch: cmd.Name() == "watch"})
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}

	failed, err := container.Tunnels.Start(cmd.Context())
	if err != nil {
		return err
	}
	for _, lf := range failed {
		ui.Warnf("Skipped %s: %v", lf.Path, lf.Err)
	}
	return nil
}

// applyFlags lets command line flags override the resolved settings
func applyFlags(s *config.Settings) error {
	if logLevel != "" {
		s.Logging.Level = logLevel
	}
	if logOutput != "" {
		s.Logging.Output = logOutput
	}
	if appDir != "" {
		s.AppDir = appDir
	}
	if configsDir != "" {
		s.ConfigsDir = configsDir
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

func closeContainer() {
	if container == nil {
		return
	}
	if err := container.Close(); err != nil {
		ui.Debug("Shutdown: %v", err)
	}
	container = nil
}

// newSetupCmd creates the setup subcommand for the settings file
func newSetupCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Write the default settings file",
		Long: `Write the default settings to ~/.wgtunnel/config.yaml, or to the
file named by --config or WGTUNNEL_CONFIG.

An existing file is left alone unless --force is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := setupPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil {
				if !force {
					ui.Infof("Settings already exist at %s (use --force to overwrite)", path)
					return nil
				}
				ok, err := confirmed(cmd, fmt.Sprintf("Overwrite %s?", path), "Your current settings are replaced by the defaults.")
				if err != nil {
					return err
				}
				if !ok {
					ui.Infof("Kept %s", path)
					return nil
				}
			}

			defaults := config.DefaultSettings()
			if err := applyFlags(defaults); err != nil {
				return err
			}
			if err := config.SaveSettings(path, defaults); err != nil {
				return fmt.Errorf("failed to write settings: %w", err)
			}
			ui.Successf("Settings written to %s", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing settings file")
	cmd.Flags().BoolP("yes", "y", false, "Overwrite without asking")
	return cmd
}

// confirm asks a yes/no question on the terminal
var confirm = prompts.Confirm

// confirmed asks before a destructive step unless --yes was given
func confirmed(cmd *cobra.Command, title, description string) (bool, error) {
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return true, nil
	}
	return confirm(title, description, false)
}

// setupPath is where setup writes. Unlike the resolver it does not require
// the file to exist.
func setupPath() (string, error) {
	path := configFile
	if path == "" {
		path = os.Getenv(config.EnvConfigFile)
	}
	if path != "" {
		return filepath.Abs(path)
	}
	home, err := config.GetHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, config.SettingsFile), nil
}
