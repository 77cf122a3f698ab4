package wiring

import (
	"fmt"

	"github.com/vivekkundariya/wgtunnel/internal/application/commands"
	"github.com/vivekkundariya/wgtunnel/internal/application/controller"
	"github.com/vivekkundariya/wgtunnel/internal/application/ports"
	"github.com/vivekkundariya/wgtunnel/internal/application/queries"
	"github.com/vivekkundariya/wgtunnel/internal/config"
	"github.com/vivekkundariya/wgtunnel/internal/infrastructure/aws"
	infraconfig "github.com/vivekkundariya/wgtunnel/internal/infrastructure/config"
	"github.com/vivekkundariya/wgtunnel/internal/infrastructure/export"
	"github.com/vivekkundariya/wgtunnel/internal/infrastructure/keygen"
	"github.com/vivekkundariya/wgtunnel/internal/infrastructure/privilege"
	"github.com/vivekkundariya/wgtunnel/internal/infrastructure/process"
	"github.com/vivekkundariya/wgtunnel/internal/infrastructure/wgstatus"
)

// Options adjust how the container is assembled
type Options struct {
	// Watch follows the configs directory for changes made by other tools
	Watch bool
}

// Container holds all dependencies (Dependency Injection Container)
type Container struct {
	Settings *config.Settings

	// Infrastructure
	Runner     ports.ProcessRunner
	Authority  privilege.Authority
	Broker     *privilege.Broker
	Probe      ports.StatusProbe
	Repository *infraconfig.TunnelRepositoryImpl
	Exporter   ports.Exporter
	Generator  ports.ConfigGenerator

	// Tunnels is the controller every handler drives
	Tunnels *controller.Controller

	// Command Handlers
	UpCommandHandler       *commands.UpCommandHandler
	DownCommandHandler     *commands.DownCommandHandler
	SaveCommandHandler     *commands.SaveCommandHandler
	DeleteCommandHandler   *commands.DeleteCommandHandler
	ImportCommandHandler   *commands.ImportCommandHandler
	ExportCommandHandler   *commands.ExportCommandHandler
	GenerateCommandHandler *commands.GenerateCommandHandler

	// Query Handlers
	ListQueryHandler   *queries.ListQueryHandler
	StatusQueryHandler *queries.StatusQueryHandler
	ConfigQueryHandler *queries.ConfigQueryHandler
}

// NewContainer creates a new dependency injection container. The controller
// is created but not started; call Tunnels.Start before use.
func NewContainer(settings *config.Settings, opts Options) (*Container, error) {
	templates := Templates(settings)

	runner := process.NewExecRunner()
	authority := newAuthority(settings.Privilege.Authority)
	broker, err := privilege.NewBroker(authority, runner, settings.Privilege.Elevation, settings.Privilege.TicketTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create privilege broker: %w", err)
	}

	// read-only commands go through the broker, which refuses privileged ones
	probe := wgstatus.NewProber(broker, wgstatus.NewNetlinkInspector(), templates)
	repo := infraconfig.NewTunnelRepository(settings.ConfigsPath(), settings.Files.Owner, settings.Files.Group)

	exporter := &export.Router{
		File: export.NewFileExporter(settings.Export.Root),
		S3: aws.NewS3Exporter(aws.S3Options{
			Region:          settings.Export.S3.Region,
			Endpoint:        settings.Export.S3.Endpoint,
			Profile:         settings.Export.S3.Profile,
			AccessKeyID:     settings.Export.S3.AccessKeyID,
			SecretAccessKey: settings.Export.S3.SecretAccessKey,
		}),
	}
	generator := keygen.NewGenerator(keygen.NewKeySource(broker, templates))

	ctrlOpts := controller.Options{
		Repository:   repo,
		Broker:       broker,
		Probe:        probe,
		Exporter:     exporter,
		Templates:    templates,
		PollInterval: settings.PollInterval,
	}
	if opts.Watch {
		ctrlOpts.Watcher = repo
	}
	tunnels, err := controller.New(ctrlOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create tunnel controller: %w", err)
	}

	return &Container{
		Settings:   settings,
		Runner:     runner,
		Authority:  authority,
		Broker:     broker,
		Probe:      probe,
		Repository: repo,
		Exporter:   exporter,
		Generator:  generator,
		Tunnels:    tunnels,

		UpCommandHandler:       commands.NewUpCommandHandler(tunnels),
		DownCommandHandler:     commands.NewDownCommandHandler(tunnels),
		SaveCommandHandler:     commands.NewSaveCommandHandler(tunnels),
		DeleteCommandHandler:   commands.NewDeleteCommandHandler(tunnels),
		ImportCommandHandler:   commands.NewImportCommandHandler(tunnels),
		ExportCommandHandler:   commands.NewExportCommandHandler(tunnels),
		GenerateCommandHandler: commands.NewGenerateCommandHandler(tunnels, generator),

		ListQueryHandler:   queries.NewListQueryHandler(tunnels),
		StatusQueryHandler: queries.NewStatusQueryHandler(tunnels),
		ConfigQueryHandler: queries.NewConfigQueryHandler(tunnels),
	}, nil
}

// Close stops the controller and releases the authority's bus connection
func (c *Container) Close() error {
	err := c.Tunnels.Close()
	if closer, ok := c.Authority.(interface{ Close() error }); ok {
		if cerr := closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Templates builds the command templates from settings
func Templates(settings *config.Settings) process.Templates {
	return process.Templates{
		WG:            settings.Tools.WG,
		WGQuick:       settings.Tools.WGQuick,
		UpTimeout:     settings.Timeouts.Up,
		DownTimeout:   settings.Timeouts.Down,
		StatusTimeout: settings.Timeouts.Status,
	}
}

func newAuthority(kind string) privilege.Authority {
	if kind == config.AuthorityNone {
		return privilege.StaticAuthority{Decision: privilege.Granted}
	}
	return privilege.NewPolkitAuthority()
}
