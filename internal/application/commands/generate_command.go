package commands

import (
	"context"
	"fmt"

	"github.com/vivekkundariya/wgtunnel/internal/application/ports"
	"github.com/vivekkundariya/wgtunnel/internal/domain/tunnel"
	"github.com/vivekkundariya/wgtunnel/internal/infrastructure/keygen"
	"github.com/vivekkundariya/wgtunnel/internal/wgconf"
)

// GenerateCommand creates a host tunnel and configs for its clients
type GenerateCommand struct {
	Settings keygen.Settings
	// SaveClients also stores the client configs as local tunnels
	SaveClients bool
}

// GenerateCommandHandler handles the generate command
type GenerateCommandHandler struct {
	tunnels   ports.TunnelService
	generator ports.ConfigGenerator
}

// NewGenerateCommandHandler creates a new generate command handler
func NewGenerateCommandHandler(tunnels ports.TunnelService, generator ports.ConfigGenerator) *GenerateCommandHandler {
	return &GenerateCommandHandler{tunnels: tunnels, generator: generator}
}

// Handle generates the configs and saves the host config, which must not
// exist yet. All generated configs are returned, host first.
func (h *GenerateCommandHandler) Handle(ctx context.Context, cmd GenerateCommand) ([]*wgconf.Config, error) {
	names := []string{cmd.Settings.Name}
	if cmd.SaveClients {
		for n := 1; n <= cmd.Settings.Clients; n++ {
			names = append(names, keygen.ClientName(cmd.Settings.Name, n))
		}
	}
	for _, name := range names {
		if _, err := h.tunnels.GetState(name); err == nil {
			return nil, fmt.Errorf("%w: %s", tunnel.ErrExists, name)
		}
	}

	configs, err := h.generator.Generate(ctx, cmd.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to generate configs: %w", err)
	}

	toSave := configs[:1]
	if cmd.SaveClients {
		toSave = configs
	}
	for _, cfg := range toSave {
		if err := h.tunnels.SaveConfig(ctx, cfg.Name, cfg); err != nil {
			return configs, fmt.Errorf("failed to save %s: %w", cfg.Name, err)
		}
	}
	return configs, nil
}
