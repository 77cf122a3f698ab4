package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/vivekkundariya/wgtunnel/internal/application/ports"
	"github.com/vivekkundariya/wgtunnel/internal/wgconf"
)

// SaveCommand replaces a tunnel's config with the one read from Source
type SaveCommand struct {
	TunnelName string
	Source     string
}

// SaveCommandHandler handles the save command
type SaveCommandHandler struct {
	tunnels ports.TunnelService
}

// NewSaveCommandHandler creates a new save command handler
func NewSaveCommandHandler(tunnels ports.TunnelService) *SaveCommandHandler {
	return &SaveCommandHandler{tunnels: tunnels}
}

// Handle parses Source and saves it. Nothing is written if it does not parse.
func (h *SaveCommandHandler) Handle(ctx context.Context, cmd SaveCommand) error {
	data, err := os.ReadFile(cmd.Source)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", cmd.Source, err)
	}
	cfg, err := wgconf.Parse(cmd.TunnelName, data)
	if err != nil {
		return err
	}
	return h.tunnels.SaveConfig(ctx, cmd.TunnelName, cfg)
}

// DeleteCommand removes a tunnel's config, bringing it down first if needed
type DeleteCommand struct {
	TunnelName string
}

// DeleteCommandHandler handles the delete command
type DeleteCommandHandler struct {
	tunnels ports.TunnelService
}

// NewDeleteCommandHandler creates a new delete command handler
func NewDeleteCommandHandler(tunnels ports.TunnelService) *DeleteCommandHandler {
	return &DeleteCommandHandler{tunnels: tunnels}
}

func (h *DeleteCommandHandler) Handle(ctx context.Context, cmd DeleteCommand) error {
	return h.tunnels.DeleteConfig(ctx, cmd.TunnelName)
}

// ImportCommand copies an external config file into the configs directory
type ImportCommand struct {
	Path string
}

// ImportCommandHandler handles the import command
type ImportCommandHandler struct {
	tunnels ports.TunnelService
}

// NewImportCommandHandler creates a new import command handler
func NewImportCommandHandler(tunnels ports.TunnelService) *ImportCommandHandler {
	return &ImportCommandHandler{tunnels: tunnels}
}

// Handle imports the file and returns the name of the new tunnel
func (h *ImportCommandHandler) Handle(ctx context.Context, cmd ImportCommand) (string, error) {
	return h.tunnels.ImportConfig(ctx, cmd.Path)
}

// ExportCommand writes a tunnel's config to a file or an s3:// target
type ExportCommand struct {
	TunnelName string
	Target     string
}

// ExportCommandHandler handles the export command
type ExportCommandHandler struct {
	tunnels ports.TunnelService
}

// NewExportCommandHandler creates a new export command handler
func NewExportCommandHandler(tunnels ports.TunnelService) *ExportCommandHandler {
	return &ExportCommandHandler{tunnels: tunnels}
}

func (h *ExportCommandHandler) Handle(ctx context.Context, cmd ExportCommand) error {
	return h.tunnels.ExportConfig(ctx, cmd.TunnelName, cmd.Target)
}
