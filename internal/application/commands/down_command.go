package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/vivekkundariya/wgtunnel/internal/application/ports"
	"github.com/vivekkundariya/wgtunnel/internal/domain/tunnel"
)

// DownCommand represents the command to bring tunnels down
type DownCommand struct {
	TunnelNames []string
	// All brings down every managed tunnel that is up
	All bool
}

// DownCommandHandler handles the down command
type DownCommandHandler struct {
	tunnels ports.TunnelService
}

// NewDownCommandHandler creates a new down command handler
func NewDownCommandHandler(tunnels ports.TunnelService) *DownCommandHandler {
	return &DownCommandHandler{tunnels: tunnels}
}

// Handle brings the named tunnels down one after the other
func (h *DownCommandHandler) Handle(ctx context.Context, cmd DownCommand) error {
	names := cmd.TunnelNames
	if cmd.All {
		names = nil
		for _, snap := range h.tunnels.ListTunnels() {
			if snap.Managed && snap.State.Kind == tunnel.KindUp {
				names = append(names, snap.Name)
			}
		}
	}
	if len(names) == 0 && !cmd.All {
		return fmt.Errorf("no tunnel given")
	}

	var errs []error
	for _, name := range names {
		if err := h.tunnels.BringDown(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
