package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/vivekkundariya/wgtunnel/internal/application/ports"
)

// UpCommand represents the command to bring tunnels up
type UpCommand struct {
	TunnelNames []string
}

// UpCommandHandler handles the up command
type UpCommandHandler struct {
	tunnels ports.TunnelService
}

// NewUpCommandHandler creates a new up command handler
func NewUpCommandHandler(tunnels ports.TunnelService) *UpCommandHandler {
	return &UpCommandHandler{tunnels: tunnels}
}

// Handle brings every named tunnel up. Different tunnels come up
// concurrently; a failure of one does not stop the others.
func (h *UpCommandHandler) Handle(ctx context.Context, cmd UpCommand) error {
	if len(cmd.TunnelNames) == 0 {
		return fmt.Errorf("no tunnel given")
	}
	if len(cmd.TunnelNames) == 1 {
		return h.tunnels.BringUp(ctx, cmd.TunnelNames[0])
	}

	pending := make(map[string]<-chan error, len(cmd.TunnelNames))
	for _, name := range cmd.TunnelNames {
		if _, dup := pending[name]; dup {
			continue
		}
		pending[name] = h.tunnels.BringUpAsync(name)
	}

	var errs []error
	for _, name := range cmd.TunnelNames {
		done, ok := pending[name]
		if !ok {
			continue
		}
		delete(pending, name)
		select {
		case err := <-done:
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
		case <-ctx.Done():
			h.tunnels.Cancel(name)
			errs = append(errs, fmt.Errorf("%s: %w", name, ctx.Err()))
		}
	}
	return errors.Join(errs...)
}
