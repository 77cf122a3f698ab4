package ports

import (
	"context"

	"github.com/vivekkundariya/wgtunnel/internal/domain/tunnel"
	"github.com/vivekkundariya/wgtunnel/internal/wgconf"
)

// TunnelService is the surface a front end (CLI, GUI) drives tunnels
// through. Implemented by the controller.
type TunnelService interface {
	ListTunnels() []tunnel.Snapshot
	GetState(name string) (tunnel.Snapshot, error)
	Config(name string) (*wgconf.Config, error)

	BringUp(ctx context.Context, name string) error
	BringDown(ctx context.Context, name string) error
	BringUpAsync(name string) <-chan error

	SaveConfig(ctx context.Context, name string, cfg *wgconf.Config) error
	DeleteConfig(ctx context.Context, name string) error
	ImportConfig(ctx context.Context, path string) (string, error)
	ExportConfig(ctx context.Context, name, target string) error

	PollStatus(ctx context.Context, name string) error
	Reconcile(ctx context.Context) error
	Cancel(name string)

	// Subscribe returns a channel of events and a function that ends the
	// subscription.
	Subscribe() (<-chan tunnel.Event, func())
}
