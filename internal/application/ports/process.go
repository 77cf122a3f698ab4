package ports

import (
	"context"

	"github.com/vivekkundariya/wgtunnel/internal/infrastructure/privilege"
	"github.com/vivekkundariya/wgtunnel/internal/infrastructure/process"
	"github.com/vivekkundariya/wgtunnel/internal/infrastructure/wgstatus"
)

// ProcessRunner runs an external tool command
type ProcessRunner interface {
	Run(ctx context.Context, cmd process.Command) (*process.Outcome, error)
}

// PrivilegeBroker authorizes and executes privileged commands
type PrivilegeBroker interface {
	Authorize(ctx context.Context, op process.Operation, justification string) (*privilege.Ticket, error)
	ExecutePrivileged(ctx context.Context, ticket *privilege.Ticket, cmd process.Command) (*process.Outcome, error)
}

// StatusProbe reads live interface status
type StatusProbe interface {
	Probe(ctx context.Context, iface string) (wgstatus.Status, error)
	Interfaces(ctx context.Context) ([]string, error)
}
