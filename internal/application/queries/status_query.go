package queries

import (
	"context"

	"github.com/vivekkundariya/wgtunnel/internal/application/ports"
	"github.com/vivekkundariya/wgtunnel/internal/domain/tunnel"
)

// StatusQuery represents a query for one tunnel's state
type StatusQuery struct {
	TunnelName string
	// Refresh polls the live interface before answering
	Refresh bool
}

// StatusQueryHandler handles status queries
type StatusQueryHandler struct {
	tunnels ports.TunnelService
}

// NewStatusQueryHandler creates a new status query handler
func NewStatusQueryHandler(tunnels ports.TunnelService) *StatusQueryHandler {
	return &StatusQueryHandler{tunnels: tunnels}
}

// Handle executes the status query
func (h *StatusQueryHandler) Handle(ctx context.Context, query StatusQuery) (tunnel.Snapshot, error) {
	if query.Refresh {
		if err := h.tunnels.PollStatus(ctx, query.TunnelName); err != nil {
			return tunnel.Snapshot{}, err
		}
	}
	return h.tunnels.GetState(query.TunnelName)
}
