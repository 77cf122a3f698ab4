package queries

import (
	"github.com/vivekkundariya/wgtunnel/internal/application/ports"
	"github.com/vivekkundariya/wgtunnel/internal/domain/tunnel"
)

// ListQuery represents a query for every known tunnel
type ListQuery struct {
	// ActiveOnly keeps tunnels that are up or on their way up
	ActiveOnly bool
	// ManagedOnly hides live interfaces without a config file
	ManagedOnly bool
}

// ListQueryHandler handles list queries
type ListQueryHandler struct {
	tunnels ports.TunnelService
}

// NewListQueryHandler creates a new list query handler
func NewListQueryHandler(tunnels ports.TunnelService) *ListQueryHandler {
	return &ListQueryHandler{tunnels: tunnels}
}

// Handle returns the matching tunnels sorted by name
func (h *ListQueryHandler) Handle(query ListQuery) []tunnel.Snapshot {
	all := h.tunnels.ListTunnels()
	out := make([]tunnel.Snapshot, 0, len(all))
	for _, snap := range all {
		if query.ActiveOnly && !snap.State.Kind.Active() {
			continue
		}
		if query.ManagedOnly && !snap.Managed {
			continue
		}
		out = append(out, snap)
	}
	return out
}
