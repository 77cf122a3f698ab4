package queries

import (
	"github.com/vivekkundariya/wgtunnel/internal/application/ports"
	"github.com/vivekkundariya/wgtunnel/internal/wgconf"
)

const redacted = "(hidden)"

// ConfigQuery represents a query for a tunnel's saved config
type ConfigQuery struct {
	TunnelName string
	// ShowKeys leaves private and preshared keys in the result
	ShowKeys bool
}

// ConfigQueryHandler handles config queries
type ConfigQueryHandler struct {
	tunnels ports.TunnelService
}

// NewConfigQueryHandler creates a new config query handler
func NewConfigQueryHandler(tunnels ports.TunnelService) *ConfigQueryHandler {
	return &ConfigQueryHandler{tunnels: tunnels}
}

// Handle returns the config text as it would be written to disk
func (h *ConfigQueryHandler) Handle(query ConfigQuery) ([]byte, error) {
	cfg, err := h.Redacted(query)
	if err != nil {
		return nil, err
	}
	return wgconf.Marshal(cfg), nil
}

// Redacted returns a copy of the config with secrets hidden unless the
// query asks for them
func (h *ConfigQueryHandler) Redacted(query ConfigQuery) (*wgconf.Config, error) {
	cfg, err := h.tunnels.Config(query.TunnelName)
	if err != nil {
		return nil, err
	}
	if !query.ShowKeys {
		cfg.Interface.PrivateKey = redacted
		for _, p := range cfg.Peers {
			if p.PresharedKey != "" {
				p.PresharedKey = redacted
			}
		}
	}
	return cfg, nil
}
