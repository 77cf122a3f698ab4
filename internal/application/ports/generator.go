package ports

import (
	"context"

	"github.com/vivekkundariya/wgtunnel/internal/infrastructure/keygen"
	"github.com/vivekkundariya/wgtunnel/internal/wgconf"
)

// ConfigGenerator builds a host config and its client configs. The host
// comes first in the result.
type ConfigGenerator interface {
	Generate(ctx context.Context, settings keygen.Settings) ([]*wgconf.Config, error)
}
