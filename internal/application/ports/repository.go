package ports

import (
	"context"

	"github.com/vivekkundariya/wgtunnel/internal/wgconf"
)

// TunnelRepository defines the interface for tunnel config persistence.
// One config file per tunnel, named after the tunnel.
type TunnelRepository interface {
	List() ([]string, error)
	Load(name string) (*wgconf.Config, error)
	LoadAll() ([]*wgconf.Config, []LoadError)
	Save(cfg *wgconf.Config) error
	Delete(name string) error
	Exists(name string) bool
	Path(name string) string
}

// LoadError is a config file that could not be loaded
type LoadError struct {
	Name string
	Path string
	Err  error
}

func (e LoadError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

func (e LoadError) Unwrap() error {
	return e.Err
}

// ChangeOp is what happened to a config file on disk
type ChangeOp int

const (
	ChangeWritten ChangeOp = iota
	ChangeRemoved
)

func (op ChangeOp) String() string {
	if op == ChangeRemoved {
		return "removed"
	}
	return "written"
}

// ConfigChange is one observed change in the configs directory
type ConfigChange struct {
	Name string
	Op   ChangeOp
}

// ConfigWatcher watches the configs directory. The channel is closed when
// ctx is done.
type ConfigWatcher interface {
	Watch(ctx context.Context) (<-chan ConfigChange, error)
}
