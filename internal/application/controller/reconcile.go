package controller

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/vivekkundariya/wgtunnel/internal/application/ports"
	"github.com/vivekkundariya/wgtunnel/internal/domain/tunnel"
	"github.com/vivekkundariya/wgtunnel/internal/logging"
	"github.com/vivekkundariya/wgtunnel/internal/wgconf"
)

// Reconcile compares the tunnels against the interfaces that are actually
// live. A down tunnel whose interface exists is adopted as up, up tunnels
// are polled, and live interfaces without a config are listed as unmanaged.
// Unmanaged interfaces are never torn down. Tunnels with queued or running
// operations are skipped.
func (c *Controller) Reconcile(ctx context.Context) error {
	names, err := c.probe.Interfaces(ctx)
	if err != nil {
		return fmt.Errorf("failed to list live interfaces: %w", err)
	}
	live := make(map[string]bool, len(names))
	for _, n := range names {
		live[n] = true
	}

	var polls []string
	ok := c.query(func() {
		for name, e := range c.tunnels {
			if _, busy := c.lanes[name]; busy {
				continue
			}
			switch {
			case !e.managed && !live[name]:
				delete(c.tunnels, name)
				c.publish(tunnel.EventRemoved, e, e.state.Kind, nil)
			case e.managed && e.state.Kind == tunnel.KindDown && live[name]:
				logging.WithTunnel(name).Info("interface is already live, adopting as up")
				c.setState(e, tunnel.State{Kind: tunnel.KindUp})
				polls = append(polls, name)
			case e.managed && e.state.Kind == tunnel.KindUp:
				polls = append(polls, name)
			}
		}
		for name := range live {
			if _, known := c.tunnels[name]; known {
				continue
			}
			e := &entry{
				name:    name,
				state:   tunnel.State{Kind: tunnel.KindUnmanaged, Since: time.Now()},
				updated: time.Now(),
			}
			c.tunnels[name] = e
			logging.WithTunnel(name).Warn("live interface has no saved config")
			c.publish(tunnel.EventOrphanDetected, e, "", nil)
		}
	})
	if !ok {
		return ErrClosed
	}

	for _, name := range polls {
		c.submit(ctx, opPoll, name, nil)
	}
	return nil
}

// follow applies config directory changes until the watcher closes
func (c *Controller) follow(changes <-chan ports.ConfigChange) {
	for change := range changes {
		switch change.Op {
		case ports.ChangeWritten:
			c.submit(context.Background(), opReload, change.Name, nil)
		case ports.ChangeRemoved:
			c.submit(context.Background(), opForget, change.Name, nil)
		}
	}
}

// ImportConfig copies a config file from anywhere into the configs
// directory. The tunnel is named after the interface's "# Name" comment,
// or the file name when there is none. Hook commands are stripped, and an
// existing tunnel of the same name is never overwritten. It returns the
// name of the new tunnel.
func (c *Controller) ImportConfig(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	stem := wgconf.NameFromPath(path)
	parseName := stem
	if wgconf.ValidateName(stem) != nil {
		parseName = "import"
	}
	cfg, err := wgconf.Parse(parseName, data)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", path, err)
	}

	name := stem
	if cfg.Interface.FriendlyName != "" {
		name = cfg.Interface.FriendlyName
	}
	if err := wgconf.ValidateName(name); err != nil {
		return "", err
	}
	cfg.Name = name

	if cfg.Interface.ClearHooks() {
		logging.WithTunnel(name).Warn("removed PreUp/PostUp/PreDown/PostDown commands from imported config")
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	if err := wait(ctx, c.submit(ctx, opCreate, name, cfg)); err != nil {
		return "", err
	}
	return name, nil
}

// ExportConfig writes the saved config of name to target
func (c *Controller) ExportConfig(ctx context.Context, name, target string) error {
	if c.exporter == nil {
		return ErrNoExporter
	}
	cfg, err := c.repo.Load(name)
	if err != nil {
		return err
	}
	if err := c.exporter.Export(ctx, target, wgconf.Marshal(cfg)); err != nil {
		return fmt.Errorf("failed to export %s: %w", name, err)
	}
	logging.WithTunnel(name).Infof("exported to %s", target)
	return nil
}
