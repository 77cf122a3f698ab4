package controller

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vivekkundariya/wgtunnel/internal/domain/tunnel"
	"github.com/vivekkundariya/wgtunnel/internal/infrastructure/process"
	"github.com/vivekkundariya/wgtunnel/internal/wgconf"
)

func (c *Controller) runBringUp(o *op) result {
	cfg, err := c.repo.Load(o.name)
	if err != nil {
		return result{err: err}
	}
	if err := checkEndpoints(cfg); err != nil {
		return result{err: err}
	}
	return c.runTransition(o, cfg, process.OpBringUp, tunnel.KindBringingUp, tunnel.KindUp)
}

// runBringDown uses the saved config when it can still be read and the one
// cached at load time otherwise, so a tunnel whose file was removed can
// still be torn down
func (c *Controller) runBringDown(o *op, fallback *wgconf.Config) result {
	cfg, err := c.repo.Load(o.name)
	if err != nil {
		if fallback == nil {
			return result{err: err}
		}
		cfg = fallback
	}
	return c.runTransition(o, cfg, process.OpBringDown, tunnel.KindBringingDown, tunnel.KindDown)
}

// runTransition writes cfg to a private temp file, authorizes action and
// runs it. The tunnel enters via only after authorization succeeds; a refused or
// unavailable authorization leaves the state untouched.
func (c *Controller) runTransition(o *op, cfg *wgconf.Config, action process.Operation, via, to tunnel.Kind) result {
	log := o.log()

	path, cleanup, err := writeTemp(cfg)
	if err != nil {
		return result{err: err}
	}
	defer cleanup()

	justification := fmt.Sprintf("%s WireGuard tunnel %s", action, o.name)
	ticket, err := c.broker.Authorize(o.ctx, action, justification)
	if err != nil {
		log.WithError(err).Info("not authorized")
		return result{err: err}
	}

	c.begin(o.name, via)

	var cmd process.Command
	if action == process.OpBringUp {
		cmd = c.templates.BringUp(path)
	} else {
		cmd = c.templates.BringDown(path)
	}

	// once started the command only stops at its own timeout
	start := time.Now()
	if _, err := c.broker.ExecutePrivileged(context.WithoutCancel(o.ctx), ticket, cmd); err != nil {
		log.WithError(err).Warnf("%s failed", action)
		failed := tunnel.Failed(err.Error())
		return result{err: err, state: &failed}
	}
	log.Infof("%s succeeded in %s", action, time.Since(start).Round(time.Millisecond))

	next := tunnel.State{Kind: to, Since: time.Now()}
	return result{state: &next, cfg: cfg}
}

func (c *Controller) runPoll(o *op) result {
	status, err := c.probe.Probe(o.ctx, o.name)
	if err != nil {
		o.log().WithError(err).Warn("status poll failed")
		return result{err: err}
	}

	var next tunnel.State
	switch {
	case !status.Present:
		next = tunnel.Failed(tunnel.ReasonVanished)
	case !status.LinkUp:
		next = tunnel.Failed(tunnel.ReasonLinkDown)
	default:
		next = tunnel.State{Kind: tunnel.KindUp}
		if status.Dump != nil {
			next.Peers = status.Dump.Peers
		}
	}
	return result{state: &next}
}

func (c *Controller) runSave(o *op) result {
	if o.kind == opCreate && c.repo.Exists(o.name) {
		return result{err: fmt.Errorf("%w: %s", ErrExists, o.name)}
	}
	if err := c.repo.Save(o.cfg); err != nil {
		return result{err: err}
	}
	o.log().Info("config saved")
	return result{cfg: o.cfg}
}

// runDelete brings the interface down when it is, or may still be, live and
// then removes the config file
func (c *Controller) runDelete(o *op, kind tunnel.Kind, fallback *wgconf.Config) result {
	if res := c.teardown(o, kind, fallback); res.err != nil {
		return res
	}
	if err := c.repo.Delete(o.name); err != nil {
		// a known tunnel whose file vanished underneath is still dropped
		if !errors.Is(err, ErrNotFound) || fallback == nil {
			return result{err: err}
		}
	}
	o.log().Info("config deleted")
	return result{removed: true}
}

// runForget handles a removal reported by the config watcher. Editors and
// sync tools often replace a file by removing it first, so the config is
// looked up again: a file that is still there is reloaded, and only a
// tunnel whose file is really gone is torn down and dropped. The config
// file itself is never touched.
func (c *Controller) runForget(o *op, kind tunnel.Kind, fallback *wgconf.Config) result {
	if c.repo.Exists(o.name) {
		res := c.runReload(o)
		res.reload = true
		return res
	}
	if res := c.teardown(o, kind, fallback); res.err != nil {
		return res
	}
	o.log().Info("config removed, tunnel forgotten")
	return result{removed: true}
}

// teardown brings the interface down when kind says it is up, or when it
// failed but the interface is still present
func (c *Controller) teardown(o *op, kind tunnel.Kind, fallback *wgconf.Config) result {
	live := kind == tunnel.KindUp
	if kind == tunnel.KindFailed {
		if status, err := c.probe.Probe(o.ctx, o.name); err == nil && status.Present {
			live = true
		}
	}
	if !live {
		return result{}
	}
	return c.runBringDown(o, fallback)
}

func (c *Controller) runReload(o *op) result {
	cfg, err := c.repo.Load(o.name)
	if err != nil {
		return result{err: err}
	}
	return result{cfg: cfg}
}

// checkEndpoints rejects a config whose peer endpoints are not host:port
func checkEndpoints(cfg *wgconf.Config) error {
	for i, p := range cfg.Peers {
		if p.Endpoint == "" {
			continue
		}
		if err := wgconf.ValidateEndpoint(p.Endpoint); err != nil {
			return fmt.Errorf("%w: peer %d of %s: %w", wgconf.ErrInvalid, i+1, cfg.Name, err)
		}
	}
	return nil
}

// writeTemp renders cfg into <name>.conf inside a fresh private directory.
// wg-quick takes the interface name from the file name.
func writeTemp(cfg *wgconf.Config) (string, func(), error) {
	dir, err := os.MkdirTemp("", "wgtunnel-")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	cleanup := func() { os.RemoveAll(dir) }

	path := filepath.Join(dir, wgconf.FileName(cfg.Name))
	if err := os.WriteFile(path, wgconf.Marshal(cfg), 0600); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to write temp config: %w", err)
	}
	return path, cleanup, nil
}
