package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/vivekkundariya/wgtunnel/internal/application/ports"
	"github.com/vivekkundariya/wgtunnel/internal/logging"
	"github.com/vivekkundariya/wgtunnel/internal/wgconf"
)

// Watch reports config files being written or removed in the configs
// directory until ctx is done
func (r *TunnelRepositoryImpl) Watch(ctx context.Context) (<-chan ports.ConfigChange, error) {
	if err := os.MkdirAll(r.dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create configs directory: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(r.dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", r.dir, err)
	}

	out := make(chan ports.ConfigChange, 16)
	go func() {
		defer close(out)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				change, ok := toChange(ev)
				if !ok {
					continue
				}
				logging.Debugf("config %s %s", change.Name, change.Op)
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logging.Warnf("config watcher: %v", err)
			}
		}
	}()
	return out, nil
}

func toChange(ev fsnotify.Event) (ports.ConfigChange, bool) {
	base := filepath.Base(ev.Name)
	if !isConfigFile(base) {
		return ports.ConfigChange{}, false
	}
	name := wgconf.NameFromPath(base)
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return ports.ConfigChange{Name: name, Op: ports.ChangeRemoved}, true
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		return ports.ConfigChange{Name: name, Op: ports.ChangeWritten}, true
	}
	return ports.ConfigChange{}, false
}
