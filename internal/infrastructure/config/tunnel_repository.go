package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/vivekkundariya/wgtunnel/internal/application/ports"
	"github.com/vivekkundariya/wgtunnel/internal/domain/tunnel"
	"github.com/vivekkundariya/wgtunnel/internal/wgconf"
)

// ConfigFileMode is the mode of every written tunnel config. The files hold
// private keys.
const ConfigFileMode fs.FileMode = 0600

// TunnelRepositoryImpl implements TunnelRepository on a directory of
// <name>.conf files
type TunnelRepositoryImpl struct {
	dir   string
	owner string
	group string
	chown func(path string, uid, gid int) error
}

// NewTunnelRepository creates a repository over dir. Saved files are chowned
// to owner and group when they are set; either may be a name or a numeric id.
func NewTunnelRepository(dir, owner, group string) *TunnelRepositoryImpl {
	return &TunnelRepositoryImpl{
		dir:   dir,
		owner: owner,
		group: group,
		chown: os.Chown,
	}
}

// Dir returns the configs directory
func (r *TunnelRepositoryImpl) Dir() string {
	return r.dir
}

// Path returns the config file path for a tunnel
func (r *TunnelRepositoryImpl) Path(name string) string {
	return filepath.Join(r.dir, wgconf.FileName(name))
}

// Exists reports whether a config file for name exists
func (r *TunnelRepositoryImpl) Exists(name string) bool {
	_, err := os.Stat(r.Path(name))
	return err == nil
}

// List returns the names of all config files, sorted. A missing directory
// is an empty list.
func (r *TunnelRepositoryImpl) List() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read configs directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !isConfigFile(e.Name()) {
			continue
		}
		names = append(names, wgconf.NameFromPath(e.Name()))
	}
	sort.Strings(names)
	return names, nil
}

// Load reads and parses the config of one tunnel
func (r *TunnelRepositoryImpl) Load(name string) (*wgconf.Config, error) {
	if err := wgconf.ValidateName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(r.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", tunnel.ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return wgconf.Parse(name, data)
}

// LoadAll loads every config in the directory. Files that fail are skipped
// and reported.
func (r *TunnelRepositoryImpl) LoadAll() ([]*wgconf.Config, []ports.LoadError) {
	names, err := r.List()
	if err != nil {
		return nil, []ports.LoadError{{Path: r.dir, Err: err}}
	}

	var (
		configs []*wgconf.Config
		failed  []ports.LoadError
	)
	for _, name := range names {
		cfg, err := r.Load(name)
		if err != nil {
			failed = append(failed, ports.LoadError{Name: name, Path: r.Path(name), Err: err})
			continue
		}
		configs = append(configs, cfg)
	}
	return configs, failed
}

// Save validates cfg and writes it atomically with mode 0600. When an owner
// or group is configured and the chown fails, the written file is removed.
func (r *TunnelRepositoryImpl) Save(cfg *wgconf.Config) error {
	if err := wgconf.ValidateName(cfg.Name); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(r.dir, 0700); err != nil {
		return fmt.Errorf("failed to create configs directory: %w", err)
	}

	tmp, err := os.CreateTemp(r.dir, ".wgtunnel-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(wgconf.Marshal(cfg)); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Chmod(ConfigFileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set config mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	path := r.Path(cfg.Name)
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if err := r.applyOwnership(path); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

// Delete removes the config file of a tunnel
func (r *TunnelRepositoryImpl) Delete(name string) error {
	if err := wgconf.ValidateName(name); err != nil {
		return err
	}
	if err := os.Remove(r.Path(name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", tunnel.ErrNotFound, name)
		}
		return fmt.Errorf("failed to delete config: %w", err)
	}
	return nil
}

func (r *TunnelRepositoryImpl) applyOwnership(path string) error {
	if r.owner == "" && r.group == "" {
		return nil
	}
	uid, gid := -1, -1
	if r.owner != "" {
		id, err := lookupID(r.owner, func(n string) (string, error) {
			u, err := user.Lookup(n)
			if err != nil {
				return "", err
			}
			return u.Uid, nil
		})
		if err != nil {
			return fmt.Errorf("unknown owner %q: %w", r.owner, err)
		}
		uid = id
	}
	if r.group != "" {
		id, err := lookupID(r.group, func(n string) (string, error) {
			g, err := user.LookupGroup(n)
			if err != nil {
				return "", err
			}
			return g.Gid, nil
		})
		if err != nil {
			return fmt.Errorf("unknown group %q: %w", r.group, err)
		}
		gid = id
	}
	if err := r.chown(path, uid, gid); err != nil {
		return fmt.Errorf("failed to change owner of %s: %w", path, err)
	}
	return nil
}

// lookupID accepts a numeric id as is and resolves anything else by name
func lookupID(s string, byName func(string) (string, error)) (int, error) {
	if id, err := strconv.Atoi(s); err == nil {
		return id, nil
	}
	raw, err := byName(s)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(raw)
}

// isConfigFile reports whether a directory entry name is a tunnel config.
// Hidden files cover the temp files written by Save.
func isConfigFile(base string) bool {
	if strings.HasPrefix(base, ".") || filepath.Ext(base) != wgconf.FileExt {
		return false
	}
	return wgconf.ValidateName(wgconf.NameFromPath(base)) == nil
}

// FormatLoadErrors renders load errors as a numbered list separated by
// blank lines
func FormatLoadErrors(errs []ports.LoadError) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = fmt.Sprintf("%d) %s", i+1, e.Error())
	}
	return strings.Join(parts, "\n\n")
}
