package wgconf

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MaxNameLength is the kernel's interface name limit (IFNAMSIZ - 1)
const MaxNameLength = 15

// FileExt is the extension of a tunnel config file
const FileExt = ".conf"

// ValidateName checks that name can be used as an interface name:
// 1 to 15 characters from [A-Za-z0-9_-].
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidName, name, MaxNameLength)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return fmt.Errorf("%w: %q contains %q", ErrInvalidName, name, r)
		}
	}
	return nil
}

// NameFromPath returns the tunnel name for a config file path, e.g.
// /etc/wireguard/configs/wg0.conf -> wg0
func NameFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), FileExt)
}

// FileName returns the config file name for a tunnel
func FileName(name string) string {
	return name + FileExt
}
