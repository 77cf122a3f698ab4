package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vivekkundariya/wgtunnel/internal/logging"
)

// DefaultRoot is the only tree file exports may be written into
const DefaultRoot = "/home"

// ErrTargetNotAllowed is returned for export paths outside the allowed tree
var ErrTargetNotAllowed = errors.New("export target not allowed")

// FileExporter writes configs to local files below a root directory. The
// target must be absolute, its resolved parent must lie inside the resolved
// root and an existing target must not be a symlink.
type FileExporter struct {
	root string
}

// NewFileExporter creates an exporter confined to root, DefaultRoot when empty
func NewFileExporter(root string) *FileExporter {
	if root == "" {
		root = DefaultRoot
	}
	return &FileExporter{root: root}
}

// Export writes data to target with mode 0600
func (f *FileExporter) Export(ctx context.Context, target string, data []byte) error {
	path, err := f.Resolve(target)
	if err != nil {
		return err
	}
	if err := writePrivate(path, data); err != nil {
		return err
	}
	logging.Debugf("Exported %d bytes to %s", len(data), path)
	return nil
}

// writePrivate writes data to path without following a symlink put there
// after Resolve looked, and leaves the file at mode 0600
func writePrivate(path string, data []byte) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC|openNoFollow, 0600)
	if err != nil {
		if isSymlinkLoop(err) {
			return fmt.Errorf("%w: %s is a symlink", ErrTargetNotAllowed, path)
		}
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	// an existing file keeps its mode on open
	if err := file.Chmod(0600); err != nil {
		file.Close()
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Resolve checks target against the export policy and returns the path to
// write, with its parent directory resolved.
func (f *FileExporter) Resolve(target string) (string, error) {
	if !filepath.IsAbs(target) {
		return "", fmt.Errorf("%w: %s is not an absolute path", ErrTargetNotAllowed, target)
	}
	base := filepath.Base(target)
	if strings.HasSuffix(target, string(filepath.Separator)) || base == "." || base == string(filepath.Separator) || base == ".." {
		return "", fmt.Errorf("%w: %s has no file name", ErrTargetNotAllowed, target)
	}

	root, err := filepath.EvalSymlinks(f.root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", f.root, err)
	}
	parent, err := filepath.EvalSymlinks(filepath.Dir(target))
	if err != nil {
		return "", fmt.Errorf("%w: parent of %s: %v", ErrTargetNotAllowed, target, err)
	}
	info, err := os.Stat(parent)
	if err != nil {
		return "", fmt.Errorf("%w: parent of %s: %v", ErrTargetNotAllowed, target, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrTargetNotAllowed, parent)
	}
	if !within(root, parent) {
		return "", fmt.Errorf("%w: %s is outside %s", ErrTargetNotAllowed, target, f.root)
	}

	path := filepath.Join(parent, base)
	if fi, err := os.Lstat(path); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		return "", fmt.Errorf("%w: %s is a symlink", ErrTargetNotAllowed, path)
	}
	return path, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
