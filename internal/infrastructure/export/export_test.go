package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vivekkundariya/wgtunnel/internal/mocks"
)

func newTestExporter(t *testing.T) (*FileExporter, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "alice"), 0755))
	return NewFileExporter(root), root
}

func TestFileExporter_Export(t *testing.T) {
	e, root := newTestExporter(t)
	target := filepath.Join(root, "alice", "office.conf")

	require.NoError(t, e.Export(context.Background(), target, []byte(mocks.ConfigText)))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, mocks.ConfigText, string(data))

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileExporter_OverwriteTightensMode(t *testing.T) {
	e, root := newTestExporter(t)
	target := filepath.Join(root, "alice", "office.conf")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0644))

	require.NoError(t, e.Export(context.Background(), target, []byte("new")))

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestWritePrivate_RefusesSymlinkSwappedIn(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(t.TempDir(), "real.conf")
	require.NoError(t, os.WriteFile(outside, []byte("untouched"), 0644))

	// a link created between the policy check and the write
	link := filepath.Join(dir, "office.conf")
	require.NoError(t, os.Symlink(outside, link))

	err := writePrivate(link, []byte("secret"))
	assert.ErrorIs(t, err, ErrTargetNotAllowed)

	data, err := os.ReadFile(outside)
	require.NoError(t, err)
	assert.Equal(t, "untouched", string(data))
}

func TestFileExporter_Policy(t *testing.T) {
	e, root := newTestExporter(t)
	outside := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(outside, "real.conf"), nil, 0600))
	require.NoError(t, os.Symlink(filepath.Join(outside, "real.conf"), filepath.Join(root, "alice", "link.conf")))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "alice", "escape")))
	require.NoError(t, os.WriteFile(filepath.Join(root, "alice", "file"), nil, 0600))

	tests := []struct {
		name   string
		target string
	}{
		{"relative", "alice/office.conf"},
		{"no file name", filepath.Join(root, "alice") + "/"},
		{"outside root", filepath.Join(outside, "office.conf")},
		{"dot dot escape", filepath.Join(root, "alice", "..", "..", "office.conf")},
		{"missing parent", filepath.Join(root, "bob", "office.conf")},
		{"parent is a file", filepath.Join(root, "alice", "file", "office.conf")},
		{"symlinked parent", filepath.Join(root, "alice", "escape", "office.conf")},
		{"symlink target", filepath.Join(root, "alice", "link.conf")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.Export(context.Background(), tt.target, []byte("x"))
			assert.ErrorIs(t, err, ErrTargetNotAllowed)
		})
	}

	data, err := os.ReadFile(filepath.Join(outside, "real.conf"))
	require.NoError(t, err)
	assert.Empty(t, data, "symlink target must not be followed")
}

func TestRouter(t *testing.T) {
	file := &mocks.RecordingExporter{}
	s3 := &mocks.RecordingExporter{}
	r := &Router{File: file, S3: s3}

	require.NoError(t, r.Export(context.Background(), "/home/alice/a.conf", []byte("a")))
	require.NoError(t, r.Export(context.Background(), "s3://bucket/b.conf", []byte("b")))

	assert.Contains(t, file.Exports, "/home/alice/a.conf")
	assert.Contains(t, s3.Exports, "s3://bucket/b.conf")
	assert.NotContains(t, file.Exports, "s3://bucket/b.conf")

	r.S3 = nil
	err := r.Export(context.Background(), "s3://bucket/b.conf", nil)
	assert.True(t, errors.Is(err, ErrS3Disabled))
}
