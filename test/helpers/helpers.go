// Package helpers sets up sandboxes for end-to-end tests: a settings file,
// a configs directory and fake wg and wg-quick tools.
package helpers

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/vivekkundariya/wgtunnel/internal/config"
)

// fakeWGQuick records "up" by creating a marker named after the interface
// in $WGTUNNEL_FAKE_STATE and removes it on "down"
const fakeWGQuick = `#!/bin/sh
name=$(basename "$2" .conf)
case "$1" in
up)
	if [ -e "$WGTUNNEL_FAKE_STATE/$name" ]; then
		echo "wg-quick: '$name' already exists" >&2
		exit 1
	fi
	touch "$WGTUNNEL_FAKE_STATE/$name"
	;;
down)
	if [ ! -e "$WGTUNNEL_FAKE_STATE/$name" ]; then
		echo "wg-quick: '$name' is not a WireGuard interface" >&2
		exit 1
	fi
	rm -f "$WGTUNNEL_FAKE_STATE/$name"
	;;
*)
	exit 2
	;;
esac
`

// fakeWG answers "show interfaces" and "show <iface> dump" from the markers
const fakeWG = `#!/bin/sh
if [ "$1" = "show" ] && [ "$2" = "interfaces" ]; then
	ls "$WGTUNNEL_FAKE_STATE" | tr '\n' ' '
	echo
	exit 0
fi
if [ "$1" = "show" ] && [ "$3" = "dump" ]; then
	if [ ! -e "$WGTUNNEL_FAKE_STATE/$2" ]; then
		echo "Unable to access interface: No such device" >&2
		exit 1
	fi
	printf 'cHJpdmF0ZQ==\tHIgo9xNzJMWLKASShiTqIybxZ0U3wGLiUeJ1PKf8ykw=\t51820\toff\n'
	exit 0
fi
exit 2
`

// Sandbox is an isolated wgtunnel installation
type Sandbox struct {
	Home       string
	ConfigsDir string
	ExportRoot string
	// State holds one marker file per live fake interface
	State        string
	SettingsPath string
}

// CreateTempDir creates a temporary directory for tests
func CreateTempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "wgtunnel-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}

// NewSandbox creates the directories, the fake tools and a settings file
// that uses them with authorization switched off
func NewSandbox(t *testing.T) *Sandbox {
	t.Helper()
	root := CreateTempDir(t)

	sb := &Sandbox{
		Home:       filepath.Join(root, "home"),
		ConfigsDir: filepath.Join(root, "wireguard", "configs"),
		ExportRoot: filepath.Join(root, "exports"),
		State:      filepath.Join(root, "state"),
	}
	sb.SettingsPath = filepath.Join(sb.Home, config.SettingsFile)

	bin := filepath.Join(root, "bin")
	for _, dir := range []string{sb.Home, sb.ConfigsDir, sb.ExportRoot, sb.State, bin} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("failed to create %s: %v", dir, err)
		}
	}
	writeScript(t, filepath.Join(bin, "wg"), fakeWG)
	writeScript(t, filepath.Join(bin, "wg-quick"), fakeWGQuick)

	settings := config.DefaultSettings()
	settings.AppDir = filepath.Dir(sb.ConfigsDir)
	settings.Tools.WG = filepath.Join(bin, "wg")
	settings.Tools.WGQuick = filepath.Join(bin, "wg-quick")
	settings.Privilege.Authority = config.AuthorityNone
	settings.Logging.Level = "error"
	settings.Export.Root = sb.ExportRoot
	sb.WriteSettings(t, settings)
	return sb
}

// WriteSettings replaces the sandbox settings file
func (sb *Sandbox) WriteSettings(t *testing.T, s *config.Settings) {
	t.Helper()
	data, err := yaml.Marshal(s)
	if err != nil {
		t.Fatalf("failed to marshal settings: %v", err)
	}
	if err := os.WriteFile(sb.SettingsPath, data, 0600); err != nil {
		t.Fatalf("failed to write settings: %v", err)
	}
}

// Env is the environment a wgtunnel process in the sandbox runs with
func (sb *Sandbox) Env() []string {
	return append(os.Environ(),
		config.EnvHome+"="+sb.Home,
		config.EnvConfigFile+"=",
		"WGTUNNEL_FAKE_STATE="+sb.State,
	)
}

// WriteConfig writes a tunnel config straight into the configs directory
func (sb *Sandbox) WriteConfig(t *testing.T, name, text string) string {
	t.Helper()
	path := filepath.Join(sb.ConfigsDir, name+".conf")
	if err := os.WriteFile(path, []byte(text), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// MarkLive pretends an interface is up without a config behind it
func (sb *Sandbox) MarkLive(t *testing.T, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(sb.State, name), nil, 0600); err != nil {
		t.Fatalf("failed to mark %s live: %v", name, err)
	}
}

// IsLive reports whether the fake wg-quick brought name up
func (sb *Sandbox) IsLive(name string) bool {
	_, err := os.Stat(filepath.Join(sb.State, name))
	return err == nil
}

func writeScript(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0755); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
