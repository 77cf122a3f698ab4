package integration

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vivekkundariya/wgtunnel/internal/mocks"
	"github.com/vivekkundariya/wgtunnel/test/helpers"
)

// These are end-to-end tests that run the CLI binary against fake wg and
// wg-quick tools

// Helper to get the path to the wgtunnel binary
func getBinaryPath(t *testing.T) string {
	t.Helper()

	locations := []string{
		"../../bin/wgtunnel",
		"../bin/wgtunnel",
		"./bin/wgtunnel",
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			abs, _ := filepath.Abs(loc)
			return abs
		}
	}

	// Try to build it
	t.Log("Binary not found, attempting to build...")
	cmd := exec.Command("go", "build", "-o", "../../bin/wgtunnel", "../../cmd/wgtunnel")
	if err := cmd.Run(); err != nil {
		t.Skipf("Could not find or build wgtunnel binary: %v", err)
	}

	abs, _ := filepath.Abs("../../bin/wgtunnel")
	return abs
}

// Helper to run a wgtunnel command inside a sandbox and capture output
func runWGTunnel(t *testing.T, sb *helpers.Sandbox, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()

	binary := getBinaryPath(t)
	cmd := exec.Command(binary, args...)
	if sb != nil {
		cmd.Env = sb.Env()
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	exitCode = 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	} else if err != nil {
		exitCode = 1
	}

	return stdoutBuf.String(), stderrBuf.String(), exitCode
}

func TestCLI_Help(t *testing.T) {
	stdout, _, exitCode := runWGTunnel(t, nil, "--help")

	if exitCode != 0 {
		t.Errorf("Expected exit code 0 for --help, got %d", exitCode)
	}

	expectedCommands := []string{"list", "status", "up", "down", "import", "export", "generate", "watch"}
	for _, cmd := range expectedCommands {
		if !strings.Contains(stdout, cmd) {
			t.Errorf("Expected help to contain command %q", cmd)
		}
	}
}

func TestCLI_Version(t *testing.T) {
	stdout, _, exitCode := runWGTunnel(t, nil, "--version")

	if exitCode != 0 {
		t.Fatalf("Expected exit code 0 for --version, got %d", exitCode)
	}
	if !strings.Contains(stdout, "wgtunnel") {
		t.Errorf("Expected version output to name the tool, got %q", stdout)
	}
}

func TestCLI_UnknownCommand(t *testing.T) {
	_, _, exitCode := runWGTunnel(t, nil, "unknowncommand")

	if exitCode == 0 {
		t.Error("Expected non-zero exit code for unknown command")
	}
}

func TestCLI_Setup(t *testing.T) {
	sb := helpers.NewSandbox(t)
	os.Remove(sb.SettingsPath)

	stdout, stderr, exitCode := runWGTunnel(t, sb, "setup")
	if exitCode != 0 {
		t.Fatalf("setup failed (%d): %s%s", exitCode, stdout, stderr)
	}
	if _, err := os.Stat(sb.SettingsPath); err != nil {
		t.Fatalf("expected settings at %s: %v", sb.SettingsPath, err)
	}

	stdout, _, _ = runWGTunnel(t, sb, "setup")
	if !strings.Contains(stdout, "already exist") {
		t.Errorf("expected second setup to leave the file alone, got %q", stdout)
	}

	// overwriting asks first, and there is no terminal to ask on
	_, _, exitCode = runWGTunnel(t, sb, "setup", "--force")
	if exitCode == 0 {
		t.Error("expected setup --force without a terminal to refuse")
	}
	stdout, stderr, exitCode = runWGTunnel(t, sb, "setup", "--force", "--yes")
	if exitCode != 0 || !strings.Contains(stdout, "Settings written") {
		t.Errorf("expected setup --force --yes to overwrite, got (%d) %s%s", exitCode, stdout, stderr)
	}
}

func TestCLI_DeleteAsksFirst(t *testing.T) {
	sb := helpers.NewSandbox(t)
	sb.WriteConfig(t, "office", mocks.ConfigText)
	path := filepath.Join(sb.ConfigsDir, "office.conf")

	stdout, stderr, exitCode := runWGTunnel(t, sb, "delete", "office")
	if exitCode == 0 {
		t.Error("expected delete without a terminal or --yes to refuse")
	}
	if !strings.Contains(stdout+stderr, "--yes") {
		t.Errorf("expected a hint about --yes, got %q", stdout+stderr)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected the config to be kept: %v", err)
	}

	stdout, stderr, exitCode = runWGTunnel(t, sb, "delete", "-y", "office")
	if exitCode != 0 {
		t.Fatalf("delete failed (%d): %s%s", exitCode, stdout, stderr)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected the config to be gone, got %v", err)
	}
}

func TestCLI_ImportListShowExport(t *testing.T) {
	sb := helpers.NewSandbox(t)

	src := filepath.Join(helpers.CreateTempDir(t), "lab.conf")
	text := strings.Replace(mocks.ConfigText, "[Peer]", "PostUp = iptables -A FORWARD -i %i -j ACCEPT\n\n[Peer]", 1)
	if err := os.WriteFile(src, []byte(text), 0600); err != nil {
		t.Fatal(err)
	}

	stdout, stderr, exitCode := runWGTunnel(t, sb, "import", src)
	if exitCode != 0 {
		t.Fatalf("import failed (%d): %s%s", exitCode, stdout, stderr)
	}
	if _, err := os.Stat(filepath.Join(sb.ConfigsDir, "lab.conf")); err != nil {
		t.Fatalf("expected imported config: %v", err)
	}

	_, _, exitCode = runWGTunnel(t, sb, "import", src)
	if exitCode == 0 {
		t.Error("expected importing the same name twice to fail")
	}

	stdout, _, exitCode = runWGTunnel(t, sb, "list")
	if exitCode != 0 || !strings.Contains(stdout, "lab") || !strings.Contains(stdout, "down") {
		t.Errorf("expected lab to be listed as down, got (%d) %q", exitCode, stdout)
	}

	stdout, _, exitCode = runWGTunnel(t, sb, "show", "lab")
	if exitCode != 0 {
		t.Fatalf("show failed: %d", exitCode)
	}
	if strings.Contains(stdout, mocks.PrivateKey) || !strings.Contains(stdout, "(hidden)") {
		t.Errorf("expected private key to be hidden, got %q", stdout)
	}
	if strings.Contains(stdout, "PostUp") {
		t.Errorf("expected hooks to be stripped on import, got %q", stdout)
	}

	target := filepath.Join(sb.ExportRoot, "lab.conf")
	_, stderr, exitCode = runWGTunnel(t, sb, "export", "lab", target)
	if exitCode != 0 {
		t.Fatalf("export failed (%d): %s", exitCode, stderr)
	}
	info, err := os.Stat(target)
	if err != nil {
		t.Fatalf("expected exported file: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected mode 0600, got %o", info.Mode().Perm())
	}

	outside := filepath.Join(helpers.CreateTempDir(t), "lab.conf")
	_, _, exitCode = runWGTunnel(t, sb, "export", "lab", outside)
	if exitCode == 0 {
		t.Error("expected export outside the export root to fail")
	}
}

func TestCLI_UpDown(t *testing.T) {
	sb := helpers.NewSandbox(t)
	sb.WriteConfig(t, "office", mocks.ConfigText)

	stdout, stderr, exitCode := runWGTunnel(t, sb, "up", "office")
	if exitCode != 0 {
		t.Fatalf("up failed (%d): %s%s", exitCode, stdout, stderr)
	}
	if !sb.IsLive("office") {
		t.Fatal("expected wg-quick up to have run")
	}

	_, _, exitCode = runWGTunnel(t, sb, "delete", "--yes", "missing")
	if exitCode == 0 {
		t.Error("expected deleting an unknown tunnel to fail")
	}

	stdout, stderr, exitCode = runWGTunnel(t, sb, "down", "office")
	if exitCode != 0 {
		t.Fatalf("down failed (%d): %s%s", exitCode, stdout, stderr)
	}
	if sb.IsLive("office") {
		t.Error("expected wg-quick down to have run")
	}
}

func TestCLI_UpUnknownTunnel(t *testing.T) {
	sb := helpers.NewSandbox(t)

	_, _, exitCode := runWGTunnel(t, sb, "up", "nonexistent")
	if exitCode == 0 {
		t.Error("Expected error for unknown tunnel")
	}
}

func TestCLI_ListShowsUnmanagedInterfaces(t *testing.T) {
	sb := helpers.NewSandbox(t)
	sb.MarkLive(t, "stray")

	stdout, _, exitCode := runWGTunnel(t, sb, "list")
	if exitCode != 0 {
		t.Fatalf("list failed: %d", exitCode)
	}
	if !strings.Contains(stdout, "stray") || !strings.Contains(stdout, "unmanaged") {
		t.Errorf("expected stray to be listed as unmanaged, got %q", stdout)
	}

	stdout, _, _ = runWGTunnel(t, sb, "list", "--managed")
	if strings.Contains(stdout, "stray") {
		t.Errorf("expected --managed to hide stray, got %q", stdout)
	}
}

func TestCLI_BrokenConfigIsSkipped(t *testing.T) {
	sb := helpers.NewSandbox(t)
	sb.WriteConfig(t, "office", mocks.ConfigText)
	sb.WriteConfig(t, "broken", "[Interface]\nAddress = 10.0.0.1/24\n")

	stdout, _, exitCode := runWGTunnel(t, sb, "list")
	if exitCode != 0 {
		t.Fatalf("list failed: %d", exitCode)
	}
	if !strings.Contains(stdout, "office") {
		t.Errorf("expected office to be listed, got %q", stdout)
	}
	if !strings.Contains(stdout, "broken") {
		t.Errorf("expected a warning naming broken.conf, got %q", stdout)
	}
}
