package process

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireBinary(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
}

func TestExecRunner_Success(t *testing.T) {
	requireBinary(t, "sh")
	r := NewExecRunner()

	out, err := r.Run(context.Background(), Command{
		Name:    "sh",
		Args:    []string{"-c", "echo out; echo err >&2"},
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "out\n", string(out.Stdout))
	assert.Equal(t, "err\n", string(out.Stderr))
	assert.Equal(t, 0, out.ExitCode)
}

func TestExecRunner_ArgsAreNotShellExpanded(t *testing.T) {
	requireBinary(t, "echo")
	r := NewExecRunner()

	out, err := r.Run(context.Background(), Command{
		Name: "echo",
		Args: []string{"$HOME", "; rm -rf /", "a b"},
	})
	require.NoError(t, err)
	assert.Equal(t, "$HOME ; rm -rf / a b\n", string(out.Stdout))
}

func TestExecRunner_ExitFailure(t *testing.T) {
	requireBinary(t, "sh")
	r := NewExecRunner()

	out, err := r.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo 'wg-quick: `wg0` already exists' >&2; exit 3"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExitFailure))

	var runErr *RunError
	require.True(t, errors.As(err, &runErr))
	assert.Equal(t, ExitFailure, runErr.Kind)
	assert.Equal(t, 3, runErr.Code)
	assert.Contains(t, runErr.Stderr, "already exists")
	assert.Contains(t, runErr.Error(), "exited with code 3")
	require.NotNil(t, out)
	assert.Equal(t, 3, out.ExitCode)
}

func TestExecRunner_Timeout(t *testing.T) {
	requireBinary(t, "sleep")
	r := NewExecRunner()

	start := time.Now()
	_, err := r.Run(context.Background(), Command{
		Name:    "sleep",
		Args:    []string{"10"},
		Timeout: 100 * time.Millisecond,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)
	assert.Less(t, time.Since(start), 5*time.Second)

	var runErr *RunError
	require.True(t, errors.As(err, &runErr))
	assert.Equal(t, 100*time.Millisecond, runErr.Timeout)
}

func TestExecRunner_Canceled(t *testing.T) {
	requireBinary(t, "sleep")
	r := NewExecRunner()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := r.Run(ctx, Command{Name: "sleep", Args: []string{"10"}, Timeout: 5 * time.Second})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCanceled), "got %v", err)
}

func TestExecRunner_SpawnFailure(t *testing.T) {
	r := NewExecRunner()

	out, err := r.Run(context.Background(), Command{Name: "/nonexistent/wg-quick", Args: []string{"up", "x"}})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, ErrSpawn))
}

func TestExecRunner_Stdin(t *testing.T) {
	requireBinary(t, "cat")
	r := NewExecRunner()

	out, err := r.Run(context.Background(), Command{Name: "cat", Stdin: []byte("secret\n")})
	require.NoError(t, err)
	assert.Equal(t, "secret\n", string(out.Stdout))
}

func TestTemplates(t *testing.T) {
	tpl := DefaultTemplates()

	tests := []struct {
		name    string
		cmd     Command
		op      Operation
		bin     string
		args    []string
		timeout time.Duration
	}{
		{"bring up", tpl.BringUp("/tmp/x/wg0.conf"), OpBringUp, "wg-quick", []string{"up", "/tmp/x/wg0.conf"}, 30 * time.Second},
		{"bring down", tpl.BringDown("/tmp/x/wg0.conf"), OpBringDown, "wg-quick", []string{"down", "/tmp/x/wg0.conf"}, 30 * time.Second},
		{"status", tpl.StatusQuery("wg0"), OpStatusQuery, "wg", []string{"show", "wg0", "dump"}, 5 * time.Second},
		{"interfaces", tpl.ShowInterfaces(), OpShowInterfaces, "wg", []string{"show", "interfaces"}, 5 * time.Second},
		{"genkey", tpl.GenKey(), OpGenKey, "wg", []string{"genkey"}, 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.op, tt.cmd.Op)
			assert.Equal(t, tt.bin, tt.cmd.Name)
			assert.Equal(t, tt.args, tt.cmd.Args)
			assert.Equal(t, tt.timeout, tt.cmd.Timeout)
		})
	}

	pub := tpl.PubKey("priv")
	assert.Equal(t, []string{"pubkey"}, pub.Args)
	assert.Equal(t, "priv\n", string(pub.Stdin))
	assert.NotContains(t, pub.String(), "priv\n")
}

func TestOperationPrivileged(t *testing.T) {
	assert.True(t, OpBringUp.Privileged())
	assert.True(t, OpBringDown.Privileged())
	assert.False(t, OpStatusQuery.Privileged())
	assert.False(t, OpShowInterfaces.Privileged())
	assert.False(t, OpGenKey.Privileged())
	assert.False(t, OpPubKey.Privileged())
}
