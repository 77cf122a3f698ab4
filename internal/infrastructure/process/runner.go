package process

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vivekkundariya/wgtunnel/internal/logging"
)

// waitDelay bounds how long Run waits for output pipes after a kill
const waitDelay = 2 * time.Second

// Outcome is what a finished process left behind
type Outcome struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// ExecRunner runs commands with os/exec. It is the only component that
// starts the WireGuard tools.
type ExecRunner struct{}

// NewExecRunner creates a new runner
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run starts cmd, captures stdout and stderr separately and waits for it.
// A command still running at cmd.Timeout is killed along with its process
// group and a Timeout RunError is returned. A non-zero exit returns an
// ExitFailure RunError carrying the code and stderr. The Outcome is returned
// in every case where the process started.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (*Outcome, error) {
	runCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(runCtx, cmd.Name, cmd.Args...)
	c.Stdout = &stdout
	c.Stderr = &stderr
	if cmd.Stdin != nil {
		c.Stdin = bytes.NewReader(cmd.Stdin)
	}
	c.WaitDelay = waitDelay
	killProcessGroup(c)

	log := logging.WithFields(logrus.Fields{"op": cmd.Op.String()})
	log.Debugf("Running: %s", cmd)

	start := time.Now()
	err := c.Run()
	out := &Outcome{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}
	if c.ProcessState != nil {
		out.ExitCode = c.ProcessState.ExitCode()
	}

	if err == nil {
		log.Debugf("%s finished in %s", cmd.Name, out.Duration)
		return out, nil
	}

	name := commandLabel(cmd)
	switch {
	case ctx.Err() != nil:
		return out, &RunError{Kind: Canceled, Command: name, Err: ctx.Err()}
	case runCtx.Err() == context.DeadlineExceeded:
		log.Warnf("%s timed out after %s", name, cmd.Timeout)
		return out, &RunError{Kind: Timeout, Command: name, Timeout: cmd.Timeout, Err: runCtx.Err()}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return out, &RunError{
			Kind:    ExitFailure,
			Command: name,
			Code:    exitErr.ExitCode(),
			Stderr:  string(out.Stderr),
			Err:     err,
		}
	}
	if c.ProcessState == nil {
		return nil, &RunError{Kind: Spawn, Command: name, Err: err}
	}
	return out, &RunError{Kind: ExitFailure, Command: name, Code: out.ExitCode, Stderr: string(out.Stderr), Err: err}
}

// commandLabel is the tool and subcommand, e.g. "wg-quick up"
func commandLabel(cmd Command) string {
	parts := []string{cmd.Name}
	if len(cmd.Args) > 0 && !strings.HasPrefix(cmd.Args[0], "/") {
		parts = append(parts, cmd.Args[0])
	}
	return strings.Join(parts, " ")
}
