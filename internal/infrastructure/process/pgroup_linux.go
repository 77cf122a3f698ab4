//go:build linux

package process

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// killProcessGroup puts the child in its own process group and kills the
// whole group on cancel, so helpers started by wg-quick die with it.
func killProcessGroup(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		if err := unix.Kill(-c.Process.Pid, unix.SIGKILL); err != nil {
			// a setuid wrapper like pkexec may refuse the group signal
			return c.Process.Kill()
		}
		return nil
	}
}
