//go:build !windows

package pkg

import (
	"os/exec"
	"strings"
	"syscall"
)

// setupProcessGroup configures the command to run in its own process group
// so a deadline kill reaches every child it spawned.
func setupProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// killProcessGroup kills the process and all its children.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}

	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err == nil && pgid > 0 {
		if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil {
			syscall.Kill(-pgid, syscall.SIGTERM)
		}
	}

	if err := cmd.Process.Kill(); err != nil {
		// Process might already be dead.
		if !strings.Contains(err.Error(), "process already finished") {
			return err
		}
	}

	return nil
}
