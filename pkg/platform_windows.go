//go:build windows

package pkg

import "os/exec"

func setupProcessGroup(cmd *exec.Cmd) {}

// killProcessGroup kills the direct process; group kill is a Unix feature.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
