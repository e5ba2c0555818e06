// Package pkg is a package that provides utilities for stlcrunch.
package pkg

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// ShellResult is the captured outcome of one instruction.
type ShellResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
}

// Shell executes user-configured instructions through a shell. Each
// instruction runs in its own process group so a deadline kill takes the
// whole tree down, not just the direct child.
type Shell interface {
	Run(ctx context.Context, instruction string, timeout time.Duration) (ShellResult, error)
}

type shellImpl struct {
	bin string
}

// NewShell constructs a Shell backed by /bin/bash.
func NewShell() Shell {
	return &shellImpl{bin: "/bin/bash"}
}

// Run executes one instruction. A zero timeout leaves only the caller's ctx
// deadline in force. TimedOut marks a deadline kill; the returned error is
// reserved for spawn failures and cancellation, not non-zero exits.
func (s *shellImpl) Run(ctx context.Context, instruction string, timeout time.Duration) (ShellResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, s.bin, "-c", instruction)
	setupProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	res := ShellResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err == nil {
		return res, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		res.ExitCode = -1
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			res.TimedOut = true
			return res, nil
		}
		return res, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}

	return res, err
}
