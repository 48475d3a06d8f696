//go:build windows

package procgroup

import (
	"os/exec"
)

// Set is a no-op on windows beyond wiring cancellation to Kill.
func Set(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		return Kill(cmd)
	}
}

// Kill terminates the child process.
func Kill(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
