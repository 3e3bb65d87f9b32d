//go:build !unix

package sandbox

import (
	"os"
	"os/exec"
)

// setProcessGroup is a no-op where process groups are unavailable; only the
// direct child is killed.
func setProcessGroup(_ *exec.Cmd) {}

func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return os.ErrProcessDone
	}
	return cmd.Process.Kill()
}

func exitStatus(state *os.ProcessState) (code int, signaled bool) {
	return state.ExitCode(), !state.Exited()
}
