//go:build unix

package predictor

import (
	"os/exec"
	"syscall"
)

// prepareCommand starts the routine in its own process group so a timeout
// also reaches anything it spawned.
func prepareCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
