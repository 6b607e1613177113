//go:build !windows

package child

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr places the child in a new process group so a
// termination signal can be delivered to it (and anything it spawns)
// without affecting the bridge itself.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminate sends the OS default termination signal, SIGTERM, to the
// child's process group.
func terminate(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
}
