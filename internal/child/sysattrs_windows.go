//go:build windows

package child

import (
	"os/exec"
	"syscall"
)

const createNewProcessGroup = 0x00000200

// configureSysProcAttr places the child in a new process group so it can
// receive a termination signal independently of the bridge's own console
// group.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: createNewProcessGroup}
}

// terminate asks the child to exit. Windows has no SIGTERM equivalent for
// an arbitrary process, so this calls Kill directly; it is still the OS
// "default" forceful stop on this platform.
func terminate(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
