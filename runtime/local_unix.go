//go:build unix

package runtime

import (
	"os/exec"
	"syscall"
)

// setProcAttributes places the child in a new process group so a
// timeout kill reaches the whole tree.
func setProcAttributes(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    0,
	}
}

// killProcess terminates the child's process group.
func killProcess(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	// Negative pid addresses the group; fall back to the process itself
	// if the group signal fails.
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		_ = cmd.Process.Kill()
	}
}
