//go:build unix

// Package osutil holds platform-specific helpers for the external processes
// headelf spawns (git for the audit trail and extension fetches).
package osutil

import (
	"os/exec"
	"syscall"
	"time"
)

// KillWaitDelay bounds how long Wait blocks on inherited pipes after the
// process group has been killed.
const KillWaitDelay = 2 * time.Second

// IsolateProcess runs cmd in its own process group and, when the command's
// context is cancelled, kills the whole group instead of only the leader.
// git spawns helpers (ssh, credential managers) that would otherwise outlive it.
func IsolateProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = KillWaitDelay
}
