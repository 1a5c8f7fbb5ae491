//go:build windows

// Package osutil holds platform-specific helpers for the external processes
// headelf spawns (git for the audit trail and extension fetches).
package osutil

import (
	"os"
	"os/exec"
	"syscall"
	"time"
)

// KillWaitDelay bounds how long Wait blocks on inherited pipes after the
// process has been killed.
const KillWaitDelay = 2 * time.Second

// IsolateProcess starts cmd in a new process group. Windows has no
// Unix-style group kill, so cancellation only terminates the main process.
func IsolateProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
		HideWindow:    true,
	}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return cmd.Process.Signal(os.Kill)
	}
	cmd.WaitDelay = KillWaitDelay
}
