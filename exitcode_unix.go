//go:build unix

package eerie

import (
	"os"
	"syscall"
)

// exitCode maps a finished process to a single integer: the exit code for
// a normal exit, the signal number for a process killed by a signal.
func exitCode(ps *os.ProcessState) (int, error) {
	if ps == nil {
		return 0, ErrUndeterminedExit
	}
	ws, ok := ps.Sys().(syscall.WaitStatus)
	if !ok {
		return ps.ExitCode(), nil
	}
	switch {
	case ws.Exited():
		return ws.ExitStatus(), nil
	case ws.Signaled():
		return int(ws.Signal()), nil
	}
	return 0, ErrUndeterminedExit
}
