//go:build !unix

package eerie

import "os"

func exitCode(ps *os.ProcessState) (int, error) {
	if ps == nil || ps.ExitCode() < 0 {
		return 0, ErrUndeterminedExit
	}
	return ps.ExitCode(), nil
}
