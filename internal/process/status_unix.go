//go:build unix

package process

import (
	"os"
	"syscall"

	"github.com/aryankumar/testfleet/internal/executor"
)

// statusOf returns the raw wait status, which already has the layout
// executor.Status decodes.
func statusOf(ps *os.ProcessState) executor.Status {
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok {
		return executor.Status(ws)
	}
	return executor.ExitStatus(ps.ExitCode())
}
