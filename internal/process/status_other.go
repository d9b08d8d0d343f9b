//go:build !unix

package process

import (
	"os"

	"github.com/aryankumar/testfleet/internal/executor"
)

func statusOf(ps *os.ProcessState) executor.Status {
	code := ps.ExitCode()
	if code < 0 {
		return executor.SignalStatus(9, false)
	}
	return executor.ExitStatus(code)
}
