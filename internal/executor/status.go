package executor

import "fmt"

// Signal numbers used when decoding a Status. They match Linux and the BSDs.
const (
	sigInt  = 2
	sigAbrt = 6
	sigSegv = 11

	stoppedMarker = 0x7f
	coreFlag      = 0x80
)

// Status is a raw process wait status as reported by the platform.
// The low byte carries signal information (the "system byte"), the next byte
// carries the return code of a normally exited process.
type Status int

// ExitStatus builds the Status of a process that exited with the given code.
func ExitStatus(code int) Status {
	return Status((code & 0xff) << 8)
}

// SignalStatus builds the Status of a process terminated by a signal.
func SignalStatus(sig int, core bool) Status {
	s := Status(sig & 0x7f)
	if core {
		s |= coreFlag
	}
	return s
}

// ExitCode returns the return code byte.
func (s Status) ExitCode() int {
	return int(s>>8) & 0xff
}

// SystemByte returns the low byte of the status unchanged.
func (s Status) SystemByte() int {
	return int(s) & 0xff
}

// Signal returns the terminating signal, or 0 when the process exited normally.
func (s Status) Signal() int {
	sig := int(s) & 0x7f
	if sig == stoppedMarker {
		return 0
	}
	return sig
}

// Signaled reports whether the process was terminated by a signal.
func (s Status) Signaled() bool {
	return s.Signal() != 0
}

// CoreDumped reports whether the platform flagged a core dump.
func (s Status) CoreDumped() bool {
	return s.Signaled() && int(s)&coreFlag != 0
}

// Crashed reports a crash that normally leaves a core: return code 11 or 139,
// or termination by SIGSEGV.
func (s Status) Crashed() bool {
	code := s.ExitCode()
	return code == sigSegv || code == 128+sigSegv || s.Signal() == sigSegv
}

// Aborted reports an abort: return code 6 or 134, or termination by SIGABRT.
func (s Status) Aborted() bool {
	code := s.ExitCode()
	return code == sigAbrt || code == 128+sigAbrt || s.Signal() == sigAbrt
}

// NonZero reports any unsuccessful termination.
func (s Status) NonZero() bool {
	return s.ExitCode() != 0 || s.Signaled()
}

// Interrupted reports a process stopped by SIGINT, i.e. a system byte of 2.
func (s Status) Interrupted() bool {
	return s.SystemByte() == sigInt
}

// String returns a human-readable form such as "exit 1" or "signal 11 (core dumped)".
func (s Status) String() string {
	if !s.Signaled() {
		return fmt.Sprintf("exit %d", s.ExitCode())
	}
	if s.CoreDumped() {
		return fmt.Sprintf("signal %d (core dumped)", s.Signal())
	}
	return fmt.Sprintf("signal %d", s.Signal())
}
