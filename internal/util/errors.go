package util

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aryankumar/testfleet/internal/discovery"
	"github.com/aryankumar/testfleet/internal/executor"
	"github.com/aryankumar/testfleet/internal/process"
)

// Common error types for the testfleet CLI
var (
	// ErrInvalidConfig indicates a configuration error
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrCancelled indicates an operation was cancelled
	ErrCancelled = errors.New("operation cancelled")

	// ErrNoTests indicates discovery matched nothing
	ErrNoTests = errors.New("no test binaries found")

	// ErrTestsFailed indicates the run completed but at least one binary failed
	ErrTestsFailed = errors.New("tests failed")

	// ErrInterrupted indicates the run was stopped before every binary finished
	ErrInterrupted = errors.New("run interrupted")
)

// Exit codes returned by the testfleet binary. An interrupted run exits
// with ExitFailed; ExitInterrupted is reserved for a forced second signal.
const (
	ExitOK          = 0
	ExitFailed      = 1
	ExitUsage       = 2
	ExitInterrupted = 130
)

// MultiError aggregates multiple errors
type MultiError struct {
	Errors []error
}

// Error implements the error interface
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:", len(m.Errors)))
	for i, err := range m.Errors {
		if i < 10 {
			sb.WriteString(fmt.Sprintf("\n  %d. %v", i+1, err))
		} else {
			sb.WriteString(fmt.Sprintf("\n  ... and %d more errors", len(m.Errors)-10))
			break
		}
	}
	return sb.String()
}

// Unwrap returns the errors for errors.Is/As compatibility
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Add adds an error to the multi-error
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// ErrorOrNil returns nil if no errors were added, otherwise returns the MultiError
func (m *MultiError) ErrorOrNil() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}

// NewMultiError creates a new MultiError from a slice of errors.
// Nil errors are dropped.
func NewMultiError(errs []error) *MultiError {
	m := &MultiError{
		Errors: make([]error, 0, len(errs)),
	}
	for _, err := range errs {
		m.Add(err)
	}
	return m
}

// CombineErrors combines multiple errors into a single error.
// Returns nil if all errors are nil.
func CombineErrors(errs ...error) error {
	return NewMultiError(errs).ErrorOrNil()
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, executor.ErrStopTimeout)
}

// IsCancelled checks if an error is a cancellation error
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, ErrInterrupted)
}

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, discovery.ErrBadPattern):
		return ExitUsage
	default:
		return ExitFailed
	}
}

// FriendlyError converts technical errors to user-friendly messages
func FriendlyError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrTestsFailed):
		return "One or more test binaries failed. See the summary above and the reports for details."
	case errors.Is(err, ErrInterrupted):
		return "Run was interrupted. Binaries that did not finish are reported as INTERRUPTED."
	case errors.Is(err, ErrNoTests):
		return "No test binaries found. Check --dir and --pattern, or pass binaries as arguments."
	case errors.Is(err, process.ErrNoBinary):
		return "No binary given to run."
	case IsTimeout(err):
		return "Operation timed out. Some workers may still be running in the background."
	case IsCancelled(err):
		return "Operation was cancelled."
	case errors.Is(err, ErrInvalidConfig):
		return fmt.Sprintf("Invalid configuration: %v. Please check your config file and command-line flags.", err)
	case errors.Is(err, discovery.ErrBadPattern):
		return fmt.Sprintf("Invalid glob pattern: %v.", err)
	default:
		return err.Error()
	}
}

// WrapErrorf wraps an error with a formatted message
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
