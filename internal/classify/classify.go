package classify

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"runtime"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aryankumar/testfleet/internal/executor"
)

// DefaultIgnoredFrames are thread frames whose errors are known noise. The
// brpc bvar sampler thread trips valgrind in every binary that links it.
var DefaultIgnoredFrames = []string{"append_second"}

// Input is everything known about one binary after the run.
type Input struct {
	Name string

	// Outcome is nil when the task never finished
	Outcome *executor.Outcome

	OutputPath string
	ReportPath string
}

// Verdict is the classified result of one binary.
type Verdict struct {
	Name       string          `json:"name" yaml:"name"`
	Category   Category        `json:"category" yaml:"category"`
	Duration   time.Duration   `json:"duration" yaml:"duration"`
	Status     executor.Status `json:"status" yaml:"status"`
	TimedOut   bool            `json:"timedOut" yaml:"timedOut"`
	Detail     string          `json:"detail,omitempty" yaml:"detail,omitempty"`
	ReportPath string          `json:"reportPath,omitempty" yaml:"reportPath,omitempty"`
}

// Passed reports whether every verdict is PASS.
func Passed(verdicts []Verdict) bool {
	for _, v := range verdicts {
		if v.Category.Failed() {
			return false
		}
	}
	return true
}

// Count returns how many verdicts fall into each category.
func Count(verdicts []Verdict) map[Category]int {
	counts := make(map[Category]int, len(Categories))
	for _, v := range verdicts {
		counts[v.Category]++
	}
	return counts
}

// Classifier reads side files and assigns categories.
type Classifier struct {
	ignoredFrames []string
	limit         int
	logger        *slog.Logger
}

// Option configures a Classifier
type Option func(*Classifier)

// WithIgnoredFrames replaces DefaultIgnoredFrames.
func WithIgnoredFrames(frames []string) Option {
	return func(c *Classifier) {
		c.ignoredFrames = frames
	}
}

// WithLimit bounds the number of binaries classified concurrently.
func WithLimit(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.limit = n
		}
	}
}

// New creates a Classifier.
func New(logger *slog.Logger, opts ...Option) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Classifier{
		ignoredFrames: DefaultIgnoredFrames,
		limit:         runtime.NumCPU(),
		logger:        logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClassifyAll classifies every input in parallel. Verdicts keep the input order.
func (c *Classifier) ClassifyAll(ctx context.Context, inputs []Input) ([]Verdict, error) {
	verdicts := make([]Verdict, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.limit)
	for i, in := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v, err := c.Classify(in)
			if err != nil {
				return err
			}
			verdicts[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return verdicts, nil
}

// Classify assigns the category of a single binary. Missing side files are
// treated as empty.
func (c *Classifier) Classify(in Input) (Verdict, error) {
	v := Verdict{Name: in.Name, ReportPath: in.ReportPath}

	o := in.Outcome
	if o == nil {
		v.Category = Interrupted
		v.Detail = "did not finish"
		return v, nil
	}
	v.Duration = o.Duration()
	v.Status = o.Status
	v.TimedOut = o.TimedOut

	if o.Err == nil && o.Status.Interrupted() {
		v.Category = Interrupted
		v.Detail = o.Status.String()
		return v, nil
	}

	failed, err := c.hasFailure(in.OutputPath)
	if err != nil {
		return v, err
	}

	switch {
	case failed:
		v.Category = Fail
		v.Detail = "gtest reported failures"
		return v, nil
	case o.TimedOut:
		v.Category = Timeout
		v.Detail = fmt.Sprintf("killed after %s", v.Duration.Round(time.Millisecond))
		return v, nil
	case o.Err != nil:
		v.Category = NonZeroExit
		v.Detail = o.Err.Error()
		return v, nil
	case o.Status.Crashed():
		v.Category = CoreDump
		v.Detail = o.Status.String()
		return v, nil
	case o.Status.Aborted():
		v.Category = Abort
		v.Detail = o.Status.String()
		return v, nil
	case o.Status.NonZero():
		v.Category = NonZeroExit
		v.Detail = o.Status.String()
		return v, nil
	}

	rep, err := c.readReport(in.ReportPath)
	if err != nil {
		return v, err
	}

	switch {
	case rep.Errors > 0 && !slices.Contains(c.ignoredFrames, rep.ThreadFrame):
		v.Category = MemError
		v.Detail = fmt.Sprintf("%d errors", rep.Errors)
		c.logger.Warn("memory errors found", "binary", in.Name, "errors", rep.Errors, "report", in.ReportPath)
	case rep.Leaked():
		v.Category = MemLeak
		v.Detail = fmt.Sprintf("%d bytes definitely, %d bytes indirectly lost", rep.DefinitelyLost, rep.IndirectlyLost)
		c.logger.Warn("memory leak found", "binary", in.Name, "report", in.ReportPath)
	default:
		v.Category = Pass
	}
	return v, nil
}

func (c *Classifier) hasFailure(path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("opening output: %w", err)
	}
	defer f.Close()

	ok, err := HasFailure(f)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	return ok, nil
}

func (c *Classifier) readReport(path string) (Report, error) {
	if path == "" {
		return Report{}, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Report{}, nil
	}
	if err != nil {
		return Report{}, fmt.Errorf("opening report: %w", err)
	}
	defer f.Close()

	rep, err := ParseReport(f)
	if err != nil {
		return Report{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return rep, nil
}
