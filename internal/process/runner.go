// Package process spawns test binaries, optionally under valgrind, and gives
// the scheduler a handle to snapshot and kill exactly the process it started.
package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"

	"github.com/aryankumar/testfleet/internal/executor"
)

// DefaultValgrindOptions are passed to valgrind unless Options overrides them.
var DefaultValgrindOptions = []string{
	"--num-callers=20",
	"--fullpath-after=.",
	"--read-inline-info=yes",
	"--leak-check=full",
	"--show-leak-kinds=definite,indirect",
	"--track-origins=yes",
	"--errors-for-leak-kinds=definite,indirect",
}

const (
	// OutputExt is the extension of a binary's captured stdout
	OutputExt = ".out"

	// ReportExt is the extension of a binary's captured stderr, where
	// valgrind writes its report
	ReportExt = ".report"

	defaultSnapshotTimeout = 2 * time.Minute
)

var (
	// ErrNoBinary is returned when a command is requested for an empty name.
	ErrNoBinary = errors.New("no binary given")

	// ErrOutsideDir is returned for a binary path that climbs out of Dir.
	ErrOutsideDir = errors.New("binary is outside the test directory")
)

// ValgrindConfig controls how a binary is wrapped.
type ValgrindConfig struct {
	Enabled bool

	// Path of the valgrind executable, "valgrind" when empty
	Path string

	// Repeat is passed as --gtest_repeat; values below 1 become 1
	Repeat int

	// Suppressions is used only when the file exists
	Suppressions string

	// ExtraArgs is split like a shell would split it and appended to the options
	ExtraArgs string

	// Options replaces DefaultValgrindOptions when non-empty
	Options []string
}

// Config describes where binaries live and where their side files go.
type Config struct {
	// Dir is the working directory binaries are started from
	Dir string

	// ReportDir receives <name>.report files
	ReportDir string

	// OutputDir receives <name>.out files; ReportDir when empty
	OutputDir string

	// CoreDir receives core snapshots of timed out tasks; ReportDir when empty
	CoreDir string

	// SnapshotTimeout bounds a single core snapshot
	SnapshotTimeout time.Duration

	Valgrind ValgrindConfig
}

// Command is a fully built invocation.
type Command struct {
	// Name identifies the binary in file names and reports
	Name string

	// Path is the executable that is started
	Path string

	// Args excludes Path
	Args []string
}

// String returns the command line as it would be typed.
func (c Command) String() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

// Paths are the side files written for one binary.
type Paths struct {
	Output string
	Report string
}

// Runner turns binary names into executor targets.
type Runner struct {
	cfg       Config
	extraArgs []string
	logger    *slog.Logger
}

// NewRunner validates cfg and creates the output directories.
func NewRunner(cfg Config, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Dir == "" {
		cfg.Dir = "."
	}
	if cfg.ReportDir == "" {
		return nil, fmt.Errorf("report directory must be set")
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = cfg.ReportDir
	}
	if cfg.CoreDir == "" {
		cfg.CoreDir = cfg.ReportDir
	}
	if cfg.SnapshotTimeout <= 0 {
		cfg.SnapshotTimeout = defaultSnapshotTimeout
	}
	if cfg.Valgrind.Path == "" {
		cfg.Valgrind.Path = "valgrind"
	}
	if cfg.Valgrind.Repeat < 1 {
		cfg.Valgrind.Repeat = 1
	}

	extra, err := shlex.Split(cfg.Valgrind.ExtraArgs)
	if err != nil {
		return nil, fmt.Errorf("parsing extra valgrind arguments: %w", err)
	}

	for _, dir := range []string{cfg.ReportDir, cfg.OutputDir, cfg.CoreDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	return &Runner{cfg: cfg, extraArgs: extra, logger: logger}, nil
}

// Name identifies a binary by its slash-separated path relative to Dir.
// Side files mirror that path below the report directory, so two distinct
// binaries never share a name or a file.
func Name(binary string) string {
	return strings.TrimLeft(filepath.ToSlash(filepath.Clean(binary)), "/")
}

// Command builds the invocation for a binary relative to Dir.
func (r *Runner) Command(binary string) (Command, error) {
	if strings.TrimSpace(binary) == "" {
		return Command{}, ErrNoBinary
	}
	if clean := filepath.ToSlash(filepath.Clean(binary)); clean == ".." || strings.HasPrefix(clean, "../") {
		return Command{}, fmt.Errorf("%w: %s", ErrOutsideDir, binary)
	}

	target := binary
	if !filepath.IsAbs(target) {
		target = "./" + filepath.ToSlash(filepath.Clean(binary))
	}
	testArgs := []string{target, "--gtest_repeat=" + strconv.Itoa(r.cfg.Valgrind.Repeat)}

	cmd := Command{Name: Name(binary)}
	if !r.cfg.Valgrind.Enabled {
		cmd.Path = testArgs[0]
		cmd.Args = testArgs[1:]
		return cmd, nil
	}

	opts := r.cfg.Valgrind.Options
	if len(opts) == 0 {
		opts = DefaultValgrindOptions
	}
	args := append([]string{}, opts...)
	if supp := r.cfg.Valgrind.Suppressions; supp != "" {
		if _, err := os.Stat(supp); err == nil {
			args = append(args, "--gen-suppressions=all", "--suppressions="+supp)
		} else {
			r.logger.Debug("suppressions file not found, skipping", "path", supp)
		}
	}
	args = append(args, r.extraArgs...)
	args = append(args, testArgs...)

	cmd.Path = r.cfg.Valgrind.Path
	cmd.Args = args
	return cmd, nil
}

// Paths returns the side files of the binary with the given Name.
func (r *Runner) Paths(name string) Paths {
	return Paths{
		Output: filepath.Join(r.cfg.OutputDir, filepath.FromSlash(name)+OutputExt),
		Report: filepath.Join(r.cfg.ReportDir, filepath.FromSlash(name)+ReportExt),
	}
}

// Target returns the executor target that runs args[0] as a binary.
// Stdout and stderr go straight to the side files. A nonzero exit is a
// status, not an error; only failing to start the process is.
func (r *Runner) Target() executor.Target {
	return func(ctx context.Context, args []string, attach executor.AttachFunc) (executor.Status, error) {
		if len(args) == 0 {
			return 0, ErrNoBinary
		}

		cmd, err := r.Command(args[0])
		if err != nil {
			return 0, err
		}
		paths := r.Paths(cmd.Name)
		for _, p := range []string{paths.Output, paths.Report} {
			if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
				return 0, fmt.Errorf("creating %s: %w", filepath.Dir(p), err)
			}
		}

		stdout, err := os.Create(paths.Output)
		if err != nil {
			return 0, fmt.Errorf("creating output file: %w", err)
		}
		defer stdout.Close()

		stderr, err := os.Create(paths.Report)
		if err != nil {
			return 0, fmt.Errorf("creating report file: %w", err)
		}
		defer stderr.Close()

		c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
		c.Dir = r.cfg.Dir
		c.Stdout = stdout
		c.Stderr = stderr

		r.logger.Debug("starting binary", "binary", cmd.Name, "command", cmd.String())
		if err := c.Start(); err != nil {
			return 0, fmt.Errorf("starting %s: %w", cmd.Name, err)
		}

		attach(r.newHandle(cmd.Name, c.Process.Pid))

		err = c.Wait()
		if c.ProcessState == nil {
			return 0, fmt.Errorf("waiting for %s: %w", cmd.Name, err)
		}

		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			r.logger.Debug("wait returned error", "binary", cmd.Name, "error", err)
		}
		return statusOf(c.ProcessState), nil
	}
}

func (r *Runner) newHandle(name string, pid int) *Handle {
	return &Handle{
		pid:             int32(pid),
		name:            name,
		coreDir:         r.cfg.CoreDir,
		snapshotTimeout: r.cfg.SnapshotTimeout,
		logger:          r.logger,
	}
}
