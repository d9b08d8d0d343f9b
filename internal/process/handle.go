package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

var (
	// ErrProcessGone is returned by Kill when the process already exited
	ErrProcessGone = errors.New("process already exited")

	// ErrNoSnapshotTool is returned by Snapshot when gcore is not installed
	ErrNoSnapshotTool = errors.New("gcore not found in PATH")
)

// snapshotTool is looked up on PATH for every snapshot.
var snapshotTool = "gcore"

// Handle addresses one spawned process by pid. It never matches by name, so
// concurrent runs of the same binary cannot kill each other.
type Handle struct {
	pid             int32
	name            string
	coreDir         string
	snapshotTimeout time.Duration
	logger          *slog.Logger
}

// PID returns the process id.
func (h *Handle) PID() int {
	return int(h.pid)
}

// CorePath returns the prefix gcore writes to; gcore appends ".<pid>".
// Nested binaries get nested core files, like their reports.
func (h *Handle) CorePath() string {
	dir, base := path.Split(h.name)
	return filepath.Join(h.coreDir, filepath.FromSlash(dir), "core_"+base)
}

// Snapshot writes a core file of the running process with gcore.
func (h *Handle) Snapshot(ctx context.Context) error {
	tool, err := exec.LookPath(snapshotTool)
	if err != nil {
		return ErrNoSnapshotTool
	}

	if err := os.MkdirAll(filepath.Dir(h.CorePath()), 0o755); err != nil {
		return fmt.Errorf("creating core directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, h.snapshotTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, tool, "-o", h.CorePath(), strconv.Itoa(int(h.pid))).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %d: %w: %s", snapshotTool, h.pid, err, strings.TrimSpace(string(out)))
	}

	h.logger.Info("core snapshot written", "binary", h.name, "pid", h.pid, "path", h.CorePath())
	return nil
}

// Kill forcefully terminates the process and every descendant, children first.
func (h *Handle) Kill(ctx context.Context) error {
	p, err := process.NewProcessWithContext(ctx, h.pid)
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return ErrProcessGone
		}
		return fmt.Errorf("looking up pid %d: %w", h.pid, err)
	}

	killed, err := killTree(ctx, p)
	if err != nil {
		if running, rerr := p.IsRunningWithContext(ctx); rerr == nil && !running {
			if killed > 0 {
				// The parent exited on its own once its children died.
				h.logger.Debug("process exited after its children were killed", "binary", h.name, "pid", h.pid, "killed", killed)
				return nil
			}
			return ErrProcessGone
		}
		return fmt.Errorf("killing pid %d: %w", h.pid, err)
	}

	h.logger.Debug("process killed", "binary", h.name, "pid", h.pid, "killed", killed)
	return nil
}

// killTree kills p and its descendants, children first, and returns how many
// processes it signalled.
func killTree(ctx context.Context, p *process.Process) (int, error) {
	// ErrorNoChildren or a child exiting under us; either way there is
	// nothing more to walk.
	children, _ := p.ChildrenWithContext(ctx)

	var (
		killed int
		errs   []error
	)
	for _, child := range children {
		n, err := killTree(ctx, child)
		killed += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	if err := p.KillWithContext(ctx); err != nil {
		errs = append(errs, err)
	} else {
		killed++
	}
	return killed, errors.Join(errs...)
}
