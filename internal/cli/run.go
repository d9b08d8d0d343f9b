package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/oklog/ulid/v2"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/aryankumar/testfleet/internal/classify"
	"github.com/aryankumar/testfleet/internal/config"
	"github.com/aryankumar/testfleet/internal/discovery"
	"github.com/aryankumar/testfleet/internal/executor"
	"github.com/aryankumar/testfleet/internal/metrics"
	"github.com/aryankumar/testfleet/internal/output"
	"github.com/aryankumar/testfleet/internal/process"
	"github.com/aryankumar/testfleet/internal/util"
)

// newRunCmd creates the run command
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [binaries...]",
		Short: "Run test binaries in parallel",
		Long: `Run every discovered test binary, or the binaries given as arguments, on a
bounded worker pool. Each binary writes its stdout to <report-dir>/<name>.out
and valgrind's output to <report-dir>/<name>.report.

The command exits nonzero unless every binary passes.`,
		Example: `  # Run every *_test binary in the current directory
  testfleet run

  # Run two binaries with four workers and a 5 minute timeout
  testfleet run -j 4 -t 5m foo_test bar_test

  # Run without valgrind and print JSON
  testfleet run --valgrind=false -o json

  # Expose Prometheus metrics while running
  testfleet run --metrics-listen :9090`,
		ValidArgsFunction: completeBinaries,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runTests(cmd.Context(), cfg, args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	addDiscoveryFlags(cmd)
	addValgrindFlags(cmd)
	cmd.Flags().IntP("workers", "j", 0, "initial number of workers (default one per CPU, capped at the binary count)")
	cmd.Flags().Int("added-workers", 0, "workers added once the run exceeds --scale-after (default 2, 0 disables)")
	cmd.Flags().Duration("scale-after", 0, "run time after which workers are added (default 5m)")
	cmd.Flags().DurationP("timeout", "t", 0, "kill a binary after running this long (default 15m)")
	cmd.Flags().String("report-dir", "", "directory for .out and .report files (default valgrind_report)")
	cmd.Flags().Bool("cores", true, "snapshot a hung binary with gcore before killing it")
	cmd.Flags().String("metrics-listen", "", "serve Prometheus metrics on this address during the run")
	cmd.Flags().Bool("wide", false, "show status, detail and report columns")

	return cmd
}

func addDiscoveryFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("dir", "d", "", "directory holding the test binaries (default .)")
	cmd.Flags().StringSlice("pattern", nil, "glob selecting test binaries (default *_test)")
}

func addValgrindFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("valgrind", true, "wrap binaries in valgrind memcheck")
	cmd.Flags().Int("repeat", 0, "value passed as --gtest_repeat (default 3)")
	cmd.Flags().String("suppressions", "", "valgrind suppressions file, used when it exists")
	cmd.Flags().String("valgrind-args", "", "extra valgrind arguments, split like a shell")
}

// selectBinaries resolves explicit arguments or falls back to discovery
func selectBinaries(cfg *config.Config, args []string) ([]string, error) {
	var (
		binaries []string
		err      error
	)
	if len(args) > 0 {
		binaries, err = discovery.Resolve(cfg.Discovery.Dir, args)
	} else {
		binaries, err = discovery.Find(cfg.Discovery.Dir, cfg.Discovery.Patterns)
	}
	if err != nil {
		return nil, err
	}
	if len(binaries) == 0 {
		return nil, fmt.Errorf("%w in %s matching %v", util.ErrNoTests, cfg.Discovery.Dir, cfg.Discovery.Patterns)
	}
	return binaries, nil
}

func newRunner(cfg *config.Config, logger *slog.Logger) (*process.Runner, error) {
	return process.NewRunner(process.Config{
		Dir:       cfg.Discovery.Dir,
		ReportDir: cfg.Report.Dir,
		CoreDir:   cfg.Cores.Dir,
		Valgrind: process.ValgrindConfig{
			Enabled:      cfg.Valgrind.Enabled,
			Path:         cfg.Valgrind.Path,
			Repeat:       cfg.Valgrind.Repeat,
			Suppressions: cfg.Valgrind.Suppressions,
			ExtraArgs:    cfg.Valgrind.ExtraArgs,
			Options:      cfg.Valgrind.Options,
		},
	}, logger)
}

// schedulerConfig translates the file configuration for a run of n binaries
func schedulerConfig(cfg *config.Config, n int) executor.Config {
	workers := cfg.Pool.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}

	return executor.Config{
		Workers:          workers,
		WorkerTimeout:    cfg.Timeouts.Worker,
		PollInterval:     cfg.Timeouts.Poll,
		ScanInterval:     cfg.Timeouts.Scan,
		ScaleAfter:       cfg.Pool.ScaleAfter,
		ScaleIncrement:   cfg.Pool.AddedWorkers,
		QueuePollTimeout: cfg.Timeouts.QueuePoll,
		StopTimeout:      cfg.Timeouts.Stop,
		CaptureCores:     cfg.Cores.Enabled,
	}
}

func runTests(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) error {
	runID := ulid.Make().String()
	logger := slog.Default().With("run", runID)

	binaries, err := selectBinaries(cfg, args)
	if err != nil {
		return err
	}

	runner, err := newRunner(cfg, logger)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(cfg.Report.Format)
	if err != nil {
		return err
	}

	// Progress lines would corrupt machine-readable output
	progress := stdout
	if format != output.FormatTable {
		progress = stderr
	}

	var opts []executor.Option
	if cfg.Metrics.Listen != "" {
		stop, observer, err := startMetrics(cfg.Metrics.Listen, logger)
		if err != nil {
			return err
		}
		defer stop()
		opts = append(opts, executor.WithObserver(observer))
	}

	sched := executor.NewScheduler(schedulerConfig(cfg, len(binaries)), logger, opts...)

	inputs := make([]classify.Input, len(binaries))
	target := runner.Target()
	for i, binary := range binaries {
		command, err := runner.Command(binary)
		if err != nil {
			return err
		}
		paths := runner.Paths(command.Name)
		inputs[i] = classify.Input{
			Name:       command.Name,
			OutputPath: paths.Output,
			ReportPath: paths.Report,
		}

		task := &executor.Task{
			ID:     command.Name,
			Args:   []string{binary},
			Target: target,
			Callback: func(t *executor.Task, o executor.Outcome) {
				fmt.Fprintf(progress, "Done %s status: %d\n", t.ID, int(o.Status))
			},
		}
		if err := sched.Submit(task); err != nil {
			return util.WrapErrorf(err, "submitting %s", binary)
		}
		logger.Debug("queued binary", "binary", command.Name, "command", command.String())
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w before any binary started: %w", util.ErrCancelled, err)
	}

	started := time.Now()
	state, err := sched.Run(ctx)
	if err != nil {
		return err
	}

	outcomes := sched.Outcomes()
	logger.Info("run summary", "state", state.String(), "summary", executor.Summarize(outcomes).String())
	for _, o := range executor.FilterTimedOut(outcomes) {
		logger.Warn("binary timed out", "binary", o.TaskID, "duration", o.Duration())
	}
	for _, o := range executor.FilterErrored(outcomes) {
		logger.Error("binary could not be run", "binary", o.TaskID, "error", o.Err)
	}

	for i := range inputs {
		if o, ok := sched.Outcome(inputs[i].Name); ok {
			inputs[i].Outcome = &o
		}
	}

	classifier := classify.New(logger, classify.WithIgnoredFrames(cfg.Valgrind.IgnoreFrames))
	verdicts, err := classifier.ClassifyAll(context.WithoutCancel(ctx), inputs)
	if err != nil {
		return util.WrapErrorf(err, "classifying results")
	}

	report := output.Report{
		RunID:    runID,
		State:    state.String(),
		Started:  started,
		Duration: sched.Elapsed(),
		Workers:  sched.PoolSize(),
		Verdicts: verdicts,
	}
	formatter := output.NewFormatter(format,
		output.WithNoColor(cfg.Report.NoColor),
		output.WithWide(cfg.Report.Wide))
	if err := formatter.FormatReport(stdout, report); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	return runResult(report, len(binaries)-len(outcomes), sched.StopErr())
}

// runResult folds the run state, the verdicts and a failed worker stop into
// the command's error.
func runResult(report output.Report, unfinished int, stopErr error) error {
	var errs util.MultiError
	switch {
	case report.State == executor.StateInterrupted.String():
		errs.Add(fmt.Errorf("%w: %d of %d binaries unfinished", util.ErrInterrupted, unfinished, len(report.Verdicts)))
	case !classify.Passed(report.Verdicts):
		summary := report.Summarize()
		errs.Add(fmt.Errorf("%w: %d of %d binaries", util.ErrTestsFailed, summary.Failed, summary.Total))
	}
	if stopErr != nil {
		errs.Add(fmt.Errorf("%w: %w", util.ErrTimeout, stopErr))
	}
	return util.CombineErrors(errs.Errors...)
}

// startMetrics serves a fresh registry for the duration of the run
func startMetrics(addr string, logger *slog.Logger) (func(), executor.Observer, error) {
	reg := prom.NewRegistry()
	collector, err := metrics.NewCollector(reg)
	if err != nil {
		return nil, nil, fmt.Errorf("registering metrics: %w", err)
	}

	srv := metrics.NewServer(addr, reg, logger)
	if err := srv.Start(); err != nil {
		return nil, nil, fmt.Errorf("starting metrics server: %w", err)
	}
	logger.Info("serving metrics", "addr", srv.Addr())

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown failed", "error", err)
		}
	}
	return stop, collector, nil
}
