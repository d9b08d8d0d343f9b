package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aryankumar/testfleet/internal/config"
)

var (
	cfgFile string
)

// flagKeys maps command-line flags onto configuration keys. A flag only
// overrides the file when it is set explicitly.
var flagKeys = map[string]string{
	"output":         "report.format",
	"no-color":       "report.noColor",
	"wide":           "report.wide",
	"report-dir":     "report.dir",
	"dir":            "discovery.dir",
	"pattern":        "discovery.patterns",
	"workers":        "pool.workers",
	"added-workers":  "pool.addedWorkers",
	"scale-after":    "pool.scaleAfter",
	"timeout":        "timeouts.worker",
	"valgrind":       "valgrind.enabled",
	"repeat":         "valgrind.repeat",
	"suppressions":   "valgrind.suppressions",
	"valgrind-args":  "valgrind.extraArgs",
	"cores":          "cores.enabled",
	"metrics-listen": "metrics.listen",
}

// Execute runs the root command with the provided context
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

// newRootCmd creates the root command
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "testfleet",
		Short: "testfleet - run gtest binaries in parallel under valgrind",
		Long: `testfleet runs a directory of gtest binaries in parallel, each wrapped in
valgrind memcheck, and classifies every binary as passed, failed, timed out,
crashed, aborted, leaking or reporting memory errors.

Hung binaries are killed after a timeout, optionally after a core snapshot.
The pool grows once when a run takes longer than expected.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(cmd)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./testfleet.yaml, then $HOME/.testfleet.yaml)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output with debug logging")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

// loadConfig reads the configuration with the command's flags layered on top
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	mgr := config.NewManager(cfgFile)
	for name, key := range flagKeys {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			continue
		}
		if err := mgr.BindFlag(key, flag); err != nil {
			return nil, fmt.Errorf("binding --%s: %w", name, err)
		}
	}

	cfg, err := mgr.Load()
	if err != nil {
		return nil, err
	}
	if used := mgr.ConfigFileUsed(); used != "" {
		slog.Debug("loaded configuration", "file", used)
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging configures structured logging with slog
func setupLogging(cmd *cobra.Command) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	noColor, _ := cmd.Flags().GetBool("no-color")

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	if noColor {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	if verbose {
		slog.Debug("verbose logging enabled")
	}
}
