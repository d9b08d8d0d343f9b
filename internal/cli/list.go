package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aryankumar/testfleet/internal/output"
	"github.com/aryankumar/testfleet/internal/util"
)

// newListCmd creates the list command
func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [binaries...]",
		Short: "List the binaries a run would execute",
		Long: `List every test binary selected by discovery, or the binaries given as
arguments, together with the command line run would use for it.`,
		Aliases: []string{"ls"},
		ValidArgsFunction: completeBinaries,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			binaries, err := selectBinaries(cfg, args)
			if err != nil {
				return err
			}

			runner, err := newRunner(cfg, slog.Default())
			if err != nil {
				return err
			}

			var errs util.MultiError
			rows := make([]map[string]interface{}, 0, len(binaries))
			for _, b := range binaries {
				command, err := runner.Command(b)
				if err != nil {
					errs.Add(util.WrapErrorf(err, "building command for %s", b))
					continue
				}
				rows = append(rows, map[string]interface{}{
					"binary":  command.Name,
					"command": command.String(),
					"report":  runner.Paths(command.Name).Report,
				})
			}

			if err := errs.ErrorOrNil(); err != nil {
				return err
			}

			format, err := output.ParseFormat(cfg.Report.Format)
			if err != nil {
				return err
			}
			formatter := output.NewFormatter(format, output.WithNoColor(cfg.Report.NoColor))
			if err := formatter.Format(cmd.OutOrStdout(), rows); err != nil {
				return fmt.Errorf("writing list: %w", err)
			}
			return nil
		},
	}

	addDiscoveryFlags(cmd)
	addValgrindFlags(cmd)
	cmd.Flags().String("report-dir", "", "directory for .out and .report files (default valgrind_report)")

	return cmd
}
