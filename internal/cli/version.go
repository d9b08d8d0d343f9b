package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aryankumar/testfleet/internal/output"
	"github.com/aryankumar/testfleet/pkg/version"
)

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Display detailed version information for testfleet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(cmd)
		},
	}

	return cmd
}

func runVersion(cmd *cobra.Command) error {
	info := version.Get()
	out := cmd.OutOrStdout()

	outputFormat, _ := cmd.Flags().GetString("output")
	if outputFormat == "" {
		fmt.Fprintln(out, info.String())
		return nil
	}

	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}

	var data interface{} = info
	if format == output.FormatTable {
		data = map[string]interface{}{
			"Version":    info.Version,
			"Commit":     info.Commit,
			"Build Time": info.BuildTime,
			"Go Version": info.GoVersion,
			"Platform":   info.Platform,
		}
	}

	noColor, _ := cmd.Flags().GetBool("no-color")
	return output.NewFormatter(format, output.WithNoColor(noColor)).Format(out, data)
}
