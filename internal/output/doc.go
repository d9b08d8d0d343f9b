// Package output renders run reports and simple listings.
//
// The package supports three formats (table, JSON, YAML) behind the
// Formatter interface. FormatReport prints the verdict of every test binary;
// Format prints arbitrary data such as the list of discovered binaries.
//
// # Basic Usage
//
//	formatter := output.NewFormatter(output.FormatTable)
//	formatter.FormatReport(os.Stdout, output.Report{
//	    RunID:    runID,
//	    State:    "finished",
//	    Verdicts: verdicts,
//	})
//
// # Options
//
//	formatter := output.NewFormatter(
//	    output.FormatTable,
//	    output.WithNoColor(true),
//	    output.WithWide(true),
//	)
//
// # Formatters
//
// Table Formatter:
//   - Borderless tables with tab-separated columns
//   - One row per binary with result and duration
//   - Wide mode adds exit status, detail and report path
//   - Summary line "N passed, M failed, total Xs"
//
// JSON and YAML Formatters:
//   - Run metadata, per-category counts and one entry per binary
//   - Durations rendered as Go duration strings
//
// # Color Support
//
// Colors are enabled for TTY outputs only and can be disabled with
// WithNoColor(true). PASS is green, TIMEOUT and INTERRUPTED yellow, every
// other category red.
package output
