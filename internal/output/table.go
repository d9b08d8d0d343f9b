package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// TableFormatter formats output as a borderless table
type TableFormatter struct {
	options *Options
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(opts *Options) *TableFormatter {
	if opts == nil {
		opts = &Options{}
	}
	return &TableFormatter{
		options: opts,
	}
}

// Format outputs a single data item as a table
func (f *TableFormatter) Format(w io.Writer, data interface{}) error {
	table := f.createTable(w)

	switch v := data.(type) {
	case map[string]interface{}:
		return f.formatMap(table, v)
	case []map[string]interface{}:
		return f.formatMapSlice(table, v)
	case []string:
		for _, s := range v {
			fmt.Fprintln(w, s)
		}
		return nil
	default:
		fmt.Fprintln(w, v)
		return nil
	}
}

// FormatReport outputs one row per binary followed by a summary line
func (f *TableFormatter) FormatReport(w io.Writer, report Report) error {
	if len(report.Verdicts) == 0 {
		fmt.Fprintln(w, "No test binaries")
		return nil
	}

	colors := NewColorScheme(w, f.options.NoColor)
	table := f.createTable(w)

	headers := []string{"BINARY", "RESULT", "DURATION"}
	if f.options.Wide {
		headers = append(headers, "STATUS", "DETAIL", "REPORT")
	}

	if !f.options.NoHeaders {
		if colors.Disabled {
			table.SetHeader(headers)
		} else {
			coloredHeaders := make([]string, len(headers))
			for i, h := range headers {
				coloredHeaders[i] = colors.Header(h)
			}
			table.SetHeader(coloredHeaders)
		}
	}

	for _, v := range report.Verdicts {
		row := []string{
			colors.Binary("%s", v.Name),
			colors.Category(v.Category)(v.Category.String()),
			colors.Duration(fmt.Sprintf("%.2fs", v.Duration.Seconds())),
		}
		if f.options.Wide {
			status := ""
			if v.Status != 0 || v.Category.Failed() {
				status = v.Status.String()
			}
			row = append(row, status, truncate(v.Detail, 50), v.ReportPath)
		}
		table.Append(row)
	}

	table.Render()

	f.printSummary(w, report, colors)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// formatMap formats a map as a two-column table (key-value pairs)
func (f *TableFormatter) formatMap(table *tablewriter.Table, data map[string]interface{}) error {
	if !f.options.NoHeaders {
		table.SetHeader([]string{"KEY", "VALUE"})
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		table.Append([]string{k, fmt.Sprintf("%v", data[k])})
	}

	table.Render()
	return nil
}

// formatMapSlice formats a slice of maps as a table. Columns are sorted by key.
func (f *TableFormatter) formatMapSlice(table *tablewriter.Table, data []map[string]interface{}) error {
	if len(data) == 0 {
		return nil
	}

	var keys []string
	for k := range data[0] {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if !f.options.NoHeaders {
		headers := make([]string, len(keys))
		for i, k := range keys {
			headers[i] = strings.ToUpper(k)
		}
		table.SetHeader(headers)
	}

	for _, item := range data {
		row := make([]string, 0, len(keys))
		for _, k := range keys {
			row = append(row, fmt.Sprintf("%v", item[k]))
		}
		table.Append(row)
	}

	table.Render()
	return nil
}

// createTable creates a new borderless, tab-padded table
func (f *TableFormatter) createTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)

	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)

	return table
}

// printSummary prints "N passed, M failed, total Xs"
func (f *TableFormatter) printSummary(w io.Writer, report Report, colors *ColorScheme) {
	summary := report.Summarize()

	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Summary: ")

	passedText := fmt.Sprintf("%d passed", summary.Passed)
	if summary.Passed > 0 {
		passedText = colors.Success(passedText)
	}

	failedText := fmt.Sprintf("%d failed", summary.Failed)
	if summary.Failed > 0 {
		failedText = colors.Error(failedText)
	}

	durationText := colors.Duration(fmt.Sprintf("total %.2fs", report.Duration.Seconds()))

	fmt.Fprintf(w, "%s, %s, %s", passedText, failedText, durationText)
	if report.State != "" && report.State != "finished" {
		fmt.Fprintf(w, " (%s)", colors.Warning(report.State))
	}
	fmt.Fprintln(w)
}
