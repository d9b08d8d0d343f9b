package output_test

import (
	"os"
	"time"

	"github.com/aryankumar/testfleet/internal/classify"
	"github.com/aryankumar/testfleet/internal/output"
)

// Example_tableFormatter prints the end-of-run table
func Example_tableFormatter() {
	formatter := output.NewFormatter(output.FormatTable, output.WithNoColor(true))

	formatter.FormatReport(os.Stdout, output.Report{
		State:    "finished",
		Duration: 2 * time.Second,
		Verdicts: []classify.Verdict{
			{Name: "queue_test", Category: classify.Pass, Duration: 1500 * time.Millisecond},
			{Name: "codec_test", Category: classify.MemError, Duration: 2 * time.Second},
		},
	})
}

// Example_jsonFormatter prints a report for scripting
func Example_jsonFormatter() {
	formatter := output.NewFormatter(output.FormatJSON)

	formatter.FormatReport(os.Stdout, output.Report{
		RunID:    "01HQ3Z5B6J8K9M0N1P2Q3R4S5T",
		State:    "finished",
		Started:  time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		Duration: 1500 * time.Millisecond,
		Workers:  4,
		Verdicts: []classify.Verdict{
			{Name: "queue_test", Category: classify.Pass, Duration: 1500 * time.Millisecond},
		},
	})
	// Output:
	// {
	//   "runId": "01HQ3Z5B6J8K9M0N1P2Q3R4S5T",
	//   "state": "finished",
	//   "started": "2024-01-01T10:00:00Z",
	//   "duration": "1.5s",
	//   "workers": 4,
	//   "summary": {
	//     "total": 1,
	//     "passed": 1,
	//     "failed": 0,
	//     "byCategory": {
	//       "PASS": 1
	//     }
	//   },
	//   "results": [
	//     {
	//       "name": "queue_test",
	//       "result": "PASS",
	//       "duration": "1.5s",
	//       "status": "exit 0",
	//       "timedOut": false
	//     }
	//   ]
	// }
}
