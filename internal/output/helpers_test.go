package output

import (
	"time"

	"github.com/aryankumar/testfleet/internal/classify"
	"github.com/aryankumar/testfleet/internal/executor"
)

func sampleReport() Report {
	return Report{
		RunID:    "01HQ3Z5B6J8K9M0N1P2Q3R4S5T",
		State:    "finished",
		Started:  time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		Duration: 3500 * time.Millisecond,
		Workers:  2,
		Verdicts: []classify.Verdict{
			{Name: "a_test", Category: classify.Pass, Duration: 1200 * time.Millisecond},
			{
				Name:       "b_test",
				Category:   classify.MemLeak,
				Duration:   3 * time.Second,
				Detail:     "64 bytes definitely, 0 bytes indirectly lost",
				ReportPath: "valgrind_report/b_test.report",
			},
			{
				Name:     "c_test",
				Category: classify.Timeout,
				Duration: 900 * time.Millisecond,
				Status:   executor.SignalStatus(9, false),
				TimedOut: true,
			},
		},
	}
}
