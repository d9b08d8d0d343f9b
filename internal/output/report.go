package output

import (
	"time"

	"github.com/aryankumar/testfleet/internal/classify"
)

// Report is everything printed at the end of a run.
type Report struct {
	RunID    string
	State    string
	Started  time.Time
	Duration time.Duration
	Workers  int
	Verdicts []classify.Verdict
}

// Summary counts verdicts by outcome.
type Summary struct {
	Total  int                       `json:"total" yaml:"total"`
	Passed int                       `json:"passed" yaml:"passed"`
	Failed int                       `json:"failed" yaml:"failed"`
	ByKind map[classify.Category]int `json:"byCategory" yaml:"byCategory"`
}

// Summarize counts the verdicts of a report.
func (r Report) Summarize() Summary {
	counts := classify.Count(r.Verdicts)
	return Summary{
		Total:  len(r.Verdicts),
		Passed: counts[classify.Pass],
		Failed: len(r.Verdicts) - counts[classify.Pass],
		ByKind: counts,
	}
}

// reportDoc is the serialized shape shared by the JSON and YAML formatters.
type reportDoc struct {
	RunID    string       `json:"runId" yaml:"runId"`
	State    string       `json:"state" yaml:"state"`
	Started  time.Time    `json:"started" yaml:"started"`
	Duration string       `json:"duration" yaml:"duration"`
	Workers  int          `json:"workers" yaml:"workers"`
	Summary  Summary      `json:"summary" yaml:"summary"`
	Results  []verdictDoc `json:"results" yaml:"results"`
}

type verdictDoc struct {
	Name     string `json:"name" yaml:"name"`
	Result   string `json:"result" yaml:"result"`
	Duration string `json:"duration" yaml:"duration"`
	Status   string `json:"status" yaml:"status"`
	TimedOut bool   `json:"timedOut" yaml:"timedOut"`
	Detail   string `json:"detail,omitempty" yaml:"detail,omitempty"`
	Report   string `json:"report,omitempty" yaml:"report,omitempty"`
}

func newReportDoc(r Report) reportDoc {
	doc := reportDoc{
		RunID:    r.RunID,
		State:    r.State,
		Started:  r.Started.UTC(),
		Duration: r.Duration.Round(time.Millisecond).String(),
		Workers:  r.Workers,
		Summary:  r.Summarize(),
		Results:  make([]verdictDoc, len(r.Verdicts)),
	}
	for i, v := range r.Verdicts {
		doc.Results[i] = verdictDoc{
			Name:     v.Name,
			Result:   v.Category.String(),
			Duration: v.Duration.Round(time.Millisecond).String(),
			Status:   v.Status.String(),
			TimedOut: v.TimedOut,
			Detail:   v.Detail,
			Report:   v.ReportPath,
		}
	}
	return doc
}
