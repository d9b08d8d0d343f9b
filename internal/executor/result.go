package executor

import (
	"fmt"
	"strings"
	"time"
)

// CountTimedOut returns the number of outcomes ended by the timeout supervisor
func CountTimedOut(outcomes []Outcome) int {
	count := 0
	for _, o := range outcomes {
		if o.TimedOut {
			count++
		}
	}
	return count
}

// CountErrored returns the number of outcomes whose target faulted
func CountErrored(outcomes []Outcome) int {
	count := 0
	for _, o := range outcomes {
		if o.Err != nil {
			count++
		}
	}
	return count
}

// CountNonZero returns the number of completed outcomes with an unsuccessful status
func CountNonZero(outcomes []Outcome) int {
	count := 0
	for _, o := range outcomes {
		if o.Cause() == CauseCompleted && o.Status.NonZero() {
			count++
		}
	}
	return count
}

// FilterTimedOut returns only the timed out outcomes
func FilterTimedOut(outcomes []Outcome) []Outcome {
	filtered := make([]Outcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o.TimedOut {
			filtered = append(filtered, o)
		}
	}
	return filtered
}

// FilterErrored returns only the outcomes whose target faulted
func FilterErrored(outcomes []Outcome) []Outcome {
	filtered := make([]Outcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err != nil {
			filtered = append(filtered, o)
		}
	}
	return filtered
}

// AverageDuration calculates the average duration of all outcomes
func AverageDuration(outcomes []Outcome) time.Duration {
	if len(outcomes) == 0 {
		return 0
	}

	var total time.Duration
	for _, o := range outcomes {
		total += o.Duration()
	}

	return total / time.Duration(len(outcomes))
}

// MaxDuration returns the maximum duration among all outcomes
func MaxDuration(outcomes []Outcome) time.Duration {
	if len(outcomes) == 0 {
		return 0
	}

	max := outcomes[0].Duration()
	for _, o := range outcomes {
		if d := o.Duration(); d > max {
			max = d
		}
	}
	return max
}

// MinDuration returns the minimum duration among all outcomes
func MinDuration(outcomes []Outcome) time.Duration {
	if len(outcomes) == 0 {
		return 0
	}

	min := outcomes[0].Duration()
	for _, o := range outcomes {
		if d := o.Duration(); d < min {
			min = d
		}
	}
	return min
}

// Summary provides a summary of run outcomes
type Summary struct {
	Total       int
	Completed   int
	TimedOut    int
	Errored     int
	NonZero     int
	AvgDuration time.Duration
	MaxDuration time.Duration
	MinDuration time.Duration
}

// Summarize creates a summary of the outcomes
func Summarize(outcomes []Outcome) Summary {
	timedOut := CountTimedOut(outcomes)
	errored := 0
	for _, o := range outcomes {
		if o.Cause() == CauseError {
			errored++
		}
	}

	return Summary{
		Total:       len(outcomes),
		Completed:   len(outcomes) - timedOut - errored,
		TimedOut:    timedOut,
		Errored:     errored,
		NonZero:     CountNonZero(outcomes),
		AvgDuration: AverageDuration(outcomes),
		MaxDuration: MaxDuration(outcomes),
		MinDuration: MinDuration(outcomes),
	}
}

// String returns a human-readable string representation of the summary
func (s Summary) String() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Total: %d, ", s.Total))
	sb.WriteString(fmt.Sprintf("Completed: %d, ", s.Completed))
	sb.WriteString(fmt.Sprintf("Timed out: %d, ", s.TimedOut))
	sb.WriteString(fmt.Sprintf("Errored: %d", s.Errored))

	if s.Total > 0 {
		sb.WriteString(fmt.Sprintf(", Avg: %s", s.AvgDuration.Round(time.Millisecond)))
		sb.WriteString(fmt.Sprintf(", Max: %s", s.MaxDuration.Round(time.Millisecond)))
		sb.WriteString(fmt.Sprintf(", Min: %s", s.MinDuration.Round(time.Millisecond)))
	}

	return sb.String()
}
