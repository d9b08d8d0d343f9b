package classify_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aryankumar/testfleet/internal/classify"
	"github.com/aryankumar/testfleet/internal/executor"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func outcome(status executor.Status) *executor.Outcome {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &executor.Outcome{TaskID: "t", Status: status, Start: start, End: start.Add(2 * time.Second)}
}

func timedOut() *executor.Outcome {
	o := outcome(executor.SignalStatus(9, false))
	o.TimedOut = true
	return o
}

func errored() *executor.Outcome {
	o := outcome(0)
	o.Err = &executor.TaskError{TaskID: "t", Err: errors.New("exec format error")}
	return o
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	if body == "" {
		return filepath.Join(dir, name)
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestClassify(t *testing.T) {
	t.Parallel()

	const failedOutput = "[  FAILED  ] Foo.Bar (1 ms)\n"
	memError := strings.Replace(threadErrorReport, "%s", "decode_frame", 1)
	ignoredError := strings.Replace(threadErrorReport, "%s", "append_second", 1)

	var testCases = []struct {
		scenario string
		outcome  *executor.Outcome
		output   string
		report   string
		then     classify.Category
	}{
		{scenario: "never finished", outcome: nil, then: classify.Interrupted},
		{scenario: "sigint", outcome: outcome(executor.SignalStatus(2, false)), output: failedOutput, then: classify.Interrupted},
		{scenario: "gtest failure beats timeout", outcome: timedOut(), output: failedOutput, then: classify.Fail},
		{scenario: "gtest failure beats crash", outcome: outcome(executor.ExitStatus(139)), output: failedOutput, then: classify.Fail},
		{scenario: "timeout skips memory checks", outcome: timedOut(), report: memError, then: classify.Timeout},
		{scenario: "segv exit code", outcome: outcome(executor.ExitStatus(139)), then: classify.CoreDump},
		{scenario: "segv signal", outcome: outcome(executor.SignalStatus(11, true)), then: classify.CoreDump},
		{scenario: "abort exit code", outcome: outcome(executor.ExitStatus(134)), then: classify.Abort},
		{scenario: "abort signal", outcome: outcome(executor.SignalStatus(6, false)), then: classify.Abort},
		{scenario: "nonzero exit", outcome: outcome(executor.ExitStatus(1)), report: leakyReport, then: classify.NonZeroExit},
		{scenario: "execution error", outcome: errored(), then: classify.NonZeroExit},
		{scenario: "memory error", outcome: outcome(0), report: memError, then: classify.MemError},
		{scenario: "ignored thread frame", outcome: outcome(0), report: ignoredError, then: classify.Pass},
		{scenario: "memory error beats leak", outcome: outcome(0), report: memError + leakyReport, then: classify.MemError},
		{scenario: "leak", outcome: outcome(0), report: leakyReport, then: classify.MemLeak},
		{scenario: "clean", outcome: outcome(0), report: cleanReport, then: classify.Pass},
		{scenario: "no side files", outcome: outcome(0), then: classify.Pass},
	}

	c := classify.New(discardLogger())
	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()

			v, err := c.Classify(classify.Input{
				Name:       "foo_test",
				Outcome:    tc.outcome,
				OutputPath: writeFile(t, dir, "foo_test.out", tc.output),
				ReportPath: writeFile(t, dir, "foo_test.report", tc.report),
			})
			require.NoError(t, err)
			require.Equal(t, tc.then, v.Category)
			require.Equal(t, "foo_test", v.Name)
		})
	}
}

func TestClassifyCustomIgnoredFrames(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	report := writeFile(t, dir, "x.report", strings.Replace(threadErrorReport, "%s", "append_second", 1))

	c := classify.New(discardLogger(), classify.WithIgnoredFrames(nil))
	v, err := c.Classify(classify.Input{Name: "x", Outcome: outcome(0), ReportPath: report})
	require.NoError(t, err)
	require.Equal(t, classify.MemError, v.Category)
	require.Equal(t, "3 errors", v.Detail)
}

func TestClassifyAll(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	inputs := []classify.Input{
		{Name: "a", Outcome: outcome(0)},
		{Name: "b", Outcome: outcome(executor.ExitStatus(1))},
		{Name: "c", Outcome: timedOut()},
		{Name: "d", Outcome: outcome(0), ReportPath: writeFile(t, dir, "d.report", leakyReport)},
		{Name: "e"},
	}

	c := classify.New(discardLogger(), classify.WithLimit(2))
	verdicts, err := c.ClassifyAll(context.Background(), inputs)
	require.NoError(t, err)
	require.Len(t, verdicts, len(inputs))

	want := []classify.Category{classify.Pass, classify.NonZeroExit, classify.Timeout, classify.MemLeak, classify.Interrupted}
	for i, v := range verdicts {
		require.Equal(t, inputs[i].Name, v.Name)
		require.Equal(t, want[i], v.Category)
	}

	require.False(t, classify.Passed(verdicts))
	require.True(t, classify.Passed(verdicts[:1]))
	require.Equal(t, 1, classify.Count(verdicts)[classify.MemLeak])
	require.Equal(t, 2*time.Second, verdicts[0].Duration)
}

func TestClassifyAllCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := classify.New(discardLogger()).ClassifyAll(ctx, []classify.Input{{Name: "a", Outcome: outcome(0)}})
	require.ErrorIs(t, err, context.Canceled)
}
