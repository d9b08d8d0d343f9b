package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aryankumar/testfleet/internal/classify"
	"github.com/aryankumar/testfleet/internal/executor"
	"github.com/aryankumar/testfleet/internal/output"
	"github.com/aryankumar/testfleet/internal/util"
)

const (
	passScript = "#!/bin/sh\necho '[ RUN      ] Suite.Case'\necho '[       OK ] Suite.Case'\nexit 0\n"
	failScript = "#!/bin/sh\necho '[  FAILED  ] Suite.Case'\nexit 1\n"
	hangScript = "#!/bin/sh\nexec sleep 30\n"
)

// fixture is a directory of fake test binaries plus a fast-ticking config file.
type fixture struct {
	dir        string
	reportDir  string
	configPath string
}

func newFixture(t *testing.T, binaries map[string]string) fixture {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	root := t.TempDir()
	f := fixture{
		dir:        filepath.Join(root, "bin"),
		reportDir:  filepath.Join(root, "report"),
		configPath: filepath.Join(root, "testfleet.yaml"),
	}
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		t.Fatal(err)
	}
	for name, script := range binaries {
		if err := os.MkdirAll(filepath.Dir(filepath.Join(f.dir, name)), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(f.dir, name), []byte(script), 0755); err != nil {
			t.Fatal(err)
		}
	}

	cfg := `pool:
  workers: 2
  addedWorkers: 0
timeouts:
  poll: 10ms
  scan: 10ms
  queuePoll: 50ms
  stop: 2s
valgrind:
  enabled: false
  repeat: 1
discovery:
  dir: ` + f.dir + `
report:
  dir: ` + f.reportDir + `
  noColor: true
cores:
  enabled: false
`
	if err := os.WriteFile(f.configPath, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	return f
}

func (f fixture) execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return f.executeContext(t, context.Background(), args...)
}

func (f fixture) executeContext(t *testing.T, ctx context.Context, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(append(args, "--config", f.configPath))

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func TestRunAllPass(t *testing.T) {
	f := newFixture(t, map[string]string{"alpha_test": passScript, "beta_test": passScript})

	stdout, _, err := f.execute(t, "run")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"Done alpha_test status: 0",
		"Done beta_test status: 0",
		"Summary: 2 passed, 0 failed",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, stdout)
		}
	}

	if _, err := os.Stat(filepath.Join(f.reportDir, "alpha_test.out")); err != nil {
		t.Errorf("expected output file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.reportDir, "alpha_test.report")); err != nil {
		t.Errorf("expected report file: %v", err)
	}
}

func TestRunFailureJSON(t *testing.T) {
	f := newFixture(t, map[string]string{"good_test": passScript, "bad_test": failScript})

	stdout, stderr, err := f.execute(t, "run", "-o", "json")
	if !errors.Is(err, util.ErrTestsFailed) {
		t.Fatalf("expected ErrTestsFailed, got %v", err)
	}
	if util.ExitCode(err) != util.ExitFailed {
		t.Errorf("expected exit code %d, got %d", util.ExitFailed, util.ExitCode(err))
	}

	// Progress moves to stderr so stdout stays valid JSON
	if !strings.Contains(stderr, "Done bad_test status: 256") {
		t.Errorf("expected raw wait status on stderr, got:\n%s", stderr)
	}

	var doc struct {
		State   string `json:"state"`
		Summary struct {
			Passed int `json:"passed"`
			Failed int `json:"failed"`
		} `json:"summary"`
		Results []struct {
			Name   string `json:"name"`
			Result string `json:"result"`
		} `json:"results"`
	}
	if err := json.Unmarshal([]byte(stdout), &doc); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout)
	}

	if doc.State != "finished" {
		t.Errorf("expected state finished, got %q", doc.State)
	}
	if doc.Summary.Passed != 1 || doc.Summary.Failed != 1 {
		t.Errorf("unexpected summary %+v", doc.Summary)
	}
	results := map[string]string{}
	for _, r := range doc.Results {
		results[r.Name] = r.Result
	}
	if results["bad_test"] != "FAIL" || results["good_test"] != "PASS" {
		t.Errorf("unexpected results %v", results)
	}
}

func TestRunTimeout(t *testing.T) {
	f := newFixture(t, map[string]string{"hang_test": hangScript})

	stdout, _, err := f.execute(t, "run", "-t", "200ms", "--wide")
	if !errors.Is(err, util.ErrTestsFailed) {
		t.Fatalf("expected ErrTestsFailed, got %v", err)
	}
	if !strings.Contains(stdout, "TIMEOUT") {
		t.Errorf("expected TIMEOUT in output, got:\n%s", stdout)
	}
}

func TestRunInterrupted(t *testing.T) {
	f := newFixture(t, map[string]string{"quick_test": passScript, "hang_test": hangScript, "stuck_test": hangScript})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		time.Sleep(500 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	stdout, _, err := f.executeContext(t, ctx, "run", "-o", "json")
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("interrupted run took %v", elapsed)
	}

	if !errors.Is(err, util.ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", err)
	}
	if util.ExitCode(err) != util.ExitFailed {
		t.Errorf("expected exit code %d, got %d", util.ExitFailed, util.ExitCode(err))
	}

	var doc struct {
		State   string `json:"state"`
		Results []struct {
			Name   string `json:"name"`
			Result string `json:"result"`
		} `json:"results"`
	}
	if err := json.Unmarshal([]byte(stdout), &doc); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout)
	}
	if doc.State != "interrupted" {
		t.Errorf("expected state interrupted, got %q", doc.State)
	}

	results := map[string]string{}
	for _, r := range doc.Results {
		results[r.Name] = r.Result
	}
	if len(results) != 3 {
		t.Fatalf("expected a verdict per binary, got %v", results)
	}
	for _, name := range []string{"hang_test", "stuck_test"} {
		if results[name] != "INTERRUPTED" {
			t.Errorf("%s: expected INTERRUPTED, got %q", name, results[name])
		}
	}
}

func TestRunCancelledBeforeStart(t *testing.T) {
	f := newFixture(t, map[string]string{"alpha_test": passScript})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stdout, _, err := f.executeContext(t, ctx, "run")
	if !errors.Is(err, util.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected wrapped context error, got %v", err)
	}
	if strings.Contains(stdout, "Summary") {
		t.Errorf("expected no report, got:\n%s", stdout)
	}
}

func TestRunNestedBinaries(t *testing.T) {
	f := newFixture(t, map[string]string{"sub/a_test": passScript, "sub_a_test": failScript})

	stdout, _, err := f.execute(t, "run", "sub/a_test", "sub_a_test")
	if !errors.Is(err, util.ErrTestsFailed) {
		t.Fatalf("expected ErrTestsFailed, got %v", err)
	}
	for _, want := range []string{"Done sub/a_test status: 0", "Done sub_a_test status: 256"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, stdout)
		}
	}
	for _, name := range []string{filepath.Join("sub", "a_test.out"), "sub_a_test.out"} {
		if _, err := os.Stat(filepath.Join(f.reportDir, name)); err != nil {
			t.Errorf("expected output file: %v", err)
		}
	}
}

func TestRunResult(t *testing.T) {
	pass := []classify.Verdict{{Name: "a_test", Category: classify.Pass}}
	fail := []classify.Verdict{{Name: "a_test", Category: classify.Fail}}
	stopErr := fmt.Errorf("%w: 1 of 1 still running", executor.ErrStopTimeout)

	tests := []struct {
		name    string
		report  output.Report
		stopErr error
		want    []error
	}{
		{
			name:   "passed",
			report: output.Report{State: executor.StateFinished.String(), Verdicts: pass},
		},
		{
			name:   "failed",
			report: output.Report{State: executor.StateFinished.String(), Verdicts: fail},
			want:   []error{util.ErrTestsFailed},
		},
		{
			name:   "interrupted",
			report: output.Report{State: executor.StateInterrupted.String(), Verdicts: fail},
			want:   []error{util.ErrInterrupted},
		},
		{
			name:    "workers left running",
			report:  output.Report{State: executor.StateFinished.String(), Verdicts: pass},
			stopErr: stopErr,
			want:    []error{util.ErrTimeout, executor.ErrStopTimeout},
		},
		{
			name:    "interrupted with workers left running",
			report:  output.Report{State: executor.StateInterrupted.String(), Verdicts: fail},
			stopErr: stopErr,
			want:    []error{util.ErrInterrupted, util.ErrTimeout},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runResult(tt.report, 1, tt.stopErr)
			if len(tt.want) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			for _, want := range tt.want {
				if !errors.Is(err, want) {
					t.Errorf("expected %v in %v", want, err)
				}
			}
			if util.ExitCode(err) != util.ExitFailed {
				t.Errorf("expected exit code %d, got %d", util.ExitFailed, util.ExitCode(err))
			}
		})
	}
}

func TestRunExplicitBinaries(t *testing.T) {
	f := newFixture(t, map[string]string{"one_test": passScript, "two_test": failScript})

	stdout, _, err := f.execute(t, "run", "one_test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(stdout, "two_test") {
		t.Errorf("expected only one_test to run, got:\n%s", stdout)
	}
}

func TestRunNoBinaries(t *testing.T) {
	f := newFixture(t, nil)

	_, _, err := f.execute(t, "run")
	if !errors.Is(err, util.ErrNoTests) {
		t.Fatalf("expected ErrNoTests, got %v", err)
	}
}

func TestRunInvalidConfig(t *testing.T) {
	f := newFixture(t, map[string]string{"alpha_test": passScript})

	_, _, err := f.execute(t, "run", "-o", "xml")
	if !errors.Is(err, util.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if util.ExitCode(err) != util.ExitUsage {
		t.Errorf("expected usage exit code, got %d", util.ExitCode(err))
	}
}

func TestListCommand(t *testing.T) {
	f := newFixture(t, map[string]string{"alpha_test": passScript, "notes.txt": "x"})

	stdout, _, err := f.execute(t, "list", "--valgrind=true", "--repeat", "3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"BINARY", "alpha_test", "valgrind", "--gtest_repeat=3"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, stdout)
		}
	}
	if strings.Contains(stdout, "notes.txt") {
		t.Errorf("unexpected non-test file in output:\n%s", stdout)
	}
}

func TestInitCommand(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "testfleet.yaml")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"init", path})
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "valgrind") {
		t.Errorf("expected valgrind section, got:\n%s", data)
	}

	cmd = newRootCmd()
	cmd.SetArgs([]string{"init", path})
	cmd.SetOut(&bytes.Buffer{})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "--force") {
		t.Errorf("expected refusal without --force, got %v", err)
	}

	cmd = newRootCmd()
	cmd.SetArgs([]string{"init", path, "--force"})
	cmd.SetOut(&bytes.Buffer{})
	if err := cmd.Execute(); err != nil {
		t.Errorf("unexpected error with --force: %v", err)
	}
}
