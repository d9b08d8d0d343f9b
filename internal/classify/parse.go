package classify

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
)

const maxLineSize = 1024 * 1024

var (
	errorSummaryRe = regexp.MustCompile(`ERROR SUMMARY: ([\d,]+) errors?`)
	definitelyRe   = regexp.MustCompile(`definitely lost: ([\d,]+) bytes`)
	indirectlyRe   = regexp.MustCompile(`indirectly lost: ([\d,]+) bytes`)
)

// Report holds the facts read from a valgrind report.
type Report struct {
	// Errors is the largest ERROR SUMMARY count seen
	Errors int

	DefinitelyLost int64
	IndirectlyLost int64

	// NoLeaks is set when valgrind stated that no leaks are possible
	NoLeaks bool

	// ThreadFrame is the function four lines below the last "== Thread"
	// marker, i.e. the reported frame of the last thread error
	ThreadFrame string
}

// Leaked reports definite or indirect leaks.
func (r Report) Leaked() bool {
	return !r.NoLeaks && (r.DefinitelyLost > 0 || r.IndirectlyLost > 0)
}

// threadFrameOffset is how far below a "== Thread" marker the frame sits.
const threadFrameOffset = 4

// ParseReport scans a valgrind report one line at a time.
func ParseReport(rd io.Reader) (Report, error) {
	var (
		rep Report

		// sinceThread counts lines after the last marker, -1 before any
		sinceThread = -1
		frameLine   string
		lastLine    string
	)

	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	for sc.Scan() {
		line := sc.Text()
		lastLine = line

		switch {
		case strings.Contains(line, "== Thread"):
			sinceThread = 0
			frameLine = ""
		case sinceThread >= 0 && sinceThread < threadFrameOffset:
			sinceThread++
			if sinceThread == threadFrameOffset {
				frameLine = line
			}
		}
		if m := errorSummaryRe.FindStringSubmatch(line); m != nil {
			if n := int(parseCount(m[1])); n > rep.Errors {
				rep.Errors = n
			}
		}
		if m := definitelyRe.FindStringSubmatch(line); m != nil {
			rep.DefinitelyLost += parseCount(m[1])
		}
		if m := indirectlyRe.FindStringSubmatch(line); m != nil {
			rep.IndirectlyLost += parseCount(m[1])
		}
		if strings.Contains(line, "no leaks are possible") {
			rep.NoLeaks = true
		}
	}
	if err := sc.Err(); err != nil {
		return rep, err
	}

	if sinceThread >= 0 {
		// A report cut short uses its final line
		candidate := lastLine
		if sinceThread == threadFrameOffset {
			candidate = frameLine
		}
		if fields := strings.Fields(candidate); len(fields) >= 4 {
			rep.ThreadFrame = fields[3]
		}
	}
	return rep, nil
}

// HasFailure reports a "[  FAILED  ]" line in gtest output. Lines that also
// mention PASS, blank lines and timestamp lines are ignored.
func HasFailure(rd io.Reader) (bool, error) {
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || strings.HasPrefix(line, "[20") || strings.Contains(line, "PASS") {
			continue
		}
		if strings.Contains(line, "[  FAILED  ]") {
			return true, nil
		}
	}
	return false, sc.Err()
}

func parseCount(s string) int64 {
	n, err := strconv.ParseInt(strings.ReplaceAll(s, ",", ""), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
