package metric

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/govtag/internal/model"
)

// Runner produces a TestSummary. It isolates test-runner output parsing
// behind one adapter so the pipeline can be exercised with a fake.
type Runner interface {
	RunTests(ctx context.Context) (model.TestSummary, error)
}

// StaticRunner returns a fixed summary. Used when results are supplied
// directly (flags, CI artifacts) and in tests.
type StaticRunner model.TestSummary

// RunTests implements Runner.
func (r StaticRunner) RunTests(context.Context) (model.TestSummary, error) {
	return model.TestSummary(r), nil
}

// CommandRunner invokes an external test command and parses its summary line.
//
// A non-zero exit status is expected when tests fail; the output is parsed
// regardless. Only an unparseable output is an error. The core imposes no
// timeout: callers bound the run through ctx.
type CommandRunner struct {
	Command []string
	Dir     string
	Logger  *slog.Logger
}

// RunTests implements Runner.
func (r *CommandRunner) RunTests(ctx context.Context) (model.TestSummary, error) {
	if len(r.Command) == 0 {
		return model.TestSummary{}, model.NewError(model.ErrCodeTestSummaryParse, "no test command configured")
	}

	cmd := exec.CommandContext(ctx, r.Command[0], r.Command[1:]...)
	cmd.Dir = r.Dir
	output, runErr := cmd.CombinedOutput()

	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("test command finished", "command", strings.Join(r.Command, " "), "bytes", len(output), "error", runErr)

	var exitErr *exec.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) {
		return model.TestSummary{}, model.WrapError(model.ErrCodeTestSummaryParse, "test command did not run", runErr)
	}

	summary, err := ParseSummary(output)
	if err != nil {
		return model.TestSummary{}, err
	}
	return summary, nil
}

var (
	// 90% tests passed, 5 tests failed out of 50
	ctestLine = regexp.MustCompile(`(\d+)% tests passed, (\d+) tests? failed out of (\d+)`)
	// Tests: 45/50 passed | 45/50 tests passed
	ratioLine = regexp.MustCompile(`(?i)(?:tests:\s*)?(\d+)\s*/\s*(\d+)(?:\s+tests?)?\s+passed`)
	// passed=45 total=50
	kvLine = regexp.MustCompile(`\bpassed=(\d+)\s+total=(\d+)\b`)
)

// ParseSummary extracts {passed, total} from test runner output.
//
// Lines are scanned from the end; the last line matching a known summary
// format wins. Recognized formats, in priority order per line:
//
//	90% tests passed, 5 tests failed out of 50
//	Tests: 45/50 passed
//	passed=45 total=50
//
// No matching line, or a match that violates passed <= total, is a
// TEST_SUMMARY_PARSE_ERROR.
func ParseSummary(output []byte) (model.TestSummary, error) {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(output))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return model.TestSummary{}, model.WrapError(model.ErrCodeTestSummaryParse, "reading test output", err)
	}

	for i := len(lines) - 1; i >= 0; i-- {
		summary, ok, err := parseLine(lines[i])
		if err != nil {
			return model.TestSummary{}, err
		}
		if ok {
			return summary, nil
		}
	}
	return model.TestSummary{}, model.NewError(model.ErrCodeTestSummaryParse, "no test summary line found in runner output")
}

func parseLine(line string) (model.TestSummary, bool, error) {
	var s model.TestSummary
	switch {
	case ctestLine.MatchString(line):
		m := ctestLine.FindStringSubmatch(line)
		failed, total := atoi(m[2]), atoi(m[3])
		if failed > total {
			return s, false, summaryError(line, fmt.Sprintf("failed %d exceeds total %d", failed, total))
		}
		s = model.TestSummary{Passed: total - failed, Total: total}
	case ratioLine.MatchString(line):
		m := ratioLine.FindStringSubmatch(line)
		s = model.TestSummary{Passed: atoi(m[1]), Total: atoi(m[2])}
	case kvLine.MatchString(line):
		m := kvLine.FindStringSubmatch(line)
		s = model.TestSummary{Passed: atoi(m[1]), Total: atoi(m[2])}
	default:
		return s, false, nil
	}
	if err := s.Validate(); err != nil {
		return s, false, summaryError(line, err.Error())
	}
	return s, true, nil
}

func summaryError(line, reason string) error {
	return model.NewError(model.ErrCodeTestSummaryParse, "malformed test summary line: "+reason).
		WithDetail("line", strings.TrimSpace(line))
}

// atoi is only called on \d+ captures; overflow falls back to -1 so Validate rejects it.
func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
