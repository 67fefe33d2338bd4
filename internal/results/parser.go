// Package results converts raw sandbox output into structured execution
// results. Parsing is deterministic: the same raw outcome always yields
// an identical result.
package results

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ZenWang00/llm-tdd-testtypekit/internal/domain"
	"github.com/ZenWang00/llm-tdd-testtypekit/internal/sandbox"
)

// testNamePatterns match the test identifier in pytest's verbose output,
// most specific first
var testNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`test_file\.py::test_\w+`),
	regexp.MustCompile(`::test_\w+`),
	regexp.MustCompile(`test_\w+`),
}

// Parser turns RawOutcome values into ExecutionResults. The text-pattern
// strategy lives entirely behind this type so it can be swapped for a
// structured report format without touching the orchestrator.
type Parser struct {
	Tools domain.ToolVersions
}

// NewParser returns a parser that stamps results with the given tool versions
func NewParser(tools domain.ToolVersions) *Parser {
	return &Parser{Tools: tools}
}

// Parse scans the raw output for per-test status markers and builds the
// structured result. When no tests ran at all the result is an
// execution-level failure: zero totals, ReadyForRepair=false and
// CanStopIteration=true, so the loop never mistakes "nothing ran" for
// "everything repaired".
func (p *Parser) Parse(outcome sandbox.RawOutcome, taskID string, elapsedSeconds float64) *domain.ExecutionResult {
	var passed []domain.PassedTest
	var failed []domain.FailedTest

	// A test can appear twice: once as a verbose status line and again in
	// the short summary. The first occurrence wins.
	seen := make(map[string]bool)

	lines := strings.Split(outcome.Stdout, "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		switch {
		case strings.Contains(line, "PASSED") && strings.Contains(line, "test_"):
			if name := extractTestName(line); name != "" && !seen[name] {
				seen[name] = true
				passed = append(passed, domain.PassedTest{
					TestName:  name,
					Assertion: fmt.Sprintf("Test %s passed", name),
					Status:    "PASS",
				})
			}
		case strings.Contains(line, "FAILED") && strings.Contains(line, "test_"):
			if name := extractTestName(line); name != "" && !seen[name] {
				seen[name] = true
				failed = append(failed, extractFailure(name, outcome.Stdout))
			}
		}
	}

	if len(passed) == 0 && len(failed) == 0 {
		if nothingCollected(outcome) {
			return p.executionFailure(outcome, taskID, elapsedSeconds)
		}
	}

	total := len(passed) + len(failed)
	rate := 0.0
	if total > 0 {
		rate = float64(len(passed)) / float64(total)
	}

	return &domain.ExecutionResult{
		TaskID:           taskID,
		TotalTests:       total,
		PassedTests:      len(passed),
		FailedTests:      len(failed),
		SuccessRate:      rate,
		PassedDetails:    passed,
		FailedDetails:    failed,
		ExecutionSeconds: elapsedSeconds,
		Tools:            p.Tools,
		ReadyForRepair:   len(failed) > 0,
		CanStopIteration: len(failed) == 0,
		ErrorSummary:     summarize(failed),
	}
}

// nothingCollected reports whether the run produced no test outcomes at
// all: collection errors, timeouts and launch failures all land here
func nothingCollected(outcome sandbox.RawOutcome) bool {
	return strings.Contains(outcome.Stdout, "collected 0 items") ||
		strings.Contains(outcome.Stdout, "no tests ran") ||
		outcome.TimedOut ||
		outcome.Stdout == ""
}

// executionFailure builds the zero-test result for runs where the sandbox
// could not execute anything meaningful
func (p *Parser) executionFailure(outcome sandbox.RawOutcome, taskID string, elapsedSeconds float64) *domain.ExecutionResult {
	msg := strings.TrimSpace(outcome.Stderr)
	if msg == "" {
		msg = "No tests were collected"
	}
	return &domain.ExecutionResult{
		TaskID:           taskID,
		SuccessRate:      0,
		PassedDetails:    nil,
		FailedDetails:    nil,
		ExecutionSeconds: elapsedSeconds,
		Tools:            p.Tools,
		ReadyForRepair:   false,
		CanStopIteration: true,
		ErrorSummary:     "Execution error: " + msg,
	}
}

// extractTestName pulls the test identifier out of a status line
func extractTestName(line string) string {
	for _, pattern := range testNamePatterns {
		if m := pattern.FindString(line); m != "" {
			return m
		}
	}
	return ""
}

// extractFailure slices the output block belonging to one failed test and
// classifies its error
func extractFailure(testName, stdout string) domain.FailedTest {
	section := failureSection(testName, stdout)
	kind, message := classifyError(section)
	return domain.FailedTest{
		TestName:     testName,
		Assertion:    "Test assertion",
		Expected:     "Test should pass",
		Actual:       fmt.Sprintf("Failed with %s", kind),
		ErrorKind:    kind,
		ErrorMessage: message,
		LineNumber:   nil,
		Traceback:    section,
	}
}

// failureSection returns the stdout block belonging to one failed test.
// The FAILURES section names tests in an underscore header without the
// file prefix; that block is preferred. When pytest produced no FAILURES
// section the slice from the test's status line to the next status line
// is used instead.
func failureSection(testName, stdout string) string {
	short := shortTestName(testName)
	lines := strings.Split(stdout, "\n")

	start := -1
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "_") && strings.Contains(line, short) {
			start = i
			break
		}
	}
	if start != -1 {
		end := len(lines)
		for i := start + 1; i < len(lines); i++ {
			trimmed := strings.TrimSpace(lines[i])
			if strings.HasPrefix(trimmed, "_") || strings.HasPrefix(trimmed, "=") {
				end = i
				break
			}
		}
		return strings.Join(lines[start:end], "\n")
	}

	for i, line := range lines {
		if strings.Contains(line, testName) && strings.Contains(line, "FAILED") {
			start = i
			break
		}
	}
	if start == -1 {
		return ""
	}
	end := len(lines)
	for i := start + 1; i < len(lines); i++ {
		if strings.HasPrefix(lines[i], "test_") &&
			(strings.Contains(lines[i], "PASSED") || strings.Contains(lines[i], "FAILED")) {
			end = i
			break
		}
	}
	return strings.Join(lines[start:end], "\n")
}

// shortTestName strips the file prefix from a pytest node ID
func shortTestName(testName string) string {
	if idx := strings.LastIndex(testName, "::"); idx != -1 {
		return testName[idx+2:]
	}
	return testName
}

// classifyError maps the failure section onto a known error category, in
// priority order
func classifyError(section string) (domain.ErrorKind, string) {
	switch {
	case strings.Contains(section, "AssertionError"):
		return domain.ErrAssertion, "Assertion failed"
	case strings.Contains(section, "IndexError"):
		return domain.ErrIndex, "Index out of range"
	case strings.Contains(section, "TypeError"):
		return domain.ErrType, "Type error occurred"
	case strings.Contains(section, "ValueError"):
		return domain.ErrValue, "Value error occurred"
	default:
		return domain.ErrRuntime, "Test execution failed"
	}
}

// summarize produces the compact error histogram, e.g.
// "Failed tests: AssertionError: 2, TypeError: 1". Kinds are ordered
// deterministically so identical inputs give identical summaries.
func summarize(failed []domain.FailedTest) string {
	if len(failed) == 0 {
		return "All tests passed"
	}
	counts := make(map[domain.ErrorKind]int)
	for _, f := range failed {
		counts[f.ErrorKind]++
	}
	kinds := make([]string, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	parts := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		parts = append(parts, fmt.Sprintf("%s: %d", kind, counts[domain.ErrorKind(kind)]))
	}
	return "Failed tests: " + strings.Join(parts, ", ")
}
