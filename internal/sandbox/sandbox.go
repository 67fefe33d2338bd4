// Package sandbox combines a candidate implementation with a generated
// test suite into one runnable pytest unit and executes it as an isolated
// child process with a wall-clock timeout.
package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZenWang00/llm-tdd-testtypekit/internal/domain"
)

// unitFileName is the file the combined unit is written to. The directory
// it lives in is unique per invocation, so concurrent tasks never collide.
const unitFileName = "test_file.py"

// Sandbox assembles and executes candidate-plus-tests units
type Sandbox struct {
	Runner     ProcessRunner
	Sanitizers []Sanitizer
	Timeout    time.Duration
}

// New returns a Sandbox with the default pytest runner and sanitizer chain
func New(timeout time.Duration) *Sandbox {
	return &Sandbox{
		Runner:     NewPytestRunner(),
		Sanitizers: DefaultSanitizers(),
		Timeout:    timeout,
	}
}

// Assemble merges candidate code and test suite into a single unit.
// If the suite already defines a non-test function it is treated as
// self-contained and the candidate is not concatenated, which avoids
// duplicate-definition errors. The suite text is sanitized either way.
func (s *Sandbox) Assemble(code, tests string) string {
	code = strings.TrimSpace(code)
	tests = strings.TrimSpace(tests)

	if suiteDefinesImplementation(tests) {
		return applySanitizers(tests, s.Sanitizers)
	}

	tests = applySanitizers(tests, s.Sanitizers)

	var b strings.Builder
	b.WriteString("import pytest\n")
	b.WriteString("import sys\n")
	b.WriteString("import os\n")
	b.WriteString("\n")
	b.WriteString("# Generated code\n")
	b.WriteString(code)
	b.WriteString("\n\n")
	b.WriteString("# Generated tests\n")
	b.WriteString(tests)
	return b.String()
}

// suiteDefinesImplementation reports whether the test text contains a
// function definition that is not itself a test function
func suiteDefinesImplementation(tests string) bool {
	for _, line := range strings.Split(tests, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "def ") && !strings.HasPrefix(trimmed, "def test_") {
			return true
		}
	}
	return false
}

// Execute writes the assembled unit to a unique temporary directory, runs
// it through the process runner and removes the directory afterwards.
// Inputs are arbitrary generated text; nothing is pre-validated. All
// failure modes, including the inability to stage the unit, come back as
// a RawOutcome rather than an error.
func (s *Sandbox) Execute(ctx context.Context, code, tests string) RawOutcome {
	unitDir, err := os.MkdirTemp("", "tdd-unit-")
	if err != nil {
		return RawOutcome{ExitCode: launchFailureExit, Stderr: fmt.Sprintf("creating unit dir: %v", err)}
	}
	defer os.RemoveAll(unitDir)

	unitPath := filepath.Join(unitDir, unitFileName)
	combined := s.Assemble(code, tests)
	if err := os.WriteFile(unitPath, []byte(combined), 0644); err != nil {
		return RawOutcome{ExitCode: launchFailureExit, Stderr: fmt.Sprintf("writing unit: %v", err)}
	}

	return s.Runner.Run(ctx, unitDir, unitPath, s.Timeout)
}

// ProbeToolVersions asks the interpreter and test runner for their
// versions. Probing is best-effort; an unreachable tool reports "Unknown".
func ProbeToolVersions(ctx context.Context) domain.ToolVersions {
	return domain.ToolVersions{
		Python: probeVersion(ctx, "python3", "--version"),
		Pytest: probeVersion(ctx, "pytest", "--version"),
	}
}

func probeVersion(ctx context.Context, bin string, args ...string) string {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(probeCtx, bin, args...).Output()
	if err != nil {
		return "Unknown"
	}
	v := strings.TrimSpace(string(out))
	if v == "" {
		return "Unknown"
	}
	return v
}
