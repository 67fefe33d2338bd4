package sandbox

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// RawOutcome is the raw evidence captured from one child-process
// execution. Launch failures and timeouts are normalized into the
// outcome rather than surfaced as errors.
type RawOutcome struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
}

// ProcessRunner executes an assembled test unit. It is the external-effect
// boundary of the sandbox: implementations can be swapped for a fake in
// tests or for a different target runtime.
type ProcessRunner interface {
	Run(ctx context.Context, unitDir, unitPath string, timeout time.Duration) RawOutcome
}

// launchFailureExit is the synthetic exit code used when the child
// process could not be started or was killed before reporting one.
const launchFailureExit = -1

// killGracePeriod is the wait between SIGINT and SIGKILL when a unit
// exceeds its timeout.
const killGracePeriod = 2 * time.Second

// PytestRunner runs the unit under pytest in a child process scoped to
// the unit's directory.
type PytestRunner struct {
	PytestBin string
	// ExtraArgs come after the unit path; defaults cover verbose output
	// with short tracebacks, which the result parser depends on.
	ExtraArgs []string
}

// NewPytestRunner returns a runner with the standard pytest invocation
func NewPytestRunner() *PytestRunner {
	return &PytestRunner{
		PytestBin: "pytest",
		ExtraArgs: []string{"-v", "--tb=short", "--capture=no"},
	}
}

// Run executes pytest against the unit with a hard wall-clock timeout.
// The child gets a minimal environment: just enough PATH to find the
// interpreter and PYTHONPATH to resolve the unit's own directory.
func (r *PytestRunner) Run(ctx context.Context, unitDir, unitPath string, timeout time.Duration) RawOutcome {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append([]string{unitPath}, r.ExtraArgs...)
	cmd := exec.Command(r.PytestBin, args...)
	cmd.Dir = unitDir
	cmd.Env = []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + os.Getenv("HOME"),
		"PYTHONPATH=" + unitDir,
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Own process group so a timeout can take down grandchildren too
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return RawOutcome{
			ExitCode: launchFailureExit,
			Stderr:   err.Error(),
		}
	}

	pgid := cmd.Process.Pid
	waitDone := make(chan error, 1)
	go func() {
		waitDone <- cmd.Wait()
	}()

	var runErr error
	var timedOut bool
	select {
	case runErr = <-waitDone:
	case <-runCtx.Done():
		timedOut = true
		killProcessGroup(pgid)
		runErr = <-waitDone
	}

	outcome := RawOutcome{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		TimedOut: timedOut,
	}
	if timedOut {
		outcome.ExitCode = launchFailureExit
		if outcome.Stderr == "" {
			outcome.Stderr = "Test execution timed out"
		}
		return outcome
	}
	if runErr == nil {
		return outcome
	}
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		outcome.ExitCode = exitErr.ExitCode()
		return outcome
	}
	outcome.ExitCode = launchFailureExit
	if outcome.Stderr == "" {
		outcome.Stderr = runErr.Error()
	}
	return outcome
}

// killProcessGroup sends SIGINT to the group, waits the grace period,
// then SIGKILLs whatever is left.
func killProcessGroup(pgid int) {
	_ = syscall.Kill(-pgid, syscall.SIGINT)
	time.Sleep(killGracePeriod)
	_ = syscall.Kill(-pgid, syscall.SIGKILL)
}
