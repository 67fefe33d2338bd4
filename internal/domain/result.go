package domain

// PassedTest is the light record kept for a passing test
type PassedTest struct {
	TestName  string `json:"test_name"`
	Assertion string `json:"assertion"`
	Status    string `json:"status"`
}

// FailedTest holds the evidence extracted for a single failing test
type FailedTest struct {
	TestName     string    `json:"test_name"`
	Assertion    string    `json:"assertion"`
	Expected     string    `json:"expected"`
	Actual       string    `json:"actual"`
	ErrorKind    ErrorKind `json:"error_type"`
	ErrorMessage string    `json:"error_message"`
	LineNumber   *int      `json:"line_number"`
	Traceback    string    `json:"traceback"`
}

// ToolVersions records the interpreter and test-runner versions that
// produced an execution result
type ToolVersions struct {
	Python string `json:"python_version"`
	Pytest string `json:"pytest_version"`
}

// ExecutionResult is the structured outcome of one sandbox execution.
// It is created fresh per round and never mutated; the next round's
// result supersedes it.
type ExecutionResult struct {
	TaskID           string       `json:"task_id"`
	TotalTests       int          `json:"total_tests"`
	PassedTests      int          `json:"passed_tests"`
	FailedTests      int          `json:"failed_tests"`
	SuccessRate      float64      `json:"success_rate"`
	PassedDetails    []PassedTest `json:"passed_test_details"`
	FailedDetails    []FailedTest `json:"failed_test_details"`
	ExecutionSeconds float64      `json:"execution_time"`
	Tools            ToolVersions `json:"tool_versions"`
	ReadyForRepair   bool         `json:"ready_for_repair"`
	CanStopIteration bool         `json:"can_stop_iteration"`
	ErrorSummary     string       `json:"error_summary"`
}

// Passing reports whether this result counts as task success: every
// collected test passed and at least one test actually ran. A zero-test
// result has CanStopIteration set but is never success.
func (r *ExecutionResult) Passing() bool {
	return r.TotalTests > 0 && r.FailedTests == 0
}

// Consistent checks the structural invariants every result must hold:
// counts add up, the rate matches, and the control flags are pure
// functions of the failure count.
func (r *ExecutionResult) Consistent() bool {
	if r.PassedTests+r.FailedTests != r.TotalTests {
		return false
	}
	want := 0.0
	if r.TotalTests > 0 {
		want = float64(r.PassedTests) / float64(r.TotalTests)
	}
	if r.SuccessRate != want {
		return false
	}
	return r.CanStopIteration == (r.FailedTests == 0) &&
		r.ReadyForRepair == (r.FailedTests > 0)
}

// TaskFinalStatus is written exactly once per task after a passing round
// or round-budget exhaustion
type TaskFinalStatus struct {
	TaskID           string  `json:"task_id"`
	Temperature      float32 `json:"temperature"`
	TotalRounds      int     `json:"total_rounds"`
	FinalSuccess     bool    `json:"final_success"`
	FinalSuccessRate float64 `json:"final_success_rate"`
	CompletedAt      string  `json:"completed_at"`
}

// TaskOutcome summarizes a processed task for the caller of the pipeline
type TaskOutcome struct {
	TaskID     string
	Status     TaskStatus
	RoundsUsed int
	Err        string
	LastResult *ExecutionResult
}
