package domain

// TaskStatus represents the terminal outcome of processing a task
type TaskStatus string

const (
	StatusSuccess              TaskStatus = "success"
	StatusFailed               TaskStatus = "failed"
	StatusTestGenerationFailed TaskStatus = "test_generation_failed"
	StatusCodeGenerationFailed TaskStatus = "code_generation_failed"
)

// Stage identifies which pipeline step produced a persisted record
type Stage string

const (
	StageTestGeneration Stage = "test_generation"
	StageCodeGeneration Stage = "code_generation"
	StageCodeRepair     Stage = "code_repair"
	StageTestExecution  Stage = "test_execution"
)

// ErrorKind classifies a failed test by the Python error category
// observed in its output section
type ErrorKind string

const (
	ErrAssertion ErrorKind = "AssertionError"
	ErrIndex     ErrorKind = "IndexError"
	ErrType      ErrorKind = "TypeError"
	ErrValue     ErrorKind = "ValueError"
	ErrRuntime   ErrorKind = "RuntimeError"
)
