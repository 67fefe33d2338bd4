package domain

// Task is one unit of work: a problem description plus an optional
// reference implementation and pre-existing benchmark tests.
// Tasks are immutable for the duration of a run.
type Task struct {
	ID             string   `json:"task_id"`
	Description    string   `json:"prompt"`
	ReferenceCode  string   `json:"reference_code,omitempty"`
	ExistingTests  []string `json:"test_list,omitempty"`
	ChallengeTests []string `json:"challenge_test_list,omitempty"`
}

// RunConfig is the immutable per-invocation configuration passed into the
// orchestrator. One RunConfig drives one sequential pipeline; temperature
// sweeps repeat the pipeline with a fresh RunConfig per temperature.
type RunConfig struct {
	RunID       string
	ProblemFile string
	NumTasks    int
	StartTask   int
	MaxRounds   int
	Temperature float32
	Model       string
	OutputDir   string
	Parallel    int
}
