// Package artifacts persists per-round run evidence as append-only JSONL
// logs plus a final status JSON per task. The store is the only writer of
// round and status records; records are flushed as they are produced so a
// crash mid-run keeps everything written so far.
package artifacts

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ZenWang00/llm-tdd-testtypekit/internal/domain"
)

// TestsSourceFile is the single file initial tests are persisted to;
// round records reference it instead of duplicating the test text.
const TestsSourceFile = "initial_tests.jsonl"

// RoundResult is one line of round_<N>_results.jsonl
type RoundResult struct {
	TaskID           string                  `json:"task_id"`
	Round            int                     `json:"round"`
	Temperature      float32                 `json:"temperature"`
	Result           *domain.ExecutionResult `json:"execution_result"`
	Model            string                  `json:"model"`
	Stage            domain.Stage            `json:"stage"`
	ReadyForRepair   bool                    `json:"ready_for_repair"`
	CanStopIteration bool                    `json:"can_stop_iteration"`
	Timestamp        string                  `json:"timestamp"`
}

// RoundCode is one line of round_<N>_code.jsonl
type RoundCode struct {
	TaskID        string       `json:"task_id"`
	Round         int          `json:"round"`
	Temperature   float32      `json:"temperature"`
	GeneratedCode string       `json:"generated_code"`
	TestsSource   string       `json:"tests_source"`
	Model         string       `json:"model"`
	Stage         domain.Stage `json:"stage"`
	Timestamp     string       `json:"timestamp"`
}

// InitialTests is one line of initial_tests.jsonl, written once per task
type InitialTests struct {
	TaskID         string       `json:"task_id"`
	Temperature    float32      `json:"temperature"`
	GeneratedTests string       `json:"generated_tests"`
	Model          string       `json:"model"`
	Stage          domain.Stage `json:"stage"`
	Timestamp      string       `json:"timestamp"`
}

// Store owns one run's output directory
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates the output directory if needed and returns a store
// rooted at it
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the run's output directory
func (s *Store) Dir() string {
	return s.dir
}

// AppendRoundResult appends an execution record to the round's results log
func (s *Store) AppendRoundResult(rec RoundResult) error {
	return s.appendJSONL(fmt.Sprintf("round_%d_results.jsonl", rec.Round), rec)
}

// AppendRoundCode appends a generated-code record to the round's code log
func (s *Store) AppendRoundCode(rec RoundCode) error {
	return s.appendJSONL(fmt.Sprintf("round_%d_code.jsonl", rec.Round), rec)
}

// SaveInitialTests appends the task's generated tests to the shared
// initial-tests log
func (s *Store) SaveInitialTests(rec InitialTests) error {
	return s.appendJSONL(TestsSourceFile, rec)
}

// TestsForTask reads back the persisted tests for a task. The read-back
// guarantees later stages work from the exact bytes on disk, not whatever
// was held in memory at save time.
func (s *Store) TestsForTask(taskID string) (string, bool, error) {
	var found bool
	var tests string
	err := s.scanJSONL(TestsSourceFile, func(line []byte) error {
		var rec InitialTests
		if err := json.Unmarshal(line, &rec); err != nil {
			return err
		}
		if rec.TaskID == taskID {
			tests = rec.GeneratedTests
			found = true
		}
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return tests, found, nil
}

// CodeForRound returns the generated code persisted for a task at the
// given round
func (s *Store) CodeForRound(taskID string, round int) (string, bool, error) {
	var found bool
	var code string
	err := s.scanJSONL(fmt.Sprintf("round_%d_code.jsonl", round), func(line []byte) error {
		var rec RoundCode
		if err := json.Unmarshal(line, &rec); err != nil {
			return err
		}
		if rec.TaskID == taskID && !found {
			code = rec.GeneratedCode
			found = true
		}
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return code, found, nil
}

// WriteFinalStatus writes the task's terminal record. It is written
// exactly once per task, atomically, after the last round completes.
func (s *Store) WriteFinalStatus(status domain.TaskFinalStatus) error {
	path := filepath.Join(s.dir, fmt.Sprintf("task_%s_final_status.json", status.TaskID))
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

// ReadFinalStatus loads a task's terminal record, reporting whether one
// exists yet
func (s *Store) ReadFinalStatus(taskID string) (*domain.TaskFinalStatus, bool, error) {
	path := filepath.Join(s.dir, fmt.Sprintf("task_%s_final_status.json", taskID))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var status domain.TaskFinalStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, false, err
	}
	return &status, true, nil
}

// appendJSONL writes one compact JSON line to the named log under the
// store's mutex, so concurrent task workers never interleave lines
func (s *Store) appendJSONL(name string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = f.Write(data)
	return err
}

// scanJSONL invokes fn for every non-empty line of the named log. A
// missing log is not an error; it just yields no lines.
func (s *Store) scanJSONL(name string, fn func(line []byte) error) error {
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// writeFileAtomic writes via a temp file and rename so readers never see
// a partial record
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-status-")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}
