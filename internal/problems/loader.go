// Package problems loads benchmark task records from JSONL problem files
// and normalizes their field names into domain.Task values.
package problems

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/ZenWang00/llm-tdd-testtypekit/internal/domain"
)

// rawProblem accepts the field spellings found across MBPP-style dataset
// dumps; normalization is an adapter concern kept out of the domain types.
type rawProblem struct {
	TaskID         json.RawMessage `json:"task_id"`
	Prompt         string          `json:"prompt"`
	Text           string          `json:"text"`
	ReferenceCode  string          `json:"reference_code"`
	Code           string          `json:"code"`
	TestList       []string        `json:"test_list"`
	ChallengeTests []string        `json:"challenge_test_list"`
}

// Load reads the JSONL problem file, normalizes field names, sorts tasks
// by numeric ID and returns the slice [startTask, startTask+numTasks).
// Records without a task_id are skipped; blank lines are ignored.
func Load(path string, startTask, numTasks int) ([]domain.Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening problem file: %w", err)
	}
	defer f.Close()

	var tasks []domain.Task
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var raw rawProblem
		if err := json.Unmarshal(line, &raw); err != nil {
			return nil, fmt.Errorf("problem file line %d: %w", lineNum, err)
		}
		id := normalizeID(raw.TaskID)
		if id == "" {
			continue
		}
		desc := raw.Prompt
		if desc == "" {
			desc = raw.Text
		}
		ref := raw.ReferenceCode
		if ref == "" {
			ref = raw.Code
		}
		tasks = append(tasks, domain.Task{
			ID:             id,
			Description:    desc,
			ReferenceCode:  ref,
			ExistingTests:  raw.TestList,
			ChallengeTests: raw.ChallengeTests,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading problem file: %w", err)
	}

	sort.Slice(tasks, func(i, j int) bool {
		return numericLess(tasks[i].ID, tasks[j].ID)
	})

	if startTask < 0 {
		startTask = 0
	}
	if startTask >= len(tasks) {
		return nil, nil
	}
	end := startTask + numTasks
	if end > len(tasks) {
		end = len(tasks)
	}
	return tasks[startTask:end], nil
}

// normalizeID accepts task IDs stored either as JSON numbers or strings
func normalizeID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatInt(n, 10)
	}
	return ""
}

// numericLess orders IDs numerically when both parse as integers,
// lexically otherwise
func numericLess(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}
