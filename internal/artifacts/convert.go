package artifacts

import (
	"encoding/json"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ZenWang00/llm-tdd-testtypekit/internal/domain"
)

// EvalFile is the benchmark-format export written by ConvertEvalFormat
const EvalFile = "mbpp_eval_final.jsonl"

// EvalRecord is one line of the benchmark-format export: the task's final
// generated code alongside the original problem fields, so downstream
// evaluation tooling can score the run without access to the round logs.
type EvalRecord struct {
	TaskID         string   `json:"task_id"`
	Prompt         string   `json:"prompt"`
	Completion     string   `json:"completion"`
	TestList       []string `json:"test_list"`
	ChallengeTests []string `json:"challenge_test_list"`
	ReferenceCode  string   `json:"reference_code"`
}

// ConvertEvalFormat exports each task's final-round code in benchmark
// evaluation format. The final round comes from the task's status file;
// tasks without one default to round 1. Tasks with no persisted code are
// skipped rather than exported empty.
func (s *Store) ConvertEvalFormat(tasks []domain.Task) (string, int, error) {
	ids := make([]string, 0, len(tasks))
	byID := make(map[string]domain.Task, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.ID)
		byID[task.ID] = task
	}
	sort.Slice(ids, func(i, j int) bool { return numericLess(ids[i], ids[j]) })

	var records []EvalRecord
	for _, id := range ids {
		finalRound := 1
		if status, ok, err := s.ReadFinalStatus(id); err != nil {
			return "", 0, err
		} else if ok && status.TotalRounds > 0 {
			finalRound = status.TotalRounds
		}

		code, found, err := s.CodeForRound(id, finalRound)
		if err != nil {
			return "", 0, err
		}
		if !found {
			continue
		}

		task := byID[id]
		records = append(records, EvalRecord{
			TaskID:         id,
			Prompt:         task.Description,
			Completion:     code,
			TestList:       task.ExistingTests,
			ChallengeTests: task.ChallengeTests,
			ReferenceCode:  task.ReferenceCode,
		})
	}

	var b strings.Builder
	for _, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			return "", 0, err
		}
		b.Write(line)
		b.WriteByte('\n')
	}

	path := filepath.Join(s.dir, EvalFile)
	if err := writeFileAtomic(path, []byte(b.String())); err != nil {
		return "", 0, err
	}
	return path, len(records), nil
}

// numericLess orders IDs numerically when both parse as integers and
// lexically otherwise
func numericLess(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}
