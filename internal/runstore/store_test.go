package runstore

import (
	"testing"
	"time"

	"github.com/ZenWang00/llm-tdd-testtypekit/internal/domain"
)

func testConfig(runID string) domain.RunConfig {
	return domain.RunConfig{
		RunID:       runID,
		ProblemFile: "mbpp.jsonl",
		NumTasks:    3,
		StartTask:   1,
		MaxRounds:   5,
		Temperature: 0.7,
		Model:       "gpt-4o-mini",
		OutputDir:   "/tmp/run",
	}
}

func TestStore_CreateRunAndOutcomes(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.CreateRun(testConfig("run-1"), time.Now()); err != nil {
		t.Fatal(err)
	}

	outcomes := []domain.TaskOutcome{
		{TaskID: "2", Status: domain.StatusSuccess, RoundsUsed: 1,
			LastResult: &domain.ExecutionResult{TaskID: "2", SuccessRate: 1.0}},
		{TaskID: "10", Status: domain.StatusFailed, RoundsUsed: 6,
			LastResult: &domain.ExecutionResult{TaskID: "10", SuccessRate: 0.5}},
		{TaskID: "3", Status: domain.StatusTestGenerationFailed, Err: "generation failed: timeout"},
	}
	for _, o := range outcomes {
		if err := store.RecordOutcome("run-1", o); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.ListOutcomes("run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("ListOutcomes count = %d, want 3", len(got))
	}
	// Numeric ordering: 2, 3, 10.
	if got[0].TaskID != "2" || got[1].TaskID != "3" || got[2].TaskID != "10" {
		t.Errorf("order = %s, %s, %s", got[0].TaskID, got[1].TaskID, got[2].TaskID)
	}
	if got[2].TaskID != "10" || got[2].RoundsUsed != 6 {
		t.Errorf("task 10 outcome = %+v", got[2])
	}
	if got[1].Err != "generation failed: timeout" {
		t.Errorf("task 3 error = %q", got[1].Err)
	}
}

func TestStore_RecordOutcomeUpsert(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.CreateRun(testConfig("run-1"), time.Now()); err != nil {
		t.Fatal(err)
	}

	first := domain.TaskOutcome{TaskID: "2", Status: domain.StatusFailed, RoundsUsed: 6}
	second := domain.TaskOutcome{TaskID: "2", Status: domain.StatusSuccess, RoundsUsed: 2}
	if err := store.RecordOutcome("run-1", first); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordOutcome("run-1", second); err != nil {
		t.Fatal(err)
	}

	got, err := store.ListOutcomes("run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("count = %d, want 1", len(got))
	}
	if got[0].Status != domain.StatusSuccess || got[0].RoundsUsed != 2 {
		t.Errorf("outcome = %+v, want updated record", got[0])
	}
}

func TestStore_Summarize(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.CreateRun(testConfig("run-1"), time.Now()); err != nil {
		t.Fatal(err)
	}

	outcomes := []domain.TaskOutcome{
		{TaskID: "1", Status: domain.StatusSuccess, RoundsUsed: 1},
		{TaskID: "2", Status: domain.StatusSuccess, RoundsUsed: 3},
		{TaskID: "3", Status: domain.StatusFailed, RoundsUsed: 6},
		{TaskID: "4", Status: domain.StatusCodeGenerationFailed, RoundsUsed: 0},
	}
	for _, o := range outcomes {
		if err := store.RecordOutcome("run-1", o); err != nil {
			t.Fatal(err)
		}
	}

	summary, err := store.Summarize("run-1")
	if err != nil {
		t.Fatal(err)
	}
	if summary.Total != 4 {
		t.Errorf("Total = %d, want 4", summary.Total)
	}
	if summary.Succeeded != 2 {
		t.Errorf("Succeeded = %d, want 2", summary.Succeeded)
	}
	if summary.Failed != 1 {
		t.Errorf("Failed = %d, want 1", summary.Failed)
	}
	if summary.CodeGenFailures != 1 {
		t.Errorf("CodeGenFailures = %d, want 1", summary.CodeGenFailures)
	}
	if summary.AverageRoundsUsed != 2.5 {
		t.Errorf("AverageRoundsUsed = %v, want 2.5", summary.AverageRoundsUsed)
	}
}

func TestStore_RecordRound(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.CreateRun(testConfig("run-1"), time.Now()); err != nil {
		t.Fatal(err)
	}

	for round := 1; round <= 3; round++ {
		result := &domain.ExecutionResult{
			TaskID: "11", TotalTests: 4, PassedTests: round, FailedTests: 4 - round,
			SuccessRate: float64(round) / 4.0, ErrorSummary: "Failed tests: AssertionError: 1",
		}
		if err := store.RecordRound("run-1", round, result); err != nil {
			t.Fatal(err)
		}
	}

	count, err := store.RoundsForTask("run-1", "11")
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("rounds = %d, want 3", count)
	}

	if count, _ := store.RoundsForTask("run-1", "99"); count != 0 {
		t.Errorf("rounds for unknown task = %d, want 0", count)
	}
}
