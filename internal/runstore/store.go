// Package runstore provides a SQLite index over pipeline runs. The JSONL
// artifact logs remain the source of truth; the index exists so the status
// command can answer questions about a run without scanning every log.
package runstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ZenWang00/llm-tdd-testtypekit/internal/domain"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed run persistence
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	// Run migrations
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun records a new run and its configuration
func (s *Store) CreateRun(cfg domain.RunConfig, startedAt time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (id, problem_file, model, temperature, max_rounds, num_tasks, output_dir, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		cfg.RunID,
		cfg.ProblemFile,
		cfg.Model,
		cfg.Temperature,
		cfg.MaxRounds,
		cfg.NumTasks,
		cfg.OutputDir,
		startedAt,
	)
	return err
}

// FinishRun stamps the run's completion time
func (s *Store) FinishRun(runID string, finishedAt time.Time) error {
	_, err := s.db.Exec(`UPDATE runs SET finished_at = ? WHERE id = ?`, finishedAt, runID)
	return err
}

// RecordOutcome inserts or updates a task's terminal outcome for a run
func (s *Store) RecordOutcome(runID string, outcome domain.TaskOutcome) error {
	rate := 0.0
	if outcome.LastResult != nil {
		rate = outcome.LastResult.SuccessRate
	}
	_, err := s.db.Exec(`
		INSERT INTO task_outcomes (run_id, task_id, status, rounds_used, success_rate, error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, task_id) DO UPDATE SET
			status = excluded.status,
			rounds_used = excluded.rounds_used,
			success_rate = excluded.success_rate,
			error = excluded.error
	`,
		runID,
		outcome.TaskID,
		string(outcome.Status),
		outcome.RoundsUsed,
		rate,
		outcome.Err,
	)
	return err
}

// RecordRound appends one execution round to the index
func (s *Store) RecordRound(runID string, round int, result *domain.ExecutionResult) error {
	_, err := s.db.Exec(`
		INSERT INTO rounds (run_id, task_id, round, total_tests, passed_tests, failed_tests, success_rate, execution_time, error_summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		result.TaskID,
		round,
		result.TotalTests,
		result.PassedTests,
		result.FailedTests,
		result.SuccessRate,
		result.ExecutionSeconds,
		result.ErrorSummary,
	)
	return err
}

// Summary aggregates a run's task outcomes by status
type Summary struct {
	RunID             string
	Total             int
	Succeeded         int
	Failed            int
	TestGenFailures   int
	CodeGenFailures   int
	AverageRoundsUsed float64
}

// Summarize computes the per-status counts for a run
func (s *Store) Summarize(runID string) (*Summary, error) {
	rows, err := s.db.Query(`
		SELECT status, COUNT(*), AVG(rounds_used)
		FROM task_outcomes WHERE run_id = ?
		GROUP BY status
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summary := &Summary{RunID: runID}
	var weightedRounds float64
	for rows.Next() {
		var status string
		var count int
		var avgRounds sql.NullFloat64
		if err := rows.Scan(&status, &count, &avgRounds); err != nil {
			return nil, err
		}
		summary.Total += count
		if avgRounds.Valid {
			weightedRounds += avgRounds.Float64 * float64(count)
		}
		switch domain.TaskStatus(status) {
		case domain.StatusSuccess:
			summary.Succeeded = count
		case domain.StatusFailed:
			summary.Failed = count
		case domain.StatusTestGenerationFailed:
			summary.TestGenFailures = count
		case domain.StatusCodeGenerationFailed:
			summary.CodeGenFailures = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if summary.Total > 0 {
		summary.AverageRoundsUsed = weightedRounds / float64(summary.Total)
	}
	return summary, nil
}

// ListOutcomes returns every task outcome recorded for a run, ordered by
// task ID
func (s *Store) ListOutcomes(runID string) ([]domain.TaskOutcome, error) {
	rows, err := s.db.Query(`
		SELECT task_id, status, rounds_used, error
		FROM task_outcomes WHERE run_id = ?
		ORDER BY CAST(task_id AS INTEGER), task_id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []domain.TaskOutcome
	for rows.Next() {
		var o domain.TaskOutcome
		var status string
		var errText sql.NullString
		if err := rows.Scan(&o.TaskID, &status, &o.RoundsUsed, &errText); err != nil {
			return nil, err
		}
		o.Status = domain.TaskStatus(status)
		if errText.Valid {
			o.Err = errText.String
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// RoundsForTask returns the recorded round count for a task within a run
func (s *Store) RoundsForTask(runID, taskID string) (int, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM rounds WHERE run_id = ? AND task_id = ?
	`, runID, taskID).Scan(&count)
	return count, err
}
