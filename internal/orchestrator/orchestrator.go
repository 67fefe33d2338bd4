// Package orchestrator drives the test-driven repair pipeline: generate a
// test suite, generate an implementation, execute it, then repair in
// bounded rounds until the suite passes or the round budget is spent.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/ZenWang00/llm-tdd-testtypekit/internal/artifacts"
	"github.com/ZenWang00/llm-tdd-testtypekit/internal/domain"
	"github.com/ZenWang00/llm-tdd-testtypekit/internal/results"
	"github.com/ZenWang00/llm-tdd-testtypekit/internal/runstore"
	"github.com/ZenWang00/llm-tdd-testtypekit/internal/sandbox"
	"golang.org/x/sync/errgroup"
)

// Generator produces tests, implementations and repairs
type Generator interface {
	GenerateTests(ctx context.Context, task domain.Task, temperature float32) (string, error)
	GenerateCode(ctx context.Context, task domain.Task, tests string, temperature float32) (string, error)
	GenerateRepair(ctx context.Context, task domain.Task, tests string, result *domain.ExecutionResult, temperature float32) (string, error)
}

// Executor runs a candidate plus its tests and reports the raw outcome
type Executor interface {
	Execute(ctx context.Context, code, tests string) sandbox.RawOutcome
}

// Orchestrator runs the pipeline for one RunConfig. Index is optional;
// when set, outcomes and rounds are mirrored into the SQLite run index.
type Orchestrator struct {
	cfg    domain.RunConfig
	gen    Generator
	exec   Executor
	parser *results.Parser
	store  *artifacts.Store

	Index  *runstore.Store
	Logger *slog.Logger

	now func() time.Time
}

// New wires the pipeline components for one run
func New(cfg domain.RunConfig, gen Generator, exec Executor, parser *results.Parser, store *artifacts.Store) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		gen:    gen,
		exec:   exec,
		parser: parser,
		store:  store,
		Logger: slog.Default(),
		now:    time.Now,
	}
}

// Run processes every task and returns one outcome per task, in input
// order. Tasks run concurrently up to cfg.Parallel workers; each worker
// only ever touches its own task's records, and the artifact store
// serializes file appends. After all tasks finish the final-round code is
// exported in benchmark evaluation format.
func (o *Orchestrator) Run(ctx context.Context, tasks []domain.Task) ([]domain.TaskOutcome, error) {
	o.Logger.Info("starting pipeline",
		"run_id", o.cfg.RunID,
		"tasks", len(tasks),
		"max_rounds", o.cfg.MaxRounds,
		"temperature", o.cfg.Temperature,
		"model", o.cfg.Model,
		"output_dir", o.store.Dir(),
	)

	if o.Index != nil {
		if err := o.Index.CreateRun(o.cfg, o.now()); err != nil {
			return nil, err
		}
	}

	outcomes := make([]domain.TaskOutcome, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	limit := o.cfg.Parallel
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, task := range tasks {
		g.Go(func() error {
			outcome := o.processTask(gctx, task)
			outcomes[i] = outcome
			if o.Index != nil {
				if err := o.Index.RecordOutcome(o.cfg.RunID, outcome); err != nil {
					o.Logger.Warn("recording outcome failed", "task", task.ID, "error", err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, err
	}

	if o.Index != nil {
		if err := o.Index.FinishRun(o.cfg.RunID, o.now()); err != nil {
			o.Logger.Warn("finishing run failed", "error", err)
		}
	}

	if path, count, err := o.store.ConvertEvalFormat(tasks); err != nil {
		o.Logger.Warn("eval conversion failed", "error", err)
	} else {
		o.Logger.Info("eval export written", "path", path, "tasks", count)
	}

	return outcomes, nil
}

// processTask runs one task through the full state machine:
// test generation, initial code generation, execution, then the repair
// loop. A generation failure before the first execution is terminal; a
// generation failure inside the repair loop only costs that round.
func (o *Orchestrator) processTask(ctx context.Context, task domain.Task) domain.TaskOutcome {
	log := o.Logger.With("task", task.ID)
	log.Info("processing task")

	// Step 1: generate and persist the test suite. Later stages work from
	// the persisted bytes, not the in-memory completion.
	tests, err := o.gen.GenerateTests(ctx, task, o.cfg.Temperature)
	if err != nil {
		log.Error("test generation failed", "error", err)
		return domain.TaskOutcome{TaskID: task.ID, Status: domain.StatusTestGenerationFailed, RoundsUsed: 0, Err: err.Error()}
	}
	if err := o.store.SaveInitialTests(artifacts.InitialTests{
		TaskID:         task.ID,
		Temperature:    o.cfg.Temperature,
		GeneratedTests: tests,
		Model:          o.cfg.Model,
		Stage:          domain.StageTestGeneration,
		Timestamp:      o.timestamp(),
	}); err != nil {
		log.Error("persisting tests failed", "error", err)
		return domain.TaskOutcome{TaskID: task.ID, Status: domain.StatusTestGenerationFailed, RoundsUsed: 0, Err: err.Error()}
	}
	if persisted, found, err := o.store.TestsForTask(task.ID); err == nil && found {
		tests = persisted
	}

	// Step 2: initial implementation against the persisted suite.
	code, err := o.gen.GenerateCode(ctx, task, tests, o.cfg.Temperature)
	if err != nil {
		log.Error("code generation failed", "error", err)
		return domain.TaskOutcome{TaskID: task.ID, Status: domain.StatusCodeGenerationFailed, RoundsUsed: 0, Err: err.Error()}
	}

	// Step 3: first execution round.
	result := o.runRound(ctx, task, code, tests, 1, domain.StageCodeGeneration)
	if result.Passing() {
		log.Info("all tests passed", "round", 1)
		o.finishTask(task.ID, 1, true, 1.0)
		return domain.TaskOutcome{TaskID: task.ID, Status: domain.StatusSuccess, RoundsUsed: 1, LastResult: result}
	}
	log.Info("tests failed", "round", 1, "failed", result.FailedTests, "total", result.TotalTests)

	// Step 4: repair loop, rounds 2..maxRounds+1.
	for round := 2; round <= o.cfg.MaxRounds+1; round++ {
		repaired, err := o.gen.GenerateRepair(ctx, task, tests, result, o.cfg.Temperature)
		if err != nil {
			// The round is spent but the loop goes on with the last result.
			log.Warn("repair generation failed", "round", round, "error", err)
			continue
		}

		result = o.runRound(ctx, task, repaired, tests, round, domain.StageCodeRepair)
		if result.Passing() {
			log.Info("repair successful", "round", round)
			o.finishTask(task.ID, round, true, 1.0)
			return domain.TaskOutcome{TaskID: task.ID, Status: domain.StatusSuccess, RoundsUsed: round, LastResult: result}
		}
		log.Info("repair did not pass", "round", round, "failed", result.FailedTests, "total", result.TotalTests)
	}

	roundsUsed := o.cfg.MaxRounds + 1
	log.Warn("round budget exhausted", "rounds_used", roundsUsed)
	o.finishTask(task.ID, roundsUsed, false, result.SuccessRate)
	return domain.TaskOutcome{TaskID: task.ID, Status: domain.StatusFailed, RoundsUsed: roundsUsed, LastResult: result}
}

// runRound executes one candidate against the suite and persists the
// round's result and code records
func (o *Orchestrator) runRound(ctx context.Context, task domain.Task, code, tests string, round int, stage domain.Stage) *domain.ExecutionResult {
	start := o.now()
	outcome := o.exec.Execute(ctx, code, tests)
	elapsed := o.now().Sub(start).Seconds()

	result := o.parser.Parse(outcome, task.ID, elapsed)

	if err := o.store.AppendRoundResult(artifacts.RoundResult{
		TaskID:           task.ID,
		Round:            round,
		Temperature:      o.cfg.Temperature,
		Result:           result,
		Model:            o.cfg.Model,
		Stage:            domain.StageTestExecution,
		ReadyForRepair:   result.ReadyForRepair,
		CanStopIteration: result.CanStopIteration,
		Timestamp:        o.timestamp(),
	}); err != nil {
		o.Logger.Warn("persisting round result failed", "task", task.ID, "round", round, "error", err)
	}

	if err := o.store.AppendRoundCode(artifacts.RoundCode{
		TaskID:        task.ID,
		Round:         round,
		Temperature:   o.cfg.Temperature,
		GeneratedCode: code,
		TestsSource:   artifacts.TestsSourceFile,
		Model:         o.cfg.Model,
		Stage:         stage,
		Timestamp:     o.timestamp(),
	}); err != nil {
		o.Logger.Warn("persisting round code failed", "task", task.ID, "round", round, "error", err)
	}

	if o.Index != nil {
		if err := o.Index.RecordRound(o.cfg.RunID, round, result); err != nil {
			o.Logger.Warn("indexing round failed", "task", task.ID, "round", round, "error", err)
		}
	}

	return result
}

// finishTask writes the task's terminal status record
func (o *Orchestrator) finishTask(taskID string, totalRounds int, success bool, rate float64) {
	status := domain.TaskFinalStatus{
		TaskID:           taskID,
		Temperature:      o.cfg.Temperature,
		TotalRounds:      totalRounds,
		FinalSuccess:     success,
		FinalSuccessRate: rate,
		CompletedAt:      o.timestamp(),
	}
	if err := o.store.WriteFinalStatus(status); err != nil {
		o.Logger.Warn("writing final status failed", "task", taskID, "error", err)
	}
}

func (o *Orchestrator) timestamp() string {
	return o.now().UTC().Format(time.RFC3339)
}
