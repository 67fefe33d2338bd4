package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/ZenWang00/llm-tdd-testtypekit/internal/artifacts"
	"github.com/ZenWang00/llm-tdd-testtypekit/internal/config"
	"github.com/ZenWang00/llm-tdd-testtypekit/internal/domain"
	"github.com/ZenWang00/llm-tdd-testtypekit/internal/experiment"
	"github.com/ZenWang00/llm-tdd-testtypekit/internal/generation"
	"github.com/ZenWang00/llm-tdd-testtypekit/internal/orchestrator"
	"github.com/ZenWang00/llm-tdd-testtypekit/internal/problems"
	"github.com/ZenWang00/llm-tdd-testtypekit/internal/prompts"
	"github.com/ZenWang00/llm-tdd-testtypekit/internal/results"
	"github.com/ZenWang00/llm-tdd-testtypekit/internal/runstore"
	"github.com/ZenWang00/llm-tdd-testtypekit/internal/sandbox"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const version = "0.3.0"

var (
	problemFile string
	numTasks    int
	startTask   int
	maxRounds   int
	temperature float32
	model       string
	outputDir   string
	parallel    int
)

func init() {
	// run command
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the repair pipeline over a range of tasks",
		RunE:  runRun,
	}
	runCmd.Flags().StringVar(&problemFile, "problem-file", "", "problem JSONL file path")
	runCmd.Flags().IntVar(&numTasks, "num-tasks", 10, "number of tasks to process")
	runCmd.Flags().IntVar(&startTask, "start-task", 0, "starting task index")
	runCmd.Flags().IntVar(&maxRounds, "max-rounds", 3, "maximum repair rounds")
	runCmd.Flags().Float32Var(&temperature, "temperature", 0.1, "sampling temperature")
	runCmd.Flags().StringVar(&model, "model", "gpt-4o-mini", "model to use")
	runCmd.Flags().StringVar(&outputDir, "output-dir", "", "output directory (default: timestamped)")
	runCmd.Flags().IntVar(&parallel, "parallel", 1, "tasks processed concurrently")
	runCmd.MarkFlagRequired("problem-file")
	rootCmd.AddCommand(runCmd)

	// status command
	statusCmd := &cobra.Command{
		Use:   "status RUN_ID",
		Short: "Show the outcome summary for a run",
		Args:  cobra.ExactArgs(1),
		RunE:  runStatus,
	}
	rootCmd.AddCommand(statusCmd)

	// convert command
	convertCmd := &cobra.Command{
		Use:   "convert",
		Short: "Export final-round code in benchmark evaluation format",
		RunE:  runConvert,
	}
	convertCmd.Flags().StringVar(&problemFile, "problem-file", "", "problem JSONL file path")
	convertCmd.Flags().IntVar(&numTasks, "num-tasks", 10, "number of tasks")
	convertCmd.Flags().IntVar(&startTask, "start-task", 0, "starting task index")
	convertCmd.Flags().StringVar(&outputDir, "output-dir", "", "run output directory")
	convertCmd.MarkFlagRequired("problem-file")
	convertCmd.MarkFlagRequired("output-dir")
	rootCmd.AddCommand(convertCmd)

	// schedule command
	scheduleCmd := &cobra.Command{
		Use:   "schedule SCHEDULE_FILE",
		Short: "Run scheduled parameter experiments",
		Args:  cobra.ExactArgs(1),
		RunE:  runSchedule,
	}
	rootCmd.AddCommand(scheduleCmd)

	// version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tdd-orch %s\n", version)
		},
	}
	rootCmd.AddCommand(versionCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

// executePipeline assembles the pipeline for one run configuration and
// processes its task range
func executePipeline(cfg *config.Config, runCfg domain.RunConfig) ([]domain.TaskOutcome, error) {
	ctx := rootCmd.Context()

	tasks, err := problems.Load(runCfg.ProblemFile, runCfg.StartTask, runCfg.NumTasks)
	if err != nil {
		return nil, fmt.Errorf("loading problems: %w", err)
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("no tasks in range (start %d, count %d)", runCfg.StartTask, runCfg.NumTasks)
	}

	store, err := artifacts.NewStore(runCfg.OutputDir)
	if err != nil {
		return nil, err
	}

	client, err := generation.NewOpenAIClient(runCfg.Model)
	if err != nil {
		return nil, err
	}
	svc := generation.NewService(client, prompts.DefaultLoader(""))

	sb := sandbox.New(cfg.Timeout())
	if cfg.Sandbox.PytestBin != "" {
		runner := sandbox.NewPytestRunner()
		runner.PytestBin = cfg.Sandbox.PytestBin
		sb.Runner = runner
	}

	parser := results.NewParser(sandbox.ProbeToolVersions(ctx))

	orch := orchestrator.New(runCfg, svc, sb, parser, store)
	if index, err := openIndex(cfg); err != nil {
		slog.Warn("run index unavailable", "error", err)
	} else {
		orch.Index = index
		defer index.Close()
	}

	return orch.Run(ctx, tasks)
}

func openIndex(cfg *config.Config) (*runstore.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.General.DatabasePath), 0755); err != nil {
		return nil, err
	}
	return runstore.New(cfg.General.DatabasePath)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if outputDir == "" {
		timestamp := time.Now().Format("20060102_150405")
		name := fmt.Sprintf("mbpp_iterative_repair_%dtasks_%drounds_T%g_%s", numTasks, maxRounds, temperature, timestamp)
		outputDir = filepath.Join(cfg.General.OutputBaseDir, name)
	}

	runCfg := domain.RunConfig{
		RunID:       uuid.NewString(),
		ProblemFile: problemFile,
		NumTasks:    numTasks,
		StartTask:   startTask,
		MaxRounds:   maxRounds,
		Temperature: temperature,
		Model:       model,
		OutputDir:   outputDir,
		Parallel:    parallel,
	}

	outcomes, err := executePipeline(cfg, runCfg)
	if err != nil {
		return err
	}

	printOutcomes(runCfg.RunID, outcomes)
	return nil
}

func printOutcomes(runID string, outcomes []domain.TaskOutcome) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tSTATUS\tROUNDS")
	var succeeded int
	for _, o := range outcomes {
		fmt.Fprintf(w, "%s\t%s\t%d\n", o.TaskID, o.Status, o.RoundsUsed)
		if o.Status == domain.StatusSuccess {
			succeeded++
		}
	}
	w.Flush()
	fmt.Printf("\nRun %s: %d/%d tasks succeeded\n", runID, succeeded, len(outcomes))
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	index, err := runstore.New(cfg.General.DatabasePath)
	if err != nil {
		return err
	}
	defer index.Close()

	runID := args[0]
	summary, err := index.Summarize(runID)
	if err != nil {
		return err
	}
	if summary.Total == 0 {
		return fmt.Errorf("no outcomes recorded for run %s", runID)
	}

	fmt.Printf("Run %s: %d tasks | %d succeeded | %d failed | %d test-gen failures | %d code-gen failures | %.1f avg rounds\n",
		summary.RunID, summary.Total, summary.Succeeded, summary.Failed,
		summary.TestGenFailures, summary.CodeGenFailures, summary.AverageRoundsUsed)

	outcomes, err := index.ListOutcomes(runID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tSTATUS\tROUNDS\tERROR")
	for _, o := range outcomes {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", o.TaskID, o.Status, o.RoundsUsed, o.Err)
	}
	return w.Flush()
}

func runConvert(cmd *cobra.Command, args []string) error {
	tasks, err := problems.Load(problemFile, startTask, numTasks)
	if err != nil {
		return fmt.Errorf("loading problems: %w", err)
	}

	store, err := artifacts.NewStore(outputDir)
	if err != nil {
		return err
	}

	path, count, err := store.ConvertEvalFormat(tasks)
	if err != nil {
		return err
	}

	fmt.Printf("Converted %d tasks to %s\n", count, path)
	return nil
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	schedule, err := experiment.LoadScheduleConfig(args[0])
	if err != nil {
		return err
	}
	if len(schedule.Experiments) == 0 {
		return fmt.Errorf("no experiments defined in %s", args[0])
	}

	sched, err := experiment.NewScheduler(schedule.Experiments)
	if err != nil {
		return err
	}

	for _, name := range sched.ListExperiments() {
		slog.Info("experiment scheduled", "experiment", name, "next_run", sched.NextRun(name))
	}

	sched.Start(func(exp experiment.ExperimentConfig) error {
		slog.Info("starting experiment", "experiment", exp.Name, "temperatures", exp.Temperatures)
		// One sequential pipeline invocation per temperature.
		for _, runCfg := range exp.RunConfigs(cfg.General.OutputBaseDir, time.Now()) {
			outcomes, err := executePipeline(cfg, runCfg)
			if err != nil {
				return err
			}
			printOutcomes(runCfg.RunID, outcomes)
		}
		return nil
	})
	return nil
}
