package generation

import (
	"context"
	"fmt"

	"github.com/ZenWang00/llm-tdd-testtypekit/internal/domain"
	"github.com/ZenWang00/llm-tdd-testtypekit/internal/prompts"
)

// Service builds prompts, requests completions and post-processes the
// responses into Python source
type Service struct {
	client Client
	loader *prompts.Loader
}

// NewService wires a completion client to a prompt loader
func NewService(client Client, loader *prompts.Loader) *Service {
	return &Service{client: client, loader: loader}
}

// GenerateTests produces a pytest suite for the task
func (s *Service) GenerateTests(ctx context.Context, task domain.Task, temperature float32) (string, error) {
	prompt, err := s.loader.BuildTestGenerationPrompt(prompts.TestGenerationData{
		Description:   task.Description,
		ReferenceCode: task.ReferenceCode,
	})
	if err != nil {
		return "", fmt.Errorf("building test generation prompt: %w", err)
	}

	completion, err := s.client.Complete(ctx, prompt, temperature)
	if err != nil {
		return "", fmt.Errorf("generating tests: %w", err)
	}
	return ExtractCode(completion), nil
}

// GenerateCode produces an initial implementation against the persisted
// test suite
func (s *Service) GenerateCode(ctx context.Context, task domain.Task, tests string, temperature float32) (string, error) {
	prompt, err := s.loader.BuildImplementationPrompt(prompts.ImplementationData{
		Description:    task.Description,
		ReferenceCode:  task.ReferenceCode,
		GeneratedTests: tests,
	})
	if err != nil {
		return "", fmt.Errorf("building implementation prompt: %w", err)
	}

	completion, err := s.client.Complete(ctx, prompt, temperature)
	if err != nil {
		return "", fmt.Errorf("generating code: %w", err)
	}
	return ExtractCode(completion), nil
}

// GenerateRepair produces a new implementation from the failure evidence
// of the last round
func (s *Service) GenerateRepair(ctx context.Context, task domain.Task, tests string, result *domain.ExecutionResult, temperature float32) (string, error) {
	prompt, err := s.loader.BuildRepairPrompt(task.Description, task.ReferenceCode, tests, result)
	if err != nil {
		return "", fmt.Errorf("building repair prompt: %w", err)
	}

	completion, err := s.client.Complete(ctx, prompt, temperature)
	if err != nil {
		return "", fmt.Errorf("generating repair: %w", err)
	}
	return ExtractCode(completion), nil
}
