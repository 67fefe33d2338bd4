package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZenWang00/llm-tdd-testtypekit/internal/domain"
)

func TestLoaderLoadEmbedded(t *testing.T) {
	loader := NewLoader() // No override dirs

	tmpl, meta, err := loader.LoadTemplate("tdd/test_generation.md")
	if err != nil {
		t.Fatalf("failed to load template: %v", err)
	}
	if tmpl == nil {
		t.Fatal("template should not be nil")
	}
	if meta == nil {
		t.Fatal("template should have frontmatter metadata")
	}
	if meta.ID != "test_generation" {
		t.Errorf("expected ID 'test_generation', got '%s'", meta.ID)
	}
}

func TestLoaderListTemplates(t *testing.T) {
	loader := NewLoader()

	metas, err := loader.ListTemplates()
	if err != nil {
		t.Fatalf("failed to list templates: %v", err)
	}
	if len(metas) != 3 {
		t.Fatalf("expected 3 templates, got %d", len(metas))
	}

	found := false
	for _, m := range metas {
		if m.ID == "repair" {
			found = true
			if m.Name != "Repair" {
				t.Errorf("expected Name 'Repair', got '%s'", m.Name)
			}
		}
	}
	if !found {
		t.Error("repair template not found in list")
	}
}

func TestBuildTestGenerationPrompt(t *testing.T) {
	loader := NewLoader()

	result, err := loader.BuildTestGenerationPrompt(TestGenerationData{
		Description:   "Write a function to add two numbers.",
		ReferenceCode: "def add(a, b):\n    return a + b",
	})
	if err != nil {
		t.Fatalf("failed to build prompt: %v", err)
	}

	checks := []string{
		"Write a function to add two numbers.",
		"def add(a, b):",
		"pytest.raises()",
	}
	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected result to contain %q", check)
		}
	}
}

func TestBuildImplementationPrompt(t *testing.T) {
	loader := NewLoader()

	result, err := loader.BuildImplementationPrompt(ImplementationData{
		Description:    "Write a function to add two numbers.",
		ReferenceCode:  "def add(a, b):\n    return a + b",
		GeneratedTests: "def test_add():\n    assert add(1, 2) == 3",
	})
	if err != nil {
		t.Fatalf("failed to build prompt: %v", err)
	}

	if !strings.Contains(result, "def test_add():") {
		t.Error("generated tests should be included in the prompt")
	}
	if !strings.Contains(result, "Return ONLY the function code") {
		t.Error("return instruction missing from prompt")
	}
}

func TestBuildRepairPrompt(t *testing.T) {
	loader := NewLoader()

	result := &domain.ExecutionResult{
		FailedDetails: []domain.FailedTest{
			{
				TestName:     "test_file.py::test_add_negative",
				Assertion:    "Test assertion",
				Expected:     "Test should pass",
				Actual:       "Failed with AssertionError",
				ErrorKind:    domain.ErrAssertion,
				ErrorMessage: "Assertion failed",
			},
		},
		ErrorSummary: "Failed tests: AssertionError: 1",
	}

	prompt, err := loader.BuildRepairPrompt(
		"Write a function to add two numbers.",
		"def add(a, b):\n    return a + b",
		"def test_add_negative():\n    assert add(-1, -1) == -2",
		result,
	)
	if err != nil {
		t.Fatalf("failed to build repair prompt: %v", err)
	}

	checks := []string{
		"Failed Tests (1) and Error Details:",
		"test_file.py::test_add_negative",
		"Error: AssertionError - Assertion failed",
		"Failed tests: AssertionError: 1",
	}
	for _, check := range checks {
		if !strings.Contains(prompt, check) {
			t.Errorf("expected prompt to contain %q", check)
		}
	}
}

func TestFormatFailedTests(t *testing.T) {
	failed := []domain.FailedTest{
		{TestName: "test_a", Assertion: "a", Expected: "e", Actual: "x", ErrorKind: domain.ErrType, ErrorMessage: "Type error occurred"},
		{TestName: "test_b", Assertion: "b", Expected: "e", Actual: "y", ErrorKind: domain.ErrValue, ErrorMessage: "Value error occurred"},
	}

	got := FormatFailedTests(failed)
	if !strings.Contains(got, "- test_a:") || !strings.Contains(got, "- test_b:") {
		t.Errorf("missing test entries:\n%s", got)
	}
	if strings.HasSuffix(got, "\n") {
		t.Error("formatted block should be trimmed")
	}
}

func TestLoaderOverride(t *testing.T) {
	tmpDir := t.TempDir()

	tddDir := filepath.Join(tmpDir, "tdd")
	if err := os.MkdirAll(tddDir, 0755); err != nil {
		t.Fatalf("failed to create override dir: %v", err)
	}

	customContent := `CUSTOM TEST PROMPT for: {{.Description}}`
	if err := os.WriteFile(filepath.Join(tddDir, "test_generation.md"), []byte(customContent), 0644); err != nil {
		t.Fatalf("failed to write override file: %v", err)
	}

	loader := NewLoader(tmpDir)

	result, err := loader.BuildTestGenerationPrompt(TestGenerationData{Description: "Sort a list."})
	if err != nil {
		t.Fatalf("failed to build prompt: %v", err)
	}
	if !strings.Contains(result, "CUSTOM TEST PROMPT") {
		t.Errorf("override was not used, got: %s", result)
	}
	if !strings.Contains(result, "Sort a list.") {
		t.Errorf("template substitution failed, got: %s", result)
	}
}

func TestLoaderFallbackToEmbedded(t *testing.T) {
	loader := NewLoader(t.TempDir())

	result, err := loader.BuildImplementationPrompt(ImplementationData{Description: "x"})
	if err != nil {
		t.Fatalf("failed to build prompt: %v", err)
	}
	if !strings.Contains(result, "You are a Python programmer.") {
		t.Errorf("should fall back to embedded template, got: %s", result)
	}
}

func TestLoaderCaching(t *testing.T) {
	loader := NewLoader()

	tmpl1, _, err := loader.LoadTemplate("tdd/repair.md")
	if err != nil {
		t.Fatalf("first load failed: %v", err)
	}
	tmpl2, _, err := loader.LoadTemplate("tdd/repair.md")
	if err != nil {
		t.Fatalf("second load failed: %v", err)
	}
	if tmpl1 != tmpl2 {
		t.Error("template should be cached and return same pointer")
	}

	loader.ClearCache()
	tmpl3, _, err := loader.LoadTemplate("tdd/repair.md")
	if err != nil {
		t.Fatalf("third load failed: %v", err)
	}
	if tmpl1 == tmpl3 {
		t.Error("template should be reloaded after cache clear")
	}
}
