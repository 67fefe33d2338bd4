package prompts

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"github.com/ZenWang00/llm-tdd-testtypekit/internal/domain"
	"gopkg.in/yaml.v3"
)

// Loader manages prompt templates with override support.
type Loader struct {
	overrideDirs []string // Directories to check for overrides (in priority order)
	cache        map[string]*template.Template
	metaCache    map[string]*TemplateMeta
	mu           sync.RWMutex
}

// TemplateMeta holds frontmatter metadata for prompt templates.
type TemplateMeta struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// NewLoader creates a loader with the given override directories.
// Directories are checked in order; first match wins.
func NewLoader(overrideDirs ...string) *Loader {
	return &Loader{
		overrideDirs: overrideDirs,
		cache:        make(map[string]*template.Template),
		metaCache:    make(map[string]*TemplateMeta),
	}
}

// DefaultLoader creates a loader with standard override paths:
// 1. Project-local: .tdd-orch/prompts/
// 2. User config: ~/.config/tdd-orch/prompts/
func DefaultLoader(projectRoot string) *Loader {
	home, _ := os.UserHomeDir()
	dirs := []string{}

	if projectRoot != "" {
		dirs = append(dirs, filepath.Join(projectRoot, ".tdd-orch", "prompts"))
	}
	dirs = append(dirs, filepath.Join(home, ".config", "tdd-orch", "prompts"))

	return NewLoader(dirs...)
}

// loadContent loads raw content from override dirs or embedded FS.
func (l *Loader) loadContent(path string) ([]byte, error) {
	// Check override directories first
	for _, dir := range l.overrideDirs {
		fullPath := filepath.Join(dir, path)
		if data, err := os.ReadFile(fullPath); err == nil {
			return data, nil
		}
	}

	// Fall back to embedded
	return fs.ReadFile(embeddedFS, path)
}

// parseFrontmatter splits content into frontmatter and body.
func parseFrontmatter(content []byte) (*TemplateMeta, string, error) {
	str := string(content)

	// Check for frontmatter delimiter
	if !strings.HasPrefix(str, "---\n") {
		return nil, str, nil // No frontmatter
	}

	// Find closing delimiter
	end := strings.Index(str[4:], "\n---\n")
	if end == -1 {
		return nil, str, nil // Malformed, treat as no frontmatter
	}

	frontmatter := str[4 : 4+end]
	body := str[4+end+5:] // Skip closing "---\n"

	var meta TemplateMeta
	if err := yaml.Unmarshal([]byte(frontmatter), &meta); err != nil {
		return nil, "", fmt.Errorf("parse frontmatter: %w", err)
	}

	return &meta, body, nil
}

// LoadTemplate loads and parses a template by path (e.g., "tdd/repair.md").
func (l *Loader) LoadTemplate(path string) (*template.Template, *TemplateMeta, error) {
	l.mu.RLock()
	if tmpl, ok := l.cache[path]; ok {
		meta := l.metaCache[path]
		l.mu.RUnlock()
		return tmpl, meta, nil
	}
	l.mu.RUnlock()

	content, err := l.loadContent(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", path, err)
	}

	meta, body, err := parseFrontmatter(content)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}

	tmpl, err := template.New(path).Parse(body)
	if err != nil {
		return nil, nil, fmt.Errorf("compile template %s: %w", path, err)
	}

	l.mu.Lock()
	l.cache[path] = tmpl
	l.metaCache[path] = meta
	l.mu.Unlock()

	return tmpl, meta, nil
}

// Execute loads and executes a template with the given data.
func (l *Loader) Execute(path string, data interface{}) (string, error) {
	tmpl, _, err := l.LoadTemplate(path)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute %s: %w", path, err)
	}

	return buf.String(), nil
}

// ListTemplates returns metadata for all embedded prompt templates.
func (l *Loader) ListTemplates() ([]*TemplateMeta, error) {
	entries, err := fs.ReadDir(embeddedFS, "tdd")
	if err != nil {
		return nil, err
	}

	var result []*TemplateMeta
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join("tdd", entry.Name())
		_, meta, err := l.LoadTemplate(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		if meta != nil {
			result = append(result, meta)
		}
	}

	return result, nil
}

// TestGenerationData holds template variables for the test generation prompt.
type TestGenerationData struct {
	Description   string
	ReferenceCode string
}

// ImplementationData holds template variables for the implementation prompt.
type ImplementationData struct {
	Description    string
	ReferenceCode  string
	GeneratedTests string
}

// RepairData holds template variables for the repair prompt.
type RepairData struct {
	Description   string
	ReferenceCode string
	AllTests      string
	FailedCount   int
	FailedTests   string
	Traceback     string
}

// BuildTestGenerationPrompt loads and executes the test generation template.
func (l *Loader) BuildTestGenerationPrompt(data TestGenerationData) (string, error) {
	return l.Execute("tdd/test_generation.md", data)
}

// BuildImplementationPrompt loads and executes the implementation template.
func (l *Loader) BuildImplementationPrompt(data ImplementationData) (string, error) {
	return l.Execute("tdd/implementation.md", data)
}

// BuildRepairPrompt loads and executes the repair template with formatted
// failure evidence from the last execution result.
func (l *Loader) BuildRepairPrompt(description, referenceCode, allTests string, result *domain.ExecutionResult) (string, error) {
	return l.Execute("tdd/repair.md", RepairData{
		Description:   description,
		ReferenceCode: referenceCode,
		AllTests:      allTests,
		FailedCount:   len(result.FailedDetails),
		FailedTests:   FormatFailedTests(result.FailedDetails),
		Traceback:     result.ErrorSummary,
	})
}

// FormatFailedTests renders per-test failure evidence as a bullet list for
// the repair prompt
func FormatFailedTests(failed []domain.FailedTest) string {
	var b strings.Builder
	for _, test := range failed {
		fmt.Fprintf(&b, "- %s:\n", test.TestName)
		fmt.Fprintf(&b, "  Assertion: %s\n", test.Assertion)
		fmt.Fprintf(&b, "  Expected: %s\n", test.Expected)
		fmt.Fprintf(&b, "  Actual: %s\n", test.Actual)
		fmt.Fprintf(&b, "  Error: %s - %s\n\n", test.ErrorKind, test.ErrorMessage)
	}
	return strings.TrimSpace(b.String())
}

// ClearCache clears the template cache (useful for development/testing).
func (l *Loader) ClearCache() {
	l.mu.Lock()
	l.cache = make(map[string]*template.Template)
	l.metaCache = make(map[string]*TemplateMeta)
	l.mu.Unlock()
}
