package sandbox

import "strings"

// Sanitizer rewrites generated test text before execution. Sanitizers are
// composable; each must be idempotent so applying the chain twice yields
// the same text.
type Sanitizer func(string) string

// placeholderModule is the imaginary module name models sometimes import
// from when no real module exists to import.
const placeholderModule = "your_module"

// StripPlaceholderImports removes lines that import from the placeholder
// module. The combined unit defines everything in one file, so such
// imports can only fail.
func StripPlaceholderImports(tests string) string {
	lines := strings.Split(tests, "\n")
	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.Contains(line, "from "+placeholderModule+" import"):
		case strings.Contains(line, "import "+placeholderModule):
		case strings.HasPrefix(trimmed, "from ") && strings.Contains(trimmed, "import") && strings.Contains(trimmed, placeholderModule):
		default:
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// DefaultSanitizers returns the standard sanitizer chain
func DefaultSanitizers() []Sanitizer {
	return []Sanitizer{StripPlaceholderImports}
}

// applySanitizers runs the chain in order
func applySanitizers(tests string, sanitizers []Sanitizer) string {
	for _, s := range sanitizers {
		tests = s(tests)
	}
	return tests
}
