package generation

import "strings"

// ExtractCode strips a markdown code fence from a completion. The model is
// told to return bare code but regularly wraps it anyway; both "```python"
// and plain "```" fences are handled, with or without a closing fence.
// Completions without a fence pass through trimmed.
func ExtractCode(completion string) string {
	completion = strings.TrimSpace(completion)

	for _, marker := range []string{"```python", "```"} {
		start := strings.Index(completion, marker)
		if start == -1 {
			continue
		}
		start += len(marker)
		rest := completion[start:]
		if end := strings.Index(rest, "```"); end != -1 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}

	return completion
}
