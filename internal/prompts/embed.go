// Package prompts provides externalized prompt templates with override support.
package prompts

import "embed"

//go:embed tdd/*.md
var embeddedFS embed.FS
