package engine

import (
	"context"
	"errors"
)

// Artifact kinds produced by a conversion.
const (
	KindMarkdown = "markdown"
	KindJSON     = "json"
	KindHTML     = "html"
	KindPDF      = "pdf"
)

// ErrTimeout marks an engine invocation that exceeded its deadline.
// It is surfaced as a failure reason distinct from a generic engine error.
var ErrTimeout = errors.New("conversion timed out")

// Request describes one conversion of a single input file.
type Request struct {
	InputPath     string
	OutputDir     string
	Format        string // markdown, json, html or pdf
	ExtractImages bool
	MaxPages      int // 0 means all pages

	UseLLM       bool
	LLMProvider  string // ollama or gemini
	OllamaURL    string
	OllamaModel  string
	GeminiAPIKey string
	GeminiModel  string
}

// Result is the normalized outcome of a conversion, regardless of which
// engine produced it.
type Result struct {
	Success     bool
	Text        string
	OutputFiles map[string]string // artifact kind -> path
	Images      []string
	Error       string
}

// ValidFormat reports whether format is an accepted output format.
func ValidFormat(format string) bool {
	switch format {
	case KindMarkdown, KindJSON, KindHTML, KindPDF:
		return true
	}
	return false
}

// Engine converts one document into the requested output format.
type Engine interface {
	Name() string
	Available() bool
	Convert(ctx context.Context, req Request) Result
}
