package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/docrelay/markerd/internal/engine"
	"github.com/docrelay/markerd/internal/gemini"
	"github.com/docrelay/markerd/internal/ollama"
	"github.com/docrelay/markerd/internal/providers"
)

// imageFormats maps accepted input extensions to the MIME subtype passed to
// the provider. The vision engine handles images only.
var imageFormats = map[string]string{
	".jpg":  "jpeg",
	".jpeg": "jpeg",
	".png":  "png",
	".webp": "webp",
	".bmp":  "bmp",
	".tif":  "tiff",
	".tiff": "tiff",
}

// Service converts single images by transcribing them with a vision-capable
// LLM and wrapping the response into the same result shape the Marker
// engine produces.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

func (s *Service) Name() string { return "vision" }

// Available is always true; a missing provider or key surfaces as a
// per-conversion failure rather than an engine outage.
func (s *Service) Available() bool { return true }

// Supports reports whether the vision engine can handle the given filename.
func Supports(filename string) bool {
	_, ok := imageFormats[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Convert transcribes the input image and writes the text as a markdown
// artifact (or a Marker-compatible JSON document when JSON was requested).
func (s *Service) Convert(ctx context.Context, req engine.Request) engine.Result {
	format, ok := imageFormats[strings.ToLower(filepath.Ext(req.InputPath))]
	if !ok {
		return engine.Result{Error: fmt.Sprintf("unsupported file type for vision OCR: %s", filepath.Ext(req.InputPath))}
	}

	data, err := os.ReadFile(req.InputPath)
	if err != nil {
		return engine.Result{Error: fmt.Sprintf("failed to read image: %v", err)}
	}
	if err := os.MkdirAll(req.OutputDir, 0755); err != nil {
		return engine.Result{Error: fmt.Sprintf("failed to create output directory: %v", err)}
	}

	provider, model := s.pickProvider(req)

	cfg := providers.Config{
		Model:       model,
		Temperature: 0.0, // exact transcription
		Prompt:      transcriptionPrompt,
		Image:       data,
		ImageFormat: format,
		APIKey:      req.GeminiAPIKey,
		BaseURL:     req.OllamaURL,
	}

	text, err := provider.Transcribe(ctx, cfg)
	if err != nil {
		return engine.Result{Error: fmt.Sprintf("vision OCR failed: %v", err)}
	}
	slog.Info("Transcribed image", "provider", req.LLMProvider, "model", model, "length", len(text))

	base := strings.TrimSuffix(filepath.Base(req.InputPath), filepath.Ext(req.InputPath))
	artifact, kind, err := writeArtifact(req.OutputDir, base, req.Format, text)
	if err != nil {
		return engine.Result{Error: err.Error()}
	}

	return engine.Result{
		Success:     true,
		Text:        text,
		OutputFiles: map[string]string{kind: artifact},
	}
}

func (s *Service) pickProvider(req engine.Request) (providers.Provider, string) {
	switch req.LLMProvider {
	case "gemini":
		model := req.GeminiModel
		if model == "" {
			model = os.Getenv("GEMINI_MODEL")
		}
		if model == "" {
			model = "gemini-1.5-flash"
		}
		return gemini.New(), model
	default:
		model := req.OllamaModel
		if model == "" {
			model = os.Getenv("OLLAMA_MODEL")
		}
		if model == "" {
			model = "gemma3:12b"
		}
		return ollama.New(), model
	}
}

// writeArtifact persists the transcription in the requested format.
// Only markdown and JSON have vision renditions; anything else falls back
// to markdown.
func writeArtifact(outputDir, base, format, text string) (string, string, error) {
	if format == engine.KindJSON {
		path := filepath.Join(outputDir, base+".json")
		doc, err := json.MarshalIndent(map[string]string{"text": text}, "", "  ")
		if err != nil {
			return "", "", fmt.Errorf("failed to encode JSON artifact: %w", err)
		}
		if err := os.WriteFile(path, doc, 0644); err != nil {
			return "", "", fmt.Errorf("failed to write JSON artifact: %w", err)
		}
		return path, engine.KindJSON, nil
	}

	path := filepath.Join(outputDir, base+".md")
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return "", "", fmt.Errorf("failed to write markdown artifact: %w", err)
	}
	return path, engine.KindMarkdown, nil
}

const transcriptionPrompt = `You are performing OCR (Optical Character Recognition) on a document image.

Your task is to extract ALL visible text from the image exactly as it appears, preserving:
- Line breaks and formatting
- Capitalization
- Punctuation
- Special characters
- Order of text elements

INSTRUCTIONS:
1. Read the image carefully from top to bottom
2. Transcribe every piece of visible text
3. Preserve the original line breaks
4. Do not add any interpretation, commentary, or explanations
5. Do not skip any text, no matter how small or decorative
6. If text is partially obscured or unclear, transcribe what you can see and use [?] for illegible portions

OUTPUT FORMAT:
Provide ONLY the extracted text. Do not include phrases like "Here is the text:" or "The image contains:".
Start immediately with the transcribed text from the document.`
