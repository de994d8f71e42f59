package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/docrelay/markerd/internal/render"
)

// lookPath is the exec.LookPath implementation used by Available.
// Tests may replace it to simulate a missing Marker binary.
var lookPath = exec.LookPath

// Marker shells out to the marker_single CLI and normalizes whatever it
// writes on disk into a Result.
type Marker struct {
	Binary   string
	Timeout  time.Duration
	Renderer *render.Renderer
}

func NewMarker(binary string, timeout time.Duration, renderer *render.Renderer) *Marker {
	if binary == "" {
		binary = "marker_single"
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Marker{Binary: binary, Timeout: timeout, Renderer: renderer}
}

func (m *Marker) Name() string { return "marker" }

// Available reports whether the Marker CLI is on PATH.
func (m *Marker) Available() bool {
	_, err := lookPath(m.Binary)
	return err == nil
}

// markerFormat maps the requested format to the one passed to the CLI.
// PDF output is produced by post-processing markdown, Marker itself has no
// PDF writer.
func markerFormat(format string) string {
	switch format {
	case KindJSON, KindHTML:
		return format
	default:
		return KindMarkdown
	}
}

// buildArgs translates a Request into the marker_single argument list.
func (m *Marker) buildArgs(req Request) []string {
	args := []string{req.InputPath, "--output_dir", req.OutputDir}
	args = append(args, "--output_format", markerFormat(req.Format))

	if !req.ExtractImages {
		args = append(args, "--disable_image_extraction")
	}
	if req.MaxPages > 0 {
		args = append(args, "--page_range", fmt.Sprintf("0-%d", req.MaxPages-1))
	}
	if req.UseLLM {
		args = append(args, "--use_llm")
		switch req.LLMProvider {
		case "gemini":
			args = append(args, "--llm_service", "marker.services.gemini.GoogleGeminiService")
			if req.GeminiAPIKey != "" {
				args = append(args, "--GoogleGeminiService_gemini_api_key", req.GeminiAPIKey)
			}
			if req.GeminiModel != "" {
				args = append(args, "--GoogleGeminiService_gemini_model_name", req.GeminiModel)
			}
		default:
			args = append(args, "--llm_service", "marker.services.ollama.OllamaService")
			if req.OllamaURL != "" {
				args = append(args, "--OllamaService_ollama_base_url", req.OllamaURL)
			}
			if req.OllamaModel != "" {
				args = append(args, "--OllamaService_ollama_model", req.OllamaModel)
			}
		}
	}

	return args
}

// Convert runs the Marker CLI on one input file, locates whatever it wrote,
// post-processes to PDF when asked to, and trims artifacts the caller did
// not request.
func (m *Marker) Convert(ctx context.Context, req Request) Result {
	if !m.Available() {
		return Result{Error: fmt.Sprintf("Marker CLI %q is not installed or not on PATH", m.Binary)}
	}
	if err := os.MkdirAll(req.OutputDir, 0755); err != nil {
		return Result{Error: fmt.Sprintf("failed to create output directory: %v", err)}
	}

	runCtx, cancel := context.WithTimeout(ctx, m.Timeout)
	defer cancel()

	args := m.buildArgs(req)
	cmd := exec.CommandContext(runCtx, m.Binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	slog.Info("Running Marker CLI", "binary", m.Binary, "input", filepath.Base(req.InputPath), "format", req.Format)

	if err := cmd.Run(); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return Result{Error: fmt.Sprintf("%v after %s", ErrTimeout, m.Timeout)}
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return Result{Error: "Marker CLI failed: " + msg}
	}

	base := strings.TrimSuffix(filepath.Base(req.InputPath), filepath.Ext(req.InputPath))
	found := Locate(req.OutputDir, base)

	if len(found) == 0 {
		path, err := Placeholder(req.OutputDir, base, markerFormat(req.Format))
		if err != nil {
			return Result{Error: err.Error()}
		}
		slog.Warn("No engine output located, synthesized placeholder", "path", path)
		found[markerFormat(req.Format)] = path
	}

	text := extractText(found)
	images := LocateImages(req.OutputDir, base)

	if req.Format == KindPDF {
		if pdfPath := m.renderPDF(found, req.OutputDir, base); pdfPath != "" {
			found[KindPDF] = pdfPath
		}
	}

	images, found = CleanupUnrequested(found, images, req.Format, req.ExtractImages, req.InputPath)

	return Result{
		Success:     true,
		Text:        text,
		OutputFiles: found,
		Images:      images,
	}
}

// renderPDF produces a PDF from the HTML artifact when present, otherwise
// from markdown via an intermediate HTML document. A missing renderer is
// logged, not fatal: the caller still gets the source artifacts.
func (m *Marker) renderPDF(found map[string]string, outputDir, base string) string {
	if m.Renderer == nil || !m.Renderer.Available() {
		slog.Warn("HTML renderer unavailable, skipping PDF generation")
		return ""
	}

	htmlPath := found[KindHTML]
	if htmlPath == "" {
		mdPath := found[KindMarkdown]
		if mdPath == "" {
			return ""
		}
		var err error
		htmlPath, err = render.MarkdownToHTML(mdPath, outputDir, base)
		if err != nil {
			slog.Error("Markdown to HTML conversion failed", "err", err)
			return ""
		}
		found[KindHTML] = htmlPath
	}

	pdfPath, err := m.Renderer.HTMLToPDF(htmlPath, outputDir, base)
	if err != nil {
		slog.Error("PDF generation failed", "err", err)
		return ""
	}
	slog.Info("PDF generated", "path", filepath.Base(pdfPath))
	return pdfPath
}

// extractText pulls the document text out of the located artifacts: the
// markdown body when present, else the "text" field of the JSON output.
func extractText(found map[string]string) string {
	if path := found[KindMarkdown]; path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return string(data)
		}
		slog.Warn("Failed to read markdown artifact", "path", path, "err", err)
	}
	if path := found[KindJSON]; path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("Failed to read JSON artifact", "path", path, "err", err)
			return ""
		}
		var doc struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(data, &doc); err == nil {
			return doc.Text
		}
	}
	return ""
}
