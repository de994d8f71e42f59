package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/docrelay/markerd/internal/engine"
	"github.com/docrelay/markerd/internal/jobs"
	"github.com/docrelay/markerd/internal/models"
	"github.com/docrelay/markerd/internal/vision"
	"github.com/google/uuid"
)

const maxUploadMemory = 64 << 20

// convertOptions are the validated conversion parameters shared by the
// synchronous and background endpoints.
type convertOptions struct {
	OutputFormat  string
	Engine        string
	ExtractImages bool
	MaxPages      int
	UseLLM        bool
	LLMProvider   string
	OllamaURL     string
	OllamaModel   string
	GeminiAPIKey  string
	GeminiModel   string
}

// parseConvertOptions validates form fields before any background work
// starts. Invalid parameters are rejected synchronously with a 4xx.
func (h *Handler) parseConvertOptions(r *http.Request) (convertOptions, error) {
	opts := convertOptions{
		OutputFormat:  "markdown",
		Engine:        "marker",
		ExtractImages: true,
		LLMProvider:   h.cfg.LLM.Provider,
		OllamaURL:     h.cfg.LLM.OllamaURL,
		OllamaModel:   h.cfg.LLM.OllamaModel,
		GeminiModel:   h.cfg.LLM.GeminiModel,
	}

	if v := r.FormValue("output_format"); v != "" {
		if !engine.ValidFormat(v) {
			return opts, fmt.Errorf("invalid output_format %q; must be markdown, json, html or pdf", v)
		}
		opts.OutputFormat = v
	}

	if v := r.FormValue("engine"); v != "" {
		if _, ok := h.engines[v]; !ok {
			return opts, fmt.Errorf("unknown engine %q; must be marker or vision", v)
		}
		opts.Engine = v
	}

	opts.ExtractImages = formBool(r.FormValue("extract_images"), true)
	opts.UseLLM = formBool(r.FormValue("use_llm"), false)

	if v := strings.TrimSpace(r.FormValue("max_pages")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return opts, fmt.Errorf("invalid max_pages value %q; must be a positive number", v)
		}
		opts.MaxPages = n
	}

	if v := r.FormValue("llm_provider"); v != "" {
		if v != "ollama" && v != "gemini" {
			return opts, fmt.Errorf("invalid llm_provider %q; must be ollama or gemini", v)
		}
		opts.LLMProvider = v
	}
	if v := r.FormValue("ollama_url"); v != "" {
		opts.OllamaURL = v
	}
	if v := r.FormValue("ollama_model"); v != "" {
		opts.OllamaModel = v
	}
	if v := r.FormValue("gemini_api_key"); v != "" {
		opts.GeminiAPIKey = v
	}
	if v := r.FormValue("gemini_model"); v != "" {
		opts.GeminiModel = v
	}

	return opts, nil
}

// settings builds the session settings snapshot. Secrets are redacted
// before the snapshot is stored or echoed.
func (o convertOptions) settings() models.Settings {
	key := ""
	if o.GeminiAPIKey != "" {
		key = "***"
	}
	return models.Settings{
		OutputFormat:  o.OutputFormat,
		Engine:        o.Engine,
		UseLLM:        o.UseLLM,
		LLMProvider:   o.LLMProvider,
		ExtractImages: o.ExtractImages,
		MaxPages:      o.MaxPages,
		OllamaURL:     o.OllamaURL,
		OllamaModel:   o.OllamaModel,
		GeminiAPIKey:  key,
		GeminiModel:   o.GeminiModel,
	}
}

// request builds the engine request template for one session directory.
func (o convertOptions) request(outputDir string) engine.Request {
	return engine.Request{
		OutputDir:     outputDir,
		Format:        o.OutputFormat,
		ExtractImages: o.ExtractImages,
		MaxPages:      o.MaxPages,
		UseLLM:        o.UseLLM,
		LLMProvider:   o.LLMProvider,
		OllamaURL:     o.OllamaURL,
		OllamaModel:   o.OllamaModel,
		GeminiAPIKey:  o.GeminiAPIKey,
		GeminiModel:   o.GeminiModel,
	}
}

// HandleUpload accepts a multipart batch, persists the file bytes, registers
// the session and schedules the background batch. The response returns
// before any conversion begins.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		h.writeError(w, "Failed to parse upload: "+err.Error(), http.StatusBadRequest)
		return
	}

	uploads := r.MultipartForm.File["files"]
	if len(uploads) == 0 {
		uploads = r.MultipartForm.File["file"]
	}
	if len(uploads) == 0 {
		h.writeError(w, "No files uploaded", http.StatusBadRequest)
		return
	}

	opts, err := h.parseConvertOptions(r)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if opts.Engine == "vision" {
		for _, fh := range uploads {
			if !vision.Supports(fh.Filename) {
				h.writeError(w, fmt.Sprintf("unsupported file type for the vision engine: %s", fh.Filename), http.StatusBadRequest)
				return
			}
		}
	}

	sessionID := uuid.New().String()
	sessionDir := h.sessionDir(sessionID)

	// Register the session before writing any bytes so a concurrent
	// retention sweep cannot evict the directory mid-upload.
	session := models.Session{
		ID:         sessionID,
		Status:     models.StatusProcessing,
		TotalFiles: len(uploads),
		Files:      []models.FileResult{},
		Settings:   opts.settings(),
		StartedAt:  time.Now(),
	}
	h.store.Set(sessionID, session)

	saved, err := saveUploads(sessionDir, uploads)
	if err != nil {
		h.failSession(w, session, "Failed to save uploaded files: "+err.Error())
		return
	}

	h.runner.Submit(sessionID, opts.Engine, saved, opts.request(sessionDir))

	slog.Info("Started processing session", "session_id", sessionID, "files", len(saved))

	h.writeJSON(w, map[string]any{
		"success":    true,
		"session_id": sessionID,
		"message":    fmt.Sprintf("Processing %d file(s) with session %s", len(saved), sessionID),
		"settings":   session.Settings,
	})
}

// saveUploads writes the uploaded documents into the session's documents
// subdirectory, creating the session layout as a side effect.
func saveUploads(sessionDir string, uploads []*multipart.FileHeader) ([]jobs.SavedFile, error) {
	for _, sub := range []string{"documents", "images", "metadata"} {
		if err := os.MkdirAll(filepath.Join(sessionDir, sub), 0755); err != nil {
			return nil, fmt.Errorf("failed to create session directory: %w", err)
		}
	}

	saved := make([]jobs.SavedFile, 0, len(uploads))
	for _, fh := range uploads {
		name := filepath.Base(fh.Filename)
		if name == "" || name == "." || name == string(filepath.Separator) {
			return nil, fmt.Errorf("invalid filename %q", fh.Filename)
		}

		src, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}

		path := filepath.Join(sessionDir, "documents", name)
		dst, err := os.Create(path)
		if err != nil {
			src.Close()
			return nil, fmt.Errorf("failed to create %s: %w", path, err)
		}

		written, err := io.Copy(dst, src)
		src.Close()
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, fmt.Errorf("failed to save %s: %w", name, err)
		}

		slog.Info("Saved file", "filename", name, "bytes", written)
		saved = append(saved, jobs.SavedFile{Filename: name, Path: path})
	}
	return saved, nil
}
