package models

import "time"

// Status values shared by sessions and individual file results.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Session represents one batch-upload's worth of processing state.
// It lives in process memory only and is lost on restart.
type Session struct {
	ID             string       `json:"session_id"`
	Status         string       `json:"status"`
	TotalFiles     int          `json:"total_files"`
	ProcessedFiles int          `json:"processed_files"`
	Files          []FileResult `json:"files"`
	Settings       Settings     `json:"settings"`
	Error          string       `json:"error,omitempty"`
	StartedAt      time.Time    `json:"started_at"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
	FailedAt       *time.Time   `json:"failed_at,omitempty"`
}

// FileResult records the outcome of converting a single uploaded file.
type FileResult struct {
	Filename        string            `json:"filename"`
	Status          string            `json:"status"`
	OutputFiles     map[string]string `json:"output_files,omitempty"`
	ImagesExtracted int               `json:"images_extracted"`
	Error           string            `json:"error,omitempty"`
}

// Settings is the snapshot of conversion options echoed back to clients.
// The Gemini API key is redacted before the snapshot is stored.
type Settings struct {
	OutputFormat  string `json:"output_format"`
	Engine        string `json:"engine"`
	UseLLM        bool   `json:"use_llm"`
	LLMProvider   string `json:"llm_provider"`
	ExtractImages bool   `json:"extract_images"`
	MaxPages      int    `json:"max_pages,omitempty"`
	OllamaURL     string `json:"ollama_url"`
	OllamaModel   string `json:"ollama_model"`
	GeminiAPIKey  string `json:"gemini_api_key"`
	GeminiModel   string `json:"gemini_model"`
}
