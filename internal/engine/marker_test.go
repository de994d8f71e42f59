package engine

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestMarkerFormat(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"markdown", "markdown"},
		{"json", "json"},
		{"html", "html"},
		{"pdf", "markdown"},
		{"", "markdown"},
	}
	for _, tt := range tests {
		if got := markerFormat(tt.in); got != tt.want {
			t.Errorf("markerFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildArgs(t *testing.T) {
	m := NewMarker("marker_single", time.Minute, nil)

	tests := []struct {
		name     string
		req      Request
		want     []string
		dontWant []string
	}{
		{
			name: "basic markdown",
			req:  Request{InputPath: "in.pdf", OutputDir: "out", Format: "markdown", ExtractImages: true},
			want: []string{"in.pdf", "--output_dir", "out", "--output_format", "markdown"},
			dontWant: []string{
				"--disable_image_extraction", "--page_range", "--use_llm",
			},
		},
		{
			name: "pdf requests markdown from the CLI",
			req:  Request{InputPath: "in.pdf", OutputDir: "out", Format: "pdf", ExtractImages: true},
			want: []string{"--output_format", "markdown"},
		},
		{
			name: "images disabled and page range",
			req:  Request{InputPath: "in.pdf", OutputDir: "out", Format: "json", MaxPages: 10},
			want: []string{"--output_format", "json", "--disable_image_extraction", "--page_range", "0-9"},
		},
		{
			name: "ollama llm options",
			req: Request{
				InputPath: "in.pdf", OutputDir: "out", Format: "markdown", ExtractImages: true,
				UseLLM: true, LLMProvider: "ollama", OllamaURL: "http://localhost:11434", OllamaModel: "gemma3:12b",
			},
			want: []string{
				"--use_llm",
				"--llm_service", "marker.services.ollama.OllamaService",
				"--OllamaService_ollama_base_url", "http://localhost:11434",
				"--OllamaService_ollama_model", "gemma3:12b",
			},
		},
		{
			name: "gemini llm options",
			req: Request{
				InputPath: "in.pdf", OutputDir: "out", Format: "markdown", ExtractImages: true,
				UseLLM: true, LLMProvider: "gemini", GeminiAPIKey: "secret", GeminiModel: "gemini-1.5-flash",
			},
			want: []string{
				"--llm_service", "marker.services.gemini.GoogleGeminiService",
				"--GoogleGeminiService_gemini_api_key", "secret",
				"--GoogleGeminiService_gemini_model_name", "gemini-1.5-flash",
			},
			dontWant: []string{"OllamaService"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := strings.Join(m.buildArgs(tt.req), " ")
			for _, want := range tt.want {
				if !strings.Contains(args, want) {
					t.Errorf("Expected args to contain %q, got: %s", want, args)
				}
			}
			for _, dontWant := range tt.dontWant {
				if strings.Contains(args, dontWant) {
					t.Errorf("Expected args to not contain %q, got: %s", dontWant, args)
				}
			}
		})
	}
}

func TestBuildArgsInputFirst(t *testing.T) {
	m := NewMarker("marker_single", time.Minute, nil)
	args := m.buildArgs(Request{InputPath: "doc.pdf", OutputDir: "out", Format: "markdown"})
	if len(args) == 0 || args[0] != "doc.pdf" {
		t.Errorf("Expected input path as first positional argument, got %v", args)
	}
}

func TestMarkerUnavailable(t *testing.T) {
	orig := lookPath
	lookPath = func(string) (string, error) { return "", errors.New("not found") }
	t.Cleanup(func() { lookPath = orig })

	m := NewMarker("marker_single", time.Minute, nil)
	if m.Available() {
		t.Fatal("Expected Available to be false when binary is missing")
	}

	res := m.Convert(context.Background(), Request{
		InputPath: filepath.Join(t.TempDir(), "in.pdf"),
		OutputDir: t.TempDir(),
		Format:    "markdown",
	})
	if res.Success {
		t.Fatal("Expected failure result when binary is missing")
	}
	if !strings.Contains(res.Error, "not installed") {
		t.Errorf("Expected explanatory error, got %q", res.Error)
	}
}

func TestNewMarkerDefaults(t *testing.T) {
	m := NewMarker("", 0, nil)
	if m.Binary != "marker_single" {
		t.Errorf("Expected default binary marker_single, got %s", m.Binary)
	}
	if m.Timeout != 5*time.Minute {
		t.Errorf("Expected default timeout 5m, got %s", m.Timeout)
	}
}

func TestExtractText(t *testing.T) {
	dir := t.TempDir()
	md := filepath.Join(dir, "a.md")
	jsonPath := filepath.Join(dir, "a.json")
	writeFile(t, md, "# Title")
	writeFile(t, jsonPath, `{"text": "from json"}`)

	tests := []struct {
		name  string
		found map[string]string
		want  string
	}{
		{"markdown preferred", map[string]string{KindMarkdown: md, KindJSON: jsonPath}, "# Title"},
		{"json text field", map[string]string{KindJSON: jsonPath}, "from json"},
		{"nothing located", map[string]string{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractText(tt.found); got != tt.want {
				t.Errorf("extractText = %q, want %q", got, tt.want)
			}
		})
	}
}
