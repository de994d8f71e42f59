package vision

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docrelay/markerd/internal/engine"
)

func TestSupports(t *testing.T) {
	tests := []struct {
		filename string
		want     bool
	}{
		{"scan.png", true},
		{"scan.JPG", true},
		{"scan.jpeg", true},
		{"scan.webp", true},
		{"scan.tiff", true},
		{"report.pdf", false},
		{"report.docx", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := Supports(tt.filename); got != tt.want {
			t.Errorf("Supports(%q) = %v, want %v", tt.filename, got, tt.want)
		}
	}
}

func TestConvertRejectsNonImages(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "report.pdf")
	if err := os.WriteFile(input, []byte("%PDF"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	res := NewService().Convert(context.Background(), engine.Request{
		InputPath: input,
		OutputDir: dir,
		Format:    engine.KindMarkdown,
	})
	if res.Success {
		t.Fatal("Expected failure for non-image input")
	}
	if !strings.Contains(res.Error, "unsupported file type") {
		t.Errorf("Expected unsupported-type error, got %q", res.Error)
	}
}

func TestWriteArtifact(t *testing.T) {
	t.Run("markdown", func(t *testing.T) {
		dir := t.TempDir()
		path, kind, err := writeArtifact(dir, "scan", engine.KindMarkdown, "hello")
		if err != nil {
			t.Fatalf("writeArtifact failed: %v", err)
		}
		if kind != engine.KindMarkdown || path != filepath.Join(dir, "scan.md") {
			t.Errorf("Expected markdown artifact at scan.md, got %s (%s)", path, kind)
		}
		data, _ := os.ReadFile(path)
		if string(data) != "hello" {
			t.Errorf("Expected transcription body, got %q", data)
		}
	})

	t.Run("json wraps text field", func(t *testing.T) {
		dir := t.TempDir()
		path, kind, err := writeArtifact(dir, "scan", engine.KindJSON, "hello")
		if err != nil {
			t.Fatalf("writeArtifact failed: %v", err)
		}
		if kind != engine.KindJSON {
			t.Errorf("Expected JSON kind, got %s", kind)
		}
		data, _ := os.ReadFile(path)
		var doc struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(data, &doc); err != nil || doc.Text != "hello" {
			t.Errorf("Expected Marker-compatible JSON document, got %q (err %v)", data, err)
		}
	})

	t.Run("other formats fall back to markdown", func(t *testing.T) {
		dir := t.TempDir()
		_, kind, err := writeArtifact(dir, "scan", engine.KindHTML, "hello")
		if err != nil {
			t.Fatalf("writeArtifact failed: %v", err)
		}
		if kind != engine.KindMarkdown {
			t.Errorf("Expected markdown fallback, got %s", kind)
		}
	})
}
