package handlers

import (
	"net/http"
	"time"
)

// HandleRoot serves server information at / and 404s everything else the
// mux routes here.
func (h *Handler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		h.writeError(w, "Not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, map[string]any{
		"message":     "Marker OCR Server",
		"version":     Version,
		"description": "High-quality document conversion server using Marker OCR",
		"supported_formats": []string{
			"PDF", "JPEG", "PNG", "WebP", "TIFF", "BMP",
			"DOCX", "PPTX", "XLSX", "EPUB", "MOBI", "HTML",
		},
		"output_formats": []string{"markdown", "json", "html", "pdf"},
		"status":         "ready",
	})
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]any{
		"status":           "healthy",
		"timestamp":        time.Now().Format(time.RFC3339),
		"marker_available": h.engines["marker"].Available(),
	})
}

func (h *Handler) HandleFormats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]any{
		"input_formats": map[string]any{
			"pdf":    "PDF documents (recommended)",
			"images": []string{"JPEG", "PNG", "WebP", "TIFF", "BMP"},
			"office": []string{"DOCX", "PPTX", "XLSX"},
			"ebooks": []string{"EPUB", "MOBI"},
			"web":    []string{"HTML"},
		},
		"output_formats": map[string]any{
			"markdown": "Clean markdown with preserved structure",
			"json":     "Structured JSON with metadata",
			"html":     "HTML with styling and formatting",
			"pdf":      "PDF rendered from the converted document",
		},
		"llm_features": map[string]any{
			"layout_enhancement":  "Improved layout detection",
			"table_processing":    "Better table recognition",
			"equation_processing": "Enhanced mathematical content",
			"image_descriptions":  "AI-generated image descriptions",
		},
	})
}

// HandleCleanup triggers the retention policy immediately. Running it
// against an empty output root is a no-op that still reports success.
func (h *Handler) HandleCleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	removed := h.policy.Sweep()
	h.writeJSON(w, map[string]any{
		"success": true,
		"removed": removed,
		"message": "Output files cleaned up successfully",
	})
}
