package handlers

import (
	"net/http"
	"time"

	"github.com/docrelay/markerd/internal/models"
	"github.com/docrelay/markerd/internal/vision"
	"github.com/google/uuid"
)

// HandleConvert is the synchronous variant: one file in, the full
// conversion result inline. The session directory is still created so the
// artifacts can be downloaded afterwards.
func (h *Handler) HandleConvert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		h.writeError(w, "Failed to parse upload: "+err.Error(), http.StatusBadRequest)
		return
	}

	uploads := r.MultipartForm.File["file"]
	if len(uploads) == 0 {
		uploads = r.MultipartForm.File["files"]
	}
	if len(uploads) == 0 {
		h.writeError(w, "No file uploaded", http.StatusBadRequest)
		return
	}

	opts, err := h.parseConvertOptions(r)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if opts.Engine == "vision" && !vision.Supports(uploads[0].Filename) {
		h.writeError(w, "unsupported file type for the vision engine: "+uploads[0].Filename, http.StatusBadRequest)
		return
	}

	sessionID := uuid.New().String()
	sessionDir := h.sessionDir(sessionID)

	// Register the session before any disk writes so a concurrent retention
	// sweep sees an in-flight session and leaves its directory alone for the
	// whole conversion.
	session := models.Session{
		ID:         sessionID,
		Status:     models.StatusProcessing,
		TotalFiles: 1,
		Files:      []models.FileResult{},
		Settings:   opts.settings(),
		StartedAt:  time.Now(),
	}
	h.store.Set(sessionID, session)

	saved, err := saveUploads(sessionDir, uploads[:1])
	if err != nil {
		h.failSession(w, session, "Failed to save uploaded file: "+err.Error())
		return
	}

	req := opts.request(sessionDir)
	req.InputPath = saved[0].Path

	result := h.engines[opts.Engine].Convert(r.Context(), req)
	if !result.Success {
		h.failSession(w, session, "Conversion failed: "+result.Error)
		return
	}

	now := time.Now()
	session.Status = models.StatusCompleted
	session.ProcessedFiles = 1
	session.Files = []models.FileResult{{
		Filename:        saved[0].Filename,
		Status:          models.StatusCompleted,
		OutputFiles:     result.OutputFiles,
		ImagesExtracted: len(result.Images),
	}}
	session.CompletedAt = &now
	h.store.Set(sessionID, session)

	h.writeJSON(w, map[string]any{
		"success":          true,
		"session_id":       sessionID,
		"filename":         saved[0].Filename,
		"output_format":    opts.OutputFormat,
		"output_files":     result.OutputFiles,
		"images_extracted": len(result.Images),
		"text":             result.Text,
	})
}
