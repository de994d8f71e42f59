package handlers

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ids := h.store.List()
		h.writeJSON(w, map[string]any{
			"sessions": ids,
			"total":    len(ids),
		})
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleSessionDetail dispatches /api/sessions/{id}[/...]:
// status, download/{filename}, download-all and DELETE.
func (h *Handler) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	sessionID, sub, _ := strings.Cut(rest, "/")
	if sessionID == "" {
		h.writeError(w, "Session id required", http.StatusBadRequest)
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodDelete:
		h.deleteSession(w, sessionID)
	case (sub == "" || sub == "status") && r.Method == http.MethodGet:
		session, ok := h.getSessionOrError(w, sessionID)
		if !ok {
			return
		}
		h.writeJSON(w, session)
	case sub == "download-all" && r.Method == http.MethodGet:
		h.downloadAll(w, r, sessionID)
	case strings.HasPrefix(sub, "download/") && r.Method == http.MethodGet:
		h.downloadFile(w, r, sessionID, strings.TrimPrefix(sub, "download/"))
	default:
		h.writeError(w, "Not found", http.StatusNotFound)
	}
}

// downloadFile streams one produced artifact. The direct path is tried
// first, then the session tree is searched for a matching base name.
// A missing file is a 404, never a server error.
func (h *Handler) downloadFile(w http.ResponseWriter, r *http.Request, sessionID, filename string) {
	if filename == "" || strings.Contains(filename, "..") || strings.ContainsAny(filename, "/\\") {
		h.writeError(w, "Invalid filename", http.StatusBadRequest)
		return
	}

	sessionDir := h.sessionDir(sessionID)
	path := filepath.Join(sessionDir, filename)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		path = findInSession(sessionDir, filename)
	}
	if path == "" {
		h.writeError(w, "File not found", http.StatusNotFound)
		return
	}

	slog.Info("Serving download", "session_id", sessionID, "filename", filename)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	http.ServeFile(w, r, path)
}

// findInSession walks the session directory for the first file whose base
// name matches. The walk is bounded by the session's own subtree; unreadable
// entries are skipped so one bad subdirectory cannot hide artifacts elsewhere.
func findInSession(sessionDir, filename string) string {
	var found string
	_ = filepath.WalkDir(sessionDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && d.Name() == filename {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	return found
}

// downloadAll zips every artifact under the session directory and streams
// the archive, with entry paths kept relative to the session root.
func (h *Handler) downloadAll(w http.ResponseWriter, r *http.Request, sessionID string) {
	sessionDir := h.sessionDir(sessionID)
	if info, err := os.Stat(sessionDir); err != nil || !info.IsDir() {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "session_"+sessionID+".zip"))

	zw := zip.NewWriter(w)
	err := filepath.WalkDir(sessionDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(sessionDir, path)
		if err != nil {
			return err
		}
		entry, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(entry, f)
		return err
	})
	if err != nil {
		// Headers are already on the wire; all we can do is log and stop.
		slog.Error("Failed to stream session archive", "session_id", sessionID, "err", err)
	}
	if err := zw.Close(); err != nil {
		slog.Error("Failed to finalize session archive", "session_id", sessionID, "err", err)
	}
}

func (h *Handler) deleteSession(w http.ResponseWriter, sessionID string) {
	sessionDir := h.sessionDir(sessionID)
	_, inStore := h.store.Get(sessionID)
	_, statErr := os.Stat(sessionDir)
	if !inStore && statErr != nil {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return
	}

	if err := os.RemoveAll(sessionDir); err != nil {
		h.writeError(w, "Failed to remove session directory: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.store.Delete(sessionID)

	slog.Info("Cleaned up session", "session_id", sessionID)
	h.writeJSON(w, map[string]any{
		"message": fmt.Sprintf("Session %s cleaned up successfully", sessionID),
	})
}
