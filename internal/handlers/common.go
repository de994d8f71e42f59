package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/docrelay/markerd/internal/config"
	"github.com/docrelay/markerd/internal/engine"
	"github.com/docrelay/markerd/internal/jobs"
	"github.com/docrelay/markerd/internal/models"
	"github.com/docrelay/markerd/internal/render"
	"github.com/docrelay/markerd/internal/retention"
	"github.com/docrelay/markerd/internal/storage"
	"github.com/docrelay/markerd/internal/vision"
)

// Version reported by the info and health endpoints.
const Version = "2.0.0"

type Handler struct {
	cfg     *config.Config
	store   storage.Store
	engines map[string]engine.Engine
	runner  *jobs.Runner
	policy  *retention.Policy
}

// New wires the session store, conversion engines, retention policy and
// batch runner behind one handler.
func New(cfg *config.Config) *Handler {
	store := storage.New()
	renderer := render.NewRenderer(cfg.Engine.WKHTMLToPDF)
	engines := map[string]engine.Engine{
		"marker": engine.NewMarker(cfg.Engine.Binary, cfg.EngineTimeout(), renderer),
		"vision": vision.NewService(),
	}
	policy := retention.New(cfg.OutputDir, cfg.Retention.KeepRecent, store)

	return &Handler{
		cfg:     cfg,
		store:   store,
		engines: engines,
		runner:  jobs.NewRunner(store, engines, policy),
		policy:  policy,
	}
}

// SweepNow runs the retention policy immediately (startup and /api/cleanup).
func (h *Handler) SweepNow() int {
	return h.policy.Sweep()
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	http.Error(w, message, code)
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, sessionID string) (models.Session, bool) {
	session, exists := h.store.Get(sessionID)
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return models.Session{}, false
	}
	return session, true
}

func (h *Handler) sessionDir(sessionID string) string {
	return filepath.Join(h.cfg.OutputDir, retention.SessionDirPrefix+sessionID)
}

// failSession marks an already-registered session failed and reports the
// error to the client.
func (h *Handler) failSession(w http.ResponseWriter, session models.Session, message string) {
	now := time.Now()
	session.Status = models.StatusFailed
	session.Error = message
	session.FailedAt = &now
	h.store.Set(session.ID, session)
	h.writeError(w, message, http.StatusInternalServerError)
}

// formBool treats an absent field as the given default; anything except an
// explicit negative counts as true.
func formBool(value string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return def
	case "false", "0", "off", "no":
		return false
	default:
		return true
	}
}
