package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/docrelay/markerd/internal/engine"
	"github.com/docrelay/markerd/internal/models"
	"github.com/docrelay/markerd/internal/retention"
	"github.com/docrelay/markerd/internal/storage"
)

// SavedFile is one uploaded document already persisted to disk.
type SavedFile struct {
	Filename string
	Path     string
}

// Runner processes upload batches in the background: one goroutine per
// batch, files handled sequentially in upload order. There is no
// cancellation; a submitted batch runs to completion or failure.
type Runner struct {
	store   storage.Store
	engines map[string]engine.Engine
	policy  *retention.Policy
}

func NewRunner(store storage.Store, engines map[string]engine.Engine, policy *retention.Policy) *Runner {
	return &Runner{store: store, engines: engines, policy: policy}
}

// Submit schedules a batch and returns a channel closed once the batch has
// finished (including the post-batch retention sweep).
func (r *Runner) Submit(sessionID, engineName string, files []SavedFile, tmpl engine.Request) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.run(sessionID, engineName, files, tmpl)
		if r.policy != nil {
			r.policy.Sweep()
		}
	}()
	return done
}

func (r *Runner) run(sessionID, engineName string, files []SavedFile, tmpl engine.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			r.failSession(sessionID, fmt.Sprintf("batch driver panic: %v", rec))
			slog.Error("Background processing failed", "session_id", sessionID, "panic", rec)
		}
	}()

	eng, ok := r.engines[engineName]
	if !ok {
		r.failSession(sessionID, fmt.Sprintf("unknown conversion engine: %s", engineName))
		return
	}

	for i, file := range files {
		slog.Info("Processing file", "session_id", sessionID, "file", file.Filename, "index", i+1, "total", len(files))

		req := tmpl
		req.InputPath = file.Path
		res := convertOne(eng, req)

		result := models.FileResult{
			Filename:        file.Filename,
			ImagesExtracted: len(res.Images),
		}
		if res.Success {
			result.Status = models.StatusCompleted
			result.OutputFiles = res.OutputFiles
			slog.Info("Successfully processed file", "session_id", sessionID, "file", file.Filename)
		} else {
			// Per-file failures are terminal for the file only; the batch
			// carries on.
			result.Status = models.StatusFailed
			result.Error = res.Error
			slog.Error("Failed to process file", "session_id", sessionID, "file", file.Filename, "error", res.Error)
		}

		session, ok := r.store.Get(sessionID)
		if !ok {
			slog.Warn("Session vanished mid-batch, abandoning", "session_id", sessionID)
			return
		}
		session.Files = append(session.Files, result)
		session.ProcessedFiles = i + 1
		r.store.Set(sessionID, session)
	}

	session, ok := r.store.Get(sessionID)
	if !ok {
		return
	}
	now := time.Now()
	session.Status = models.StatusCompleted
	session.CompletedAt = &now
	r.store.Set(sessionID, session)
	slog.Info("Completed processing session", "session_id", sessionID, "files", len(files))
}

// convertOne shields the batch from a panicking engine: the panic becomes
// that file's failure reason.
func convertOne(eng engine.Engine, req engine.Request) (res engine.Result) {
	defer func() {
		if rec := recover(); rec != nil {
			res = engine.Result{Error: fmt.Sprintf("conversion panic: %v", rec)}
		}
	}()
	return eng.Convert(context.Background(), req)
}

func (r *Runner) failSession(sessionID, reason string) {
	session, ok := r.store.Get(sessionID)
	if !ok {
		return
	}
	now := time.Now()
	session.Status = models.StatusFailed
	session.Error = reason
	session.FailedAt = &now
	r.store.Set(sessionID, session)
}
