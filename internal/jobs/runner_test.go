package jobs

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/docrelay/markerd/internal/engine"
	"github.com/docrelay/markerd/internal/models"
	"github.com/docrelay/markerd/internal/storage"
)

// fakeEngine fails any input whose name contains "bad" and panics on any
// input whose name contains "panic".
type fakeEngine struct{}

func (f *fakeEngine) Name() string    { return "fake" }
func (f *fakeEngine) Available() bool { return true }

func (f *fakeEngine) Convert(ctx context.Context, req engine.Request) engine.Result {
	base := filepath.Base(req.InputPath)
	if strings.Contains(base, "panic") {
		panic("engine exploded")
	}
	if strings.Contains(base, "bad") {
		return engine.Result{Error: "cannot convert " + base}
	}
	return engine.Result{
		Success:     true,
		Text:        "text of " + base,
		OutputFiles: map[string]string{engine.KindMarkdown: req.InputPath + ".md"},
	}
}

func newTestRunner(store storage.Store) *Runner {
	return NewRunner(store, map[string]engine.Engine{"fake": &fakeEngine{}}, nil)
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("batch did not finish in time")
	}
}

func seedSession(store storage.Store, id string, total int) {
	store.Set(id, models.Session{
		ID:         id,
		Status:     models.StatusProcessing,
		TotalFiles: total,
		Files:      []models.FileResult{},
		StartedAt:  time.Now(),
	})
}

func TestBatchCompletesDespiteFailures(t *testing.T) {
	store := storage.New()
	seedSession(store, "batch", 3)

	files := []SavedFile{
		{Filename: "a.pdf", Path: "/tmp/a.pdf"},
		{Filename: "bad.pdf", Path: "/tmp/bad.pdf"},
		{Filename: "c.pdf", Path: "/tmp/c.pdf"},
	}
	done := newTestRunner(store).Submit("batch", "fake", files, engine.Request{Format: "markdown"})
	waitDone(t, done)

	session, ok := store.Get("batch")
	if !ok {
		t.Fatal("session disappeared")
	}
	if session.Status != models.StatusCompleted {
		t.Errorf("Expected completed session, got %s (error %q)", session.Status, session.Error)
	}
	if session.ProcessedFiles != 3 || len(session.Files) != 3 {
		t.Errorf("Expected all 3 files attempted, got processed=%d files=%d", session.ProcessedFiles, len(session.Files))
	}
	if session.CompletedAt == nil {
		t.Error("Expected completion timestamp")
	}

	// Completion order equals upload order.
	wantOrder := []string{"a.pdf", "bad.pdf", "c.pdf"}
	for i, want := range wantOrder {
		if session.Files[i].Filename != want {
			t.Errorf("Expected file %d to be %s, got %s", i, want, session.Files[i].Filename)
		}
	}

	if session.Files[0].Status != models.StatusCompleted {
		t.Errorf("Expected a.pdf completed, got %s", session.Files[0].Status)
	}
	if session.Files[1].Status != models.StatusFailed || session.Files[1].Error == "" {
		t.Errorf("Expected bad.pdf failed with reason, got %+v", session.Files[1])
	}
	if session.Files[2].Status != models.StatusCompleted {
		t.Errorf("Expected batch to continue past a failure, got %s", session.Files[2].Status)
	}
}

func TestPanickingEngineFailsOnlyThatFile(t *testing.T) {
	store := storage.New()
	seedSession(store, "batch", 2)

	files := []SavedFile{
		{Filename: "panic.pdf", Path: "/tmp/panic.pdf"},
		{Filename: "a.pdf", Path: "/tmp/a.pdf"},
	}
	done := newTestRunner(store).Submit("batch", "fake", files, engine.Request{})
	waitDone(t, done)

	session, _ := store.Get("batch")
	if session.Status != models.StatusCompleted {
		t.Errorf("Expected session completed, got %s", session.Status)
	}
	if session.Files[0].Status != models.StatusFailed || !strings.Contains(session.Files[0].Error, "panic") {
		t.Errorf("Expected panic recorded as file failure, got %+v", session.Files[0])
	}
	if session.Files[1].Status != models.StatusCompleted {
		t.Errorf("Expected second file processed, got %+v", session.Files[1])
	}
}

func TestUnknownEngineFailsSession(t *testing.T) {
	store := storage.New()
	seedSession(store, "batch", 1)

	done := newTestRunner(store).Submit("batch", "nope", []SavedFile{{Filename: "a.pdf", Path: "/tmp/a.pdf"}}, engine.Request{})
	waitDone(t, done)

	session, _ := store.Get("batch")
	if session.Status != models.StatusFailed {
		t.Errorf("Expected failed session, got %s", session.Status)
	}
	if !strings.Contains(session.Error, "unknown conversion engine") {
		t.Errorf("Expected driver error attached, got %q", session.Error)
	}
	if session.FailedAt == nil {
		t.Error("Expected failure timestamp")
	}
}

func TestEmptyBatchCompletes(t *testing.T) {
	store := storage.New()
	seedSession(store, "batch", 0)

	done := newTestRunner(store).Submit("batch", "fake", nil, engine.Request{})
	waitDone(t, done)

	session, _ := store.Get("batch")
	if session.Status != models.StatusCompleted || session.ProcessedFiles != 0 {
		t.Errorf("Expected empty batch to complete, got %+v", session)
	}
}
