package retention

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/docrelay/markerd/internal/models"
	"github.com/docrelay/markerd/internal/storage"
)

func makeSessionDir(t *testing.T, root, id string, age time.Duration) {
	t.Helper()
	dir := filepath.Join(root, SessionDirPrefix+id)
	if err := os.MkdirAll(filepath.Join(dir, "documents"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	file := filepath.Join(dir, "documents", "doc.md")
	if err := os.WriteFile(file, []byte("content"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	mtime := time.Now().Add(-age)
	if err := os.Chtimes(file, mtime, mtime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func TestSweepKeepsMostRecent(t *testing.T) {
	root := t.TempDir()
	store := storage.New()

	// Five sessions with distinct content freshness; s1 is the newest.
	ids := []string{"s1", "s2", "s3", "s4", "s5"}
	for i, id := range ids {
		makeSessionDir(t, root, id, time.Duration(i)*time.Hour)
		store.Set(id, models.Session{ID: id, Status: models.StatusCompleted})
	}

	policy := New(root, 2, store)
	removed := policy.Sweep()

	if removed != 3 {
		t.Errorf("Expected 3 directories removed, got %d", removed)
	}
	for _, id := range []string{"s1", "s2"} {
		if _, err := os.Stat(filepath.Join(root, SessionDirPrefix+id)); err != nil {
			t.Errorf("Expected kept directory for %s: %v", id, err)
		}
		if _, ok := store.Get(id); !ok {
			t.Errorf("Expected kept record for %s", id)
		}
	}
	for _, id := range []string{"s3", "s4", "s5"} {
		if _, err := os.Stat(filepath.Join(root, SessionDirPrefix+id)); !os.IsNotExist(err) {
			t.Errorf("Expected evicted directory for %s", id)
		}
		if _, ok := store.Get(id); ok {
			t.Errorf("Expected evicted record for %s", id)
		}
	}
}

func TestSweepFreshnessFromContent(t *testing.T) {
	root := t.TempDir()
	store := storage.New()

	// old's directory mtime is newer than fresh's, but its newest file is
	// older. Content freshness must decide.
	makeSessionDir(t, root, "fresh", time.Hour)
	makeSessionDir(t, root, "old", 48*time.Hour)
	store.Set("fresh", models.Session{ID: "fresh", Status: models.StatusCompleted})
	store.Set("old", models.Session{ID: "old", Status: models.StatusCompleted})

	now := time.Now()
	if err := os.Chtimes(filepath.Join(root, SessionDirPrefix+"old"), now, now); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	New(root, 1, store).Sweep()

	if _, err := os.Stat(filepath.Join(root, SessionDirPrefix+"fresh")); err != nil {
		t.Errorf("Expected fresh session to survive: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, SessionDirPrefix+"old")); !os.IsNotExist(err) {
		t.Error("Expected old session to be evicted despite new directory mtime")
	}
}

func TestSweepRemovesLooseFiles(t *testing.T) {
	root := t.TempDir()
	store := storage.New()
	loose := filepath.Join(root, "orphan.tmp")
	if err := os.WriteFile(loose, []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	removed := New(root, 2, store).Sweep()

	if removed != 1 {
		t.Errorf("Expected 1 removal, got %d", removed)
	}
	if _, err := os.Stat(loose); !os.IsNotExist(err) {
		t.Error("Expected loose file to be removed as orphaned")
	}
}

func TestSweepSkipsProcessingSessions(t *testing.T) {
	root := t.TempDir()
	store := storage.New()

	makeSessionDir(t, root, "active", 72*time.Hour)
	makeSessionDir(t, root, "done", time.Hour)
	store.Set("active", models.Session{ID: "active", Status: models.StatusProcessing})
	store.Set("done", models.Session{ID: "done", Status: models.StatusCompleted})

	New(root, 1, store).Sweep()

	if _, err := os.Stat(filepath.Join(root, SessionDirPrefix+"active")); err != nil {
		t.Errorf("Expected processing session to be skipped by eviction: %v", err)
	}
	if _, ok := store.Get("active"); !ok {
		t.Error("Expected processing session record to survive")
	}
}

func TestSweepEmptyRootIsNoop(t *testing.T) {
	store := storage.New()
	policy := New(filepath.Join(t.TempDir(), "does-not-exist"), 2, store)

	for i := 0; i < 2; i++ {
		if removed := policy.Sweep(); removed != 0 {
			t.Errorf("Expected no-op sweep, got %d removals", removed)
		}
	}
}

func TestSweepPrunesRecordsWithoutDirectories(t *testing.T) {
	root := t.TempDir()
	store := storage.New()
	store.Set("ghost", models.Session{ID: "ghost", Status: models.StatusCompleted})

	New(root, 2, store).Sweep()

	if _, ok := store.Get("ghost"); ok {
		t.Error("Expected record without a directory to be pruned")
	}
}

func TestSweepIgnoresForeignDirectories(t *testing.T) {
	root := t.TempDir()
	store := storage.New()
	foreign := filepath.Join(root, "keepme")
	if err := os.MkdirAll(foreign, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	New(root, 0, store).Sweep()

	if _, err := os.Stat(foreign); err != nil {
		t.Errorf("Expected directory without session prefix to be untouched: %v", err)
	}
}
