package retention

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/docrelay/markerd/internal/models"
	"github.com/docrelay/markerd/internal/storage"
)

// SessionDirPrefix names session directories under the output root.
const SessionDirPrefix = "session_"

// Policy evicts session directories beyond a cap of the N most recently
// modified, where "modified" means the newest file anywhere under the
// directory. It is the one component allowed to delete both a directory and
// its in-memory record, keeping the two sets in sync.
type Policy struct {
	Root  string
	Keep  int
	Store storage.Store
}

func New(root string, keep int, store storage.Store) *Policy {
	return &Policy{Root: root, Keep: keep, Store: store}
}

type sessionDir struct {
	id        string
	path      string
	freshness time.Time
}

// Sweep enforces the retention cap. Loose files directly under the root are
// removed as orphans; sessions still processing are never evicted.
// Filesystem errors are logged and skipped so one bad directory cannot stall
// the sweep. Returns the number of entries removed.
func (p *Policy) Sweep() int {
	entries, err := os.ReadDir(p.Root)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("Retention sweep could not read output root", "root", p.Root, "err", err)
		}
		return 0
	}

	removed := 0
	var dirs []sessionDir

	for _, entry := range entries {
		path := filepath.Join(p.Root, entry.Name())

		if !entry.IsDir() {
			// Orphaned: not inside any session directory.
			if err := os.Remove(path); err != nil {
				slog.Warn("Failed to remove orphaned file", "path", path, "err", err)
				continue
			}
			slog.Info("Removed orphaned file", "name", entry.Name())
			removed++
			continue
		}

		if !strings.HasPrefix(entry.Name(), SessionDirPrefix) {
			continue
		}
		dirs = append(dirs, sessionDir{
			id:        strings.TrimPrefix(entry.Name(), SessionDirPrefix),
			path:      path,
			freshness: freshness(path),
		})
	}

	sort.Slice(dirs, func(i, j int) bool {
		return dirs[i].freshness.After(dirs[j].freshness)
	})

	for i, dir := range dirs {
		if i < p.Keep {
			continue
		}
		if session, ok := p.Store.Get(dir.id); ok && session.Status == models.StatusProcessing {
			slog.Info("Retention skipping session still processing", "session_id", dir.id)
			continue
		}
		if err := os.RemoveAll(dir.path); err != nil {
			slog.Warn("Failed to remove session directory", "path", dir.path, "err", err)
			continue
		}
		p.Store.Delete(dir.id)
		slog.Info("Evicted session directory", "session_id", dir.id)
		removed++
	}

	p.pruneRecords()
	return removed
}

// pruneRecords drops in-memory records whose directory no longer exists,
// restoring the record/directory invariant after out-of-band deletions.
func (p *Policy) pruneRecords() {
	for _, id := range p.Store.List() {
		if session, ok := p.Store.Get(id); ok && session.Status == models.StatusProcessing {
			continue
		}
		dir := filepath.Join(p.Root, SessionDirPrefix+id)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			p.Store.Delete(id)
			slog.Info("Pruned session record without directory", "session_id", id)
		}
	}
}

// freshness returns the newest file modification time found anywhere under
// dir, falling back to the directory's own mtime when it is empty or
// unreadable.
func freshness(dir string) time.Time {
	var newest time.Time

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries don't abort the scan
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		return nil
	})

	if err == nil && !newest.IsZero() {
		return newest
	}
	if info, statErr := os.Stat(dir); statErr == nil {
		return info.ModTime()
	}
	return newest
}
