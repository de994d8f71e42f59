package engine

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// artifactExts maps artifact kinds to the file suffix Marker writes for them.
var artifactExts = map[string]string{
	KindMarkdown: ".md",
	KindJSON:     ".json",
	KindHTML:     ".html",
}

// locateKinds is the probing order across artifact kinds.
var locateKinds = []string{KindMarkdown, KindJSON, KindHTML}

var imageExts = []string{".png", ".jpg", ".jpeg"}

// candidatePaths returns the ordered probe table for one artifact kind.
// Marker may write directly into the output directory, into a subdirectory
// named after the document, or into one named after the output format.
// Callers rely on receiving the first match, not an exhaustive one.
func candidatePaths(outputDir, base, kind string) []string {
	name := base + artifactExts[kind]
	return []string{
		filepath.Join(outputDir, name),
		filepath.Join(outputDir, base, name),
		filepath.Join(outputDir, kind, name),
	}
}

// Locate finds at most one artifact of each kind under outputDir without an
// unbounded filesystem walk: first the candidate table, then a shallow
// listing of the output directory, then of its per-document subdirectory.
func Locate(outputDir, base string) map[string]string {
	found := make(map[string]string)

	for _, kind := range locateKinds {
		for _, path := range candidatePaths(outputDir, base, kind) {
			if fileExists(path) {
				found[kind] = path
				break
			}
		}
	}

	if len(found) == 0 {
		scanShallow(outputDir, found)
	}
	if len(found) == 0 {
		scanShallow(filepath.Join(outputDir, base), found)
	}

	return found
}

// scanShallow records the first file of each known suffix among dir's
// immediate children. Subdirectories are not descended into.
func scanShallow(dir string, found map[string]string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		for _, kind := range locateKinds {
			if found[kind] == "" && strings.EqualFold(filepath.Ext(entry.Name()), artifactExts[kind]) {
				found[kind] = filepath.Join(dir, entry.Name())
			}
		}
	}
}

// LocateImages checks a fixed list of likely image directories and stops at
// the first one that yields any image files. Results are not aggregated
// across directories.
func LocateImages(outputDir, base string) []string {
	dirs := []string{
		filepath.Join(outputDir, "images"),
		filepath.Join(outputDir, base, "images"),
		filepath.Join(outputDir, base),
		outputDir,
	}

	for _, dir := range dirs {
		images := imagesIn(dir)
		if len(images) > 0 {
			return images
		}
	}
	return nil
}

func imagesIn(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var images []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		for _, want := range imageExts {
			if ext == want {
				images = append(images, filepath.Join(dir, entry.Name()))
				break
			}
		}
	}
	return images
}

// Placeholder writes an empty artifact of the given kind so callers always
// receive a path even when the engine produced nothing locatable.
func Placeholder(outputDir, base, kind string) (string, error) {
	ext, ok := artifactExts[kind]
	if !ok {
		return "", fmt.Errorf("no placeholder suffix for artifact kind %q", kind)
	}
	path := filepath.Join(outputDir, base+ext)
	if err := os.WriteFile(path, nil, 0644); err != nil {
		return "", fmt.Errorf("failed to write placeholder artifact: %w", err)
	}
	return path, nil
}

// requestedKinds returns the artifact kinds a caller asking for format keeps.
// A PDF request retains the markdown and HTML intermediates it was rendered
// from.
func requestedKinds(format string) map[string]bool {
	switch format {
	case KindPDF:
		return map[string]bool{KindPDF: true, KindMarkdown: true, KindHTML: true}
	default:
		return map[string]bool{format: true}
	}
}

// CleanupUnrequested deletes artifacts of kinds the caller did not ask for
// and, when image extraction was declined, any images produced anyway.
// The original input document is never deleted even if its path shows up in
// an image glob.
func CleanupUnrequested(found map[string]string, images []string, format string, extractImages bool, inputPath string) ([]string, map[string]string) {
	keep := requestedKinds(format)

	for kind, path := range found {
		if keep[kind] {
			continue
		}
		if err := os.Remove(path); err != nil {
			slog.Warn("Failed to remove unrequested artifact", "kind", kind, "path", path, "err", err)
		}
		delete(found, kind)
	}

	if extractImages {
		return images, found
	}
	for _, img := range images {
		if sameFile(img, inputPath) {
			continue
		}
		if err := os.Remove(img); err != nil {
			slog.Warn("Failed to remove unrequested image", "path", img, "err", err)
		}
	}
	return nil, found
}

func sameFile(a, b string) bool {
	if a == b {
		return true
	}
	aAbs, errA := filepath.Abs(a)
	bAbs, errB := filepath.Abs(b)
	return errA == nil && errB == nil && aAbs == bAbs
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
