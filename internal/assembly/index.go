package assembly

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-version"

	"jitmanifest/internal/clr"
)

// Index maps the declared simple name of every code unit in a directory to its file.
// Names are matched case-insensitively.
type Index struct {
	entries map[string]indexEntry
}

type indexEntry struct {
	path    string
	version *version.Version
}

// BuildIndex reads the declared identity of every top-level *.dll and *.exe in dir.
// Native binaries are skipped silently; any other failure is collected into the
// returned error while the remaining files are still indexed. When two files declare
// the same name the higher assembly version wins.
func BuildIndex(dir string, source Source) (*Index, error) {
	index := &Index{entries: map[string]indexEntry{}}

	files, err := os.ReadDir(dir)
	if err != nil {
		return index, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var errs []error
	for _, file := range files {
		if file.IsDir() || !isBinary(file.Name()) {
			continue
		}

		path := filepath.Join(dir, file.Name())
		identity, err := source.Identify(path)
		if errors.Is(err, clr.ErrNotCodeUnit) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}

		index.add(identity, path)
	}

	return index, errors.Join(errs...)
}

func (ix *Index) add(identity clr.Identity, path string) {
	key := strings.ToLower(identity.Name)
	candidate := indexEntry{path: path, version: parseVersion(identity.Version)}

	existing, found := ix.entries[key]
	if found && !newer(candidate.version, existing.version) {
		return
	}
	ix.entries[key] = candidate
}

// Lookup returns the file declaring the given simple name.
func (ix *Index) Lookup(name string) (string, bool) {
	entry, found := ix.entries[strings.ToLower(name)]
	return entry.path, found
}

func (ix *Index) Len() int {
	return len(ix.entries)
}

func isBinary(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".dll", ".exe":
		return true
	}
	return false
}

// Tries to parse an assembly version, nil when there is none or it is malformed.
func parseVersion(raw string) *version.Version {
	if raw == "" {
		return nil
	}
	v, err := version.NewVersion(raw)
	if err != nil {
		return nil
	}
	return v
}

func newer(candidate, existing *version.Version) bool {
	if candidate == nil {
		return false
	}
	if existing == nil {
		return true
	}
	return candidate.GreaterThan(existing)
}
