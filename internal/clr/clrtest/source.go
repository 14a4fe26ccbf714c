package clrtest

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"jitmanifest/internal/clr"
)

// Source serves fixture units from registered paths. Tests that go through the
// directory probing of the assembly resolver also create (empty) files at those
// paths. Loads are counted per path so tests can check caching.
type Source struct {
	units     map[string]*clr.CodeUnit
	unmanaged map[string]bool
	Loads     map[string]int
}

// NewSource registers every fixture unit under its path.
func (f *Fixture) NewSource() *Source {
	src := &Source{
		units:     map[string]*clr.CodeUnit{},
		unmanaged: map[string]bool{},
		Loads:     map[string]int{},
	}
	for _, unit := range f.Units() {
		src.Add(unit.Path(), unit)
	}
	return src
}

// Add registers unit at path, replacing any previous registration.
func (s *Source) Add(path string, unit *clr.CodeUnit) {
	s.units[filepath.Clean(path)] = unit
}

// AddUnmanaged registers a path holding a native binary.
func (s *Source) AddUnmanaged(path string) {
	s.unmanaged[filepath.Clean(path)] = true
}

// Remove forgets a path, as if the file had been deleted.
func (s *Source) Remove(path string) {
	delete(s.units, filepath.Clean(path))
}

func (s *Source) Load(path string, _ clr.Binder) (*clr.CodeUnit, error) {
	path = filepath.Clean(path)
	s.Loads[path]++
	if s.unmanaged[path] {
		return nil, fmt.Errorf("%s: %w", path, clr.ErrNotCodeUnit)
	}
	unit, found := s.units[path]
	if !found {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return unit, nil
}

func (s *Source) Identify(path string) (clr.Identity, error) {
	path = filepath.Clean(path)
	if s.unmanaged[path] {
		return clr.Identity{}, fmt.Errorf("%s: %w", path, clr.ErrNotCodeUnit)
	}
	unit, found := s.units[path]
	if !found {
		return clr.Identity{}, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return unit.Identity(), nil
}
