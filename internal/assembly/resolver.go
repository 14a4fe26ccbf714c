// Package assembly maps the modules reported by the profiler to loaded code units.
package assembly

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"jitmanifest/internal/clr"
	"jitmanifest/internal/diag"
)

const DefaultCoreLibrary = "System.Private.CoreLib"

var (
	ErrNotFound   = errors.New("assembly not found")
	ErrLoadFailed = errors.New("failed to load assembly")
	ErrClosed     = errors.New("resolver is closed")
)

// Source reads code units from files.
type Source interface {
	// Load reads the code unit stored at path. References into other units are
	// resolved through binder.
	Load(path string, binder clr.Binder) (*clr.CodeUnit, error)
	// Identify reads only the declared name and version of the unit at path. Files
	// that are not code units fail with clr.ErrNotCodeUnit.
	Identify(path string) (clr.Identity, error)
}

type Options struct {
	// AppDir is the profiled application's directory, indexed by declared assembly name.
	AppDir string
	// ProbeDirs are searched for <name>.dll before the application directory,
	// typically the shared framework directories.
	ProbeDirs []string
	// CoreLibrary names the unit defining the primitive types.
	CoreLibrary string
}

type loadResult struct {
	unit *clr.CodeUnit
	err  error
}

// Resolver loads code units by assembly name and by path. Every attempt, failed ones
// included, is cached for the lifetime of the resolver, so a unit is read at most once.
// A Resolver serves one session and is not safe for concurrent use.
type Resolver struct {
	source Source
	opts   Options
	logger *zap.Logger

	byName map[string]loadResult
	byPath map[string]loadResult
	index  *Index
	closed bool
}

// NewResolver builds the application directory index up front. Files in it that could
// not be inspected are reported to bag as a single diagnostic.
func NewResolver(source Source, opts Options, bag *diag.Bag, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CoreLibrary == "" {
		opts.CoreLibrary = DefaultCoreLibrary
	}

	r := &Resolver{
		source: source,
		opts:   opts,
		logger: logger,
		byName: map[string]loadResult{},
		byPath: map[string]loadResult{},
		index:  &Index{entries: map[string]indexEntry{}},
	}

	if opts.AppDir != "" {
		index, err := BuildIndex(opts.AppDir, source)
		r.index = index
		if err != nil && bag != nil {
			bag.Add(diag.KindInput, err.Error())
		}
		logger.Debug("indexed application directory", zap.String("dir", opts.AppDir), zap.Int("assemblies", index.Len()))
	}

	return r
}

// LoadModule resolves a module reported by the profiler: by assembly name first, then
// from the module's own path.
func (r *Resolver) LoadModule(name, path string) (*clr.CodeUnit, error) {
	if r.closed {
		return nil, ErrClosed
	}

	unit, nameErr := r.LoadByName(name)
	if nameErr == nil {
		return unit, nil
	}
	if path == "" {
		return nil, fmt.Errorf("%w %s (path: %s): %w", ErrLoadFailed, name, path, nameErr)
	}

	unit, pathErr := r.LoadByPath(path)
	if pathErr != nil {
		return nil, fmt.Errorf("%w %s (path: %s): %w", ErrLoadFailed, name, path, errors.Join(nameErr, pathErr))
	}
	return unit, nil
}

// LoadByName loads a unit by its simple name: units already loaded, then the probe
// directories, then the application directory index.
func (r *Resolver) LoadByName(name string) (*clr.CodeUnit, error) {
	if r.closed {
		return nil, ErrClosed
	}

	key := strings.ToLower(name)
	if cached, found := r.byName[key]; found {
		return cached.unit, cached.err
	}

	unit, err := r.findByName(name)
	r.byName[key] = loadResult{unit: unit, err: err}
	return unit, err
}

func (r *Resolver) findByName(name string) (*clr.CodeUnit, error) {
	for _, dir := range r.opts.ProbeDirs {
		candidate := filepath.Join(dir, name+".dll")
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if unit, err := r.LoadByPath(candidate); err == nil {
			return unit, nil
		}
	}

	if path, found := r.index.Lookup(name); found {
		return r.LoadByPath(path)
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// LoadByPath loads the unit stored at path.
func (r *Resolver) LoadByPath(path string) (*clr.CodeUnit, error) {
	if r.closed {
		return nil, ErrClosed
	}

	path = filepath.Clean(path)
	if cached, found := r.byPath[path]; found {
		return cached.unit, cached.err
	}

	unit, err := r.source.Load(path, r)
	r.byPath[path] = loadResult{unit: unit, err: err}
	if err != nil {
		r.logger.Debug("failed to load code unit", zap.String("path", path), zap.Error(err))
		return nil, err
	}

	r.logger.Debug("loaded code unit", zap.String("path", path), zap.Stringer("unit", unit))
	key := strings.ToLower(unit.Name())
	if cached, found := r.byName[key]; !found || cached.err != nil {
		r.byName[key] = loadResult{unit: unit}
	}
	return unit, nil
}

func (r *Resolver) CoreLibrary() string {
	return r.opts.CoreLibrary
}

// Close drops every loaded unit. Later loads fail with ErrClosed.
func (r *Resolver) Close() error {
	r.byName = nil
	r.byPath = nil
	r.index = nil
	r.closed = true
	return nil
}
