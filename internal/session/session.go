// Package session runs one resolution session: the profiler logs are correlated,
// every compiled method is reconstructed against the loaded code units, and the
// results are encoded as descriptors. Code units are owned by the session and
// released when it closes.
package session

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"jitmanifest/internal/assembly"
	"jitmanifest/internal/clr"
	"jitmanifest/internal/descriptor"
	"jitmanifest/internal/diag"
	"jitmanifest/internal/jitlog"
	"jitmanifest/internal/metadata"
	"jitmanifest/internal/reconstruct"
)

var ErrSearchDir = errors.New("invalid search directory")

type Options struct {
	// Resolver configures code-unit lookup. AppDir is replaced by the search
	// directory given to Open.
	Resolver assembly.Options
	// MaxTypeDepth bounds the nesting of recorded type arguments.
	MaxTypeDepth int
	// Source reads code units; nil selects the ECMA-335 metadata reader.
	Source assembly.Source
	Logger *zap.Logger
}

type Session struct {
	ID       uuid.UUID
	opts     Options
	logger   *zap.Logger
	bag      *diag.Bag
	resolver *assembly.Resolver
}

// Result holds the methods reconstructed by Parse, their descriptors (Nodes[i]
// describes Methods[i]) and everything that went wrong on the way.
type Result struct {
	RunID       string
	Methods     []*clr.Method
	Nodes       []descriptor.MethodNode
	Diagnostics *diag.Bag
}

// Open starts a session whose code units come from the probe directories and from
// searchDir. An empty searchDir disables the application directory index.
func Open(searchDir string, opts Options) (*Session, error) {
	if searchDir != "" {
		info, err := os.Stat(searchDir)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSearchDir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: %s is not a directory", ErrSearchDir, searchDir)
		}
	}
	if opts.Source == nil {
		opts.Source = metadata.NewSource()
	}

	id := uuid.New()
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.Stringer("session", id))

	opts.Resolver.AppDir = searchDir
	bag := diag.NewBag(logger)
	s := &Session{
		ID:       id,
		opts:     opts,
		logger:   logger,
		bag:      bag,
		resolver: assembly.NewResolver(opts.Source, opts.Resolver, bag, logger),
	}
	logger.Debug("session opened", zap.String("searchDir", searchDir))
	return s, nil
}

// Parse correlates the logs and reconstructs every compiled method. Failures are
// reported per item and never stop the run.
func (s *Session) Parse(logs jitlog.LogSet) *Result {
	bag := diag.NewBag(s.logger)
	bag.Merge(s.bag)

	parsed := jitlog.Read(logs, bag)
	requests := parsed.Requests(bag)
	s.logger.Info("logs correlated",
		zap.Int("compiled", len(parsed.Compiled)),
		zap.Int("modules", len(parsed.Modules)),
		zap.Int("requests", len(requests)))

	engine := reconstruct.NewEngine(parsed.Modules, s.resolver, s.opts.MaxTypeDepth, s.logger)
	result := &Result{RunID: s.ID.String(), Diagnostics: bag}
	for _, request := range requests {
		method, err := engine.Resolve(request)
		if err != nil {
			bag.Addf(diag.KindResolution, "Failed to resolve method for FunctionID 0x%X: %v", request.FunctionID, err)
			continue
		}
		// Signatures decode lazily through the resolver, so encode while the session is open.
		node, err := descriptor.EncodeMethod(method)
		if err != nil {
			bag.Addf(diag.KindResolution, "Failed to encode method for FunctionID 0x%X: %v", request.FunctionID, err)
			continue
		}
		result.Methods = append(result.Methods, method)
		result.Nodes = append(result.Nodes, node)
	}

	s.logger.Info("methods resolved", zap.Int("resolved", len(result.Methods)), zap.Int("diagnostics", bag.Len()))
	return result
}

// Resolve matches a descriptor against the session's code units.
func (s *Session) Resolve(node descriptor.MethodNode) (*clr.Method, error) {
	return descriptor.ResolveMethod(node, s.resolver)
}

// DecodeMethod resolves one JSON method descriptor.
func (s *Session) DecodeMethod(data []byte) (*clr.Method, error) {
	return descriptor.Deserialize(data, s.resolver)
}

// Load reads the code unit stored at path. References from it resolve through the
// session's probe directories and search directory.
func (s *Session) Load(path string) (*clr.CodeUnit, error) {
	return s.resolver.LoadByPath(path)
}

// Close releases every code unit loaded by the session.
func (s *Session) Close() error {
	s.logger.Debug("session closed")
	return s.resolver.Close()
}

// Parse runs a whole session over logs with searchDir as the application directory.
func Parse(logs jitlog.LogSet, searchDir string, opts Options) (*Result, error) {
	s, err := Open(searchDir, opts)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.Parse(logs), nil
}

// EncodeMethod renders one method as a JSON descriptor.
func EncodeMethod(m *clr.Method) ([]byte, error) {
	return descriptor.Serialize(m)
}

// DecodeMethod resolves one JSON descriptor in a fresh session over searchDir.
func DecodeMethod(data []byte, searchDir string, opts Options) (*clr.Method, error) {
	s, err := Open(searchDir, opts)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.DecodeMethod(data)
}

// Text is the diagnostic text of the run, one message per line.
func (r *Result) Text() string {
	return r.Diagnostics.Text()
}
