// Package reconstruct turns the tokens recorded by the profiler back into methods:
// declaring types closed over their recorded generic arguments, and generic methods
// closed over theirs.
package reconstruct

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"jitmanifest/internal/clr"
	"jitmanifest/internal/jitlog"
)

const DefaultMaxDepth = 32

var (
	ErrModuleNotFound = errors.New("module not found")
	ErrMemberNotFound = errors.New("member not found on closed generic type")
	ErrArgumentCount  = errors.New("type argument count mismatch")
	ErrTooDeep        = errors.New("type arguments nested too deeply")
	ErrInternal       = errors.New("internal error")
)

// ModuleLoader loads the code unit of a module reported by the profiler.
type ModuleLoader interface {
	LoadModule(assemblyName, modulePath string) (*clr.CodeUnit, error)
}

// Engine resolves method metadata events against the modules of one session.
type Engine struct {
	modules  map[uint64]*jitlog.Module
	loader   ModuleLoader
	maxDepth int
	logger   *zap.Logger
}

// NewEngine returns an engine over the given modules. A maxDepth of zero or less
// selects DefaultMaxDepth.
func NewEngine(modules map[uint64]*jitlog.Module, loader ModuleLoader, maxDepth int, logger *zap.Logger) *Engine {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		modules:  modules,
		loader:   loader,
		maxDepth: maxDepth,
		logger:   logger,
	}
}

// Resolve reconstructs the method an event describes. Any failure, including a panic
// raised while reading metadata, is returned as an error for this event alone.
func (e *Engine) Resolve(event *jitlog.MethodMetadata) (method *clr.Method, err error) {
	defer func() {
		if p := recover(); p != nil {
			method = nil
			err = fmt.Errorf("%w while resolving method token %s: %v", ErrInternal, event.MethodTokenValue(), p)
		}
	}()

	declaring, err := e.declaringType(event)
	if err != nil {
		return nil, err
	}

	method, err = e.method(declaring, event.MethodTokenValue())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve method token %s: %w", event.MethodTokenValue(), err)
	}

	if method.IsGenericMethodDefinition() && event.MethodTypeArgCount > 0 {
		args, err := e.typeArguments(event.MethodTypeArgs, event.MethodTypeArgCount, 0)
		if err != nil {
			return nil, fmt.Errorf("method type arguments of %s: %w", method.Def(), err)
		}
		method, err = method.MakeGeneric(args...)
		if err != nil {
			return nil, fmt.Errorf("failed to construct generic method: %w", err)
		}
	}

	e.logger.Debug("resolved method", zap.Uint64("function", event.FunctionID), zap.Stringer("method", method))
	return method, nil
}

func (e *Engine) declaringType(event *jitlog.MethodMetadata) (*clr.Type, error) {
	token := event.DeclaringTypeTokenValue()
	unit, err := e.unit(event.DeclaringTypeModuleID)
	if err != nil {
		return nil, fmt.Errorf("declaring type token %s: %w", token, err)
	}

	def, err := unit.ResolveType(token)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve declaring type token %s: %w", token, err)
	}
	declaring := def.Type()

	if declaring.IsGenericTypeDefinition() && event.DeclaringTypeArgCount > 0 {
		args, err := e.typeArguments(event.DeclaringTypeArgs, event.DeclaringTypeArgCount, 0)
		if err != nil {
			return nil, fmt.Errorf("type arguments of %s: %w", def, err)
		}
		declaring, err = declaring.MakeGeneric(args...)
		if err != nil {
			return nil, fmt.Errorf("failed to construct generic type: %w", err)
		}
	}

	return declaring, nil
}

// method resolves token in the declaring type's unit. A closed generic type's members
// are matched by the token of their definition, methods first and then constructors.
func (e *Engine) method(declaring *clr.Type, token clr.Token) (*clr.Method, error) {
	if !declaring.IsConstructedGeneric() {
		def, err := declaring.Unit().ResolveMethod(token)
		if err != nil {
			return nil, err
		}
		return clr.MethodOf(def), nil
	}

	for _, m := range declaring.Methods() {
		if m.Token() == token {
			return m, nil
		}
	}
	for _, ctor := range declaring.Constructors() {
		if ctor.Token() == token {
			return ctor, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, declaring)
}

// typeArguments resolves recorded arguments depth-first; nested arguments are closed
// before the type that uses them.
func (e *Engine) typeArguments(nodes []jitlog.TypeArg, expected, depth int) ([]*clr.Type, error) {
	if len(nodes) != expected {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrArgumentCount, expected, len(nodes))
	}
	if depth >= e.maxDepth {
		return nil, fmt.Errorf("%w: more than %d levels", ErrTooDeep, e.maxDepth)
	}

	args := make([]*clr.Type, len(nodes))
	for i := range nodes {
		arg, err := e.typeArgument(&nodes[i], depth)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve type argument for ModuleID=0x%X, TypeDef=0x%X: %w", nodes[i].ModuleID, nodes[i].TypeDef, err)
		}
		args[i] = arg
	}
	return args, nil
}

func (e *Engine) typeArgument(node *jitlog.TypeArg, depth int) (*clr.Type, error) {
	unit, err := e.unit(node.ModuleID)
	if err != nil {
		return nil, err
	}
	def, err := unit.ResolveType(clr.Token(node.TypeDef))
	if err != nil {
		return nil, err
	}
	t := def.Type()

	if len(node.Nested) == 0 && node.NestedCount == 0 {
		return t, nil
	}
	nested, err := e.typeArguments(node.Nested, node.NestedCount, depth+1)
	if err != nil {
		return nil, err
	}
	if !t.IsGenericTypeDefinition() {
		return t, nil
	}
	return t.MakeGeneric(nested...)
}

// unit returns the module's code unit, loading it on first use.
func (e *Engine) unit(moduleID uint64) (*clr.CodeUnit, error) {
	module, found := e.modules[moduleID]
	if !found {
		return nil, fmt.Errorf("%w: 0x%X", ErrModuleNotFound, moduleID)
	}
	if module.Unit != nil {
		return module.Unit, nil
	}

	unit, err := e.loader.LoadModule(module.AssemblyName, module.ModuleName)
	if err != nil {
		return nil, err
	}
	module.Unit = unit
	return unit, nil
}
