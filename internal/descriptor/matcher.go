package descriptor

import (
	"errors"
	"fmt"
	"strings"

	"jitmanifest/internal/clr"
)

// ResolveMethod finds the method a node describes on its declaring type. Constructors
// are matched by static-ness and parameter types. Other methods are matched by exact
// name; when the node carries generic arguments the candidate must be a generic
// method definition of that arity, closed over them before its parameters are
// compared. The first candidate in metadata order whose parameter types match exactly
// is returned.
func ResolveMethod(node MethodNode, loader clr.Loader) (*clr.Method, error) {
	if node.DeclaringType == nil {
		return nil, fmt.Errorf("%w: DeclaringType is required", ErrMalformed)
	}
	if strings.TrimSpace(node.Name) == "" {
		return nil, fmt.Errorf("%w: Name is required", ErrMalformed)
	}

	declaring, err := DecodeType(*node.DeclaringType, loader)
	if err != nil {
		return nil, fmt.Errorf("declaring type of %s: %w", node.Name, err)
	}
	genericArgs, err := decodeTypes(node.GenericArguments, loader)
	if err != nil {
		return nil, fmt.Errorf("generic arguments of %s: %w", node.Name, err)
	}
	params, err := decodeTypes(node.ParameterTypes, loader)
	if err != nil {
		return nil, fmt.Errorf("parameter types of %s: %w", node.Name, err)
	}

	if node.IsConstructor {
		return findConstructor(declaring, node.IsStatic, params)
	}
	return findMethod(declaring, node.Name, genericArgs, params)
}

func findConstructor(declaring *clr.Type, static bool, params []*clr.Type) (*clr.Method, error) {
	var sigErrs []error
	for _, ctor := range declaring.Constructors() {
		if ctor.IsStatic() != static {
			continue
		}
		match, err := parametersMatch(ctor, params)
		if err != nil {
			sigErrs = append(sigErrs, err)
			continue
		}
		if match {
			return ctor, nil
		}
	}

	err := fmt.Errorf("%w: %w: could not find constructor on %s with specified signature", ErrNotFound, clr.ErrMethodNotFound, declaring)
	return nil, withSignatureErrors(err, sigErrs)
}

func findMethod(declaring *clr.Type, name string, genericArgs, params []*clr.Type) (*clr.Method, error) {
	var sigErrs []error
	for _, candidate := range declaring.Methods() {
		if candidate.Name() != name {
			continue
		}

		if len(genericArgs) > 0 {
			if !candidate.IsGenericMethodDefinition() || candidate.Def().Arity() != len(genericArgs) {
				continue
			}
			closed, err := candidate.MakeGeneric(genericArgs...)
			if err != nil {
				continue
			}
			candidate = closed
		}

		match, err := parametersMatch(candidate, params)
		if err != nil {
			sigErrs = append(sigErrs, err)
			continue
		}
		if match {
			return candidate, nil
		}
	}

	err := fmt.Errorf("%w: %w: could not find method '%s' on %s with specified signature", ErrNotFound, clr.ErrMethodNotFound, name, declaring)
	return nil, withSignatureErrors(err, sigErrs)
}

// withSignatureErrors attaches the signatures that could not be decoded while
// searching, since one of them may have been the wanted member.
func withSignatureErrors(err error, sigErrs []error) error {
	if len(sigErrs) == 0 {
		return err
	}
	return errors.Join(append([]error{err}, sigErrs...)...)
}

func parametersMatch(m *clr.Method, want []*clr.Type) (bool, error) {
	got, err := m.Parameters()
	if err != nil {
		return false, err
	}
	return clr.IdenticalAll(got, want), nil
}

func decodeTypes(nodes []TypeNode, loader clr.Loader) ([]*clr.Type, error) {
	types := make([]*clr.Type, len(nodes))
	for i, node := range nodes {
		t, err := DecodeType(node, loader)
		if err != nil {
			return nil, fmt.Errorf("type %d: %w", i, err)
		}
		types[i] = t
	}
	return types, nil
}
