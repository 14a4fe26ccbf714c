package descriptor

import (
	"fmt"
	"strconv"
	"strings"

	"jitmanifest/internal/clr"
)

// DecodeType resolves a type node: the code unit is loaded by its short name, the
// name is looked up in it (following type forwarders) and closed over the decoded
// generic arguments when they are present.
func DecodeType(node TypeNode, loader clr.Loader) (*clr.Type, error) {
	if strings.TrimSpace(node.Name) == "" {
		return nil, fmt.Errorf("%w: type Name is required", ErrMalformed)
	}
	if strings.TrimSpace(node.Assembly) == "" {
		return nil, fmt.Errorf("%w: type %s has no Assembly", ErrMalformed, node.Name)
	}
	if node.GenericArguments != nil && len(node.GenericArguments) == 0 {
		return nil, fmt.Errorf("%w: type %s has an empty GenericArguments list", ErrMalformed, node.Name)
	}

	base, wrappers := splitSuffixes(node.Name)

	var t *clr.Type
	var err error
	if strings.HasPrefix(base, "!") {
		if len(node.GenericArguments) > 0 {
			return nil, fmt.Errorf("%w: generic parameter %s has GenericArguments", ErrMalformed, base)
		}
		t, err = genericParameter(base)
	} else {
		t, err = namedType(base, node, loader)
	}
	if err != nil {
		return nil, err
	}

	for i := len(wrappers) - 1; i >= 0; i-- {
		t = wrappers[i](t)
	}
	return t, nil
}

func namedType(name string, node TypeNode, loader clr.Loader) (*clr.Type, error) {
	unit, err := loader.LoadByName(node.Assembly)
	if err != nil {
		return nil, fmt.Errorf("%w: assembly %s: %w", ErrNotFound, node.Assembly, err)
	}
	def, err := clr.FindType(loader, unit, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	t := def.Type()
	if len(node.GenericArguments) == 0 {
		return t, nil
	}

	args := make([]*clr.Type, len(node.GenericArguments))
	for i, argNode := range node.GenericArguments {
		if args[i], err = DecodeType(argNode, loader); err != nil {
			return nil, fmt.Errorf("generic argument %d of %s: %w", i, name, err)
		}
	}
	if definition := t.GenericTypeDefinition(); definition != nil {
		t = definition
	}
	closed, err := t.MakeGeneric(args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return closed, nil
}

// genericParameter parses !n (type parameter) and !!n (method parameter).
func genericParameter(name string) (*clr.Type, error) {
	digits, method := strings.CutPrefix(name, "!!")
	if !method {
		digits = strings.TrimPrefix(name, "!")
	}
	position, err := strconv.Atoi(digits)
	if err != nil || position < 0 {
		return nil, fmt.Errorf("%w: invalid generic parameter name %q", ErrMalformed, name)
	}
	if method {
		return clr.MethodVar(position), nil
	}
	return clr.TypeVar(position), nil
}

// splitSuffixes strips array, by-ref and pointer suffixes from the end of a name.
// The wrappers are returned outermost first.
func splitSuffixes(name string) (string, []func(*clr.Type) *clr.Type) {
	var wrappers []func(*clr.Type) *clr.Type
	for {
		switch {
		case strings.HasSuffix(name, "&"):
			name = name[:len(name)-1]
			wrappers = append(wrappers, clr.ByRef)
			continue
		case strings.HasSuffix(name, "*") && !strings.HasSuffix(name, "[*]"):
			name = name[:len(name)-1]
			wrappers = append(wrappers, clr.Pointer)
			continue
		case strings.HasSuffix(name, "]"):
			open := strings.LastIndexByte(name, '[')
			if open <= 0 {
				return name, wrappers
			}
			rank, ok := arrayRank(name[open+1 : len(name)-1])
			if !ok {
				return name, wrappers
			}
			name = name[:open]
			if rank == 0 {
				wrappers = append(wrappers, clr.SZArray)
			} else {
				wrappers = append(wrappers, func(elem *clr.Type) *clr.Type { return clr.MDArray(elem, rank) })
			}
			continue
		}
		return name, wrappers
	}
}

// arrayRank interprets the inside of an array suffix: "" is a vector (rank 0 here),
// "*" a rank-1 multi-dimensional array and n-1 commas a rank n array.
func arrayRank(inside string) (int, bool) {
	switch {
	case inside == "":
		return 0, true
	case inside == "*":
		return 1, true
	case strings.Trim(inside, ",") == "":
		return len(inside) + 1, true
	}
	return 0, false
}
