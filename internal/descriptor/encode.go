package descriptor

import (
	"fmt"

	"jitmanifest/internal/clr"
)

// EncodeType describes t. Generic parameters found inside t have no code unit of their
// own and carry an empty Assembly; EncodeMethod fills it in with the declaring unit.
func EncodeType(t *clr.Type) TypeNode {
	return encodeType(t, "")
}

func encodeType(t *clr.Type, scope string) TypeNode {
	switch {
	case t.IsCompound():
		node := encodeType(t.Elem(), scope)
		node.Name += t.Suffix()
		return node
	case t.IsGenericParameter():
		return TypeNode{Name: t.FullName(), Assembly: scope}
	case t.IsConstructedGeneric():
		definition := t.GenericTypeDefinition()
		args := t.GenericArguments()
		node := TypeNode{
			Name:             definition.Def().FullName(),
			Assembly:         definition.Unit().Name(),
			GenericArguments: make([]TypeNode, len(args)),
		}
		for i, arg := range args {
			node.GenericArguments[i] = encodeType(arg, scope)
		}
		return node
	}

	return TypeNode{Name: t.Def().FullName(), Assembly: t.Unit().Name()}
}

// EncodeMethod describes m. Method generic arguments are recorded only when the
// method is a fully closed generic instantiation.
func EncodeMethod(m *clr.Method) (MethodNode, error) {
	declaring := m.DeclaringType()
	scope := declaring.Unit().Name()

	params, err := m.Parameters()
	if err != nil {
		return MethodNode{}, fmt.Errorf("failed to encode %s::%s: %w", declaring, m.Name(), err)
	}

	declaringNode := encodeType(declaring, scope)
	node := MethodNode{
		DeclaringType:    &declaringNode,
		Name:             m.Name(),
		GenericArguments: []TypeNode{},
		ParameterTypes:   make([]TypeNode, len(params)),
		IsConstructor:    m.IsConstructor(),
		IsStatic:         m.IsStatic(),
	}
	for i, param := range params {
		node.ParameterTypes[i] = encodeType(param, scope)
	}
	if m.IsGenericMethod() && !m.ContainsGenericParameters() {
		for _, arg := range m.GenericArguments() {
			node.GenericArguments = append(node.GenericArguments, encodeType(arg, scope))
		}
	}

	return node, nil
}
