package clr

import (
	"fmt"
	"strings"
)

// Method is a resolved method handle: a MethodDef seen through its declaring type
// (a definition or a closed instance) and, for generic methods, its own type arguments.
type Method struct {
	def   *MethodDef
	owner *Type
	args  []*Type
}

// MethodOf returns the method as declared on its own, possibly open, type.
func MethodOf(def *MethodDef) *Method {
	return &Method{def: def, owner: def.owner.Type()}
}

func (m *Method) Def() *MethodDef {
	return m.def
}

func (m *Method) Name() string {
	return m.def.name
}

func (m *Method) Token() Token {
	return m.def.token
}

func (m *Method) DeclaringType() *Type {
	return m.owner
}

func (m *Method) IsStatic() bool {
	return m.def.IsStatic()
}

func (m *Method) IsConstructor() bool {
	return m.def.IsConstructor()
}

// IsGenericMethod reports whether the method declares its own generic parameters,
// whether or not they are bound.
func (m *Method) IsGenericMethod() bool {
	return m.def.arity > 0
}

// IsGenericMethodDefinition reports a generic method whose parameters are unbound.
func (m *Method) IsGenericMethodDefinition() bool {
	return m.def.arity > 0 && m.args == nil
}

// GenericArguments returns the method's type arguments; nil unless the method was closed.
func (m *Method) GenericArguments() []*Type {
	return append([]*Type(nil), m.args...)
}

// ContainsGenericParameters reports whether anything about the method is still open:
// its declaring type, its own parameters, or its arguments.
func (m *Method) ContainsGenericParameters() bool {
	if m.owner.ContainsGenericParameters() || m.IsGenericMethodDefinition() {
		return true
	}
	for _, arg := range m.args {
		if arg.ContainsGenericParameters() {
			return true
		}
	}
	return false
}

// MakeGeneric closes a generic method definition over the given arguments.
func (m *Method) MakeGeneric(args ...*Type) (*Method, error) {
	if !m.IsGenericMethodDefinition() {
		return nil, fmt.Errorf("%w: %s", ErrNotGenericDefinition, m)
	}
	if len(args) != m.def.arity {
		return nil, fmt.Errorf("%w for %s: expected %d, got %d", ErrArityMismatch, m.def, m.def.arity, len(args))
	}
	for i, arg := range args {
		if err := checkTypeArgument(arg); err != nil {
			return nil, fmt.Errorf("argument %d of %s: %w", i, m.def, err)
		}
	}

	return &Method{def: m.def, owner: m.owner, args: append([]*Type(nil), args...)}, nil
}

// Parameters returns the parameter types with the declaring instance's and the
// method's generic arguments substituted.
func (m *Method) Parameters() ([]*Type, error) {
	sig, err := m.def.Signature()
	if err != nil {
		return nil, fmt.Errorf("signature of %s: %w", m.def, err)
	}

	params := make([]*Type, len(sig.Params))
	typeArgs := m.owner.GenericArguments()
	for i, param := range sig.Params {
		params[i] = param.Substitute(typeArgs, m.args)
	}
	return params, nil
}

func (m *Method) ReturnType() (*Type, error) {
	sig, err := m.def.Signature()
	if err != nil {
		return nil, fmt.Errorf("signature of %s: %w", m.def, err)
	}
	if sig.Return == nil {
		return nil, nil
	}
	return sig.Return.Substitute(m.owner.GenericArguments(), m.args), nil
}

// String renders Owner::Name<Args>(Params) for diagnostics.
func (m *Method) String() string {
	var sb strings.Builder
	sb.WriteString(m.owner.FullName())
	sb.WriteString("::")
	sb.WriteString(m.def.name)
	if len(m.args) > 0 {
		sb.WriteByte('<')
		for i, arg := range m.args {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(arg.FullName())
		}
		sb.WriteByte('>')
	}

	params, err := m.Parameters()
	if err != nil {
		sb.WriteString("(?)")
		return sb.String()
	}
	sb.WriteByte('(')
	for i, param := range params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(param.FullName())
	}
	sb.WriteByte(')')
	return sb.String()
}
