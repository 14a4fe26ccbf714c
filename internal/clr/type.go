package clr

import (
	"fmt"
	"strings"
)

type Kind uint8

const (
	// KindNamed is a TypeDef used as-is: a non-generic type or an open generic definition.
	KindNamed Kind = iota
	// KindGenericInstance is a generic definition closed over type arguments.
	KindGenericInstance
	// KindTypeVar is the n-th generic parameter of the enclosing type (!n).
	KindTypeVar
	// KindMethodVar is the n-th generic parameter of the method (!!n).
	KindMethodVar
	KindSZArray
	KindArray
	KindByRef
	KindPointer
)

func (k Kind) String() string {
	switch k {
	case KindNamed:
		return "named"
	case KindGenericInstance:
		return "generic instance"
	case KindTypeVar:
		return "type variable"
	case KindMethodVar:
		return "method variable"
	case KindSZArray:
		return "array"
	case KindArray:
		return "multi-dimensional array"
	case KindByRef:
		return "by-ref"
	case KindPointer:
		return "pointer"
	default:
		return "unknown"
	}
}

// Type is an immutable runtime type.
type Type struct {
	kind Kind
	def  *TypeDef
	args []*Type
	elem *Type
	// rank for KindArray, position for KindTypeVar and KindMethodVar
	n int
}

func TypeVar(position int) *Type {
	return &Type{kind: KindTypeVar, n: position}
}

func MethodVar(position int) *Type {
	return &Type{kind: KindMethodVar, n: position}
}

func SZArray(elem *Type) *Type {
	return &Type{kind: KindSZArray, elem: elem}
}

// MDArray returns a multi-dimensional array type. A rank of one still differs from SZArray.
func MDArray(elem *Type, rank int) *Type {
	return &Type{kind: KindArray, elem: elem, n: rank}
}

func ByRef(elem *Type) *Type {
	return &Type{kind: KindByRef, elem: elem}
}

func Pointer(elem *Type) *Type {
	return &Type{kind: KindPointer, elem: elem}
}

func (t *Type) Kind() Kind {
	return t.kind
}

// Def returns the underlying TypeDef of a named type or generic instance.
func (t *Type) Def() *TypeDef {
	return t.def
}

// Elem returns the element type of an array, by-ref or pointer.
func (t *Type) Elem() *Type {
	return t.elem
}

func (t *Type) Rank() int {
	switch t.kind {
	case KindSZArray:
		return 1
	case KindArray:
		return t.n
	}
	return 0
}

// Position returns the parameter index of a TypeVar or MethodVar.
func (t *Type) Position() int {
	return t.n
}

// Unit returns the code unit that defines the type, or its element type. Generic
// parameters have no unit.
func (t *Type) Unit() *CodeUnit {
	switch t.kind {
	case KindNamed, KindGenericInstance:
		return t.def.unit
	case KindSZArray, KindArray, KindByRef, KindPointer:
		return t.elem.Unit()
	}
	return nil
}

func (t *Type) IsGenericTypeDefinition() bool {
	return t.kind == KindNamed && t.def.Arity() > 0
}

func (t *Type) IsConstructedGeneric() bool {
	return t.kind == KindGenericInstance
}

func (t *Type) IsGenericParameter() bool {
	return t.kind == KindTypeVar || t.kind == KindMethodVar
}

// IsCompound reports whether the type wraps an element type.
func (t *Type) IsCompound() bool {
	switch t.kind {
	case KindSZArray, KindArray, KindByRef, KindPointer:
		return true
	}
	return false
}

// GenericTypeDefinition returns the open definition of a generic definition or instance,
// and nil for every other type.
func (t *Type) GenericTypeDefinition() *Type {
	switch {
	case t.kind == KindGenericInstance:
		return t.def.Type()
	case t.IsGenericTypeDefinition():
		return t
	}
	return nil
}

// GenericArguments returns the type arguments of a generic instance.
func (t *Type) GenericArguments() []*Type {
	if t.kind != KindGenericInstance {
		return nil
	}
	return append([]*Type(nil), t.args...)
}

// ContainsGenericParameters reports whether any generic parameter or open definition
// occurs in the type.
func (t *Type) ContainsGenericParameters() bool {
	switch t.kind {
	case KindTypeVar, KindMethodVar:
		return true
	case KindNamed:
		return t.IsGenericTypeDefinition()
	case KindGenericInstance:
		for _, arg := range t.args {
			if arg.ContainsGenericParameters() {
				return true
			}
		}
		return false
	}
	return t.elem.ContainsGenericParameters()
}

// MakeGeneric closes a generic type definition over the given arguments.
func (t *Type) MakeGeneric(args ...*Type) (*Type, error) {
	if !t.IsGenericTypeDefinition() {
		return nil, fmt.Errorf("%w: %s", ErrNotGenericDefinition, t)
	}
	if arity := t.def.Arity(); len(args) != arity {
		return nil, fmt.Errorf("%w for %s: expected %d, got %d", ErrArityMismatch, t, arity, len(args))
	}
	for i, arg := range args {
		if err := checkTypeArgument(arg); err != nil {
			return nil, fmt.Errorf("argument %d of %s: %w", i, t, err)
		}
	}

	return &Type{kind: KindGenericInstance, def: t.def, args: append([]*Type(nil), args...)}, nil
}

func checkTypeArgument(arg *Type) error {
	if arg == nil {
		return fmt.Errorf("%w: nil", ErrInvalidTypeArgument)
	}
	switch arg.kind {
	case KindByRef, KindPointer:
		return fmt.Errorf("%w: %s", ErrInvalidTypeArgument, arg)
	}
	return nil
}

// Substitute replaces TypeVar and MethodVar placeholders with the given arguments.
// Placeholders without a matching argument are kept.
func (t *Type) Substitute(typeArgs, methodArgs []*Type) *Type {
	switch t.kind {
	case KindTypeVar:
		if t.n < len(typeArgs) {
			return typeArgs[t.n]
		}
		return t
	case KindMethodVar:
		if t.n < len(methodArgs) {
			return methodArgs[t.n]
		}
		return t
	case KindNamed:
		return t
	case KindGenericInstance:
		var args []*Type
		for i, arg := range t.args {
			sub := arg.Substitute(typeArgs, methodArgs)
			if sub != arg && args == nil {
				args = append(make([]*Type, 0, len(t.args)), t.args[:i]...)
			}
			if args != nil {
				args = append(args, sub)
			}
		}
		if args == nil {
			return t
		}
		return &Type{kind: KindGenericInstance, def: t.def, args: args}
	}

	elem := t.elem.Substitute(typeArgs, methodArgs)
	if elem == t.elem {
		return t
	}
	return &Type{kind: t.kind, elem: elem, n: t.n}
}

// Methods returns the non-constructor methods declared on the type. For a generic
// instance the returned methods see the instance's arguments.
func (t *Type) Methods() []*Method {
	return t.members(false)
}

// Constructors returns the instance and static constructors declared on the type.
func (t *Type) Constructors() []*Method {
	return t.members(true)
}

func (t *Type) members(constructors bool) []*Method {
	if t.kind != KindNamed && t.kind != KindGenericInstance {
		return nil
	}
	var members []*Method
	for _, def := range t.def.methods {
		if def.IsConstructor() != constructors {
			continue
		}
		members = append(members, &Method{def: def, owner: t})
	}
	return members
}

// FullName renders the type for diagnostics: List`1[System.Int32], System.Int32[], !0.
func (t *Type) FullName() string {
	var sb strings.Builder
	t.writeName(&sb)
	return sb.String()
}

func (t *Type) String() string {
	return t.FullName()
}

func (t *Type) writeName(sb *strings.Builder) {
	switch t.kind {
	case KindNamed:
		sb.WriteString(t.def.FullName())
	case KindGenericInstance:
		sb.WriteString(t.def.FullName())
		sb.WriteByte('[')
		for i, arg := range t.args {
			if i > 0 {
				sb.WriteByte(',')
			}
			arg.writeName(sb)
		}
		sb.WriteByte(']')
	case KindTypeVar:
		fmt.Fprintf(sb, "!%d", t.n)
	case KindMethodVar:
		fmt.Fprintf(sb, "!!%d", t.n)
	default:
		t.elem.writeName(sb)
		sb.WriteString(t.Suffix())
	}
}

// Suffix is the name suffix a compound type adds to its element: [], [,], & or *.
func (t *Type) Suffix() string {
	switch t.kind {
	case KindSZArray:
		return "[]"
	case KindArray:
		if t.n <= 1 {
			return "[*]"
		}
		return "[" + strings.Repeat(",", t.n-1) + "]"
	case KindByRef:
		return "&"
	case KindPointer:
		return "*"
	}
	return ""
}

// Identical reports whether two types are the same type. Named types compare by
// defining unit name and full name, so types read by two separate loads of a unit match.
func Identical(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.kind != b.kind {
		return false
	}

	switch a.kind {
	case KindNamed:
		return sameDef(a.def, b.def)
	case KindGenericInstance:
		if !sameDef(a.def, b.def) || len(a.args) != len(b.args) {
			return false
		}
		for i := range a.args {
			if !Identical(a.args[i], b.args[i]) {
				return false
			}
		}
		return true
	case KindTypeVar, KindMethodVar:
		return a.n == b.n
	}
	return a.n == b.n && Identical(a.elem, b.elem)
}

// IdenticalAll compares two type sequences element-wise.
func IdenticalAll(a, b []*Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Identical(a[i], b[i]) {
			return false
		}
	}
	return true
}

func sameDef(a, b *TypeDef) bool {
	if a == b {
		return true
	}
	return a.unit.Name() == b.unit.Name() && a.FullName() == b.FullName()
}
