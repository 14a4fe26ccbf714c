package clr

import (
	"strconv"
	"strings"
)

// TypeDef is a row of a unit's TypeDef table.
type TypeDef struct {
	unit      *CodeUnit
	token     Token
	namespace string
	name      string
	enclosing *TypeDef
	methods   []*MethodDef
	self      *Type
}

func (def *TypeDef) Unit() *CodeUnit {
	return def.unit
}

func (def *TypeDef) Token() Token {
	return def.token
}

func (def *TypeDef) Namespace() string {
	return def.namespace
}

// Name is the simple metadata name, including any `N arity suffix.
func (def *TypeDef) Name() string {
	return def.name
}

func (def *TypeDef) Enclosing() *TypeDef {
	return def.enclosing
}

// FullName follows the reflection convention: Namespace.Name for top-level types
// and Enclosing+Name for nested ones.
func (def *TypeDef) FullName() string {
	if def.enclosing != nil {
		return def.enclosing.FullName() + "+" + def.name
	}
	if def.namespace == "" {
		return def.name
	}
	return def.namespace + "." + def.name
}

// Arity is the number of generic parameters, including those inherited from
// enclosing types: Outer`1+Inner`1 has two.
func (def *TypeDef) Arity() int {
	arity := ownArity(def.name)
	if def.enclosing != nil {
		arity += def.enclosing.Arity()
	}
	return arity
}

// Methods returns every MethodDef owned by the type, constructors included, in table order.
func (def *TypeDef) Methods() []*MethodDef {
	return def.methods
}

// Type returns the type as declared: an open definition when the type is generic.
func (def *TypeDef) Type() *Type {
	if def.self == nil {
		def.self = &Type{kind: KindNamed, def: def}
	}
	return def.self
}

func (def *TypeDef) String() string {
	return def.FullName()
}

func ownArity(name string) int {
	tick := strings.LastIndexByte(name, '`')
	if tick < 0 {
		return 0
	}
	n, err := strconv.Atoi(name[tick+1:])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// MethodAttributes mirrors the subset of ECMA-335 MethodAttributes the resolver cares about.
type MethodAttributes uint16

const (
	MethodStatic      MethodAttributes = 0x0010
	MethodVirtual     MethodAttributes = 0x0040
	MethodSpecialName MethodAttributes = 0x0800
)

// Constructor method names.
const (
	InstanceConstructorName = ".ctor"
	TypeConstructorName     = ".cctor"
)

// Signature is a decoded method signature. Types may contain TypeVar and MethodVar
// placeholders for the owner's and the method's generic parameters.
type Signature struct {
	Return *Type
	Params []*Type
}

// MethodDef is a row of a unit's MethodDef table.
type MethodDef struct {
	owner  *TypeDef
	token  Token
	name   string
	attrs  MethodAttributes
	arity  int
	sig    *Signature
	decode func() (Signature, error)
	sigErr error
}

func (m *MethodDef) Owner() *TypeDef {
	return m.owner
}

func (m *MethodDef) Token() Token {
	return m.token
}

func (m *MethodDef) Name() string {
	return m.name
}

func (m *MethodDef) Attributes() MethodAttributes {
	return m.attrs
}

func (m *MethodDef) IsStatic() bool {
	return m.attrs&MethodStatic != 0
}

func (m *MethodDef) IsConstructor() bool {
	return m.name == InstanceConstructorName || m.name == TypeConstructorName
}

// Arity is the method's own generic parameter count.
func (m *MethodDef) Arity() int {
	return m.arity
}

// Signature returns the decoded signature. Signatures read from metadata are
// decoded on first use, since they may reference types in other units.
func (m *MethodDef) Signature() (Signature, error) {
	if m.sig != nil {
		return *m.sig, nil
	}
	if m.sigErr != nil {
		return Signature{}, m.sigErr
	}
	if m.decode == nil {
		m.sig = &Signature{}
		return *m.sig, nil
	}

	sig, err := m.decode()
	if err != nil {
		m.sigErr = err
		return Signature{}, err
	}
	m.sig = &sig
	m.decode = nil
	return sig, nil
}

func (m *MethodDef) String() string {
	return m.owner.FullName() + "::" + m.name
}
