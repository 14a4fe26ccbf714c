package clr

import (
	"fmt"

	"fortio.org/safecast"
)

// Builder assembles a CodeUnit. Types and methods receive consecutive rows in the
// order they are defined, so a metadata reader must define them in table order.
type Builder struct {
	unit *CodeUnit
}

func NewBuilder(identity Identity, path string) *Builder {
	return &Builder{
		unit: &CodeUnit{
			identity:   identity,
			path:       path,
			forwarders: map[string]string{},
		},
	}
}

// DefineType appends a TypeDef row.
func (b *Builder) DefineType(namespace, name string) *TypeDef {
	row, err := safecast.Conv[uint32](len(b.unit.types) + 1)
	if err != nil {
		panic(fmt.Errorf("TypeDef table of %s is full: %w", b.unit.Name(), err))
	}

	def := &TypeDef{
		unit:      b.unit,
		token:     NewToken(TableTypeDef, row),
		namespace: namespace,
		name:      name,
	}
	b.unit.types = append(b.unit.types, def)
	return def
}

// DefineNestedType appends a TypeDef row nested in enclosing.
func (b *Builder) DefineNestedType(enclosing *TypeDef, name string) *TypeDef {
	def := b.DefineType("", name)
	b.Nest(def, enclosing)
	return def
}

// Nest records that nested is declared inside enclosing. Nested types carry no namespace.
func (b *Builder) Nest(nested, enclosing *TypeDef) {
	nested.enclosing = enclosing
	nested.namespace = ""
}

// DefineMethod appends a MethodDef row with a known signature.
func (b *Builder) DefineMethod(owner *TypeDef, name string, attrs MethodAttributes, arity int, sig Signature) *MethodDef {
	def := b.appendMethod(owner, name, attrs, arity)
	def.sig = &sig
	return def
}

// DefineLazyMethod appends a MethodDef row whose signature is decoded on first use.
func (b *Builder) DefineLazyMethod(owner *TypeDef, name string, attrs MethodAttributes, arity int, decode func() (Signature, error)) *MethodDef {
	def := b.appendMethod(owner, name, attrs, arity)
	def.decode = decode
	return def
}

func (b *Builder) appendMethod(owner *TypeDef, name string, attrs MethodAttributes, arity int) *MethodDef {
	row, err := safecast.Conv[uint32](len(b.unit.methods) + 1)
	if err != nil {
		panic(fmt.Errorf("MethodDef table of %s is full: %w", b.unit.Name(), err))
	}

	def := &MethodDef{
		owner: owner,
		token: NewToken(TableMethodDef, row),
		name:  name,
		attrs: attrs,
		arity: arity,
	}
	owner.methods = append(owner.methods, def)
	b.unit.methods = append(b.unit.methods, def)
	return def
}

// Forward records that fullName is implemented by another assembly.
func (b *Builder) Forward(fullName, assembly string) {
	b.unit.forwarders[fullName] = assembly
}

// Unit indexes the types by full name and returns the finished unit. Nesting must be
// complete by then; the first definition of a duplicated name wins.
func (b *Builder) Unit() *CodeUnit {
	b.unit.byName = make(map[string]*TypeDef, len(b.unit.types))
	for _, def := range b.unit.types {
		if _, found := b.unit.byName[def.FullName()]; !found {
			b.unit.byName[def.FullName()] = def
		}
	}
	return b.unit
}
