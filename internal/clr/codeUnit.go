package clr

import (
	"fmt"
)

// Identity is the declared name and version of a code unit, as stored in its Assembly row.
type Identity struct {
	Name    string
	Version string
}

// CodeUnit is a loaded assembly: its TypeDef and MethodDef tables plus the
// forwarders it exports. Units are immutable once built.
type CodeUnit struct {
	identity   Identity
	path       string
	types      []*TypeDef
	methods    []*MethodDef
	byName     map[string]*TypeDef
	forwarders map[string]string
}

// Name returns the short, version-independent assembly name.
func (u *CodeUnit) Name() string {
	return u.identity.Name
}

func (u *CodeUnit) Version() string {
	return u.identity.Version
}

func (u *CodeUnit) Identity() Identity {
	return u.identity
}

// Path is the file the unit was read from. Empty for in-memory units.
func (u *CodeUnit) Path() string {
	return u.path
}

// Types returns the TypeDefs in table order.
func (u *CodeUnit) Types() []*TypeDef {
	return u.types
}

// TypeByName looks up a type by its reflection-style full name (Namespace.Outer+Inner).
func (u *CodeUnit) TypeByName(fullName string) (*TypeDef, bool) {
	def, found := u.byName[fullName]
	return def, found
}

// Forwarded reports the assembly a type has been forwarded to, if any.
func (u *CodeUnit) Forwarded(fullName string) (assembly string, found bool) {
	assembly, found = u.forwarders[fullName]
	return assembly, found
}

// ResolveType returns the TypeDef named by a TypeDef token.
func (u *CodeUnit) ResolveType(token Token) (*TypeDef, error) {
	if token.Table() != TableTypeDef || token.IsNil() {
		return nil, fmt.Errorf("%w: %s is not a TypeDef token", ErrBadToken, token)
	}
	row := int(token.Row())
	if row > len(u.types) {
		return nil, fmt.Errorf("%w: TypeDef row %d out of range in %s (%d rows)", ErrBadToken, row, u.Name(), len(u.types))
	}

	return u.types[row-1], nil
}

// ResolveMethod returns the MethodDef named by a MethodDef token.
func (u *CodeUnit) ResolveMethod(token Token) (*MethodDef, error) {
	if token.Table() != TableMethodDef || token.IsNil() {
		return nil, fmt.Errorf("%w: %s is not a MethodDef token", ErrBadToken, token)
	}
	row := int(token.Row())
	if row > len(u.methods) {
		return nil, fmt.Errorf("%w: MethodDef row %d out of range in %s (%d rows)", ErrBadToken, row, u.Name(), len(u.methods))
	}

	return u.methods[row-1], nil
}

func (u *CodeUnit) String() string {
	if u.identity.Version == "" {
		return u.identity.Name
	}
	return fmt.Sprintf("%s, Version=%s", u.identity.Name, u.identity.Version)
}
