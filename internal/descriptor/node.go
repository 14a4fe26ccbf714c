// Package descriptor converts types and methods into symbolic, version-agnostic
// trees and resolves such trees back against the code units of another session.
package descriptor

import "errors"

var (
	// ErrMalformed reports a descriptor missing a required field.
	ErrMalformed = errors.New("malformed descriptor")
	// ErrNotFound reports a well-formed descriptor whose target does not exist in the
	// loaded code units.
	ErrNotFound = errors.New("descriptor target not found")
)

// TypeNode names a type by its reflection-style full name and the short name of the
// code unit defining it. GenericArguments is present only for closed generic types
// and then holds one node per generic parameter of the definition.
type TypeNode struct {
	Name             string     `json:"Name" yaml:"Name" msgpack:"Name"`
	Assembly         string     `json:"Assembly" yaml:"Assembly" msgpack:"Assembly"`
	GenericArguments []TypeNode `json:"GenericArguments,omitempty" yaml:"GenericArguments,omitempty" msgpack:"GenericArguments,omitempty"`
}

// MethodNode names a method by its declaring type, name and parameter types.
// GenericArguments is non-empty only for closed generic method instantiations.
type MethodNode struct {
	DeclaringType    *TypeNode  `json:"DeclaringType" yaml:"DeclaringType" msgpack:"DeclaringType"`
	Name             string     `json:"Name" yaml:"Name" msgpack:"Name"`
	GenericArguments []TypeNode `json:"GenericArguments" yaml:"GenericArguments" msgpack:"GenericArguments"`
	ParameterTypes   []TypeNode `json:"ParameterTypes" yaml:"ParameterTypes" msgpack:"ParameterTypes"`
	IsConstructor    bool       `json:"IsConstructor" yaml:"IsConstructor" msgpack:"IsConstructor"`
	IsStatic         bool       `json:"IsStatic" yaml:"IsStatic" msgpack:"IsStatic"`
}

func (n TypeNode) String() string {
	if len(n.GenericArguments) == 0 {
		return n.Name + ", " + n.Assembly
	}
	s := n.Name + "["
	for i, arg := range n.GenericArguments {
		if i > 0 {
			s += ","
		}
		s += "[" + arg.String() + "]"
	}
	return s + "], " + n.Assembly
}

func (n MethodNode) String() string {
	declaring := "<nil>"
	if n.DeclaringType != nil {
		declaring = n.DeclaringType.Name
	}
	return declaring + "::" + n.Name
}
