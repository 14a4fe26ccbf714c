// Package jitlog reads the three newline-delimited JSON logs written by the JIT
// profiler agent and joins them into per-method resolution requests.
package jitlog

import (
	"jitmanifest/internal/clr"
)

// CompiledMethod is one line of the JIT log: a function reached the JIT compiler.
type CompiledMethod struct {
	FunctionID uint64 `json:"FunctionID"`
}

// Module is one line of the modules log. Unit is filled in once the module has been
// resolved to a code unit and lives as long as the parsing session.
type Module struct {
	ModuleID     uint64 `json:"ModuleID"`
	ModuleName   string `json:"ModuleName"`
	AssemblyID   uint64 `json:"AssemblyID"`
	AssemblyName string `json:"AssemblyName"`

	Unit *clr.CodeUnit `json:"-"`
}

// TypeArg names a generic argument by its module and TypeDef token. Nested holds the
// arguments of the argument itself when it is a closed generic type.
type TypeArg struct {
	ModuleID    uint64    `json:"ModuleID"`
	TypeDef     uint32    `json:"TypeDef"`
	NestedCount int       `json:"NestedCount"`
	Nested      []TypeArg `json:"Nested"`
}

// MethodMetadata is one line of the enter3 log, linking a FunctionID to the tokens
// that identify the method and the generic arguments it was compiled for.
type MethodMetadata struct {
	FunctionID            uint64    `json:"FunctionID"`
	ModuleID              uint64    `json:"ModuleID"`
	MethodToken           uint32    `json:"MethodToken"`
	DeclaringTypeModuleID uint64    `json:"DeclaringTypeModuleID"`
	DeclaringTypeToken    uint32    `json:"DeclaringTypeToken"`
	DeclaringTypeArgCount int       `json:"DeclaringTypeArgCount"`
	DeclaringTypeArgs     []TypeArg `json:"DeclaringTypeArgs"`
	MethodTypeArgCount    int       `json:"MethodTypeArgCount"`
	MethodTypeArgs        []TypeArg `json:"MethodTypeArgs"`
}

func (m *MethodMetadata) MethodTokenValue() clr.Token {
	return clr.Token(m.MethodToken)
}

func (m *MethodMetadata) DeclaringTypeTokenValue() clr.Token {
	return clr.Token(m.DeclaringTypeToken)
}
