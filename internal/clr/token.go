// Package clr models the parts of the CLI type system needed to resolve methods
// captured by the JIT profiler: code units, their TypeDef and MethodDef tables,
// and runtime types built from them (closed generics, arrays, by-refs, generic parameters).
package clr

import "fmt"

// Metadata table numbers as they appear in the high byte of a token.
const (
	TableTypeRef     byte = 0x01
	TableTypeDef     byte = 0x02
	TableMethodDef   byte = 0x06
	TableAssemblyRef byte = 0x23
	TableTypeSpec    byte = 0x1b
)

// Token is a metadata token: table number in the high byte, 1-based row in the low 24 bits.
type Token uint32

func NewToken(table byte, row uint32) Token {
	return Token(uint32(table)<<24 | row&0x00ffffff)
}

func (t Token) Table() byte {
	return byte(t >> 24)
}

func (t Token) Row() uint32 {
	return uint32(t) & 0x00ffffff
}

func (t Token) IsNil() bool {
	return t.Row() == 0
}

func (t Token) String() string {
	return fmt.Sprintf("0x%08X", uint32(t))
}
