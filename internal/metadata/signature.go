package metadata

import (
	"errors"
	"fmt"

	"github.com/microsoft/go-winmd/flags"

	"jitmanifest/internal/clr"
)

// Element types go-winmd's Win32 reader never needs; values per ECMA-335 II.23.1.16.
const (
	elementVoid        flags.ElementType = 0x01
	elementByRef       flags.ElementType = 0x10
	elementValueType   flags.ElementType = 0x11
	elementClass       flags.ElementType = 0x12
	elementVar         flags.ElementType = 0x13
	elementGenericInst flags.ElementType = 0x15
	elementTypedByRef  flags.ElementType = 0x16
	elementIntPtr      flags.ElementType = 0x18
	elementUIntPtr     flags.ElementType = 0x19
	elementFnPtr       flags.ElementType = 0x1b
	elementObject      flags.ElementType = 0x1c
	elementSZArray     flags.ElementType = 0x1d
	elementMVar        flags.ElementType = 0x1e
	elementCModReqd    flags.ElementType = 0x1f
	elementCModOpt     flags.ElementType = 0x20
	elementSentinel    flags.ElementType = 0x41
	elementPinned      flags.ElementType = 0x45
)

// Calling convention flag of a method signature with generic parameters.
const sigGeneric = 0x10

// The core library types the primitive element types stand for.
var primitiveTypes = map[flags.ElementType]string{
	elementVoid:               "System.Void",
	flags.ElementType_BOOLEAN: "System.Boolean",
	flags.ElementType_CHAR:    "System.Char",
	flags.ElementType_STRING:  "System.String",
	flags.ElementType_I1:      "System.SByte",
	flags.ElementType_I2:      "System.Int16",
	flags.ElementType_I4:      "System.Int32",
	flags.ElementType_I8:      "System.Int64",
	flags.ElementType_U1:      "System.Byte",
	flags.ElementType_U2:      "System.UInt16",
	flags.ElementType_U4:      "System.UInt32",
	flags.ElementType_U8:      "System.UInt64",
	flags.ElementType_R4:      "System.Single",
	flags.ElementType_R8:      "System.Double",
	elementTypedByRef:         "System.TypedReference",
	elementIntPtr:             "System.IntPtr",
	elementUIntPtr:            "System.UIntPtr",
	elementObject:             "System.Object",
}

var (
	ErrBadSignature         = errors.New("malformed signature blob")
	ErrUnsupportedSignature = errors.New("unsupported signature element")
)

// Function pointers and generic instantiations nest; real signatures stay far below this.
const maxSigDepth = 64

// sigContext resolves what a signature blob refers to outside of itself.
type sigContext interface {
	// coreType resolves a core library type such as System.Int32.
	coreType(fullName string) (*clr.Type, error)
	// typeDefOrRef resolves a TypeDefOrRefOrSpecEncoded value.
	typeDefOrRef(coded uint32) (*clr.Type, error)
}

type sigReader struct {
	blob  []byte
	pos   int
	ctx   sigContext
	depth int
}

// methodSigArity reads only the generic parameter count from the head of a
// MethodDefSig.
func methodSigArity(blob []byte) (int, error) {
	r := sigReader{blob: blob}
	conv, err := r.readByte()
	if err != nil {
		return 0, err
	}
	if conv&sigGeneric == 0 {
		return 0, nil
	}
	count, err := r.compressed()
	return int(count), err
}

// decodeMethodSig decodes a MethodDefSig (II.23.2.1).
func decodeMethodSig(blob []byte, ctx sigContext) (clr.Signature, error) {
	r := sigReader{blob: blob, ctx: ctx}
	sig, err := r.methodSig()
	if err != nil {
		return clr.Signature{}, fmt.Errorf("%w (at byte %d of % x)", err, r.pos, blob)
	}
	return sig, nil
}

func (r *sigReader) methodSig() (clr.Signature, error) {
	conv, err := r.readByte()
	if err != nil {
		return clr.Signature{}, err
	}
	if conv&sigGeneric != 0 {
		if _, err := r.compressed(); err != nil {
			return clr.Signature{}, err
		}
	}
	count, err := r.compressed()
	if err != nil {
		return clr.Signature{}, err
	}
	if int(count) > len(r.blob)-r.pos {
		return clr.Signature{}, fmt.Errorf("%w: %d parameters in a %d byte blob", ErrBadSignature, count, len(r.blob))
	}

	var sig clr.Signature
	if sig.Return, err = r.typ(); err != nil {
		return clr.Signature{}, fmt.Errorf("return type: %w", err)
	}
	sig.Params = make([]*clr.Type, 0, count)
	for i := 0; i < int(count); i++ {
		if r.peek() == byte(elementSentinel) {
			r.pos++
		}
		param, err := r.typ()
		if err != nil {
			return clr.Signature{}, fmt.Errorf("parameter %d: %w", i, err)
		}
		sig.Params = append(sig.Params, param)
	}
	return sig, nil
}

func (r *sigReader) typ() (*clr.Type, error) {
	r.depth++
	defer func() { r.depth-- }()
	if r.depth > maxSigDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", ErrBadSignature, maxSigDepth)
	}

	b, err := r.readByte()
	if err != nil {
		return nil, err
	}
	element := flags.ElementType(b)

	if name, found := primitiveTypes[element]; found {
		return r.ctx.coreType(name)
	}

	switch element {
	case elementCModReqd, elementCModOpt:
		if _, err := r.compressed(); err != nil {
			return nil, err
		}
		return r.typ()
	case elementPinned, elementSentinel:
		return r.typ()
	case elementByRef:
		elem, err := r.typ()
		if err != nil {
			return nil, err
		}
		return clr.ByRef(elem), nil
	case flags.ElementType_PTR:
		elem, err := r.typ()
		if err != nil {
			return nil, err
		}
		return clr.Pointer(elem), nil
	case elementSZArray:
		elem, err := r.typ()
		if err != nil {
			return nil, err
		}
		return clr.SZArray(elem), nil
	case flags.ElementType_ARRAY:
		return r.arrayShape()
	case elementClass, elementValueType:
		coded, err := r.compressed()
		if err != nil {
			return nil, err
		}
		return r.ctx.typeDefOrRef(coded)
	case elementVar, elementMVar:
		n, err := r.compressed()
		if err != nil {
			return nil, err
		}
		if element == elementVar {
			return clr.TypeVar(int(n)), nil
		}
		return clr.MethodVar(int(n)), nil
	case elementGenericInst:
		return r.genericInst()
	case elementFnPtr:
		// Function pointers surface as native ints.
		if _, err := r.methodSig(); err != nil {
			return nil, err
		}
		return r.ctx.coreType("System.IntPtr")
	}

	return nil, fmt.Errorf("%w: element type 0x%02x", ErrUnsupportedSignature, b)
}

func (r *sigReader) genericInst() (*clr.Type, error) {
	kind, err := r.readByte()
	if err != nil {
		return nil, err
	}
	if flags.ElementType(kind) != elementClass && flags.ElementType(kind) != elementValueType {
		return nil, fmt.Errorf("%w: generic instance of element type 0x%02x", ErrBadSignature, kind)
	}
	coded, err := r.compressed()
	if err != nil {
		return nil, err
	}
	definition, err := r.ctx.typeDefOrRef(coded)
	if err != nil {
		return nil, err
	}

	count, err := r.compressed()
	if err != nil {
		return nil, err
	}
	if count == 0 || int(count) > len(r.blob)-r.pos {
		return nil, fmt.Errorf("%w: %d generic arguments", ErrBadSignature, count)
	}
	args := make([]*clr.Type, count)
	for i := range args {
		if args[i], err = r.typ(); err != nil {
			return nil, fmt.Errorf("generic argument %d of %s: %w", i, definition, err)
		}
	}
	return definition.MakeGeneric(args...)
}

// arrayShape reads the element type and ArrayShape (II.23.2.13). Sizes and lower bounds
// are not part of the type's identity and are skipped.
func (r *sigReader) arrayShape() (*clr.Type, error) {
	elem, err := r.typ()
	if err != nil {
		return nil, err
	}
	rank, err := r.compressed()
	if err != nil {
		return nil, err
	}
	if rank == 0 {
		return nil, fmt.Errorf("%w: array of rank 0", ErrBadSignature)
	}
	for list := 0; list < 2; list++ {
		n, err := r.compressed()
		if err != nil {
			return nil, err
		}
		for i := uint32(0); i < n; i++ {
			if _, err := r.compressed(); err != nil {
				return nil, err
			}
		}
	}
	return clr.MDArray(elem, int(rank)), nil
}

func (r *sigReader) peek() byte {
	if r.pos >= len(r.blob) {
		return 0
	}
	return r.blob[r.pos]
}

func (r *sigReader) readByte() (byte, error) {
	if r.pos >= len(r.blob) {
		return 0, fmt.Errorf("%w: unexpected end", ErrBadSignature)
	}
	b := r.blob[r.pos]
	r.pos++
	return b, nil
}

// compressed reads an unsigned integer compressed per II.23.2 into one, two or four bytes.
func (r *sigReader) compressed() (uint32, error) {
	first, err := r.readByte()
	if err != nil {
		return 0, err
	}

	switch {
	case first&0x80 == 0:
		return uint32(first), nil
	case first&0xc0 == 0x80:
		second, err := r.readByte()
		if err != nil {
			return 0, err
		}
		return uint32(first&0x3f)<<8 | uint32(second), nil
	case first&0xe0 == 0xc0:
		if len(r.blob)-r.pos < 3 {
			return 0, fmt.Errorf("%w: truncated compressed integer", ErrBadSignature)
		}
		rest := r.blob[r.pos : r.pos+3]
		r.pos += 3
		return uint32(first&0x1f)<<24 | uint32(rest[0])<<16 | uint32(rest[1])<<8 | uint32(rest[2]), nil
	}
	return 0, fmt.Errorf("%w: invalid compressed integer lead byte 0x%02x", ErrBadSignature, first)
}

// Coded TypeDefOrRefOrSpec tags (II.23.2.8).
const (
	codedTypeDef  = 0
	codedTypeRef  = 1
	codedTypeSpec = 2
)

func splitTypeDefOrRef(coded uint32) (tag, row uint32) {
	return coded & 0x3, coded >> 2
}
