// Package metadata reads ECMA-335 metadata out of managed PE files into code units.
package metadata

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"fmt"
	"os"
	"slices"

	"github.com/microsoft/go-winmd"

	"jitmanifest/internal/clr"
)

// ResolutionScope tags of a TypeRef (II.24.2.6).
const (
	scopeModule      = 0
	scopeModuleRef   = 1
	scopeAssemblyRef = 2
	scopeTypeRef     = 3
)

// Implementation tag of an ExportedType pointing at another assembly.
const implementationAssemblyRef = 1

// Opens the PE file under given path and reads its metadata. The whole image is read
// into memory so a ReadyToRun machine field can be restored before parsing.
func openMetadata(path string) (*winmd.Metadata, error) {
	image, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	peFile, err := pe.NewFile(bytes.NewReader(restoreMachine(image)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", path, clr.ErrNotCodeUnit, err)
	}
	if peFile.OptionalHeader == nil {
		return nil, fmt.Errorf("%s: %w: no optional header", path, clr.ErrNotCodeUnit)
	}

	md, err := winmd.New(peFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", path, clr.ErrNotCodeUnit, err)
	}
	return md, nil
}

// ReadyToRun images built for a non-Windows OS store the COFF machine XORed with an
// OS constant, which debug/pe does not recognize.
var (
	r2rMachines = []uint16{pe.IMAGE_FILE_MACHINE_AMD64, pe.IMAGE_FILE_MACHINE_ARM64, pe.IMAGE_FILE_MACHINE_I386, pe.IMAGE_FILE_MACHINE_ARMNT}
	r2rOSMasks  = []uint16{
		0x7B79, // Linux
		0x4644, // Apple
		0xADC4, // FreeBSD
		0x1993, // NetBSD
	}
)

const (
	peHeaderOffset = 0x3c
	peSignature    = "PE\x00\x00"
)

// restoreMachine returns image with the plain machine value when the header carries a
// ReadyToRun OS variant. The input is never modified; anything else is returned as is.
func restoreMachine(image []byte) []byte {
	if len(image) < peHeaderOffset+4 {
		return image
	}
	offset := int(binary.LittleEndian.Uint32(image[peHeaderOffset:]))
	machineAt := offset + len(peSignature)
	if offset <= 0 || machineAt+2 > len(image) || string(image[offset:machineAt]) != peSignature {
		return image
	}

	machine := binary.LittleEndian.Uint16(image[machineAt:])
	for _, mask := range r2rOSMasks {
		plain := machine ^ mask
		if !slices.Contains(r2rMachines, plain) {
			continue
		}
		patched := slices.Clone(image)
		binary.LittleEndian.PutUint16(patched[machineAt:], plain)
		return patched
	}
	return image
}

// Reads the Assembly row. Modules without one (netmodules) are not code units.
func readIdentity(md *winmd.Metadata) (clr.Identity, error) {
	if md.Tables.Assembly.Len == 0 {
		return clr.Identity{}, fmt.Errorf("%w: no Assembly row", clr.ErrNotCodeUnit)
	}
	row, err := md.Tables.Assembly.Record(0)
	if err != nil {
		return clr.Identity{}, fmt.Errorf("failed to read Assembly row: %w", err)
	}

	return clr.Identity{
		Name:    row.Name.String(),
		Version: fmt.Sprintf("%d.%d.%d.%d", row.MajorVersion, row.MinorVersion, row.BuildNumber, row.RevisionNumber),
	}, nil
}

// assemblyReader turns the tables of one assembly into a code unit. It stays alive
// after loading as the context of the unit's lazily decoded signatures.
type assemblyReader struct {
	md       *winmd.Metadata
	binder   clr.Binder
	unit     *clr.CodeUnit
	types    []*clr.TypeDef
	typeRefs map[winmd.Index]*clr.Type
}

func readAssembly(md *winmd.Metadata, path string, binder clr.Binder) (*clr.CodeUnit, error) {
	identity, err := readIdentity(md)
	if err != nil {
		return nil, err
	}

	reader := &assemblyReader{
		md:       md,
		binder:   binder,
		typeRefs: map[winmd.Index]*clr.Type{},
	}
	builder := clr.NewBuilder(identity, path)

	if err := reader.defineTypes(builder); err != nil {
		return nil, err
	}
	if err := reader.defineMethods(builder); err != nil {
		return nil, err
	}
	if err := reader.defineForwarders(builder); err != nil {
		return nil, err
	}

	reader.unit = builder.Unit()
	return reader.unit, nil
}

func (reader *assemblyReader) defineTypes(builder *clr.Builder) error {
	table := reader.md.Tables.TypeDef
	reader.types = make([]*clr.TypeDef, 0, table.Len)
	for idx := uint32(0); idx < table.Len; idx++ {
		typeDef, err := table.Record(winmd.Index(idx))
		if err != nil {
			return fmt.Errorf("failed to read TypeDef row %d: %w", idx+1, err)
		}
		reader.types = append(reader.types, builder.DefineType(typeDef.Namespace.String(), typeDef.Name.String()))
	}

	nested := reader.md.Tables.NestedClass
	for idx := uint32(0); idx < nested.Len; idx++ {
		row, err := nested.Record(winmd.Index(idx))
		if err != nil {
			return fmt.Errorf("failed to read NestedClass row %d: %w", idx+1, err)
		}
		inner, err := reader.typeAt(row.NestedClass)
		if err != nil {
			return err
		}
		outer, err := reader.typeAt(row.EnclosingClass)
		if err != nil {
			return err
		}
		builder.Nest(inner, outer)
	}

	return nil
}

// Methods are defined type by type; MethodList ranges are ascending and contiguous,
// so this visits the MethodDef table in row order.
func (reader *assemblyReader) defineMethods(builder *clr.Builder) error {
	table := reader.md.Tables.TypeDef
	next := winmd.Index(0)
	for idx := uint32(0); idx < table.Len; idx++ {
		typeDef, err := table.Record(winmd.Index(idx))
		if err != nil {
			return fmt.Errorf("failed to read TypeDef row %d: %w", idx+1, err)
		}
		owner := reader.types[idx]

		for methodIdx := typeDef.MethodList.Start; methodIdx < typeDef.MethodList.End; methodIdx++ {
			if methodIdx != next {
				return fmt.Errorf("MethodDef row %d of %s is out of table order", methodIdx+1, owner)
			}
			next++

			methodDef, err := reader.md.Tables.MethodDef.Record(methodIdx)
			if err != nil {
				return fmt.Errorf("failed to read MethodDef row %d: %w", methodIdx+1, err)
			}
			blob := []byte(methodDef.Signature)
			arity, err := methodSigArity(blob)
			if err != nil {
				return fmt.Errorf("signature of %s::%s: %w", owner, methodDef.Name.String(), err)
			}

			builder.DefineLazyMethod(owner, methodDef.Name.String(), clr.MethodAttributes(methodDef.Flags), arity,
				func() (clr.Signature, error) {
					return decodeMethodSig(blob, reader)
				})
		}
	}

	return nil
}

func (reader *assemblyReader) defineForwarders(builder *clr.Builder) error {
	table := reader.md.Tables.ExportedType
	for idx := uint32(0); idx < table.Len; idx++ {
		exported, err := table.Record(winmd.Index(idx))
		if err != nil {
			return fmt.Errorf("failed to read ExportedType row %d: %w", idx+1, err)
		}
		if exported.Implementation.Tag != implementationAssemblyRef {
			continue
		}
		target, err := reader.md.Tables.AssemblyRef.Record(exported.Implementation.Index)
		if err != nil {
			return fmt.Errorf("failed to read AssemblyRef of exported type %s: %w", exported.Name.String(), err)
		}
		builder.Forward(joinName(exported.Namespace.String(), exported.Name.String()), target.Name.String())
	}

	return nil
}

func (reader *assemblyReader) typeAt(idx winmd.Index) (*clr.TypeDef, error) {
	if int(idx) >= len(reader.types) {
		return nil, fmt.Errorf("%w: TypeDef row %d out of range", clr.ErrBadToken, idx+1)
	}
	return reader.types[idx], nil
}

func (reader *assemblyReader) coreType(fullName string) (*clr.Type, error) {
	if reader.unit.Name() == reader.binder.CoreLibrary() {
		def, err := clr.FindType(reader.binder, reader.unit, fullName)
		if err != nil {
			return nil, err
		}
		return def.Type(), nil
	}
	return clr.CoreType(reader.binder, fullName)
}

func (reader *assemblyReader) typeDefOrRef(coded uint32) (*clr.Type, error) {
	tag, row := splitTypeDefOrRef(coded)
	if row == 0 {
		return nil, fmt.Errorf("%w: nil TypeDefOrRef", ErrBadSignature)
	}

	switch tag {
	case codedTypeDef:
		def, err := reader.typeAt(winmd.Index(row - 1))
		if err != nil {
			return nil, err
		}
		return def.Type(), nil
	case codedTypeRef:
		return reader.typeRef(winmd.Index(row - 1))
	case codedTypeSpec:
		return nil, fmt.Errorf("%w: TypeSpec row %d inside a method signature", ErrUnsupportedSignature, row)
	}
	return nil, fmt.Errorf("%w: TypeDefOrRef tag %d", ErrBadSignature, tag)
}

// typeRef resolves a TypeRef row through its resolution scope, following forwarders.
func (reader *assemblyReader) typeRef(idx winmd.Index) (*clr.Type, error) {
	if cached, found := reader.typeRefs[idx]; found {
		return cached, nil
	}

	ref, err := reader.md.Tables.TypeRef.Record(idx)
	if err != nil {
		return nil, fmt.Errorf("failed to read TypeRef row %d: %w", idx+1, err)
	}
	name := joinName(ref.Namespace.String(), ref.Name.String())

	var def *clr.TypeDef
	switch ref.ResolutionScope.Tag {
	case scopeModule:
		def, err = clr.FindType(reader.binder, reader.unit, name)
	case scopeAssemblyRef:
		def, err = reader.fromAssemblyRef(ref.ResolutionScope.Index, name)
	case scopeTypeRef:
		var enclosing *clr.Type
		enclosing, err = reader.typeRef(ref.ResolutionScope.Index)
		if err == nil {
			def, err = clr.FindType(reader.binder, enclosing.Unit(), enclosing.Def().FullName()+"+"+ref.Name.String())
		}
	case scopeModuleRef:
		err = fmt.Errorf("%w: %s is scoped to another module of a multi-module assembly", ErrUnsupportedSignature, name)
	default:
		err = fmt.Errorf("%w: ResolutionScope tag %d", ErrBadSignature, ref.ResolutionScope.Tag)
	}
	if err != nil {
		return nil, fmt.Errorf("TypeRef %s in %s: %w", name, reader.unit.Name(), err)
	}

	reader.typeRefs[idx] = def.Type()
	return def.Type(), nil
}

func (reader *assemblyReader) fromAssemblyRef(idx winmd.Index, fullName string) (*clr.TypeDef, error) {
	assemblyRef, err := reader.md.Tables.AssemblyRef.Record(idx)
	if err != nil {
		return nil, fmt.Errorf("failed to read AssemblyRef row %d: %w", idx+1, err)
	}
	unit, err := reader.binder.LoadByName(assemblyRef.Name.String())
	if err != nil {
		return nil, err
	}
	return clr.FindType(reader.binder, unit, fullName)
}

func joinName(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "." + name
}

// Source reads code units from managed PE files.
type Source struct{}

func NewSource() *Source {
	return &Source{}
}

func (s *Source) Load(path string, binder clr.Binder) (*clr.CodeUnit, error) {
	md, err := openMetadata(path)
	if err != nil {
		return nil, err
	}
	unit, err := readAssembly(md, path, binder)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return unit, nil
}

func (s *Source) Identify(path string) (clr.Identity, error) {
	md, err := openMetadata(path)
	if err != nil {
		return clr.Identity{}, err
	}
	identity, err := readIdentity(md)
	if err != nil {
		return clr.Identity{}, fmt.Errorf("%s: %w", path, err)
	}
	return identity, nil
}
